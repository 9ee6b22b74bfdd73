// Package jobcode indexes the job code tree and resolves project references
// against it.
package jobcode

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/gorewood/shiftsheet/internal/model"
)

// MaxHops bounds every walk over parent or child links. Upstream data is not
// guaranteed to be acyclic.
const MaxHops = 10

// Fetcher loads job codes from the time-tracking service.
type Fetcher interface {
	FetchJobcodes(ctx context.Context, filter model.JobcodeFilter) (map[int64]model.Jobcode, error)
	FetchJobcodesByID(ctx context.Context, ids []int64) (map[int64]model.Jobcode, error)
}

// Directory is an in-memory arena of job codes. Nodes are kept sorted by id;
// parent and child relations are resolved to slice indexes.
//
// A Directory is built per request and is not safe for concurrent mutation.
type Directory struct {
	nodes    []model.Jobcode
	index    map[int64]int
	children [][]int
	logger   *zap.Logger
}

// New builds a directory from already-fetched job codes.
func New(codes map[int64]model.Jobcode, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := &Directory{
		nodes:  make([]model.Jobcode, 0, len(codes)),
		index:  make(map[int64]int, len(codes)),
		logger: logger,
	}
	dir.Merge(codes)
	return dir
}

// Load fetches every job code, active and inactive, and indexes it.
func Load(ctx context.Context, fetcher Fetcher, logger *zap.Logger) (*Directory, error) {
	codes, err := fetcher.FetchJobcodes(ctx, model.JobcodeFilter{Active: "both"})
	if err != nil {
		return nil, fmt.Errorf("loading jobcodes: %w", err)
	}
	dir := New(codes, logger)
	dir.logger.Info("jobcode directory loaded", zap.Int("jobcodes", dir.Len()))
	return dir, nil
}

// Len returns the number of indexed job codes.
func (d *Directory) Len() int {
	return len(d.nodes)
}

// Has reports whether id is indexed.
func (d *Directory) Has(id int64) bool {
	_, ok := d.index[id]
	return ok
}

// Get returns the job code with the given id.
func (d *Directory) Get(id int64) (model.Jobcode, bool) {
	idx, ok := d.index[id]
	if !ok {
		return model.Jobcode{}, false
	}
	return d.nodes[idx], true
}

// All returns a copy of every job code in ascending id order.
func (d *Directory) All() []model.Jobcode {
	return slices.Clone(d.nodes)
}

// Logger returns the logger diagnostics are written to.
func (d *Directory) Logger() *zap.Logger {
	return d.logger
}

// Merge inserts job codes that are not yet indexed and returns how many were
// added. Existing entries are never replaced.
func (d *Directory) Merge(codes map[int64]model.Jobcode) int {
	added := 0
	for id, code := range codes {
		if id == 0 || d.Has(id) {
			continue
		}
		code.ID = id
		d.nodes = append(d.nodes, code)
		d.index[id] = len(d.nodes) - 1
		added++
	}
	if added > 0 {
		d.reindex()
	}
	return added
}

// reindex sorts the arena by id and rebuilds the index and child lists.
func (d *Directory) reindex() {
	slices.SortFunc(d.nodes, func(a, b model.Jobcode) int {
		return cmp.Compare(a.ID, b.ID)
	})
	clear(d.index)
	for idx, node := range d.nodes {
		d.index[node.ID] = idx
	}
	d.children = make([][]int, len(d.nodes))
	for idx, node := range d.nodes {
		if !node.HasParent() {
			continue
		}
		if parent, ok := d.index[node.ParentID]; ok {
			d.children[parent] = append(d.children[parent], idx)
		}
	}
}

// Ensure fetches the ids that are not indexed yet in one batched call and
// inserts the results. Ids the service cannot resolve stay absent; callers
// render them as unknown.
func (d *Directory) Ensure(ctx context.Context, ids []int64, fetcher Fetcher) error {
	missing := d.missing(ids)
	if len(missing) == 0 {
		return nil
	}

	fetched, err := fetcher.FetchJobcodesByID(ctx, missing)
	if err != nil {
		return fmt.Errorf("backfilling %d jobcodes: %w", len(missing), err)
	}
	added := d.Merge(fetched)
	d.logger.Info("jobcodes backfilled",
		zap.Int("requested", len(missing)),
		zap.Int("added", added),
	)

	if unresolved := d.missing(missing); len(unresolved) > 0 {
		d.logger.Warn("jobcodes unresolved after backfill", zap.Int64s("ids", unresolved))
	}
	return nil
}

// EnsureAncestors backfills the given ids and then, hop by hop, any ancestor
// missing from their parent chains, so paths can be built for every id.
func (d *Directory) EnsureAncestors(ctx context.Context, ids []int64, fetcher Fetcher) error {
	attempted := make(map[int64]bool)
	pending := ids

	for hop := 0; hop < MaxHops && len(pending) > 0; hop++ {
		for _, id := range pending {
			attempted[id] = true
		}
		if err := d.Ensure(ctx, pending, fetcher); err != nil {
			return err
		}

		var next []int64
		for _, id := range pending {
			if gap, ok := d.firstMissingAncestor(id); ok && !attempted[gap] && !slices.Contains(next, gap) {
				next = append(next, gap)
			}
		}
		pending = next
	}
	return nil
}

// firstMissingAncestor walks up from id through indexed nodes and returns the
// first parent id that is not indexed.
func (d *Directory) firstMissingAncestor(id int64) (int64, bool) {
	current, ok := d.Get(id)
	if !ok {
		return 0, false
	}
	for range MaxHops {
		if !current.HasParent() {
			return 0, false
		}
		parent, ok := d.Get(current.ParentID)
		if !ok {
			return current.ParentID, true
		}
		current = parent
	}
	return 0, false
}

// missing returns the distinct non-zero ids that are not indexed, ascending.
func (d *Directory) missing(ids []int64) []int64 {
	var out []int64
	for _, id := range ids {
		if id == 0 || d.Has(id) || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// DescendantsOf returns the ids of every job code below id, at any depth up
// to MaxHops, in ascending order. It never touches the network. Cyclic parent
// links stop the descent; what was found so far is returned.
func (d *Directory) DescendantsOf(id int64) []int64 {
	start, ok := d.index[id]
	if !ok {
		return nil
	}

	type frame struct {
		idx   int
		depth int
	}
	visited := map[int]bool{start: true}
	queue := []frame{{idx: start}}
	var out []int64

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= MaxHops {
			d.logger.Warn("descendant depth limit reached",
				zap.Int64("root", id),
				zap.Int64("at", d.nodes[current.idx].ID),
			)
			continue
		}
		for _, child := range d.children[current.idx] {
			if visited[child] {
				continue
			}
			visited[child] = true
			out = append(out, d.nodes[child].ID)
			queue = append(queue, frame{idx: child, depth: current.depth + 1})
		}
	}

	slices.Sort(out)
	return out
}
