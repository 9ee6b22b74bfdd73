// Package enrich turns raw timesheets into fully enriched records: each entry
// gets its user, its job code with a full hierarchy path and its attached
// files. Lookups other than the timesheet fetch itself are best effort; a
// failed lookup leaves the affected fields empty and is reported as a warning.
package enrich

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gorewood/shiftsheet/internal/daterange"
	"github.com/gorewood/shiftsheet/internal/jobcode"
	"github.com/gorewood/shiftsheet/internal/model"
)

// Source is the upstream data the pipeline reads from.
type Source interface {
	jobcode.Fetcher
	FetchTimesheets(ctx context.Context, filter model.TimesheetFilter) (*model.TimesheetBatch, error)
	FetchUsers(ctx context.Context, ids []int64) (map[int64]model.User, error)
	FetchFiles(ctx context.Context, ids []int64) (map[int64]model.File, error)
}

// Stage names a pipeline step for errors and warnings.
type Stage string

// Pipeline stages.
const (
	StageJobcodes   Stage = "jobcodes"
	StageTimesheets Stage = "timesheets"
	StageUsers      Stage = "users"
	StageBackfill   Stage = "jobcode_backfill"
	StageFiles      Stage = "files"
)

// StageError reports an upstream failure that stopped the pipeline.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Request selects the timesheets to enrich.
type Request struct {
	Range   daterange.Range
	Project jobcode.Reference
	Policy  jobcode.Policy
}

// Warning records a lookup that failed without stopping the run.
type Warning struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// Result is the outcome of a run. Entries is sorted by timesheet id and is
// empty, not nil, when nothing matched.
type Result struct {
	RunID      string
	Range      daterange.Range
	Resolution jobcode.Resolution
	Entries    []model.EnrichedTimesheet
	Warnings   []Warning
	Directory  *jobcode.Directory
}

// Pipeline enriches timesheets from a Source. It holds no per-request state
// and is safe for concurrent use.
type Pipeline struct {
	source Source
	logger *zap.Logger
}

// NewPipeline creates a pipeline. A nil logger discards output.
func NewPipeline(source Source, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{source: source, logger: logger}
}

// Directory loads a fresh job code directory.
func (p *Pipeline) Directory(ctx context.Context) (*jobcode.Directory, error) {
	return p.loadDirectory(ctx, p.logger)
}

func (p *Pipeline) loadDirectory(ctx context.Context, logger *zap.Logger) (*jobcode.Directory, error) {
	dir, err := jobcode.Load(ctx, p.source, logger)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &StageError{Stage: StageJobcodes, Err: err}
	}
	return dir, nil
}

// Resolve loads the directory and resolves ref against it. The directory is
// returned for rendering match paths and descendant counts.
func (p *Pipeline) Resolve(ctx context.Context, ref jobcode.Reference, policy jobcode.Policy) (jobcode.Resolution, *jobcode.Directory, error) {
	dir, err := p.loadDirectory(ctx, p.logger)
	if err != nil {
		return jobcode.Resolution{}, nil, err
	}
	res, err := p.resolve(ctx, p.logger, dir, ref, policy)
	if err != nil {
		return jobcode.Resolution{}, nil, err
	}
	return res, dir, nil
}

// resolve backfills an explicit id the bulk listing left out before
// resolving. A failed backfill is logged and resolution proceeds without it.
func (p *Pipeline) resolve(
	ctx context.Context, logger *zap.Logger, dir *jobcode.Directory, ref jobcode.Reference, policy jobcode.Policy,
) (jobcode.Resolution, error) {
	if err := dir.EnsureReference(ctx, ref, p.source); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return jobcode.Resolution{}, ctxErr
		}
		logger.Warn("explicit jobcode backfill failed", zap.String("project", ref.String()), zap.Error(err))
	}
	return jobcode.Resolve(ref, dir, policy), nil
}

// Run resolves the project, fetches the timesheets in range and enriches
// them. An unknown project or an empty range is not an error. An ambiguous
// project under RequireSingle returns a *jobcode.AmbiguousError.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))
	started := time.Now()

	logger.Info("enrichment started",
		zap.String("range", req.Range.String()),
		zap.String("project", req.Project.String()),
	)

	dir, err := p.loadDirectory(ctx, logger)
	if err != nil {
		return nil, err
	}

	resolution, err := p.resolve(ctx, logger, dir, req.Project, req.Policy)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:      runID,
		Range:      req.Range,
		Resolution: resolution,
		Entries:    []model.EnrichedTimesheet{},
		Directory:  dir,
	}

	switch result.Resolution.Kind {
	case jobcode.Ambiguous:
		return nil, result.Resolution.Err()
	case jobcode.NotFound:
		logger.Info("no jobcode matches project", zap.String("project", req.Project.String()))
		return result, nil
	}

	batch, err := p.source.FetchTimesheets(ctx, model.TimesheetFilter{
		StartDate:  req.Range.StartDate(),
		EndDate:    req.Range.EndDate(),
		JobcodeIDs: result.Resolution.IDs,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &StageError{Stage: StageTimesheets, Err: err}
	}
	if len(batch.Timesheets) == 0 {
		logger.Info("enrichment finished", zap.Int("entries", 0), zap.Duration("elapsed", time.Since(started)))
		return result, nil
	}

	lookups, err := p.lookup(ctx, logger, dir, batch)
	if err != nil {
		return nil, err
	}

	result.Entries = assemble(batch.Timesheets, lookups, dir)
	result.Warnings = lookups.warnings

	logger.Info("enrichment finished",
		zap.Int("entries", len(result.Entries)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// lookups gathers the related records for a batch.
type lookups struct {
	users    map[int64]model.User
	files    map[int64]model.File
	warnings []Warning
}

// lookup runs the user, job code and file lookups concurrently. Only the job
// code step touches dir. Upstream failures become warnings; cancellation is
// returned.
func (p *Pipeline) lookup(ctx context.Context, logger *zap.Logger, dir *jobcode.Directory, batch *model.TimesheetBatch) (*lookups, error) {
	out := &lookups{}
	var mu sync.Mutex
	tolerate := func(stage Stage, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("lookup failed; continuing without it", zap.String("stage", string(stage)), zap.Error(err))
		mu.Lock()
		out.warnings = append(out.warnings, Warning{Stage: stage, Message: err.Error()})
		mu.Unlock()
		return nil
	}

	var g errgroup.Group

	g.Go(func() error {
		users, err := p.users(ctx, batch)
		out.users = users
		if err != nil {
			return tolerate(StageUsers, err)
		}
		return nil
	})

	g.Go(func() error {
		dir.Merge(batch.SupplementalJobcodes)
		ids := make([]int64, 0, len(batch.Timesheets))
		for _, ts := range batch.Timesheets {
			ids = append(ids, ts.JobcodeID)
		}
		if err := dir.EnsureAncestors(ctx, ids, p.source); err != nil {
			return tolerate(StageBackfill, err)
		}
		return nil
	})

	g.Go(func() error {
		ids := attachedFileIDs(batch.Timesheets)
		if len(ids) == 0 {
			return nil
		}
		files, err := p.source.FetchFiles(ctx, ids)
		if err != nil {
			return tolerate(StageFiles, err)
		}
		out.files = files
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(out.warnings, func(a, b Warning) int {
		return cmp.Compare(a.Stage, b.Stage)
	})
	return out, nil
}

// users returns the supplemental users plus any fetched separately. On a
// failed fetch the supplemental users are still returned.
func (p *Pipeline) users(ctx context.Context, batch *model.TimesheetBatch) (map[int64]model.User, error) {
	users := make(map[int64]model.User, len(batch.SupplementalUsers))
	for id, u := range batch.SupplementalUsers {
		users[id] = u
	}

	var missing []int64
	for _, ts := range batch.Timesheets {
		if _, ok := users[ts.UserID]; !ok && ts.UserID != 0 && !slices.Contains(missing, ts.UserID) {
			missing = append(missing, ts.UserID)
		}
	}
	if len(missing) == 0 {
		return users, nil
	}

	slices.Sort(missing)
	fetched, err := p.source.FetchUsers(ctx, missing)
	if err != nil {
		return users, err
	}
	for id, u := range fetched {
		users[id] = u
	}
	return users, nil
}

func attachedFileIDs(timesheets []model.Timesheet) []int64 {
	var ids []int64
	for _, ts := range timesheets {
		ids = append(ids, ts.AttachedFiles...)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// assemble builds one enriched record per timesheet, ordered by id.
func assemble(timesheets []model.Timesheet, found *lookups, dir *jobcode.Directory) []model.EnrichedTimesheet {
	sorted := slices.Clone(timesheets)
	slices.SortFunc(sorted, func(a, b model.Timesheet) int {
		return cmp.Compare(a.ID, b.ID)
	})

	entries := make([]model.EnrichedTimesheet, 0, len(sorted))
	for _, ts := range sorted {
		entry := model.EnrichedTimesheet{Timesheet: ts, Files: []model.File{}}

		if u, ok := found.users[ts.UserID]; ok {
			entry.User = &u
		}
		if jc, ok := dir.Get(ts.JobcodeID); ok {
			entry.Jobcode = &jc
		}
		entry.JobPath = jobcode.BuildPath(entry.Jobcode, dir)

		for _, id := range ts.AttachedFiles {
			if f, ok := found.files[id]; ok {
				entry.Files = append(entry.Files, f)
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

// IsCanceled reports whether err came from a canceled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
