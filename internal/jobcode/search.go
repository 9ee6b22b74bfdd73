package jobcode

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/gorewood/shiftsheet/internal/model"
)

// Match is a job code found by Search, with its display path and the number
// of descendants a report on it would include.
type Match struct {
	Jobcode     model.Jobcode `json:"jobcode"`
	Path        string        `json:"path"`
	Descendants int           `json:"descendants"`
	rank        int
}

// Search lists job codes whose name, short code or id match text, best match
// first: exact, then prefix, then substring; ties ordered by path. An empty
// text lists everything. A limit of zero or less means no limit.
func Search(text string, dir *Directory, limit int) []Match {
	needle := strings.ToLower(strings.TrimSpace(text))

	var out []Match
	for i := range dir.nodes {
		jc := dir.nodes[i]
		rank, ok := matchRank(jc, needle)
		if !ok {
			continue
		}
		out = append(out, Match{
			Jobcode:     jc,
			Path:        BuildPath(&jc, dir),
			Descendants: len(dir.DescendantsOf(jc.ID)),
			rank:        rank,
		})
	}

	slices.SortStableFunc(out, func(a, b Match) int {
		if c := cmp.Compare(a.rank, b.rank); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// matchRank scores how well jc matches a lower-cased needle. Lower is better.
func matchRank(jc model.Jobcode, needle string) (int, bool) {
	if needle == "" {
		return 0, true
	}
	name := strings.ToLower(jc.Name)
	code := strings.ToLower(jc.ShortCode)
	switch {
	case name == needle || (code != "" && code == needle):
		return 0, true
	case strings.HasPrefix(name, needle) || (code != "" && strings.HasPrefix(code, needle)):
		return 1, true
	case strings.Contains(name, needle) || (code != "" && strings.Contains(code, needle)):
		return 2, true
	case strconv.FormatInt(jc.ID, 10) == needle:
		return 0, true
	default:
		return 0, false
	}
}
