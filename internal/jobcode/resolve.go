package jobcode

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gorewood/shiftsheet/internal/model"
)

// Kind is the outcome of resolving a project reference.
type Kind int

// Resolution outcomes.
const (
	NoFilter Kind = iota
	Matched
	NotFound
	Ambiguous
)

// String returns the snake_case name used in tool output.
func (k Kind) String() string {
	switch k {
	case NoFilter:
		return "no_filter"
	case Matched:
		return "matched"
	case NotFound:
		return "not_found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// MarshalText lets Kind serialize by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Policy decides what happens when free text matches several job codes.
type Policy int

const (
	// RequireSingle reports several free-text matches as Ambiguous.
	RequireSingle Policy = iota
	// IncludeAll expands every match and its descendants.
	IncludeAll
)

// Reference is a caller-supplied project reference: a job code id, free text
// (name, short code or a number), or both.
type Reference struct {
	ID   int64  `json:"id,omitempty"`
	Text string `json:"text,omitempty"`
}

// IsZero reports whether no reference was given.
func (r Reference) IsZero() bool {
	return r.ID == 0 && strings.TrimSpace(r.Text) == ""
}

// String renders the reference for messages.
func (r Reference) String() string {
	text := strings.TrimSpace(r.Text)
	switch {
	case r.ID != 0 && text != "":
		return fmt.Sprintf("%d (%s)", r.ID, text)
	case r.ID != 0:
		return strconv.FormatInt(r.ID, 10)
	default:
		return text
	}
}

// ExplicitIDs returns the job code ids the reference names outright: ID and
// free text that parses as a positive number.
func (r Reference) ExplicitIDs() []int64 {
	var ids []int64
	if r.ID > 0 {
		ids = append(ids, r.ID)
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(r.Text), 10, 64); err == nil && id > 0 && id != r.ID {
		ids = append(ids, id)
	}
	return ids
}

// EnsureReference backfills explicit ids from ref that the bulk listing
// omitted, together with their ancestors, so Resolve can match them.
func (d *Directory) EnsureReference(ctx context.Context, ref Reference, fetcher Fetcher) error {
	missing := d.missing(ref.ExplicitIDs())
	if len(missing) == 0 {
		return nil
	}
	return d.EnsureAncestors(ctx, missing, fetcher)
}

// Resolution is the result of Resolve. IDs holds the matched job codes and
// all of their descendants, ascending.
type Resolution struct {
	Kind      Kind            `json:"kind"`
	Reference Reference       `json:"reference"`
	IDs       []int64         `json:"ids,omitempty"`
	Matches   []model.Jobcode `json:"matches,omitempty"`
	Paths     []string        `json:"paths,omitempty"`
}

// Err returns an *AmbiguousError for Ambiguous resolutions and nil otherwise.
func (r Resolution) Err() error {
	if r.Kind != Ambiguous {
		return nil
	}
	return &AmbiguousError{Reference: r.Reference.String(), Candidates: r.Paths}
}

// AmbiguousError lists the job codes a free-text reference matched.
type AmbiguousError struct {
	Reference  string
	Candidates []string
}

// Error implements the error interface.
func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("project %q matches %d job codes: %s; retry with a jobcode id",
		e.Reference, len(e.Candidates), strings.Join(e.Candidates, "; "))
}

// Resolve turns a project reference into the set of job code ids a report
// should cover. A match on a parent includes every descendant, since hours
// are usually logged against child tasks.
func Resolve(ref Reference, dir *Directory, policy Policy) Resolution {
	res := Resolution{Kind: NoFilter, Reference: ref}
	if ref.IsZero() {
		return res
	}

	matches := directMatch(ref, dir)
	fromText := false
	if len(matches) == 0 {
		matches = textMatches(strings.TrimSpace(ref.Text), dir)
		fromText = true
	}

	switch {
	case len(matches) == 0:
		res.Kind = NotFound
		return res
	case fromText && len(matches) > 1:
		if exact := exactMatches(strings.TrimSpace(ref.Text), matches); len(exact) == 1 {
			matches = exact
		}
	}

	res.Matches = matches
	res.Paths = make([]string, 0, len(matches))
	for i := range matches {
		res.Paths = append(res.Paths, BuildPath(&matches[i], dir))
	}

	if fromText && len(matches) > 1 && policy == RequireSingle {
		res.Kind = Ambiguous
		return res
	}

	res.Kind = Matched
	res.IDs = expand(matches, dir)
	return res
}

// directMatch handles an explicit id or free text that is a known id.
func directMatch(ref Reference, dir *Directory) []model.Jobcode {
	if ref.ID != 0 {
		if jc, ok := dir.Get(ref.ID); ok {
			return []model.Jobcode{jc}
		}
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(ref.Text), 10, 64); err == nil {
		if jc, ok := dir.Get(id); ok {
			return []model.Jobcode{jc}
		}
	}
	return nil
}

// textMatches returns every job code whose name or short code contains text,
// case-insensitively, in id order.
func textMatches(text string, dir *Directory) []model.Jobcode {
	if text == "" {
		return nil
	}
	needle := strings.ToLower(text)
	var out []model.Jobcode
	for _, jc := range dir.nodes {
		if strings.Contains(strings.ToLower(jc.Name), needle) ||
			(jc.ShortCode != "" && strings.Contains(strings.ToLower(jc.ShortCode), needle)) {
			out = append(out, jc)
		}
	}
	return out
}

// exactMatches keeps candidates whose name or short code equals text.
func exactMatches(text string, candidates []model.Jobcode) []model.Jobcode {
	var out []model.Jobcode
	for _, jc := range candidates {
		if strings.EqualFold(jc.Name, text) || (jc.ShortCode != "" && strings.EqualFold(jc.ShortCode, text)) {
			out = append(out, jc)
		}
	}
	return out
}

// expand unions the matched ids with their descendants.
func expand(matches []model.Jobcode, dir *Directory) []int64 {
	var ids []int64
	for _, jc := range matches {
		ids = append(ids, jc.ID)
		ids = append(ids, dir.DescendantsOf(jc.ID)...)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
