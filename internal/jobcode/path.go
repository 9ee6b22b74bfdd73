package jobcode

import (
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/gorewood/shiftsheet/internal/model"
)

// PathSeparator joins the fragments of a hierarchy path.
const PathSeparator = " › "

// BuildPath returns the root-to-leaf display path of jc, for example
// "MMC 25839 › GENERAL LABOR 1030". The walk stops at a root, at a parent the
// directory does not hold, at a repeated node or after MaxHops parents.
// A nil job code yields model.UnknownLabel.
func BuildPath(jc *model.Jobcode, dir *Directory) string {
	if jc == nil {
		return model.UnknownLabel
	}

	fragments := []string{jc.Label()}
	seen := map[int64]bool{jc.ID: true}
	current := *jc

	for hop := 0; current.HasParent(); hop++ {
		if hop >= MaxHops {
			dir.logger.Warn("jobcode path hop limit reached", zap.Int64("jobcode_id", jc.ID))
			break
		}
		if seen[current.ParentID] {
			dir.logger.Warn("jobcode parent cycle detected",
				zap.Int64("jobcode_id", jc.ID),
				zap.Int64("parent_id", current.ParentID),
			)
			break
		}
		parent, ok := dir.Get(current.ParentID)
		if !ok {
			dir.logger.Warn("jobcode parent not found",
				zap.Int64("jobcode_id", current.ID),
				zap.Int64("parent_id", current.ParentID),
			)
			break
		}
		seen[parent.ID] = true
		fragments = append(fragments, parent.Label())
		current = parent
	}

	slices.Reverse(fragments)
	return strings.Join(fragments, PathSeparator)
}

// PathOf is BuildPath for an id; unknown ids yield model.UnknownLabel.
func (d *Directory) PathOf(id int64) string {
	jc, ok := d.Get(id)
	if !ok {
		return model.UnknownLabel
	}
	return BuildPath(&jc, d)
}
