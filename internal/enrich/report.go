package enrich

import (
	"fmt"
	"time"

	"github.com/gorewood/shiftsheet/internal/jobcode"
	"github.com/gorewood/shiftsheet/internal/report"
)

// Report aggregates the result and stamps it with the run id, range and
// project. An unmatched project yields an empty report with status
// no_matching_project rather than an error.
func (r *Result) Report(project string, generatedAt time.Time) *report.Report {
	var rep *report.Report
	if r.Resolution.Kind == jobcode.NotFound {
		rep = report.Empty(report.StatusNoMatchingProject)
	} else {
		rep = report.Aggregate(r.Entries)
	}
	for _, w := range r.Warnings {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: %s", w.Stage, w.Message))
	}
	return rep.WithPeriod(r.RunID, r.Range, project, generatedAt)
}
