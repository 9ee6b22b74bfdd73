package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gorewood/shiftsheet/internal/report"
)

var csvHeader = []string{
	"date", "employee", "user_id", "job_path", "jobcode_id", "start", "end",
	"hours", "minutes", "decimal_hours", "notes", "files", "timesheet_id",
}

// CSV writes one row per entry.
func CSV(w io.Writer, r *report.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, e := range r.Entries {
		record := []string{
			e.Date,
			e.Employee,
			formatID(e.UserID),
			e.JobPath,
			formatID(e.JobcodeID),
			e.Start,
			e.End,
			strconv.Itoa(e.Hours),
			strconv.Itoa(e.Minutes),
			hours(e.Decimal),
			e.Notes,
			strings.Join(fileNames(e), "; "),
			strconv.FormatInt(e.TimesheetID, 10),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row %d: %w", e.TimesheetID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// JSON writes the full report as indented JSON.
func JSON(w io.Writer, r *report.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report as json: %w", err)
	}
	return nil
}

// YAML writes the full report as YAML.
func YAML(w io.Writer, r *report.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report as yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding report as yaml: %w", err)
	}
	return nil
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
