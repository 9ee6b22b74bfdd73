package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gorewood/shiftsheet/internal/daterange"
	"github.com/gorewood/shiftsheet/internal/model"
	"github.com/gorewood/shiftsheet/internal/output"
	"github.com/gorewood/shiftsheet/internal/report"
)

// --- Test helpers ---

func testReport() *report.Report {
	alice := &model.User{ID: 7, FirstName: "Alice", LastName: "Archer"}
	bob := &model.User{ID: 8, FirstName: "Bob", LastName: "Baker"}
	loc := time.FixedZone("PST", -8*3600)

	entries := []model.EnrichedTimesheet{
		{
			Timesheet: model.Timesheet{
				ID: 1, UserID: 7, JobcodeID: 1030, Date: "2025-01-01", Duration: 5400,
				Start: time.Date(2025, 1, 1, 7, 0, 0, 0, loc),
				End:   time.Date(2025, 1, 1, 8, 30, 0, 0, loc),
				Notes: "Poured footings | east side",
			},
			User:    alice,
			JobPath: "MMC › GENERAL LABOR",
			Files:   []model.File{{ID: 90, FileName: "site.png", URL: "https://api.test/files/raw?id=90"}},
		},
		{
			Timesheet: model.Timesheet{ID: 2, UserID: 8, JobcodeID: 600, Date: "2025-01-02", Duration: 1200},
			User:      bob,
			JobPath:   "Dredge Fleet",
		},
	}

	rng := daterange.Range{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
	}
	return report.Aggregate(entries).WithPeriod("run-1", rng, "MMC", time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC))
}

func assertContains(t *testing.T, got string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("output missing %q\n--- output ---\n%s", w, got)
		}
	}
}

// --- ParseFormat ---

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatText},
		{"TEXT", FormatText},
		{"md", FormatMarkdown},
		{"markdown", FormatMarkdown},
		{"csv", FormatCSV},
		{"json", FormatJSON},
		{"yml", FormatYAML},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}

	_, err := ParseFormat("docx")
	if output.GetExitCode(err) != output.ExitUserError {
		t.Errorf("ParseFormat(docx) error = %v, want user error", err)
	}
}

func TestFormat_Extension(t *testing.T) {
	for f, want := range map[Format]string{
		FormatText: ".txt", FormatMarkdown: ".md", FormatCSV: ".csv", FormatJSON: ".json", FormatYAML: ".yaml",
	} {
		if got := f.Extension(); got != want {
			t.Errorf("%s.Extension() = %q, want %q", f, got, want)
		}
	}
}

// --- Text ---

func TestText(t *testing.T) {
	out, err := Render(testReport(), FormatText)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	assertContains(t, out,
		"Shift report",
		"Period:  2025-01-01 to 2025-01-07",
		"Project: MMC",
		"Entries: 2",
		"Total:   1.83h",
		"Entries\n───────",
		"MMC › GENERAL LABOR",
		"07:00-08:30",
		"1h 30m",
		"1.50",
		"20m",
		"0.33",
		"Daily totals",
		"Attachments",
		"2025-01-01 Alice Archer: site.png https://api.test/files/raw?id=90",
		"Total: 1.83h",
	)
	if strings.Contains(out, "\033[") {
		t.Error("rendered text contains ANSI codes")
	}
}

func TestText_Empty(t *testing.T) {
	r := report.Empty(report.StatusNoMatchingProject)
	r.Project = "Atlantis"
	r.Warnings = []string{"users: endpoint unavailable"}

	out, err := Render(r, FormatText)
	if err != nil {
		t.Fatal(err)
	}
	assertContains(t, out, `No job code matches project "Atlantis".`, "Total:   0.00h", "Warning: users: endpoint unavailable")
	if strings.Contains(out, "Daily totals") {
		t.Error("empty report rendered sections")
	}
}

// --- Markdown ---

func TestMarkdown(t *testing.T) {
	md := Markdown(testReport())

	assertContains(t, md,
		"# Shift report",
		"- **Period:** 2025-01-01 to 2025-01-07",
		"- **Total hours:** 1.83",
		"| Date | Employee | Job | Time | Hours | Notes | Files |",
		`| 2025-01-01 | Alice Archer | MMC › GENERAL LABOR | 07:00-08:30 | 1.50 | Poured footings \| east side | [site.png](https://api.test/files/raw?id=90) |`,
		"| Bob Baker | 1 | 0.33 |",
		"| 2025-01-02 | 1 | 0.33 |",
		"| Dredge Fleet | 1 | 0.33 |",
		"**Total:** 1.83h",
	)
	if strings.Contains(md, "Partial data") {
		t.Error("warnings block rendered without warnings")
	}
}

func TestMarkdown_Warnings(t *testing.T) {
	r := testReport()
	r.Warnings = []string{"files: timeout"}
	assertContains(t, Markdown(r), "> **Partial data:**", "> - files: timeout")
}

// --- CSV ---

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, testReport()); err != nil {
		t.Fatalf("CSV() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want header + 2", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(csvHeader, ",") {
		t.Errorf("header = %v", records[0])
	}

	first := records[1]
	want := []string{
		"2025-01-01", "Alice Archer", "7", "MMC › GENERAL LABOR", "1030", "07:00", "08:30",
		"1", "30", "1.50", "Poured footings | east side", "site.png", "1",
	}
	for i := range want {
		if first[i] != want[i] {
			t.Errorf("column %s = %q, want %q", csvHeader[i], first[i], want[i])
		}
	}
}

// --- JSON and YAML ---

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, testReport()); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}

	var decoded struct {
		ID         string           `json:"id"`
		Status     string           `json:"status"`
		TotalHours string           `json:"total_hours"`
		Entries    []map[string]any `json:"entries"`
		Daily      []map[string]any `json:"daily_summaries"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.ID != "run-1" || decoded.Status != report.StatusOK {
		t.Errorf("id/status = %q/%q", decoded.ID, decoded.Status)
	}
	if decoded.TotalHours != "1.83" {
		t.Errorf("total_hours = %q, want %q", decoded.TotalHours, "1.83")
	}
	if len(decoded.Entries) != 2 || len(decoded.Daily) != 2 {
		t.Errorf("entries/daily = %d/%d, want 2/2", len(decoded.Entries), len(decoded.Daily))
	}
}

func TestJSON_EmptyReportShape(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, report.Aggregate(nil)); err != nil {
		t.Fatal(err)
	}
	assertContains(t, buf.String(),
		`"entries": []`,
		`"employee_summaries": []`,
		`"daily_summaries": []`,
		`"total_hours": "0"`,
	)
}

func TestYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := YAML(&buf, testReport()); err != nil {
		t.Fatalf("YAML() error = %v", err)
	}

	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if decoded["project"] != "MMC" {
		t.Errorf("project = %v, want MMC", decoded["project"])
	}
	if decoded["total_hours"] != "1.83" {
		t.Errorf("total_hours = %v, want %q", decoded["total_hours"], "1.83")
	}
	assertContains(t, buf.String(), "job_path: MMC › GENERAL LABOR")
}

// --- WriteFile ---

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "week.md")
	if err := WriteFile(path, testReport(), FormatMarkdown); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Shift report") {
		t.Errorf("file content = %q", string(data)[:min(len(data), 40)])
	}
}
