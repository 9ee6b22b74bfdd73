package main

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/gorewood/shiftsheet/internal/auth"
	"github.com/gorewood/shiftsheet/internal/enrich"
	"github.com/gorewood/shiftsheet/internal/model"
)

// --- Fake source ---

type fakeSource struct {
	jobcodes      map[int64]model.Jobcode
	timesheets    []model.Timesheet
	users         map[int64]model.User
	timesheetsErr error
}

func (f *fakeSource) FetchJobcodes(_ context.Context, _ model.JobcodeFilter) (map[int64]model.Jobcode, error) {
	return f.jobcodes, nil
}

func (f *fakeSource) FetchJobcodesByID(_ context.Context, _ []int64) (map[int64]model.Jobcode, error) {
	return map[int64]model.Jobcode{}, nil
}

func (f *fakeSource) FetchTimesheets(_ context.Context, filter model.TimesheetFilter) (*model.TimesheetBatch, error) {
	if f.timesheetsErr != nil {
		return nil, f.timesheetsErr
	}
	batch := &model.TimesheetBatch{}
	for _, ts := range f.timesheets {
		if ts.Date < filter.StartDate || ts.Date > filter.EndDate {
			continue
		}
		if len(filter.JobcodeIDs) > 0 && !slices.Contains(filter.JobcodeIDs, ts.JobcodeID) {
			continue
		}
		batch.Timesheets = append(batch.Timesheets, ts)
	}
	return batch, nil
}

func (f *fakeSource) FetchUsers(_ context.Context, ids []int64) (map[int64]model.User, error) {
	out := make(map[int64]model.User)
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (f *fakeSource) FetchFiles(_ context.Context, _ []int64) (map[int64]model.File, error) {
	return map[int64]model.File{}, nil
}

// --- Mock token store ---

type memStore struct {
	token *oauth2.Token
	saves int
}

func (m *memStore) Load(_ context.Context) (*oauth2.Token, error) {
	if m.token == nil {
		return nil, auth.ErrNoToken
	}
	return m.token, nil
}

func (m *memStore) Save(_ context.Context, token *oauth2.Token) error {
	m.token = token
	m.saves++
	return nil
}

func (m *memStore) Clear(_ context.Context) error {
	m.token = nil
	return nil
}

// --- Test helpers ---

var fixedNow = time.Date(2025, 1, 15, 14, 30, 0, 0, time.UTC)

func nowFunc() time.Time { return fixedNow }

func jc(id, parent int64, name string, active bool) model.Jobcode {
	return model.Jobcode{ID: id, ParentID: parent, Name: name, Type: model.JobcodeRegular, Active: active}
}

func newSource() *fakeSource {
	return &fakeSource{
		jobcodes: map[int64]model.Jobcode{
			25839: jc(25839, 0, "MMC", true),
			1030:  jc(1030, 25839, "GENERAL LABOR", true),
			600:   jc(600, 0, "Dredge Fleet", true),
			501:   jc(501, 0, "Harbor Dredging", true),
			800:   jc(800, 0, "Dredge Spare", false),
		},
		timesheets: []model.Timesheet{
			{ID: 1, UserID: 7, JobcodeID: 1030, Date: "2025-01-02", Duration: 5400, Notes: "Poured footings"},
			{ID: 2, UserID: 7, JobcodeID: 600, Date: "2025-01-03", Duration: 1200},
		},
		users: map[int64]model.User{
			7: {ID: 7, FirstName: "Alice", LastName: "Archer", Active: true},
		},
	}
}

func newBackend(src *fakeSource) *enrich.Pipeline {
	return enrich.NewPipeline(src, nil)
}

// execute runs sub under a minimal root carrying the persistent flags and
// returns stdout and stderr.
func execute(t *testing.T, sub *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	return executeWithInput(t, sub, "", args...)
}

func executeWithInput(t *testing.T, sub *cobra.Command, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SHIFTSHEET_CONFIG_HOME", t.TempDir())

	root := &cobra.Command{Use: "shiftsheet", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().Bool("json", false, "")
	root.PersistentFlags().String("color", "never", "")
	root.AddCommand(sub)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{sub.Name()}, args...))

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
