package enrich

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gorewood/shiftsheet/internal/daterange"
	"github.com/gorewood/shiftsheet/internal/jobcode"
	"github.com/gorewood/shiftsheet/internal/model"
)

// --- Fake Source ---

type fakeSource struct {
	mu sync.Mutex

	jobcodes     map[int64]model.Jobcode
	jobcodesByID map[int64]model.Jobcode
	batch        model.TimesheetBatch
	users        map[int64]model.User
	files        map[int64]model.File

	jobcodesErr   error
	timesheetsErr error
	usersErr      error
	filesErr      error
	byIDErr       error

	// onFiles runs before FetchFiles returns.
	onFiles func()

	timesheetFilters []model.TimesheetFilter
	userCalls        [][]int64
	fileCalls        [][]int64
	byIDCalls        [][]int64
}

func (f *fakeSource) FetchJobcodes(ctx context.Context, _ model.JobcodeFilter) (map[int64]model.Jobcode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.jobcodesErr != nil {
		return nil, f.jobcodesErr
	}
	out := make(map[int64]model.Jobcode, len(f.jobcodes))
	for id, jc := range f.jobcodes {
		out[id] = jc
	}
	return out, nil
}

func (f *fakeSource) FetchJobcodesByID(_ context.Context, ids []int64) (map[int64]model.Jobcode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byIDCalls = append(f.byIDCalls, slices.Clone(ids))
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	out := make(map[int64]model.Jobcode)
	for _, id := range ids {
		if jc, ok := f.jobcodesByID[id]; ok {
			out[id] = jc
		}
	}
	return out, nil
}

func (f *fakeSource) FetchTimesheets(_ context.Context, filter model.TimesheetFilter) (*model.TimesheetBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timesheetFilters = append(f.timesheetFilters, filter)
	if f.timesheetsErr != nil {
		return nil, f.timesheetsErr
	}

	batch := &model.TimesheetBatch{
		SupplementalUsers:    f.batch.SupplementalUsers,
		SupplementalJobcodes: f.batch.SupplementalJobcodes,
	}
	for _, ts := range f.batch.Timesheets {
		if len(filter.JobcodeIDs) > 0 && !slices.Contains(filter.JobcodeIDs, ts.JobcodeID) {
			continue
		}
		batch.Timesheets = append(batch.Timesheets, ts)
	}
	return batch, nil
}

func (f *fakeSource) FetchUsers(_ context.Context, ids []int64) (map[int64]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls = append(f.userCalls, slices.Clone(ids))
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	out := make(map[int64]model.User)
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (f *fakeSource) FetchFiles(_ context.Context, ids []int64) (map[int64]model.File, error) {
	f.mu.Lock()
	f.fileCalls = append(f.fileCalls, slices.Clone(ids))
	f.mu.Unlock()
	if f.onFiles != nil {
		f.onFiles()
	}
	if f.filesErr != nil {
		return nil, f.filesErr
	}
	out := make(map[int64]model.File)
	for _, id := range ids {
		if file, ok := f.files[id]; ok {
			out[id] = file
		}
	}
	return out, nil
}

// --- Test helpers ---

func jc(id, parent int64, name string) model.Jobcode {
	return model.Jobcode{ID: id, ParentID: parent, Name: name, Type: model.JobcodeRegular, Active: true}
}

func codes(list ...model.Jobcode) map[int64]model.Jobcode {
	out := make(map[int64]model.Jobcode, len(list))
	for _, code := range list {
		out[code.ID] = code
	}
	return out
}

func sheet(id, user, job int64, date string, seconds int64, files ...int64) model.Timesheet {
	return model.Timesheet{ID: id, UserID: user, JobcodeID: job, Date: date, Duration: seconds, AttachedFiles: files}
}

func newSource() *fakeSource {
	return &fakeSource{
		jobcodes: codes(
			jc(25839, 0, "MMC"),
			jc(1030, 25839, "GENERAL LABOR"),
			jc(600, 0, "Dredge Fleet"),
			jc(501, 0, "Harbor Dredging"),
		),
		batch: model.TimesheetBatch{
			Timesheets: []model.Timesheet{
				sheet(3, 8, 600, "2025-01-02", 3600),
				sheet(1, 7, 1030, "2025-01-01", 5400, 91, 90),
				sheet(2, 8, 1030, "2025-01-01", 1800),
			},
			SupplementalUsers: map[int64]model.User{
				7: {ID: 7, FirstName: "Alice", LastName: "Archer"},
			},
		},
		users: map[int64]model.User{
			8: {ID: 8, FirstName: "Bob", LastName: "Baker"},
		},
		files: map[int64]model.File{
			90: {ID: 90, FileName: "receipt.jpg"},
			91: {ID: 91, FileName: "site.png"},
		},
	}
}

var testRange = daterange.Range{
	Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
}

func observedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func entryIDs(entries []model.EnrichedTimesheet) []int64 {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

// --- Tests ---

func TestRun_NoFilterEnrichesEverything(t *testing.T) {
	src := newSource()
	result, err := NewPipeline(src, nil).Run(context.Background(), Request{Range: testRange})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Resolution.Kind != jobcode.NoFilter {
		t.Errorf("Kind = %v, want NoFilter", result.Resolution.Kind)
	}
	if got := entryIDs(result.Entries); !slices.Equal(got, []int64{1, 2, 3}) {
		t.Errorf("entry ids = %v, want [1 2 3]", got)
	}
	if result.RunID == "" {
		t.Error("RunID is empty")
	}

	filter := src.timesheetFilters[0]
	if filter.StartDate != "2025-01-01" || filter.EndDate != "2025-01-07" {
		t.Errorf("filter dates = %s..%s, want 2025-01-01..2025-01-07", filter.StartDate, filter.EndDate)
	}
	if filter.JobcodeIDs != nil {
		t.Errorf("filter JobcodeIDs = %v, want nil", filter.JobcodeIDs)
	}

	first := result.Entries[0]
	if first.EmployeeName() != "Alice Archer" {
		t.Errorf("entry 1 employee = %q, want %q", first.EmployeeName(), "Alice Archer")
	}
	if first.JobPath != "MMC › GENERAL LABOR" {
		t.Errorf("entry 1 path = %q, want %q", first.JobPath, "MMC › GENERAL LABOR")
	}
	// Files keep attachment order.
	if len(first.Files) != 2 || first.Files[0].ID != 91 || first.Files[1].ID != 90 {
		t.Errorf("entry 1 files = %+v, want [91 90]", first.Files)
	}

	// Only the user missing from supplemental data is fetched.
	if len(src.userCalls) != 1 || !slices.Equal(src.userCalls[0], []int64{8}) {
		t.Errorf("user calls = %v, want [[8]]", src.userCalls)
	}
	if result.Entries[1].EmployeeName() != "Bob Baker" {
		t.Errorf("entry 2 employee = %q, want %q", result.Entries[1].EmployeeName(), "Bob Baker")
	}
	if len(src.fileCalls) != 1 || !slices.Equal(src.fileCalls[0], []int64{90, 91}) {
		t.Errorf("file calls = %v, want [[90 91]]", src.fileCalls)
	}
}

func TestRun_ParentFilterIncludesChildEntries(t *testing.T) {
	src := newSource()
	result, err := NewPipeline(src, nil).Run(context.Background(), Request{
		Range:   testRange,
		Project: jobcode.Reference{Text: "25839"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !slices.Contains(src.timesheetFilters[0].JobcodeIDs, 1030) {
		t.Errorf("filter JobcodeIDs = %v, want to include child 1030", src.timesheetFilters[0].JobcodeIDs)
	}
	if got := entryIDs(result.Entries); !slices.Equal(got, []int64{1, 2}) {
		t.Errorf("entry ids = %v, want [1 2]", got)
	}
	for _, e := range result.Entries {
		if e.JobPath != "MMC › GENERAL LABOR" {
			t.Errorf("entry %d path = %q, want %q", e.ID, e.JobPath, "MMC › GENERAL LABOR")
		}
	}
}

func TestRun_EmptyRange(t *testing.T) {
	src := newSource()
	src.batch = model.TimesheetBatch{}

	result, err := NewPipeline(src, nil).Run(context.Background(), Request{Range: testRange})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Entries == nil || len(result.Entries) != 0 {
		t.Errorf("Entries = %#v, want empty non-nil slice", result.Entries)
	}
	if len(src.userCalls) != 0 || len(src.fileCalls) != 0 {
		t.Errorf("lookups ran for an empty range: users=%v files=%v", src.userCalls, src.fileCalls)
	}
}

func TestRun_NotFoundProject(t *testing.T) {
	src := newSource()
	result, err := NewPipeline(src, nil).Run(context.Background(), Request{
		Range:   testRange,
		Project: jobcode.Reference{Text: "no such project"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Resolution.Kind != jobcode.NotFound {
		t.Errorf("Kind = %v, want NotFound", result.Resolution.Kind)
	}
	if len(result.Entries) != 0 {
		t.Errorf("Entries = %d, want 0", len(result.Entries))
	}
	if len(src.timesheetFilters) != 0 {
		t.Error("timesheets fetched for an unknown project")
	}
}

func TestRun_AmbiguousProject(t *testing.T) {
	_, err := NewPipeline(newSource(), nil).Run(context.Background(), Request{
		Range:   testRange,
		Project: jobcode.Reference{Text: "dredg"},
		Policy:  jobcode.RequireSingle,
	})

	var ambiguous *jobcode.AmbiguousError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("Run() error = %v, want *jobcode.AmbiguousError", err)
	}
	if len(ambiguous.Candidates) != 2 {
		t.Errorf("Candidates = %v, want 2", ambiguous.Candidates)
	}
}

func TestRun_IncludeAllPolicy(t *testing.T) {
	src := newSource()
	_, err := NewPipeline(src, nil).Run(context.Background(), Request{
		Range:   testRange,
		Project: jobcode.Reference{Text: "dredg"},
		Policy:  jobcode.IncludeAll,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := src.timesheetFilters[0].JobcodeIDs; !slices.Equal(got, []int64{501, 600}) {
		t.Errorf("JobcodeIDs = %v, want [501 600]", got)
	}
}

func TestRun_PartialFileFailure(t *testing.T) {
	src := newSource()
	src.filesErr = errors.New("files endpoint unavailable")
	logger, logs := observedLogger(zapcore.WarnLevel)

	result, err := NewPipeline(src, logger).Run(context.Background(), Request{Range: testRange})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Entries) != 3 {
		t.Fatalf("Entries = %d, want 3", len(result.Entries))
	}
	for _, e := range result.Entries {
		if len(e.Files) != 0 {
			t.Errorf("entry %d files = %v, want none", e.ID, e.Files)
		}
		if e.Files == nil {
			t.Errorf("entry %d Files is nil, want empty slice", e.ID)
		}
	}
	if result.Entries[0].User == nil || result.Entries[0].JobPath != "MMC › GENERAL LABOR" {
		t.Errorf("entry 1 lost other enrichment: %+v", result.Entries[0])
	}

	if len(result.Warnings) != 1 || result.Warnings[0].Stage != StageFiles {
		t.Errorf("Warnings = %+v, want one files warning", result.Warnings)
	}
	if n := logs.FilterMessage("lookup failed; continuing without it").Len(); n != 1 {
		t.Errorf("warn entries = %d, want 1", n)
	}
}

func TestRun_UserFetchFailureKeepsSupplementalUsers(t *testing.T) {
	src := newSource()
	src.usersErr = errors.New("users endpoint unavailable")

	result, err := NewPipeline(src, nil).Run(context.Background(), Request{Range: testRange})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := result.Entries[0].EmployeeName(); got != "Alice Archer" {
		t.Errorf("entry 1 employee = %q, want %q", got, "Alice Archer")
	}
	if result.Entries[1].User != nil {
		t.Errorf("entry 2 user = %+v, want nil", result.Entries[1].User)
	}
	if got := result.Entries[1].EmployeeName(); got != model.UnknownLabel {
		t.Errorf("entry 2 employee = %q, want %q", got, model.UnknownLabel)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Stage != StageUsers {
		t.Errorf("Warnings = %+v, want one users warning", result.Warnings)
	}
}

func TestRun_BackfillsMissingJobcodesAndParents(t *testing.T) {
	src := newSource()
	src.batch.Timesheets = append(src.batch.Timesheets, sheet(4, 7, 900, "2025-01-03", 600))
	src.jobcodesByID = codes(jc(900, 901, "Old Job"), jc(901, 0, "Archive"))

	result, err := NewPipeline(src, nil).Run(context.Background(), Request{Range: testRange})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	last := result.Entries[len(result.Entries)-1]
	if last.JobPath != "Archive › Old Job" {
		t.Errorf("path = %q, want %q", last.JobPath, "Archive › Old Job")
	}
	if len(src.byIDCalls) != 2 {
		t.Errorf("byID calls = %v, want 2 rounds", src.byIDCalls)
	}
}

func TestRun_BackfillsExplicitJobcodeID(t *testing.T) {
	src := newSource()
	src.batch.Timesheets = append(src.batch.Timesheets, sheet(4, 7, 700, "2025-01-03", 900))
	src.jobcodesByID = codes(jc(700, 600, "Hidden Barge"))

	result, err := NewPipeline(src, nil).Run(context.Background(), Request{
		Range:   testRange,
		Project: jobcode.Reference{ID: 700},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Resolution.Kind != jobcode.Matched {
		t.Fatalf("Kind = %v, want Matched", result.Resolution.Kind)
	}
	if got := entryIDs(result.Entries); !slices.Equal(got, []int64{4}) {
		t.Errorf("entries = %v, want [4]", got)
	}
	if got := result.Entries[0].JobPath; got != "Dredge Fleet › Hidden Barge" {
		t.Errorf("path = %q, want %q", got, "Dredge Fleet › Hidden Barge")
	}
}

func TestRun_ExplicitJobcodeBackfillFailureIsNotFound(t *testing.T) {
	src := newSource()
	src.byIDErr = errors.New("jobcodes endpoint unavailable")
	logger, logs := observedLogger(zapcore.WarnLevel)

	result, err := NewPipeline(src, logger).Run(context.Background(), Request{
		Range:   testRange,
		Project: jobcode.Reference{ID: 700},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Resolution.Kind != jobcode.NotFound {
		t.Errorf("Kind = %v, want NotFound", result.Resolution.Kind)
	}
	if logs.FilterMessage("explicit jobcode backfill failed").Len() != 1 {
		t.Errorf("expected a backfill warning, got %v", logs.All())
	}
	if len(src.timesheetFilters) != 0 {
		t.Errorf("timesheets fetched for an unknown project: %v", src.timesheetFilters)
	}
}

func TestResolve_BackfillsExplicitJobcodeID(t *testing.T) {
	src := newSource()
	src.jobcodesByID = codes(jc(700, 600, "Hidden Barge"))

	res, dir, err := NewPipeline(src, nil).Resolve(context.Background(), jobcode.Reference{Text: "700"}, jobcode.RequireSingle)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Kind != jobcode.Matched || !slices.Equal(res.IDs, []int64{700}) {
		t.Errorf("resolution = %+v, want Matched [700]", res)
	}
	if dir == nil || !dir.Has(700) {
		t.Error("directory should include the backfilled jobcode")
	}
}

func TestRun_SupplementalJobcodesAvoidBackfill(t *testing.T) {
	src := newSource()
	src.batch.Timesheets = []model.Timesheet{sheet(4, 7, 950, "2025-01-03", 600)}
	src.batch.SupplementalJobcodes = codes(jc(950, 25839, "Night Shift"))

	result, err := NewPipeline(src, nil).Run(context.Background(), Request{Range: testRange})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := result.Entries[0].JobPath; got != "MMC › Night Shift" {
		t.Errorf("path = %q, want %q", got, "MMC › Night Shift")
	}
	if len(src.byIDCalls) != 0 {
		t.Errorf("byID calls = %v, want none", src.byIDCalls)
	}
}

func TestRun_BackfillFailureIsTolerated(t *testing.T) {
	src := newSource()
	src.batch.Timesheets = []model.Timesheet{sheet(4, 7, 900, "2025-01-03", 600)}
	src.byIDErr = errors.New("jobcodes endpoint unavailable")

	result, err := NewPipeline(src, nil).Run(context.Background(), Request{Range: testRange})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := result.Entries[0].JobPath; got != model.UnknownLabel {
		t.Errorf("path = %q, want %q", got, model.UnknownLabel)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Stage != StageBackfill {
		t.Errorf("Warnings = %+v, want one backfill warning", result.Warnings)
	}
}

func TestRun_UpstreamFailures(t *testing.T) {
	upstream := errors.New("502 bad gateway")

	tests := []struct {
		name      string
		setup     func(*fakeSource)
		wantStage Stage
	}{
		{"jobcodes", func(f *fakeSource) { f.jobcodesErr = upstream }, StageJobcodes},
		{"timesheets", func(f *fakeSource) { f.timesheetsErr = upstream }, StageTimesheets},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newSource()
			tt.setup(src)

			_, err := NewPipeline(src, nil).Run(context.Background(), Request{Range: testRange})

			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("Run() error = %v, want *StageError", err)
			}
			if stageErr.Stage != tt.wantStage {
				t.Errorf("Stage = %q, want %q", stageErr.Stage, tt.wantStage)
			}
			if !errors.Is(err, upstream) {
				t.Errorf("error does not wrap the upstream cause: %v", err)
			}
		})
	}
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(newSource(), nil).Run(ctx, Request{Range: testRange})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		t.Errorf("cancellation reported as stage error: %v", err)
	}
	if !IsCanceled(err) {
		t.Error("IsCanceled() = false, want true")
	}
}

func TestRun_CanceledDuringLookups(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := newSource()
	src.onFiles = cancel
	src.filesErr = context.Canceled

	_, err := NewPipeline(src, nil).Run(ctx, Request{Range: testRange})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRun_Deterministic(t *testing.T) {
	first, err := NewPipeline(newSource(), nil).Run(context.Background(), Request{Range: testRange})
	if err != nil {
		t.Fatal(err)
	}

	src := newSource()
	slices.Reverse(src.batch.Timesheets)
	second, err := NewPipeline(src, nil).Run(context.Background(), Request{Range: testRange})
	if err != nil {
		t.Fatal(err)
	}

	if len(first.Entries) != len(second.Entries) {
		t.Fatalf("entry counts differ: %d vs %d", len(first.Entries), len(second.Entries))
	}
	for i := range first.Entries {
		a, b := first.Entries[i], second.Entries[i]
		if a.ID != b.ID || a.JobPath != b.JobPath || a.EmployeeName() != b.EmployeeName() {
			t.Errorf("entry %d differs: %d %q %q vs %d %q %q",
				i, a.ID, a.JobPath, a.EmployeeName(), b.ID, b.JobPath, b.EmployeeName())
		}
	}
	if first.RunID == second.RunID {
		t.Error("runs share a RunID")
	}
}

func TestRun_LogsCarryRunID(t *testing.T) {
	logger, logs := observedLogger(zapcore.InfoLevel)

	result, err := NewPipeline(newSource(), logger).Run(context.Background(), Request{Range: testRange})
	if err != nil {
		t.Fatal(err)
	}

	finished := logs.FilterMessage("enrichment finished").All()
	if len(finished) != 1 {
		t.Fatalf("finished entries = %d, want 1", len(finished))
	}
	if got := finished[0].ContextMap()["run_id"]; got != result.RunID {
		t.Errorf("run_id = %v, want %q", got, result.RunID)
	}
}
