package tsheets

import (
	"cmp"
	"context"
	"net/url"
	"slices"

	"go.uber.org/zap"

	"github.com/gorewood/shiftsheet/internal/model"
)

// FetchJobcodes lists every job code matching filter.
func (c *Client) FetchJobcodes(ctx context.Context, filter model.JobcodeFilter) (map[int64]model.Jobcode, error) {
	active := filter.Active
	if active == "" {
		active = "both"
	}
	params := url.Values{"active": {active}, "supplemental_data": {"no"}}
	return c.listJobcodes(ctx, params)
}

// FetchJobcodesByID fetches the given job codes in batches of MaxIDsPerRequest.
// Ids the service does not return are absent from the result.
func (c *Client) FetchJobcodesByID(ctx context.Context, ids []int64) (map[int64]model.Jobcode, error) {
	out := make(map[int64]model.Jobcode)
	for _, chunk := range chunkIDs(distinct(ids), MaxIDsPerRequest) {
		params := url.Values{"ids": {joinIDs(chunk)}, "active": {"both"}, "supplemental_data": {"no"}}
		found, err := c.listJobcodes(ctx, params)
		if err != nil {
			return nil, err
		}
		for id, jc := range found {
			out[id] = jc
		}
	}
	return out, nil
}

func (c *Client) listJobcodes(ctx context.Context, params url.Values) (map[int64]model.Jobcode, error) {
	out := make(map[int64]model.Jobcode)
	err := c.list(ctx, "jobcodes", params, func(page *envelope) error {
		found, err := decodeRecords(c, "jobcodes", page.Results["jobcodes"], wireJobcode.toModel)
		if err != nil {
			return err
		}
		for id, jc := range found {
			out[id] = jc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchTimesheets lists timesheets in the filter's date range, restricted to
// its job codes when any are given. Users and job codes the service bundles
// as supplemental data are returned alongside.
func (c *Client) FetchTimesheets(ctx context.Context, filter model.TimesheetFilter) (*model.TimesheetBatch, error) {
	batch := &model.TimesheetBatch{
		SupplementalUsers:    make(map[int64]model.User),
		SupplementalJobcodes: make(map[int64]model.Jobcode),
	}
	seen := make(map[int64]bool)

	base := url.Values{
		"start_date":        {filter.StartDate},
		"end_date":          {filter.EndDate},
		"supplemental_data": {"yes"},
	}

	chunks := [][]int64{nil}
	if len(filter.JobcodeIDs) > 0 {
		chunks = chunkIDs(distinct(filter.JobcodeIDs), MaxIDsPerRequest)
	}

	for _, chunk := range chunks {
		params := cloneValues(base)
		if chunk != nil {
			params.Set("jobcode_ids", joinIDs(chunk))
		}
		err := c.list(ctx, "timesheets", params, func(page *envelope) error {
			return c.mergeTimesheetPage(page, batch, seen)
		})
		if err != nil {
			return nil, err
		}
	}

	slices.SortFunc(batch.Timesheets, func(a, b model.Timesheet) int {
		return cmp.Compare(a.ID, b.ID)
	})
	c.logger.Info("timesheets fetched",
		zap.String("start_date", filter.StartDate),
		zap.String("end_date", filter.EndDate),
		zap.Int("jobcode_filter", len(filter.JobcodeIDs)),
		zap.Int("timesheets", len(batch.Timesheets)),
	)
	return batch, nil
}

// mergeTimesheetPage folds one page of timesheets and its supplemental data
// into batch, skipping timesheets already seen in an earlier chunk.
func (c *Client) mergeTimesheetPage(page *envelope, batch *model.TimesheetBatch, seen map[int64]bool) error {
	sheets, err := decodeRecords(c, "timesheets", page.Results["timesheets"], wireTimesheet.toModel)
	if err != nil {
		return err
	}
	for id, sheet := range sheets {
		if seen[id] {
			continue
		}
		seen[id] = true
		batch.Timesheets = append(batch.Timesheets, sheet)
	}

	users, err := decodeRecords(c, "users", page.SupplementalData["users"], wireUser.toModel)
	if err != nil {
		return err
	}
	for id, user := range users {
		batch.SupplementalUsers[id] = user
	}

	jobcodes, err := decodeRecords(c, "jobcodes", page.SupplementalData["jobcodes"], wireJobcode.toModel)
	if err != nil {
		return err
	}
	for id, jc := range jobcodes {
		batch.SupplementalJobcodes[id] = jc
	}
	return nil
}

// FetchUsers fetches the given users, active or not.
func (c *Client) FetchUsers(ctx context.Context, ids []int64) (map[int64]model.User, error) {
	out := make(map[int64]model.User)
	for _, chunk := range chunkIDs(distinct(ids), MaxIDsPerRequest) {
		params := url.Values{"ids": {joinIDs(chunk)}, "active": {"both"}, "supplemental_data": {"no"}}
		err := c.list(ctx, "users", params, func(page *envelope) error {
			found, err := decodeRecords(c, "users", page.Results["users"], wireUser.toModel)
			if err != nil {
				return err
			}
			for id, user := range found {
				out[id] = user
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FetchFiles fetches attachment metadata for the given file ids.
func (c *Client) FetchFiles(ctx context.Context, ids []int64) (map[int64]model.File, error) {
	toModel := func(w wireFile) model.File { return w.toModel(c.baseURL) }
	out := make(map[int64]model.File)
	for _, chunk := range chunkIDs(distinct(ids), MaxIDsPerRequest) {
		params := url.Values{"ids": {joinIDs(chunk)}, "active": {"both"}, "supplemental_data": {"no"}}
		err := c.list(ctx, "files", params, func(page *envelope) error {
			found, err := decodeRecords(c, "files", page.Results["files"], toModel)
			if err != nil {
				return err
			}
			for id, file := range found {
				out[id] = file
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// distinct returns the non-zero ids of ids, deduplicated and ascending.
func distinct(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
