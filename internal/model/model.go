// Package model defines the typed records shared by the timesheet pipeline.
//
// Values in this package are already validated: the API client converts and
// checks upstream payloads before handing them to the core, so nothing here
// carries loosely-typed maps.
package model

import (
	"strings"
	"time"
)

// UnknownLabel is rendered wherever a referenced record could not be resolved.
const UnknownLabel = "Unknown"

// JobcodeType classifies a job code.
type JobcodeType string

// Job code types reported by the time-tracking service.
const (
	JobcodeRegular       JobcodeType = "regular"
	JobcodePaidTimeOff   JobcodeType = "pto"
	JobcodePaidBreak     JobcodeType = "paid_break"
	JobcodeUnpaidBreak   JobcodeType = "unpaid_break"
	JobcodeUnpaidTimeOff JobcodeType = "unpaid_time_off"
)

// Valid reports whether t is one of the known job code types.
func (t JobcodeType) Valid() bool {
	switch t {
	case JobcodeRegular, JobcodePaidTimeOff, JobcodePaidBreak, JobcodeUnpaidBreak, JobcodeUnpaidTimeOff:
		return true
	default:
		return false
	}
}

// Jobcode is a node in the hierarchical project/task tree.
// ParentID is zero for root nodes.
type Jobcode struct {
	ID          int64       `json:"id"                   yaml:"id"`
	ParentID    int64       `json:"parent_id,omitempty"  yaml:"parent_id,omitempty"`
	Name        string      `json:"name"                 yaml:"name"`
	ShortCode   string      `json:"short_code,omitempty" yaml:"short_code,omitempty"`
	Type        JobcodeType `json:"type"                 yaml:"type"`
	Active      bool        `json:"active"               yaml:"active"`
	HasChildren bool        `json:"has_children"         yaml:"has_children"`
}

// HasParent reports whether the job code points at a parent.
func (j Jobcode) HasParent() bool {
	return j.ParentID != 0
}

// Label returns "name shortCode", or just the name when there is no short code.
func (j Jobcode) Label() string {
	if j.ShortCode == "" {
		return j.Name
	}
	return j.Name + " " + j.ShortCode
}

// Timesheet is a single logged time record.
type Timesheet struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	JobcodeID     int64     `json:"jobcode_id"`
	Start         time.Time `json:"start,omitzero"`
	End           time.Time `json:"end,omitzero"`
	Duration      int64     `json:"duration"` // seconds
	Date          string    `json:"date"`     // YYYY-MM-DD
	Notes         string    `json:"notes,omitempty"`
	AttachedFiles []int64   `json:"attached_files,omitempty"`
	LastModified  time.Time `json:"last_modified,omitzero"`
	OnTheClock    bool      `json:"on_the_clock,omitempty"`
}

// User is an employee or vendor identity.
type User struct {
	ID             int64  `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email,omitempty"`
	EmployeeNumber int64  `json:"employee_number,omitempty"`
	Active         bool   `json:"active"`
}

// DisplayName joins first and last name. Returns "" when both are empty.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// File is attachment metadata.
type File struct {
	ID               int64   `json:"id"`
	FileName         string  `json:"file_name"`
	Size             int64   `json:"size"`
	URL              string  `json:"url,omitempty"`
	UploadedBy       int64   `json:"uploaded_by,omitempty"`
	LinkedTimesheets []int64 `json:"linked_timesheets,omitempty"`
}

// EnrichedTimesheet is a timesheet with its user, job code and files resolved.
// User and Jobcode are nil when the lookup failed.
type EnrichedTimesheet struct {
	Timesheet
	User    *User    `json:"user,omitempty"`
	Jobcode *Jobcode `json:"jobcode,omitempty"`
	JobPath string   `json:"job_path"`
	Files   []File   `json:"files"`
}

// EmployeeName returns the resolved user's display name or UnknownLabel.
func (e EnrichedTimesheet) EmployeeName() string {
	if e.User == nil {
		return UnknownLabel
	}
	if name := e.User.DisplayName(); name != "" {
		return name
	}
	return UnknownLabel
}

// JobcodeFilter narrows a bulk job code listing.
type JobcodeFilter struct {
	// Active is "yes", "no" or "both"; empty means "both".
	Active string
}

// TimesheetFilter selects timesheets by date range and job codes.
// An empty JobcodeIDs slice means all job codes.
type TimesheetFilter struct {
	StartDate  string // YYYY-MM-DD, inclusive
	EndDate    string // YYYY-MM-DD, inclusive
	JobcodeIDs []int64
}

// TimesheetBatch is the result of a timesheet fetch, including any related
// records the service bundled alongside it.
type TimesheetBatch struct {
	Timesheets           []Timesheet
	SupplementalUsers    map[int64]User
	SupplementalJobcodes map[int64]Jobcode
}
