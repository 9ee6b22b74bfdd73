package tsheets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gorewood/shiftsheet/internal/model"
)

// Wire shapes of the records the API returns. Only the fields the pipeline
// reads are declared. Validation covers ids and references; other fields are
// cleaned up by sanitize so one bad value never costs the whole record.

// sanitizer is implemented by wire records with optional fields to clean.
type sanitizer interface {
	sanitize(v *validator.Validate)
}

type wireJobcode struct {
	ID          int64  `json:"id"          validate:"required,gt=0"`
	ParentID    int64  `json:"parent_id"   validate:"gte=0"`
	Name        string `json:"name"`
	ShortCode   string `json:"short_code"`
	Type        string `json:"type"`
	Active      bool   `json:"active"`
	HasChildren bool   `json:"has_children"`
}

// sanitize names a nameless job code so paths through it stay intact.
func (w *wireJobcode) sanitize(_ *validator.Validate) {
	if w.Name == "" {
		w.Name = model.UnknownLabel
	}
}

func (w wireJobcode) toModel() model.Jobcode {
	return model.Jobcode{
		ID:          w.ID,
		ParentID:    w.ParentID,
		Name:        w.Name,
		ShortCode:   w.ShortCode,
		Type:        model.JobcodeType(w.Type),
		Active:      w.Active,
		HasChildren: w.HasChildren,
	}
}

type wireTimesheet struct {
	ID            int64   `json:"id"             validate:"required,gt=0"`
	UserID        int64   `json:"user_id"        validate:"gte=0"`
	JobcodeID     int64   `json:"jobcode_id"     validate:"gte=0"`
	Start         string  `json:"start"`
	End           string  `json:"end"`
	Duration      int64   `json:"duration"`
	Date          string  `json:"date"`
	Notes         string  `json:"notes"`
	AttachedFiles []int64 `json:"attached_files"`
	LastModified  string  `json:"last_modified"`
	OnTheClock    bool    `json:"on_the_clock"`
}

func (w *wireTimesheet) sanitize(_ *validator.Validate) {
	kept := w.AttachedFiles[:0]
	for _, id := range w.AttachedFiles {
		if id > 0 {
			kept = append(kept, id)
		}
	}
	w.AttachedFiles = kept
}

func (w wireTimesheet) toModel() model.Timesheet {
	date := w.Date
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		date = ""
	}
	return model.Timesheet{
		ID:            w.ID,
		UserID:        w.UserID,
		JobcodeID:     w.JobcodeID,
		Start:         parseTimestamp(w.Start),
		End:           parseTimestamp(w.End),
		Duration:      max(w.Duration, 0),
		Date:          date,
		Notes:         w.Notes,
		AttachedFiles: w.AttachedFiles,
		LastModified:  parseTimestamp(w.LastModified),
		OnTheClock:    w.OnTheClock,
	}
}

type wireUser struct {
	ID             int64  `json:"id"              validate:"required,gt=0"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	EmployeeNumber int64  `json:"employee_number"`
	Active         bool   `json:"active"`
}

// sanitize drops a malformed email and a negative employee number.
func (w *wireUser) sanitize(v *validator.Validate) {
	if w.Email != "" && v.Var(w.Email, "email") != nil {
		w.Email = ""
	}
	w.EmployeeNumber = max(w.EmployeeNumber, 0)
}

func (w wireUser) toModel() model.User {
	return model.User{
		ID:             w.ID,
		FirstName:      w.FirstName,
		LastName:       w.LastName,
		Email:          w.Email,
		EmployeeNumber: w.EmployeeNumber,
		Active:         w.Active,
	}
}

type wireFile struct {
	ID               int64  `json:"id"                  validate:"required,gt=0"`
	FileName         string `json:"file_name"`
	Size             int64  `json:"size"`
	UploadedByUserID int64  `json:"uploaded_by_user_id"`
	LinkedObjects    struct {
		Timesheets []int64 `json:"timesheets"`
	} `json:"linked_objects"`
}

func (w *wireFile) sanitize(_ *validator.Validate) {
	w.Size = max(w.Size, 0)
}

func (w wireFile) toModel(baseURL string) model.File {
	return model.File{
		ID:               w.ID,
		FileName:         w.FileName,
		Size:             w.Size,
		URL:              fmt.Sprintf("%s/files/raw?id=%d", baseURL, w.ID),
		UploadedBy:       w.UploadedByUserID,
		LinkedTimesheets: w.LinkedObjects.Timesheets,
	}
}

// parseTimestamp parses an ISO 8601 timestamp; empty or invalid yields zero.
func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// decodeRecords decodes an id-keyed record map. Optional fields are sanitized
// first; a record that still fails to decode or validate is dropped with a
// warning and the rest are kept.
func decodeRecords[W any, M any](
	c *Client, kind string, raw json.RawMessage, convert func(W) M,
) (map[int64]M, error) {
	out := make(map[int64]M)
	raw = bytes.TrimSpace(raw)
	// Empty result sets arrive as [] rather than {}.
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("[]")) {
		return out, nil
	}

	var records map[string]json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", kind, err)
	}

	for key, data := range records {
		var wire W
		if err := json.Unmarshal(data, &wire); err != nil {
			c.logger.Warn("malformed record dropped", zap.String("kind", kind), zap.String("key", key), zap.Error(err))
			continue
		}
		if s, ok := any(&wire).(sanitizer); ok {
			s.sanitize(c.validate)
		}
		if err := c.validate.Struct(wire); err != nil {
			c.logger.Warn("invalid record dropped", zap.String("kind", kind), zap.String("key", key), zap.Error(err))
			continue
		}
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			c.logger.Warn("record with non-numeric key dropped", zap.String("kind", kind), zap.String("key", key))
			continue
		}
		out[id] = convert(wire)
	}
	return out, nil
}
