package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SchemaVersion is the version of the irrigation record contract stored in "v".
const SchemaVersion = 1

// MaxDuration is the longest accepted run, one day in minutes.
const MaxDuration = 1440

// Status is the lifecycle state of an irrigation record.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Irrigation is one stored irrigation schedule entry.
type Irrigation struct {
	Time          string   `json:"time"`
	Times         []string `json:"times"`
	Days          []string `json:"days"`
	SpecificDates []string `json:"specificDates"`
	Duration      int      `json:"duration"`
	Status        Status   `json:"status"`
	CreatedAt     int64    `json:"createdAt"`
	Version       int      `json:"v"`
}

// Recurring reports whether the record repeats on weekdays.
func (i Irrigation) Recurring() bool {
	return len(i.Days) > 0
}

// ErrInvalidDuration is returned when a duration is neither a number nor a numeric string.
var ErrInvalidDuration = errors.New("invalid duration")

// Minutes is a duration in whole minutes. It decodes from a JSON number or a numeric string.
type Minutes int

func (m *Minutes) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*m = 0
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDuration, err)
		}
		s = strings.TrimSpace(s)
	}
	n, err := parseMinutes(s)
	if err != nil {
		return err
	}
	*m = Minutes(n)
	return nil
}

func parseMinutes(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidDuration, s)
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %q is not a whole number of minutes", ErrInvalidDuration, s)
	}
	return int(f), nil
}

// IrrigationInput is the write payload accepted by the API and the dashboard form.
// The singular fields are aliases kept for older clients.
type IrrigationInput struct {
	Time          string   `json:"time,omitempty"`
	Times         []string `json:"times" validate:"min=1,dive,required"`
	Days          []string `json:"days" validate:"dive,required"`
	SpecificDate  string   `json:"specificDate,omitempty"`
	SpecificDates []string `json:"specificDates" validate:"dive,required"`
	Duration      Minutes  `json:"duration" validate:"min=1,max=1440"`
	Status        Status   `json:"status" validate:"oneof=Pending InProgress Completed"`
}

// Normalize folds the singular aliases into their plural fields, trims every entry,
// and fills in the default status.
func (in IrrigationInput) Normalize() IrrigationInput {
	out := IrrigationInput{
		Times:         prepend(strings.TrimSpace(in.Time), trimAll(in.Times)),
		Days:          trimAll(in.Days),
		SpecificDates: prepend(strings.TrimSpace(in.SpecificDate), trimAll(in.SpecificDates)),
		Duration:      in.Duration,
		Status:        Status(strings.TrimSpace(string(in.Status))),
	}
	if out.Status == "" {
		out.Status = StatusPending
	}
	return out
}

// Record builds the stored form of a normalized input.
func (in IrrigationInput) Record(createdAt int64) Irrigation {
	rec := Irrigation{
		Times:         nonNil(in.Times),
		Days:          nonNil(in.Days),
		SpecificDates: nonNil(in.SpecificDates),
		Duration:      int(in.Duration),
		Status:        in.Status,
		CreatedAt:     createdAt,
		Version:       SchemaVersion,
	}
	if len(rec.Times) > 0 {
		rec.Time = rec.Times[0]
	}
	return rec
}

// Input converts a stored record back into an editable payload.
func (i Irrigation) Input() IrrigationInput {
	return IrrigationInput{
		Times:         append([]string(nil), i.Times...),
		Days:          append([]string(nil), i.Days...),
		SpecificDates: append([]string(nil), i.SpecificDates...),
		Duration:      Minutes(i.Duration),
		Status:        i.Status,
	}
}

func trimAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// prepend puts v in front of list unless v is empty or already present.
func prepend(v string, list []string) []string {
	if v == "" {
		return list
	}
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append([]string{v}, list...)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// storedRecord is the read shape of a stored record. It also accepts records written
// before the versioned schema: singular aliases, string durations, missing arrays and
// missing status.
type storedRecord struct {
	IrrigationInput
	CreatedAt float64 `json:"createdAt"`
}

// DecodeRecord decodes a stored record into the current schema. Older records are
// upgraded the same way write payloads are normalized.
func DecodeRecord(raw []byte) (Irrigation, error) {
	var s storedRecord
	if err := json.Unmarshal(raw, &s); err != nil {
		return Irrigation{}, err
	}
	return s.IrrigationInput.Normalize().Record(int64(s.CreatedAt)), nil
}
