// Package interval defines the work-interval record exchanged between
// providers and the reconciler, the rounding accuracies used to
// fingerprint records across platforms, and the ordered indexed
// collection each side uses to hold its working set.
package interval

import (
	"time"

	"github.com/agentstation/utc"

	"github.com/meTasking/sync/pkg/errors"
)

// Action tags a record that represents a pending change. Pristine
// records carry ActionNone; a none-tagged record must never appear in a
// change stream.
type Action string

// Record actions.
const (
	ActionNone   Action = ""
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// IsValid returns true if the action is one of the defined tags.
func (a Action) IsValid() bool {
	switch a {
	case ActionNone, ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// String returns the string representation of an action.
func (a Action) String() string {
	if a == ActionNone {
		return "none"
	}
	return string(a)
}

// Record represents one contiguous span of work.
//
// The ID is opaque and unique within one side's collection only; ids
// are meaningless across sides, which is why matching uses rounded
// (start, end) fingerprints instead.
type Record struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`                                   // grouping label, e.g. a task or issue key
	Description string   `json:"description,omitempty" yaml:"description,omitempty"` // optional free text
	Start       utc.Time `json:"start" yaml:"start"`
	End         utc.Time `json:"end" yaml:"end"`
	Action      Action   `json:"action,omitempty" yaml:"action,omitempty"`
}

// Validate checks the record invariants. A record whose end precedes
// its start is a validation failure, never silently fixed.
func (r *Record) Validate() error {
	if r.ID == "" {
		return errors.NewValidationError("id", r.ID, "record id must not be empty")
	}
	if r.End.Before(r.Start) {
		return errors.NewValidationError("end", r.End, "end must not be before start")
	}
	if !r.Action.IsValid() {
		return errors.NewValidationError("action", r.Action, "unknown action tag")
	}
	return nil
}

// Clone returns a deep copy of the record. Records handed across the
// side boundary are always cloned so later mutation on one side cannot
// corrupt the other.
func (r *Record) Clone() *Record {
	clone := *r
	return &clone
}

// Tagged returns a clone of the record carrying the given action tag.
func (r *Record) Tagged(action Action) *Record {
	clone := r.Clone()
	clone.Action = action
	return clone
}

// Time wraps a time value as the UTC-normalized timestamp type used by
// records. Normalizing up front means a +02:00 and a Z rendering of the
// same instant produce identical fingerprints.
func Time(t time.Time) utc.Time {
	return utc.Time{Time: t.UTC()}
}

// timeLayouts are the accepted timestamp renderings, in probe order.
// Platforms disagree on sub-second precision and on whether a zone
// offset is present; zoneless timestamps are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700", // Jira renders offsets without a colon
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses a platform timestamp into the UTC-normalized type.
func ParseTime(s string) (utc.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Time(t), nil
		}
	}
	return utc.Time{}, errors.NewValidationError("time", s, "unrecognized timestamp format")
}
