// Package provider defines the contract between the reconciliation core
// and the concrete time-tracking backends, plus the shared Base
// implementation backends embed: an indexed collection of records, the
// pending-change queue, and per-change apply bookkeeping.
package provider

import (
	"context"
	"slices"

	"github.com/meTasking/sync/pkg/errors"
	"github.com/meTasking/sync/pkg/interval"
)

// ErrUnprocessable marks a change the backend can never apply (for
// example a create whose name is not a valid issue key). Unprocessable
// changes go to their own report bucket instead of the failed one.
var ErrUnprocessable = errors.New("unprocessable change")

// Provider is a concrete time-tracking backend participating in a
// reconciliation run. One run uses exactly two providers: a source and
// a destination.
type Provider interface {
	// ID returns the backend identifier.
	ID() ID

	// Open materializes the provider's working set: a finite, one-shot
	// fetch of all records within the configured time bounds.
	Open(ctx context.Context) error

	// Dump enumerates all records currently held, in discovery order
	// for pristine records and append order for synthesized ones.
	Dump() []*interval.Record

	// AddChanges accepts the synthesized change stream, updates the
	// provider's indexed view immediately (a later Dump reflects
	// pending state), and queues the changes for Apply.
	AddChanges(changes []*interval.Record) error

	// Apply performs the queued changes against the real backing store
	// unless the dry-run flag suppresses it. Idempotent when nothing is
	// queued.
	Apply(ctx context.Context) error

	// Report returns the grouped summary of everything that happened.
	Report() *Report
}

// ID represents the identifier of a provider backend.
type ID string

// String returns the string representation of a provider id.
func (id ID) String() string {
	return string(id)
}

// Available backends.
const (
	MeTaskingID ID = "metasking"
	TogglID     ID = "toggl"
	JiraID      ID = "jira"
	JSONLID     ID = "jsonl"
	SQLiteID    ID = "sqlite"
)

// IDs returns all available provider backends.
func IDs() []ID {
	return []ID{
		MeTaskingID,
		TogglID,
		JiraID,
		JSONLID,
		SQLiteID,
	}
}

// IsValid returns true if the ID is one of the defined backends.
// Uses IDs() to ensure consistency with the authoritative list.
func (id ID) IsValid() bool {
	return slices.Contains(IDs(), id)
}
