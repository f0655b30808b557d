// Package reconcile implements the diff engine: a fingerprint index
// built over both sides of a run and the matching algorithm that
// classifies every record as missing, modified, or extra and emits the
// create/update/delete stream for the destination.
package reconcile

import (
	"fmt"

	"github.com/meTasking/sync/pkg/errors"
	"github.com/meTasking/sync/pkg/interval"
)

// Side tags which dataset a record belongs to.
type Side int

// The two sides of a reconciliation run.
const (
	Source Side = iota
	Destination
)

// String returns the string representation of a side.
func (s Side) String() string {
	if s == Source {
		return "source"
	}
	return "destination"
}

// Ref addresses one record in the index: ids are only unique within a
// side, so the side tag is part of the address.
type Ref struct {
	Side Side
	ID   string
}

// Index maps rounded-start keys to the set of refs sharing that key.
// It is built once over the union of both sides and never mutated after
// matching begins, except to register records the reconciler
// synthesizes so that later lookups see them as present.
type Index struct {
	accuracy interval.Accuracy
	records  map[Ref]*interval.Record
	byStart  map[int64]map[Ref]struct{}
	order    [2][]string
}

// NewIndex creates an empty index for the given accuracy.
func NewIndex(accuracy interval.Accuracy) (*Index, error) {
	if !accuracy.IsValid() {
		return nil, errors.NewValidationError("accuracy", accuracy, "unknown accuracy")
	}
	return &Index{
		accuracy: accuracy,
		records:  make(map[Ref]*interval.Record),
		byStart:  make(map[int64]map[Ref]struct{}),
	}, nil
}

// Accuracy returns the accuracy the index rounds with.
func (x *Index) Accuracy() interval.Accuracy {
	return x.accuracy
}

// Insert registers a record on a side. It validates the record, rejects
// duplicate ids within the side, and rejects two same-side records that
// round to an identical (start, end) fingerprint: such records are
// indistinguishable to the matcher, and the accuracy setting is the
// user's lever to avoid the collision.
func (x *Index) Insert(side Side, rec *interval.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	ref := Ref{Side: side, ID: rec.ID}
	if _, ok := x.records[ref]; ok {
		return errors.NewIntegrityError("duplicate_id",
			fmt.Sprintf("duplicate record id on %s side: %s", side, rec.ID), rec.ID)
	}

	fp := x.accuracy.Fingerprint(rec)
	for other := range x.byStart[fp.Start] {
		if other.Side != side {
			continue
		}
		if x.accuracy.Key(x.records[other].End.Time) != fp.End {
			continue
		}
		return errors.NewIntegrityError("duplicate_fingerprint",
			fmt.Sprintf("records %s and %s on the %s side share the same rounded start and end time; "+
				"the rounded (start, end) pair is the matching fingerprint, so indistinguishable "+
				"records are not supported (raise the accuracy to separate them)",
				rec.ID, other.ID, side),
			rec.ID, other.ID)
	}

	x.records[ref] = rec
	if x.byStart[fp.Start] == nil {
		x.byStart[fp.Start] = make(map[Ref]struct{})
	}
	x.byStart[fp.Start][ref] = struct{}{}
	x.order[side] = append(x.order[side], rec.ID)
	return nil
}

// Get returns the record addressed by (side, id).
func (x *Index) Get(side Side, id string) (*interval.Record, bool) {
	rec, ok := x.records[Ref{Side: side, ID: id}]
	return rec, ok
}

// IDs returns the ids of one side in insertion order.
func (x *Index) IDs(side Side) []string {
	ids := make([]string, len(x.order[side]))
	copy(ids, x.order[side])
	return ids
}

// Len returns the number of records indexed for one side.
func (x *Index) Len(side Side) int {
	return len(x.order[side])
}

// HasID reports whether any record on either side uses the given id.
// The synthetic id generator probes this to guarantee fresh ids.
func (x *Index) HasID(id string) bool {
	if _, ok := x.records[Ref{Side: Source, ID: id}]; ok {
		return true
	}
	_, ok := x.records[Ref{Side: Destination, ID: id}]
	return ok
}

// Match returns the records on the given side whose fingerprint equals
// fp. Matching is two-dimensional: candidates share the rounded start
// bucket and are filtered by rounded end.
func (x *Index) Match(side Side, fp interval.Fingerprint) []*interval.Record {
	var matches []*interval.Record
	for ref := range x.byStart[fp.Start] {
		if ref.Side != side {
			continue
		}
		rec := x.records[ref]
		if x.accuracy.Key(rec.End.Time) != fp.End {
			continue
		}
		matches = append(matches, rec)
	}
	return matches
}
