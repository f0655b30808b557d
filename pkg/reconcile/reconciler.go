package reconcile

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meTasking/sync/pkg/errors"
	"github.com/meTasking/sync/pkg/interval"
	"github.com/meTasking/sync/pkg/logging"
)

// Provider is the narrow slice of the provider contract the reconciler
// consumes: a one-shot dump of all records and acceptance of the
// synthesized change stream.
type Provider interface {
	Dump() []*interval.Record
	AddChanges(changes []*interval.Record) error
}

// Reconciler computes the minimal create/update/delete stream that
// makes a destination collection match a source collection, using
// rounded (start, end) fingerprints instead of ids to pair records
// across the two platforms.
type Reconciler struct {
	accuracy interval.Accuracy
	log      zerolog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger used for progress output.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Reconciler) { r.log = log }
}

// New creates a Reconciler for the given accuracy.
func New(accuracy interval.Accuracy, opts ...Option) (*Reconciler, error) {
	if !accuracy.IsValid() {
		return nil, errors.NewValidationError("accuracy", accuracy, "unknown accuracy")
	}
	r := &Reconciler{
		accuracy: accuracy,
		log:      *logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run dumps both sides, matches them by fingerprint, and hands the
// synthesized change stream to the destination. It returns the change
// list it emitted.
//
// Any integrity violation (duplicate id, same-side fingerprint
// collision, ambiguous cross-side match, double-flagged modification)
// aborts the run before anything is handed to the destination.
func (r *Reconciler) Run(source, destination Provider) ([]*interval.Record, error) {
	index, err := NewIndex(r.accuracy)
	if err != nil {
		return nil, err
	}

	for _, rec := range source.Dump() {
		if err := index.Insert(Source, rec); err != nil {
			return nil, err
		}
	}
	for _, rec := range destination.Dump() {
		if err := index.Insert(Destination, rec); err != nil {
			return nil, err
		}
	}

	r.log.Debug().
		Int("source", index.Len(Source)).
		Int("destination", index.Len(Destination)).
		Str("accuracy", r.accuracy.String()).
		Msg("indexed both sides")

	missing, err := r.missing(index)
	if err != nil {
		return nil, err
	}
	modified, extra, err := r.modifiedAndExtra(index)
	if err != nil {
		return nil, err
	}

	changes, err := r.synthesize(index, missing, modified, extra)
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Int("creates", len(missing)).
		Int("updates", len(modified)).
		Int("deletes", len(extra)).
		Msg("reconciliation computed")

	if err := destination.AddChanges(changes); err != nil {
		return nil, err
	}
	return changes, nil
}

// missing returns the ids of source records with no destination
// counterpart, in source order.
func (r *Reconciler) missing(index *Index) ([]string, error) {
	var missing []string
	for _, id := range index.IDs(Source) {
		rec, _ := index.Get(Source, id)
		matches := index.Match(Destination, r.accuracy.Fingerprint(rec))
		if len(matches) > 1 {
			return nil, ambiguous(rec, matches)
		}
		if len(matches) == 0 {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// modifiedAndExtra walks the destination side. A destination record
// whose source counterpart differs in name or description becomes a
// modification: a copy with name and description overwritten from the
// source while start, end, and id stay untouched (start and end are
// part of the matching key, so a matched pair agrees on them by
// construction). A destination record with no counterpart is extra.
func (r *Reconciler) modifiedAndExtra(index *Index) (modified []*interval.Record, extra []string, err error) {
	flagged := make(map[string]struct{})
	for _, id := range index.IDs(Destination) {
		rec, _ := index.Get(Destination, id)
		matches := index.Match(Source, r.accuracy.Fingerprint(rec))
		if len(matches) > 1 {
			return nil, nil, ambiguous(rec, matches)
		}
		if len(matches) == 0 {
			extra = append(extra, id)
			continue
		}

		counterpart := matches[0]
		if rec.Name == counterpart.Name && rec.Description == counterpart.Description {
			continue
		}
		if _, ok := flagged[id]; ok {
			return nil, nil, errors.NewIntegrityError("ambiguous_match",
				fmt.Sprintf("destination record %s flagged as modified more than once", id), id)
		}
		flagged[id] = struct{}{}

		next := rec.Clone()
		next.Name = counterpart.Name
		next.Description = counterpart.Description
		modified = append(modified, next)
	}
	return modified, extra, nil
}

// synthesize turns the three disjoint sets into a change stream:
// updates first, then creates, then deletes, each in collection order,
// so re-runs produce byte-identical output. Every synthesized create is
// registered into the index before the next one is generated; the
// registration is a required side effect that keeps later id probing
// and lookups consistent.
func (r *Reconciler) synthesize(index *Index, missing []string, modified []*interval.Record, extra []string) ([]*interval.Record, error) {
	gen := newIDGenerator(index)
	changes := make([]*interval.Record, 0, len(modified)+len(missing)+len(extra))

	for _, next := range modified {
		changes = append(changes, next.Tagged(interval.ActionUpdate))
	}

	for _, id := range missing {
		original, _ := index.Get(Source, id)
		synthesized := original.Clone()
		synthesized.ID = gen.Next()
		if err := index.Insert(Destination, synthesized); err != nil {
			return nil, err
		}
		changes = append(changes, synthesized.Tagged(interval.ActionCreate))
	}

	for _, id := range extra {
		original, _ := index.Get(Destination, id)
		changes = append(changes, original.Tagged(interval.ActionDelete))
	}

	return changes, nil
}

// ambiguous builds the error for a fingerprint matched by more than one
// candidate on the other side. The original tool silently took the
// first candidate found, which made matching depend on iteration order;
// rejecting keeps the diff deterministic.
func ambiguous(rec *interval.Record, matches []*interval.Record) error {
	ids := make([]string, 0, len(matches)+1)
	ids = append(ids, rec.ID)
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	return errors.NewIntegrityError("ambiguous_match",
		fmt.Sprintf("record %s matches %d records on the other side; "+
			"cross-side duplicate fingerprints cannot be resolved deterministically", rec.ID, len(matches)),
		ids...)
}
