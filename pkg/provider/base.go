package provider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meTasking/sync/pkg/errors"
	"github.com/meTasking/sync/pkg/interval"
	"github.com/meTasking/sync/pkg/logging"
)

// Change is one queued mutation: the action-tagged record handed over
// by the reconciler plus a snapshot of the record it replaces. The
// snapshot is taken before the collection is mutated; backends like
// Jira need it to detect a rename during an update.
type Change struct {
	Record *interval.Record // tagged with create, update, or delete
	Prev   *interval.Record // state being replaced; nil for creates
}

// ApplyFunc performs one change against the real backing store.
// Returning an error wrapping ErrUnprocessable routes the change to the
// unprocessed report bucket; any other error routes it to failed.
type ApplyFunc func(ctx context.Context, change Change) error

// Base carries the state every backend shares: the options, the indexed
// collection of records, the pending and historical change queues, and
// the apply-outcome buckets. Backends embed it and implement Open and
// Apply on top.
type Base struct {
	opts       Options
	collection *interval.Collection

	remaining []Change
	all       []Change

	skipped     []*interval.Record
	failed      []*interval.Record
	unprocessed []*interval.Record

	log zerolog.Logger
}

// NewBase creates the shared provider state.
func NewBase(opts Options) (*Base, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Base{
		opts:       opts,
		collection: interval.NewCollection(),
		log:        *logging.Default(),
	}, nil
}

// Options returns the configured options.
func (b *Base) Options() *Options {
	return &b.opts
}

// SetLogger replaces the logger used for apply progress.
func (b *Base) SetLogger(log zerolog.Logger) {
	b.log = log
}

// Index validates a fetched record and adds it to the collection.
// Records outside the configured time window are dropped silently; the
// window was already applied by the backend, this is the defensive
// re-check. A duplicate id is an integrity error.
func (b *Base) Index(rec *interval.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if !b.opts.InBounds(rec) {
		return nil
	}
	return b.collection.Add(rec)
}

// Dump returns all records currently held, in collection order.
// Pending changes are already reflected.
func (b *Base) Dump() []*interval.Record {
	return b.collection.Records()
}

// Len returns the number of records currently held.
func (b *Base) Len() int {
	return b.collection.Len()
}

// AddChanges accepts a change stream, mutates the collection
// immediately so later dumps see pending state, and queues the changes
// for apply. A none or unknown action tag in the stream is a fatal
// integrity error, never silently dropped.
func (b *Base) AddChanges(changes []*interval.Record) error {
	for _, rec := range changes {
		change, err := b.stage(rec)
		if err != nil {
			return err
		}
		b.remaining = append(b.remaining, change)
		b.all = append(b.all, change)
	}
	return nil
}

// stage applies one change record to the in-memory collection and
// captures the previous state.
func (b *Base) stage(rec *interval.Record) (Change, error) {
	if err := rec.Validate(); err != nil {
		return Change{}, err
	}

	switch rec.Action {
	case interval.ActionCreate:
		if err := b.collection.Add(rec.Tagged(interval.ActionNone)); err != nil {
			return Change{}, err
		}
		return Change{Record: rec}, nil

	case interval.ActionUpdate:
		prev, ok := b.collection.Get(rec.ID)
		if !ok {
			return Change{}, fmt.Errorf("update for unknown record %s: %w", rec.ID, errors.ErrNotFound)
		}
		snapshot := prev.Clone()
		if err := b.collection.Replace(rec.Tagged(interval.ActionNone)); err != nil {
			return Change{}, err
		}
		return Change{Record: rec, Prev: snapshot}, nil

	case interval.ActionDelete:
		prev, ok := b.collection.Get(rec.ID)
		if !ok {
			// Already absent locally; the delete still goes to the
			// backing store, which owns the authoritative copy.
			return Change{Record: rec}, nil
		}
		snapshot := prev.Clone()
		if err := b.collection.Remove(rec.ID); err != nil {
			return Change{}, err
		}
		return Change{Record: rec, Prev: snapshot}, nil

	default:
		return Change{}, errors.NewIntegrityError("unknown_action",
			fmt.Sprintf("record %s carries action %q in the change stream", rec.ID, rec.Action.String()),
			rec.ID)
	}
}

// ApplyPending drains the queued changes through the backend's apply
// function. Dry runs drain without applying. Deletes are suppressed and
// reported as skipped when deletes are disallowed. A failing change is
// logged and bucketed, and the run continues with the next change; one
// bad record never blocks the rest.
func (b *Base) ApplyPending(ctx context.Context, id ID, apply ApplyFunc) error {
	pending := b.remaining
	b.remaining = nil

	if b.opts.DryRun {
		b.log.Info().Str("provider", id.String()).Int("changes", len(pending)).
			Msg("dry run, skipping apply")
		return nil
	}

	for _, change := range pending {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("apply interrupted: %w", errors.ErrCanceled)
		}

		if change.Record.Action == interval.ActionDelete && !b.opts.AllowDelete {
			b.skipped = append(b.skipped, change.Record)
			continue
		}

		if err := apply(ctx, change); err != nil {
			if errors.Is(err, ErrUnprocessable) {
				b.log.Warn().Str("provider", id.String()).Str("record_id", change.Record.ID).
					Err(err).Msg("change cannot be processed")
				b.unprocessed = append(b.unprocessed, change.Record)
			} else {
				b.log.Error().Str("provider", id.String()).Str("record_id", change.Record.ID).
					Err(err).Msg("failed to apply change")
				b.failed = append(b.failed, change.Record)
			}
			continue
		}
	}
	return nil
}

// Report groups everything the run computed and how the apply went.
// Created, updated, and deleted reflect the full computed change
// stream; skipped, failed, and unprocessed are apply outcomes.
func (b *Base) Report() *Report {
	report := &Report{
		Skipped:     b.skipped,
		Failed:      b.failed,
		Unprocessed: b.unprocessed,
	}
	for _, change := range b.all {
		switch change.Record.Action {
		case interval.ActionCreate:
			report.Created = append(report.Created, change.Record)
		case interval.ActionUpdate:
			report.Updated = append(report.Updated, change.Record)
		case interval.ActionDelete:
			report.Deleted = append(report.Deleted, change.Record)
		}
	}
	return report
}
