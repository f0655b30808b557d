package provider

import (
	"github.com/agentstation/utc"

	"github.com/meTasking/sync/pkg/errors"
	"github.com/meTasking/sync/pkg/interval"
)

// Options is the configuration surface shared by every backend.
type Options struct {
	// Since and Until bound the time window of the run. Providers apply
	// them before dumping; the indexer re-checks them defensively.
	Since *utc.Time
	Until *utc.Time

	// DryRun computes and queues changes but skips the apply step,
	// leaving the backing store untouched.
	DryRun bool

	// AllowDelete controls whether delete changes are performed.
	// Deletes are always computed by the reconciler; when false they
	// are suppressed at apply time and reported as skipped.
	AllowDelete bool
}

// Validate checks the option invariants.
func (o *Options) Validate() error {
	if o.Since != nil && o.Until != nil && o.Since.After(*o.Until) {
		return errors.NewValidationError("since", o.Since, "since must not be after until")
	}
	return nil
}

// InBounds reports whether a record overlaps the configured window.
// Records ending before since or starting after until are out.
func (o *Options) InBounds(rec *interval.Record) bool {
	if o.Since != nil && rec.End.Before(*o.Since) {
		return false
	}
	if o.Until != nil && rec.Start.After(*o.Until) {
		return false
	}
	return true
}
