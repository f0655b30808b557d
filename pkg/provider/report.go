package provider

import "github.com/meTasking/sync/pkg/interval"

// Report is the operator-facing summary of one side of a run: the
// computed change stream grouped by action kind, plus the apply-outcome
// buckets.
type Report struct {
	Created     []*interval.Record `json:"created,omitempty" yaml:"created,omitempty"`
	Updated     []*interval.Record `json:"updated,omitempty" yaml:"updated,omitempty"`
	Deleted     []*interval.Record `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	Skipped     []*interval.Record `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Failed      []*interval.Record `json:"failed,omitempty" yaml:"failed,omitempty"`
	Unprocessed []*interval.Record `json:"unprocessed,omitempty" yaml:"unprocessed,omitempty"`
}

// Summary holds the per-bucket counts.
type Summary struct {
	Created     int `json:"created" yaml:"created"`
	Updated     int `json:"updated" yaml:"updated"`
	Deleted     int `json:"deleted" yaml:"deleted"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	Failed      int `json:"failed" yaml:"failed"`
	Unprocessed int `json:"unprocessed" yaml:"unprocessed"`
}

// Summary returns the per-bucket counts.
func (r *Report) Summary() Summary {
	return Summary{
		Created:     len(r.Created),
		Updated:     len(r.Updated),
		Deleted:     len(r.Deleted),
		Skipped:     len(r.Skipped),
		Failed:      len(r.Failed),
		Unprocessed: len(r.Unprocessed),
	}
}

// Empty reports whether the run computed no changes at all.
func (r *Report) Empty() bool {
	return len(r.Created) == 0 && len(r.Updated) == 0 && len(r.Deleted) == 0 &&
		len(r.Failed) == 0 && len(r.Unprocessed) == 0
}
