package interval

import (
	"time"

	"github.com/meTasking/sync/pkg/errors"
)

// Accuracy selects how far timestamps are rounded before comparison.
// Rounding absorbs platform-specific fractional-second noise; the
// rounded (start, end) pair is the cross-platform matching key.
type Accuracy string

// Supported accuracies.
const (
	AccuracyMinute      Accuracy = "minute"      // zero out seconds and sub-second
	AccuracySecond      Accuracy = "second"      // zero out sub-second only
	AccuracyMicrosecond Accuracy = "microsecond" // identity at microsecond precision
)

// Accuracies returns all supported accuracies.
func Accuracies() []Accuracy {
	return []Accuracy{AccuracyMinute, AccuracySecond, AccuracyMicrosecond}
}

// IsValid returns true if the accuracy is one of the supported values.
func (a Accuracy) IsValid() bool {
	switch a {
	case AccuracyMinute, AccuracySecond, AccuracyMicrosecond:
		return true
	}
	return false
}

// String returns the string representation of the accuracy.
func (a Accuracy) String() string {
	return string(a)
}

// ParseAccuracy parses an accuracy name. Unknown names are a
// validation error, not a silent default.
func ParseAccuracy(s string) (Accuracy, error) {
	a := Accuracy(s)
	if !a.IsValid() {
		return "", errors.NewValidationError("accuracy", s, "must be one of minute, second, microsecond")
	}
	return a, nil
}

// Round reduces a timestamp to its comparison value. It is a pure
// function of (accuracy, timestamp) and must be applied identically to
// every timestamp compared, including ones synthesized mid-run.
// The accuracy must be valid; callers validate at construction time.
func (a Accuracy) Round(t time.Time) time.Time {
	switch a {
	case AccuracyMinute:
		return t.Truncate(time.Minute)
	case AccuracySecond:
		return t.Truncate(time.Second)
	default:
		return t.Truncate(time.Microsecond)
	}
}

// Key reduces a timestamp to a comparable map key: the rounded instant
// in microseconds since the Unix epoch. Keying on the instant rather
// than the time.Time value keeps records from different zones with the
// same rounded instant on the same index bucket.
func (a Accuracy) Key(t time.Time) int64 {
	return a.Round(t).UnixMicro()
}

// Fingerprint is the rounded (start, end) pair identifying "the same
// interval" across two systems with unrelated id spaces.
type Fingerprint struct {
	Start int64
	End   int64
}

// Fingerprint computes the matching key for a record.
func (a Accuracy) Fingerprint(r *Record) Fingerprint {
	return Fingerprint{
		Start: a.Key(r.Start.Time),
		End:   a.Key(r.End.Time),
	}
}
