package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meTasking/sync/pkg/errors"
	"github.com/meTasking/sync/pkg/interval"
)

func record(id string, start time.Time, duration time.Duration) *interval.Record {
	return &interval.Record{
		ID:    id,
		Name:  "task " + id,
		Start: interval.Time(start),
		End:   interval.Time(start.Add(duration)),
	}
}

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestNewIndex(t *testing.T) {
	_, err := NewIndex(interval.Accuracy("fortnight"))
	require.Error(t, err)

	index, err := NewIndex(interval.AccuracyMinute)
	require.NoError(t, err)
	assert.Equal(t, interval.AccuracyMinute, index.Accuracy())
}

func TestIndexInsert(t *testing.T) {
	index, err := NewIndex(interval.AccuracyMinute)
	require.NoError(t, err)

	require.NoError(t, index.Insert(Source, record("a", baseTime, 30*time.Minute)))
	require.NoError(t, index.Insert(Destination, record("b", baseTime.Add(time.Hour), 30*time.Minute)))

	got, ok := index.Get(Source, "a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)

	_, ok = index.Get(Destination, "a")
	assert.False(t, ok, "ids are addressed per side")

	assert.Equal(t, 1, index.Len(Source))
	assert.Equal(t, 1, index.Len(Destination))
	assert.True(t, index.HasID("a"))
	assert.True(t, index.HasID("b"))
	assert.False(t, index.HasID("c"))
}

func TestIndexInsertDuplicateID(t *testing.T) {
	index, err := NewIndex(interval.AccuracyMinute)
	require.NoError(t, err)

	require.NoError(t, index.Insert(Source, record("a", baseTime, 30*time.Minute)))

	err = index.Insert(Source, record("a", baseTime.Add(time.Hour), 30*time.Minute))
	require.Error(t, err)
	assert.True(t, errors.IsIntegrityError(err))

	// The same id on the other side is fine, the platforms have
	// unrelated id spaces.
	require.NoError(t, index.Insert(Destination, record("a", baseTime, 30*time.Minute)))
}

func TestIndexInsertFingerprintCollision(t *testing.T) {
	index, err := NewIndex(interval.AccuracyMinute)
	require.NoError(t, err)

	require.NoError(t, index.Insert(Source, record("a", baseTime, 30*time.Minute)))

	// Differs only below the minute, so it rounds onto record a.
	err = index.Insert(Source, record("b", baseTime.Add(10*time.Second), 30*time.Minute+5*time.Second))
	require.Error(t, err)

	var integrity *errors.IntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, "duplicate_fingerprint", integrity.Kind)
	assert.ElementsMatch(t, []string{"a", "b"}, integrity.IDs, "the error names both colliding records")

	// The same pair is distinguishable at second accuracy.
	fine, err := NewIndex(interval.AccuracySecond)
	require.NoError(t, err)
	require.NoError(t, fine.Insert(Source, record("a", baseTime, 30*time.Minute)))
	require.NoError(t, fine.Insert(Source, record("b", baseTime.Add(10*time.Second), 30*time.Minute+5*time.Second)))
}

func TestIndexInsertCrossSideSameFingerprint(t *testing.T) {
	index, err := NewIndex(interval.AccuracyMinute)
	require.NoError(t, err)

	// Identical fingerprints across sides are the normal matched case.
	require.NoError(t, index.Insert(Source, record("a", baseTime, 30*time.Minute)))
	require.NoError(t, index.Insert(Destination, record("x", baseTime, 30*time.Minute)))
}

func TestIndexInsertSameStartDifferentEnd(t *testing.T) {
	index, err := NewIndex(interval.AccuracyMinute)
	require.NoError(t, err)

	// Same rounded start is allowed as long as the rounded ends differ.
	require.NoError(t, index.Insert(Source, record("a", baseTime, 30*time.Minute)))
	require.NoError(t, index.Insert(Source, record("b", baseTime, 45*time.Minute)))
}

func TestIndexMatch(t *testing.T) {
	index, err := NewIndex(interval.AccuracyMinute)
	require.NoError(t, err)

	source := record("a", baseTime.Add(25*time.Second), 30*time.Minute)
	require.NoError(t, index.Insert(Source, source))
	require.NoError(t, index.Insert(Destination, record("x", baseTime, 30*time.Minute+25*time.Second)))
	require.NoError(t, index.Insert(Destination, record("y", baseTime, 45*time.Minute)))

	matches := index.Match(Destination, interval.AccuracyMinute.Fingerprint(source))
	require.Len(t, matches, 1, "only the record with both rounded times equal matches")
	assert.Equal(t, "x", matches[0].ID)

	matches = index.Match(Source, interval.AccuracyMinute.Fingerprint(source))
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ID)

	none := index.Match(Destination, interval.Fingerprint{Start: 0, End: 0})
	assert.Empty(t, none)
}

func TestIndexIDsOrder(t *testing.T) {
	index, err := NewIndex(interval.AccuracyMinute)
	require.NoError(t, err)

	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, index.Insert(Source, record(id, baseTime.Add(time.Duration(i)*time.Hour), 30*time.Minute)))
	}
	assert.Equal(t, []string{"c", "a", "b"}, index.IDs(Source))
	assert.Empty(t, index.IDs(Destination))
}
