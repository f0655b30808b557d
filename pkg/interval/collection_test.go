package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meTasking/sync/pkg/errors"
)

func testRecord(id string, hour int) *Record {
	return &Record{
		ID:    id,
		Name:  "task " + id,
		Start: Time(time.Date(2024, 3, 1, hour, 0, 0, 0, time.UTC)),
		End:   Time(time.Date(2024, 3, 1, hour, 30, 0, 0, time.UTC)),
	}
}

func TestCollectionAdd(t *testing.T) {
	c := NewCollection()

	require.NoError(t, c.Add(testRecord("a", 9)))
	require.NoError(t, c.Add(testRecord("b", 10)))
	assert.Equal(t, 2, c.Len())

	err := c.Add(testRecord("a", 11))
	require.Error(t, err)
	assert.True(t, errors.IsIntegrityError(err), "duplicate id must be an integrity error")

	var integrity *errors.IntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, "duplicate_id", integrity.Kind)
	assert.Contains(t, integrity.IDs, "a")
}

func TestCollectionOrder(t *testing.T) {
	c := NewCollection()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, c.Add(testRecord(id, 9)))
	}

	assert.Equal(t, []string{"c", "a", "b"}, c.IDs(), "iteration order is insertion order")

	records := c.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "c", records[0].ID)
	assert.Equal(t, "b", records[2].ID)
}

func TestCollectionRemove(t *testing.T) {
	c := NewCollection()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, c.Add(testRecord(id, 9)))
	}

	require.NoError(t, c.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, c.IDs())
	assert.False(t, c.Has("b"))

	// Positions after the removed record must have shifted.
	require.NoError(t, c.Remove("c"))
	assert.Equal(t, []string{"a"}, c.IDs())

	err := c.Remove("missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestCollectionReplace(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add(testRecord("a", 9)))
	require.NoError(t, c.Add(testRecord("b", 10)))

	next := testRecord("a", 9)
	next.Name = "renamed"
	require.NoError(t, c.Replace(next))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, []string{"a", "b"}, c.IDs(), "replace keeps the position")

	err := c.Replace(testRecord("missing", 9))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
