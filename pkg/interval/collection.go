package interval

import (
	"fmt"

	"github.com/meTasking/sync/pkg/errors"
)

// Collection is an ordered, duplicate-checked, id-addressable container
// of records. It owns three views that are always mutated together
// inside one operation: the ordered id sequence, the id→position map,
// and the id→record map. The underlying containers are never exposed.
//
// Iteration order is discovery order for pristine records and append
// order for synthesized ones.
type Collection struct {
	sequence []string
	indexes  map[string]int
	records  map[string]*Record
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{
		indexes: make(map[string]int),
		records: make(map[string]*Record),
	}
}

// Add appends a record. Adding a second record with an identical id is
// an integrity error.
func (c *Collection) Add(rec *Record) error {
	if _, ok := c.records[rec.ID]; ok {
		return errors.NewIntegrityError("duplicate_id",
			fmt.Sprintf("duplicate record id: %s", rec.ID), rec.ID)
	}
	c.sequence = append(c.sequence, rec.ID)
	c.indexes[rec.ID] = len(c.sequence) - 1
	c.records[rec.ID] = rec
	return nil
}

// Get returns the record with the given id.
func (c *Collection) Get(id string) (*Record, bool) {
	rec, ok := c.records[id]
	return rec, ok
}

// Has returns true if a record with the given id is present.
func (c *Collection) Has(id string) bool {
	_, ok := c.records[id]
	return ok
}

// Remove deletes the record with the given id, shifting the positions
// of every record after it.
func (c *Collection) Remove(id string) error {
	pos, ok := c.indexes[id]
	if !ok {
		return fmt.Errorf("record %s: %w", id, errors.ErrNotFound)
	}
	c.sequence = append(c.sequence[:pos], c.sequence[pos+1:]...)
	for _, shifted := range c.sequence[pos:] {
		c.indexes[shifted]--
	}
	delete(c.indexes, id)
	delete(c.records, id)
	return nil
}

// Replace swaps the stored record for an existing id, keeping its
// position in the sequence.
func (c *Collection) Replace(rec *Record) error {
	if _, ok := c.records[rec.ID]; !ok {
		return fmt.Errorf("record %s: %w", rec.ID, errors.ErrNotFound)
	}
	c.records[rec.ID] = rec
	return nil
}

// Len returns the number of records held.
func (c *Collection) Len() int {
	return len(c.sequence)
}

// IDs returns a copy of the ordered id sequence.
func (c *Collection) IDs() []string {
	ids := make([]string, len(c.sequence))
	copy(ids, c.sequence)
	return ids
}

// Records returns the records in collection order.
func (c *Collection) Records() []*Record {
	recs := make([]*Record, 0, len(c.sequence))
	for _, id := range c.sequence {
		recs = append(recs, c.records[id])
	}
	return recs
}
