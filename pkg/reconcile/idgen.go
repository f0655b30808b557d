package reconcile

import "fmt"

// idGenerator hands out synthetic ids for records created during one
// reconciliation run. Ids are a monotonically incrementing counter with
// a fixed prefix, probed against both sides of the index (including ids
// generated earlier in the same run) until an unused one is found.
type idGenerator struct {
	next  int
	index *Index
}

func newIDGenerator(index *Index) *idGenerator {
	return &idGenerator{index: index}
}

// Next returns a fresh id unused on either side at the time of the call.
func (g *idGenerator) Next() string {
	for {
		id := fmt.Sprintf("new-%d", g.next)
		g.next++
		if !g.index.HasID(id) {
			return id
		}
	}
}
