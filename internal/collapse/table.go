package collapse

import "github.com/kozaktomas/face-collapse/internal/facekey"

// Table counts how many faces share each canonical key.
// A Table lives for one run and is never shared between runs.
type Table struct {
	counts map[facekey.Key]int
	order  []facekey.Key // first-seen order, for deterministic output
}

// GroupCount is one entry of a Table
type GroupCount struct {
	Key   facekey.Key `json:"key"`
	Count int         `json:"count"`
}

func NewTable() *Table {
	return &Table{counts: make(map[facekey.Key]int)}
}

// Add increments the count of key and returns the new count.
func (t *Table) Add(key facekey.Key) int {
	n, ok := t.counts[key]
	if !ok {
		t.order = append(t.order, key)
	}
	n++
	t.counts[key] = n
	return n
}

// Count returns the number of faces seen with key (0 if none).
func (t *Table) Count(key facekey.Key) int {
	return t.counts[key]
}

// Len returns the number of distinct keys
func (t *Table) Len() int {
	return len(t.order)
}

// Total returns the number of faces added
func (t *Table) Total() int {
	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}

// Duplicates returns every key seen more than once, in first-seen order.
func (t *Table) Duplicates() []GroupCount {
	var out []GroupCount
	for _, k := range t.order {
		if n := t.counts[k]; n > 1 {
			out = append(out, GroupCount{Key: k, Count: n})
		}
	}
	return out
}
