package filter

import (
	"container/heap"
)

// Order is the direction that MergeAndSort sorts ranks in
type Order int

const (
	Ascending Order = iota
	Descending
)

// Code below originated with the container/heap documentation

// rankHeap entries are {rank, list, position}.  Ranks compare in the
// heap's order; list and position always ascend.
type rankHeap struct {
	entries [][3]int
	order   Order
}

func (h *rankHeap) Len() int { return len(h.entries) }
func (h *rankHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if a[0] != b[0] {
		if h.order == Descending {
			return a[0] > b[0]
		}
		return a[0] < b[0]
	}
	if a[1] != b[1] {
		return a[1] < b[1]
	}
	return a[2] < b[2]
}
func (h *rankHeap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *rankHeap) Push(x interface{}) {
	h.entries = append(h.entries, x.([3]int))
}

func (h *rankHeap) Pop() interface{} {
	old := h.entries
	n := len(old)
	x := old[n-1]
	h.entries = old[0 : n-1]
	return x
}

func push(h *rankHeap, rank int, list int, position int) {
	heap.Push(h, [3]int{rank, list, position})
}

func pop(h *rankHeap) (list int, position int) {
	//nolint:errcheck // we trust the type
	x := heap.Pop(h).([3]int)
	return x[1], x[2]
}

// MergeAndSort combines lists of ranked providers into one list sorted
// by rank in the given order.  Providers with equal rank keep the order
// of the lists they came from, then their position in that list, so
// global filters (passed first) run before per-request filters of the
// same rank.
func MergeAndSort[T any](order Order, lists ...[]Ranked[T]) []Ranked[T] {
	var total int
	for _, l := range lists {
		total += len(l)
	}
	h := &rankHeap{
		entries: make([][3]int, 0, total),
		order:   order,
	}
	for i, l := range lists {
		for j, r := range l {
			push(h, r.Rank, i, j)
		}
	}
	sorted := make([]Ranked[T], 0, total)
	for h.Len() > 0 {
		i, j := pop(h)
		sorted = append(sorted, lists[i][j])
	}
	return sorted
}
