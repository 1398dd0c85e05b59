package sla

import "time"

// timer stages: an entry first surfaces for its warning, then again for
// its deadline.
type stage int

const (
	stageWarn stage = iota
	stageDue
)

// item is one scheduled wake-up in the deadline heap.
type item struct {
	at    time.Time
	stage stage
	entry Entry
}

// timerHeap is a min-heap over wake-up times (container/heap interface).
type timerHeap []item

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)         { *h = append(*h, x.(item)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
