package scheduler

import "container/heap"

// timerQueue is a min-heap of handles ordered by due time.
type timerQueue []*Handle

var _ heap.Interface = (*timerQueue)(nil)

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool { return q[i].due.Before(q[j].due) }

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	h := x.(*Handle)
	h.index = len(*q)
	*q = append(*q, h)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	h := old[n-1]
	old[n-1] = nil
	h.index = -1
	*q = old[:n-1]
	return h
}

func (q timerQueue) peek() *Handle {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

func (q *timerQueue) remove(h *Handle) bool {
	if h.index < 0 || h.index >= len(*q) || (*q)[h.index] != h {
		return false
	}
	heap.Remove(q, h.index)
	return true
}
