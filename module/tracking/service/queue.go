package service

import (
	"sync"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
)

// Entry is a queued payload tagged with its insertion sequence.
type Entry struct {
	Seq     uint64
	Payload domain.LocationPayload
}

// PayloadQueue is a bounded FIFO that evicts the oldest entry on overflow.
type PayloadQueue struct {
	mu       sync.Mutex
	capacity int
	items    []Entry
	nextSeq  uint64
}

func NewPayloadQueue(capacity int) *PayloadQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &PayloadQueue{
		capacity: capacity,
		items:    make([]Entry, 0, capacity),
	}
}

// Enqueue appends p and reports whether the oldest entry was evicted to make room.
func (q *PayloadQueue) Enqueue(p domain.LocationPayload) (evicted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		q.items[0] = Entry{}
		q.items = q.items[1:]
		evicted = true
	}
	q.nextSeq++
	q.items = append(q.items, Entry{Seq: q.nextSeq, Payload: p})
	return evicted
}

func (q *PayloadQueue) Peek() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Entry{}, false
	}
	return q.items[0], true
}

// Ack removes the head only if it is still the entry with seq.
// An entry evicted while it was in flight is not acked twice.
func (q *PayloadQueue) Ack(seq uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || q.items[0].Seq != seq {
		return false
	}
	q.items[0] = Entry{}
	q.items = q.items[1:]
	return true
}

func (q *PayloadQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *PayloadQueue) Capacity() int {
	return q.capacity
}

func (q *PayloadQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make([]Entry, 0, q.capacity)
}
