package queue

import (
	"sync"
	"time"
)

// FallbackItem is one payload retained by the ingestor when a live Enqueue
// fails (§4.3).
type FallbackItem struct {
	Payload   []byte
	UpdatedAt time.Time
}

// FallbackBuffer is an ordered, in-process retention buffer for payloads
// that could not be durably enqueued. It is intentionally not persisted:
// the upstream feed republishes roughly every 15s, so bounded loss on
// process exit is acceptable (§4.3).
type FallbackBuffer struct {
	mu    sync.Mutex
	items []FallbackItem
}

// NewFallbackBuffer returns an empty buffer.
func NewFallbackBuffer() *FallbackBuffer {
	return &FallbackBuffer{}
}

// Append adds item to the tail. Used when a live fetch's own enqueue fails
// (§4.3 "newest fetched payload is appended to the tail").
func (b *FallbackBuffer) Append(item FallbackItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, item)
}

// PushFront re-inserts item at the head, used when a drain attempt fails
// partway through (§4.3).
func (b *FallbackBuffer) PushFront(item FallbackItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append([]FallbackItem{item}, b.items...)
}

// Len returns the current buffer depth.
func (b *FallbackBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// DrainFunc attempts to durably enqueue one item. Returning an error halts
// the drain with that item re-inserted at the front (§4.3).
type DrainFunc func(item FallbackItem) error

// Drain walks the buffer head-to-tail, calling enqueue for each item and
// advancing the head on success. If enqueue fails, the current item is
// re-inserted at the front and the drain stops, leaving the rest of the
// buffer untouched until the next tick (§4.3).
func (b *FallbackBuffer) Drain(enqueue DrainFunc) error {
	for {
		b.mu.Lock()
		if len(b.items) == 0 {
			b.mu.Unlock()
			return nil
		}
		head := b.items[0]
		b.items = b.items[1:]
		b.mu.Unlock()

		if err := enqueue(head); err != nil {
			b.PushFront(head)
			return err
		}
	}
}
