package streamworker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// OverflowPolicy controls what Put does when a bounded Mailbox is full.
type OverflowPolicy uint8

const (
	// Block waits for space, the context, or Close.
	Block OverflowPolicy = iota
	// DropOldest evicts the head of the queue to make room.
	DropOldest
	// DropNewest discards the value being put.
	DropNewest
	// Fail returns ErrQueueFull.
	Fail
)

func (p OverflowPolicy) String() string {
	switch p {
	case Block:
		return "block"
	case DropOldest:
		return "drop-oldest"
	case DropNewest:
		return "drop-newest"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// ParseOverflowPolicy parses the names returned by OverflowPolicy.String.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return Block, nil
	case "drop-oldest", "drop_oldest", "dropoldest":
		return DropOldest, nil
	case "drop-newest", "drop_newest", "dropnewest":
		return DropNewest, nil
	case "fail":
		return Fail, nil
	}
	return Block, fmt.Errorf("unknown overflow policy %q", s)
}

// Mailbox is a FIFO shared between two goroutines. A capacity of zero or
// less means unbounded, in which case the policy is never consulted.
type Mailbox[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	policy   OverflowPolicy
	closed   bool
	changed  chan struct{}
	dropped  atomic.Uint64
	onDrop   func()
}

func NewMailbox[T any](capacity int, policy OverflowPolicy) *Mailbox[T] {
	return &Mailbox[T]{
		capacity: capacity,
		policy:   policy,
		changed:  make(chan struct{}),
	}
}

// OnDrop installs a hook called (outside the lock) for every dropped value.
// It must be set before the mailbox is shared.
func (m *Mailbox[T]) OnDrop(fn func()) {
	m.onDrop = fn
}

// broadcast wakes every waiter. Callers hold m.mu.
func (m *Mailbox[T]) broadcast() {
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *Mailbox[T]) drop() {
	m.dropped.Add(1)
	if m.onDrop != nil {
		m.onDrop()
	}
}

func (m *Mailbox[T]) Put(ctx context.Context, v T) error {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return ErrMailboxClosed
		}
		if m.capacity <= 0 || len(m.items) < m.capacity {
			m.items = append(m.items, v)
			m.broadcast()
			m.mu.Unlock()
			return nil
		}

		switch m.policy {
		case DropOldest:
			var zero T
			m.items[0] = zero
			m.items = append(m.items[1:], v)
			m.broadcast()
			m.mu.Unlock()
			m.drop()
			return nil
		case DropNewest:
			m.mu.Unlock()
			m.drop()
			return nil
		case Fail:
			m.mu.Unlock()
			return ErrQueueFull
		}

		wait := m.changed
		m.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Take blocks until a value is available. Once the mailbox is closed it
// keeps returning queued values, then ErrMailboxClosed.
func (m *Mailbox[T]) Take(ctx context.Context) (T, error) {
	var zero T
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			v := m.items[0]
			m.items[0] = zero
			m.items = m.items[1:]
			m.broadcast()
			m.mu.Unlock()
			return v, nil
		}
		if m.closed {
			m.mu.Unlock()
			return zero, ErrMailboxClosed
		}
		wait := m.changed
		m.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

func (m *Mailbox[T]) TryTake() (T, bool) {
	var zero T
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return zero, false
	}
	v := m.items[0]
	m.items[0] = zero
	m.items = m.items[1:]
	m.broadcast()
	return v, true
}

// Drain removes and returns everything queued, in order.
func (m *Mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil
	}
	out := m.items
	m.items = nil
	m.broadcast()
	return out
}

func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Mailbox[T]) Capacity() int {
	return m.capacity
}

// Close is idempotent.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.broadcast()
}

func (m *Mailbox[T]) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Mailbox[T]) Dropped() uint64 {
	return m.dropped.Load()
}
