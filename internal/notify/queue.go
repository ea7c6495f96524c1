// Package notify holds the transient notifications shown to the commander
package notify

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qninhdt/c3/server/internal/models"
)

// Defaults for a new queue
const (
	DefaultTTL      = 5 * time.Second
	DefaultCapacity = 5
)

type entry struct {
	n models.Notification
}

// Queue keeps at most capacity notifications. Pushing past capacity evicts
// the oldest arrival. Expired entries are dropped on read.
type Queue struct {
	mu       sync.Mutex
	pending  *list.List // *entry
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// Option configures a Queue
type Option func(*Queue)

// WithTTL sets how long a notification stays visible
func WithTTL(d time.Duration) Option { return func(q *Queue) { q.ttl = d } }

// WithCapacity sets the number of visible notifications
func WithCapacity(n int) Option { return func(q *Queue) { q.capacity = n } }

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option { return func(q *Queue) { q.now = now } }

// NewQueue creates a queue with a 5s TTL and a cap of 5
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		pending:  list.New(),
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.capacity < 1 {
		q.capacity = 1
	}
	return q
}

// Push adds a notification and returns it with its id and timestamp set
func (q *Queue) Push(typ models.NotificationType, title, message string) models.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	n := models.Notification{
		ID:        uuid.New().String(),
		Type:      typ,
		Title:     title,
		Message:   message,
		Timestamp: now,
	}
	return q.insert(n, now)
}

// Add enqueues a notification received from elsewhere, keeping its id
func (q *Queue) Add(n models.Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = now
	}
	q.insert(n, now)
}

func (q *Queue) insert(n models.Notification, now time.Time) models.Notification {
	n.ExpiresAt = now.Add(q.ttl)
	q.pending.PushBack(&entry{n: n})
	for q.pending.Len() > q.capacity {
		q.pending.Remove(q.pending.Front())
	}
	return n
}

// Error pushes an error notification
func (q *Queue) Error(title, message string) models.Notification {
	return q.Push(models.NotifyError, title, message)
}

// Success pushes a success notification
func (q *Queue) Success(title, message string) models.Notification {
	return q.Push(models.NotifySuccess, title, message)
}

// Visible returns live notifications, oldest first
func (q *Queue) Visible() []models.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.expire(q.now())
	out := make([]models.Notification, 0, q.pending.Len())
	for elem := q.pending.Front(); elem != nil; elem = elem.Next() {
		out = append(out, elem.Value.(*entry).n)
	}
	return out
}

// Remove dismisses a notification
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for elem := q.pending.Front(); elem != nil; elem = elem.Next() {
		if elem.Value.(*entry).n.ID == id {
			q.pending.Remove(elem)
			return true
		}
	}
	return false
}

// Clear dismisses everything
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending.Init()
}

// Count returns the number of live notifications
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expire(q.now())
	return q.pending.Len()
}

func (q *Queue) expire(now time.Time) {
	for elem := q.pending.Front(); elem != nil; {
		next := elem.Next()
		if !now.Before(elem.Value.(*entry).n.ExpiresAt) {
			q.pending.Remove(elem)
		}
		elem = next
	}
}
