package authsession

import (
	"sync"

	"github.com/DammyCodes-all/framez-socials/internal/models"
)

// message is one unit of work for the controller loop.
type message struct {
	event   models.AuthEvent
	session *models.Session
	refresh bool
}

// inbox is an unbounded FIFO between auth callbacks and the controller loop.
// Push never blocks so callers can run on the auth subsystem's goroutine.
type inbox struct {
	mu     sync.Mutex
	items  []message
	ready  chan struct{}
	closed bool
}

func newInbox() *inbox {
	return &inbox{ready: make(chan struct{}, 1)}
}

// push appends msg, returning false once the inbox is closed.
func (q *inbox) push(msg message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, msg)

	select {
	case q.ready <- struct{}{}:
	default:
	}

	return true
}

// notify fires when messages may be waiting.
func (q *inbox) notify() <-chan struct{} {
	return q.ready
}

// drain removes and returns pending messages in delivery order.
func (q *inbox) drain() []message {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

func (q *inbox) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
}
