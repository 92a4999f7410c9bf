package authsession

import "sync"

// broadcaster fans published states out to subscribers. Each subscriber
// holds at most one pending state; a slow reader only sees the newest.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]chan AuthState
	nextID uint64
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[uint64]chan AuthState)}
}

func (b *broadcaster) subscribe(current AuthState) (<-chan AuthState, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan AuthState, 1)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	ch <- current

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *broadcaster) publish(state AuthState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- state:
			continue
		default:
		}

		// replace the unread value
		select {
		case <-ch:
		default:
		}
		ch <- state
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
