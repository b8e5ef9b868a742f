package web

import (
	"sync"

	"nmeafix/internal/nmea"
)

// Broadcaster fans finished records out to listeners (the /ws feed). It
// keeps the most recent record so new subscribers get it immediately. Slow
// subscribers miss records rather than stall the ingest path.
type Broadcaster struct {
	mu       sync.RWMutex
	subs     map[int]chan nmea.Record
	nextID   int
	last     nmea.Record
	haveLast bool
	closed   bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan nmea.Record)}
}

func (b *Broadcaster) Subscribe(buffer int) (int, <-chan nmea.Record) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan nmea.Record, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return -1, ch
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	if b.haveLast {
		ch <- b.last.Clone()
	}
	return id, ch
}

func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Count returns the number of active subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish never blocks and never fails; it satisfies publish.Sink.
func (b *Broadcaster) Publish(rec nmea.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	for _, ch := range b.subs {
		select {
		case ch <- rec.Clone():
		default:
		}
	}
	b.last = rec.Clone()
	b.haveLast = true
	return nil
}

// Close ends every subscription.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}
