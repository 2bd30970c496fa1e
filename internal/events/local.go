package events

import (
	"context"
	"sync"
)

// subscriberBuffer bounds how far a slow listener may lag before events to
// it are dropped.
const subscriberBuffer = 32

// LocalBroker is an in-process Broker, used when Redis is not configured.
type LocalBroker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[chan Event]struct{})}
}

func (b *LocalBroker) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[e.RoomID] {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(ctx context.Context, roomID string) (<-chan Event, error) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[chan Event]struct{})
	}
	b.subs[roomID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[roomID], ch)
		if len(b.subs[roomID]) == 0 {
			delete(b.subs, roomID)
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}
