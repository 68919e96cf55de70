package changefeed

import (
	"context"
	"sync"
)

// MemoryFeed is an in-process broker. Slow subscribers miss events rather
// than block publishers; one queued event is enough to trigger a re-fetch.
type MemoryFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int]chan Event)}
}

func (f *MemoryFeed) Subscribe(ctx context.Context) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	ch := make(chan Event, 16)
	f.subs[id] = ch
	return &memorySubscription{feed: f, id: id, ch: ch}, nil
}

// Publish fans evt out to every open subscription.
func (f *MemoryFeed) Publish(_ context.Context, evt Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

// Subscribers reports the number of open subscriptions.
func (f *MemoryFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *MemoryFeed) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
}

type memorySubscription struct {
	feed *MemoryFeed
	id   int
	ch   chan Event
	once sync.Once
}

func (s *memorySubscription) Events() <-chan Event { return s.ch }

func (s *memorySubscription) Close() error {
	s.once.Do(func() { s.feed.remove(s.id) })
	return nil
}
