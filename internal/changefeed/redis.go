package changefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

// RedisFeed distributes booking changes over Redis pub/sub, for deployments
// where the writer relays changes instead of the database notifying directly.
type RedisFeed struct {
	redis   *redis.Client
	channel string
	logger  *logging.Logger
}

func NewRedisFeed(client *redis.Client, channel string, logger *logging.Logger) *RedisFeed {
	if client == nil {
		panic("changefeed: redis client required")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisFeed{redis: client, channel: channel, logger: logger.Component("changefeed.redis")}
}

// Publish announces a change to every subscriber.
func (f *RedisFeed) Publish(ctx context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	payload, err := evt.Encode()
	if err != nil {
		return err
	}
	if err := f.redis.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("changefeed: publish: %w", err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context) (Subscription, error) {
	ps := f.redis.Subscribe(ctx, f.channel)
	// Wait for the subscription confirmation so no publish is missed after return.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("changefeed: subscribe %s: %w", f.channel, err)
	}
	sub := &redisSubscription{
		ps:   ps,
		ch:   make(chan Event, 16),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go f.loop(sub)
	return sub, nil
}

func (f *RedisFeed) loop(sub *redisSubscription) {
	defer close(sub.done)
	defer close(sub.ch)
	msgs := sub.ps.Channel()
	for {
		select {
		case <-sub.stop:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			evt, err := ParseEvent(msg.Payload)
			if err != nil {
				f.logger.Warn("undecodable change message", "channel", msg.Channel, "error", err)
				evt = Event{Table: "bookings", Op: OpUnknown, At: time.Now().UTC()}
			}
			select {
			case sub.ch <- evt:
			case <-sub.stop:
				return
			}
		}
	}
}

type redisSubscription struct {
	ps   *redis.PubSub
	ch   chan Event
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) Events() <-chan Event { return s.ch }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		err = s.ps.Close()
		<-s.done
	})
	return err
}
