package changefeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

// listenConn is the subset of *pgx.Conn used for LISTEN.
type listenConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Connector opens the connection the feed listens on.
type Connector func(ctx context.Context) (listenConn, error)

// PostgresFeed turns NOTIFY payloads from the bookings trigger into events.
// All subscriptions share one listening connection, detached from the pool
// while the first subscription is open and closed with the last one.
type PostgresFeed struct {
	connect    Connector
	channel    string
	logger     *logging.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
	hub        *MemoryFeed

	mu   sync.Mutex
	refs int
	stop context.CancelFunc
	done chan struct{}
}

func NewPostgresFeed(pool *pgxpool.Pool, channel string, logger *logging.Logger) *PostgresFeed {
	if pool == nil {
		panic("changefeed: pgx pool required")
	}
	return NewPostgresFeedWithConnector(func(ctx context.Context) (listenConn, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return conn.Hijack(), nil
	}, channel, logger)
}

// NewPostgresFeedWithConnector allows injecting fake connections for tests.
func NewPostgresFeedWithConnector(connect Connector, channel string, logger *logging.Logger) *PostgresFeed {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresFeed{
		connect:    connect,
		channel:    channel,
		logger:     logger.Component("changefeed.postgres"),
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
		hub:        NewMemoryFeed(),
	}
}

// Subscribe joins the shared listener, starting it for the first subscriber.
func (f *PostgresFeed) Subscribe(ctx context.Context) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub, err := f.hub.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	if f.refs == 0 {
		conn, err := f.listen(ctx)
		if err != nil {
			_ = sub.Close()
			return nil, err
		}
		loopCtx, cancel := context.WithCancel(context.Background())
		f.stop, f.done = cancel, make(chan struct{})
		go f.loop(loopCtx, conn, f.done)
	}
	f.refs++
	return &pgSubscription{Subscription: sub, feed: f}, nil
}

// Subscribers reports the number of open subscriptions.
func (f *PostgresFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs
}

func (f *PostgresFeed) release() {
	f.mu.Lock()
	f.refs--
	var stop context.CancelFunc
	var done chan struct{}
	if f.refs == 0 {
		stop, done = f.stop, f.done
		f.stop, f.done = nil, nil
	}
	f.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}

func (f *PostgresFeed) listen(ctx context.Context) (listenConn, error) {
	conn, err := f.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("changefeed: connect: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("changefeed: listen %s: %w", f.channel, err)
	}
	return conn, nil
}

func (f *PostgresFeed) loop(ctx context.Context, conn listenConn, done chan struct{}) {
	defer close(done)
	defer func() {
		if conn != nil {
			_ = conn.Close(context.Background())
		}
	}()

	backoff := f.minBackoff
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("notification wait failed, reconnecting", "channel", f.channel, "error", err)
			_ = conn.Close(context.Background())
			conn = nil
			for conn == nil {
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				conn, err = f.listen(ctx)
				if err != nil {
					f.logger.Warn("reconnect failed", "channel", f.channel, "error", err)
					backoff = min(backoff*2, f.maxBackoff)
				}
			}
			backoff = f.minBackoff
			_ = f.hub.Publish(ctx, Event{Table: "bookings", Op: OpResync, At: time.Now().UTC()})
			continue
		}

		evt, err := ParseEvent(n.Payload)
		if err != nil {
			f.logger.Warn("undecodable notification", "channel", n.Channel, "error", err)
			evt = Event{Table: "bookings", Op: OpUnknown, At: time.Now().UTC()}
		}
		_ = f.hub.Publish(ctx, evt)
	}
}

// pgSubscription is a hub subscription that releases the shared listener.
type pgSubscription struct {
	Subscription
	feed *PostgresFeed
	once sync.Once
}

// Close leaves the feed; the last subscriber stops the listener and closes
// its connection.
func (s *pgSubscription) Close() error {
	s.once.Do(func() {
		_ = s.Subscription.Close()
		s.feed.release()
	})
	return nil
}
