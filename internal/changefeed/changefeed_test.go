package changefeed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

func TestParseEvent(t *testing.T) {
	evt, err := ParseEvent(`{"table":"bookings","op":"update","id":"b-1","at":"2025-05-01T10:00:00Z"}`)
	require.NoError(t, err)
	assert.Equal(t, OpUpdate, evt.Op)
	assert.Equal(t, "b-1", evt.RecordID)

	evt, err = ParseEvent(`{"table":"bookings","op":"DELETE"}`)
	require.NoError(t, err)
	assert.False(t, evt.At.IsZero())

	_, err = ParseEvent(`{"op":"TRUNCATE"}`)
	assert.Error(t, err)
	_, err = ParseEvent(`not json`)
	assert.Error(t, err)
}

func TestMemoryFeedFanOutAndClose(t *testing.T) {
	feed := NewMemoryFeed()
	a, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	b, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, feed.Subscribers())

	require.NoError(t, feed.Publish(context.Background(), Event{Table: "bookings", Op: OpInsert}))
	assert.Equal(t, OpInsert, (<-a.Events()).Op)
	assert.Equal(t, OpInsert, (<-b.Events()).Op)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 1, feed.Subscribers())
	_, open := <-a.Events()
	assert.False(t, open)
}

func TestMemoryFeedSubscribeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryFeed().Subscribe(ctx)
	assert.Error(t, err)
}

type fakeListenConn struct {
	notifications chan *pgconn.Notification
	failNext      atomic.Bool
	closed        atomic.Bool

	mu    sync.Mutex
	execs []string
}

func newFakeListenConn() *fakeListenConn {
	return &fakeListenConn{notifications: make(chan *pgconn.Notification, 4)}
}

func (c *fakeListenConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	c.execs = append(c.execs, sql)
	c.mu.Unlock()
	return pgconn.NewCommandTag("LISTEN"), nil
}

func (c *fakeListenConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	if c.failNext.Swap(false) {
		return nil, errors.New("connection reset by peer")
	}
	select {
	case n := <-c.notifications:
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeListenConn) Close(context.Context) error {
	c.closed.Store(true)
	return nil
}

func TestPostgresFeedDeliversNotifications(t *testing.T) {
	conn := newFakeListenConn()
	feed := NewPostgresFeedWithConnector(func(context.Context) (listenConn, error) { return conn, nil }, "", logging.Default())

	sub, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{`LISTEN "booking_changes"`}, conn.execs)

	conn.notifications <- &pgconn.Notification{Channel: DefaultChannel, Payload: `{"table":"bookings","op":"INSERT","id":"b-9"}`}
	conn.notifications <- &pgconn.Notification{Channel: DefaultChannel, Payload: `garbage`}

	first := <-sub.Events()
	assert.Equal(t, OpInsert, first.Op)
	assert.Equal(t, "b-9", first.RecordID)
	second := <-sub.Events()
	assert.Equal(t, OpUnknown, second.Op, "undecodable payloads still signal a change")

	require.NoError(t, sub.Close())
	assert.True(t, conn.closed.Load(), "close must release the listening connection")
	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestPostgresFeedReconnectsAndResyncs(t *testing.T) {
	first := newFakeListenConn()
	second := newFakeListenConn()
	var dials atomic.Int32
	feed := NewPostgresFeedWithConnector(func(context.Context) (listenConn, error) {
		if dials.Add(1) == 1 {
			return first, nil
		}
		return second, nil
	}, "booking_changes", logging.Default())
	feed.minBackoff = time.Millisecond

	first.failNext.Store(true)
	sub, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	select {
	case evt := <-sub.Events():
		assert.Equal(t, OpResync, evt.Op)
	case <-time.After(time.Second):
		t.Fatal("expected resync event after reconnect")
	}
	assert.True(t, first.closed.Load())
	assert.EqualValues(t, 2, dials.Load())
}

func TestPostgresFeedSharesOneConnection(t *testing.T) {
	conn := newFakeListenConn()
	var dials atomic.Int32
	feed := NewPostgresFeedWithConnector(func(context.Context) (listenConn, error) {
		dials.Add(1)
		return conn, nil
	}, "", logging.Default())

	a, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	b, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, dials.Load())
	assert.Equal(t, 2, feed.Subscribers())

	conn.notifications <- &pgconn.Notification{Channel: DefaultChannel, Payload: `{"table":"bookings","op":"UPDATE","id":"b-2"}`}
	for _, sub := range []Subscription{a, b} {
		select {
		case evt := <-sub.Events():
			assert.Equal(t, "b-2", evt.RecordID)
		case <-time.After(time.Second):
			t.Fatal("expected event on every subscription")
		}
	}

	require.NoError(t, a.Close())
	assert.False(t, conn.closed.Load(), "listener stays up while a subscriber remains")
	require.NoError(t, b.Close())
	assert.True(t, conn.closed.Load())
	assert.Equal(t, 0, feed.Subscribers())

	again, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	defer again.Close()
	assert.EqualValues(t, 2, dials.Load())
}

func TestPostgresFeedSubscribeConnectError(t *testing.T) {
	feed := NewPostgresFeedWithConnector(func(context.Context) (listenConn, error) {
		return nil, errors.New("too many connections")
	}, "", nil)
	_, err := feed.Subscribe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "changefeed: connect")
	assert.Equal(t, 0, feed.Subscribers())
	assert.Equal(t, 0, feed.hub.Subscribers())
}

func TestRedisFeedPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	feed := NewRedisFeed(client, "", logging.Default())
	sub, err := feed.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, feed.Publish(context.Background(), Event{Table: "bookings", Op: OpDelete, RecordID: "b-3"}))

	select {
	case evt := <-sub.Events():
		assert.Equal(t, OpDelete, evt.Op)
		assert.Equal(t, "b-3", evt.RecordID)
		assert.False(t, evt.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("expected published event")
	}

	require.NoError(t, sub.Close())
	_, open := <-sub.Events()
	assert.False(t, open)
}
