package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/dental-booking-dashboard/internal/bookings"
	"github.com/wolfman30/dental-booking-dashboard/internal/changefeed"
	"github.com/wolfman30/dental-booking-dashboard/internal/observability/metrics"
	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

var (
	ErrAlreadyStarted = errors.New("dashboard: controller already started")
	ErrClosed         = errors.New("dashboard: controller closed")
)

// State is the controller's fetch lifecycle.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Snapshot is the controller's observable state. Data is shared between
// snapshots and must be treated as read-only.
type Snapshot struct {
	Data      []bookings.View `json:"data"`
	Loading   bool            `json:"loading"`
	Error     string          `json:"error,omitempty"`
	State     State           `json:"state"`
	Metrics   Metrics         `json:"metrics"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	// Feed is optional; without it the controller only refreshes on demand.
	Feed changefeed.Feed
	// Debounce collects change events for this long before re-fetching.
	Debounce time.Duration
	// Location sets the calendar day used for metrics. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
	Metrics  *metrics.DashboardMetrics
	Logger   *logging.Logger
}

// Controller keeps a booking list current for one dashboard view. Every
// fetch carries a sequence number and only the latest one may update state.
type Controller struct {
	fetcher  Fetcher
	feed     changefeed.Feed
	debounce time.Duration
	loc      *time.Location
	now      func() time.Time
	metrics  *metrics.DashboardMetrics
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	cfg       Config
	seq       uint64
	snap      Snapshot
	started   bool
	closed    bool
	sub       changefeed.Subscription
	stopAfter func() bool
	watchers  map[int]chan Snapshot
	nextWatch int
}

func NewController(fetcher Fetcher, cfg Config, opts ControllerOptions) *Controller {
	if fetcher == nil {
		panic("dashboard: fetcher required")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		fetcher:  fetcher,
		feed:     opts.Feed,
		debounce: opts.Debounce,
		loc:      opts.Location,
		now:      opts.Now,
		metrics:  opts.Metrics,
		logger:   opts.Logger.Component("dashboard.controller"),
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg.withDefaults(),
		snap:     Snapshot{State: StateIdle, Data: []bookings.View{}},
		watchers: make(map[int]chan Snapshot),
	}
}

// Start subscribes to the change feed and issues the initial fetch. The
// controller closes itself when ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	var sub changefeed.Subscription
	if c.feed != nil {
		var err error
		sub, err = c.feed.Subscribe(ctx)
		if err != nil {
			c.logger.Error("change feed subscribe failed", "error", err)
			return err
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if sub != nil {
			_ = sub.Close()
		}
		return ErrClosed
	}
	c.sub = sub
	c.stopAfter = context.AfterFunc(ctx, func() { _ = c.Close() })
	if sub != nil {
		c.wg.Add(1)
		go c.listen(sub.Events())
	}
	c.mu.Unlock()

	c.launch(TriggerInitial, nil)
	return nil
}

// Refresh re-fetches with the current config.
func (c *Controller) Refresh() {
	c.launch(TriggerRefresh, nil)
}

// SetConfig replaces the config and re-fetches. Results of fetches issued
// under the previous config are discarded.
func (c *Controller) SetConfig(cfg Config) {
	cfg = cfg.withDefaults()
	c.launch(TriggerConfig, &cfg)
}

// Config returns the active config.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Watch streams snapshots starting with the current one. A slow reader skips
// intermediate snapshots but always receives the latest. The channel closes
// when the controller closes or cancel is called.
func (c *Controller) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = ch
	ch <- c.snap
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if w, ok := c.watchers[id]; ok {
			delete(c.watchers, id)
			close(w)
		}
	}
}

// Close releases the change-feed subscription and waits for in-flight work.
// It is safe to call more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancel()
	sub := c.sub
	c.sub = nil
	stop := c.stopAfter
	for id, w := range c.watchers {
		delete(c.watchers, id)
		close(w)
	}
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	var err error
	if sub != nil {
		err = sub.Close()
	}
	c.wg.Wait()
	return err
}

// launch starts an asynchronous fetch.
func (c *Controller) launch(trigger string, cfg *Config) {
	seq, active, ok := c.begin(cfg, true)
	if !ok {
		return
	}
	go func() {
		defer c.wg.Done()
		c.run(seq, active, trigger)
	}()
}

// begin moves to loading and reserves a sequence number. When async is set
// it also registers the caller's goroutine with the wait group.
func (c *Controller) begin(cfg *Config, async bool) (uint64, Config, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, Config{}, false
	}
	if cfg != nil {
		c.cfg = *cfg
	}
	c.seq++
	c.snap.State = StateLoading
	c.snap.Loading = true
	c.publishLocked()
	if async {
		c.wg.Add(1)
	}
	return c.seq, c.cfg, true
}

func (c *Controller) run(seq uint64, cfg Config, trigger string) {
	views, err := c.fetcher.Load(c.ctx, cfg, trigger)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if seq != c.seq {
		c.metrics.ObserveStaleDiscard()
		c.logger.Debug("discarding stale fetch result", "seq", seq, "latest", c.seq, "trigger", trigger)
		return
	}

	now := c.now().In(c.loc)
	c.snap.Loading = false
	c.snap.UpdatedAt = now
	if err != nil {
		c.snap.State = StateFailed
		c.snap.Error = err.Error()
		c.logger.Warn("booking fetch failed", "trigger", trigger, "error", err)
	} else {
		if views == nil {
			views = []bookings.View{}
		}
		c.snap.State = StateReady
		c.snap.Error = ""
		c.snap.Data = views
		c.snap.Metrics = ComputeMetrics(views, now)
	}
	c.publishLocked()
}

// listen turns change events into re-fetches. Events that arrive while a
// fetch is running are coalesced into a single follow-up fetch.
func (c *Controller) listen(events <-chan changefeed.Event) {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.observe(evt)
		}
		if !c.settle(events) {
			return
		}
		seq, cfg, ok := c.begin(nil, false)
		if !ok {
			return
		}
		c.run(seq, cfg, TriggerChange)
	}
}

// settle absorbs events already queued, or arriving within the debounce
// window. It reports false once the controller should stop.
func (c *Controller) settle(events <-chan changefeed.Event) bool {
	var window <-chan time.Time
	if c.debounce > 0 {
		timer := time.NewTimer(c.debounce)
		defer timer.Stop()
		window = timer.C
	}
	for {
		select {
		case <-c.ctx.Done():
			return false
		case evt, ok := <-events:
			if !ok {
				return false
			}
			c.observe(evt)
			continue
		default:
		}
		if window == nil {
			return true
		}
		select {
		case <-c.ctx.Done():
			return false
		case evt, ok := <-events:
			if !ok {
				return false
			}
			c.observe(evt)
		case <-window:
			return true
		}
	}
}

func (c *Controller) observe(evt changefeed.Event) {
	c.metrics.ObserveChangeEvent(string(evt.Op))
	c.logger.Debug("booking change received", "op", evt.Op, "id", evt.RecordID)
}

// publishLocked fans the current snapshot out to watchers. Callers hold mu.
func (c *Controller) publishLocked() {
	for _, w := range c.watchers {
		select {
		case w <- c.snap:
			continue
		default:
		}
		select {
		case <-w:
		default:
		}
		select {
		case w <- c.snap:
		default:
		}
	}
}
