package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-booking-dashboard/internal/bookings"
	"github.com/wolfman30/dental-booking-dashboard/internal/changefeed"
	"github.com/wolfman30/dental-booking-dashboard/internal/dashboard"
	"github.com/wolfman30/dental-booking-dashboard/internal/locale"
)

var dashboardNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func priceOf(v float64) *float64 { return &v }

// stubFetcher returns the current views and records each config it saw.
type stubFetcher struct {
	mu    sync.Mutex
	views []bookings.View
	err   error
	cfgs  []dashboard.Config
}

func (f *stubFetcher) Load(_ context.Context, cfg dashboard.Config, _ string) ([]bookings.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfgs = append(f.cfgs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	return append([]bookings.View(nil), f.views...), nil
}

func (f *stubFetcher) set(views []bookings.View) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = views
}

func (f *stubFetcher) lastConfig() dashboard.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfgs[len(f.cfgs)-1]
}

func sampleViews() []bookings.View {
	return []bookings.View{
		{ID: "1", CustomerName: "Anna Berzina", ServiceName: "Cleaning", Status: bookings.StatusConfirmed, StartTime: dashboardNow.Add(2 * time.Hour), Price: priceOf(65)},
		{ID: "2", CustomerName: "Janis Ozols", ServiceName: "Whitening", Status: bookings.StatusPending, StartTime: dashboardNow.Add(26 * time.Hour), Price: priceOf(150)},
		{ID: "3", CustomerName: "Ieva Kalnina", ServiceName: "Cleaning", Status: bookings.StatusCompleted, StartTime: dashboardNow.Add(-26 * time.Hour), Price: priceOf(65)},
	}
}

func newDashboardHandler(f dashboard.Fetcher, feed changefeed.Feed) *DashboardHandler {
	return NewDashboardHandler(f, DashboardOptions{
		Feed:            feed,
		DefaultLanguage: locale.EN,
		Now:             func() time.Time { return dashboardNow },
	}, nil)
}

func TestGetDashboardReturnsFilteredListAndFullMetrics(t *testing.T) {
	f := &stubFetcher{views: sampleViews()}
	h := newDashboardHandler(f, nil)

	rec := httptest.NewRecorder()
	h.GetDashboard(rec, httptest.NewRequest(http.MethodGet,
		"/admin/dashboard?doctor=d-1&start=2025-03-09&end=2025-03-12&lang=ru&q=clean", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DashboardResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "1", resp.Bookings[0].ID)
	assert.Equal(t, "3", resp.Bookings[1].ID)
	assert.Equal(t, locale.RU, resp.Language)
	assert.Equal(t, dashboard.Metrics{
		AppointmentsToday:      1,
		PatientsWaitingToday:   1,
		PendingRequestsTotal:   1,
		RecognizedRevenueTotal: 130,
	}, resp.Metrics)

	cfg := f.lastConfig()
	assert.Equal(t, "d-1", cfg.DoctorID)
	assert.Equal(t, locale.RU, cfg.Language)
	require.NotNil(t, cfg.Range)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), cfg.Range.Start)
	assert.Equal(t, time.Date(2025, 3, 12, 23, 59, 59, 999999999, time.UTC), cfg.Range.End)
}

func TestGetDashboardValidation(t *testing.T) {
	h := newDashboardHandler(&stubFetcher{}, nil)
	for _, target := range []string{
		"/admin/dashboard?start=2025-03-09",
		"/admin/dashboard?start=2025-03-12&end=2025-03-09",
		"/admin/dashboard?start=yesterday&end=today",
		"/admin/dashboard?lang=de",
		"/admin/dashboard?status=archived",
		"/admin/dashboard?day=soon",
	} {
		rec := httptest.NewRecorder()
		h.GetDashboard(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetDashboardLoadFailure(t *testing.T) {
	h := newDashboardHandler(&stubFetcher{err: errors.New("db down")}, nil)
	rec := httptest.NewRecorder()
	h.GetDashboard(rec, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to load bookings"}`, rec.Body.String())
}

func dialLive(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/dashboard/live" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return conn
}

// readUntil reads live messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(LiveMessage) bool) LiveMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg LiveMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func readyWith(n int) func(LiveMessage) bool {
	return func(m LiveMessage) bool {
		return m.Type == "snapshot" && m.Snapshot.State == dashboard.StateReady && len(m.Snapshot.Data) == n
	}
}

func TestLiveStreamsSnapshotsAndReactsToChanges(t *testing.T) {
	f := &stubFetcher{views: sampleViews()[:1]}
	feed := changefeed.NewMemoryFeed()
	h := newDashboardHandler(f, feed)
	srv := httptest.NewServer(http.HandlerFunc(h.Live))
	defer srv.Close()

	conn := dialLive(t, srv, "?doctor=all&lang=lv")
	defer conn.Close()

	first := readUntil(t, conn, readyWith(1))
	assert.Empty(t, first.Snapshot.Error)
	assert.Equal(t, 1, first.Snapshot.Metrics.PatientsWaitingToday)
	assert.Equal(t, locale.LV, f.lastConfig().Language)
	require.Eventually(t, func() bool { return feed.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	f.set(sampleViews())
	require.NoError(t, feed.Publish(context.Background(), changefeed.Event{Table: "bookings", Op: changefeed.OpInsert}))
	second := readUntil(t, conn, readyWith(3))
	assert.Empty(t, second.Snapshot.Error)

	require.NoError(t, conn.WriteJSON(liveCommand{Type: "config", Doctor: "d-9", Lang: "ru"}))
	readUntil(t, conn, readyWith(3))
	assert.Equal(t, "d-9", f.lastConfig().DoctorID)
	assert.Equal(t, locale.RU, f.lastConfig().Language)

	require.NoError(t, conn.WriteJSON(liveCommand{Type: "config", Lang: "de"}))
	notice := readUntil(t, conn, func(m LiveMessage) bool { return m.Type == "error" })
	assert.Contains(t, notice.Error, "unsupported language")

	require.NoError(t, conn.WriteJSON(liveCommand{Type: "bogus"}))
	notice = readUntil(t, conn, func(m LiveMessage) bool { return m.Type == "error" })
	assert.Equal(t, "unknown command type", notice.Error)
}

func TestLiveReleasesSubscriptionOnDisconnect(t *testing.T) {
	feed := changefeed.NewMemoryFeed()
	h := newDashboardHandler(&stubFetcher{views: sampleViews()}, feed)
	srv := httptest.NewServer(http.HandlerFunc(h.Live))
	defer srv.Close()

	conn := dialLive(t, srv, "")
	readUntil(t, conn, readyWith(3))
	require.Equal(t, 1, feed.Subscribers())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return feed.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestLiveRejectsBadQueryBeforeUpgrade(t *testing.T) {
	h := newDashboardHandler(&stubFetcher{}, nil)
	srv := httptest.NewServer(http.HandlerFunc(h.Live))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/dashboard/live?lang=xx"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLiveEnforcesOriginAllowlist(t *testing.T) {
	h := NewDashboardHandler(&stubFetcher{views: sampleViews()}, DashboardOptions{
		AllowedOrigins: []string{"https://admin.clinic.lv/"},
		Now:            func() time.Time { return dashboardNow },
	}, nil)
	srv := httptest.NewServer(http.HandlerFunc(h.Live))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/dashboard/live"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://admin.clinic.lv"}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer conn.Close()
	readUntil(t, conn, readyWith(3))
}
