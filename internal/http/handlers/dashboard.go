package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/dental-booking-dashboard/internal/bookings"
	"github.com/wolfman30/dental-booking-dashboard/internal/changefeed"
	"github.com/wolfman30/dental-booking-dashboard/internal/dashboard"
	httpmiddleware "github.com/wolfman30/dental-booking-dashboard/internal/http/middleware"
	"github.com/wolfman30/dental-booking-dashboard/internal/locale"
	"github.com/wolfman30/dental-booking-dashboard/internal/observability/metrics"
	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxCommandSize = 4 << 10
)

// DashboardOptions configures a DashboardHandler.
type DashboardOptions struct {
	Feed            changefeed.Feed
	DefaultLanguage locale.Language
	Location        *time.Location
	Debounce        time.Duration
	AllowedOrigins  []string
	Now             func() time.Time
	Metrics         *metrics.DashboardMetrics
}

// DashboardHandler serves the booking list with KPIs, once or as a live stream.
type DashboardHandler struct {
	fetcher  dashboard.Fetcher
	opts     DashboardOptions
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

func NewDashboardHandler(fetcher dashboard.Fetcher, opts DashboardOptions, logger *logging.Logger) *DashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = locale.EN
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DashboardHandler{
		fetcher: fetcher,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     httpmiddleware.NewOriginPolicy(opts.AllowedOrigins).CheckOrigin(),
		},
		logger: logger.Component("http.dashboard"),
	}
}

// DashboardResponse is the one-shot dashboard payload. Metrics cover every
// booking in the window; Bookings honours the list filter.
type DashboardResponse struct {
	Bookings    []bookings.View   `json:"bookings"`
	Total       int               `json:"total"`
	Metrics     dashboard.Metrics `json:"metrics"`
	Language    locale.Language   `json:"language"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// GetDashboard returns bookings and KPIs.
// GET /admin/dashboard
// Query params:
//   - doctor: provider id or "all"
//   - start, end: RFC3339 or YYYY-MM-DD (optional, together)
//   - lang: EN, LV or RU
//   - status, q, day: list filter (day is all, today, tomorrow or YYYY-MM-DD)
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cfg, err := parseDashboardConfig(q, h.opts.DefaultLanguage, h.opts.Location)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter, err := dashboard.ParseListFilter(q.Get("status"), q.Get("q"), q.Get("day"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	views, err := h.fetcher.Load(r.Context(), cfg, dashboard.TriggerRequest)
	if err != nil {
		h.logger.Error("failed to load dashboard", "doctor_id", cfg.DoctorID, "error", err)
		jsonError(w, "failed to load bookings", http.StatusInternalServerError)
		return
	}

	now := h.opts.Now().In(h.opts.Location)
	list := filter.Apply(views, now)
	writeJSON(w, http.StatusOK, DashboardResponse{
		Bookings:    list,
		Total:       len(list),
		Metrics:     dashboard.ComputeMetrics(views, now),
		Language:    cfg.Language,
		GeneratedAt: now,
	})
}

// liveCommand is a client message on the live stream.
type liveCommand struct {
	Type   string `json:"type"` // "refresh" or "config"
	Doctor string `json:"doctor,omitempty"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
	Lang   string `json:"lang,omitempty"`
}

// LiveMessage is a server message on the live stream.
type LiveMessage struct {
	Type     string              `json:"type"` // "snapshot" or "error"
	Snapshot *dashboard.Snapshot `json:"snapshot,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Live streams controller snapshots over a websocket. Each connection owns
// one controller, closed when the connection ends.
// GET /admin/dashboard/live
func (h *DashboardHandler) Live(w http.ResponseWriter, r *http.Request) {
	cfg, err := parseDashboardConfig(r.URL.Query(), h.opts.DefaultLanguage, h.opts.Location)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.opts.Metrics.LiveClientOpened()
	defer h.opts.Metrics.LiveClientClosed()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ctrl := dashboard.NewController(h.fetcher, cfg, dashboard.ControllerOptions{
		Feed:     h.opts.Feed,
		Debounce: h.opts.Debounce,
		Location: h.opts.Location,
		Now:      h.opts.Now,
		Metrics:  h.opts.Metrics,
		Logger:   h.logger,
	})
	defer ctrl.Close()

	updates, stop := ctrl.Watch()
	defer stop()

	if err := ctrl.Start(ctx); err != nil {
		h.logger.Error("live dashboard start failed", "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "change feed unavailable"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	notices := make(chan LiveMessage, 4)
	go h.readPump(conn, ctrl, notices, cancel)
	h.writePump(ctx, conn, updates, notices)
}

// readPump applies client commands until the connection fails.
func (h *DashboardHandler) readPump(conn *websocket.Conn, ctrl *dashboard.Controller, notices chan<- LiveMessage, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxCommandSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd liveCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("live connection closed", "error", err)
			}
			return
		}
		switch strings.ToLower(cmd.Type) {
		case "refresh":
			ctrl.Refresh()
		case "config":
			cfg, err := parseDashboardConfig(url.Values{
				"doctor": {cmd.Doctor},
				"start":  {cmd.Start},
				"end":    {cmd.End},
				"lang":   {cmd.Lang},
			}, h.opts.DefaultLanguage, h.opts.Location)
			if err != nil {
				h.notify(notices, err.Error())
				continue
			}
			ctrl.SetConfig(cfg)
		default:
			h.notify(notices, "unknown command type")
		}
	}
}

func (h *DashboardHandler) notify(notices chan<- LiveMessage, msg string) {
	select {
	case notices <- LiveMessage{Type: "error", Error: msg}:
	default:
	}
}

// writePump is the only writer on conn.
func (h *DashboardHandler) writePump(ctx context.Context, conn *websocket.Conn, updates <-chan dashboard.Snapshot, notices <-chan LiveMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(LiveMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
				return
			}
		case msg := <-notices:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
