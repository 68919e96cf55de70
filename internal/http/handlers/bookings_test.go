package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-booking-dashboard/internal/bookings"
	"github.com/wolfman30/dental-booking-dashboard/internal/changefeed"
)

type stubStatusSetter struct {
	err    error
	gotID  string
	gotRaw string
}

func (s *stubStatusSetter) SetStatus(_ context.Context, id, raw string) (bookings.Status, error) {
	s.gotID, s.gotRaw = id, raw
	if s.err != nil {
		return "", s.err
	}
	return bookings.ParseStatus(raw)
}

func patchStatus(h *BookingsHandler, id, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Patch("/admin/bookings/{bookingID}/status", h.UpdateStatus)
	req := httptest.NewRequest(http.MethodPatch, "/admin/bookings/"+id+"/status", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestUpdateStatusSuccessRelaysChange(t *testing.T) {
	svc := &stubStatusSetter{}
	feed := changefeed.NewMemoryFeed()
	sub, err := feed.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	h := NewBookingsHandler(svc, feed, nil)
	rec := patchStatus(h, "7d3c1a52-1e0b-4f51-a1a8-2f0f0f0e9b11", `{"status":"Confirmed"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"7d3c1a52-1e0b-4f51-a1a8-2f0f0f0e9b11","status":"confirmed"}`, rec.Body.String())
	assert.Equal(t, "Confirmed", svc.gotRaw)

	select {
	case evt := <-sub.Events():
		assert.Equal(t, changefeed.OpUpdate, evt.Op)
		assert.Equal(t, "7d3c1a52-1e0b-4f51-a1a8-2f0f0f0e9b11", evt.RecordID)
	case <-time.After(time.Second):
		t.Fatal("expected relayed change")
	}
}

func TestUpdateStatusErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: bad", bookings.ErrInvalidID), http.StatusBadRequest},
		{fmt.Errorf("%w: \"archived\"", bookings.ErrInvalidStatus), http.StatusBadRequest},
		{bookings.ErrNotFound, http.StatusNotFound},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := NewBookingsHandler(&stubStatusSetter{err: tc.err}, nil, nil)
		rec := patchStatus(h, "b-1", `{"status":"cancelled"}`)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	}
}

func TestUpdateStatusRejectsBadBody(t *testing.T) {
	svc := &stubStatusSetter{}
	h := NewBookingsHandler(svc, nil, nil)
	rec := patchStatus(h, "b-1", `{"status":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.gotID, "service must not be called")
}
