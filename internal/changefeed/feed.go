package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	// OpResync is emitted after a reconnect, when changes may have been missed.
	OpResync Op = "RESYNC"
	// OpUnknown marks a notification whose payload could not be decoded.
	OpUnknown Op = "UNKNOWN"
)

// DefaultChannel is the notification channel the bookings trigger publishes on.
const DefaultChannel = "booking_changes"

// Event describes one change to a watched table.
type Event struct {
	Table    string    `json:"table"`
	Op       Op        `json:"op"`
	RecordID string    `json:"id,omitempty"`
	At       time.Time `json:"at"`
}

// Subscription delivers events until closed.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Feed opens subscriptions to booking table changes.
type Feed interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// Publisher relays a change to subscribers, for writers the database does
// not notify on their behalf.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// ParseEvent decodes a JSON notification payload.
func ParseEvent(payload string) (Event, error) {
	var evt Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return Event{}, fmt.Errorf("changefeed: decode payload: %w", err)
	}
	evt.Op = Op(strings.ToUpper(string(evt.Op)))
	switch evt.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return Event{}, fmt.Errorf("changefeed: unknown op %q", evt.Op)
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	return evt, nil
}

// Encode renders evt as a notification payload.
func (e Event) Encode() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("changefeed: encode event: %w", err)
	}
	return string(data), nil
}
