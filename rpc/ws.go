package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"cookledger/core/events"
)

const (
	wsWriteTimeout   = 10 * time.Second
	subscriberBuffer = 64
)

// StreamEvent is the websocket frame for one committed event.
type StreamEvent struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func streamEventFrom(evt events.Event) StreamEvent {
	out := StreamEvent{Type: evt.EventType()}
	if payload, ok := evt.(events.Payload); ok {
		if body := payload.Event(); body != nil {
			out.Attributes = body.Attributes
		}
	}
	return out
}

type subscriber struct {
	ch     chan StreamEvent
	prefix string
}

// Hub fans committed events out to websocket subscribers. A subscriber that
// falls behind by more than its buffer is dropped.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[*subscriber]struct{}), logger: logger}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	frame := streamEventFrom(evt)
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.prefix != "" && !strings.HasPrefix(frame.Type, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- frame:
		default:
			delete(h.subs, sub)
			close(sub.ch)
			h.logger.Warn("dropping slow event subscriber")
		}
	}
}

// Subscribe registers a subscriber for events whose type starts with prefix.
// The returned cancel func must be called once the caller is done.
func (h *Hub) Subscribe(prefix string) (<-chan StreamEvent, func()) {
	sub := &subscriber{ch: make(chan StreamEvent, subscriberBuffer), prefix: prefix}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub.ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[sub]; ok {
			delete(h.subs, sub)
			close(sub.ch)
		}
	}
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	updates, cancel := s.hub.Subscribe(prefix)
	defer cancel()
	ctx := conn.CloseRead(r.Context())
	if err := streamEvents(ctx, conn, updates); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func streamEvents(ctx context.Context, conn *websocket.Conn, updates <-chan StreamEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-updates:
			if !ok {
				return nil
			}
			data, err := json.Marshal(frame)
			if err != nil {
				return err
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
