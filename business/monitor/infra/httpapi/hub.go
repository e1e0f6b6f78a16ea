package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/mordor-monitor/business/monitor/domain"
	"github.com/fd1az/mordor-monitor/internal/logger"
)

const writeTimeout = 5 * time.Second

type subscriber struct {
	ch chan []byte
}

// Hub fans stream events out to websocket subscribers. A subscriber whose
// buffer is full misses the event; Broadcast never blocks the poller.
type Hub struct {
	buffer  int
	log     logger.LoggerInterface
	initial func() domain.Event

	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	dropped uint64
	closed  bool
}

// NewHub creates a hub. initial, when set, is sent to each new subscriber
// before any broadcast.
func NewHub(buffer int, initial func() domain.Event, log logger.LoggerInterface) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		buffer:  buffer,
		log:     log,
		initial: initial,
		subs:    make(map[*subscriber]struct{}),
	}
}

// Broadcast implements app.Broadcaster.
func (h *Hub) Broadcast(ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error(context.Background(), "marshal stream event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- data:
		default:
			h.dropped++
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

func (h *Hub) subscribe() (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	s := &subscriber{ch: make(chan []byte, h.buffer)}
	h.subs[s] = struct{}{}
	return s, true
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}

// ServeHTTP upgrades the request and streams events until the client goes
// away or the hub closes. Inbound messages are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	sub, ok := h.subscribe()
	if !ok {
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.unsubscribe(sub)

	ctx := conn.CloseRead(r.Context())

	if h.initial != nil {
		data, err := json.Marshal(h.initial())
		if err == nil && write(ctx, conn, data) != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-sub.ch:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if err := write(ctx, conn, data); err != nil {
				h.log.Debug(ctx, "stream subscriber gone", "error", err)
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
