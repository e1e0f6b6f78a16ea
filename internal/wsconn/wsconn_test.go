package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/mordor-monitor/internal/apperror"
)

// wsServer runs handler for every accepted connection.
func wsServer(t *testing.T, handler func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		if handler != nil {
			handler(conn)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(context.Background()); err != nil {
			return
		}
	}
}

func newClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	cfg.PingInterval = 0
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func connect(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
}

func TestNew_RejectsNonWebSocketURL(t *testing.T) {
	for _, u := range []string{"", "http://localhost:8081/ws", "::bad"} {
		if _, err := New(DefaultConfig(u, "stream")); !apperror.IsCode(err, apperror.CodeInvalidInput) {
			t.Errorf("New(%q) error = %v, want INVALID_INPUT", u, err)
		}
	}
}

func TestClient_ConnectFailure(t *testing.T) {
	client := newClient(t, DefaultConfig("ws://127.0.0.1:1", "stream"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := client.Connect(ctx)
	if !apperror.IsCode(err, apperror.CodeWebSocketConnectionError) {
		t.Fatalf("Connect() error = %v, want WEBSOCKET_CONNECTION_ERROR", err)
	}
	if client.State() != StateDisconnected {
		t.Errorf("State = %v, want %v", client.State(), StateDisconnected)
	}
}

func TestClient_ReceivesServerPushes(t *testing.T) {
	_, url := wsServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		for i := 1; i <= 3; i++ {
			msg, _ := json.Marshal(map[string]any{"type": "tick", "n": i})
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
		drain(conn)
	})

	client := newClient(t, DefaultConfig(url, "stream"))

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	client.OnMessage(func(ctx context.Context, msg []byte) {
		var ev struct {
			N int `json:"n"`
		}
		_ = json.Unmarshal(msg, &ev)
		mu.Lock()
		got = append(got, ev.N)
		if len(got) == 3 {
			close(done)
		}
		mu.Unlock()
	})

	connect(t, client)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for messages")
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("messages = %v, want [1 2 3] in order", got)
	}
}

func TestClient_StateTransitions(t *testing.T) {
	_, url := wsServer(t, drain)
	client := newClient(t, DefaultConfig(url, "stream"))

	var mu sync.Mutex
	var states []State
	client.OnStateChange(func(state State, err error) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	})

	connect(t, client)
	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateConnecting, StateConnected, StateClosed}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestClient_ReconnectsAfterServerDrop(t *testing.T) {
	var conns atomic.Int32
	_, url := wsServer(t, func(conn *websocket.Conn) {
		if conns.Add(1) == 1 {
			return // drop the first connection right away
		}
		_ = conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"tick"}`))
		drain(conn)
	})

	cfg := DefaultConfig(url, "stream")
	cfg.InitialBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 20 * time.Millisecond
	client := newClient(t, cfg)

	received := make(chan struct{}, 1)
	client.OnMessage(func(ctx context.Context, msg []byte) {
		select {
		case received <- struct{}{}:
		default:
		}
	})

	connect(t, client)

	select {
	case <-received:
	case <-time.After(3 * time.Second):
		t.Fatalf("no message after reconnect; state %v, reconnects %d", client.State(), client.Reconnects())
	}
	if client.Reconnects() < 1 {
		t.Errorf("Reconnects() = %d, want >= 1", client.Reconnects())
	}
}

func TestClient_GivesUpAfterMaxReconnects(t *testing.T) {
	srv, url := wsServer(t, func(conn *websocket.Conn) {})

	cfg := DefaultConfig(url, "stream")
	cfg.InitialBackoff = 5 * time.Millisecond
	cfg.MaxBackoff = 10 * time.Millisecond
	cfg.MaxReconnects = 2
	client := newClient(t, cfg)

	var mu sync.Mutex
	var last State
	client.OnStateChange(func(state State, err error) {
		mu.Lock()
		last = state
		mu.Unlock()
	})

	connect(t, client)
	srv.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		s := last
		mu.Unlock()
		if s == StateDisconnected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v after reconnect budget", client.State(), StateDisconnected)
}

func TestClient_SendJSONConcurrent(t *testing.T) {
	var count atomic.Int32
	_, url := wsServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				return
			}
			count.Add(1)
		}
	})

	client := newClient(t, DefaultConfig(url, "stream"))
	connect(t, client)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if err := client.SendJSON(ctx, map[string]int{"g": id, "m": j}); err != nil {
					t.Errorf("SendJSON() error = %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for count.Load() < 40 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := count.Load(); got != 40 {
		t.Errorf("server received %d messages, want 40", got)
	}
}

func TestClient_SendWhenClosed(t *testing.T) {
	_, url := wsServer(t, drain)
	client := newClient(t, DefaultConfig(url, "stream"))

	err := client.Send(context.Background(), []byte("x"))
	if !apperror.IsCode(err, apperror.CodeWebSocketClosed) {
		t.Errorf("Send() before Connect error = %v, want WEBSOCKET_CLOSED", err)
	}
}

func TestClient_OversizedMessageDrops(t *testing.T) {
	_, url := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.Write(context.Background(), websocket.MessageText, make([]byte, 64*1024))
		time.Sleep(100 * time.Millisecond)
	})

	cfg := DefaultConfig(url, "stream")
	cfg.MaxMessageSize = 100
	client := newClient(t, cfg)
	connect(t, client)

	time.Sleep(300 * time.Millisecond)
	if client.State() == StateConnected {
		t.Error("client still connected after oversized message")
	}
}
