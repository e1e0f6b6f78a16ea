package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fd1az/mordor-monitor/internal/apperror"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Client") != "mordor-cli" {
			http.Error(w, "missing header", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"canonical_length":3}`))
	})
	mux.HandleFunc("GET /api/forks", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_INPUT","message":"bad limit"}}`))
	})
	mux.HandleFunc("GET /broken", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(
		WithBaseURL(baseURL),
		WithProviderName("monitor-api"),
		WithHeaders(map[string]string{"X-Client": "mordor-cli"}),
		WithErrorCode(apperror.CodeMonitorAPIError),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestClient_GetJSON(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv.URL)

	var out struct {
		CanonicalLength int `json:"canonical_length"`
	}
	if err := c.GetJSON(context.Background(), "/api/status", &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.CanonicalLength != 3 {
		t.Errorf("canonical_length = %d, want 3", out.CanonicalLength)
	}
}

func TestClient_GetJSONErrors(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name       string
		base       string
		path       string
		wantStatus int
	}{
		{name: "api error body", base: srv.URL, path: "api/forks", wantStatus: http.StatusBadRequest},
		{name: "bad json", base: srv.URL, path: "/broken", wantStatus: http.StatusBadGateway},
		{name: "unreachable", base: "http://127.0.0.1:1", path: "/api/status", wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, tt.base)
			var out map[string]any
			err := c.GetJSON(context.Background(), tt.path, &out)
			if !apperror.IsCode(err, apperror.CodeMonitorAPIError) {
				t.Fatalf("err = %v, want MONITOR_API_ERROR", err)
			}
			var appErr *apperror.AppError
			appErr, _ = err.(*apperror.AppError)
			if appErr.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", appErr.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestClient_GetReturnsErrorStatuses(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, "")

	resp, err := c.Get(context.Background(), srv.URL+"/missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.StatusCode != http.StatusNotFound || resp.IsSuccess() {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
