package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNew_DefaultStatusCode(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeInvalidBlockHeader, http.StatusBadRequest},
		{CodeBlockNotFound, http.StatusNotFound},
		{CodeEthereumConnectionFailed, http.StatusServiceUnavailable},
		{CodeCircuitOpen, http.StatusServiceUnavailable},
		{CodeEthereumRPCError, http.StatusBadGateway},
		{CodeRateLimitExceeded, http.StatusTooManyRequests},
		{CodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code)
			if err.StatusCode != tt.want {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.want)
			}
			if err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestIs_ComparesByCode(t *testing.T) {
	err := Validation(CodeInvalidBlockHeader, "block 12")
	wrapped := fmt.Errorf("ingest: %w", err)

	if !errors.Is(wrapped, New(CodeInvalidBlockHeader)) {
		t.Error("errors.Is should match on code through wrapping")
	}
	if errors.Is(wrapped, New(CodeBlockNotFound)) {
		t.Error("errors.Is should not match a different code")
	}
	if GetCode(wrapped) != CodeInvalidBlockHeader {
		t.Errorf("GetCode = %s", GetCode(wrapped))
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, CodeInternalError, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}

	cause := errors.New("dial tcp: refused")
	err := Wrap(cause, CodeEthereumConnectionFailed, "connect")
	if !errors.Is(err, cause) {
		t.Error("wrapped error should unwrap to cause")
	}

	again := Wrap(err, CodeInternalError, "other")
	if again.Code != CodeEthereumConnectionFailed {
		t.Errorf("Wrap should keep the existing AppError, got %s", again.Code)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rpc", External(CodeEthereumRPCError, "eth_getBlockByNumber", errors.New("eof")), true},
		{"circuit", New(CodeCircuitOpen), true},
		{"plain error", errors.New("boom"), true},
		{"validation", Validation(CodeInvalidBlockHeader, "empty hash"), false},
		{"not found", NotFound(CodeBlockNotFound, "0xabc"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Rendering(t *testing.T) {
	err := External(CodeEthereumRPCError, "latest block", errors.New("EOF")).WithTraceID("abc")

	if got, want := err.Error(), "ETHEREUM_RPC_ERROR: Node RPC call failed (latest block): EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	body := err.ToResponse()
	if body.Error.Code != CodeEthereumRPCError || body.Error.TraceID != "abc" || body.Error.Context != "latest block" {
		t.Errorf("ToResponse() = %+v", body)
	}

	attrs := map[string]string{}
	for _, a := range err.LogValue().Group() {
		attrs[a.Key] = a.Value.String()
	}
	if attrs["cause"] != "EOF" || attrs["code"] != "ETHEREUM_RPC_ERROR" {
		t.Errorf("LogValue() = %v", attrs)
	}
	if _, ok := attrs["stack"]; !ok {
		t.Error("LogValue() should carry the stack")
	}
}
