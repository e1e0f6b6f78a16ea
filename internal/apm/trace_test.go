package apm

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fd1az/mordor-monitor/internal/apperror"
	"github.com/fd1az/mordor-monitor/internal/logger"
)

func TestTracer_RecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tracer := NewTracer("test")
	ctx, span := tracer.StartSpanFromContext(context.Background(), "poll")
	span.SetBlock(42, "0xabc")
	span.NoticeError(apperror.External(apperror.CodeEthereumRPCError, "latest block", errors.New("node down")))
	if !tracer.SpanFromContext(ctx).SpanContext().IsValid() {
		t.Error("span not in context")
	}
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	if ended[0].Name() != "poll" || ended[0].Status().Code != codes.Error {
		t.Errorf("span = %s %v", ended[0].Name(), ended[0].Status())
	}

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range ended[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if got := attrs["error.code"].AsString(); got != string(apperror.CodeEthereumRPCError) {
		t.Errorf("error.code = %q", got)
	}
	if got := attrs["block.number"].AsInt64(); got != 42 {
		t.Errorf("block.number = %d, want 42", got)
	}
}

func TestNewTraceProvider_FallsBackToEmpty(t *testing.T) {
	for _, p := range []Provider{"", EmptyProvider, "bogus"} {
		tp := NewTraceProvider(TraceConfig{Provider: p}, logger.NewDiscard())
		if _, ok := tp.(emptyTraceProvider); !ok {
			t.Errorf("provider %q: got %T, want empty", p, tp)
		}
		if err := tp.Stop(); err != nil {
			t.Error(err)
		}
	}
}
