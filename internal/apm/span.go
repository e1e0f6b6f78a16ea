package apm

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/mordor-monitor/internal/apperror"
)

// Span is the subset of trace.Span the business modules use, plus helpers
// that tag errors and blocks consistently.
type Span interface {
	SetAttributes(values ...attribute.KeyValue)
	AddEvent(name string, options ...trace.EventOption)
	End(options ...trace.SpanEndOption)
	// NoticeError records err, tags its apperror code and marks the span failed.
	NoticeError(err error)
	// SetBlock tags the block the span worked on.
	SetBlock(number uint64, hash string)
	SpanContext() trace.SpanContext
}

type traceSpan struct {
	span trace.Span
}

func NewSpan(span trace.Span) Span {
	return &traceSpan{span}
}

func (t *traceSpan) SetAttributes(values ...attribute.KeyValue) {
	t.span.SetAttributes(values...)
}

func (t *traceSpan) AddEvent(name string, options ...trace.EventOption) {
	t.span.AddEvent(name, options...)
}

func (t *traceSpan) End(options ...trace.SpanEndOption) {
	t.span.End(options...)
}

func (t *traceSpan) NoticeError(err error) {
	if err == nil {
		return
	}
	t.span.RecordError(err)
	t.span.SetAttributes(attribute.String("error.code", string(apperror.GetCode(err))))
	t.span.SetStatus(codes.Error, err.Error())
}

func (t *traceSpan) SetBlock(number uint64, hash string) {
	t.span.SetAttributes(
		attribute.Int64("block.number", int64(number)),
		attribute.String("block.hash", hash),
	)
}

func (t *traceSpan) SpanContext() trace.SpanContext {
	return t.span.SpanContext()
}
