// Package adapter provides adapters for framedsock integration with external systems.
package adapter

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/framedsock/pkg/framed"
)

// OTel implements framed.Observer with OpenTelemetry instruments. Every send
// becomes a span named "framed.send" covering the writability wait and the write.
type OTel struct {
	tracer       trace.Tracer
	frames       metric.Int64Counter
	received     metric.Int64Counter
	noData       metric.Int64Counter
	resets       metric.Int64Counter
	readErrors   metric.Int64Counter
	sent         metric.Int64Counter
	sendErrors   metric.Int64Counter
	sendDuration metric.Float64Histogram
}

var _ framed.Observer = (*OTel)(nil)

// NewOTel creates the instruments on meter. Spans are started on tracer.
func NewOTel(meter metric.Meter, tracer trace.Tracer) (*OTel, error) {
	o := &OTel{tracer: tracer}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&o.frames, "framed.frames.received", "Frames returned by ReadFrame.", "{frame}"},
		{&o.received, "framed.bytes.received", "Bytes received from sockets.", "By"},
		{&o.noData, "framed.reads.no_data", "ReadFrame calls that returned without a frame.", "{call}"},
		{&o.resets, "framed.connection.resets", "Connections closed by the peer.", "{connection}"},
		{&o.readErrors, "framed.reads.errors", "Receive transport failures.", "{error}"},
		{&o.sent, "framed.bytes.sent", "Bytes sent, delimiters included.", "By"},
		{&o.sendErrors, "framed.sends.errors", "Failed sends.", "{error}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}
	hist, err := meter.Float64Histogram("framed.send.duration",
		metric.WithDescription("Time spent waiting for writability and sending."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	o.sendDuration = hist
	return o, nil
}

func (o *OTel) FrameReceived(int) { o.frames.Add(context.Background(), 1) }

func (o *OTel) BytesReceived(n int) { o.received.Add(context.Background(), int64(n)) }

func (o *OTel) NoData() { o.noData.Add(context.Background(), 1) }

func (o *OTel) ConnectionReset() { o.resets.Add(context.Background(), 1) }

func (o *OTel) ReadFailed(error) { o.readErrors.Add(context.Background(), 1) }

func (o *OTel) Sent(n int, frame bool, elapsed time.Duration, err error) {
	ctx := context.Background()
	end := time.Now()
	attrs := []attribute.KeyValue{
		attribute.Int("framed.bytes", n),
		attribute.Bool("framed.frame", frame),
	}
	_, span := o.tracer.Start(ctx, "framed.send",
		trace.WithTimestamp(end.Add(-elapsed)),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
	o.sendDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.Bool("framed.frame", frame)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.sendErrors.Add(ctx, 1)
	} else {
		o.sent.Add(ctx, int64(n))
	}
	span.End(trace.WithTimestamp(end))
}
