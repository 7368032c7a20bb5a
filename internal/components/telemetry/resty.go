package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
)

var httpMeter = otel.Meter("petstay/http")
var requestDuration, _ = httpMeter.Float64Histogram(
	"http.client.duration",
	metric.WithUnit("s"),
	metric.WithDescription("upstream request latency by host and status"),
)

// MessageOutput receives the full text of every exchange made by an
// instrumented client.
type MessageOutput interface {
	Write(id string, contents string)
}

var messageOutput atomic.Pointer[MessageOutput]

// SetMessageOutput makes every client instrumented after this call dump its
// exchanges to output, nil turns dumping off.
func SetMessageOutput(output MessageOutput) {
	if output == nil {
		messageOutput.Store(nil)
		return
	}
	messageOutput.Store(&output)
}

var exchangeSeq atomic.Uint64

type exchangeKey struct{}

type exchange struct {
	seq     uint64
	started time.Time
}

type restyHooks struct {
	tel    API
	tracer trace.Tracer
	output MessageOutput
}

// InstrumentResty gives every request made by client a span, a latency
// sample and debug reports, and dumps exchanges when SetMessageOutput was
// called first.
func InstrumentResty(client *resty.Client, tel API, tracerName string) {
	h := restyHooks{tel: tel, tracer: otel.Tracer(tracerName)}
	if output := messageOutput.Load(); output != nil {
		h.output = *output
	}
	client.OnBeforeRequest(h.before)
	client.OnAfterResponse(h.after)
	client.OnError(h.failed)
}

func (h restyHooks) before(_ *resty.Client, req *resty.Request) error {
	ctx, _ := h.tracer.Start(req.Context(), "http "+req.Method, trace.WithSpanKind(trace.SpanKindClient))
	ex := exchange{seq: exchangeSeq.Add(1), started: time.Now()}
	h.tel.ReportDebug(report_resty_request, ex.seq, req.Method, req.URL)
	req.SetContext(context.WithValue(ctx, exchangeKey{}, ex))
	return nil
}

func (h restyHooks) after(_ *resty.Client, res *resty.Response) error {
	ctx := res.Request.Context()
	span := trace.SpanFromContext(ctx)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.url", res.Request.URL),
		attribute.Int("http.status_code", res.StatusCode()),
		attribute.Int("http.response_size", len(res.Body())),
	)
	if res.IsError() {
		span.SetStatus(codes.Error, res.Status())
	}

	ex, ok := ctx.Value(exchangeKey{}).(exchange)
	if !ok {
		return nil
	}
	elapsed := time.Since(ex.started)
	host := ""
	if raw := res.Request.RawRequest; raw != nil {
		host = raw.URL.Host
	}
	requestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("http.host", host),
		attribute.Int("http.status_code", res.StatusCode()),
	))
	h.tel.ReportDebug(report_resty_response, ex.seq, elapsed.String(), res.Status())
	if h.output != nil && res.Request.RawRequest != nil {
		h.output.Write(dumpName(ex.seq, res.Request), formatExchange(res))
	}
	return nil
}

func (h restyHooks) failed(req *resty.Request, err error) {
	ctx := req.Context()
	span := trace.SpanFromContext(ctx)
	defer span.End()
	span.RecordError(err)
	span.SetStatus(codes.Error, "request failed")
	span.SetAttributes(attribute.String("http.url", req.URL))

	var elapsed time.Duration
	if ex, ok := ctx.Value(exchangeKey{}).(exchange); ok {
		elapsed = time.Since(ex.started)
	}
	h.tel.ReportWarning(report_resty_response, err, req.Method, req.URL, elapsed)
}
