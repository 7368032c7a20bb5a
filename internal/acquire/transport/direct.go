package transport

import (
	"context"
	"math"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/sources"
	"petstay-backend/internal/components/telemetry"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_direct_fetch = "direct.fetch"
)

// Direct issues plain HTTP requests with a fresh User-Agent per call and no
// session warm-up.
type Direct struct {
	sources  sources.Registry
	agents   UserAgents
	detector BlockDetector
	timeout  time.Duration
	http     *resty.Client
	tel      telemetry.API
}

// NewDirect creates the direct strategy, requestsPerSecond caps the request
// rate of this instance (0 means uncapped).
func NewDirect(opts Options, requestsPerSecond float64) *Direct {
	opts = opts.withDefaults()
	tel := telemetry.NewScopedAPI("direct_http", opts.Tel)

	httpClient := resty.New()
	httpClient.SetTimeout(timeoutFor(KindDirect, opts.Timeout))

	if requestsPerSecond > 0 {
		// burst >= rps just means that no requests will be dropped
		rateLimiter := rate.NewLimiter(
			rate.Limit(requestsPerSecond),
			int(math.Max(1, math.Ceil(requestsPerSecond))),
		)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}
	telemetry.InstrumentResty(httpClient, tel, "petstay/transport/direct")

	return &Direct{
		sources:  opts.Sources,
		agents:   opts.UserAgents,
		detector: opts.Detector,
		timeout:  timeoutFor(KindDirect, opts.Timeout),
		http:     httpClient,
		tel:      tel,
	}
}

func (d *Direct) Kind() Kind {
	return KindDirect
}

func (d *Direct) Fetch(ctx context.Context, target acquire.Target) (Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var payload Payload
	for page := 1; ; page++ {
		source, req, err := buildRequest(d.sources, target, page)
		if err != nil {
			d.tel.ReportBroken(report_direct_fetch, err, target.ID)
			return Payload{}, err
		}

		body, status, err := d.do(ctx, req)
		if err == nil {
			err = classifyResponse(d.detector, req.Format, status, body)
		}
		if err != nil {
			d.tel.ReportWarning(report_direct_fetch, err, target.ID, page)
			return Payload{}, err
		}

		payload.Pages = append(payload.Pages, body)
		payload.Format = req.Format
		payload.FinalURL = req.URL
		if !source.More(target, page, body) {
			break
		}
	}
	d.tel.ReportDebug(report_direct_fetch, target.ID, "pages", len(payload.Pages))
	return payload, nil
}

func (d *Direct) do(ctx context.Context, req sources.Request) ([]byte, int, error) {
	r := d.http.R().
		SetContext(ctx).
		SetHeaders(req.Header).
		SetHeader("user-agent", d.agents.Next()).
		SetQueryParams(req.Query)
	if req.Body != nil {
		r.SetBody(req.Body)
	}
	res, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, 0, classifyError(err)
	}
	return res.Body(), res.StatusCode(), nil
}
