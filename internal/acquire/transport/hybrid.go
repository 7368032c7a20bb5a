package transport

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/sources"
	"petstay-backend/internal/components/telemetry"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const (
	report_hybrid_fetch   = "hybrid.fetch"
	report_hybrid_warm_up = "hybrid.warm-up"
	report_hybrid_render  = "hybrid.render"
)

// Hybrid keeps a cookie session like a browser would and runs the page's
// inline scripts in an embedded interpreter to recover the state the page
// would have rendered, without starting a browser process.
type Hybrid struct {
	sources       sources.Registry
	agents        UserAgents
	detector      BlockDetector
	timeout       time.Duration
	scriptTimeout time.Duration
	stateKeys     []string
	tel           telemetry.API
}

type HybridOptions struct {
	// StateKeys are the `window.<key>` globals extracted after scripts run.
	StateKeys     []string
	ScriptTimeout time.Duration
}

var DefaultStateKeys = []string{"__APOLLO_STATE__"}

func NewHybrid(opts Options, hopts HybridOptions) *Hybrid {
	opts = opts.withDefaults()
	if len(hopts.StateKeys) == 0 {
		hopts.StateKeys = DefaultStateKeys
	}
	if hopts.ScriptTimeout <= 0 {
		hopts.ScriptTimeout = 5 * time.Second
	}
	return &Hybrid{
		sources:       opts.Sources,
		agents:        opts.UserAgents,
		detector:      opts.Detector,
		timeout:       timeoutFor(KindHybrid, opts.Timeout),
		scriptTimeout: hopts.ScriptTimeout,
		stateKeys:     hopts.StateKeys,
		tel:           telemetry.NewScopedAPI("hybrid_render", opts.Tel),
	}
}

func (h *Hybrid) Kind() Kind {
	return KindHybrid
}

// hybridSession is owned by exactly one Fetch call.
type hybridSession struct {
	http      *resty.Client
	userAgent string
}

func (h *Hybrid) newSession(req sources.Request) (hybridSession, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return hybridSession{}, err
	}
	for _, seed := range []string{req.HomeURL, req.URL} {
		if seed == "" {
			continue
		}
		u, err := url.Parse(seed)
		if err != nil {
			return hybridSession{}, err
		}
		jar.SetCookies(u, req.Cookies)
	}

	httpClient := resty.New()
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetTimeout(h.timeout)
	telemetry.InstrumentResty(httpClient, h.tel, "petstay/transport/hybrid")

	// one agent for the whole session, the cookies are tied to it
	userAgent := h.agents.Next()
	httpClient.SetHeader("user-agent", userAgent)
	return hybridSession{http: httpClient, userAgent: userAgent}, nil
}

func (s hybridSession) do(ctx context.Context, req sources.Request) ([]byte, int, error) {
	r := s.http.R().
		SetContext(ctx).
		SetHeaders(req.Header).
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

func (h *Hybrid) Fetch(ctx context.Context, target acquire.Target) (Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	source, req, err := buildRequest(h.sources, target, 1)
	if err != nil {
		h.tel.ReportBroken(report_hybrid_fetch, err, target.ID)
		return Payload{}, err
	}
	session, err := h.newSession(req)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: session: %v", acquire.ErrRequest, err)
	}

	if req.HomeURL != "" {
		err := h.warmUp(ctx, session, req)
		if err != nil {
			return Payload{}, err
		}
	}

	var raw [][]byte
	for page := 1; ; page++ {
		if page > 1 {
			_, req, err = buildRequest(h.sources, target, page)
			if err != nil {
				return Payload{}, err
			}
		}
		body, status, err := session.do(ctx, req)
		if err == nil {
			err = classifyResponse(h.detector, req.Format, status, body)
		}
		if err != nil {
			h.tel.ReportWarning(report_hybrid_fetch, err, target.ID, page)
			return Payload{}, err
		}
		raw = append(raw, body)
		if !source.More(target, page, body) {
			break
		}
	}

	payload := Payload{Pages: raw, Format: req.Format, FinalURL: req.URL}
	if req.Format != sources.FormatHTML {
		return payload, nil
	}

	rendered := make([][]byte, 0, len(raw))
	for _, body := range raw {
		state, err := extractState(ctx, body, session.userAgent, h.stateKeys, h.scriptTimeout)
		if err != nil {
			h.tel.ReportWarning(report_hybrid_render, err, target.ID)
			return payload, nil
		}
		rendered = append(rendered, state)
	}
	payload.Pages = rendered
	payload.Format = sources.FormatJSON
	return payload, nil
}

// warmUp visits the home page so the session picks up the cookies a real
// visitor would carry. Only a block is fatal.
func (h *Hybrid) warmUp(ctx context.Context, session hybridSession, req sources.Request) error {
	header := map[string]string{}
	if lang := req.Header["accept-language"]; lang != "" {
		header["accept-language"] = lang
	}
	body, status, err := session.do(ctx, sources.Request{
		Method: "GET",
		URL:    req.HomeURL,
		Header: header,
	})
	if err != nil {
		h.tel.ReportWarning(report_hybrid_warm_up, err, req.HomeURL)
		return nil
	}
	if h.detector.Blocked(status, body) {
		return acquire.NewTransportError(
			acquire.FailureBlocked,
			status,
			fmt.Errorf("blocked during warm-up of %s", req.HomeURL),
		)
	}
	return nil
}
