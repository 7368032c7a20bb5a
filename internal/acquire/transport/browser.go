package transport

import (
	"context"
	"fmt"
	"math/rand/v2"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/sources"
	"petstay-backend/internal/components/chrono"
	"petstay-backend/internal/components/telemetry"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	report_browser_fetch   = "browser.fetch"
	report_browser_warm_up = "browser.warm-up"
	report_browser_expand  = "browser.expand"
)

type BrowserOptions struct {
	// ExecPath is the chrome binary, empty means chromedp's lookup.
	ExecPath string
	Headless bool
	// Rand seeds session fingerprints, nil draws a random seed.
	Rand *rand.Rand
}

// Browser drives a real headless chrome. Every Fetch launches its own
// browser process and tears it down before returning.
type Browser struct {
	sources  sources.Registry
	detector BlockDetector
	timeout  time.Duration
	clock    chrono.Clock
	sessions *sessionFactory
	execPath string
	headless bool
	tel      telemetry.API
}

func NewBrowser(opts Options, bopts BrowserOptions) *Browser {
	opts = opts.withDefaults()
	return &Browser{
		sources:  opts.Sources,
		detector: opts.Detector,
		timeout:  timeoutFor(KindBrowser, opts.Timeout),
		clock:    opts.Clock,
		sessions: newSessionFactory(bopts.Rand, opts.UserAgents),
		execPath: bopts.ExecPath,
		headless: bopts.Headless,
		tel:      telemetry.NewScopedAPI("browser_automation", opts.Tel),
	}
}

func (b *Browser) Kind() Kind {
	return KindBrowser
}

func (b *Browser) allocatorOptions(session Session) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
		chromedp.Flag("lang", session.Locale),
		chromedp.WindowSize(session.Width, session.Height),
		chromedp.UserAgent(session.UserAgent),
	)
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}
	return opts
}

// launch starts an isolated browser for one session, release must be called
// exactly once and kills the browser process.
func (b *Browser) launch(ctx context.Context, session Session) (context.Context, func()) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, b.allocatorOptions(session)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	return browserCtx, func() {
		cancelBrowser()
		cancelAlloc()
	}
}

func (b *Browser) Fetch(ctx context.Context, target acquire.Target) (Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	source, req, err := buildRequest(b.sources, target, 1)
	if err != nil {
		b.tel.ReportBroken(report_browser_fetch, err, target.ID)
		return Payload{}, err
	}

	session := b.sessions.New()
	browserCtx, release := b.launch(ctx, session)
	defer release()

	var status atomic.Int64
	chromedp.ListenTarget(browserCtx, func(ev any) {
		e, ok := ev.(*network.EventResponseReceived)
		if ok && e.Type == network.ResourceTypeDocument {
			status.Store(e.Response.Status)
		}
	})

	err = chromedp.Run(browserCtx, b.prepare(session, req)...)
	if err != nil {
		b.tel.ReportBroken(report_browser_fetch, fmt.Errorf("prepare session: %w", err), target.ID)
		return Payload{}, classifyError(err)
	}

	if req.HomeURL != "" {
		err = chromedp.Run(browserCtx, b.warmUp(session, req)...)
		if err != nil {
			b.tel.ReportWarning(report_browser_warm_up, err, req.HomeURL)
		} else if code := int(status.Load()); b.detector.Blocked(code, nil) {
			return Payload{}, acquire.NewTransportError(
				acquire.FailureBlocked,
				code,
				fmt.Errorf("blocked during warm-up of %s", req.HomeURL),
			)
		}
	}

	payload := Payload{Format: sources.FormatHTML}
	for n := 1; ; n++ {
		if n > 1 {
			_, req, err = buildRequest(b.sources, target, n)
			if err != nil {
				return Payload{}, err
			}
		}
		status.Store(0)

		pageURL, err := req.PageURL()
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %v", acquire.ErrRequest, err)
		}

		var html, location string
		err = chromedp.Run(browserCtx, b.visit(session, req, pageURL, &html, &location)...)
		if err != nil {
			b.tel.ReportWarning(report_browser_fetch, err, target.ID, n)
			return Payload{}, classifyError(err)
		}
		body := []byte(html)
		err = classifyResponse(b.detector, sources.FormatHTML, int(status.Load()), body)
		if err != nil {
			b.tel.ReportWarning(report_browser_fetch, err, target.ID, n)
			return Payload{}, err
		}

		payload.Pages = append(payload.Pages, body)
		payload.FinalURL = location
		if !source.More(target, n, body) {
			break
		}
	}
	return payload, nil
}

func (b *Browser) prepare(session Session, req sources.Request) []chromedp.Action {
	actions := []chromedp.Action{
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript(session)).Do(ctx)
			return err
		}),
		emulation.SetTimezoneOverride(session.Timezone),
		emulation.SetLocaleOverride().WithLocale(session.Locale),
		emulation.SetDeviceMetricsOverride(int64(session.Width), int64(session.Height), 1, false),
	}
	if lang := req.Header["accept-language"]; lang != "" {
		actions = append(actions, network.SetExtraHTTPHeaders(network.Headers{"accept-language": lang}))
	}
	for _, c := range req.Cookies {
		cookie := network.SetCookie(c.Name, c.Value).WithPath(c.Path)
		switch {
		case c.Domain != "":
			cookie = cookie.WithDomain(c.Domain)
		case req.HomeURL != "":
			// chrome rejects a cookie with neither domain nor url
			cookie = cookie.WithURL(req.HomeURL)
		default:
			cookie = cookie.WithURL(req.URL)
		}
		if !c.Expires.IsZero() {
			expires := cdp.TimeSinceEpoch(c.Expires)
			cookie = cookie.WithExpires(&expires)
		}
		actions = append(actions, cookie)
	}
	return actions
}

func (b *Browser) sleep(d time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return b.clock.Sleep(ctx, d)
	})
}

func (b *Browser) warmUp(session Session, req sources.Request) []chromedp.Action {
	return []chromedp.Action{
		chromedp.Navigate(req.HomeURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		b.sleep(session.BeforeNavigate),
	}
}

func (b *Browser) visit(session Session, req sources.Request, pageURL string, html, location *string) []chromedp.Action {
	headers := network.Headers{}
	for k, v := range req.Header {
		if k == "accept" {
			continue
		}
		headers[k] = v
	}

	actions := []chromedp.Action{
		network.SetExtraHTTPHeaders(headers),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.MouseEvent(input.MouseMoved, session.PointerX, session.PointerY),
		chromedp.Evaluate(`window.scrollBy(0, 150)`, nil),
		b.sleep(session.AfterNavigate),
	}
	if req.Expand != "" {
		actions = append(actions, b.expand(session, req.Expand, req.ExpandClicks))
	}
	return append(actions,
		chromedp.Location(location),
		chromedp.OuterHTML("html", html, chromedp.ByQuery),
	)
}

// expand clicks selector up to clicks times, stopping early once the button
// is gone. A page without the button is not an error.
func (b *Browser) expand(session Session, selector string, clicks int) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for i := 0; i < clicks; i++ {
			var nodes []*cdp.Node
			err := chromedp.Run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)))
			if err != nil || len(nodes) == 0 {
				return nil
			}
			clickCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = chromedp.Run(clickCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
			cancel()
			if err != nil {
				b.tel.ReportDebug(report_browser_expand, selector, err)
				return nil
			}
			err = b.clock.Sleep(ctx, session.BetweenClicks)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
