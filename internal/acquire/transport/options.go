package transport

import (
	"petstay-backend/internal/acquire/sources"
	"petstay-backend/internal/components/assert"
	"petstay-backend/internal/components/chrono"
	"petstay-backend/internal/components/telemetry"
	"time"
)

// Options are shared by every strategy constructor. The user agent source
// is injected per instance so strategies never share hidden header state.
type Options struct {
	Sources    sources.Registry
	UserAgents UserAgents
	Detector   BlockDetector
	// Timeout overrides the strategy's default per-attempt timeout.
	Timeout time.Duration
	Clock   chrono.Clock
	Tel     telemetry.API
}

func (o Options) withDefaults() Options {
	assert.NotNil(o.Sources)
	assert.NotNil(o.Tel)
	if o.UserAgents == nil {
		o.UserAgents = DesktopUserAgents{}
	}
	if o.Detector.markers == nil {
		o.Detector = NewBlockDetector(nil)
	}
	if o.Clock == nil {
		o.Clock = chrono.NewStandardImpl()
	}
	return o
}
