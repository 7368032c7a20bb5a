package collector

import (
	"errors"
	"fmt"
	"os"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/normalize"
	"petstay-backend/internal/acquire/ratelimit"
	"petstay-backend/internal/acquire/retry"
	"petstay-backend/internal/acquire/sources"
	"petstay-backend/internal/acquire/transport"
	"petstay-backend/internal/components/configutil"
	"time"
)

type DelayRange struct {
	Min retry.Duration `json:"min"`
	Max retry.Duration `json:"max"`
}

type GuardConfig struct {
	// Delays are keyed by strategy name (direct, hybrid, browser).
	Delays        map[string]DelayRange `json:"delays"`
	EscalateAfter int                   `json:"escalate_after"`
	Multiplier    float64               `json:"multiplier"`
	MaxLevel      int                   `json:"max_level"`
}

type BrowserConfig struct {
	ExecPath string `json:"exec_path"`
	// Headful shows the browser window, mostly useful while debugging
	// selectors.
	Headful bool `json:"headful"`
}

type HybridConfig struct {
	StateKeys     []string       `json:"state_keys"`
	ScriptTimeout retry.Duration `json:"script_timeout"`
}

// Config is read from collector.json5 (and collector.local.json5).
type Config struct {
	Sources sources.Config `json:"sources"`
	// Timeouts override the per-attempt timeout, keyed by strategy name.
	Timeouts map[string]retry.Duration `json:"timeouts"`
	Retry    retry.Policy              `json:"retry"`
	Guard    GuardConfig               `json:"guard"`
	// Strategies picks the strategy used for a target type, keyed by
	// target type.
	Strategies map[string]string `json:"strategies"`
	// Fallback lists the strategies tried after the primary one is blocked,
	// keyed by target type.
	Fallback     map[string][]string `json:"fallback"`
	UserAgents   []string            `json:"user_agents"`
	BlockMarkers []string            `json:"block_markers"`
	Normalize    normalize.Config    `json:"normalize"`
	// MaxInFlight overrides the worker pool size, 0 picks it from the
	// targets of the run.
	MaxInFlight int `json:"max_in_flight"`
	// DirectRequestsPerSecond caps each direct strategy instance.
	DirectRequestsPerSecond float64       `json:"direct_requests_per_second"`
	Browser                 BrowserConfig `json:"browser"`
	Hybrid                  HybridConfig  `json:"hybrid"`
}

// DefaultStrategies send the API backed targets straight to their
// endpoints and render review pages in a browser.
var DefaultStrategies = map[acquire.TargetType]transport.Kind{
	acquire.TargetSchedule:       transport.KindDirect,
	acquire.TargetBookingItems:   transport.KindDirect,
	acquire.TargetShelterListing: transport.KindDirect,
	acquire.TargetReview:         transport.KindBrowser,
}

var defaultConfig = Config{
	Sources:                 sources.DefaultConfig,
	Retry:                   retry.DefaultPolicy,
	Normalize:               normalize.DefaultConfig,
	DirectRequestsPerSecond: 5,
}

// LoadConfig reads the config file at path and fills in defaults. A missing
// file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read collector config: %w", err)
	}
	return configutil.WithDefaults(cfg, defaultConfig)
}

func parseKinds(names []string) ([]transport.Kind, error) {
	kinds := make([]transport.Kind, 0, len(names))
	for _, name := range names {
		kind, err := transport.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// chains resolves the strategy chain of every target type.
func (c Config) chains() (map[acquire.TargetType][]transport.Kind, error) {
	out := make(map[acquire.TargetType][]transport.Kind, len(DefaultStrategies))
	for t, kind := range DefaultStrategies {
		out[t] = []transport.Kind{kind}
	}
	for name, strategy := range c.Strategies {
		t, err := acquire.ParseTargetType(name)
		if err != nil {
			return nil, fmt.Errorf("strategies: %w", err)
		}
		kind, err := transport.ParseKind(strategy)
		if err != nil {
			return nil, fmt.Errorf("strategies.%s: %w", name, err)
		}
		out[t] = []transport.Kind{kind}
	}
	for name, fallback := range c.Fallback {
		t, err := acquire.ParseTargetType(name)
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
		kinds, err := parseKinds(fallback)
		if err != nil {
			return nil, fmt.Errorf("fallback.%s: %w", name, err)
		}
		out[t] = append(out[t][:1:1], kinds...)
	}
	return out, nil
}

func (c Config) timeout(kind transport.Kind) time.Duration {
	return time.Duration(c.Timeouts[kind.String()])
}

func (c Config) guard() (ratelimit.Config, error) {
	out := ratelimit.Config{
		Delays:        map[transport.Kind]ratelimit.Range{},
		EscalateAfter: c.Guard.EscalateAfter,
		Multiplier:    c.Guard.Multiplier,
		MaxLevel:      c.Guard.MaxLevel,
	}
	for name, r := range c.Guard.Delays {
		kind, err := transport.ParseKind(name)
		if err != nil {
			return ratelimit.Config{}, fmt.Errorf("guard.delays: %w", err)
		}
		out.Delays[kind] = ratelimit.Range{Min: time.Duration(r.Min), Max: time.Duration(r.Max)}
	}
	err := out.Validate()
	if err != nil {
		return ratelimit.Config{}, fmt.Errorf("guard: %w", err)
	}
	return out, nil
}
