// Package transport performs single raw fetches against upstream services.
// Each Strategy trades cost against how convincingly it looks like a person
// browsing the site.
package transport

import (
	"context"
	"fmt"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/sources"
	"time"
)

type Kind int

const (
	KindDirect Kind = iota
	KindHybrid
	KindBrowser
)

func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindHybrid:
		return "hybrid"
	case KindBrowser:
		return "browser"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "direct", "direct_http", "http":
		return KindDirect, nil
	case "hybrid", "hybrid_render":
		return KindHybrid, nil
	case "browser", "browser_automation":
		return KindBrowser, nil
	}
	return 0, fmt.Errorf("unknown transport strategy %q", s)
}

// Payload is the raw result of one successful fetch.
type Payload struct {
	// Pages holds one body per fetched page, in order.
	Pages    [][]byte
	Format   sources.Format
	FinalURL string
}

// Strategy performs one fetch attempt for a target. Failures are returned
// as *acquire.TransportError, except when the request itself cannot be
// built, which wraps acquire.ErrRequest.
type Strategy interface {
	Kind() Kind
	Fetch(ctx context.Context, target acquire.Target) (Payload, error)
}

// DefaultTimeouts are the hard per-attempt limits of each strategy.
var DefaultTimeouts = map[Kind]time.Duration{
	KindDirect:  15 * time.Second,
	KindHybrid:  30 * time.Second,
	KindBrowser: 60 * time.Second,
}

func timeoutFor(kind Kind, configured time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	return DefaultTimeouts[kind]
}

func buildRequest(registry sources.Registry, target acquire.Target, page int) (sources.Source, sources.Request, error) {
	source, err := registry.Lookup(target.Type)
	if err != nil {
		return nil, sources.Request{}, fmt.Errorf("%w: %v", acquire.ErrRequest, err)
	}
	req, err := source.Request(target, page)
	if err != nil {
		return nil, sources.Request{}, fmt.Errorf("%w: %v", acquire.ErrRequest, err)
	}
	return source, req, nil
}
