package transport

import (
	"sync"

	browser "github.com/EDDYCJY/fake-useragent"
)

// UserAgents hands out the User-Agent header for the next request or
// session. Implementations must be safe for concurrent use.
type UserAgents interface {
	Next() string
}

// FixedUserAgents rotates through a configured list.
type FixedUserAgents struct {
	mutex  sync.Mutex
	agents []string
	next   int
}

func NewFixedUserAgents(agents ...string) *FixedUserAgents {
	if len(agents) == 0 {
		agents = []string{fallbackUserAgent}
	}
	return &FixedUserAgents{agents: agents}
}

func (f *FixedUserAgents) Next() string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	agent := f.agents[f.next%len(f.agents)]
	f.next++
	return agent
}

const fallbackUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// DesktopUserAgents draws a random desktop browser agent for every call.
type DesktopUserAgents struct{}

func (DesktopUserAgents) Next() string {
	agent := browser.Computer()
	if agent == "" {
		return fallbackUserAgent
	}
	return agent
}
