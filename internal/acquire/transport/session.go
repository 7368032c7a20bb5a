package transport

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Session is the fingerprint one browser fetch presents. It is drawn fresh
// for every fetch and dies with it.
type Session struct {
	UserAgent string
	Width     int
	Height    int
	Locale    string
	Timezone  string
	// PointerX and PointerY are where the simulated mouse moves to.
	PointerX float64
	PointerY float64
	// BeforeNavigate is waited after the warm-up visit, AfterNavigate after
	// the target page is ready.
	BeforeNavigate time.Duration
	AfterNavigate  time.Duration
	// BetweenClicks is waited after each expand click.
	BetweenClicks time.Duration
}

var viewports = [][2]int{
	{1920, 1080},
	{1680, 1050},
	{1536, 864},
	{1440, 900},
	{1366, 768},
}

type sessionFactory struct {
	mutex    sync.Mutex
	rnd      *rand.Rand
	agents   UserAgents
	locale   string
	timezone string
}

func newSessionFactory(rnd *rand.Rand, agents UserAgents) *sessionFactory {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &sessionFactory{
		rnd:      rnd,
		agents:   agents,
		locale:   "ko-KR",
		timezone: "Asia/Seoul",
	}
}

func (f *sessionFactory) between(lo, hi time.Duration) time.Duration {
	return lo + time.Duration(f.rnd.Int64N(int64(hi-lo)+1))
}

func (f *sessionFactory) New() Session {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	viewport := viewports[f.rnd.IntN(len(viewports))]
	return Session{
		UserAgent:      f.agents.Next(),
		Width:          viewport[0],
		Height:         viewport[1],
		Locale:         f.locale,
		Timezone:       f.timezone,
		PointerX:       float64(100 + f.rnd.IntN(701)),
		PointerY:       float64(100 + f.rnd.IntN(501)),
		BeforeNavigate: f.between(time.Second, 3*time.Second),
		AfterNavigate:  f.between(2*time.Second, 4*time.Second),
		BetweenClicks:  f.between(time.Second, 2*time.Second),
	}
}
