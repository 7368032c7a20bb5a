// Package sources describes how to reach each upstream endpoint: which URL
// to hit for a target, what headers and body to send, how the payload is
// formatted and whether more pages follow.
package sources

import (
	"fmt"
	"net/http"
	"net/url"
	"petstay-backend/internal/acquire"
)

type Format int

const (
	FormatJSON Format = iota
	FormatHTML
)

func (f Format) String() string {
	if f == FormatHTML {
		return "html"
	}
	return "json"
}

// Request is everything a transport needs to perform one page fetch.
type Request struct {
	Method string
	URL    string
	Query  map[string]string
	Header map[string]string
	// Body is marshalled as JSON when non-nil.
	Body   any
	Format Format

	// HomeURL is visited first by session based transports so the site sets
	// its cookies before the real page is requested.
	HomeURL string
	// Cookies are seeded into the session before the home page visit.
	Cookies []*http.Cookie
	// Expand is a selector clicked ExpandClicks times after the page renders
	// to reveal collapsed content.
	Expand       string
	ExpandClicks int
}

// PageURL is URL with Query merged into its existing query string, for
// transports that navigate rather than build requests.
func (r Request) PageURL() (string, error) {
	if len(r.Query) == 0 {
		return r.URL, nil
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", r.URL, err)
	}
	values := u.Query()
	for k, v := range r.Query {
		values.Set(k, v)
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// Source builds requests for one target type.
type Source interface {
	// Request builds the request for the given 1-indexed page.
	Request(target acquire.Target, page int) (Request, error)
	// More reports whether the page after `page` should be fetched given the
	// body of `page`.
	More(target acquire.Target, page int, body []byte) bool
}

// Registry maps a target type to the source that serves it.
type Registry map[acquire.TargetType]Source

func (r Registry) Lookup(t acquire.TargetType) (Source, error) {
	source, ok := r[t]
	if !ok {
		return nil, fmt.Errorf("no source registered for target type %q", t)
	}
	return source, nil
}

type Config struct {
	// BookingGraphQL is the booking endpoint without the opName query.
	BookingGraphQL string `json:"booking_graphql"`
	PlaceBase      string `json:"place_base"`
	PlaceHome      string `json:"place_home"`
	ShelterAPI     string `json:"shelter_api"`
	ShelterKey     string `json:"shelter_service_key"`
	// ExpandSelector is the "more" button on the review page.
	ExpandSelector string `json:"expand_selector"`
	ExpandClicks   int    `json:"expand_clicks"`
	ShelterRows    int    `json:"shelter_rows"`
	MaxPages       int    `json:"max_pages"`
}

var DefaultConfig = Config{
	BookingGraphQL: "https://m.booking.naver.com/graphql",
	PlaceBase:      "https://m.place.naver.com",
	PlaceHome:      "https://www.naver.com",
	ShelterAPI:     "https://apis.data.go.kr/1543061/abandonmentPublicSrvc/abandonmentPublic",
	ExpandSelector: "a.dP0sq[role='button']",
	ExpandClicks:   2,
	ShelterRows:    1000,
	MaxPages:       50,
}

// NewRegistry wires the default source for every supported target type.
func NewRegistry(cfg Config) Registry {
	return Registry{
		acquire.TargetSchedule:       scheduleSource{cfg: cfg},
		acquire.TargetBookingItems:   bookingItemsSource{cfg: cfg},
		acquire.TargetReview:         reviewSource{cfg: cfg},
		acquire.TargetShelterListing: shelterSource{cfg: cfg},
	}
}

type singlePage struct{}

func (singlePage) More(acquire.Target, int, []byte) bool {
	return false
}
