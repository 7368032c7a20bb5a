package sources

import (
	"fmt"
	"net/http"
	"net/url"
	"petstay-backend/internal/acquire"
	"strings"
	"time"

	"github.com/mazen160/go-random"
)

const placeAcceptLanguage = "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"

type reviewSource struct {
	singlePage
	cfg Config
}

// ReviewURL is the visitor review page of a place, category is "place"
// unless the channel is registered under another vertical like "restaurant".
func ReviewURL(base, category, channelID string) string {
	if category == "" {
		category = "place"
	}
	return fmt.Sprintf(
		"%s/%s/%s/review/visitor",
		strings.TrimSuffix(base, "/"),
		url.PathEscape(category),
		url.PathEscape(channelID),
	)
}

func (s reviewSource) Request(target acquire.Target, page int) (Request, error) {
	if page != 1 {
		return Request{}, fmt.Errorf("review page is not paginated, got page %d", page)
	}
	nnb, err := nnbCookie(s.cfg.PlaceHome)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Method: "GET",
		URL: ReviewURL(
			s.cfg.PlaceBase,
			target.Param(acquire.ParamCategory),
			target.Param(acquire.ParamChannelID),
		),
		Header: map[string]string{
			"accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"accept-language": placeAcceptLanguage,
			"referer":         strings.TrimSuffix(s.cfg.PlaceBase, "/") + "/",
		},
		Format:       FormatHTML,
		HomeURL:      s.cfg.PlaceHome,
		Cookies:      []*http.Cookie{nnb},
		Expand:       s.cfg.ExpandSelector,
		ExpandClicks: s.cfg.ExpandClicks,
	}, nil
}

// nnbCookie builds the browser id cookie a first time visitor of the portal
// would receive: 12 uppercase alphanumerics scoped to the whole domain.
func nnbCookie(home string) (*http.Cookie, error) {
	value, err := random.String(12)
	if err != nil {
		return nil, fmt.Errorf("generate nnb cookie: %w", err)
	}
	domain := ".naver.com"
	if parsed, err := url.Parse(home); err == nil && !strings.HasSuffix(parsed.Hostname(), "naver.com") {
		domain = parsed.Hostname()
	}
	return &http.Cookie{
		Name:    "NNB",
		Value:   strings.ToUpper(value),
		Domain:  domain,
		Path:    "/",
		Expires: time.Now().AddDate(1, 0, 0),
	}, nil
}
