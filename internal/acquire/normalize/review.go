package normalize

import (
	"bytes"
	"fmt"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/sources"
	"petstay-backend/internal/acquire/transport"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// Vocabulary is the closed set of review tags a place can be voted for.
// Every review result carries exactly one record per label.
type Vocabulary []string

var DefaultVocabulary = Vocabulary{
	"인테리어가 멋져요", "동물을 배려한 환경이에요", "시설이 깔끔해요", "사진이 잘 나와요",
	"야외공간이 멋져요", "뷰가 좋아요", "친절해요", "공간이 넓어요", "가격이 합리적이에요",
	"매장이 청결해요", "화장실이 깨끗해요", "대화하기 좋아요", "반려동물과 가기 좋아요",
	"조용히 쉬기 좋아요", "침구가 좋아요", "바비큐 해먹기 좋아요", "화장실이 잘 되어있어요",
	"주차하기 편해요", "물놀이하기 좋아요", "냉난방이 잘돼요", "즐길 거리가 많아요",
	"방음이 잘돼요", "컨셉이 독특해요", "취사시설이 잘 되어있어요",
}

func (v Vocabulary) Validate() error {
	seen := make(map[string]struct{}, len(v))
	for _, label := range v {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("review vocabulary contains an empty label")
		}
		if _, ok := seen[label]; ok {
			return fmt.Errorf("review vocabulary contains %q twice", label)
		}
		seen[label] = struct{}{}
	}
	return nil
}

// records expands the observed counts to one record per known label.
func (v Vocabulary) records(counts map[string]int) []acquire.Record {
	records := make([]acquire.Record, len(v))
	for i, label := range v {
		records[i] = acquire.Record{
			acquire.FieldReviewTag: label,
			acquire.FieldVoteCount: counts[label],
		}
	}
	return records
}

// Selectors locate the voted keyword list on the visitor review page.
type Selectors struct {
	// Section is the container of the keyword list, only the first match
	// is read.
	Section string `json:"section"`
	Item    string `json:"item"`
	Label   string `json:"label"`
	Count   string `json:"count"`
}

var DefaultSelectors = Selectors{
	Section: "div.place_section_content",
	Item:    "ul li",
	Label:   "span.t3JSf",
	Count:   "span.CUoLy",
}

func (s Selectors) withDefaults() Selectors {
	if s.Section == "" {
		s.Section = DefaultSelectors.Section
	}
	if s.Item == "" {
		s.Item = DefaultSelectors.Item
	}
	if s.Label == "" {
		s.Label = DefaultSelectors.Label
	}
	if s.Count == "" {
		s.Count = DefaultSelectors.Count
	}
	return s
}

func (n Normalizer) review(payload transport.Payload) ([]acquire.Record, error) {
	page := payload.Pages[0]
	var counts map[string]int
	var err error
	if payload.Format == sources.FormatHTML {
		counts, err = n.reviewHTML(page)
	} else {
		counts, err = reviewState(page)
	}
	if err != nil {
		return nil, err
	}
	return n.cfg.Vocabulary.records(counts), nil
}

func (n Normalizer) reviewHTML(page []byte) (map[string]int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, acquire.NewSchemaMismatch(acquire.TargetReview, "cannot parse html", err)
	}
	section := doc.Find(n.cfg.Selectors.Section).First()
	if section.Length() == 0 {
		return nil, acquire.NewSchemaMismatch(acquire.TargetReview, "no review section", nil)
	}

	items := section.Find(n.cfg.Selectors.Item)
	if items.Length() == 0 {
		return nil, acquire.NewSchemaMismatch(acquire.TargetReview, "review section has no keyword list", nil)
	}

	counts := make(map[string]int)
	items.Each(func(_ int, li *goquery.Selection) {
		label := cleanLabel(li.Find(n.cfg.Selectors.Label).First().Text())
		if label == "" {
			return
		}
		if _, seen := counts[label]; seen {
			return
		}
		counts[label] = digitsOnly(li.Find(n.cfg.Selectors.Count).First().Text())
	})
	return counts, nil
}

// reviewState reads voted keywords out of a serialized client side state,
// where each keyword is an object with a displayName and a count. A state
// with no votedKeyword block and no keyword object is not a review page.
func reviewState(page []byte) (map[string]int, error) {
	if !gjson.ValidBytes(page) {
		return nil, acquire.NewSchemaMismatch(acquire.TargetReview, "state is not valid json", nil)
	}
	root := gjson.ParseBytes(page)
	if !root.IsObject() {
		return nil, acquire.NewSchemaMismatch(acquire.TargetReview, "state is not an object", nil)
	}

	counts := make(map[string]int)
	found := false
	var walk func(v gjson.Result)
	walk = func(v gjson.Result) {
		if v.IsObject() {
			name := v.Get("displayName")
			count := v.Get("count")
			if name.Type == gjson.String && count.Type == gjson.Number {
				found = true
				label := cleanLabel(name.String())
				if _, seen := counts[label]; !seen {
					counts[label] = int(count.Int())
				}
			}
		}
		if v.IsObject() || v.IsArray() {
			v.ForEach(func(key, child gjson.Result) bool {
				if strings.HasPrefix(key.String(), "votedKeyword") && (child.IsObject() || child.IsArray()) {
					found = true
				}
				walk(child)
				return true
			})
		}
	}
	walk(root)
	if !found {
		return nil, acquire.NewSchemaMismatch(acquire.TargetReview, "state has no voted keywords", nil)
	}
	return counts, nil
}

var innerWhitespace = regexp.MustCompile(`\s+`)

// cleanLabel strips the quotes the page wraps labels in and collapses
// whitespace.
func cleanLabel(s string) string {
	s = strings.NewReplacer(`"`, "", "“", "", "”", "").Replace(s)
	s = innerWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func digitsOnly(s string) int {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}
