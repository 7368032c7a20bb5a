package sources

import (
	"fmt"
	"petstay-backend/internal/acquire"
	"strconv"

	"github.com/tidwall/gjson"
)

// Animal categories understood by the shelter API.
const (
	UpkindDog   = "417000"
	UpkindCat   = "422400"
	UpkindOther = "429900"
)

// shelter API process state filters
var shelterStates = map[string]string{
	"":        "",
	"notice":  "notice",
	"protect": "protect",
	"공고중":     "notice",
	"보호중":     "protect",
}

type shelterSource struct {
	cfg Config
}

func (s shelterSource) rows(target acquire.Target) int {
	if n, err := strconv.Atoi(target.Param(acquire.ParamRows)); err == nil && n > 0 {
		return n
	}
	if s.cfg.ShelterRows > 0 {
		return s.cfg.ShelterRows
	}
	return 1000
}

func (s shelterSource) Request(target acquire.Target, page int) (Request, error) {
	key := target.Param(acquire.ParamServiceKey)
	if key == "" {
		key = s.cfg.ShelterKey
	}
	if key == "" {
		return Request{}, fmt.Errorf("shelter listing needs a service key")
	}
	state, ok := shelterStates[target.Param(acquire.ParamState)]
	if !ok {
		return Request{}, fmt.Errorf("unknown shelter state %q", target.Param(acquire.ParamState))
	}

	query := map[string]string{
		"serviceKey": key,
		"upkind":     target.Param(acquire.ParamUpkind),
		"pageNo":     strconv.Itoa(page),
		"numOfRows":  strconv.Itoa(s.rows(target)),
		"_type":      "json",
	}
	if state != "" {
		query["state"] = state
	}
	return Request{
		Method: "GET",
		URL:    s.cfg.ShelterAPI,
		Query:  query,
		Header: map[string]string{"accept": "application/json"},
		Format: FormatJSON,
	}, nil
}

func (s shelterSource) More(target acquire.Target, page int, body []byte) bool {
	if s.cfg.MaxPages > 0 && page >= s.cfg.MaxPages {
		return false
	}
	if !gjson.ValidBytes(body) {
		return false
	}
	b := gjson.GetBytes(body, "response.body")
	// an empty result set comes back as `"items": ""`
	item := b.Get("items.item")
	if !item.Exists() || item.Type == gjson.Null || (item.IsArray() && len(item.Array()) == 0) {
		return false
	}
	rows := int(b.Get("numOfRows").Int())
	if rows <= 0 {
		rows = s.rows(target)
	}
	return page*rows < int(b.Get("totalCount").Int())
}
