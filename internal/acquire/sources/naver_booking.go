package sources

import (
	"fmt"
	"petstay-backend/internal/acquire"
)

// accommodation business type on the booking platform
const bookingBusinessTypeId = 5

type graphqlRequest struct {
	Name     string `json:"operationName"`
	Query    string `json:"query"`
	Variable any    `json:"variables"`
}

var jsonHeaders = map[string]string{
	"content-type": "application/json",
	"accept":       "*/*",
	"origin":       "https://m.booking.naver.com",
	"referer":      "https://m.booking.naver.com/",
}

func graphqlPost(cfg Config, name, query string, variables any) Request {
	return Request{
		Method: "POST",
		URL:    cfg.BookingGraphQL,
		Query:  map[string]string{"opName": name},
		Header: jsonHeaders,
		Body: graphqlRequest{
			Name:     name,
			Query:    query,
			Variable: variables,
		},
		Format: FormatJSON,
	}
}

type scheduleParams struct {
	BusinessId     string `json:"businessId"`
	BizItemId      string `json:"bizItemId"`
	BusinessTypeId int    `json:"businessTypeId"`
	StartDateTime  string `json:"startDateTime"`
	EndDateTime    string `json:"endDateTime"`
}

type scheduleSource struct {
	singlePage
	cfg Config
}

func (s scheduleSource) Request(target acquire.Target, page int) (Request, error) {
	if page != 1 {
		return Request{}, fmt.Errorf("schedule is not paginated, got page %d", page)
	}
	return graphqlPost(s.cfg, "schedule", scheduleQuery, map[string]any{
		"scheduleParams": scheduleParams{
			BusinessId:     target.Param(acquire.ParamBusinessID),
			BizItemId:      target.Param(acquire.ParamBizItemID),
			BusinessTypeId: bookingBusinessTypeId,
			StartDateTime:  target.Param(acquire.ParamStart),
			EndDateTime:    target.Param(acquire.ParamEnd),
		},
	}), nil
}

type bizItemsInput struct {
	BusinessId  string `json:"businessId"`
	Lang        string `json:"lang"`
	Projections string `json:"projections"`
}

type bookingItemsSource struct {
	singlePage
	cfg Config
}

func (s bookingItemsSource) Request(target acquire.Target, page int) (Request, error) {
	if page != 1 {
		return Request{}, fmt.Errorf("booking items are not paginated, got page %d", page)
	}
	return graphqlPost(s.cfg, "bizItems", bizItemsQuery, map[string]any{
		"input": bizItemsInput{
			BusinessId:  target.Param(acquire.ParamBusinessID),
			Lang:        "ko",
			Projections: "RESOURCE",
		},
	}), nil
}
