package normalize

import (
	"fmt"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/transport"
	"sort"
	"time"

	"github.com/tidwall/gjson"
)

// PriceTierPolicy picks the authoritative price of a day that lists several
// price tiers.
type PriceTierPolicy string

const (
	// FirstTier takes the first tier in the order the service lists them.
	FirstTier PriceTierPolicy = "first"
	// LowestTier takes the cheapest tier.
	LowestTier PriceTierPolicy = "lowest"
	// DefaultFlaggedTier takes the tier flagged isDefault, falling back to
	// the first tier.
	DefaultFlaggedTier PriceTierPolicy = "default_flagged"
)

func ParsePriceTierPolicy(s string) (PriceTierPolicy, error) {
	switch p := PriceTierPolicy(s); p {
	case FirstTier, LowestTier, DefaultFlaggedTier:
		return p, nil
	}
	return "", fmt.Errorf("unknown price tier policy %q", s)
}

// Pick returns the price chosen from tiers, 0 when there are none.
func (p PriceTierPolicy) Pick(tiers []gjson.Result) int {
	if len(tiers) == 0 {
		return 0
	}
	chosen := tiers[0]
	switch p {
	case LowestTier:
		for _, tier := range tiers[1:] {
			if tier.Get("price").Float() < chosen.Get("price").Float() {
				chosen = tier
			}
		}
	case DefaultFlaggedTier:
		for _, tier := range tiers {
			if tier.Get("isDefault").Bool() {
				chosen = tier
				break
			}
		}
	}
	return int(chosen.Get("price").Int())
}

const scheduleDateLayout = "2006-01-02"

func (n Normalizer) schedule(payload transport.Payload) ([]acquire.Record, error) {
	var records []acquire.Record
	for _, page := range payload.Pages {
		days, err := graphqlData(acquire.TargetSchedule, page, "schedule.bizItemSchedule.daily.date")
		if err != nil {
			return nil, err
		}
		if !days.IsObject() {
			return nil, acquire.NewSchemaMismatch(acquire.TargetSchedule, "daily.date is not an object", nil)
		}

		var parseErr error
		days.ForEach(func(key, day gjson.Result) bool {
			date, err := time.ParseInLocation(scheduleDateLayout, key.String(), n.time.Location())
			if err != nil {
				parseErr = acquire.NewSchemaMismatch(acquire.TargetSchedule, "bad date key", err)
				return false
			}
			records = append(records, n.scheduleDay(date, day))
			return true
		})
		if parseErr != nil {
			return nil, parseErr
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, _ := records[i].Time(acquire.FieldDate)
		b, _ := records[j].Time(acquire.FieldDate)
		return a.Before(b)
	})
	return records, nil
}

func (n Normalizer) scheduleDay(date time.Time, day gjson.Result) acquire.Record {
	return acquire.Record{
		acquire.FieldDate:            date,
		acquire.FieldPrice:           n.cfg.PriceTier.Pick(day.Get("prices").Array()),
		acquire.FieldIsAvailable:     day.Get("isSaleDay").Bool(),
		acquire.FieldIsBusinessDay:   optionalBool(day.Get("isBusinessDay")),
		acquire.FieldStock:           optionalInt(day.Get("stock")),
		acquire.FieldBookingCount:    optionalInt(day.Get("bookingCount")),
		acquire.FieldMinBookingCount: optionalInt(day.Get("minBookingCount")),
		acquire.FieldMaxBookingCount: optionalInt(day.Get("maxBookingCount")),
	}
}

// OnlySaleDays keeps the schedule records that can actually be booked.
func OnlySaleDays(records []acquire.Record) []acquire.Record {
	var out []acquire.Record
	for _, r := range records {
		if r.Bool(acquire.FieldIsAvailable) {
			out = append(out, r)
		}
	}
	return out
}

func optionalBool(v gjson.Result) any {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	}
	return nil
}

func optionalInt(v gjson.Result) any {
	if v.Type != gjson.Number {
		return nil
	}
	return int(v.Int())
}
