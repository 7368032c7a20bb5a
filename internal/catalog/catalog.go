// Package catalog reads the business catalog maintained by the admin tools
// and expands it into acquisition targets.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"petstay-backend/internal/acquire"
	"strings"
	"time"
)

// Entry is one bookable item of a business, a business with several rooms
// has one entry per room.
type Entry struct {
	BizItemID    string
	BizItemName  string
	ChannelID    string
	BusinessName string
	AddressOld   string
	AddressNew   string
	BusinessID   string
	BookingURL   string
}

var columns = []string{
	"bizItemId",
	"bizItemName",
	"channelId",
	"businessName",
	"addressOld",
	"addressNew",
	"businessId",
	"bookingUrl",
}

func (e Entry) row() []string {
	return []string{
		e.BizItemID,
		e.BizItemName,
		e.ChannelID,
		e.BusinessName,
		e.AddressOld,
		e.AddressNew,
		e.BusinessID,
		e.BookingURL,
	}
}

type Catalog struct {
	Entries []Entry
}

// Read parses a catalog, columns are matched by header name so their order
// does not matter. Unknown columns are ignored. Rows are kept as written,
// including businesses whose items are not known yet and repeated rows,
// so a Save after discovery never loses what the admin tools entered.
func Read(r io.Reader) (Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Catalog{}, nil
	}
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")] = i
	}
	for _, required := range []string{"bizItemId", "channelId", "businessId"} {
		if _, ok := index[required]; !ok {
			return Catalog{}, fmt.Errorf("catalog is missing column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var out Catalog
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Catalog{}, fmt.Errorf("read catalog line %d: %w", line, err)
		}
		out.Entries = append(out.Entries, Entry{
			BizItemID:    field(record, "bizItemId"),
			BizItemName:  field(record, "bizItemName"),
			ChannelID:    field(record, "channelId"),
			BusinessName: field(record, "businessName"),
			AddressOld:   field(record, "addressOld"),
			AddressNew:   field(record, "addressNew"),
			BusinessID:   field(record, "businessId"),
			BookingURL:   field(record, "bookingUrl"),
		})
	}
	return out, nil
}

func Load(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, err
	}
	defer f.Close()
	return Read(f)
}

func (c Catalog) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	err := writer.Write(columns)
	if err != nil {
		return err
	}
	for _, e := range c.Entries {
		err = writer.Write(e.row())
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (c Catalog) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = c.Write(f)
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Add appends newly discovered entries, skipping entries without a bizItem
// and bizItems already in the catalog. It reports how many were added.
func (c *Catalog) Add(entries ...Entry) int {
	seen := make(map[string]struct{}, len(c.Entries))
	for _, e := range c.Entries {
		seen[e.BizItemID] = struct{}{}
	}
	added := 0
	for _, e := range entries {
		if e.BizItemID == "" {
			continue
		}
		if _, dup := seen[e.BizItemID]; dup {
			continue
		}
		seen[e.BizItemID] = struct{}{}
		c.Entries = append(c.Entries, e)
		added++
	}
	return added
}

// AddBookingItems records the bizItems discovered for a business, base
// carries the business level fields shared by every item.
func (c *Catalog) AddBookingItems(base Entry, items []acquire.Record) int {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		e := base
		e.BizItemID = item.String(acquire.FieldBizItemID)
		e.BizItemName = item.String(acquire.FieldBizItemName)
		entries = append(entries, e)
	}
	return c.Add(entries...)
}

const dateLayout = "2006-01-02"

// ScheduleTargets creates one schedule target per distinct bizItem covering
// [start, end]. Rows without a bizItem have nothing to schedule yet.
func (c Catalog) ScheduleTargets(start, end time.Time) []acquire.Target {
	targets := make([]acquire.Target, 0, len(c.Entries))
	seen := map[string]struct{}{}
	for _, e := range c.Entries {
		if e.BusinessID == "" || e.BizItemID == "" {
			continue
		}
		id := fmt.Sprintf("schedule/%s/%s", e.BusinessID, e.BizItemID)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, acquire.NewTarget(
			id,
			acquire.TargetSchedule,
			map[string]string{
				acquire.ParamBusinessID: e.BusinessID,
				acquire.ParamBizItemID:  e.BizItemID,
				acquire.ParamStart:      start.Format(dateLayout),
				acquire.ParamEnd:        end.Format(dateLayout),
			},
		))
	}
	return targets
}

// ReviewTargets creates one review target per distinct channel.
func (c Catalog) ReviewTargets(category string) []acquire.Target {
	var targets []acquire.Target
	seen := map[string]struct{}{}
	for _, e := range c.Entries {
		if e.ChannelID == "" {
			continue
		}
		if _, dup := seen[e.ChannelID]; dup {
			continue
		}
		seen[e.ChannelID] = struct{}{}
		params := map[string]string{acquire.ParamChannelID: e.ChannelID}
		if category != "" {
			params[acquire.ParamCategory] = category
		}
		targets = append(targets, acquire.NewTarget("review/"+e.ChannelID, acquire.TargetReview, params))
	}
	return targets
}

// BookingItemTargets creates one booking item discovery target per
// distinct business.
func (c Catalog) BookingItemTargets() []acquire.Target {
	var targets []acquire.Target
	seen := map[string]struct{}{}
	for _, e := range c.Entries {
		if e.BusinessID == "" {
			continue
		}
		if _, dup := seen[e.BusinessID]; dup {
			continue
		}
		seen[e.BusinessID] = struct{}{}
		targets = append(targets, acquire.NewTarget(
			"items/"+e.BusinessID,
			acquire.TargetBookingItems,
			map[string]string{acquire.ParamBusinessID: e.BusinessID},
		))
	}
	return targets
}

// Business returns the first entry of a business, it carries the business
// level fields.
func (c Catalog) Business(businessID string) (Entry, bool) {
	for _, e := range c.Entries {
		if e.BusinessID == businessID {
			return e, true
		}
	}
	return Entry{}, false
}

// ShelterTargets creates one listing target per animal category.
func ShelterTargets(upkinds []string, state string) []acquire.Target {
	targets := make([]acquire.Target, 0, len(upkinds))
	for _, upkind := range upkinds {
		params := map[string]string{acquire.ParamUpkind: upkind}
		if state != "" {
			params[acquire.ParamState] = state
		}
		targets = append(targets, acquire.NewTarget("shelter/"+upkind, acquire.TargetShelterListing, params))
	}
	return targets
}
