// Package acquire holds the data model shared by every stage of a collection
// run: what to fetch, what came back and how it failed.
package acquire

import (
	"fmt"
	"maps"
)

type TargetType string

const (
	TargetSchedule       TargetType = "schedule"
	TargetReview         TargetType = "review"
	TargetShelterListing TargetType = "shelter_listing"
	TargetBookingItems   TargetType = "booking_items"
)

var knownTypes = map[TargetType][]string{
	TargetSchedule:       {ParamBusinessID, ParamBizItemID, ParamStart, ParamEnd},
	TargetReview:         {ParamChannelID},
	TargetShelterListing: {ParamUpkind},
	TargetBookingItems:   {ParamBusinessID},
}

// Endpoint parameter names.
const (
	ParamBusinessID = "business_id"
	ParamBizItemID  = "biz_item_id"
	ParamStart      = "start"
	ParamEnd        = "end"
	ParamChannelID  = "channel_id"
	ParamUpkind     = "upkind"
	ParamState      = "state"
	ParamRows       = "rows"
	ParamServiceKey = "service_key"
	ParamCategory   = "category"
)

// ParseTargetType accepts the canonical names used in config files and
// on the command line.
func ParseTargetType(s string) (TargetType, error) {
	t := TargetType(s)
	if _, ok := knownTypes[t]; !ok {
		return "", fmt.Errorf("unknown target type %q", s)
	}
	return t, nil
}

// Target is one external fetch unit. It is immutable once constructed.
type Target struct {
	ID     string
	Type   TargetType
	params map[string]string
}

func NewTarget(id string, t TargetType, params map[string]string) Target {
	return Target{ID: id, Type: t, params: maps.Clone(params)}
}

// Param returns the endpoint parameter with the given name, or "".
func (t Target) Param(name string) string {
	return t.params[name]
}

// Params returns a copy of all endpoint parameters.
func (t Target) Params() map[string]string {
	return maps.Clone(t.params)
}

func (t Target) String() string {
	return fmt.Sprintf("%s(%s)", t.Type, t.ID)
}

// Validate reports whether the target can be dispatched at all.
func (t Target) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("target has empty id")
	}
	required, ok := knownTypes[t.Type]
	if !ok {
		return fmt.Errorf("target %s: unknown type %q", t.ID, t.Type)
	}
	for _, name := range required {
		if t.params[name] == "" {
			return fmt.Errorf("target %s: missing param %q", t.ID, name)
		}
	}
	return nil
}

// ValidateAll checks every target and rejects duplicate ids, a run with an
// invalid target does not start.
func ValidateAll(targets []Target) error {
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		err := t.Validate()
		if err != nil {
			return &RunError{Kind: RunInvalidTarget, Err: err}
		}
		if _, dup := seen[t.ID]; dup {
			return &RunError{Kind: RunInvalidTarget, Err: fmt.Errorf("duplicate target id %q", t.ID)}
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
