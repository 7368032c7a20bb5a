package acquire

import "time"

// Record field names. Which fields a record carries depends on the target
// type that produced it.
const (
	// schedule
	FieldDate            = "date"
	FieldPrice           = "price"
	FieldIsAvailable     = "is_available"
	FieldIsBusinessDay   = "is_business_day"
	FieldStock           = "stock"
	FieldBookingCount    = "booking_count"
	FieldMinBookingCount = "min_booking_count"
	FieldMaxBookingCount = "max_booking_count"

	// review
	FieldReviewTag = "review_tag"
	FieldVoteCount = "vote_count"

	// booking items
	FieldBizItemID   = "biz_item_id"
	FieldBizItemName = "biz_item_name"

	// shelter listing
	FieldDesertionNo  = "desertion_no"
	FieldKind         = "kind"
	FieldBreed        = "breed"
	FieldColor        = "color"
	FieldAge          = "age"
	FieldBirthYear    = "birth_year"
	FieldWeightKg     = "weight_kg"
	FieldSex          = "sex"
	FieldNeutered     = "neutered"
	FieldProcessState = "process_state"
	FieldCareName     = "care_name"
	FieldCareAddress  = "care_address"
	FieldCareTel      = "care_tel"
	FieldOrgName      = "org_name"
	FieldHappenDate   = "happen_date"
	FieldHappenPlace  = "happen_place"
	FieldNoticeNo     = "notice_no"
	FieldNoticeStart  = "notice_start"
	FieldNoticeEnd    = "notice_end"
	FieldImageURL     = "image_url"
	FieldSpecialMark  = "special_mark"
)

// Schemas lists the fields every record of a target type must carry. Nil
// values are allowed where coercion failed.
var Schemas = map[TargetType][]string{
	TargetSchedule:     {FieldDate, FieldPrice, FieldIsAvailable},
	TargetReview:       {FieldReviewTag, FieldVoteCount},
	TargetBookingItems: {FieldBizItemID, FieldBizItemName},
	TargetShelterListing: {
		FieldDesertionNo, FieldKind, FieldBreed, FieldAge, FieldBirthYear,
		FieldWeightKg, FieldSex, FieldProcessState, FieldHappenDate,
		FieldNoticeStart, FieldNoticeEnd, FieldCareName,
	},
}

// Record is one canonical row of output.
type Record map[string]any

// Conforms reports whether r carries every field required for t.
func (r Record) Conforms(t TargetType) bool {
	for _, field := range Schemas[t] {
		if _, ok := r[field]; !ok {
			return false
		}
	}
	return true
}

func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

func (r Record) Int(field string) int {
	n, _ := r[field].(int)
	return n
}

func (r Record) Bool(field string) bool {
	b, _ := r[field].(bool)
	return b
}

func (r Record) Time(field string) (time.Time, bool) {
	t, ok := r[field].(time.Time)
	return t, ok
}
