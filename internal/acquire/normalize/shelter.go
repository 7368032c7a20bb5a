package normalize

import (
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/transport"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const shelterDateLayout = "20060102"

// earliest birth year accepted from the free text age field
const minBirthYear = 1990

var (
	breedPrefix  = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*`)
	leadingYear  = regexp.MustCompile(`^\s*(\d{4})`)
	leadingFloat = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)
)

func (n Normalizer) shelter(payload transport.Payload) ([]acquire.Record, error) {
	var records []acquire.Record
	for _, page := range payload.Pages {
		items, err := shelterItems(page)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			records = append(records, n.shelterItem(item))
		}
	}
	return records, nil
}

// shelterItems reads response.body.items.item, which is a list, a single
// object when only one animal matched, or absent when the page is empty.
func shelterItems(page []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(page) {
		return nil, acquire.NewSchemaMismatch(acquire.TargetShelterListing, "body is not valid json", nil)
	}
	response := gjson.GetBytes(page, "response")
	if !response.Exists() {
		return nil, acquire.NewSchemaMismatch(acquire.TargetShelterListing, "missing response", nil)
	}
	code := response.Get("header.resultCode")
	if code.Exists() && code.String() != "00" && code.String() != "0" {
		return nil, acquire.NewSchemaMismatch(
			acquire.TargetShelterListing,
			"service error "+code.String()+": "+response.Get("header.resultMsg").String(),
			nil,
		)
	}
	body := response.Get("body")
	if !body.Exists() {
		return nil, acquire.NewSchemaMismatch(acquire.TargetShelterListing, "missing response.body", nil)
	}

	item := body.Get("items.item")
	switch {
	case item.IsArray():
		return item.Array(), nil
	case item.IsObject():
		return []gjson.Result{item}, nil
	}
	return nil, nil
}

func (n Normalizer) shelterItem(item gjson.Result) acquire.Record {
	kind, breed := splitBreed(item.Get("kindCd").String())
	age := item.Get("age").String()
	image := item.Get("popfile")
	if !image.Exists() {
		image = item.Get("popfile1")
	}

	return acquire.Record{
		acquire.FieldDesertionNo:  optionalString(item.Get("desertionNo")),
		acquire.FieldKind:         kind,
		acquire.FieldBreed:        breed,
		acquire.FieldColor:        optionalString(item.Get("colorCd")),
		acquire.FieldAge:          optionalString(item.Get("age")),
		acquire.FieldBirthYear:    n.birthYear(age),
		acquire.FieldWeightKg:     weightKg(item.Get("weight").String()),
		acquire.FieldSex:          optionalString(item.Get("sexCd")),
		acquire.FieldNeutered:     neutered(item.Get("neuterYn").String()),
		acquire.FieldProcessState: optionalString(item.Get("processState")),
		acquire.FieldCareName:     optionalString(item.Get("careNm")),
		acquire.FieldCareAddress:  optionalString(item.Get("careAddr")),
		acquire.FieldCareTel:      optionalString(item.Get("careTel")),
		acquire.FieldOrgName:      optionalString(item.Get("orgNm")),
		acquire.FieldHappenDate:   n.date(item.Get("happenDt")),
		acquire.FieldHappenPlace:  optionalString(item.Get("happenPlace")),
		acquire.FieldNoticeNo:     optionalString(item.Get("noticeNo")),
		acquire.FieldNoticeStart:  n.date(item.Get("noticeSdt")),
		acquire.FieldNoticeEnd:    n.date(item.Get("noticeEdt")),
		acquire.FieldImageURL:     optionalString(image),
		acquire.FieldSpecialMark:  optionalString(item.Get("specialMark")),
	}
}

// splitBreed splits "[개] 믹스견" into its species and breed, either is nil
// when absent.
func splitBreed(s string) (kind, breed any) {
	s = strings.TrimSpace(s)
	if m := breedPrefix.FindStringSubmatch(s); m != nil {
		kind = m[1]
		s = strings.TrimSpace(s[len(m[0]):])
	}
	if s != "" {
		breed = s
	}
	return kind, breed
}

// birthYear reads ages like "2021(년생)", anything outside the plausible
// range becomes nil.
func (n Normalizer) birthYear(age string) any {
	m := leadingYear.FindStringSubmatch(age)
	if m == nil {
		return nil
	}
	year, err := strconv.Atoi(m[1])
	if err != nil || year < minBirthYear || year > n.time.Now().Year() {
		return nil
	}
	return year
}

// weightKg reads weights like "3.2(Kg)".
func weightKg(s string) any {
	m := leadingFloat.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	w, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return w
}

func neutered(s string) any {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Y":
		return true
	case "N":
		return false
	}
	return nil
}

func (n Normalizer) date(v gjson.Result) any {
	s := strings.TrimSpace(v.String())
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation(shelterDateLayout, s, n.time.Location())
	if err != nil {
		return nil
	}
	return t
}

// optionalString keeps numbers as their literal text, the service is not
// consistent about quoting identifiers.
func optionalString(v gjson.Result) any {
	switch v.Type {
	case gjson.String:
		s := strings.TrimSpace(v.String())
		if s == "" {
			return nil
		}
		return s
	case gjson.Number:
		return v.Raw
	}
	return nil
}
