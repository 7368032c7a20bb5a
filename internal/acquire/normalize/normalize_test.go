package normalize

import (
	"errors"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/sources"
	"petstay-backend/internal/acquire/transport"
	"petstay-backend/internal/components/chrono"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newNormalizer(t testing.TB, cfg Config) Normalizer {
	clock := chrono.NewFakeClock(time.Date(2024, 6, 1, 9, 0, 0, 0, chrono.Seoul()))
	n, err := New(cfg, clock)
	require.NoError(t, err)
	return n
}

func jsonPayload(pages ...string) transport.Payload {
	p := transport.Payload{Format: sources.FormatJSON}
	for _, page := range pages {
		p.Pages = append(p.Pages, []byte(page))
	}
	return p
}

func requireMismatch(t testing.TB, err error) {
	t.Helper()
	var normErr *acquire.NormalizeError
	require.True(t, errors.As(err, &normErr), "expected a NormalizeError, got %v", err)
	require.Equal(t, acquire.SchemaMismatch, normErr.Kind)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, chrono.Seoul())
}

const scheduleBody = `{
  "data": {
    "schedule": {
      "bizItemSchedule": {
        "daily": {
          "date": {
            "2024-06-03": {"isSaleDay": true, "isBusinessDay": true, "stock": 2, "bookingCount": 0,
              "minBookingCount": 1, "maxBookingCount": 1,
              "prices": [{"price": 55000, "isDefault": false}, {"price": 40000, "isDefault": true}]},
            "2024-06-01": {"isSaleDay": true, "isBusinessDay": true, "stock": 1, "bookingCount": 1,
              "prices": [{"price": 60000}]},
            "2024-06-02": {"isSaleDay": false, "isBusinessDay": false, "prices": []}
          },
          "summary": null
        }
      }
    }
  }
}`

func TestScheduleRecords(t *testing.T) {
	n := newNormalizer(t, Config{})

	records, err := n.Normalize(acquire.TargetSchedule, jsonPayload(scheduleBody))
	require.NoError(t, err)

	expected := []acquire.Record{
		{
			acquire.FieldDate:            day(2024, time.June, 1),
			acquire.FieldPrice:           60000,
			acquire.FieldIsAvailable:     true,
			acquire.FieldIsBusinessDay:   true,
			acquire.FieldStock:           1,
			acquire.FieldBookingCount:    1,
			acquire.FieldMinBookingCount: nil,
			acquire.FieldMaxBookingCount: nil,
		},
		{
			acquire.FieldDate:            day(2024, time.June, 2),
			acquire.FieldPrice:           0,
			acquire.FieldIsAvailable:     false,
			acquire.FieldIsBusinessDay:   false,
			acquire.FieldStock:           nil,
			acquire.FieldBookingCount:    nil,
			acquire.FieldMinBookingCount: nil,
			acquire.FieldMaxBookingCount: nil,
		},
		{
			acquire.FieldDate:            day(2024, time.June, 3),
			acquire.FieldPrice:           55000,
			acquire.FieldIsAvailable:     true,
			acquire.FieldIsBusinessDay:   true,
			acquire.FieldStock:           2,
			acquire.FieldBookingCount:    0,
			acquire.FieldMinBookingCount: 1,
			acquire.FieldMaxBookingCount: 1,
		},
	}
	if diff := cmp.Diff(expected, records); diff != "" {
		t.Fatalf("schedule records mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, OnlySaleDays(records), 2)
}

func TestPriceTierPolicies(t *testing.T) {
	cases := []struct {
		policy PriceTierPolicy
		price  int
	}{
		{policy: FirstTier, price: 55000},
		{policy: LowestTier, price: 40000},
		{policy: DefaultFlaggedTier, price: 40000},
	}

	for _, test := range cases {
		t.Run(string(test.policy), func(t *testing.T) {
			n := newNormalizer(t, Config{PriceTier: test.policy})
			records, err := n.Normalize(acquire.TargetSchedule, jsonPayload(scheduleBody))
			require.NoError(t, err)
			require.Equal(t, test.price, records[2].Int(acquire.FieldPrice))
			require.Equal(t, 0, records[1].Int(acquire.FieldPrice))
		})
	}

	_, err := ParsePriceTierPolicy("median")
	require.Error(t, err)
	_, err = New(Config{PriceTier: "median"}, chrono.NewStandardImpl())
	require.Error(t, err)
}

func TestScheduleMismatch(t *testing.T) {
	n := newNormalizer(t, Config{})

	cases := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html></html>`},
		{name: "no data", body: `{"data": null}`},
		{name: "graphql error", body: `{"data": null, "errors": [{"message": "bizItem not found"}]}`},
		{name: "daily is a list", body: `{"data": {"schedule": {"bizItemSchedule": {"daily": {"date": []}}}}}`},
		{name: "bad date key", body: `{"data": {"schedule": {"bizItemSchedule": {"daily": {"date": {"tomorrow": {}}}}}}}`},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			_, err := n.Normalize(acquire.TargetSchedule, jsonPayload(test.body))
			requireMismatch(t, err)
		})
	}
}

func TestEmptyScheduleIsValid(t *testing.T) {
	n := newNormalizer(t, Config{})
	records, err := n.Normalize(acquire.TargetSchedule, jsonPayload(
		`{"data": {"schedule": {"bizItemSchedule": {"daily": {"date": {}}}}}}`,
	))
	require.NoError(t, err)
	require.Empty(t, records)
}

const reviewPage = `<html><body>
<div class="place_section_content">
  <ul>
    <li><span class="t3JSf">"반려동물과 가기 좋아요"</span><span class="CUoLy">이 키워드를 선택한 인원 128</span></li>
    <li><span class="t3JSf">"뷰가   좋아요"</span><span class="CUoLy">이 키워드를 선택한 인원 1,024</span></li>
    <li><span class="t3JSf">"주인장이 재밌어요"</span><span class="CUoLy">3</span></li>
  </ul>
</div>
<div class="place_section_content"><ul><li><span class="t3JSf">"친절해요"</span><span class="CUoLy">99</span></li></ul></div>
</body></html>`

func TestReviewHTML(t *testing.T) {
	n := newNormalizer(t, Config{})

	records, err := n.Normalize(acquire.TargetReview, transport.Payload{
		Pages:  [][]byte{[]byte(reviewPage)},
		Format: sources.FormatHTML,
	})
	require.NoError(t, err)
	require.Len(t, records, len(DefaultVocabulary))

	counts := map[string]int{}
	zero := 0
	for i, r := range records {
		require.Equal(t, DefaultVocabulary[i], r.String(acquire.FieldReviewTag))
		counts[r.String(acquire.FieldReviewTag)] = r.Int(acquire.FieldVoteCount)
		if r.Int(acquire.FieldVoteCount) == 0 {
			zero++
		}
	}
	require.Equal(t, 22, zero)
	require.Equal(t, 128, counts["반려동물과 가기 좋아요"])
	require.Equal(t, 1024, counts["뷰가 좋아요"])
	require.Equal(t, 0, counts["친절해요"])
}

func TestReviewHTMLWithoutSection(t *testing.T) {
	n := newNormalizer(t, Config{})
	_, err := n.Normalize(acquire.TargetReview, transport.Payload{
		Pages:  [][]byte{[]byte(`<html><body><p>nothing here</p></body></html>`)},
		Format: sources.FormatHTML,
	})
	requireMismatch(t, err)
}

func TestReviewMissingKeywordList(t *testing.T) {
	n := newNormalizer(t, Config{})

	cases := []struct {
		name    string
		payload transport.Payload
	}{
		{
			name: "section without list",
			payload: transport.Payload{
				Pages:  [][]byte{[]byte(`<div class="place_section_content"><p>리뷰가 없습니다</p></div>`)},
				Format: sources.FormatHTML,
			},
		},
		{
			name:    "state without voted keywords",
			payload: jsonPayload(`{"__APOLLO_STATE__": {"ROOT_QUERY": {"unrelated": 1}}}`),
		},
		{
			name:    "empty state",
			payload: jsonPayload(`{}`),
		},
	}
	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			records, err := n.Normalize(acquire.TargetReview, test.payload)
			requireMismatch(t, err)
			require.Empty(t, records)
		})
	}
}

func TestReviewStateWithNoVotes(t *testing.T) {
	n := newNormalizer(t, Config{Vocabulary: Vocabulary{"친절해요"}})
	records, err := n.Normalize(acquire.TargetReview, jsonPayload(
		`{"VisitorReviewStatsResult:9": {"analysis": {"votedKeyword": {"details": []}}}}`,
	))
	require.NoError(t, err)
	require.Empty(t, cmp.Diff([]acquire.Record{
		{acquire.FieldReviewTag: "친절해요", acquire.FieldVoteCount: 0},
	}, records))
}

func TestReviewState(t *testing.T) {
	n := newNormalizer(t, Config{Vocabulary: Vocabulary{"친절해요", "뷰가 좋아요"}})

	state := `{"__APOLLO_STATE__": {
	  "VisitorReviewStatsResult:123": {
	    "analysis": {"votedKeyword": {"details": [
	      {"displayName": "\"친절해요\"", "count": 41, "code": "kind"},
	      {"displayName": "주차하기 편해요", "count": 7}
	    ]}}
	  },
	  "PlaceDetailBase:123": {"name": "멍멍 펜션", "reviewCount": 3}
	}}`
	records, err := n.Normalize(acquire.TargetReview, jsonPayload(state))
	require.NoError(t, err)

	expected := []acquire.Record{
		{acquire.FieldReviewTag: "친절해요", acquire.FieldVoteCount: 41},
		{acquire.FieldReviewTag: "뷰가 좋아요", acquire.FieldVoteCount: 0},
	}
	require.Empty(t, cmp.Diff(expected, records))
}

func TestVocabularyValidate(t *testing.T) {
	require.NoError(t, DefaultVocabulary.Validate())
	require.Len(t, DefaultVocabulary, 24)
	require.Error(t, Vocabulary{"a", "a"}.Validate())
	require.Error(t, Vocabulary{" "}.Validate())
}

const shelterFirstPage = `{"response": {
  "header": {"reqNo": 1, "resultCode": "00", "resultMsg": "NORMAL SERVICE."},
  "body": {"items": {"item": [
    {"desertionNo": "448548202400601", "kindCd": "[개] 믹스견", "colorCd": "갈색",
     "age": "2022(년생)", "weight": "3.2(Kg)", "sexCd": "M", "neuterYn": "Y",
     "processState": "보호중", "careNm": "행복 보호소", "careAddr": "서울특별시", "careTel": "02-000-0000",
     "orgNm": "서울특별시 마포구", "happenDt": "20240528", "happenPlace": "망원동",
     "noticeNo": "서울-마포-2024-00123", "noticeSdt": "20240528", "noticeEdt": "20240607",
     "popfile": "http://www.animal.go.kr/files/shelter/a.jpg", "specialMark": "온순함"},
    {"desertionNo": 448548202400602, "kindCd": "[고양이] 코리안숏헤어",
     "age": "1800(년생)", "weight": "미상", "sexCd": "Q", "neuterYn": "U",
     "processState": "공고중", "careNm": "행복 보호소", "happenDt": "2024-05-28",
     "noticeSdt": "", "noticeEdt": "20241399"}
  ]}, "numOfRows": 2, "pageNo": 1, "totalCount": 3}
}}`

const shelterSecondPage = `{"response": {
  "header": {"resultCode": "00"},
  "body": {"items": {"item":
    {"desertionNo": "448548202400603", "kindCd": "[기타축종] 토끼", "age": "2023(년생)(60일미만)",
     "weight": "0.5(Kg)", "sexCd": "F", "neuterYn": "N", "processState": "보호중", "careNm": "행복 보호소",
     "happenDt": "20240530", "noticeSdt": "20240530", "noticeEdt": "20240609"}
  }, "numOfRows": 2, "pageNo": 2, "totalCount": 3}
}}`

func TestShelterRecords(t *testing.T) {
	n := newNormalizer(t, Config{})

	records, err := n.Normalize(acquire.TargetShelterListing, jsonPayload(shelterFirstPage, shelterSecondPage))
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	require.Equal(t, "448548202400601", first[acquire.FieldDesertionNo])
	require.Equal(t, "개", first[acquire.FieldKind])
	require.Equal(t, "믹스견", first[acquire.FieldBreed])
	require.Equal(t, 2022, first[acquire.FieldBirthYear])
	require.Equal(t, 3.2, first[acquire.FieldWeightKg])
	require.Equal(t, true, first[acquire.FieldNeutered])
	require.Equal(t, day(2024, time.May, 28), first[acquire.FieldHappenDate])
	require.Equal(t, day(2024, time.June, 7), first[acquire.FieldNoticeEnd])
	require.Equal(t, "http://www.animal.go.kr/files/shelter/a.jpg", first[acquire.FieldImageURL])

	second := records[1]
	require.Equal(t, "448548202400602", second[acquire.FieldDesertionNo])
	require.Equal(t, "고양이", second[acquire.FieldKind])
	require.Nil(t, second[acquire.FieldBirthYear])
	require.Nil(t, second[acquire.FieldWeightKg])
	require.Nil(t, second[acquire.FieldNeutered])
	require.Nil(t, second[acquire.FieldHappenDate])
	require.Nil(t, second[acquire.FieldNoticeStart])
	require.Nil(t, second[acquire.FieldNoticeEnd])
	require.Nil(t, second[acquire.FieldColor])

	third := records[2]
	require.Equal(t, "기타축종", third[acquire.FieldKind])
	require.Equal(t, "토끼", third[acquire.FieldBreed])
	require.Equal(t, 2023, third[acquire.FieldBirthYear])
	require.Equal(t, false, third[acquire.FieldNeutered])

	for _, r := range records {
		require.True(t, r.Conforms(acquire.TargetShelterListing))
	}
}

func TestShelterEmptyAndErrors(t *testing.T) {
	n := newNormalizer(t, Config{})

	records, err := n.Normalize(acquire.TargetShelterListing, jsonPayload(
		`{"response": {"header": {"resultCode": "00"}, "body": {"items": "", "numOfRows": 1000, "pageNo": 1, "totalCount": 0}}}`,
	))
	require.NoError(t, err)
	require.Empty(t, records)

	_, err = n.Normalize(acquire.TargetShelterListing, jsonPayload(
		`{"response": {"header": {"resultCode": "30", "resultMsg": "SERVICE_KEY_IS_NOT_REGISTERED_ERROR"}}}`,
	))
	requireMismatch(t, err)
	require.Contains(t, err.Error(), "SERVICE_KEY_IS_NOT_REGISTERED_ERROR")

	_, err = n.Normalize(acquire.TargetShelterListing, jsonPayload(`{"result": []}`))
	requireMismatch(t, err)
}

func TestBookingItems(t *testing.T) {
	n := newNormalizer(t, Config{})

	records, err := n.Normalize(acquire.TargetBookingItems, jsonPayload(
		`{"data": {"bizItems": [
		  {"bizItemId": "4893201", "name": "독채 A"},
		  {"bizItemId": 4893202, "name": "독채 B"}
		]}}`,
	))
	require.NoError(t, err)
	expected := []acquire.Record{
		{acquire.FieldBizItemID: "4893201", acquire.FieldBizItemName: "독채 A"},
		{acquire.FieldBizItemID: "4893202", acquire.FieldBizItemName: "독채 B"},
	}
	require.Empty(t, cmp.Diff(expected, records))

	_, err = n.Normalize(acquire.TargetBookingItems, jsonPayload(`{"data": {"bizItems": {}}}`))
	requireMismatch(t, err)
}

func TestNoPages(t *testing.T) {
	n := newNormalizer(t, Config{})
	_, err := n.Normalize(acquire.TargetSchedule, transport.Payload{})
	requireMismatch(t, err)
}
