package catalog

import (
	"bytes"
	"path/filepath"
	"petstay-backend/internal/acquire"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const pensionInfo = "\ufeffbizItemId,bizItemName,channelId,businessName,addressOld,addressNew,businessId,bookingUrl\n" +
	"4893201,독채 A,1306861767,멍멍 펜션,경기 가평군 1,경기 가평군 로 1,718343,https://m.booking.naver.com/booking/5/bizes/718343\n" +
	"4893202,독채 B,1306861767,멍멍 펜션,경기 가평군 1,경기 가평군 로 1,718343,https://m.booking.naver.com/booking/5/bizes/718343\n" +
	"4893202,독채 B,1306861767,멍멍 펜션,경기 가평군 1,경기 가평군 로 1,718343,https://m.booking.naver.com/booking/5/bizes/718343\n" +
	"5100001,\"커플룸, 스파\",1987654321,냥냥 하우스,,,820011,\n"

func TestRead(t *testing.T) {
	c, err := Read(strings.NewReader(pensionInfo))
	require.NoError(t, err)
	require.Len(t, c.Entries, 4)
	require.Equal(t, c.Entries[1], c.Entries[2])
	require.Equal(t, "커플룸, 스파", c.Entries[3].BizItemName)
	require.Equal(t, "718343", c.Entries[0].BusinessID)
}

func TestReadMissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader("bizItemId,bizItemName\n1,a\n"))
	require.Error(t, err)

	c, err := Read(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, c.Entries)
}

func TestTargets(t *testing.T) {
	c, err := Read(strings.NewReader(pensionInfo))
	require.NoError(t, err)

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	schedule := c.ScheduleTargets(start, start.AddDate(0, 0, 30))
	require.Len(t, schedule, 3)
	require.Equal(t, "schedule/718343/4893201", schedule[0].ID)
	require.Equal(t, "2024-07-01", schedule[0].Param(acquire.ParamEnd))
	require.NoError(t, acquire.ValidateAll(schedule))

	reviews := c.ReviewTargets("accommodation")
	require.Len(t, reviews, 2)
	require.Equal(t, "accommodation", reviews[0].Param(acquire.ParamCategory))
	require.NoError(t, acquire.ValidateAll(reviews))

	items := c.BookingItemTargets()
	require.Len(t, items, 2)
	require.NoError(t, acquire.ValidateAll(items))

	shelter := ShelterTargets([]string{"417000", "422400"}, "notice")
	require.Len(t, shelter, 2)
	require.Equal(t, "notice", shelter[1].Param(acquire.ParamState))
	require.NoError(t, acquire.ValidateAll(shelter))
}

func TestAddBookingItemsAndSave(t *testing.T) {
	c, err := Read(strings.NewReader(pensionInfo))
	require.NoError(t, err)

	base, ok := c.Business("820011")
	require.True(t, ok)
	added := c.AddBookingItems(base, []acquire.Record{
		{acquire.FieldBizItemID: "5100001", acquire.FieldBizItemName: "커플룸, 스파"},
		{acquire.FieldBizItemID: "5100002", acquire.FieldBizItemName: "패밀리룸"},
	})
	require.Equal(t, 1, added)
	require.Equal(t, "냥냥 하우스", c.Entries[4].BusinessName)

	path := filepath.Join(t.TempDir(), "pension_info.csv")
	require.NoError(t, c.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, c.Entries, loaded.Entries)

	var buf bytes.Buffer
	require.NoError(t, Catalog{}.Write(&buf))
	require.Equal(t, strings.Join(columns, ",")+"\n", buf.String())
}

func TestSaveKeepsRowsWithoutItems(t *testing.T) {
	csv := pensionInfo + ",,1555000111,새 펜션,,,930001,\n"
	c, err := Read(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, c.Entries, 5)

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.Len(t, c.ScheduleTargets(start, start), 3)
	require.Len(t, c.BookingItemTargets(), 3)
	require.Len(t, c.ReviewTargets(""), 3)

	base, ok := c.Business("718343")
	require.True(t, ok)
	added := c.AddBookingItems(base, []acquire.Record{
		{acquire.FieldBizItemID: "4893203", acquire.FieldBizItemName: "독채 C"},
		{acquire.FieldBizItemID: "", acquire.FieldBizItemName: "이름만"},
	})
	require.Equal(t, 1, added)

	var buf bytes.Buffer
	require.NoError(t, c.Write(&buf))
	saved, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, saved.Entries, 6)
	placeholder, ok := saved.Business("930001")
	require.True(t, ok)
	require.Equal(t, "새 펜션", placeholder.BusinessName)
	require.Empty(t, placeholder.BizItemID)
}
