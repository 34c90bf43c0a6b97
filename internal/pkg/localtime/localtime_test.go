package localtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNaiveInterpretedAsHospitalZone(t *testing.T) {
	got, err := ParseLocalNaive("2024-06-01T08:00:00")
	require.NoError(t, err)

	// 08:00 on the hospital wall clock is 00:00 UTC.
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestParseZoneAwareConvertedToUTC(t *testing.T) {
	got, err := ParseLocalNaive("2024-06-01T08:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC), got)
}

func TestParseSpaceSeparatedAndDateOnly(t *testing.T) {
	got, err := ParseLocalNaive("2024-06-01 08:30:15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 30, 15, 0, time.UTC), got)

	got, err = ParseLocalNaive("2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 31, 16, 0, 0, 0, time.UTC), got)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseLocalNaive("not-a-time")
	assert.Error(t, err)
	_, err = ParseLocalNaive("")
	assert.Error(t, err)
}

func TestParsePtrNilPassthrough(t *testing.T) {
	got, err := ParseLocalNaivePtr(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	empty := "  "
	got, err = ParseLocalNaivePtr(&empty)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// Round trip of the storage convention: a naive local timestamp without
// sub-second precision must come back verbatim.
func TestRoundTripNaiveTimestamp(t *testing.T) {
	cases := []string{
		"2024-06-01 08:00:00",
		"2024-12-31 23:59:59",
		"2025-01-01 00:00:00",
	}
	for _, in := range cases {
		parsed, err := ParseLocalNaive(in)
		require.NoError(t, err, in)
		assert.Equal(t, in, RenderLocal(parsed, DisplayDateTimeFormat), in)
	}
}

func TestRenderZeroAndNil(t *testing.T) {
	assert.Equal(t, "", RenderLocal(time.Time{}, DisplayDateTimeFormat))
	assert.Equal(t, "", RenderLocalPtr(nil, DisplayDateTimeFormat))
}

func TestRenderConvertsToWallClock(t *testing.T) {
	stored := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-01 08:00:00", RenderLocal(stored, ""))
	assert.Equal(t, "2024-06-01", RenderLocal(stored, DateFormat))
}

func TestNowLocalAsUTCIsUTCLabeled(t *testing.T) {
	now := NowLocalAsUTC()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now().UTC(), now, 2*time.Second)
}

func TestTodayLocalFormat(t *testing.T) {
	today := TodayLocal()
	_, err := time.Parse(DateFormat, today)
	assert.NoError(t, err)
}
