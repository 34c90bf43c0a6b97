package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexIntCoercion(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"number", `{"usage_type": 3}`, 3},
		{"numeric string", `{"usage_type": "4"}`, 4},
		{"empty string", `{"usage_type": ""}`, UsageTypeNormal},
		{"null", `{"usage_type": null}`, UsageTypeNormal},
		{"garbage", `{"usage_type": "abc"}`, UsageTypeNormal},
		{"negative", `{"usage_type": -2}`, UsageTypeNormal},
		{"absent", `{}`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var payload UsageRecordCreate
			require.NoError(t, json.Unmarshal([]byte(tc.body), &payload))
			assert.Equal(t, tc.want, int(payload.UsageType))
		})
	}
}

func TestUsageTypeCode(t *testing.T) {
	assert.Equal(t, 3, UsageTypeCode("3"))
	assert.Equal(t, 3, UsageTypeCode(" 3 "))
	assert.Equal(t, 0, UsageTypeCode("nonsense"))
	assert.Equal(t, 0, UsageTypeCode(""))

	// Rows written before the dictionary migration carry english codes.
	legacy := map[string]int{
		"routine":     UsageTypeNormal,
		"borrow":      UsageTypeBorrow,
		"maintenance": UsageTypeRepair,
		"calibration": UsageTypeCalibration,
		"other":       UsageTypeOther,
	}
	for raw, want := range legacy {
		assert.Equal(t, want, UsageTypeCode(raw), "legacy code %q", raw)
	}
}

func TestPhotoURLsRoundTrip(t *testing.T) {
	urls := []string{"https://cdn.example/a.jpg", "https://cdn.example/b.jpg"}
	joined := JoinPhotoURLs(urls)
	require.NotNil(t, joined)
	assert.Equal(t, urls, SplitPhotoURLs(joined))

	assert.Nil(t, JoinPhotoURLs(nil))
	assert.Nil(t, SplitPhotoURLs(nil))

	blank := "  ,  , "
	assert.Empty(t, SplitPhotoURLs(&blank))
}

func TestNewUsageRecordRead(t *testing.T) {
	photos := "a.jpg,b.jpg"
	rec := &UsageRecord{
		ID:        9,
		UsageType: "maintenance",
		PhotoURLs: &photos,
	}
	read := NewUsageRecordRead(rec)
	assert.Equal(t, UsageTypeRepair, read.UsageType)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, read.PhotoURLs)
}
