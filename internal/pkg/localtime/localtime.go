// Package localtime implements the hospital's clock convention: business time
// is always the institution's fixed UTC+8 wall clock, storage is always UTC.
// Naive timestamps from clients are interpreted as UTC+8 and converted before
// they reach the database; stored values are converted back for display.
package localtime

import (
	"fmt"
	"strings"
	"time"
)

// HospitalZone is the institution's fixed business time zone (UTC+8).
var HospitalZone = time.FixedZone("UTC+8", 8*60*60)

const (
	// DisplayDateTimeFormat matches the export/query display format.
	DisplayDateTimeFormat = "2006-01-02 15:04:05"
	// DateFormat is the civil-date wire format (registration_date and friends).
	DateFormat = "2006-01-02"
)

// naiveLayouts are the accepted zone-less client formats, most specific first.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// NowUTC returns the current instant in true UTC. Used where an absolute
// instant is needed (audit rows, duplicate-suppression cutoffs).
func NowUTC() time.Time {
	return time.Now().UTC()
}

// NowLocalAsUTC returns the business "now" under the storage convention:
// the current instant, UTC-labeled, ready to be written to the database.
func NowLocalAsUTC() time.Time {
	return time.Now().In(HospitalZone).UTC()
}

// TodayLocal returns today's calendar date on the hospital's wall clock.
func TodayLocal() string {
	return time.Now().In(HospitalZone).Format(DateFormat)
}

// ParseLocalNaive interprets a client-supplied timestamp. A zone-less value is
// read as UTC+8 wall-clock time; a value carrying a zone offset is converted
// to UTC directly. The result is always UTC-labeled per the storage convention.
func ParseLocalNaive(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, HospitalZone); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// ParseLocalNaivePtr is ParseLocalNaive for optional fields: nil in, nil out.
func ParseLocalNaivePtr(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := ParseLocalNaive(*raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RenderLocal formats a stored UTC value as a UTC+8 display string.
// The zero time renders as the empty string.
func RenderLocal(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	if layout == "" {
		layout = DisplayDateTimeFormat
	}
	return t.UTC().In(HospitalZone).Format(layout)
}

// RenderLocalPtr is RenderLocal for optional values.
func RenderLocalPtr(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return RenderLocal(*t, layout)
}
