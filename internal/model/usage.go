package model

import (
	"strconv"
	"strings"
	"time"
)

// Usage-type dictionary codes. Stored as numeric strings; old rows may still
// carry the english codes handled by UsageTypeCode.
const (
	UsageTypeNormal      = 1
	UsageTypeBorrow      = 2
	UsageTypeRepair      = 3
	UsageTypeCalibration = 4
	UsageTypeOther       = 5
)

// Equipment condition and daily maintenance enumerations (free-form columns,
// validated at the edge).
const (
	EquipmentNormal   = "normal"
	EquipmentAbnormal = "abnormal"

	MaintenanceClean     = "clean"
	MaintenanceDisinfect = "disinfect"
)

// UsageRecord is one reported device-usage/maintenance event. Timestamps are
// stored UTC per the localtime convention; registration_date is the civil day
// staff attributed the entry to, distinct from created_at.
type UsageRecord struct {
	ID         int64  `db:"id" json:"id"`
	DeviceCode string `db:"device_code" json:"device_code"`
	UserID     int64  `db:"user_id" json:"user_id"`

	UsageType string  `db:"usage_type" json:"usage_type"`
	DeptAtUse *string `db:"dept_at_use" json:"dept_at_use"`
	PatientID *string `db:"patient_id" json:"patient_id"`
	Note      *string `db:"note" json:"note"`

	StartTime time.Time  `db:"start_time" json:"start_time"`
	EndTime   *time.Time `db:"end_time" json:"end_time"`

	RegistrationDate     *Date   `db:"registration_date" json:"registration_date"`
	BedNumber            *string `db:"bed_number" json:"bed_number"`
	IDNumber             *string `db:"id_number" json:"id_number"`
	PatientName          *string `db:"patient_name" json:"patient_name"`
	EquipmentCondition   *string `db:"equipment_condition" json:"equipment_condition"`
	DailyMaintenance     *string `db:"daily_maintenance" json:"daily_maintenance"`
	TerminalDisinfection *string `db:"terminal_disinfection" json:"terminal_disinfection"`

	// Comma-joined URL list; split back out in the read DTO.
	PhotoURLs *string `db:"photo_urls" json:"-"`

	Source    *string   `db:"source" json:"source"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	IsDeleted bool      `db:"is_deleted" json:"is_deleted"`

	// Joined display fields, populated by list/export queries.
	DeviceName *string `db:"device_name" json:"-"`
	UserName   *string `db:"user_name" json:"-"`
}

// legacyUsageTypeCodes maps pre-migration english codes to numeric ones.
var legacyUsageTypeCodes = map[string]int{
	"routine":     UsageTypeNormal,
	"borrow":      UsageTypeBorrow,
	"maintenance": UsageTypeRepair,
	"calibration": UsageTypeCalibration,
	"other":       UsageTypeOther,
}

// UsageTypeCode normalizes a stored usage_type value to its numeric code.
// Unknown values map to 0.
func UsageTypeCode(raw string) int {
	s := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if n, ok := legacyUsageTypeCodes[s]; ok {
		return n
	}
	return 0
}

// SplitPhotoURLs unpacks the denormalized photo_urls column.
func SplitPhotoURLs(joined *string) []string {
	if joined == nil || strings.TrimSpace(*joined) == "" {
		return nil
	}
	parts := strings.Split(*joined, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinPhotoURLs packs a URL list for storage; nil for an empty list.
func JoinPhotoURLs(urls []string) *string {
	if len(urls) == 0 {
		return nil
	}
	joined := strings.Join(urls, ",")
	return &joined
}

// UsageFilter is the AND-combined predicate shared by list, count and export.
type UsageFilter struct {
	DeviceCode  string
	Dept        string
	UserID      *int64
	FromTime    *time.Time
	ToTime      *time.Time
	RegDateFrom *Date
	RegDateTo   *Date
	BedNumber   string
	// IncludeDeleted is only honored for self-scope queries; the scope layer
	// decides, the repository just applies it.
	IncludeDeleted bool
}
