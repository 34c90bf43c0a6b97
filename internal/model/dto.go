package model

import (
	"bytes"
	"strconv"
	"time"
)

// FlexInt tolerates the shapes clients actually send for dictionary codes:
// a number, a numeric string, an empty string or null. Anything unusable
// falls back to UsageTypeNormal, matching the form's default selection.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	if s == "" || s == "null" {
		*f = FlexInt(UsageTypeNormal)
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		*f = FlexInt(UsageTypeNormal)
		return nil
	}
	*f = FlexInt(n)
	return nil
}

// UsageRecordCreate is the submission payload. Timestamps arrive as naive
// local wall-clock strings and are normalized by the service.
type UsageRecordCreate struct {
	DeviceCode           string   `json:"device_code" binding:"required"`
	UsageType            FlexInt  `json:"usage_type"`
	DeptAtUse            *string  `json:"dept_at_use"`
	PatientID            *string  `json:"patient_id"`
	Note                 *string  `json:"note"`
	StartTime            *string  `json:"start_time"`
	EndTime              *string  `json:"end_time"`
	RegistrationDate     *Date    `json:"registration_date"`
	BedNumber            *string  `json:"bed_number"`
	IDNumber             *string  `json:"id_number"`
	PatientName          *string  `json:"patient_name"`
	EquipmentCondition   *string  `json:"equipment_condition"`
	DailyMaintenance     *string  `json:"daily_maintenance"`
	TerminalDisinfection *string  `json:"terminal_disinfection"`
	PhotoURLs            []string `json:"photo_urls"`
	Source               *string  `json:"source"`
}

// UsageRecordRead is the response shape. usage_type is numeric regardless of
// how the row stores it; photo_urls is unpacked; display names come from the
// device/user joins.
type UsageRecordRead struct {
	ID                   int64      `json:"id"`
	DeviceCode           string     `json:"device_code"`
	DeviceName           *string    `json:"device_name"`
	UserID               int64      `json:"user_id"`
	UserName             *string    `json:"user_name"`
	UsageType            int        `json:"usage_type"`
	DeptAtUse            *string    `json:"dept_at_use"`
	PatientID            *string    `json:"patient_id"`
	Note                 *string    `json:"note"`
	StartTime            time.Time  `json:"start_time"`
	EndTime              *time.Time `json:"end_time"`
	RegistrationDate     *Date      `json:"registration_date"`
	BedNumber            *string    `json:"bed_number"`
	IDNumber             *string    `json:"id_number"`
	PatientName          *string    `json:"patient_name"`
	EquipmentCondition   *string    `json:"equipment_condition"`
	DailyMaintenance     *string    `json:"daily_maintenance"`
	TerminalDisinfection *string    `json:"terminal_disinfection"`
	PhotoURLs            []string   `json:"photo_urls"`
	Source               *string    `json:"source"`
	CreatedAt            time.Time  `json:"created_at"`
	IsDeleted            bool       `json:"is_deleted"`
}

func NewUsageRecordRead(r *UsageRecord) *UsageRecordRead {
	return &UsageRecordRead{
		ID:                   r.ID,
		DeviceCode:           r.DeviceCode,
		DeviceName:           r.DeviceName,
		UserID:               r.UserID,
		UserName:             r.UserName,
		UsageType:            UsageTypeCode(r.UsageType),
		DeptAtUse:            r.DeptAtUse,
		PatientID:            r.PatientID,
		Note:                 r.Note,
		StartTime:            r.StartTime,
		EndTime:              r.EndTime,
		RegistrationDate:     r.RegistrationDate,
		BedNumber:            r.BedNumber,
		IDNumber:             r.IDNumber,
		PatientName:          r.PatientName,
		EquipmentCondition:   r.EquipmentCondition,
		DailyMaintenance:     r.DailyMaintenance,
		TerminalDisinfection: r.TerminalDisinfection,
		PhotoURLs:            SplitPhotoURLs(r.PhotoURLs),
		Source:               r.Source,
		CreatedAt:            r.CreatedAt,
		IsDeleted:            r.IsDeleted,
	}
}
