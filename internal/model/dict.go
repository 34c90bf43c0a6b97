package model

import "time"

// Dictionary types.
const (
	DictUsageType    = "usage_type"
	DictDeviceStatus = "device_status"
)

// DictItem maps a dict_type + numeric code to a display label. Codes are
// unique within a type; rows are soft-deleted, never removed.
type DictItem struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	DictType  string    `gorm:"size:32;index;not null" json:"dict_type"`
	Code      int       `gorm:"not null" json:"code"`
	Label     string    `gorm:"size:128;not null" json:"label"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	IsDeleted bool      `gorm:"default:false" json:"is_deleted"`
	SortOrder int       `gorm:"default:0" json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

func (DictItem) TableName() string { return "dict_items" }
