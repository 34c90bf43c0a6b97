package model

import "time"

// Device is a registered medical device. The usage write path validates
// against this registry by device_code (the natural business key), not by id.
type Device struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	DeviceCode string    `gorm:"size:64;uniqueIndex;not null" json:"device_code"`
	Name       string    `gorm:"size:128;not null" json:"name"`
	Dept       *string   `gorm:"size:128" json:"dept"`
	Location   *string   `gorm:"size:256" json:"location"`
	Status     string    `gorm:"size:32;default:1" json:"status"` // device_status dict code
	QRValue    *string   `gorm:"size:256;uniqueIndex" json:"qr_value"`
	IsActive   bool      `gorm:"default:true;index:ix_devices_active_deleted" json:"is_active"`
	IsDeleted  bool      `gorm:"default:false;index:ix_devices_active_deleted" json:"is_deleted"`
	CreatedBy  *int64    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Device) TableName() string { return "devices" }
