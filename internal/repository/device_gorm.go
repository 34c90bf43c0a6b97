package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/medscan/scangate/internal/model"
	"gorm.io/gorm"
)

type GormDeviceRepo struct {
	db *gorm.DB
	// Whether the devices table carries the soft-delete column. Older
	// deployments predate it; resolved once at startup, read-only afterwards.
	hasIsDeleted bool
}

func NewGormDeviceRepo(db *gorm.DB) (*GormDeviceRepo, error) {
	if err := db.AutoMigrate(&model.Device{}); err != nil {
		return nil, err
	}
	return &GormDeviceRepo{
		db:           db,
		hasIsDeleted: db.Migrator().HasColumn(&model.Device{}, "is_deleted"),
	}, nil
}

// GetActiveByCode resolves a device by its business key for the usage write
// path. Inactive and soft-deleted devices are treated as absent.
func (r *GormDeviceRepo) GetActiveByCode(ctx context.Context, deviceCode string) (*model.Device, error) {
	var device model.Device
	q := r.db.WithContext(ctx).Where("device_code = ? AND is_active = ?", strings.TrimSpace(deviceCode), true)
	if r.hasIsDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if err := q.First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &device, nil
}

func (r *GormDeviceRepo) GetByID(ctx context.Context, id int64) (*model.Device, error) {
	var device model.Device
	if err := r.db.WithContext(ctx).First(&device, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &device, nil
}

func (r *GormDeviceRepo) List(ctx context.Context, dept string, includeDeleted bool, limit, offset int) ([]*model.Device, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q := r.db.WithContext(ctx).Model(&model.Device{})
	if dept != "" {
		q = q.Where("dept = ?", dept)
	}
	if r.hasIsDeleted && !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	var devices []*model.Device
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&devices).Error
	return devices, err
}

func (r *GormDeviceRepo) Create(ctx context.Context, device *model.Device) error {
	return r.db.WithContext(ctx).Create(device).Error
}

func (r *GormDeviceRepo) Update(ctx context.Context, device *model.Device) error {
	return r.db.WithContext(ctx).Save(device).Error
}

// SoftDelete marks the device removed; existing usage records keep pointing
// at its device_code.
func (r *GormDeviceRepo) SoftDelete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Model(&model.Device{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{"is_deleted": true, "is_active": false})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
