package repository

import (
	"context"
	"errors"

	"github.com/medscan/scangate/internal/model"
	"gorm.io/gorm"
)

type GormDictRepo struct {
	db *gorm.DB
}

func NewGormDictRepo(db *gorm.DB) (*GormDictRepo, error) {
	if err := db.AutoMigrate(&model.DictItem{}); err != nil {
		return nil, err
	}
	return &GormDictRepo{db: db}, nil
}

// ListByType returns non-deleted items of one dictionary, stable order.
func (r *GormDictRepo) ListByType(ctx context.Context, dictType string) ([]*model.DictItem, error) {
	var items []*model.DictItem
	err := r.db.WithContext(ctx).
		Where("dict_type = ? AND is_deleted = ?", dictType, false).
		Order("sort_order, code").
		Find(&items).Error
	return items, err
}

func (r *GormDictRepo) GetByID(ctx context.Context, id int64) (*model.DictItem, error) {
	var item model.DictItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *GormDictRepo) Create(ctx context.Context, item *model.DictItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *GormDictRepo) Update(ctx context.Context, item *model.DictItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *GormDictRepo) SoftDelete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Model(&model.DictItem{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("is_deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// CountByTypeAndCode backs the uniqueness check on (dict_type, code).
func (r *GormDictRepo) CountByTypeAndCode(ctx context.Context, dictType string, code int) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.DictItem{}).
		Where("dict_type = ? AND code = ? AND is_deleted = ?", dictType, code, false).
		Count(&n).Error
	return n, err
}
