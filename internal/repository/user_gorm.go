package repository

import (
	"context"
	"errors"

	"github.com/medscan/scangate/internal/model"
	"gorm.io/gorm"
)

type GormUserRepo struct {
	db *gorm.DB
}

func NewGormUserRepo(db *gorm.DB) (*GormUserRepo, error) {
	if err := db.AutoMigrate(&model.User{}); err != nil {
		return nil, err
	}
	return &GormUserRepo{db: db}, nil
}

func (r *GormUserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepo) GetByWxUserID(ctx context.Context, wxUserID string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("wx_user_id = ?", wxUserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *GormUserRepo) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *GormUserRepo) List(ctx context.Context, role string, activeOnly bool, limit, offset int) ([]*model.User, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q := r.db.WithContext(ctx).Model(&model.User{})
	if role != "" {
		q = q.Where("role = ?", role)
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var users []*model.User
	err := q.Order("id").Limit(limit).Offset(offset).Find(&users).Error
	return users, err
}
