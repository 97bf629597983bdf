package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/devpulse_tracker/internal/model"
)

// SecretRepository 数据库里的键值密文，实现 credential.Backend
type SecretRepository struct {
	db *gorm.DB
}

func NewSecretRepository(db *gorm.DB) *SecretRepository {
	return &SecretRepository{db: db}
}

func (r *SecretRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var s model.Secret
	err := r.db.WithContext(ctx).Where("secret_name = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.Value, true, nil
}

func (r *SecretRepository) Set(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "secret_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model.Secret{Name: key, Value: value}).Error
}

func (r *SecretRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("secret_name = ?", key).Delete(&model.Secret{}).Error
}
