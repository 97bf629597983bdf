package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/devpulse_tracker/internal/model"
)

// SnapshotRepository 终态分析快照归档，后端不可用时用来恢复列表
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save 按 analysis_id 覆盖写入
func (r *SnapshotRepository) Save(ctx context.Context, a *model.Analysis) error {
	snap, err := model.NewSnapshot(a, time.Now())
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "analysis_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"repo_name", "repo_owner", "status", "quality_score", "grade", "payload", "captured_at", "updated_at"}),
	}).Create(snap).Error
}

// Get 不存在时返回 nil, nil
func (r *SnapshotRepository) Get(ctx context.Context, analysisID string) (*model.Analysis, error) {
	var snap model.AnalysisSnapshot
	err := r.db.WithContext(ctx).Where("analysis_id = ?", analysisID).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a, err := snap.Decode()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List 最近归档的在前
func (r *SnapshotRepository) List(ctx context.Context, limit int) ([]model.Analysis, error) {
	var snaps []model.AnalysisSnapshot
	query := r.db.WithContext(ctx).Order("captured_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&snaps).Error; err != nil {
		return nil, err
	}

	out := make([]model.Analysis, 0, len(snaps))
	for i := range snaps {
		a, err := snaps[i].Decode()
		if err != nil {
			continue // 损坏的行跳过
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *SnapshotRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.AnalysisSnapshot{}).Count(&n).Error
	return n, err
}

func (r *SnapshotRepository) Delete(ctx context.Context, analysisID string) error {
	return r.db.WithContext(ctx).Where("analysis_id = ?", analysisID).Delete(&model.AnalysisSnapshot{}).Error
}

// CountBefore 归档时间早于 cutoff 的快照数
func (r *SnapshotRepository) CountBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.AnalysisSnapshot{}).Where("captured_at < ?", cutoff).Count(&n).Error
	return n, err
}

// DeleteBefore 删除归档时间早于 cutoff 的快照，返回删除行数
func (r *SnapshotRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("captured_at < ?", cutoff).Delete(&model.AnalysisSnapshot{})
	return result.RowsAffected, result.Error
}
