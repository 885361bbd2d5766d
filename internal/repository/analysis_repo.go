package repository

import (
	"context"
	"errors"

	"newsscope/internal/model"

	"gorm.io/gorm"
)

var ErrAnalysisNotFound = errors.New("分析记录不存在")

type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(ctx context.Context, record *model.AnalysisRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ListByUserID 最新的在前，limit <= 0 表示不限
func (r *AnalysisRepository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*model.AnalysisRecord, error) {
	var records []*model.AnalysisRecord
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&records).Error
	return records, err
}

// Get 只返回属于该用户的记录
func (r *AnalysisRepository) Get(ctx context.Context, userID, id int64) (*model.AnalysisRecord, error) {
	var record model.AnalysisRecord
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *AnalysisRepository) Delete(ctx context.Context, userID, id int64) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.AnalysisRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAnalysisNotFound
	}
	return nil
}

// DeleteAll 返回删除条数
func (r *AnalysisRepository) DeleteAll(ctx context.Context, userID int64) (int64, error) {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.AnalysisRecord{})
	return result.RowsAffected, result.Error
}

// VerdictCounts 按结论分组计数
func (r *AnalysisRepository) VerdictCounts(ctx context.Context, userID int64) (map[string]int64, error) {
	var rows []struct {
		Verdict string
		N       int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.AnalysisRecord{}).
		Select("verdict, COUNT(*) AS n").
		Where("user_id = ?", userID).
		Group("verdict").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Verdict] = row.N
	}
	return out, nil
}

func (r *AnalysisRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.AnalysisRecord{}).Count(&n).Error
	return n, err
}
