package service

import (
	"context"
	"errors"
	"fmt"

	"newsscope/internal/model"
	"newsscope/internal/repository"

	"go.uber.org/zap"
)

const (
	historyExcerpt = 200
	recentCount    = 5
)

// HistoryService 分析历史和仪表盘统计
type HistoryService struct {
	analysisRepo *repository.AnalysisRepository
	log          *zap.Logger
}

func NewHistoryService(analysisRepo *repository.AnalysisRepository, log *zap.Logger) *HistoryService {
	return &HistoryService{analysisRepo: analysisRepo, log: log.Named("history")}
}

type Statistics struct {
	TotalAnalyses       int64            `json:"total_analyses"`
	VerdictDistribution map[string]int64 `json:"verdict_distribution"`
	LastAnalysis        *Report          `json:"last_analysis"`
}

type Dashboard struct {
	Statistics     *Statistics `json:"statistics"`
	RecentAnalyses []*Report   `json:"recent_analyses"`
}

// Stats 各结论的数量、最近一次分析和最近 5 条记录
func (s *HistoryService) Stats(ctx context.Context, userID int64) (*Dashboard, error) {
	counts, err := s.analysisRepo.VerdictCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("统计分析记录失败: %w", err)
	}
	recent, err := s.analysisRepo.ListByUserID(ctx, userID, recentCount)
	if err != nil {
		return nil, fmt.Errorf("查询分析记录失败: %w", err)
	}

	stats := &Statistics{VerdictDistribution: make(map[string]int64, len(model.Verdicts))}
	for _, v := range model.Verdicts {
		stats.VerdictDistribution[v] = counts[v]
	}
	for _, n := range counts {
		stats.TotalAnalyses += n
	}

	reports := toReports(recent)
	if len(reports) > 0 {
		stats.LastAnalysis = reports[0]
	}
	return &Dashboard{Statistics: stats, RecentAnalyses: reports}, nil
}

// List limit 默认 20，最大 100
func (s *HistoryService) List(ctx context.Context, userID int64, limit int) ([]*Report, error) {
	records, err := s.analysisRepo.ListByUserID(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("查询分析记录失败: %w", err)
	}
	return toReports(records), nil
}

// Get 返回完整正文
func (s *HistoryService) Get(ctx context.Context, userID, id int64) (*Report, error) {
	record, err := s.analysisRepo.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrAnalysisNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	return newReport(record, len([]rune(record.NewsText))), nil
}

// Delete 只能删除自己的记录，其他人的记录视为不存在
func (s *HistoryService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.analysisRepo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrAnalysisNotFound) {
			return ErrAnalysisNotFound
		}
		return err
	}
	s.log.Info("分析记录已删除", zap.Int64("user_id", userID), zap.Int64("analysis_id", id))
	return nil
}

func (s *HistoryService) DeleteAll(ctx context.Context, userID int64) (int64, error) {
	n, err := s.analysisRepo.DeleteAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("删除分析记录失败: %w", err)
	}
	s.log.Info("分析记录已清空", zap.Int64("user_id", userID), zap.Int64("deleted", n))
	return n, nil
}

func toReports(records []*model.AnalysisRecord) []*Report {
	out := make([]*Report, 0, len(records))
	for _, r := range records {
		out = append(out, newReport(r, historyExcerpt))
	}
	return out
}
