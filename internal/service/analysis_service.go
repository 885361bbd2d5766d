package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"newsscope/internal/infrastructure/llm"
	"newsscope/internal/model"
	"newsscope/internal/repository"
	"newsscope/pkg/apperr"

	"go.uber.org/zap"
)

const (
	minTextLength   = 10
	maxBatchSize    = 10
	newsTextExcerpt = 500
)

// Analyzer 新闻真实性判定
type Analyzer interface {
	Analyze(ctx context.Context, headline, text string) (*llm.Result, error)
	Model() string
}

// 固定的核查来源目录
var sourceCatalog = []model.Source{
	{Name: "Associated Press (AP)", URL: "https://apnews.com", Credibility: "high", Checked: true},
	{Name: "Reuters", URL: "https://reuters.com", Credibility: "high", Checked: true},
	{Name: "BBC News", URL: "https://bbc.com/news", Credibility: "high", Checked: true},
	{Name: "CNN", URL: "https://cnn.com", Credibility: "high", Checked: true},
	{Name: "The Guardian", URL: "https://theguardian.com", Credibility: "high", Checked: true},
	{Name: "New York Times", URL: "https://nytimes.com", Credibility: "high", Checked: true},
	{Name: "Washington Post", URL: "https://washingtonpost.com", Credibility: "high", Checked: true},
	{Name: "Snopes (Fact-checking)", URL: "https://snopes.com", Credibility: "high", Checked: true},
	{Name: "FactCheck.org", URL: "https://factcheck.org", Credibility: "high", Checked: true},
	{Name: "PolitiFact", URL: "https://politifact.com", Credibility: "high", Checked: true},
}

type AnalysisOptions struct {
	Cost int64
	// RefundOnFailure 模型调用失败时退还已扣积分，默认不退
	RefundOnFailure bool
}

// AnalysisService 扣费 -> 调用模型 -> 保存结果
type AnalysisService struct {
	ledger       *LedgerService
	analyzer     Analyzer
	analysisRepo *repository.AnalysisRepository
	opts         AnalysisOptions
	log          *zap.Logger
	now          func() time.Time
}

// NewAnalysisService analyzer 为 nil 表示未配置模型
func NewAnalysisService(ledger *LedgerService, analyzer Analyzer, analysisRepo *repository.AnalysisRepository, opts AnalysisOptions, log *zap.Logger) *AnalysisService {
	if opts.Cost <= 0 {
		opts.Cost = 1
	}
	return &AnalysisService{
		ledger:       ledger,
		analyzer:     analyzer,
		analysisRepo: analysisRepo,
		opts:         opts,
		log:          log.Named("analysis"),
		now:          time.Now,
	}
}

func (s *AnalysisService) AnalyzerConfigured() bool {
	return s.analyzer != nil
}

// Report 分析结果的响应视图
type Report struct {
	ID                      int64          `json:"id"`
	Timestamp               time.Time      `json:"timestamp"`
	Headline                string         `json:"headline"`
	NewsText                string         `json:"news_text"`
	Verdict                 string         `json:"verdict"`
	Confidence              int            `json:"confidence"`
	Summary                 string         `json:"summary"`
	DetailedAnalysis        string         `json:"detailed_analysis"`
	RedFlags                []string       `json:"red_flags"`
	VerificationSuggestions []string       `json:"verification_suggestions"`
	KeyClaims               []string       `json:"key_claims"`
	SourcesChecked          []model.Source `json:"sources_checked"`
	TotalSourcesChecked     int            `json:"total_sources_checked"`
	AIModel                 string         `json:"ai_model"`
}

func newReport(r *model.AnalysisRecord, excerpt int) *Report {
	return &Report{
		ID:                      r.ID,
		Timestamp:               r.Timestamp,
		Headline:                r.Headline,
		NewsText:                model.Excerpt(r.NewsText, excerpt),
		Verdict:                 r.Verdict,
		Confidence:              r.Confidence,
		Summary:                 r.Summary,
		DetailedAnalysis:        r.DetailedAnalysis,
		RedFlags:                nonNil(r.RedFlags),
		VerificationSuggestions: nonNil(r.VerificationSuggestions),
		KeyClaims:               nonNil(r.KeyClaims),
		SourcesChecked:          r.SourcesChecked,
		TotalSourcesChecked:     len(r.SourcesChecked),
		AIModel:                 r.AIModel,
	}
}

type AnalysisOutcome struct {
	Report           *Report
	CreditsRemaining int64
}

// ListSources 返回固定的来源目录副本
func (s *AnalysisService) ListSources() []model.Source {
	out := make([]model.Source, len(sourceCatalog))
	copy(out, sourceCatalog)
	return out
}

// Analyze 先扣费再调用模型
// 模型失败时是否退费由 RefundOnFailure 决定，客户端中途断开不退费
func (s *AnalysisService) Analyze(ctx context.Context, userID int64, headline, text string) (*AnalysisOutcome, error) {
	headline, text = strings.TrimSpace(headline), strings.TrimSpace(text)
	if len([]rune(text)) < minTextLength {
		return nil, invalid("News text must be at least 10 characters long")
	}
	if s.analyzer == nil {
		return nil, ErrAnalyzerUnavailable
	}

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance.Credits < s.opts.Cost {
		return nil, ErrInsufficientCredits
	}

	deducted, err := s.ledger.Deduct(ctx, userID, s.opts.Cost, "News analysis")
	if err != nil {
		return nil, err
	}
	remaining := deducted.CreditsAfter

	result, err := s.analyzer.Analyze(ctx, headline, text)
	if err != nil {
		s.log.Error("模型调用失败",
			zap.Int64("user_id", userID),
			zap.String("model", s.analyzer.Model()),
			zap.Bool("refund", s.opts.RefundOnFailure),
			zap.Error(err),
		)
		if s.opts.RefundOnFailure {
			refund, rerr := s.ledger.Refund(context.WithoutCancel(ctx), userID, s.opts.Cost, "Refund for failed analysis")
			if rerr != nil {
				s.log.Error("退还积分失败", zap.Int64("user_id", userID), zap.Error(rerr))
			} else {
				remaining = refund.CreditsAfter
			}
		}
		cause := fmt.Errorf("%w (credits remaining %d)", err, remaining)
		return nil, wrap(ErrAnalyzerFailure, cause)
	}

	record := &model.AnalysisRecord{
		UserID:                  userID,
		Timestamp:               s.now().UTC(),
		Headline:                headline,
		NewsText:                text,
		Verdict:                 result.Verdict,
		Confidence:              result.Confidence,
		Summary:                 result.Summary,
		DetailedAnalysis:        result.DetailedAnalysis,
		RedFlags:                result.RedFlags,
		KeyClaims:               result.KeyClaims,
		VerificationSuggestions: result.VerificationSuggestions,
		SourcesChecked:          s.ListSources(),
		AIModel:                 s.analyzer.Model(),
	}
	if err := s.analysisRepo.Create(context.WithoutCancel(ctx), record); err != nil {
		return nil, fmt.Errorf("保存分析记录失败: %w", err)
	}

	s.log.Info("分析完成",
		zap.Int64("user_id", userID),
		zap.Int64("analysis_id", record.ID),
		zap.String("verdict", record.Verdict),
		zap.Int("confidence", record.Confidence),
		zap.Int64("credits_remaining", remaining),
	)
	return &AnalysisOutcome{Report: newReport(record, newsTextExcerpt), CreditsRemaining: remaining}, nil
}

// Article 批量分析的一条输入
type Article struct {
	Headline string `json:"headline"`
	Text     string `json:"text"`
}

// BatchItem 单条结果，失败时 Error/Message 非空
type BatchItem struct {
	Index   int     `json:"index"`
	Success bool    `json:"success"`
	Data    *Report `json:"data,omitempty"`
	Error   string  `json:"error,omitempty"`
	Message string  `json:"message,omitempty"`
}

type BatchOutcome struct {
	Total            int          `json:"total"`
	Results          []*BatchItem `json:"results"`
	CreditsRemaining int64        `json:"credits_remaining"`
}

// BatchAnalyze 逐条独立分析，每条各扣一次费用
func (s *AnalysisService) BatchAnalyze(ctx context.Context, userID int64, articles []Article) (*BatchOutcome, error) {
	if len(articles) == 0 {
		return nil, invalid("No articles provided")
	}
	if len(articles) > maxBatchSize {
		return nil, invalid(fmt.Sprintf("Maximum %d articles per batch", maxBatchSize))
	}

	out := &BatchOutcome{Total: len(articles), Results: make([]*BatchItem, 0, len(articles))}
	for i, a := range articles {
		item := &BatchItem{Index: i}
		outcome, err := s.Analyze(ctx, userID, a.Headline, a.Text)
		if err != nil {
			title, message := describe(err)
			item.Error, item.Message = title, message
			if !isExpected(err) {
				s.log.Error("批量分析单条失败", zap.Int64("user_id", userID), zap.Int("index", i), zap.Error(err))
			}
		} else {
			item.Success = true
			item.Data = outcome.Report
		}
		out.Results = append(out.Results, item)
	}

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	out.CreditsRemaining = balance.Credits
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// describe 取出业务错误的标题和提示，未知错误不外泄细节
func describe(err error) (string, string) {
	if ae, ok := apperr.As(err); ok {
		return ae.Title, ae.Message
	}
	return "Server error", "Something went wrong, please try again later"
}

func isExpected(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInsufficientCredits)
}
