package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	VerdictReal       = "REAL"
	VerdictFake       = "FAKE"
	VerdictMisleading = "MISLEADING"
	VerdictUncertain  = "UNCERTAIN"
)

// Verdicts 固定顺序，用于统计
var Verdicts = []string{VerdictReal, VerdictFake, VerdictMisleading, VerdictUncertain}

// Source 核查来源描述
type Source struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Credibility string `json:"credibility"`
	Checked     bool   `json:"checked"`
}

// AnalysisRecord 一次成功分析的结果，创建后只允许所属用户删除
type AnalysisRecord struct {
	ID                      int64                       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID                  int64                       `gorm:"index;not null" json:"-"`
	Timestamp               time.Time                   `gorm:"index;not null" json:"timestamp"`
	Headline                string                      `gorm:"type:text" json:"headline"`
	NewsText                string                      `gorm:"type:text;not null" json:"news_text"`
	Verdict                 string                      `gorm:"type:varchar(20);not null" json:"verdict"`
	Confidence              int                         `gorm:"not null" json:"confidence"`
	Summary                 string                      `gorm:"type:text" json:"summary"`
	DetailedAnalysis        string                      `gorm:"type:text" json:"detailed_analysis"`
	RedFlags                datatypes.JSONSlice[string] `json:"red_flags"`
	KeyClaims               datatypes.JSONSlice[string] `json:"key_claims"`
	VerificationSuggestions datatypes.JSONSlice[string] `json:"verification_suggestions"`
	SourcesChecked          datatypes.JSONSlice[Source] `json:"sources_checked"`
	AIModel                 string                      `gorm:"type:varchar(64)" json:"ai_model"`
}

func (AnalysisRecord) TableName() string {
	return "analysis_history"
}

// Excerpt 截断正文，超出部分以 ... 结尾
func Excerpt(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "..."
}
