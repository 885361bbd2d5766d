package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"newsscope/internal/model"
)

var ErrEmptyResponse = errors.New("模型未返回内容")

// 模型未给出可用置信度时的默认值
const fallbackConfidence = 70

// Result 模型对一条新闻的判定
type Result struct {
	Verdict                 string   `json:"verdict"`
	Confidence              int      `json:"confidence"`
	Summary                 string   `json:"summary"`
	DetailedAnalysis        string   `json:"detailed_analysis"`
	RedFlags                []string `json:"red_flags"`
	VerificationSuggestions []string `json:"verification_suggestions"`
	KeyClaims               []string `json:"key_claims"`
}

const promptTemplate = `You are an expert fact-checker and news analyst. Analyze the following news article for authenticity.

Headline: %s

News Content:
%s

Please provide a comprehensive analysis with the following:

1. VERDICT: Is this news REAL, FAKE, or MISLEADING? (Choose one)
2. CONFIDENCE LEVEL: Rate your confidence from 0-100
3. DETAILED ANALYSIS: Explain why you believe this news is real, fake, or misleading. Consider factual accuracy, source credibility indicators, language patterns (sensationalism, emotional manipulation), logical consistency, verifiable vs unverifiable claims and common fake news indicators.
4. RED FLAGS: List any specific red flags or warning signs found in the text
5. VERIFICATION SUGGESTIONS: What key facts should be verified and where?
6. KEY CLAIMS: Extract and list the main claims that need fact-checking

Respond with JSON only, using this structure:
{
    "verdict": "REAL|FAKE|MISLEADING",
    "confidence": 85,
    "summary": "Brief one-line summary",
    "detailed_analysis": "Comprehensive explanation",
    "red_flags": ["flag1", "flag2"],
    "verification_suggestions": ["suggestion1", "suggestion2"],
    "key_claims": ["claim1", "claim2"]
}`

// BuildPrompt 生成分析提示词
func BuildPrompt(headline, text string) string {
	if strings.TrimSpace(headline) == "" {
		headline = "Not provided"
	}
	return fmt.Sprintf(promptTemplate, headline, text)
}

// ParseResult 解析模型输出
// 优先解析 JSON（兼容 markdown 代码块包裹），失败时按关键词提取结论
func ParseResult(raw string) (*Result, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	var res Result
	if err := json.Unmarshal([]byte(stripFence(text)), &res); err != nil {
		return &Result{
			Verdict:                 ExtractVerdict(text),
			Confidence:              fallbackConfidence,
			Summary:                 "AI analysis completed",
			DetailedAnalysis:        text,
			RedFlags:                []string{},
			VerificationSuggestions: []string{},
			KeyClaims:               []string{},
		}, nil
	}
	res.normalize()
	return &res, nil
}

// UnmarshalJSON confidence 兼容小数和字符串（"85"、"85%"），其余字段按原样解析
func (r *Result) UnmarshalJSON(data []byte) error {
	type plain Result
	aux := struct {
		*plain
		Confidence json.RawMessage `json:"confidence"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Confidence = parseConfidence(aux.Confidence)
	return nil
}

func parseConfidence(raw json.RawMessage) int {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return fallbackConfidence
	}
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(unquoted), "%"))
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) {
		return fallbackConfidence
	}
	return int(math.Round(math.Max(0, math.Min(100, f))))
}

func stripFence(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}
	body := text[start+3:]
	body = strings.TrimPrefix(body, "json")
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// ExtractVerdict 非结构化文本的结论提取，按 FAKE > MISLEADING > REAL 优先级
func ExtractVerdict(text string) string {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "FAKE"):
		return model.VerdictFake
	case strings.Contains(upper, "MISLEADING"):
		return model.VerdictMisleading
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "AUTHENTIC"), strings.Contains(upper, "LEGITIMATE"):
		return model.VerdictReal
	}
	return model.VerdictUncertain
}

func (r *Result) normalize() {
	switch v := strings.ToUpper(strings.TrimSpace(r.Verdict)); v {
	case model.VerdictReal, model.VerdictFake, model.VerdictMisleading:
		r.Verdict = v
	default:
		r.Verdict = model.VerdictUncertain
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 100 {
		r.Confidence = 100
	}
	if r.RedFlags == nil {
		r.RedFlags = []string{}
	}
	if r.VerificationSuggestions == nil {
		r.VerificationSuggestions = []string{}
	}
	if r.KeyClaims == nil {
		r.KeyClaims = []string{}
	}
}
