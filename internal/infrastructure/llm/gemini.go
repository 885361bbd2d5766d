package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiAnalyzer 通过 Gemini 判定新闻真伪
type GeminiAnalyzer struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiAnalyzer(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiAnalyzer, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	return &GeminiAnalyzer{client: client, model: model, timeout: timeout}, nil
}

func (g *GeminiAnalyzer) Model() string {
	return g.model
}

func (g *GeminiAnalyzer) Analyze(ctx context.Context, headline, text string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	m := g.client.GenerativeModel(g.model)
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(0.2)

	resp, err := m.GenerateContent(ctx, genai.Text(BuildPrompt(headline, text)))
	if err != nil {
		return nil, fmt.Errorf("Gemini 调用失败: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return ParseResult(sb.String())
}

func (g *GeminiAnalyzer) Close() error {
	return g.client.Close()
}
