package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"newsscope/internal/model"
)

const validNews = "Scientists confirm that the new bridge opened to traffic this morning."

func TestAnalyzeShortTextIsRejectedWithoutCharge(t *testing.T) {
	h := newHarness(t)
	uid := h.createUser(t, 5)

	_, err := h.analysis.Analyze(context.Background(), uid, "", "short")
	mustKind(t, err, ErrInvalidInput)
	if b := h.balance(t, uid); b.Credits != 5 {
		t.Errorf("credits = %d, want 5", b.Credits)
	}
	if h.analyzer.calls.Load() != 0 {
		t.Error("analyzer must not be called")
	}
}

func TestAnalyzeWithoutCredits(t *testing.T) {
	h := newHarness(t)
	uid := h.createUser(t, 0)

	_, err := h.analysis.Analyze(context.Background(), uid, "Headline", validNews)
	mustKind(t, err, ErrInsufficientCredits)
	if b := h.balance(t, uid); b.Credits != 0 || b.CreditsUsed != 0 {
		t.Errorf("balance = %+v", b)
	}
	if h.analyzer.calls.Load() != 0 {
		t.Error("analyzer must not be called")
	}
}

func TestAnalyzePersistsRecord(t *testing.T) {
	h := newHarness(t)
	uid := h.createUser(t, 3)
	long := validNews + strings.Repeat(" more text", 80)

	out, err := h.analysis.Analyze(context.Background(), uid, "  Bridge opens  ", long)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out.CreditsRemaining != 2 {
		t.Errorf("credits remaining = %d, want 2", out.CreditsRemaining)
	}
	r := out.Report
	if r.ID == 0 || r.Verdict != model.VerdictReal || r.Headline != "Bridge opens" || r.AIModel != "fake-model" {
		t.Errorf("report = %+v", r)
	}
	if r.TotalSourcesChecked != 10 || len(r.SourcesChecked) != 10 {
		t.Errorf("sources = %d", r.TotalSourcesChecked)
	}
	if !strings.HasSuffix(r.NewsText, "...") || len([]rune(r.NewsText)) != newsTextExcerpt+3 {
		t.Errorf("news_text excerpt has %d runes", len([]rune(r.NewsText)))
	}

	stored, err := h.history.Get(context.Background(), uid, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.NewsText != strings.TrimSpace(long) || len(stored.RedFlags) != 1 || len(stored.VerificationSuggestions) != 1 {
		t.Errorf("stored = %+v", stored)
	}
	h.assertLedger(t, uid)
}

func TestAnalyzerFailureKeepsDeductionByDefault(t *testing.T) {
	h := newHarness(t)
	uid := h.createUser(t, 2)
	h.analyzer.err = errors.New("model overloaded")

	_, err := h.analysis.Analyze(context.Background(), uid, "", validNews)
	mustKind(t, err, ErrAnalyzerFailure)

	if b := h.balance(t, uid); b.Credits != 1 || b.CreditsUsed != 1 {
		t.Errorf("balance = %+v, want 1/1", b)
	}
	if n := h.count(t, &model.AnalysisRecord{}, "user_id = ?", uid); n != 0 {
		t.Errorf("records = %d, want 0", n)
	}
	h.assertLedger(t, uid)
}

func TestAnalyzerFailureRefundsWhenEnabled(t *testing.T) {
	h := newHarnessWith(t, AnalysisOptions{Cost: 1, RefundOnFailure: true})
	uid := h.createUser(t, 2)
	h.analyzer.err = errors.New("timeout")

	_, err := h.analysis.Analyze(context.Background(), uid, "", validNews)
	mustKind(t, err, ErrAnalyzerFailure)

	if b := h.balance(t, uid); b.Credits != 2 || b.CreditsUsed != 1 {
		t.Errorf("balance = %+v, want 2/1", b)
	}
	if n := h.count(t, &model.CreditTransaction{}, "user_id = ? AND transaction_type = ?", uid, model.TransactionTypeRefund); n != 1 {
		t.Errorf("refund rows = %d, want 1", n)
	}
	h.assertLedger(t, uid)
}

func TestAnalyzerNotConfigured(t *testing.T) {
	h := newHarness(t)
	uid := h.createUser(t, 1)
	svc := NewAnalysisService(h.ledger, nil, nil, AnalysisOptions{}, h.analysis.log)

	_, err := svc.Analyze(context.Background(), uid, "", validNews)
	mustKind(t, err, ErrAnalyzerUnavailable)
	if b := h.balance(t, uid); b.Credits != 1 {
		t.Errorf("credits = %d, want 1", b.Credits)
	}
}

func TestBatchAnalyze(t *testing.T) {
	h := newHarness(t)
	uid := h.createUser(t, 2)

	out, err := h.analysis.BatchAnalyze(context.Background(), uid, []Article{
		{Headline: "one", Text: validNews},
		{Headline: "two", Text: "tiny"},
		{Headline: "three", Text: "Aliens have landed in the city centre, officials say."},
		{Headline: "four", Text: validNews},
	})
	if err != nil {
		t.Fatalf("BatchAnalyze: %v", err)
	}
	if out.Total != 4 || len(out.Results) != 4 {
		t.Fatalf("outcome = %+v", out)
	}

	want := []bool{true, false, true, false}
	for i, item := range out.Results {
		if item.Success != want[i] || item.Index != i {
			t.Errorf("result[%d] = %+v", i, item)
		}
	}
	if out.Results[1].Error != "Invalid input" || out.Results[3].Error != "Insufficient credits" {
		t.Errorf("errors = %q, %q", out.Results[1].Error, out.Results[3].Error)
	}
	if out.Results[2].Data.Verdict != model.VerdictFake {
		t.Errorf("verdict = %s", out.Results[2].Data.Verdict)
	}
	if out.CreditsRemaining != 0 {
		t.Errorf("credits remaining = %d", out.CreditsRemaining)
	}
}

func TestBatchAnalyzeLimits(t *testing.T) {
	h := newHarness(t)
	uid := h.createUser(t, 20)

	_, err := h.analysis.BatchAnalyze(context.Background(), uid, nil)
	mustKind(t, err, ErrInvalidInput)

	articles := make([]Article, maxBatchSize+1)
	_, err = h.analysis.BatchAnalyze(context.Background(), uid, articles)
	mustKind(t, err, ErrInvalidInput)
	if b := h.balance(t, uid); b.Credits != 20 {
		t.Errorf("credits = %d, want 20", b.Credits)
	}
}

func TestListSourcesIsACopy(t *testing.T) {
	h := newHarness(t)
	sources := h.analysis.ListSources()
	if len(sources) != 10 || sources[0].Name != "Associated Press (AP)" || sources[9].Name != "PolitiFact" {
		t.Fatalf("sources = %+v", sources)
	}
	sources[0].Name = "changed"
	if h.analysis.ListSources()[0].Name == "changed" {
		t.Error("catalog mutated through returned slice")
	}
}
