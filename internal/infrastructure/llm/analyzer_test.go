package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseResult(t *testing.T) {
	cases := []struct {
		name           string
		raw            string
		wantVerdict    string
		wantConfidence int
		wantFlags      int
	}{
		{
			name:           "plain json",
			raw:            `{"verdict":"FAKE","confidence":92,"summary":"s","red_flags":["a","b"]}`,
			wantVerdict:    "FAKE",
			wantConfidence: 92,
			wantFlags:      2,
		},
		{
			name:           "fenced json",
			raw:            "Here you go:\n```json\n{\"verdict\":\"real\",\"confidence\":80}\n```",
			wantVerdict:    "REAL",
			wantConfidence: 80,
		},
		{
			name:           "bare fence",
			raw:            "```\n{\"verdict\":\"MISLEADING\",\"confidence\":55}\n```",
			wantVerdict:    "MISLEADING",
			wantConfidence: 55,
		},
		{
			name:           "unknown verdict clamps",
			raw:            `{"verdict":"MAYBE","confidence":140}`,
			wantVerdict:    "UNCERTAIN",
			wantConfidence: 100,
		},
		{
			name:           "fractional confidence rounds",
			raw:            `{"verdict":"FAKE","confidence":85.5,"red_flags":["a"]}`,
			wantVerdict:    "FAKE",
			wantConfidence: 86,
			wantFlags:      1,
		},
		{
			name:           "quoted confidence",
			raw:            `{"verdict":"REAL","confidence":"85","red_flags":["a","b"]}`,
			wantVerdict:    "REAL",
			wantConfidence: 85,
			wantFlags:      2,
		},
		{
			name:           "percent confidence",
			raw:            `{"verdict":"MISLEADING","confidence":"60%"}`,
			wantVerdict:    "MISLEADING",
			wantConfidence: 60,
		},
		{
			name:           "unreadable confidence keeps the rest",
			raw:            `{"verdict":"REAL","confidence":"high","summary":"s","red_flags":["x"]}`,
			wantVerdict:    "REAL",
			wantConfidence: 70,
			wantFlags:      1,
		},
		{
			name:           "free text falls back",
			raw:            "This article appears to be fake and misleading.",
			wantVerdict:    "FAKE",
			wantConfidence: 70,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := ParseResult(tc.raw)
			if err != nil {
				t.Fatalf("ParseResult: %v", err)
			}
			if res.Verdict != tc.wantVerdict || res.Confidence != tc.wantConfidence {
				t.Errorf("got %s/%d, want %s/%d", res.Verdict, res.Confidence, tc.wantVerdict, tc.wantConfidence)
			}
			if len(res.RedFlags) != tc.wantFlags {
				t.Errorf("red flags = %v", res.RedFlags)
			}
			if res.KeyClaims == nil || res.VerificationSuggestions == nil {
				t.Error("slices must be non-nil")
			}
		})
	}

	res, err := ParseResult(`{"verdict":"FAKE","confidence":"91.4","detailed_analysis":"structured"}`)
	if err != nil || res.DetailedAnalysis != "structured" || res.Confidence != 91 {
		t.Errorf("loose confidence discarded the structured reply: %+v, %v", res, err)
	}

	if _, err := ParseResult("   "); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("empty = %v, want ErrEmptyResponse", err)
	}
}

func TestExtractVerdict(t *testing.T) {
	cases := map[string]string{
		"totally fake news":               "FAKE",
		"this is misleading":              "MISLEADING",
		"seems authentic":                 "REAL",
		"a legitimate report":             "REAL",
		"cannot determine":                "UNCERTAIN",
		"fake but also real, misleading?": "FAKE",
	}
	for in, want := range cases {
		if got := ExtractVerdict(in); got != want {
			t.Errorf("ExtractVerdict(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("", "body text here")
	if !strings.Contains(p, "Headline: Not provided") || !strings.Contains(p, "body text here") {
		t.Errorf("prompt missing fields:\n%s", p)
	}
	if !strings.Contains(BuildPrompt("Big news", "x"), "Headline: Big news") {
		t.Error("headline not included")
	}
}

func TestOpenAIAnalyzer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req struct {
			Model          string `json:"model"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-test" || req.ResponseFormat.Type != "json_object" {
			t.Errorf("request = %+v", req)
		}

		content := `{"verdict":"MISLEADING","confidence":64,"summary":"partly true","key_claims":["x"]}`
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "gpt-test",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	}))
	defer srv.Close()

	a := NewOpenAIAnalyzer("test-key", "gpt-test", srv.URL+"/v1", 5*time.Second)
	res, err := a.Analyze(context.Background(), "h", "some news body")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Verdict != "MISLEADING" || res.Confidence != 64 || len(res.KeyClaims) != 1 {
		t.Errorf("result = %+v", res)
	}
	if a.Model() != "gpt-test" {
		t.Errorf("Model = %s", a.Model())
	}
}

func TestOpenAIAnalyzerUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	a := NewOpenAIAnalyzer("k", "m", srv.URL+"/v1", 5*time.Second)
	if _, err := a.Analyze(context.Background(), "", "text"); err == nil {
		t.Fatal("expected error")
	}
}
