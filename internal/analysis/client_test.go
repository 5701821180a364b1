package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func completionResponse(content any) string {
	inner, _ := json.Marshal(content)
	outer, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": string(inner)}},
		},
	})
	return string(outer)
}

func TestAnalyzeParsesResponse(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(completionResponse(Analysis{
			Explanation:   "A greeting. (interjection) Example: Hello there!",
			Translation:   "你好",
			SuggestedTags: []string{"topic#greetings"},
		})))
	})

	c := NewClient(Options{APIKey: "sk-test", BaseURL: srv.URL, RequestsPerSecond: 100})

	got, err := c.Analyze(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if got.Translation != "你好" {
		t.Errorf("Translation = %q", got.Translation)
	}
	if got.Explanation == "" {
		t.Error("Explanation empty")
	}
	if len(got.SuggestedTags) != 1 || got.SuggestedTags[0] != "topic#greetings" {
		t.Errorf("SuggestedTags = %v", got.SuggestedTags)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", gotBody["model"])
	}
	if rf, ok := gotBody["response_format"].(map[string]any); !ok || rf["type"] != "json_object" {
		t.Errorf("response_format = %v", gotBody["response_format"])
	}
}

func TestAnalyzeAPIError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	})

	c := NewClient(Options{APIKey: "bad", BaseURL: srv.URL, RequestsPerSecond: 100})

	if _, err := c.Analyze(context.Background(), "hello"); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestAnalyzeMalformedContent(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"not json"}}]}`))
	})

	c := NewClient(Options{APIKey: "sk", BaseURL: srv.URL, RequestsPerSecond: 100})

	if _, err := c.Analyze(context.Background(), "hello"); err == nil {
		t.Error("expected error for non-JSON model output")
	}
}

func TestAnalyzeEmptyTextRejected(t *testing.T) {
	c := NewClient(Options{APIKey: "sk", RequestsPerSecond: 100})
	if _, err := c.Analyze(context.Background(), "   "); err == nil {
		t.Error("empty text must be rejected before any request")
	}
}

func TestAnalyzeNoChoices(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	c := NewClient(Options{APIKey: "sk", BaseURL: srv.URL, RequestsPerSecond: 100})
	if _, err := c.Analyze(context.Background(), "hello"); err == nil {
		t.Error("expected error for empty choices")
	}
}
