package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// generateContentPath is where the Gemini REST surface serves the pinned model.
const generateContentPath = "/v1beta/models/gemini-2.0-flash:generateContent"

func envelopeFor(t *testing.T, intentJSON string) []byte {
	t.Helper()
	env := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": intentJSON}},
				},
			},
		},
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()
	client, err := New(context.Background(), Config{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "gemini-2.0-flash",
		Timeout: timeout,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestExtractSuccess(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		var req struct {
			Contents []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			GenerationConfig struct {
				ResponseMimeType string `json:"responseMimeType"`
				ResponseSchema   struct {
					Required []string `json:"required"`
				} `json:"responseSchema"`
			} `json:"generationConfig"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || !strings.Contains(req.Contents[0].Parts[0].Text, "food tour tomorrow") {
			t.Errorf("prompt missing message text: %+v", req.Contents)
		}
		if req.GenerationConfig.ResponseMimeType != "application/json" {
			t.Errorf("unexpected mime type %s", req.GenerationConfig.ResponseMimeType)
		}
		if len(req.GenerationConfig.ResponseSchema.Required) != 4 {
			t.Errorf("expected 4 required schema fields, got %v", req.GenerationConfig.ResponseSchema.Required)
		}

		w.Write(envelopeFor(t, `{"userName":"Alice","tourType":"Food Tour","tourDate":"tomorrow","tourTime":"2 PM"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)
	intent, err := client.Extract(context.Background(), "Hi! I'm Alice, food tour tomorrow at 2 PM")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if gotPath != generateContentPath {
		t.Errorf("unexpected path %s", gotPath)
	}
	// Field matching is case-insensitive.
	if intent.UserName != "Alice" || intent.TourType != "Food Tour" || intent.TourDate != "tomorrow" || intent.TourTime != "2 PM" {
		t.Errorf("unexpected intent: %+v", intent)
	}
}

func TestExtractNoAPIKeyReturnsSentinel(t *testing.T) {
	client, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	intent, err := client.Extract(context.Background(), "any message")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if intent == nil {
		t.Fatal("expected sentinel intent, got nil")
	}
	for _, v := range []string{intent.UserName, intent.TourType, intent.TourDate, intent.TourTime} {
		if v != Unknown {
			t.Errorf("expected all fields %q, got %+v", Unknown, intent)
		}
	}
}

func TestExtractHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)
	intent, err := client.Extract(context.Background(), "msg")
	if err == nil {
		t.Fatal("expected error on non-2xx response")
	}
	if intent != nil {
		t.Fatalf("expected nil intent on failure, got %+v", intent)
	}
}

func TestExtractTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 20*time.Millisecond)
	if _, err := client.Extract(context.Background(), "msg"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestExtractMalformedResponse(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no candidates", `{"candidates": []}`},
		{"no parts", `{"candidates": [{"content": {"role": "model", "parts": []}}]}`},
		{"empty text", `{"candidates": [{"content": {"role": "model", "parts": [{"text": ""}]}}]}`},
		{"text not json", `{"candidates": [{"content": {"role": "model", "parts": [{"text": "plain words"}]}}]}`},
		{"not json at all", `garbage`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL, 0)
			intent, err := client.Extract(context.Background(), "msg")
			if err == nil {
				t.Fatal("expected error")
			}
			if intent != nil {
				t.Fatalf("expected nil intent, got %+v", intent)
			}
		})
	}
}

func TestExtractFillsMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelopeFor(t, `{"UserName":"Bob"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)
	intent, err := client.Extract(context.Background(), "msg")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if intent.UserName != "Bob" {
		t.Errorf("expected Bob, got %s", intent.UserName)
	}
	if intent.TourType != Unknown || intent.TourDate != Unknown || intent.TourTime != Unknown {
		t.Errorf("expected missing fields to default to %q: %+v", Unknown, intent)
	}
}

func TestKnown(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"Food Tour", true},
		{"N/A", false},
		{"n/a", false},
		{" ", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := Known(tc.value); got != tc.want {
			t.Errorf("Known(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}
