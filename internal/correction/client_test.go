package correction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func jsonContentResponse(t *testing.T, content string) string {
	t.Helper()
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return string(encoded)
}

func TestCorrectBatchReturnsLines(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected authorization header: %q", r.Header.Get("Authorization"))
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			ResponseFormat map[string]string `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.ResponseFormat["type"] != "json_object" {
			t.Errorf("expected json_object response format, got %v", body.ResponseFormat)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", body.Messages)
		}
		if !strings.Contains(body.Messages[1].Content, "Helo wrold") {
			t.Errorf("user prompt missing input line: %q", body.Messages[1].Content)
		}
		gotBody = []byte(body.Model)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(jsonContentResponse(t, `{"lines":["Hello world","Second"]}`)))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "default/model"})
	lines, err := client.CorrectBatch(context.Background(), BatchRequest{
		Lines: []string{"Helo wrold", "Second"},
		Model: "override/model",
	})
	if err != nil {
		t.Fatalf("CorrectBatch returned error: %v", err)
	}
	if len(lines) != 2 || lines[0] != "Hello world" || lines[1] != "Second" {
		t.Fatalf("unexpected lines: %v", lines)
	}
	if string(gotBody) != "override/model" {
		t.Fatalf("expected per-request model override, got %q", gotBody)
	}
}

func TestCorrectBatchAcceptsBareArrayAndCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(jsonContentResponse(t, "```json\n[\"fixed\"]\n```")))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "m"})
	lines, err := client.CorrectBatch(context.Background(), BatchRequest{Lines: []string{"raw"}})
	if err != nil {
		t.Fatalf("CorrectBatch returned error: %v", err)
	}
	if len(lines) != 1 || lines[0] != "fixed" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestCorrectBatchRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{Model: "m"})
	if _, err := client.CorrectBatch(context.Background(), BatchRequest{Lines: []string{"x"}}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestCorrectBatchRetriesOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "upstream overload", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(jsonContentResponse(t, `{"lines":["ok"]}`)))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test-key", BaseURL: server.URL, Model: "m"},
		WithRetryMaxAttempts(3),
		WithRetryBackoff(time.Millisecond, 5*time.Millisecond),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	lines, err := client.CorrectBatch(context.Background(), BatchRequest{Lines: []string{"x"}})
	if err != nil {
		t.Fatalf("CorrectBatch returned error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if len(slept) != 1 {
		t.Fatalf("expected one retry sleep, got %v", slept)
	}
	if lines[0] != "ok" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestCorrectBatchDoesNotRetryClientError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test-key", BaseURL: server.URL, Model: "m"},
		WithRetryMaxAttempts(3),
		WithSleeper(func(time.Duration) {}),
	)
	if _, err := client.CorrectBatch(context.Background(), BatchRequest{Lines: []string{"x"}}); err == nil {
		t.Fatal("expected error for http 400")
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt for client error, got %d", attempts)
	}
}

func TestCorrectBatchHonorsRetryAfter(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(jsonContentResponse(t, `{"lines":["ok"]}`)))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test-key", BaseURL: server.URL, Model: "m"},
		WithRetryMaxAttempts(2),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	if _, err := client.CorrectBatch(context.Background(), BatchRequest{Lines: []string{"x"}}); err != nil {
		t.Fatalf("CorrectBatch returned error: %v", err)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected Retry-After sleep of 1s, got %v", slept)
	}
}

func TestDecodeModelJSONStripsProse(t *testing.T) {
	var parsed struct {
		Lines []string `json:"lines"`
	}
	content := "Here you go: {\"lines\": [\"a\", \"b\"]} hope that helps"
	if err := DecodeModelJSON(content, &parsed); err != nil {
		t.Fatalf("DecodeModelJSON returned error: %v", err)
	}
	if len(parsed.Lines) != 2 {
		t.Fatalf("unexpected lines: %v", parsed.Lines)
	}
}

func TestSystemPromptIncludesCleaningClauses(t *testing.T) {
	prompt := systemPrompt(Context{
		SpeakerName:     "Ada",
		Keywords:        "Analytical Engine",
		RemoveFillers:   true,
		FixStutters:     true,
		FilterProfanity: true,
	})
	for _, want := range []string{"Ada", "Analytical Engine", "REMOVE filler", "FIX stuttering", "FILTER or remove profanity", "MUST match the input array length"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestTruncateReference(t *testing.T) {
	ctx := Context{ReferenceContent: strings.Repeat("x", 50)}
	truncated := ctx.TruncateReference(10)
	if len(truncated.ReferenceContent) != 10 {
		t.Fatalf("expected 10 chars, got %d", len(truncated.ReferenceContent))
	}
	unchanged := ctx.TruncateReference(0)
	if len(unchanged.ReferenceContent) != 50 {
		t.Fatalf("expected untouched content, got %d chars", len(unchanged.ReferenceContent))
	}
}
