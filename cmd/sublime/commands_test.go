package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSRT = "1\n00:00:01,000 --> 00:00:02,500\nhelo wrold\n\n2\n00:00:03,000 --> 00:00:04,000\nsecond line\n"

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, output)
	}
}

func writeTestConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`[paths]
log_dir = %q
lock_file = %q

[llm]
api_key = "test-key"
base_url = %q

[correction]
batch_size = 20
`, filepath.Join(dir, "logs"), filepath.Join(dir, "sublime.lock"), baseURL)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// newUppercaseLLM serves a chat-completions endpoint that uppercases every
// input line it receives.
func newUppercaseLLM(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var lines []string
		for _, msg := range payload.Messages {
			if msg.Role != "user" {
				continue
			}
			_, raw, ok := strings.Cut(msg.Content, "INPUT SUBTITLES:\n")
			if !ok {
				http.Error(w, "missing input block", http.StatusBadRequest)
				return
			}
			if err := json.Unmarshal([]byte(raw), &lines); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		for i := range lines {
			lines[i] = strings.ToUpper(lines[i])
		}
		body, _ := json.Marshal(map[string]any{"lines": lines})
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": string(body)}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConfigInitAndValidate(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	target := filepath.Join(tmp, "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init without --overwrite to fail on existing file")
	}
	if _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, err = runCLI(t, "--config", target, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestConfigShow(t *testing.T) {
	path := writeTestConfig(t, "https://example.invalid/v1/chat/completions")

	out, err := runCLI(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "LLM key set")
	requireContains(t, out, "yes")
	requireContains(t, out, "127.0.0.1:7519")
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "talk.srt")
	if err := os.WriteFile(input, []byte(testSRT), 0o644); err != nil {
		t.Fatalf("write srt: %v", err)
	}

	out, err := runCLI(t, "inspect", input)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	requireContains(t, out, "helo wrold")
	requireContains(t, out, "00:00:01,000 --> 00:00:02,500")
	requireContains(t, out, "2 cues")
}

func TestInspectRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(input, []byte("this is not a subtitle file"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := runCLI(t, "inspect", input); err == nil {
		t.Fatal("expected parse failure for non-SRT content")
	}
}

func TestFixCommand(t *testing.T) {
	llm := newUppercaseLLM(t)
	configPath := writeTestConfig(t, llm.URL)

	dir := t.TempDir()
	input := filepath.Join(dir, "talk.srt")
	if err := os.WriteFile(input, []byte(testSRT), 0o644); err != nil {
		t.Fatalf("write srt: %v", err)
	}

	output := filepath.Join(dir, "fixed.srt")
	out, err := runCLI(t, "--config", configPath, "fix", input, "--output", output)
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	requireContains(t, out, "Corrected lines")
	requireContains(t, out, "2")

	fixed, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	requireContains(t, string(fixed), "HELO WROLD")
	requireContains(t, string(fixed), "SECOND LINE")
	requireContains(t, string(fixed), "00:00:03,000 --> 00:00:04,000")
}

func TestFixDefaultOutputName(t *testing.T) {
	llm := newUppercaseLLM(t)
	configPath := writeTestConfig(t, llm.URL)

	dir := t.TempDir()
	input := filepath.Join(dir, "talk.srt")
	if err := os.WriteFile(input, []byte(testSRT), 0o644); err != nil {
		t.Fatalf("write srt: %v", err)
	}

	if _, err := runCLI(t, "--config", configPath, "fix", input); err != nil {
		t.Fatalf("fix: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "corrected_talk.srt")); err != nil {
		t.Fatalf("expected default output beside input: %v", err)
	}
}
