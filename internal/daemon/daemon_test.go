package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"sublime/internal/config"
	"sublime/internal/correction"
)

func newTestDaemon(t *testing.T, lockFile string) *Daemon {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Paths.LockFile = lockFile
	cfg.LLM.APIKey = "test-key"

	d, err := New(&cfg, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return d
}

func newTestDaemonWithLLM(t *testing.T, baseURL string) *Daemon {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Paths.LockFile = filepath.Join(t.TempDir(), "sublime.lock")
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.BaseURL = baseURL

	d, err := New(&cfg, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return d
}

func TestCorrectionServiceCheck(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"ok":true}`}},
			},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(content)
	}))
	t.Cleanup(healthy.Close)

	d := newTestDaemonWithLLM(t, healthy.URL)
	if err := d.checkCorrectionService(context.Background()); err != nil {
		t.Fatalf("health check against healthy endpoint: %v", err)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(failing.Close)

	d = newTestDaemonWithLLM(t, failing.URL)
	if err := d.checkCorrectionService(context.Background()); err == nil {
		t.Fatal("expected health check failure for rejecting endpoint")
	}
}

func TestLockRejectsSecondInstance(t *testing.T) {
	lockFile := filepath.Join(t.TempDir(), "sublime.lock")

	first := newTestDaemon(t, lockFile)
	if err := first.acquireLock(); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	defer first.releaseLock()

	second := newTestDaemon(t, lockFile)
	if err := second.acquireLock(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	first.releaseLock()
	if err := second.acquireLock(); err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	second.releaseLock()
}

func TestCreateSessionReplacesPrevious(t *testing.T) {
	d := newTestDaemon(t, filepath.Join(t.TempDir(), "sublime.lock"))
	t.Cleanup(func() { _ = d.CloseSession() })

	first, err := d.CreateSession("one.srt", sampleSRT, correction.Context{})
	if err != nil {
		t.Fatalf("create first session: %v", err)
	}
	second, err := d.CreateSession("two.srt", sampleSRT, correction.Context{})
	if err != nil {
		t.Fatalf("create second session: %v", err)
	}
	if first.ID() == second.ID() {
		t.Fatal("expected distinct session ids")
	}
	if d.Session() != second {
		t.Fatal("expected second session active")
	}
}

func TestCloseSessionWithoutSession(t *testing.T) {
	d := newTestDaemon(t, filepath.Join(t.TempDir(), "sublime.lock"))
	if err := d.CloseSession(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
