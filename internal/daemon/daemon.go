package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"sublime/internal/api"
	"sublime/internal/config"
	"sublime/internal/correction"
	"sublime/internal/logging"
	"sublime/internal/review"
)

// ErrAlreadyRunning indicates another daemon instance holds the lock file.
var ErrAlreadyRunning = errors.New("another instance is already running")

// ErrNoSession indicates an operation that requires a loaded session.
var ErrNoSession = errors.New("no active session")

// Daemon owns the active review session and the HTTP API around it.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	client *correction.Client
	fixer  *correction.Fixer
	lock   *flock.Flock
	api    *apiServer

	mu        sync.Mutex
	session   *review.Session
	startedAt time.Time
}

// New constructs a daemon from configuration. The correction client is
// built from the configured LLM settings.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	llm := cfg.GetLLM()
	client := correction.NewClient(correction.Config{
		APIKey:         llm.APIKey,
		BaseURL:        llm.BaseURL,
		Model:          llm.Model,
		Referer:        llm.Referer,
		Title:          llm.Title,
		TimeoutSeconds: llm.TimeoutSeconds,
	})
	fixer := correction.NewFixer(client, cfg.Correction.BatchSize, cfg.Correction.ReferenceLimit, logger)

	d := &Daemon{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "daemon"),
		client: client,
		fixer:  fixer,
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Run acquires the instance lock, starts the API server, and blocks until
// ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.acquireLock(); err != nil {
		return err
	}
	defer d.releaseLock()

	if err := d.api.start(ctx); err != nil {
		return err
	}
	d.startedAt = time.Now().UTC()
	d.logger.Info("daemon started", logging.Int("pid", os.Getpid()))

	// A bad key or endpoint should surface in the log at startup, not on
	// the first correction run. Failure does not stop the daemon.
	_ = d.checkCorrectionService(ctx)

	<-ctx.Done()
	d.shutdown()
	return nil
}

// checkCorrectionService pings the configured chat-completions endpoint and
// logs the outcome.
func (d *Daemon) checkCorrectionService(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := d.client.HealthCheck(checkCtx); err != nil {
		d.logger.Warn("correction service health check failed", logging.Error(err))
		return err
	}
	d.logger.Info("correction service reachable")
	return nil
}

func (d *Daemon) shutdown() {
	d.api.stop()
	d.mu.Lock()
	session := d.session
	d.session = nil
	d.mu.Unlock()
	if session != nil {
		_ = session.Close()
	}
	d.logger.Info("daemon stopped")
}

func (d *Daemon) acquireLock() error {
	path := d.cfg.Paths.LockFile
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("%w (lock file %s)", ErrAlreadyRunning, path)
	}
	d.lock = lock
	return nil
}

func (d *Daemon) releaseLock() {
	if d.lock != nil {
		_ = d.lock.Unlock()
		d.lock = nil
	}
}

// CreateSession replaces the active session with one built from the
// uploaded document. Any previous session is closed, cancelling its run.
func (d *Daemon) CreateSession(name, content string, promptCtx correction.Context) (*review.Session, error) {
	session, err := review.NewSession(d.fixer, d.logger, name, content, promptCtx)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	previous := d.session
	d.session = session
	d.mu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	return session, nil
}

// Session returns the active session, or nil when none is loaded.
func (d *Daemon) Session() *review.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// CloseSession drops the active session.
func (d *Daemon) CloseSession() error {
	d.mu.Lock()
	session := d.session
	d.session = nil
	d.mu.Unlock()
	if session == nil {
		return ErrNoSession
	}
	return session.Close()
}

// Status reports daemon runtime state for the status endpoint and CLI.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      true,
		PID:          os.Getpid(),
		Bind:         d.cfg.Paths.APIBind,
		LockFilePath: d.cfg.Paths.LockFile,
	}
	session := d.Session()
	if session == nil {
		return status
	}
	view := sessionView(ctx, session)
	status.Session = &view
	runView := api.FromSnapshot(session.RunSnapshot())
	status.Run = &runView
	return status
}

func sessionView(ctx context.Context, s *review.Session) api.Session {
	cueCount := 0
	if cues, err := s.Cues(ctx, review.FilterAll); err == nil {
		cueCount = len(cues)
	}
	return api.Session{
		ID:         s.ID(),
		Name:       s.Name(),
		CreatedAt:  api.FormatTime(s.CreatedAt()),
		CueCount:   cueCount,
		ExportName: s.ExportName(),
		Context:    api.FromContext(s.Context()),
	}
}
