// Package run owns the correction run lifecycle: starting a run over the
// loaded cues, tracking its progress, honoring cancellation, and committing
// the merged result back to the cue store.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"sublime/internal/correction"
	"sublime/internal/logging"
	"sublime/internal/overrides"
	"sublime/internal/session"
	"sublime/internal/subtitle"
)

// Status describes the resting state of the orchestrator. Cancellation is
// not a resting state: a cancelled run returns to StatusIdle.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrRunActive indicates a start request while a run is in flight.
var ErrRunActive = errors.New("a correction run is already active")

// ErrNoCues indicates a start request with no cues loaded.
var ErrNoCues = errors.New("no cues loaded")

// Stats summarizes a run for display.
type Stats struct {
	TotalLines     int `json:"total_lines"`
	ProcessedLines int `json:"processed_lines"`
	CorrectedCount int `json:"corrected_count"`
}

// Snapshot is a point-in-time view of the orchestrator state.
type Snapshot struct {
	RunID    string `json:"run_id,omitempty"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Stats    Stats  `json:"stats"`
	Model    string `json:"model,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Orchestrator drives correction runs over a session's cue store.
type Orchestrator struct {
	store  *session.Store
	fixer  *correction.Fixer
	ledger *overrides.Ledger
	logger *slog.Logger

	mu       sync.Mutex
	status   Status
	runID    string
	cancel   context.CancelFunc
	done     chan struct{}
	progress int
	stats    Stats
	model    string
	lastErr  string
	// live holds the corrected texts accumulated so far, index-aligned
	// with the cue positions.
	live []string
}

// NewOrchestrator constructs an idle orchestrator.
func NewOrchestrator(store *session.Store, fixer *correction.Fixer, ledger *overrides.Ledger, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		store:  store,
		fixer:  fixer,
		ledger: ledger,
		logger: logging.NewComponentLogger(logger, "run"),
		status: StatusIdle,
	}
}

// Start begins a correction run over the current cue texts and returns the
// run id. The run executes in the background; observe it through Snapshot
// and Wait. Starting while a run is active fails with ErrRunActive.
func (o *Orchestrator) Start(ctx context.Context, promptCtx correction.Context, model string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status == StatusRunning {
		return "", ErrRunActive
	}

	texts, err := o.store.Texts(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot cue texts: %w", err)
	}
	if len(texts) == 0 {
		return "", ErrNoCues
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	o.status = StatusRunning
	o.runID = runID
	o.cancel = cancel
	o.done = done
	o.progress = 0
	o.stats = Stats{TotalLines: len(texts)}
	o.model = model
	o.lastErr = ""
	o.live = nil
	o.ledger.Clear()

	o.logger.Info("correction run started",
		logging.String(logging.FieldRunID, runID),
		logging.Int("total_lines", len(texts)),
		logging.String("model", model))

	go o.execute(runCtx, runID, texts, promptCtx, model, done)
	return runID, nil
}

// Cancel aborts the active run and reports whether one was active. The
// store is left untouched and the orchestrator returns to idle once the
// run's goroutine observes the cancellation.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != StatusRunning || o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

// Wait blocks until the current run finishes. It returns immediately when
// no run is active.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Snapshot returns the current orchestrator state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		RunID:    o.runID,
		Status:   o.status,
		Progress: o.progress,
		Stats:    o.stats,
		Model:    o.model,
		Error:    o.lastErr,
	}
}

// Running reports whether a run is in flight.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status == StatusRunning
}

// ProjectedCues returns the cue list as it should be displayed right now.
// While a run is in flight, already-processed lines show the live corrected
// text, with recorded overrides taking precedence. Unprocessed lines and
// idle sessions show the stored text.
func (o *Orchestrator) ProjectedCues(ctx context.Context) ([]subtitle.Cue, error) {
	cues, err := o.store.List(ctx)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	running := o.status == StatusRunning
	live := o.live
	o.mu.Unlock()

	if !running {
		return cues, nil
	}
	for i := range cues {
		if i >= len(live) {
			break
		}
		cues[i].Text = o.ledger.Resolve(i, live[i])
	}
	return cues, nil
}

// Reset returns a completed or failed orchestrator to idle. It is rejected
// while a run is active.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status == StatusRunning {
		return ErrRunActive
	}
	o.toIdleLocked()
	return nil
}

func (o *Orchestrator) toIdleLocked() {
	o.status = StatusIdle
	o.runID = ""
	o.cancel = nil
	o.done = nil
	o.progress = 0
	o.stats = Stats{}
	o.model = ""
	o.lastErr = ""
	o.live = nil
}

func (o *Orchestrator) execute(ctx context.Context, runID string, texts []string, promptCtx correction.Context, model string, done chan struct{}) {
	defer close(done)

	corrected, err := o.fixer.Run(ctx, texts, promptCtx, model, func(processed int, snapshot []string) {
		o.recordProgress(runID, processed, snapshot)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			o.finishCancelled(runID)
			return
		}
		o.finishFailed(runID, err)
		return
	}

	// A cancel signaled while the last batch was in flight lands after the
	// fixer's loop checkpoint. Nothing may reach the store once cancelled.
	if ctx.Err() != nil {
		o.finishCancelled(runID)
		return
	}

	// Overrides win over whatever the run produced for their lines.
	final := make([]string, len(corrected))
	for i := range corrected {
		final[i] = o.ledger.Resolve(i, corrected[i])
	}

	if err := o.store.CommitTexts(context.Background(), final); err != nil {
		o.finishFailed(runID, fmt.Errorf("commit corrected texts: %w", err))
		return
	}

	correctedCount := 0
	for i := range final {
		if subtitle.HasChanged(texts[i], final[i]) {
			correctedCount++
		}
	}
	o.finishCompleted(runID, len(texts), correctedCount)
}

func (o *Orchestrator) recordProgress(runID string, processed int, snapshot []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	// Ticks from a cancelled or superseded run must not resurrect state.
	if o.status != StatusRunning || o.runID != runID {
		return
	}
	o.stats.ProcessedLines = processed
	o.progress = percent(processed, o.stats.TotalLines)
	o.live = snapshot
}

func (o *Orchestrator) finishCancelled(runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runID != runID {
		return
	}
	o.logger.Info("correction run cancelled", logging.String(logging.FieldRunID, runID))
	o.toIdleLocked()
}

func (o *Orchestrator) finishFailed(runID string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runID != runID {
		return
	}
	o.status = StatusFailed
	o.cancel = nil
	o.lastErr = err.Error()
	o.live = nil
	o.logger.Error("correction run failed",
		logging.String(logging.FieldRunID, runID),
		logging.Error(err))
}

func (o *Orchestrator) finishCompleted(runID string, total, correctedCount int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runID != runID {
		return
	}
	o.status = StatusCompleted
	o.cancel = nil
	o.progress = 100
	o.stats = Stats{TotalLines: total, ProcessedLines: total, CorrectedCount: correctedCount}
	o.live = nil
	o.logger.Info("correction run completed",
		logging.String(logging.FieldRunID, runID),
		logging.Int("corrected_count", correctedCount))
}

func percent(processed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(processed) / float64(total) * 100))
}
