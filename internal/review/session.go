// Package review implements the human review session over a corrected
// subtitle document: filtered cue views, per-line edits and discards,
// selection for batch actions, and SRT export.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sublime/internal/correction"
	"sublime/internal/logging"
	"sublime/internal/overrides"
	"sublime/internal/run"
	"sublime/internal/session"
	"sublime/internal/subtitle"
)

// Filter selects which cues a listing returns.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterModified   Filter = "modified"
	FilterUnmodified Filter = "unmodified"
)

// ErrInvalidFilter indicates an unknown filter name.
var ErrInvalidFilter = errors.New("invalid filter")

// ParseFilter maps a filter name to a Filter. Empty means all.
func ParseFilter(value string) (Filter, error) {
	switch Filter(value) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterModified:
		return FilterModified, nil
	case FilterUnmodified:
		return FilterUnmodified, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFilter, value)
	}
}

// Session is one loaded subtitle document under review.
type Session struct {
	id        string
	name      string
	createdAt time.Time

	store  *session.Store
	ledger *overrides.Ledger
	orch   *run.Orchestrator
	logger *slog.Logger

	mu        sync.Mutex
	promptCtx correction.Context
	selection map[int]struct{}
}

// NewSession parses content as SRT and builds a ready session around it.
// name is the upload's file name, used to derive the export name.
func NewSession(fixer *correction.Fixer, logger *slog.Logger, name, content string, promptCtx correction.Context) (*Session, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	cues, err := subtitle.ParseSRT(content)
	if err != nil {
		return nil, fmt.Errorf("parse subtitles: %w", err)
	}
	if len(cues) == 0 {
		return nil, subtitle.ErrNoCues
	}

	store, err := session.Open()
	if err != nil {
		return nil, fmt.Errorf("open cue store: %w", err)
	}
	if err := store.Load(context.Background(), cues); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load cues: %w", err)
	}

	ledger := overrides.NewLedger()
	sessionLogger := logging.NewComponentLogger(logger, "review")
	s := &Session{
		id:        uuid.NewString(),
		name:      name,
		createdAt: time.Now().UTC(),
		store:     store,
		ledger:    ledger,
		orch:      run.NewOrchestrator(store, fixer, ledger, logger),
		logger:    sessionLogger,
		promptCtx: promptCtx,
		selection: make(map[int]struct{}),
	}
	sessionLogger.Info("session created",
		logging.String(logging.FieldSessionID, s.id),
		logging.String("name", name),
		logging.Int("cues", len(cues)))
	return s, nil
}

// Close cancels any active run and releases the cue store.
func (s *Session) Close() error {
	s.orch.Cancel()
	s.orch.Wait()
	return s.store.Close()
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Name returns the uploaded file name.
func (s *Session) Name() string { return s.name }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// SetContext replaces the prompt context used by subsequent runs.
func (s *Session) SetContext(promptCtx correction.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promptCtx = promptCtx
}

// Context returns the prompt context for the next run.
func (s *Session) Context() correction.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promptCtx
}

// Cues returns the display view of the document filtered by filter. While
// a run is active the view projects live corrections and overrides.
func (s *Session) Cues(ctx context.Context, filter Filter) ([]subtitle.Cue, error) {
	cues, err := s.orch.ProjectedCues(ctx)
	if err != nil {
		return nil, err
	}
	if filter == "" || filter == FilterAll {
		return cues, nil
	}
	filtered := make([]subtitle.Cue, 0, len(cues))
	for _, cue := range cues {
		modified := cue.Modified()
		if (filter == FilterModified && modified) || (filter == FilterUnmodified && !modified) {
			filtered = append(filtered, cue)
		}
	}
	return filtered, nil
}

// StartRun begins a correction run using the session's prompt context.
// An empty model uses the configured default.
func (s *Session) StartRun(ctx context.Context, model string) (string, error) {
	return s.orch.Start(ctx, s.Context(), model)
}

// CancelRun aborts the active run, reporting whether one was active.
func (s *Session) CancelRun() bool {
	return s.orch.Cancel()
}

// WaitRun blocks until the active run finishes.
func (s *Session) WaitRun() {
	s.orch.Wait()
}

// RunSnapshot returns the orchestrator state for status displays.
func (s *Session) RunSnapshot() run.Snapshot {
	return s.orch.Snapshot()
}

// Edit replaces the text of one cue. While a run is active the edit is
// recorded as an override and wins over the run's output for that line;
// otherwise it is applied to the store and the cue is marked confirmed.
func (s *Session) Edit(ctx context.Context, id int, text string) error {
	if s.orch.Running() {
		position, err := s.store.Position(ctx, id)
		if err != nil {
			return err
		}
		s.ledger.Set(position, text)
		return nil
	}
	return s.store.SetText(ctx, id, text, true)
}

// Discard rejects the correction for one cue, restoring its original text.
// While a run is active the rejection is recorded as an override so the
// final merge keeps the original.
func (s *Session) Discard(ctx context.Context, id int) error {
	if s.orch.Running() {
		cue, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		position, err := s.store.Position(ctx, id)
		if err != nil {
			return err
		}
		s.ledger.Set(position, cue.OriginalText)
		return nil
	}
	return s.store.Revert(ctx, id)
}

// DiscardAll restores every cue to its original text. Rejected while a run
// is active.
func (s *Session) DiscardAll(ctx context.Context) error {
	if s.orch.Running() {
		return run.ErrRunActive
	}
	if err := s.store.RevertAll(ctx); err != nil {
		return err
	}
	s.ledger.Clear()
	s.ClearSelection()
	return nil
}

// ToggleSelect flips the selection state of one cue.
func (s *Session) ToggleSelect(ctx context.Context, id int) (bool, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selection[id]; ok {
		delete(s.selection, id)
		return false, nil
	}
	s.selection[id] = struct{}{}
	return true, nil
}

// SelectAll toggles selection over the filtered view: if every visible cue
// is already selected they are deselected, otherwise the visible cues are
// added to the selection.
func (s *Session) SelectAll(ctx context.Context, filter Filter) (int, error) {
	cues, err := s.Cues(ctx, filter)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	allSelected := len(cues) > 0
	for _, cue := range cues {
		if _, ok := s.selection[cue.ID]; !ok {
			allSelected = false
			break
		}
	}
	if allSelected {
		for _, cue := range cues {
			delete(s.selection, cue.ID)
		}
	} else {
		for _, cue := range cues {
			s.selection[cue.ID] = struct{}{}
		}
	}
	return len(s.selection), nil
}

// Selected returns the selected cue ids in ascending order.
func (s *Session) Selected() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.selection))
	for id := range s.selection {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ClearSelection drops the selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = make(map[int]struct{})
}

// DiscardSelected discards every selected cue and clears the selection.
func (s *Session) DiscardSelected(ctx context.Context) (int, error) {
	ids := s.Selected()
	for _, id := range ids {
		if err := s.Discard(ctx, id); err != nil {
			return 0, err
		}
	}
	s.ClearSelection()
	return len(ids), nil
}

// ExportName returns the suggested file name for exported output.
func (s *Session) ExportName() string {
	name := s.name
	if name == "" {
		name = "subtitles.srt"
	}
	return "corrected_" + name
}

// ExportSRT serializes the current stored document as SRT text.
func (s *Session) ExportSRT(ctx context.Context) (string, error) {
	cues, err := s.store.List(ctx)
	if err != nil {
		return "", err
	}
	return subtitle.BuildSRT(cues), nil
}

// Stats returns the counts shown in the review header.
func (s *Session) Stats(ctx context.Context) (run.Stats, error) {
	snap := s.orch.Snapshot()
	if snap.Status == run.StatusRunning {
		return snap.Stats, nil
	}
	cues, err := s.store.List(ctx)
	if err != nil {
		return run.Stats{}, err
	}
	stats := run.Stats{TotalLines: len(cues), ProcessedLines: snap.Stats.ProcessedLines}
	for _, cue := range cues {
		if cue.Modified() {
			stats.CorrectedCount++
		}
	}
	return stats, nil
}
