package session_test

import (
	"context"
	"errors"
	"testing"

	"sublime/internal/session"
	"sublime/internal/subtitle"
)

func newStore(t *testing.T) *session.Store {
	t.Helper()
	store, err := session.Open()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleCues() []subtitle.Cue {
	return []subtitle.Cue{
		{ID: 1, StartTime: "00:00:01,000", EndTime: "00:00:02,000", Text: "Helo wrold", OriginalText: "Helo wrold"},
		{ID: 2, StartTime: "00:00:03,000", EndTime: "00:00:04,000", Text: "Second", OriginalText: "Second"},
		{ID: 3, StartTime: "00:00:05,000", EndTime: "00:00:06,000", Text: "Third", OriginalText: "Third"},
	}
}

func TestLoadAndList(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Load(ctx, sampleCues()); err != nil {
		t.Fatalf("load cues: %v", err)
	}
	cues, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list cues: %v", err)
	}
	if len(cues) != 3 {
		t.Fatalf("expected 3 cues, got %d", len(cues))
	}
	if cues[0].ID != 1 || cues[2].ID != 3 {
		t.Fatalf("cues out of order: %+v", cues)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count cues: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}

func TestLoadReplacesExistingCues(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Load(ctx, sampleCues()); err != nil {
		t.Fatalf("first load: %v", err)
	}
	replacement := []subtitle.Cue{{ID: 9, StartTime: "00:00:01,000", EndTime: "00:00:02,000", Text: "Only", OriginalText: "Only"}}
	if err := store.Load(ctx, replacement); err != nil {
		t.Fatalf("second load: %v", err)
	}
	cues, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list cues: %v", err)
	}
	if len(cues) != 1 || cues[0].ID != 9 {
		t.Fatalf("expected replacement cues, got %+v", cues)
	}
}

func TestSetTextAndRevert(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Load(ctx, sampleCues()); err != nil {
		t.Fatalf("load cues: %v", err)
	}
	if err := store.SetText(ctx, 1, "Hello world", true); err != nil {
		t.Fatalf("set text: %v", err)
	}
	cue, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get cue: %v", err)
	}
	if cue.Text != "Hello world" || !cue.Confirmed {
		t.Fatalf("unexpected cue after edit: %+v", cue)
	}
	if cue.OriginalText != "Helo wrold" {
		t.Fatalf("original text mutated: %q", cue.OriginalText)
	}

	if err := store.Revert(ctx, 1); err != nil {
		t.Fatalf("revert cue: %v", err)
	}
	cue, err = store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get cue: %v", err)
	}
	if cue.Text != "Helo wrold" || cue.Confirmed {
		t.Fatalf("unexpected cue after revert: %+v", cue)
	}
}

func TestSetTextUnknownCue(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Load(ctx, sampleCues()); err != nil {
		t.Fatalf("load cues: %v", err)
	}
	if err := store.SetText(ctx, 42, "ghost", false); !errors.Is(err, session.ErrCueNotFound) {
		t.Fatalf("expected ErrCueNotFound, got %v", err)
	}
}

func TestCommitTextsUpdatesAllCues(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Load(ctx, sampleCues()); err != nil {
		t.Fatalf("load cues: %v", err)
	}
	if err := store.CommitTexts(ctx, []string{"Hello world", "Second", "Third"}); err != nil {
		t.Fatalf("commit texts: %v", err)
	}
	texts, err := store.Texts(ctx)
	if err != nil {
		t.Fatalf("snapshot texts: %v", err)
	}
	if texts[0] != "Hello world" || texts[1] != "Second" || texts[2] != "Third" {
		t.Fatalf("unexpected texts after commit: %v", texts)
	}
}

func TestCommitTextsClearsConfirmations(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Load(ctx, sampleCues()); err != nil {
		t.Fatalf("load cues: %v", err)
	}
	if err := store.SetText(ctx, 1, "Hello world", true); err != nil {
		t.Fatalf("set text: %v", err)
	}
	if err := store.CommitTexts(ctx, []string{"Hello world", "SECOND", "Third"}); err != nil {
		t.Fatalf("commit texts: %v", err)
	}
	cues, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list cues: %v", err)
	}
	if cues[1].Text != "SECOND" {
		t.Fatalf("unexpected text after commit: %+v", cues[1])
	}
	for _, cue := range cues {
		if cue.Confirmed {
			t.Fatalf("cue %d still confirmed after commit: %+v", cue.ID, cue)
		}
	}
}

func TestCommitTextsRejectsLengthMismatch(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Load(ctx, sampleCues()); err != nil {
		t.Fatalf("load cues: %v", err)
	}
	err := store.CommitTexts(ctx, []string{"only one"})
	if !errors.Is(err, session.ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
	texts, err := store.Texts(ctx)
	if err != nil {
		t.Fatalf("snapshot texts: %v", err)
	}
	if texts[0] != "Helo wrold" {
		t.Fatalf("store mutated by rejected commit: %v", texts)
	}
}

func TestRevertAll(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Load(ctx, sampleCues()); err != nil {
		t.Fatalf("load cues: %v", err)
	}
	if err := store.SetText(ctx, 1, "edited", true); err != nil {
		t.Fatalf("set text: %v", err)
	}
	if err := store.SetText(ctx, 2, "also edited", true); err != nil {
		t.Fatalf("set text: %v", err)
	}
	if err := store.RevertAll(ctx); err != nil {
		t.Fatalf("revert all: %v", err)
	}
	cues, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list cues: %v", err)
	}
	for _, cue := range cues {
		if cue.Text != cue.OriginalText || cue.Confirmed {
			t.Fatalf("cue %d not fully reverted: %+v", cue.ID, cue)
		}
	}
}
