package api

import (
	"time"

	"sublime/internal/correction"
	"sublime/internal/run"
	"sublime/internal/subtitle"
)

// FromCue converts a domain cue to its API view.
func FromCue(cue subtitle.Cue, selected bool) Cue {
	return Cue{
		ID:           cue.ID,
		StartTime:    cue.StartTime,
		EndTime:      cue.EndTime,
		Text:         cue.Text,
		OriginalText: cue.OriginalText,
		Modified:     cue.Modified(),
		Confirmed:    cue.Confirmed,
		Selected:     selected,
	}
}

// FromCues converts a cue slice, marking the selected ids.
func FromCues(cues []subtitle.Cue, selectedIDs []int) []Cue {
	selected := make(map[int]struct{}, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = struct{}{}
	}
	out := make([]Cue, 0, len(cues))
	for _, cue := range cues {
		_, isSelected := selected[cue.ID]
		out = append(out, FromCue(cue, isSelected))
	}
	return out
}

// FromSnapshot converts an orchestrator snapshot to its API view.
func FromSnapshot(snap run.Snapshot) Run {
	return Run{
		RunID:    snap.RunID,
		Status:   string(snap.Status),
		Progress: snap.Progress,
		Stats:    FromStats(snap.Stats),
		Model:    snap.Model,
		Error:    snap.Error,
	}
}

// FromStats converts run stats to their API view.
func FromStats(stats run.Stats) RunStats {
	return RunStats{
		TotalLines:     stats.TotalLines,
		ProcessedLines: stats.ProcessedLines,
		CorrectedCount: stats.CorrectedCount,
	}
}

// FromContext converts a prompt context to its API view.
func FromContext(c correction.Context) Context {
	return Context{
		SpeakerName:      c.SpeakerName,
		Topic:            c.Topic,
		Keywords:         c.Keywords,
		ExtraContext:     c.ExtraContext,
		RemoveFillers:    c.RemoveFillers,
		FixStutters:      c.FixStutters,
		FilterProfanity:  c.FilterProfanity,
		ReferenceURL:     c.ReferenceURL,
		ReferenceContent: c.ReferenceContent,
	}
}

// ToContext converts an API context to the domain prompt context.
func ToContext(c Context) correction.Context {
	return correction.Context{
		SpeakerName:      c.SpeakerName,
		Topic:            c.Topic,
		Keywords:         c.Keywords,
		ExtraContext:     c.ExtraContext,
		RemoveFillers:    c.RemoveFillers,
		FixStutters:      c.FixStutters,
		FilterProfanity:  c.FilterProfanity,
		ReferenceURL:     c.ReferenceURL,
		ReferenceContent: c.ReferenceContent,
	}
}

// FormatTime renders a timestamp for API payloads.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
