package subtitle

import "strings"

// Cue is one timed subtitle entry.
type Cue struct {
	// ID is the sequence number from the source file, unique and order-preserving.
	ID int `json:"id"`
	// StartTime and EndTime are kept as opaque formatted timestamps.
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	// Text is the current display/export text.
	Text string `json:"text"`
	// OriginalText is the text as first parsed. Set once at parse time,
	// never mutated; it is the diff baseline and the revert target.
	OriginalText string `json:"original_text"`
	// Confirmed is true once a human has explicitly approved a correction.
	Confirmed bool `json:"confirmed"`
}

// Modified reports whether the cue's text differs from its original.
func (c Cue) Modified() bool {
	return HasChanged(c.OriginalText, c.Text)
}

// HasChanged reports whether two texts differ after trimming surrounding
// whitespace. This is the sole diff rule for modified/unmodified
// classification and change counting.
func HasChanged(original, current string) bool {
	return strings.TrimSpace(original) != strings.TrimSpace(current)
}
