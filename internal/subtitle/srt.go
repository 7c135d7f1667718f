package subtitle

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoCues indicates that a non-empty document yielded zero valid cues.
// Callers must surface this distinctly from a genuinely empty file.
var ErrNoCues = errors.New("no valid subtitle cues found")

var timecodePattern = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}[,.]\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2}[,.]\d{3})`)

// ParseSRT parses raw SRT content into cues. Parsing is best-effort per
// block: a block missing a numeric id, with fewer than three lines, or with
// an unparseable timecode line is skipped silently. A non-empty document
// that yields zero cues returns ErrNoCues.
func ParseSRT(content string) ([]Cue, error) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	if strings.TrimSpace(normalized) == "" {
		return nil, nil
	}

	blocks := strings.Split(normalized, "\n\n")
	cues := make([]Cue, 0, len(blocks))
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			continue
		}
		match := timecodePattern.FindStringSubmatch(lines[1])
		if match == nil {
			continue
		}
		text := strings.Join(lines[2:], "\n")
		cues = append(cues, Cue{
			ID:           id,
			StartTime:    match[1],
			EndTime:      match[2],
			Text:         text,
			OriginalText: text,
		})
	}

	if len(cues) == 0 {
		return nil, ErrNoCues
	}
	return cues, nil
}

// BuildSRT serializes cues back into SRT text, the syntactic inverse of
// ParseSRT. Embedded blank lines inside cue text are not escaped.
func BuildSRT(cues []Cue) string {
	blocks := make([]string, 0, len(cues))
	for _, cue := range cues {
		blocks = append(blocks, fmt.Sprintf("%d\n%s --> %s\n%s", cue.ID, cue.StartTime, cue.EndTime, cue.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// ParseTimestamp converts an SRT timestamp (HH:MM:SS,mmm or HH:MM:SS.mmm)
// into seconds.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}

// Duration returns the covered seconds between the first cue start and the
// last cue end, or zero when no timestamps parse.
func Duration(cues []Cue) float64 {
	if len(cues) == 0 {
		return 0
	}
	start, errS := ParseTimestamp(cues[0].StartTime)
	end, errE := ParseTimestamp(cues[len(cues)-1].EndTime)
	if errS != nil || errE != nil || end < start {
		return 0
	}
	return end - start
}
