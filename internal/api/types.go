package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Cue describes one subtitle line in a transport-friendly format.
type Cue struct {
	ID           int    `json:"id"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	Text         string `json:"text"`
	OriginalText string `json:"originalText"`
	Modified     bool   `json:"modified"`
	Confirmed    bool   `json:"confirmed"`
	Selected     bool   `json:"selected"`
}

// Context mirrors the correction prompt context.
type Context struct {
	SpeakerName      string `json:"speakerName,omitempty"`
	Topic            string `json:"topic,omitempty"`
	Keywords         string `json:"keywords,omitempty"`
	ExtraContext     string `json:"extraContext,omitempty"`
	RemoveFillers    bool   `json:"removeFillers"`
	FixStutters      bool   `json:"fixStutters"`
	FilterProfanity  bool   `json:"filterProfanity"`
	ReferenceURL     string `json:"referenceUrl,omitempty"`
	ReferenceContent string `json:"referenceContent,omitempty"`
}

// RunStats summarizes a correction run.
type RunStats struct {
	TotalLines     int `json:"totalLines"`
	ProcessedLines int `json:"processedLines"`
	CorrectedCount int `json:"correctedCount"`
}

// Run describes the run lifecycle state.
type Run struct {
	RunID    string   `json:"runId,omitempty"`
	Status   string   `json:"status"`
	Progress int      `json:"progress"`
	Stats    RunStats `json:"stats"`
	Model    string   `json:"model,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Session summarizes the loaded document.
type Session struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	CreatedAt  string  `json:"createdAt"`
	CueCount   int     `json:"cueCount"`
	ExportName string  `json:"exportName"`
	Context    Context `json:"context"`
}

// SessionResponse is the full session view returned by session endpoints.
type SessionResponse struct {
	Session Session  `json:"session"`
	Run     Run      `json:"run"`
	Stats   RunStats `json:"stats"`
}

// CueListResponse wraps a filtered cue listing.
type CueListResponse struct {
	Cues     []Cue  `json:"cues"`
	Filter   string `json:"filter"`
	Selected []int  `json:"selected,omitempty"`
}

// RunResponse wraps run state for run endpoints.
type RunResponse struct {
	Run Run `json:"run"`
}

// SelectionResponse reports the selection after a selection change.
type SelectionResponse struct {
	Selected []int `json:"selected"`
	Count    int   `json:"count"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool     `json:"running"`
	PID          int      `json:"pid"`
	Bind         string   `json:"bind"`
	LockFilePath string   `json:"lockFilePath,omitempty"`
	Session      *Session `json:"session,omitempty"`
	Run          *Run     `json:"run,omitempty"`
}

// CreateSessionRequest is the payload for uploading a subtitle document.
type CreateSessionRequest struct {
	Name    string  `json:"name"`
	Content string  `json:"content"`
	Context Context `json:"context"`
}

// StartRunRequest selects the model for a correction run.
type StartRunRequest struct {
	Model string `json:"model,omitempty"`
}

// EditCueRequest carries the replacement text for one cue.
type EditCueRequest struct {
	Text string `json:"text"`
}
