// Package session provides the cue store backing a loaded subtitle
// document. The store lives for one session and keeps cues in an
// in-memory SQLite database so reads, edits, and run commits share one
// transactional view.
package session
