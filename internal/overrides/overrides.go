// Package overrides implements the ledger of user decisions recorded while
// a correction run is in flight. An override pins a line to the user's
// chosen text and always wins over whatever the run produces for that line.
package overrides

import "sync"

// Ledger records user-chosen texts keyed by line index. Entries accumulate
// for the lifetime of a run; there is no per-entry removal, only Clear.
// Safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	entries map[int]string
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[int]string)}
}

// Set records the user's text for a line index. A later Set for the same
// index replaces the earlier one.
func (l *Ledger) Set(index int, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[index] = text
}

// Resolve returns the override for index if one exists, else fallback.
func (l *Ledger) Resolve(index int, fallback string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if text, ok := l.entries[index]; ok {
		return text
	}
	return fallback
}

// Has reports whether an override exists for index.
func (l *Ledger) Has(index int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[index]
	return ok
}

// Len returns the number of recorded overrides.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear drops every recorded override.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[int]string)
}
