// Package api defines the transport-friendly payload types exchanged over
// the review HTTP API, plus conversions from the internal domain types.
package api
