// Package daemon hosts the long-running review service: it owns the single
// active session, guards against concurrent instances with a lock file, and
// exposes the HTTP API the review frontend talks to.
package daemon
