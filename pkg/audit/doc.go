// Package audit persists a trail of document mutations and denied accesses.
// Events are queued on a buffered channel and written by a background worker
// so recording never blocks the request path.
package audit
