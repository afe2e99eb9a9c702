// Package logutil provides small logging helpers shared across packages.
package logutil

import (
	"io"
	"log/slog"
)

// NoopIfNil returns a logger that discards everything when l is nil.
// Lets constructors accept an optional logger without nil checks at
// every call site.
func NoopIfNil(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
