package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSource marks an absent input file. No partial state is
	// created before it is returned.
	ErrMissingSource = errors.New("source file missing")

	// ErrMalformedInput marks a line that fails a required pattern.
	// Processing of the file aborts and its accumulator is discarded, so
	// a retry after a fix cannot double count.
	ErrMalformedInput = errors.New("malformed input")

	// ErrCheckpointCorrupt marks unreadable persisted checkpoint state.
	// Callers must abort rather than silently restart from zero: the
	// downstream player upserts are additive, not idempotent.
	ErrCheckpointCorrupt = errors.New("checkpoint state unreadable")
)

func malformed(path string, line int, format string, args ...any) error {
	return fmt.Errorf("%s:%d: %s: %w", path, line, fmt.Sprintf(format, args...), ErrMalformedInput)
}
