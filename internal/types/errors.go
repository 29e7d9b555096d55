package types

import (
	"errors"
	"fmt"
)

// Kind classifies a deploy failure. Each kind maps to a distinct process
// exit code; the mapping happens only at the process boundary in main.
type Kind int

const (
	KindUnknown Kind = iota
	KindUsage
	KindCopyFailed
	KindMkdirFailed
	KindUnzipFailed
	KindRemoveFailed
	KindSyncFailed
	KindArtifactNotFound
	KindAmbiguousArtifact
)

// ExitCode returns the process exit status for the kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindUsage:
		return 1
	case KindCopyFailed:
		return 2
	case KindMkdirFailed:
		return 3
	case KindUnzipFailed:
		return 4
	case KindRemoveFailed:
		return 5
	case KindSyncFailed:
		return 6
	case KindArtifactNotFound:
		return 7
	case KindAmbiguousArtifact:
		return 8
	}
	return 1
}

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "NotEnoughArguments"
	case KindCopyFailed:
		return "CopyFailed"
	case KindMkdirFailed:
		return "MkdirFailed"
	case KindUnzipFailed:
		return "UnzipFailed"
	case KindRemoveFailed:
		return "RemoveFailed"
	case KindSyncFailed:
		return "SyncFailed"
	case KindArtifactNotFound:
		return "ArtifactNotFound"
	case KindAmbiguousArtifact:
		return "AmbiguousArtifact"
	}
	return "Unknown"
}

// Error is a failure tagged with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a kind-tagged error from a format string. Use %w to wrap an
// underlying cause.
func E(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind carried by err, or KindUnknown if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
