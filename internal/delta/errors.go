package delta

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedLogEntry    = errors.New("malformed log entry")
	ErrCheckpointUnreadable = errors.New("checkpoint unreadable")
	ErrVersionNotFound      = errors.New("version not found")
	ErrTableEmpty           = errors.New("table is empty")
	ErrNonContiguousLog     = errors.New("non-contiguous log")
	ErrUnsupportedProtocol  = errors.New("unsupported protocol")
	ErrStorageUnavailable   = errors.New("storage unavailable")
)

// LogError carries the location of a failure. Kind is one of the sentinel errors above.
type LogError struct {
	Kind    error
	Path    string
	Version int64
	Line    int
	Err     error
}

func (e *LogError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Path != "" {
		fmt.Fprintf(&b, ": %s", e.Path)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
	}
	if e.Version >= 0 {
		fmt.Fprintf(&b, " (version %d)", e.Version)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *LogError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newLogError(kind error, path string, version int64, err error) *LogError {
	return &LogError{Kind: kind, Path: path, Version: version, Err: err}
}

// UnsupportedProtocolError reports a protocol that requires more than the reader implements.
type UnsupportedProtocolError struct {
	Protocol         Protocol
	MaxReaderVersion int
	MissingFeatures  []string
}

func (e *UnsupportedProtocolError) Error() string {
	if e.Protocol.MinReaderVersion > e.MaxReaderVersion {
		return fmt.Sprintf("unsupported protocol: table requires reader version %d, supported up to %d",
			e.Protocol.MinReaderVersion, e.MaxReaderVersion)
	}
	return fmt.Sprintf("unsupported protocol: reader features %v are not supported", e.MissingFeatures)
}

func (e *UnsupportedProtocolError) Is(target error) bool {
	return target == ErrUnsupportedProtocol
}

// Kind returns the sentinel that classifies err, or nil for foreign errors.
// The outermost classification wins.
func Kind(err error) error {
	var le *LogError
	var up *UnsupportedProtocolError
	switch {
	case errors.As(err, &up):
		return ErrUnsupportedProtocol
	case errors.As(err, &le):
		return le.Kind
	}
	return nil
}
