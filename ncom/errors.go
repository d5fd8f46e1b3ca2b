package ncom

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a ProtocolError.
type Kind int

const (
	LengthMismatch Kind = iota + 1
	Truncated
	Misaligned
	BadSync
	BadChecksum
)

func (k Kind) String() string {
	switch k {
	case LengthMismatch:
		return "length mismatch"
	case Truncated:
		return "truncated"
	case Misaligned:
		return "misaligned"
	case BadSync:
		return "bad sync"
	case BadChecksum:
		return "bad checksum"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ProtocolError reports a frame that could not be decoded. A frame producing
// a ProtocolError contributes nothing downstream.
type ProtocolError struct {
	Kind Kind

	// Expected and Actual are byte counts for LengthMismatch, Truncated and
	// Misaligned, and byte values for BadSync and BadChecksum.
	Expected int
	Actual   int

	Offset int
	Field  string

	// Length of the offending payload and its channel byte, -1 when the
	// payload is too short to carry one.
	Length  int
	Channel int
}

func (e *ProtocolError) Error() string {
	switch e.Kind {
	case LengthMismatch:
		return fmt.Sprintf("ncom: length mismatch: expected %d bytes, got %d", e.Expected, e.Actual)
	case Truncated:
		return fmt.Sprintf("ncom: truncated reading %s at offset %d: need %d bytes, have %d",
			e.Field, e.Offset, e.Expected, e.Actual)
	case Misaligned:
		return fmt.Sprintf("ncom: cursor ended at %d, expected %d", e.Actual, e.Expected)
	case BadSync:
		return fmt.Sprintf("ncom: bad sync byte 0x%02X, expected 0x%02X", e.Actual, e.Expected)
	case BadChecksum:
		return fmt.Sprintf("ncom: %s mismatch at offset %d: frame has 0x%02X, computed 0x%02X",
			e.Field, e.Offset, e.Actual, e.Expected)
	}
	return "ncom: " + e.Kind.String()
}

// IsKind reports whether err is, or wraps, a ProtocolError of the given kind.
func IsKind(err error, kind Kind) bool {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return perr.Kind == kind
	}
	return false
}

// CheckLength rejects any payload size other than FrameLength.
func CheckLength(n int) error {
	if n == FrameLength {
		return nil
	}
	return &ProtocolError{
		Kind:     LengthMismatch,
		Expected: FrameLength,
		Actual:   n,
		Length:   n,
		Channel:  -1,
	}
}
