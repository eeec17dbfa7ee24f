package khqr

import (
	"errors"
	"fmt"
)

// FieldTooLongError reports an attribute exceeding its length ceiling. No
// part of the payload is constructed when this is returned.
type FieldTooLongError struct {
	Field  string
	Length int
	Max    int
}

func (e *FieldTooLongError) Error() string {
	return fmt.Sprintf("khqr: %s is %d characters, maximum %d", e.Field, e.Length, e.Max)
}

var (
	// ErrBadChecksum is returned by Decode when the trailing CRC field does
	// not match the bytes preceding it.
	ErrBadChecksum = errors.New("khqr: checksum mismatch")

	// ErrMalformed is returned by Decode for payloads that do not parse as a
	// tag-length-value sequence.
	ErrMalformed = errors.New("khqr: malformed payload")
)
