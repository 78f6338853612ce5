package persistentworker

import (
	"errors"
	"fmt"
)

var (
	ErrVarintIncomplete    = errors.New("varint: incomplete")
	ErrVarintTooLong       = errors.New("varint: too long")
	ErrLengthPrefixTooLong = errors.New("frame: length prefix too long")
	ErrMessageTooLarge     = errors.New("frame: message too large")
	ErrInvalidUTF8         = errors.New("string field is not valid UTF-8")
)

// A FramingError means the byte stream can no longer be split into messages.
// The session cannot recover from it.
type FramingError struct {
	Err error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing error: %v", e.Err)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// A DecodeError means a correctly framed payload did not decode as the expected message.
type DecodeError struct {
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Message, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
