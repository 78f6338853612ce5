package persistentworker

import (
	"errors"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxLengthPrefixLen is the longest varint needed to encode a 32-bit message length.
const MaxLengthPrefixLen = 5

// DecodeVarint decodes an unsigned LEB128 varint from the start of b, looking at no
// more than maxLen bytes. It returns the value and the number of bytes consumed.
//
// ErrVarintIncomplete means b ends before the varint does and more input may complete it.
// ErrVarintTooLong means the first maxLen bytes all carry the continuation bit.
func DecodeVarint(b []byte, maxLen int) (uint64, int, error) {
	if maxLen <= 0 || maxLen > protowire.SizeVarint(^uint64(0)) {
		maxLen = protowire.SizeVarint(^uint64(0))
	}
	window := b
	if len(window) > maxLen {
		window = window[:maxLen]
	}
	v, n := protowire.ConsumeVarint(window)
	if n >= 0 {
		return v, n, nil
	}
	if errors.Is(protowire.ParseError(n), io.ErrUnexpectedEOF) && len(window) < maxLen {
		return 0, 0, ErrVarintIncomplete
	}
	return 0, 0, ErrVarintTooLong
}

// AppendVarint appends the varint encoding of v to b.
func AppendVarint(b []byte, v uint64) []byte {
	return protowire.AppendVarint(b, v)
}
