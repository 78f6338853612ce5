package persistentworker

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
)

const maxConsecutiveEmptyReads = 100

// FrameReader splits a byte stream into varint length-delimited payloads.
//
// The length prefix is probed into a small fixed buffer. A probe read can pick up bytes
// past the end of a short message; those bytes stay in the probe and start the next
// message, so the reader never buffers more than the probe capacity beyond a message boundary.
type FrameReader struct {
	r          io.Reader
	maxMessage uint64

	// probe[:n] holds bytes read from r that are not yet part of a returned payload.
	probe []byte
	n     int
}

// NewFrameReader returns a reader with a probe capacity of maxPrefixLen bytes and
// a message size limit of maxMessage bytes. Non-positive values select the defaults
// MaxLengthPrefixLen and math.MaxInt32.
func NewFrameReader(r io.Reader, maxPrefixLen, maxMessage int) *FrameReader {
	if maxPrefixLen <= 0 {
		maxPrefixLen = MaxLengthPrefixLen
	}
	if maxMessage <= 0 {
		maxMessage = math.MaxInt32
	}
	return &FrameReader{
		r:          r,
		maxMessage: uint64(maxMessage),
		probe:      make([]byte, maxPrefixLen),
	}
}

// Next returns the next complete payload. It returns io.EOF only when the stream
// ends cleanly between messages. Every other failure is a *FramingError.
func (fr *FrameReader) Next() ([]byte, error) {
	length, prefixLen, err := fr.readLength()
	if err != nil {
		return nil, err
	}
	if length > fr.maxMessage {
		return nil, &FramingError{Err: fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrMessageTooLarge, length, fr.maxMessage)}
	}

	payload := make([]byte, length)
	buffered := fr.probe[prefixLen:fr.n]
	copied := copy(payload, buffered)
	// Bytes past this message belong to the next one.
	fr.n = copy(fr.probe, buffered[copied:])

	if _, err := io.ReadFull(fr.r, payload[copied:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &FramingError{Err: fmt.Errorf("reading %d byte payload: %w", length, err)}
	}
	return payload, nil
}

// readLength fills the probe until it holds a complete varint.
func (fr *FrameReader) readLength() (uint64, int, error) {
	empty := 0
	for {
		length, prefixLen, err := DecodeVarint(fr.probe[:fr.n], len(fr.probe))
		switch {
		case err == nil:
			return length, prefixLen, nil
		case errors.Is(err, ErrVarintTooLong):
			return 0, 0, &FramingError{Err: fmt.Errorf("%w: no terminator in %d bytes", ErrLengthPrefixTooLong, len(fr.probe))}
		}

		read, err := fr.r.Read(fr.probe[fr.n:])
		fr.n += read
		if err == nil {
			if read > 0 {
				empty = 0
				continue
			}
			empty++
			if empty >= maxConsecutiveEmptyReads {
				return 0, 0, &FramingError{Err: io.ErrNoProgress}
			}
			continue
		}
		if !errors.Is(err, io.EOF) {
			return 0, 0, &FramingError{Err: err}
		}
		// Bytes may arrive together with EOF.
		if read > 0 {
			if _, _, derr := DecodeVarint(fr.probe[:fr.n], len(fr.probe)); !errors.Is(derr, ErrVarintIncomplete) {
				continue
			}
		}
		if fr.n == 0 {
			return 0, 0, io.EOF
		}
		return 0, 0, &FramingError{Err: fmt.Errorf("stream ended after %d length prefix bytes: %w", fr.n, io.ErrUnexpectedEOF)}
	}
}

// FrameWriter writes varint length-delimited payloads and flushes after each one.
type FrameWriter struct {
	w *bufio.Writer
}

// NewFrameWriter returns a FrameWriter on top of w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: bufio.NewWriter(w)}
}

// WriteMessage writes the length prefix and payload as one unit and flushes.
func (fw *FrameWriter) WriteMessage(payload []byte) error {
	frame := make([]byte, 0, MaxLengthPrefixLen+len(payload))
	frame = AppendVarint(frame, uint64(len(payload)))
	frame = append(frame, payload...)
	if _, err := fw.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write %d byte message: %w", len(payload), err)
	}
	if err := fw.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush message: %w", err)
	}
	return nil
}
