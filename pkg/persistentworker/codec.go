package persistentworker

import (
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from Bazel's worker_protocol.proto.
const (
	requestArgumentsField  protowire.Number = 1
	requestInputsField     protowire.Number = 2
	requestIDField         protowire.Number = 3
	requestCancelField     protowire.Number = 4
	requestVerbosityField  protowire.Number = 5
	requestSandboxDirField protowire.Number = 6

	inputPathField   protowire.Number = 1
	inputDigestField protowire.Number = 2

	responseExitCodeField     protowire.Number = 1
	responseOutputField       protowire.Number = 2
	responseRequestIDField    protowire.Number = 3
	responseWasCancelledField protowire.Number = 4
)

// MarshalWorkRequest encodes req in proto3 wire format. Zero-valued scalars are omitted.
func MarshalWorkRequest(req WorkRequest) ([]byte, error) {
	var b []byte
	for _, arg := range req.Arguments {
		if !utf8.ValidString(arg) {
			return nil, fmt.Errorf("failed to encode WorkRequest.arguments: %w", ErrInvalidUTF8)
		}
		b = protowire.AppendTag(b, requestArgumentsField, protowire.BytesType)
		b = protowire.AppendString(b, arg)
	}
	for _, in := range req.Inputs {
		inb, err := marshalInput(in)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, requestInputsField, protowire.BytesType)
		b = protowire.AppendBytes(b, inb)
	}
	b = appendInt32(b, requestIDField, req.RequestID)
	if req.Cancel {
		b = protowire.AppendTag(b, requestCancelField, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	b = appendInt32(b, requestVerbosityField, req.Verbosity)
	if req.SandboxDir != "" {
		if !utf8.ValidString(req.SandboxDir) {
			return nil, fmt.Errorf("failed to encode WorkRequest.sandbox_dir: %w", ErrInvalidUTF8)
		}
		b = protowire.AppendTag(b, requestSandboxDirField, protowire.BytesType)
		b = protowire.AppendString(b, req.SandboxDir)
	}
	return b, nil
}

func marshalInput(in Input) ([]byte, error) {
	var b []byte
	if in.Path != "" {
		if !utf8.ValidString(in.Path) {
			return nil, fmt.Errorf("failed to encode Input.path: %w", ErrInvalidUTF8)
		}
		b = protowire.AppendTag(b, inputPathField, protowire.BytesType)
		b = protowire.AppendString(b, in.Path)
	}
	if len(in.Digest) > 0 {
		b = protowire.AppendTag(b, inputDigestField, protowire.BytesType)
		b = protowire.AppendBytes(b, in.Digest)
	}
	return b, nil
}

// MarshalWorkResponse encodes resp in proto3 wire format.
// It fails if resp.Output is not valid UTF-8.
func MarshalWorkResponse(resp WorkResponse) ([]byte, error) {
	var b []byte
	b = appendInt32(b, responseExitCodeField, resp.ExitCode)
	if resp.Output != "" {
		if !utf8.ValidString(resp.Output) {
			return nil, fmt.Errorf("failed to encode WorkResponse.output: %w", ErrInvalidUTF8)
		}
		b = protowire.AppendTag(b, responseOutputField, protowire.BytesType)
		b = protowire.AppendString(b, resp.Output)
	}
	b = appendInt32(b, responseRequestIDField, resp.RequestID)
	if resp.WasCancelled {
		b = protowire.AppendTag(b, responseWasCancelledField, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	return b, nil
}

// appendInt32 encodes a non-zero int32 field. Negative values are sign-extended
// to 64 bits and take ten bytes, as protobuf requires.
func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

// UnmarshalWorkRequest decodes a WorkRequest payload. Unknown fields are skipped.
func UnmarshalWorkRequest(b []byte) (WorkRequest, error) {
	var req WorkRequest
	d := fieldDecoder{message: "WorkRequest", b: b}
	for d.next() {
		switch d.num {
		case requestArgumentsField:
			req.Arguments = append(req.Arguments, d.stringValue())
		case requestInputsField:
			raw := d.bytesValue()
			if d.err != nil {
				break
			}
			in, err := unmarshalInput(raw)
			if err != nil {
				return WorkRequest{}, err
			}
			req.Inputs = append(req.Inputs, in)
		case requestIDField:
			req.RequestID = d.int32Value()
		case requestCancelField:
			req.Cancel = d.boolValue()
		case requestVerbosityField:
			req.Verbosity = d.int32Value()
		case requestSandboxDirField:
			req.SandboxDir = d.stringValue()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return WorkRequest{}, d.err
	}
	return req, nil
}

func unmarshalInput(b []byte) (Input, error) {
	var in Input
	d := fieldDecoder{message: "Input", b: b}
	for d.next() {
		switch d.num {
		case inputPathField:
			in.Path = d.stringValue()
		case inputDigestField:
			in.Digest = append([]byte(nil), d.bytesValue()...)
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return Input{}, d.err
	}
	return in, nil
}

// UnmarshalWorkResponse decodes a WorkResponse payload. Unknown fields are skipped.
func UnmarshalWorkResponse(b []byte) (WorkResponse, error) {
	var resp WorkResponse
	d := fieldDecoder{message: "WorkResponse", b: b}
	for d.next() {
		switch d.num {
		case responseExitCodeField:
			resp.ExitCode = d.int32Value()
		case responseOutputField:
			resp.Output = d.stringValue()
		case responseRequestIDField:
			resp.RequestID = d.int32Value()
		case responseWasCancelledField:
			resp.WasCancelled = d.boolValue()
		default:
			d.skip()
		}
	}
	if d.err != nil {
		return WorkResponse{}, d.err
	}
	return resp, nil
}

// fieldDecoder walks the fields of one message. The first error stops iteration
// and is kept in err.
type fieldDecoder struct {
	message string
	b       []byte
	num     protowire.Number
	typ     protowire.Type
	err     error
}

func (d *fieldDecoder) fail(err error) {
	if d.err == nil {
		d.err = &DecodeError{Message: d.message, Err: err}
	}
}

func (d *fieldDecoder) next() bool {
	if d.err != nil || len(d.b) == 0 {
		return false
	}
	num, typ, n := protowire.ConsumeTag(d.b)
	if n < 0 {
		d.fail(protowire.ParseError(n))
		return false
	}
	d.num, d.typ = num, typ
	d.b = d.b[n:]
	return true
}

func (d *fieldDecoder) expect(typ protowire.Type) bool {
	if d.typ != typ {
		d.fail(fmt.Errorf("field %d has wire type %d, want %d", d.num, d.typ, typ))
		return false
	}
	return true
}

func (d *fieldDecoder) bytesValue() []byte {
	if !d.expect(protowire.BytesType) {
		return nil
	}
	v, n := protowire.ConsumeBytes(d.b)
	if n < 0 {
		d.fail(fmt.Errorf("field %d: %w", d.num, protowire.ParseError(n)))
		return nil
	}
	d.b = d.b[n:]
	return v
}

func (d *fieldDecoder) stringValue() string {
	v := d.bytesValue()
	if d.err != nil {
		return ""
	}
	if !utf8.Valid(v) {
		d.fail(fmt.Errorf("field %d: %w", d.num, ErrInvalidUTF8))
		return ""
	}
	return string(v)
}

func (d *fieldDecoder) varintValue() uint64 {
	if !d.expect(protowire.VarintType) {
		return 0
	}
	v, n := protowire.ConsumeVarint(d.b)
	if n < 0 {
		d.fail(fmt.Errorf("field %d: %w", d.num, protowire.ParseError(n)))
		return 0
	}
	d.b = d.b[n:]
	return v
}

func (d *fieldDecoder) int32Value() int32 {
	return int32(d.varintValue())
}

func (d *fieldDecoder) boolValue() bool {
	return protowire.DecodeBool(d.varintValue())
}

func (d *fieldDecoder) skip() {
	n := protowire.ConsumeFieldValue(d.num, d.typ, d.b)
	if n < 0 {
		d.fail(fmt.Errorf("field %d: %w", d.num, protowire.ParseError(n)))
		return
	}
	d.b = d.b[n:]
}
