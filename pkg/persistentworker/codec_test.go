package persistentworker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalWorkRequestWireFormat(t *testing.T) {
	req := WorkRequest{
		Arguments: []string{"--version"},
		Inputs:    []Input{{Path: "a", Digest: []byte{1, 2}}},
		RequestID: 7,
	}
	got, err := MarshalWorkRequest(req)
	require.NoError(t, err)

	want := []byte{0x0a, 0x09}
	want = append(want, "--version"...)
	want = append(want, 0x12, 0x07, 0x0a, 0x01, 'a', 0x12, 0x02, 0x01, 0x02)
	want = append(want, 0x18, 0x07)
	assert.Equal(t, want, got)
}

func TestMarshalWorkResponseWireFormat(t *testing.T) {
	got, err := MarshalWorkResponse(WorkResponse{ExitCode: 0, Output: "v1.0", RequestID: 7})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x04, 'v', '1', '.', '0', 0x18, 0x07}, got)

	got, err = MarshalWorkResponse(WorkResponse{ExitCode: 1, RequestID: -1})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x08, 0x01,
		0x18, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01,
	}, got)
}

func TestWorkRequestRoundTrip(t *testing.T) {
	tests := []WorkRequest{
		{},
		{RequestID: 1},
		{RequestID: -2147483648},
		{RequestID: 2147483647, Arguments: []string{""}},
		{
			Arguments: []string{"--crate-name", "foo", "src/lib.rs", "--cfg", `feature="std"`, "ünïcødé"},
			Inputs: []Input{
				{Path: "src/lib.rs", Digest: []byte("0123456789abcdef0123456789abcdef")},
				{Path: "no/digest"},
				{Digest: []byte{0x00, 0xff}},
			},
			RequestID: -42,
		},
		{
			Arguments:  []string{"x"},
			RequestID:  3,
			Cancel:     true,
			Verbosity:  10,
			SandboxDir: "sandbox/3",
		},
	}

	for _, req := range tests {
		b, err := MarshalWorkRequest(req)
		require.NoError(t, err)
		got, err := UnmarshalWorkRequest(b)
		require.NoError(t, err)
		assert.Equal(t, req, got)
	}
}

func TestWorkResponseRoundTrip(t *testing.T) {
	tests := []WorkResponse{
		{},
		{ExitCode: -1, Output: "error[E0425]: cannot find value `x`\n", RequestID: 9},
		{ExitCode: 137, RequestID: -9, WasCancelled: true},
	}
	for _, resp := range tests {
		b, err := MarshalWorkResponse(resp)
		require.NoError(t, err)
		got, err := UnmarshalWorkResponse(b)
		require.NoError(t, err)
		assert.Equal(t, resp, got)
	}
}

func TestUnmarshalWorkRequestSkipsUnknownFields(t *testing.T) {
	b, err := MarshalWorkRequest(WorkRequest{Arguments: []string{"a"}, RequestID: 5})
	require.NoError(t, err)
	// field 15, varint 1; field 16, bytes "zz"; field 17, fixed32
	b = append(b, 0x78, 0x01, 0x82, 0x01, 0x02, 'z', 'z', 0x8d, 0x01, 1, 2, 3, 4)

	got, err := UnmarshalWorkRequest(b)
	require.NoError(t, err)
	assert.Equal(t, WorkRequest{Arguments: []string{"a"}, RequestID: 5}, got)
}

func TestUnmarshalWorkRequestErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		wantErr error
	}{
		{name: "truncated string", payload: []byte{0x0a, 0x05, 'a', 'b'}},
		{name: "truncated tag", payload: []byte{0x80}},
		{name: "wrong wire type for request_id", payload: []byte{0x1a, 0x01, 'x'}},
		{name: "wrong wire type for arguments", payload: []byte{0x08, 0x01}},
		{name: "invalid utf-8 argument", payload: []byte{0x0a, 0x01, 0xff}, wantErr: ErrInvalidUTF8},
		{name: "invalid utf-8 input path", payload: []byte{0x12, 0x03, 0x0a, 0x01, 0xfe}, wantErr: ErrInvalidUTF8},
		{name: "truncated input", payload: []byte{0x12, 0x03, 0x0a, 0x05, 'a'}},
		{name: "field number zero", payload: []byte{0x00, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalWorkRequest(tt.payload)
			require.Error(t, err)
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestMarshalRejectsInvalidUTF8(t *testing.T) {
	_, err := MarshalWorkResponse(WorkResponse{Output: "bad \xff output"})
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	_, err = MarshalWorkRequest(WorkRequest{Arguments: []string{"\xc3"}})
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestInputDigestString(t *testing.T) {
	raw := make([]byte, 32)
	raw[31] = 0xab
	hexDigest := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	assert.Equal(t, "", Input{}.DigestString())
	assert.Equal(t, "sha256:"+"00000000000000000000000000000000000000000000000000000000000000ab", Input{Digest: raw}.DigestString())
	assert.Equal(t, "sha256:"+hexDigest, Input{Digest: []byte(hexDigest)}.DigestString())
	assert.Equal(t, "0102", Input{Digest: []byte{1, 2}}.DigestString())
}
