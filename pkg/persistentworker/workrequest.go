package persistentworker

import (
	"encoding/hex"

	"github.com/opencontainers/go-digest"
)

// WorkRequest represents a single work request for the persistent worker.
// See https://bazel.build/remote/creating for the protocol specification.
type WorkRequest struct {
	Arguments []string
	Inputs    []Input
	// RequestID is 0 for singleplex workers and unique per in-flight request
	// for multiplex workers. It must be echoed unchanged in the response.
	RequestID  int32
	Cancel     bool
	Verbosity  int32
	SandboxDir string
}

// WorkResponse represents the response to a work request.
type WorkResponse struct {
	ExitCode int32
	// Output is shown to the user after the response is received. It must be valid UTF-8.
	Output       string
	RequestID    int32
	WasCancelled bool
}

// Input represents a single input file with its path and content digest.
type Input struct {
	Path   string
	Digest []byte
}

// DigestString renders the opaque digest for log output.
// Bazel usually sends either the raw SHA-256 bytes or their hex encoding.
func (i Input) DigestString() string {
	switch len(i.Digest) {
	case 0:
		return ""
	case 32:
		return digest.NewDigestFromEncoded(digest.SHA256, hex.EncodeToString(i.Digest)).String()
	case 64:
		d := digest.NewDigestFromEncoded(digest.SHA256, string(i.Digest))
		if d.Validate() == nil {
			return d.String()
		}
	}
	return hex.EncodeToString(i.Digest)
}
