package persistentworker

import (
	"io"
	"os"

	"go.uber.org/zap"
)

// Option configures a Worker.
type Option func(*Worker)

// WithInput sets the input reader for work requests.
// If not specified, defaults to os.Stdin.
func WithInput(r io.Reader) Option {
	return func(w *Worker) {
		w.input = r
	}
}

// WithOutput sets the output writer for work responses.
// If not specified, defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(worker *Worker) {
		worker.output = w
	}
}

// WithLogger sets the logger. It must not write to the output stream.
func WithLogger(l *zap.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMaxPrefixLen sets the capacity of the length prefix probe.
// If not specified, defaults to MaxLengthPrefixLen.
func WithMaxPrefixLen(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxPrefixLen = n
		}
	}
}

// WithMaxMessageSize limits the size of a single request payload.
// If not specified, defaults to math.MaxInt32.
func WithMaxMessageSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxMessageSize = n
		}
	}
}

// defaultInput returns the default input reader.
func defaultInput() io.Reader {
	return os.Stdin
}

// defaultOutput returns the default output writer.
func defaultOutput() io.Writer {
	return os.Stdout
}
