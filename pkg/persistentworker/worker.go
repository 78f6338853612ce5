package persistentworker

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Worker is a singleplex persistent worker that handles Bazel work requests
// using the binary protobuf protocol described at https://bazel.build/remote/persistent.
//
// Requests are handled strictly in order: each response is written and flushed
// before the next request is read. Request IDs are still echoed, so multiplex
// callers can talk to it, they just never see more than one request in flight.
type Worker struct {
	handler        Handler
	input          io.Reader
	output         io.Writer
	logger         *zap.Logger
	maxPrefixLen   int
	maxMessageSize int
}

// NewWorker creates a new persistent worker with the given handler and options.
func NewWorker(handler Handler, opts ...Option) *Worker {
	w := &Worker{
		handler: handler,
		input:   defaultInput(),
		output:  defaultOutput(),
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run starts the persistent worker, reading work requests from input and writing responses to output.
// It blocks until the input stream is closed or an error occurs.
//
// Run returns nil when the input ends cleanly between two requests. Framing errors,
// undecodable requests, and failures writing a response are returned; after any of
// them the stream cannot be trusted and the session must end.
func (w *Worker) Run(ctx context.Context) error {
	logger := w.logger.With(zap.String("session", uuid.NewString()))
	reader := NewFrameReader(w.input, w.maxPrefixLen, w.maxMessageSize)
	writer := NewFrameWriter(w.output)

	logger.Info("persistent worker started")
	served := 0
	for {
		payload, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Normal shutdown - input closed
				logger.Info("input closed, shutting down", zap.Int("requests", served))
				return nil
			}
			return fmt.Errorf("failed to read work request: %w", err)
		}

		req, err := UnmarshalWorkRequest(payload)
		if err != nil {
			return err
		}

		if req.Cancel {
			// The request this refers to has already been answered.
			logger.Debug("ignoring cancel request", zap.Int32("request_id", req.RequestID))
			continue
		}

		resp := w.handler.HandleRequest(ctx, req)
		resp.RequestID = req.RequestID

		out, err := MarshalWorkResponse(resp)
		if err != nil {
			return fmt.Errorf("failed to encode response for request %d: %w", req.RequestID, err)
		}
		if err := writer.WriteMessage(out); err != nil {
			return fmt.Errorf("failed to write response for request %d: %w", req.RequestID, err)
		}
		served++
		logger.Debug("sent work response",
			zap.Int32("request_id", resp.RequestID),
			zap.Int32("exit_code", resp.ExitCode),
			zap.Int("output_bytes", len(resp.Output)))
	}
}
