package persistentworker

import "context"

// Handler processes individual work requests.
// The Worker calls HandleRequest for one request at a time and writes the
// response before reading the next request.
type Handler interface {
	// HandleRequest processes a single work request and returns a response.
	// Per-request failures belong in the response (non-zero ExitCode and an
	// explanation in Output); the worker only stops on protocol errors.
	HandleRequest(ctx context.Context, req WorkRequest) WorkResponse
}

// HandlerFunc is a function adapter that implements Handler.
type HandlerFunc func(context.Context, WorkRequest) WorkResponse

// HandleRequest calls the function itself.
func (f HandlerFunc) HandleRequest(ctx context.Context, req WorkRequest) WorkResponse {
	return f(ctx, req)
}
