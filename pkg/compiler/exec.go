package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// execution is the outcome of a compiler process that was started successfully.
type execution struct {
	state  *os.ProcessState
	stderr []byte
}

// capture runs the compiler once with args in dir and waits for it to exit.
// Its stderr is collected. Its stdout is copied to w.stderr so it never reaches
// the protocol stream. Stdin is the null device.
func (w *Worker) capture(ctx context.Context, args []string, dir string) (*execution, error) {
	cmd := exec.CommandContext(ctx, w.compiler, args...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	// Both pipes must be drained before Wait, otherwise a chatty compiler blocks
	// on a full pipe buffer.
	var captured bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(w.stderr, stdout)
		if err != nil {
			_, _ = io.Copy(io.Discard, stdout)
			return fmt.Errorf("failed to forward compiler stdout: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := io.Copy(&captured, stderr); err != nil {
			return fmt.Errorf("failed to read compiler stderr: %w", err)
		}
		return nil
	})
	copyErr := g.Wait()

	waitErr := cmd.Wait()
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return nil, fmt.Errorf("failed to wait for compiler: %w", waitErr)
	}
	if copyErr != nil {
		w.logger.Warn("compiler output incomplete", zap.Error(copyErr))
	}
	return &execution{state: cmd.ProcessState, stderr: captured.Bytes()}, nil
}

// exitCode returns the process exit code. For a process that has none it returns
// ExitCodeSignalBase+signal (or ExitCodeAbnormal) together with an error wrapping ErrSignaled.
func exitCode(state *os.ProcessState) (int32, error) {
	if code := state.ExitCode(); code >= 0 {
		return int32(code), nil
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return int32(ExitCodeSignalBase + int(ws.Signal())), fmt.Errorf("%w: killed by signal %v", ErrSignaled, ws.Signal())
	}
	return ExitCodeAbnormal, fmt.Errorf("%w: %v", ErrSignaled, state)
}
