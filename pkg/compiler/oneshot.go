package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/nikhilm/rustc-worker/pkg/persistentworker"
)

// RunOnce runs the compiler outside the worker protocol. A single @argfile in args
// is replaced by its lines. The compiler inherits stdin and writes straight to the
// configured stdout and stderr.
//
// The returned code is the compiler's exit code, or ExitCodeSignalBase+signal if it
// was killed. An error is returned only if the compiler could not be run at all.
func (w *Worker) RunOnce(ctx context.Context, args []string) (int, error) {
	expanded, err := persistentworker.ExpandArgfile(args)
	if err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, w.compiler, expanded...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = w.stdout
	cmd.Stderr = w.stderr

	err = cmd.Run()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return ExitCodeSpawnFailed, &DispatchError{Op: "run", Err: fmt.Errorf("%w: %w", ErrSpawn, err)}
	}

	code, err := exitCode(cmd.ProcessState)
	if err != nil {
		w.logger.Warn("compiler did not exit normally", zap.Error(err), zap.Int32("exit_code", code))
	}
	return int(code), nil
}
