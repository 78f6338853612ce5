// Package compiler runs the wrapped compiler for work requests and one-shot invocations.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/nikhilm/rustc-worker/pkg/cachedir"
	"github.com/nikhilm/rustc-worker/pkg/persistentworker"
)

// DefaultIncrementalFlag is rustc's codegen option for the incremental cache directory.
const DefaultIncrementalFlag = "incremental="

// Config describes the compiler a Worker wraps. It is read once at startup.
type Config struct {
	// Compiler is the path of the compiler executable. It is also the compiler
	// identity used to key the incremental cache.
	Compiler string
	// CompilationMode separates caches of configurations that share a compiler,
	// for example "fastbuild" and "opt".
	CompilationMode string
	// CacheRoot is the directory holding incremental caches. Defaults to os.TempDir().
	CacheRoot string
	// IncrementalFlag is the prefix of the argument that points the compiler at its
	// cache directory. When empty, "--codegen incremental=<dir>" is passed.
	IncrementalFlag string
	// Stdout and Stderr default to the process's own streams. In worker mode the
	// compiler's stdout is forwarded to Stderr.
	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger
}

// Worker invokes the compiler. It is immutable after New and implements
// persistentworker.Handler.
type Worker struct {
	compiler        string
	cacheDir        string
	incrementalFlag string
	stdout          io.Writer
	stderr          io.Writer
	logger          *zap.Logger
}

var _ persistentworker.Handler = (*Worker)(nil)

// New validates cfg and resolves the incremental cache directory, creating it if needed.
// A cache directory that cannot be created or written is reported as a *cachedir.ResourceError.
func New(cfg Config) (*Worker, error) {
	if cfg.Compiler == "" {
		return nil, errors.New("no compiler specified")
	}
	dir, err := cachedir.Resolve(cfg.CacheRoot, cfg.Compiler, cfg.CompilationMode)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		compiler:        cfg.Compiler,
		cacheDir:        dir,
		incrementalFlag: cfg.IncrementalFlag,
		stdout:          cfg.Stdout,
		stderr:          cfg.Stderr,
		logger:          cfg.Logger,
	}
	if w.stdout == nil {
		w.stdout = os.Stdout
	}
	if w.stderr == nil {
		w.stderr = os.Stderr
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	w.logger.Debug("using incremental cache", zap.String("compiler", w.compiler), zap.String("dir", dir))
	return w, nil
}

// CacheDir returns the incremental cache directory passed to the compiler.
func (w *Worker) CacheDir() string {
	return w.cacheDir
}

func (w *Worker) incrementalArgs() []string {
	if w.incrementalFlag == "" {
		return []string{"--codegen", DefaultIncrementalFlag + w.cacheDir}
	}
	return []string{w.incrementalFlag + w.cacheDir}
}

// Dispatch runs the compiler once for req and builds its response.
//
// The returned error, if any, is a *DispatchError describing a failure that is
// already reflected in the response: ErrSpawn (exit code ExitCodeSpawnFailed),
// ErrSignaled (exit code ExitCodeSignalBase+signal) or ErrInvalidOutput (output
// with invalid bytes replaced, non-zero exit code).
func (w *Worker) Dispatch(ctx context.Context, req persistentworker.WorkRequest) (persistentworker.WorkResponse, error) {
	resp := persistentworker.WorkResponse{RequestID: req.RequestID}

	args := make([]string, 0, len(req.Arguments)+2)
	args = append(args, req.Arguments...)
	args = append(args, w.incrementalArgs()...)

	run, err := w.capture(ctx, args, req.SandboxDir)
	if err != nil {
		resp.ExitCode = ExitCodeSpawnFailed
		resp.Output = strings.ToValidUTF8(fmt.Sprintf("rustc-worker: failed to run %s: %v\n", w.compiler, err), "\uFFFD")
		return resp, &DispatchError{Op: "run", Err: err}
	}

	var dispatchErr error
	code, waitErr := exitCode(run.state)
	if waitErr != nil {
		dispatchErr = &DispatchError{Op: "wait", Err: waitErr}
	}
	resp.ExitCode = code

	if utf8.Valid(run.stderr) {
		resp.Output = string(run.stderr)
	} else {
		resp.Output = "rustc-worker: compiler output was not valid UTF-8, invalid bytes were replaced\n" +
			strings.ToValidUTF8(string(run.stderr), "\uFFFD")
		if resp.ExitCode == 0 {
			resp.ExitCode = 1
		}
		if dispatchErr == nil {
			dispatchErr = &DispatchError{Op: "decode output", Err: ErrInvalidOutput}
		}
	}
	if waitErr != nil {
		if resp.Output != "" && !strings.HasSuffix(resp.Output, "\n") {
			resp.Output += "\n"
		}
		resp.Output += fmt.Sprintf("rustc-worker: %v\n", waitErr)
	}
	return resp, dispatchErr
}

// HandleRequest implements persistentworker.Handler.
func (w *Worker) HandleRequest(ctx context.Context, req persistentworker.WorkRequest) persistentworker.WorkResponse {
	logger := w.logger.With(zap.Int32("request_id", req.RequestID))
	if req.Verbosity > 0 {
		inputs := make([]string, 0, len(req.Inputs))
		for _, in := range req.Inputs {
			inputs = append(inputs, in.Path+"@"+in.DigestString())
		}
		logger.Info("received work request",
			zap.Strings("arguments", req.Arguments),
			zap.Strings("inputs", inputs),
			zap.String("sandbox_dir", req.SandboxDir))
	}

	resp, err := w.Dispatch(ctx, req)
	if err != nil {
		logger.Error("compiler invocation failed", zap.Error(err), zap.Int32("exit_code", resp.ExitCode))
	} else if req.Verbosity > 0 {
		logger.Info("compiler finished", zap.Int32("exit_code", resp.ExitCode), zap.Int("output_bytes", len(resp.Output)))
	}
	return resp
}
