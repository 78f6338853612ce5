package compiler

import (
	"errors"
	"fmt"
)

// Exit codes reported when the compiler did not produce one of its own.
const (
	// ExitCodeSpawnFailed is reported when the compiler could not be started.
	ExitCodeSpawnFailed = 127
	// ExitCodeSignalBase plus the signal number is reported when the compiler was
	// killed by a signal, following the shell convention.
	ExitCodeSignalBase = 128
	// ExitCodeAbnormal is reported when the compiler ended without an exit code
	// and no signal could be determined.
	ExitCodeAbnormal = 255
)

var (
	ErrSpawn         = errors.New("compiler could not be started")
	ErrSignaled      = errors.New("compiler terminated without an exit code")
	ErrInvalidOutput = errors.New("compiler output is not valid UTF-8")
)

// A DispatchError describes a failed compiler invocation. It is reported in the
// work response and never stops the worker.
type DispatchError struct {
	Op  string
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
