package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nikhilm/rustc-worker/pkg/compiler"
	"github.com/nikhilm/rustc-worker/pkg/logging"
	"github.com/nikhilm/rustc-worker/pkg/persistentworker"
)

const description = `Wraps a compiler so that Bazel can keep it running as a persistent worker.

With --persistent_worker, work requests are read from stdin and responses written to
stdout using the Bazel worker protocol. Every invocation shares an incremental cache
directory derived from the compiler path and the compilation mode.

Without it, the compiler is run once with the given arguments (an @ARGFILE is expanded,
one argument per line) and its exit code becomes the exit code of this program.

Options not given on the command line or in the environment are read from the
--config TOML file, if one is given.`

// Run executes the worker with the given command line and returns the process exit code.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	args, isPersistentWorker := persistentworker.ParseArgs(args)

	exitCode := 0
	app := &cli.App{
		Name:            "rustc-worker",
		Usage:           "run a compiler as a Bazel persistent worker",
		UsageText:       "rustc-worker [options] COMPILER (--persistent_worker | [ARGS...] @ARGFILE)",
		Description:     description,
		HideHelpCommand: true,
		// Help goes to stderr: stdout may be the worker protocol stream.
		Writer:    stderr,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "TOML file with defaults for the options below",
				EnvVars: []string{"RUSTC_WORKER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "compilation_mode",
				Usage:   "configuration discriminator folded into the cache directory name",
				EnvVars: []string{"RUSTC_WORKER_COMPILATION_MODE"},
			},
			&cli.StringFlag{
				Name:    "cache_root",
				Usage:   "directory holding incremental caches (default: the system temp dir)",
				EnvVars: []string{"RUSTC_WORKER_CACHE_ROOT"},
			},
			&cli.StringFlag{
				Name:  "incremental_flag",
				Usage: "argument prefix that passes the cache directory to the compiler (default: --codegen incremental=)",
			},
			&cli.StringFlag{
				Name:    "log_level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				EnvVars: []string{"RUSTC_WORKER_LOG_LEVEL"},
			},
		},
		ExitErrHandler: func(*cli.Context, error) {},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return errors.New("missing COMPILER argument")
			}

			cfg, err := loadSettings(c)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			w, err := compiler.New(compiler.Config{
				Compiler:        c.Args().First(),
				CompilationMode: cfg.CompilationMode,
				CacheRoot:       cfg.CacheRoot,
				IncrementalFlag: cfg.IncrementalFlag,
				Stdout:          stdout,
				Stderr:          stderr,
				Logger:          logger.Named("compiler"),
			})
			if err != nil {
				return err
			}

			if isPersistentWorker {
				if c.NArg() > 1 {
					return fmt.Errorf("unexpected arguments in persistent worker mode: %q", c.Args().Tail())
				}
				worker := persistentworker.NewWorker(w,
					persistentworker.WithLogger(logger.Named("worker")),
					persistentworker.WithInput(stdin),
					persistentworker.WithOutput(stdout),
				)
				if err := worker.Run(c.Context); err != nil {
					logger.Error("persistent worker failed", zap.Error(err))
					return err
				}
				return nil
			}

			exitCode, err = w.RunOnce(c.Context, c.Args().Tail())
			return err
		},
	}

	if err := app.RunContext(ctx, args); err != nil {
		fmt.Fprintf(stderr, "rustc-worker: %v\n", err)
		var dispatchErr *compiler.DispatchError
		if errors.As(err, &dispatchErr) {
			return exitCode
		}
		return 1
	}
	return exitCode
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
