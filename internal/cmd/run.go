package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/tasklock/internal/errors"
)

// exitContended is returned by run when the lock could not be acquired, so callers
// can tell it apart from a failing command.
const exitContended = exitTempFail

// childWaitDelay is how long a canceled child gets to exit after SIGINT before
// it is killed.
const childWaitDelay = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Run a command while holding the lock",
	Long: `Acquire the lock, run a command, and release the lock when the command
finishes, fails or is interrupted.

The command's exit status is propagated. If the lock cannot be acquired within
--wait the command is not started and tasklock exits with status 75.

Without --task, a unique task ID of the form run-<uuid> is generated.

Examples:
  tasklock run --task TASK-001 --by backend-dev -- python scripts/backend/generate_code.py
  tasklock run --wait 0 -- make deploy`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var (
	runTask string
	runBy   string
	runWait time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runTask, "task", "", "task ID recorded as taskId (default: run-<uuid>)")
	runCmd.Flags().StringVar(&runBy, "by", "", "holder name recorded as lockedBy (default: user@host)")
	runCmd.Flags().DurationVar(&runWait, "wait", 0, "maximum time to wait for the lock (default: lock.max_wait)")
}

func runRun(cmd *cobra.Command, args []string) error {
	env, err := openLockEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	taskID := runTask
	if taskID == "" {
		taskID = "run-" + uuid.NewString()
	}
	by := holderFlag(runBy)
	wait := waitFlag(cmd, runWait, env.cfg.Lock.MaxWait)

	err = env.manager.WithLock(cmd.Context(), taskID, by, wait, func(ctx context.Context) error {
		return runChild(ctx, cmd, args)
	})

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &exitErr):
		code := exitErr.ExitCode()
		if code < 0 {
			// killed by a signal
			code = 1
		}
		return &exitError{code: code}
	case errors.Is(err, errors.ErrLockContended):
		fmt.Fprintf(cmd.ErrOrStderr(), "Not running %s: %v\n", taskID, err)
		return &exitError{code: exitContended}
	default:
		return err
	}
}

func runChild(ctx context.Context, cmd *cobra.Command, args []string) error {
	child := exec.CommandContext(ctx, args[0], args[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = cmd.OutOrStdout()
	child.Stderr = cmd.ErrOrStderr()
	child.Cancel = func() error {
		return child.Process.Signal(os.Interrupt)
	}
	child.WaitDelay = childWaitDelay

	if err := child.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return fmt.Errorf("failed to run %s: %w", args[0], err)
	}
	return nil
}
