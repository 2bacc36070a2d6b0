package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire <task-id>",
	Short: "Acquire the lock for a task",
	Long: `Acquire the lock on behalf of a task and leave it held when the command exits.

Waits up to --wait for the current holder to release (default: lock.max_wait).
Use --wait 0 for a single non-blocking attempt.

Exit status is 0 when the lock was acquired and 1 when it is held by someone else.

Examples:
  tasklock acquire TASK-001 --by backend-dev
  tasklock acquire TASK-001 --by backend-dev --wait 0`,
	Args: cobra.ExactArgs(1),
	RunE: runAcquire,
}

var (
	acquireBy   string
	acquireWait time.Duration
)

func init() {
	rootCmd.AddCommand(acquireCmd)

	acquireCmd.Flags().StringVar(&acquireBy, "by", "", "holder name recorded as lockedBy (default: user@host)")
	acquireCmd.Flags().DurationVar(&acquireWait, "wait", 0, "maximum time to wait for the lock (default: lock.max_wait)")
}

func runAcquire(cmd *cobra.Command, args []string) error {
	env, err := openLockEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	taskID := args[0]
	by := holderFlag(acquireBy)
	wait := waitFlag(cmd, acquireWait, env.cfg.Lock.MaxWait)

	ok, err := env.manager.Acquire(cmd.Context(), taskID, by, wait)
	if err != nil {
		return err
	}
	if !ok {
		rec, _ := env.manager.Info(cmd.Context())
		if rec.Locked {
			fmt.Fprintf(cmd.ErrOrStderr(), "Lock held by %s (by %s)\n", rec.TaskID, rec.LockedBy)
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "Lock not acquired")
		}
		return &exitError{code: 1}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Acquired lock for %s (by %s)\n", taskID, by)
	return nil
}

// holderFlag returns the --by value, falling back to user@host.
func holderFlag(by string) string {
	if by == "" {
		return defaultHolder()
	}
	return by
}

// waitFlag returns --wait when it was given and the configured default otherwise.
func waitFlag(cmd *cobra.Command, wait, fallback time.Duration) time.Duration {
	if cmd.Flags().Changed("wait") {
		return wait
	}
	return fallback
}
