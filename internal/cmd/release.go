package cmd

import (
	"fmt"

	"github.com/Iron-Ham/tasklock/internal/errors"
	"github.com/spf13/cobra"
)

var releaseCmd = &cobra.Command{
	Use:   "release [task-id]",
	Short: "Release the lock",
	Long: `Release the lock.

With a task ID, the release is refused (exit status 1) unless that task holds the
lock. Without one, the lock is released whoever holds it. Releasing a lock that is
not held succeeds and changes nothing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRelease,
}

func init() {
	rootCmd.AddCommand(releaseCmd)
}

func runRelease(cmd *cobra.Command, args []string) error {
	env, err := openLockEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	var taskID string
	if len(args) == 1 {
		taskID = args[0]
	}

	if err := env.manager.Release(cmd.Context(), taskID); err != nil {
		if errors.Is(err, errors.ErrOwnershipMismatch) {
			var lockErr *errors.LockError
			if errors.As(err, &lockErr) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Refusing to release: lock is held by %s (by %s), not %s\n",
					lockErr.HolderID, lockErr.HeldBy, taskID)
			}
			return &exitError{code: 1}
		}
		return err
	}

	if taskID == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Lock released")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Lock released: %s\n", taskID)
	}
	return nil
}
