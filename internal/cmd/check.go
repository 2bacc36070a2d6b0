package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkQuiet bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether the lock is held",
	Long: `Check whether the lock is held. Exit status is 0 when free and 1 when held.

Unlike status, check clears a lock whose holder has exceeded the timeout and
repairs a missing or unreadable record, exactly as an acquire attempt would.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false, "print nothing, report through the exit status only")
}

func runCheck(cmd *cobra.Command, args []string) error {
	env, err := openLockEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	if env.manager.IsLocked(cmd.Context()) {
		if !checkQuiet {
			fmt.Fprintln(cmd.OutOrStdout(), "locked")
		}
		return &exitError{code: 1}
	}
	if !checkQuiet {
		fmt.Fprintln(cmd.OutOrStdout(), "unlocked")
	}
	return nil
}
