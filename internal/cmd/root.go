package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Iron-Ham/tasklock/internal/config"
	"github.com/Iron-Ham/tasklock/internal/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// exitTempFail (EX_TEMPFAIL) reports a failure worth retrying later, such as a
// contended lock or an unreachable store.
const exitTempFail = 75

// localConfigFile is picked up from the working directory before the user config.
const localConfigFile = ".tasklock.yaml"

var rootCmd = &cobra.Command{
	Use:   "tasklock",
	Short: "Cross-process lock for serializing pipeline tasks",
	Long: `tasklock serializes runs of an automated task pipeline across independent
processes, such as separately scheduled CI jobs, through a lock record kept in a
shared file or in Redis.

A holder that never releases is cleared automatically once the lock timeout has
passed, and release is refused to any task other than the holder.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a process exit code for outcomes that are not failures of
// tasklock itself, such as a contended lock or a child's non-zero exit.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// ExitCode maps an error returned by Execute to a process exit code. Retryable
// failures exit 75 so schedulers can tell them from usage or configuration errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	if errors.IsRetryable(err) {
		return exitTempFail
	}
	return 2
}

// errorMessage renders err for stderr. Errors that are not user facing, such as
// storage failures wrapping driver errors, are summarized unless debug logging is on.
func errorMessage(err error, verbose bool) string {
	var domainErr errors.DomainError
	if verbose || !errors.As(err, &domainErr) || errors.IsUserFacing(err) {
		return "Error: " + err.Error()
	}

	summary := "internal error"
	if errors.Is(err, errors.ErrStorageUnavailable) {
		summary = errors.ErrStorageUnavailable.Error()
	}
	if errors.IsRetryable(err) {
		summary += " (transient, retry later)"
	}
	return "Error: " + summary + "\nSet TASKLOCK_LOGGING_LEVEL=debug for details."
}

// Execute runs the root command. Errors other than plain exit codes are printed
// to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	var exitErr *exitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.err == nil) {
		verbose := strings.EqualFold(viper.GetString("logging.level"), "debug")
		fmt.Fprintln(os.Stderr, errorMessage(err, verbose))
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./.tasklock.yaml or $HOME/.config/tasklock/config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "lock backend: file or redis")
	rootCmd.PersistentFlags().String("file", "", "lock record path for the file backend")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("lock.backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("lock.file", rootCmd.PersistentFlags().Lookup("file"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if _, err := os.Stat(localConfigFile); err == nil {
		viper.SetConfigFile(localConfigFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/tasklock")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TASKLOCK")
	// Replace dots with underscores for nested keys in env vars
	// e.g., TASKLOCK_LOCK_POLL_INTERVAL for lock.poll_interval
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
