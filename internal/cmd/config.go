package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/tasklock/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View tasklock configuration",
	Long: `View tasklock configuration.

Without arguments, displays the current configuration.
Use 'config init' to create a config file with all available options.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long: `Create a default config file at ~/.config/tasklock/config.yaml with all available options.
With --local, create ./.tasklock.yaml instead.`,
	RunE: runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configInitLocal bool

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)

	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "create ./.tasklock.yaml in the current directory")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	// Lock settings
	fmt.Fprintln(out, "lock:")
	fmt.Fprintf(out, "  backend: %s\n", cfg.Lock.Backend)
	fmt.Fprintf(out, "  file: %s\n", cfg.Lock.File)
	fmt.Fprintf(out, "  timeout: %s\n", cfg.Lock.Timeout)
	fmt.Fprintf(out, "  poll_interval: %s\n", cfg.Lock.PollInterval)
	fmt.Fprintf(out, "  max_wait: %s\n", cfg.Lock.MaxWait)
	fmt.Fprintf(out, "  watch: %v\n", cfg.Lock.Watch)
	fmt.Fprintf(out, "  guard_timeout: %s\n", cfg.Lock.GuardTimeout)
	fmt.Fprintf(out, "  fail_closed: %v\n", cfg.Lock.FailClosed)

	// Redis settings
	fmt.Fprintln(out, "redis:")
	fmt.Fprintf(out, "  addr: %s\n", cfg.Redis.Addr)
	if cfg.Redis.Password != "" {
		fmt.Fprintf(out, "  password: ********\n")
	} else {
		fmt.Fprintf(out, "  password: \n")
	}
	fmt.Fprintf(out, "  db: %d\n", cfg.Redis.DB)
	fmt.Fprintf(out, "  key: %s\n", cfg.Redis.Key)
	fmt.Fprintf(out, "  guard_ttl: %s\n", cfg.Redis.GuardTTL)

	// Logging settings
	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  dir: %s\n", cfg.Logging.Dir)
	fmt.Fprintf(out, "  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Fprintf(out, "  max_backups: %d\n", cfg.Logging.MaxBackups)
	fmt.Fprintf(out, "  compress: %v\n", cfg.Logging.Compress)

	// Metrics settings
	fmt.Fprintln(out, "metrics:")
	fmt.Fprintf(out, "  textfile: %s\n", cfg.Metrics.Textfile)

	return nil
}

const configTemplate = `# tasklock configuration

lock:
  # Where the lock record lives: file or redis
  backend: file
  # Record path for the file backend
  file: .github/.task-lock.json
  # A holder older than this is considered crashed and its lock is cleared (0 disables)
  timeout: 1h
  # How often a waiting acquire re-checks the record
  poll_interval: 10s
  # Default wait for acquire and run when --wait is not given
  max_wait: 5m
  # Wake waiters as soon as the record file changes (file backend only)
  watch: true
  # How long an update waits for another process's file guard before giving up
  guard_timeout: 5s
  # Deny the lock instead of granting it when storage is unreachable
  fail_closed: false

redis:
  addr: localhost:6379
  password: ""
  db: 0
  # Record key; the update guard uses <key>:guard
  key: tasklock:record
  guard_ttl: 5s

logging:
  # debug, info, warn or error
  level: info
  # Directory for tasklock.log; empty logs to stderr
  dir: ""
  max_size_mb: 10
  max_backups: 3
  compress: false

metrics:
  # Write prometheus metrics here on exit (node_exporter textfile collector)
  textfile: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()
	if configInitLocal {
		configFile = localConfigFile
	}

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. ./%s (current directory)\n", localConfigFile)
	fmt.Fprintf(out, "  2. %s\n", config.ConfigFile())
	fmt.Fprintf(out, "  3. $HOME/.config/tasklock/config.yaml\n")
	fmt.Fprintln(out, "\nEnvironment variables: TASKLOCK_* (e.g., TASKLOCK_LOCK_TIMEOUT for lock.timeout)")

	return nil
}
