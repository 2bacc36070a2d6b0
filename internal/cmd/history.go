package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/tasklock/internal/config"
	"github.com/Iron-Ham/tasklock/internal/logging"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past lock events",
	Long: `Show lock events from the log written to logging.dir.

Examples:
  # Everything that happened to one task
  tasklock history --task TASK-001

  # Stale recoveries and refused releases in the last day
  tasklock history --level warn --since 24h

  # Export as CSV
  tasklock history --format csv > lock-events.csv`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyTask   string
	historyBy     string
	historyLevel  string
	historySince  time.Duration
	historyGrep   string
	historyFormat string
	historyTail   int
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyTask, "task", "", "only events for this task ID")
	historyCmd.Flags().StringVar(&historyBy, "by", "", "only events for this holder")
	historyCmd.Flags().StringVar(&historyLevel, "level", "", "minimum level (debug/info/warn/error)")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only events newer than this (e.g. 1h, 30m)")
	historyCmd.Flags().StringVar(&historyGrep, "grep", "", "only events whose message contains this text")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "o", "text", "output format: text, json or csv")
	historyCmd.Flags().IntVarP(&historyTail, "tail", "n", 0, "show only the last N events (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Logging.Dir == "" {
		return fmt.Errorf("logging.dir is not set; lock events are only kept when logging to a directory")
	}

	entries, err := logging.ReadEntries(cfg.Logging.Dir)
	if err != nil {
		return err
	}

	filter := logging.LogFilter{
		Level:           historyLevel,
		TaskID:          historyTask,
		LockedBy:        historyBy,
		MessageContains: historyGrep,
	}
	if historySince > 0 {
		filter.Since = time.Now().Add(-historySince)
	}
	entries = logging.FilterLogs(entries, filter)

	if historyTail > 0 && len(entries) > historyTail {
		entries = entries[len(entries)-historyTail:]
	}

	return logging.WriteEntries(cmd.OutOrStdout(), entries, historyFormat)
}
