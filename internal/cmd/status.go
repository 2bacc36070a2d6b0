package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/tasklock/internal/errors"
	"github.com/Iron-Ham/tasklock/internal/lock"
	"github.com/Iron-Ham/tasklock/internal/store"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the lock record",
	Long: `Show the lock record as stored, without clearing stale locks or repairing
the record. A held lock past its timeout is reported as stale; the next check,
acquire or run will clear it.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusFormat, "format", "o", "text", "output format: text, json or yaml")
}

// statusView is the structured form of status output.
type statusView struct {
	Locked   bool       `json:"locked" yaml:"locked"`
	TaskID   string     `json:"taskId,omitempty" yaml:"taskId,omitempty"`
	LockedAt *time.Time `json:"lockedAt,omitempty" yaml:"lockedAt,omitempty"`
	LockedBy string     `json:"lockedBy,omitempty" yaml:"lockedBy,omitempty"`
	Age      string     `json:"age,omitempty" yaml:"age,omitempty"`
	Stale    bool       `json:"stale" yaml:"stale"`
	Timeout  string     `json:"timeout" yaml:"timeout"`
	Backend  string     `json:"backend" yaml:"backend"`
	Location string     `json:"location" yaml:"location"`
	Problem  string     `json:"problem,omitempty" yaml:"problem,omitempty"`
}

func newStatusView(m *lock.Manager, st store.Store, rec store.Record, readErr error, now time.Time) statusView {
	v := statusView{
		Locked:   rec.Locked,
		Stale:    m.Stale(rec),
		Timeout:  m.Timeout().String(),
		Backend:  st.Backend(),
		Location: st.Location(),
	}
	if m.Timeout() <= 0 {
		v.Timeout = "none"
	}
	if rec.Locked {
		at := rec.LockedAt
		v.TaskID = rec.TaskID
		v.LockedAt = &at
		v.LockedBy = rec.LockedBy
		v.Age = rec.Age(now).Truncate(time.Second).String()
	}
	switch {
	case readErr == nil:
	case errors.Is(readErr, errors.ErrRecordNotFound):
		v.Problem = "record not created yet"
	default:
		v.Problem = readErr.Error()
	}
	return v
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, err := openLockEnv()
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	rec, readErr := env.manager.Info(cmd.Context())
	if readErr != nil && errors.Is(readErr, errors.ErrStorageUnavailable) {
		return readErr
	}
	view := newStatusView(env.manager, env.store, rec, readErr, time.Now())

	out := cmd.OutOrStdout()
	switch statusFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		return writeStatusText(out, view, isTerminal(out))
	default:
		return errors.NewValidationError("unsupported format (supported: text, json, yaml)").
			WithField("format").
			WithValue(statusFormat)
	}
}

func writeStatusText(w io.Writer, v statusView, styled bool) error {
	row := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", render(styled, labelStyle, fmt.Sprintf("%-10s", label+":")), value)
	}

	fmt.Fprintln(w, render(styled, titleStyle, "Task lock"))

	switch {
	case !v.Locked:
		row("State", render(styled, freeBadge, "unlocked"))
	case v.Stale:
		row("State", render(styled, staleBadge, "stale")+" (will be cleared on next check)")
	default:
		row("State", render(styled, heldBadge, "locked"))
	}
	if v.Locked {
		row("Task", v.TaskID)
		row("Held by", v.LockedBy)
		row("Since", v.LockedAt.Local().Format("2006-01-02 15:04:05"))
		row("Age", v.Age)
	}
	row("Timeout", v.Timeout)
	row("Backend", v.Backend)
	row("Location", v.Location)
	if v.Problem != "" {
		row("Note", v.Problem)
	}
	return nil
}
