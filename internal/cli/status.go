package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/queryir"
)

// StatusResult describes the state of a database.
type StatusResult struct {
	Database      string           `json:"database"`
	Indexed       bool             `json:"indexed"`
	Checkpoint    ir.Position      `json:"checkpoint"`
	RunID         string           `json:"run_id,omitempty"`
	EventsApplied int64            `json:"events_applied"`
	EventLog      int64            `json:"event_log"`
	Entities      map[string]int64 `json:"entities"`
	Violations    []string         `json:"violations"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint, entity counts and counter audit",
		Long: `Show the resume checkpoint, the run that wrote it, how many entities of
each type are indexed, and whether every video's counters agree with its
child rows.

Exits 1 when the counter audit finds a mismatch.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
	return cmd
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.settings()
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	st, err := openExistingStore(cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	result := StatusResult{
		Database:   cfg.Database,
		Entities:   make(map[string]int64, len(ir.Catalog())),
		Violations: []string{},
	}

	cp, ok, err := st.Checkpoint(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read checkpoint", err)
	}
	if ok {
		result.Indexed = true
		result.Checkpoint = cp.Position
		result.RunID = cp.RunID
		result.EventsApplied = cp.EventsApplied
	}
	if result.EventLog, err = st.EventCount(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to count events", err)
	}

	for _, schema := range ir.Catalog() {
		n, err := st.Count(ctx, queryir.Query{Entity: schema.Name})
		if err != nil {
			return WrapExitError(ExitFailure, "failed to count entities", err)
		}
		result.Entities[schema.Name] = n
	}

	violations, err := st.Audit(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "audit failed", err)
	}
	for _, v := range violations {
		result.Violations = append(result.Violations, v.String())
	}

	if len(result.Violations) > 0 && formatter.Format == "json" {
		if err := formatter.Failure(ErrCodeAudit, fmt.Sprintf("%d counter mismatch(es)", len(result.Violations)), result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "counter audit failed")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Database:   %s\n", result.Database)
	if result.Indexed {
		fmt.Fprintf(&b, "Checkpoint: %s (run %s)\n", result.Checkpoint, result.RunID)
	} else {
		b.WriteString("Checkpoint: none\n")
	}
	fmt.Fprintf(&b, "Events:     %d applied, %d in log\n", result.EventsApplied, result.EventLog)
	b.WriteString("Entities:\n")
	for _, schema := range ir.Catalog() {
		fmt.Fprintf(&b, "  %-8s %d\n", schema.Name, result.Entities[schema.Name])
	}

	if len(result.Violations) > 0 {
		b.WriteString("Counter audit: FAILED\n")
		for _, v := range result.Violations {
			fmt.Fprintf(&b, "  %s\n", v)
		}
		fmt.Fprint(formatter.Writer, b.String())
		return NewExitError(ExitFailure, "counter audit failed")
	}
	b.WriteString("Counter audit: ok\n")
	return formatter.Success(result, b.String())
}
