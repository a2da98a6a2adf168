package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vidindex/internal/engine"
	"github.com/roach88/vidindex/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Into  string // rebuild into this database instead of verifying
	Force bool   // empty a non-empty --into target first
}

// ReplayResult is the output of a determinism check.
type ReplayResult struct {
	Events        int64     `json:"events"`
	LiveDigest    string    `json:"live_digest"`
	ReplayDigests [2]string `json:"replay_digests"`
	Deterministic bool      `json:"deterministic"`
}

// RebuildResult is the output of replay --into.
type RebuildResult struct {
	Target string `json:"target"`
	Events int64  `json:"events"`
	Digest string `json:"digest"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Verify that replaying the event log reproduces the store",
		Long: `Replay the applied event log from empty, twice, into fresh in-memory
stores and compare their snapshot digests with the live database.

With --into, replay once into a new database file instead. --force
empties an existing target before rebuilding it.

Exit codes:
  0 - Replay is deterministic (or rebuild succeeded)
  1 - Digests differ
  2 - Command error

Examples:
  vidindex replay --db ./index.db
  vidindex replay --db ./index.db --into ./rebuilt.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Into, "into", "", "rebuild into this (new) database")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "with --into, discard whatever the target already holds")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
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

	if opts.Into != "" {
		return rebuildInto(opts, cmd, st)
	}

	formatter.VerboseLog("Replaying %s twice", cfg.Database)
	report, err := engine.VerifyReplay(ctx, st, engine.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitFailure, "replay failed", err)
	}

	result := ReplayResult{
		Events:        report.Events,
		LiveDigest:    report.LiveDigest,
		ReplayDigests: report.ReplayDigests,
		Deterministic: report.Match(),
	}

	if formatter.Format == "json" {
		if !result.Deterministic {
			if err := formatter.Failure(ErrCodeReplay, "replay digest differs from live store", result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "replay is not deterministic")
		}
		return formatter.Success(result, "")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Replayed %d event(s)\n", result.Events)
	fmt.Fprintf(&b, "  live:     %s\n", result.LiveDigest)
	for i, d := range result.ReplayDigests {
		mark := "✓"
		if d != result.LiveDigest {
			mark = "✗"
		}
		fmt.Fprintf(&b, "  replay %d: %s %s\n", i+1, d, mark)
	}
	if !result.Deterministic {
		b.WriteString("Replay is NOT deterministic\n")
		fmt.Fprint(formatter.Writer, b.String())
		return NewExitError(ExitFailure, "replay is not deterministic")
	}
	b.WriteString("✓ Replay is deterministic\n")
	return formatter.Success(result, b.String())
}

func rebuildInto(opts *ReplayOptions, cmd *cobra.Command, from *store.Store) error {
	cfg, err := opts.settings()
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)
	ctx := commandContext(cmd)

	to, err := store.Open(opts.Into)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open target database", err)
	}
	defer closeStore(to, logger)

	if opts.Force {
		logger.Info("resetting rebuild target", "path", opts.Into)
		if err := to.Reset(ctx); err != nil {
			return WrapExitError(ExitFailure, "failed to reset target database", err)
		}
	}

	if err := engine.Rebuild(ctx, from, to, engine.WithLogger(logger)); err != nil {
		return WrapExitError(ExitFailure, "rebuild failed", err)
	}

	n, err := to.EventCount(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "rebuild failed", err)
	}
	digest, err := to.Digest(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "rebuild failed", err)
	}

	result := RebuildResult{Target: opts.Into, Events: n, Digest: digest}
	return opts.formatter(cmd).Success(result,
		fmt.Sprintf("Rebuilt %d event(s) into %s\n  digest: %s\n", n, opts.Into, digest))
}
