package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/vidindex/internal/engine"
	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/schema"
	"github.com/roach88/vidindex/internal/source"
	"github.com/roach88/vidindex/internal/store"
)

// IndexOptions holds flags for the index command.
type IndexOptions struct {
	*RootOptions
	Events      string
	MetricsAddr string
	Strict      bool

	// RunIDs overrides the run id generator (for testing).
	RunIDs engine.RunIDGenerator
}

// IndexResult summarizes one index run.
type IndexResult struct {
	RunID         string      `json:"run_id"`
	Database      string      `json:"database"`
	Checkpoint    ir.Position `json:"checkpoint"`
	EventsApplied int64       `json:"events_applied"`
	NewEvents     int64       `json:"new_events"`
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Apply a JSONL event stream to the database",
		Long: `Apply ledger events, one JSON object per line, to the database.

Events already applied are skipped, so re-running over the same stream
resumes after the stored checkpoint. The first fatal error halts the run;
everything before it stays applied.

Example:
  vidindex index --db ./index.db --events ./events.jsonl
  producer | vidindex index --db ./index.db --metrics-addr :9100`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Events, "events", "-", "JSONL event file, - for stdin")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "check every line against the CUE event schema")

	return cmd
}

func runIndex(opts *IndexOptions, cmd *cobra.Command) error {
	cfg, err := opts.settings()
	if err != nil {
		return err
	}
	if opts.MetricsAddr != "" {
		cfg.MetricsAddr = opts.MetricsAddr
	}
	logger := newLogger(cmd, cfg)
	formatter := opts.formatter(cmd)

	var srcOpts []source.JSONLOption
	if cfg.StrictSchema || opts.Strict {
		v, err := schema.NewValidator()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load event schema", err)
		}
		srcOpts = append(srcOpts, source.WithValidator(v))
	}
	input, err := openEvents(opts.Events, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open events", err)
	}
	src := source.NewJSONL(input, srcOpts...)
	defer src.Close()

	logger.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer closeStore(st, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(engine.NewMetrics(reg)),
		engine.WithRetry(retryPolicy(cfg)),
	}
	if opts.RunIDs != nil {
		engOpts = append(engOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	eng := engine.New(st, engOpts...)
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "vidindex",
		Name:      "queue_depth",
		Help:      "Events read from the source and waiting to be applied.",
	}, func() float64 { return float64(eng.QueueLen()) }))

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		shutdown, err := serveMetrics(cfg.MetricsAddr, reg, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start metrics server", err)
		}
		defer shutdown()
	}

	before, _, err := st.Checkpoint(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read checkpoint", err)
	}

	logger.Info("indexing started", "run_id", eng.RunID(), "resume_after", before.Position.String())
	ingestErr := engine.Ingest(ctx, eng, src)

	after, _, err := st.Checkpoint(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read checkpoint", err)
	}
	result := IndexResult{
		RunID:         eng.RunID(),
		Database:      cfg.Database,
		Checkpoint:    after.Position,
		EventsApplied: after.EventsApplied,
		NewEvents:     after.EventsApplied - before.EventsApplied,
	}

	switch {
	case ingestErr == nil:
		logger.Info("indexing finished", "checkpoint", after.Position.String(), "new_events", result.NewEvents)
	case errors.Is(ingestErr, context.Canceled):
		logger.Info("indexing interrupted", "checkpoint", after.Position.String())
	default:
		return indexFailure(formatter, result, ingestErr)
	}

	return formatter.Success(result, fmt.Sprintf(
		"Indexed %d new event(s); checkpoint %s (%d total, run %s)\n",
		result.NewEvents, result.Checkpoint, result.EventsApplied, result.RunID))
}

func indexFailure(formatter *OutputFormatter, result IndexResult, err error) error {
	code := ErrCodeGeneric
	if c, ok := engine.CodeOf(err); ok {
		code = string(c)
	}

	var details map[string]string
	var ie *engine.IndexError
	if errors.As(err, &ie) {
		details = ie.Details
	}
	var le *source.LineError
	if errors.As(err, &le) {
		if details == nil {
			details = map[string]string{}
		}
		details["line"] = fmt.Sprint(le.Line)
	}

	if formatter.Format == "json" {
		if outErr := formatter.Failure(code, err.Error(), result); outErr != nil {
			return outErr
		}
	} else {
		if outErr := formatter.Error(code, err.Error(), details); outErr != nil {
			return outErr
		}
		fmt.Fprintf(formatter.Writer, "Stopped at checkpoint %s after %d new event(s)\n",
			result.Checkpoint, result.NewEvents)
		if ie != nil && !engine.IsFatal(err) {
			fmt.Fprintln(formatter.Writer, "The failure was transient; re-run to resume from the checkpoint")
		}
	}
	return WrapExitError(ExitFailure, "indexing halted", err)
}

func openEvents(path string, stdin io.Reader) (io.Reader, error) {
	if path == "" || path == "-" {
		return stdin, nil
	}
	return os.Open(path)
}

// serveMetrics exposes reg on /metrics until the returned shutdown is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
