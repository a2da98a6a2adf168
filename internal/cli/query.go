package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/queryir"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Where          string
	OrderBy        string
	OrderDirection string
	First          int
	Skip           int
	File           string
}

// QueryFile is the YAML form of a Read API request.
type QueryFile struct {
	Entity         string         `yaml:"entity"`
	Where          map[string]any `yaml:"where"`
	OrderBy        string         `yaml:"order_by"`
	OrderDirection string         `yaml:"order_direction"`
	First          int            `yaml:"first"`
	Skip           int            `yaml:"skip"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [entity]",
		Short: "Query indexed entities",
		Long: `Run a Read API query against the database.

Entities: channel, video, tip, like, comment, report.
The where filter uses GraphQL-style keys: field, field_not, field_contains,
field_not_contains, field_gt, field_gte, field_lt, field_lte, field_in,
field_not_in, and, or.

Examples:
  vidindex query video --where '{"channel":"0xabc...","removed":false}' --order-by tipAmount --order-direction desc
  vidindex query comment --where '{"video":"1"}' --first 20 --skip 20
  vidindex query --file ./top-videos.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Where, "where", "", "filter as a JSON object")
	cmd.Flags().StringVar(&opts.OrderBy, "order-by", "", "field to order by (default id)")
	cmd.Flags().StringVar(&opts.OrderDirection, "order-direction", "", "asc or desc (default asc)")
	cmd.Flags().IntVar(&opts.First, "first", 0, fmt.Sprintf("page size (default %d, max %d)", queryir.DefaultFirst, queryir.MaxFirst))
	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "number of results to skip")
	cmd.Flags().StringVar(&opts.File, "file", "", "read the query from a YAML file")

	return cmd
}

func runQuery(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	q, err := buildQuery(opts, args)
	if err != nil {
		if outErr := formatter.Error(ErrCodeInvalidQuery, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "invalid query", err)
	}

	cfg, err := opts.settings()
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	st, err := openExistingStore(cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	objs, err := st.Find(commandContext(cmd), q)
	if err != nil {
		var invalid *queryir.ValidationError
		if errors.As(err, &invalid) {
			if outErr := formatter.Error(ErrCodeInvalidQuery, err.Error(), nil); outErr != nil {
				return outErr
			}
			return WrapExitError(ExitCommandError, "invalid query", err)
		}
		return WrapExitError(ExitFailure, "query failed", err)
	}

	var b strings.Builder
	for _, obj := range objs {
		line, err := ir.MarshalCanonical(obj)
		if err != nil {
			return WrapExitError(ExitFailure, "query failed", err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	formatter.VerboseLog("%d result(s)", len(objs))
	return formatter.Success(objs, b.String())
}

// buildQuery merges the query file (if any) with flags; an explicit flag or
// argument wins over the file.
func buildQuery(opts *QueryOptions, args []string) (queryir.Query, error) {
	var qf QueryFile
	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return queryir.Query{}, fmt.Errorf("read query file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&qf); err != nil {
			return queryir.Query{}, fmt.Errorf("parse query file: %w", err)
		}
	}

	if len(args) == 1 {
		qf.Entity = args[0]
	}
	if qf.Entity == "" {
		return queryir.Query{}, fmt.Errorf("entity is required")
	}
	if opts.Where != "" {
		where, err := parseWhereJSON(opts.Where)
		if err != nil {
			return queryir.Query{}, err
		}
		qf.Where = where
	}
	if opts.OrderBy != "" {
		qf.OrderBy = opts.OrderBy
	}
	if opts.OrderDirection != "" {
		qf.OrderDirection = opts.OrderDirection
	}
	if opts.First != 0 {
		qf.First = opts.First
	}
	if opts.Skip != 0 {
		qf.Skip = opts.Skip
	}

	pred, err := queryir.ParseWhere(qf.Where)
	if err != nil {
		return queryir.Query{}, err
	}
	return queryir.Query{
		Entity:         qf.Entity,
		Where:          pred,
		OrderBy:        qf.OrderBy,
		OrderDirection: queryir.Direction(strings.ToLower(qf.OrderDirection)),
		First:          qf.First,
		Skip:           qf.Skip,
	}, nil
}

// parseWhereJSON decodes numbers as json.Number so integers never pass
// through float64.
func parseWhereJSON(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var where map[string]any
	if err := dec.Decode(&where); err != nil {
		return nil, fmt.Errorf("--where must be a JSON object: %w", err)
	}
	return where, nil
}
