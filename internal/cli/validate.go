package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/schema"
)

// maxEventLine matches the limit of the JSONL source.
const maxEventLine = 4 << 20

// Problem is one invalid line of an event file.
type Problem struct {
	Line    int    `json:"line"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool      `json:"valid"`
	Events   int       `json:"events"`
	Problems []Problem `json:"problems,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <events-file>",
		Short: "Check a JSONL event file without indexing it",
		Long: `Check every line of a JSONL event file against the CUE event schema
and the decoder's domain rules, and check that positions strictly increase.

All problems are reported with their line numbers; nothing is written.
Use - to read from stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	r, err := openEvents(path, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open events", err)
	}
	if c, ok := r.(io.Closer); ok && path != "-" {
		defer c.Close()
	}

	v, err := schema.NewValidator()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load event schema", err)
	}

	result, err := validateEvents(r, v, formatter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	if !result.Valid {
		return outputValidationProblems(formatter, result)
	}
	return formatter.Success(result, fmt.Sprintf("✓ %d event(s) valid\n", result.Events))
}

func validateEvents(r io.Reader, v *schema.Validator, formatter *OutputFormatter) (ValidationResult, error) {
	result := ValidationResult{Valid: true}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	var (
		line int
		prev *ir.Position
	)
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		result.Events++

		if err := v.Validate(data); err != nil {
			result.Problems = append(result.Problems, problemFor(line, err))
			continue
		}
		ev, err := ir.DecodeEvent(data)
		if err == nil {
			err = ev.Validate()
		}
		if err != nil {
			result.Problems = append(result.Problems, problemFor(line, err))
			continue
		}

		if prev != nil && !prev.Before(ev.Position) {
			result.Problems = append(result.Problems, Problem{
				Line:    line,
				Field:   "position",
				Message: fmt.Sprintf("position %s is not after %s", ev.Position, *prev),
			})
		}
		pos := ev.Position
		prev = &pos
		formatter.VerboseLog("line %d: %s at %s", line, ev.Kind, ev.Position)
	}
	if err := sc.Err(); err != nil {
		return result, err
	}

	result.Valid = len(result.Problems) == 0
	return result, nil
}

func problemFor(line int, err error) Problem {
	var se *ir.SchemaError
	if errors.As(err, &se) {
		return Problem{Line: line, Field: se.Field, Message: se.Reason}
	}
	return Problem{Line: line, Message: err.Error()}
}

func outputValidationProblems(formatter *OutputFormatter, result ValidationResult) error {
	msg := fmt.Sprintf("%d invalid line(s) in %d event(s)", len(result.Problems), result.Events)

	if formatter.Format == "json" {
		if err := formatter.Failure(ErrCodeInvalidEvents, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✗ %s\n", msg)
	for _, p := range result.Problems {
		if p.Field != "" {
			fmt.Fprintf(&b, "  line %d: %s: %s\n", p.Line, p.Field, p.Message)
		} else {
			fmt.Fprintf(&b, "  line %d: %s\n", p.Line, p.Message)
		}
	}
	fmt.Fprint(formatter.Writer, b.String())
	return NewExitError(ExitFailure, msg)
}
