package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vidindex/internal/config"
	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/testutil"
)

// execute runs the root command with args and stdin and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	clearEnv(t)

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// clearEnv keeps the caller's VIDINDEX_* variables out of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{config.EnvDatabase, config.EnvLogLevel, config.EnvMetricsAddr} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// jsonl renders events one canonical JSON object per line.
func jsonl(t *testing.T, events ...ir.Event) string {
	t.Helper()
	var b strings.Builder
	for _, ev := range events {
		line, err := ev.Canonical()
		require.NoError(t, err)
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// sampleEvents is a small history: two videos by two channels, tips,
// a like, a comment and a report.
func sampleEvents() []ir.Event {
	l := testutil.NewLedger()
	return []ir.Event{
		l.VideoAdded(1, testutil.Addr(1), "Sunset"),
		l.VideoAdded(2, testutil.Addr(2), "Harbour"),
		l.Tipped(1, 1, "500", testutil.Addr(3)),
		l.Tipped(2, 1, "700", testutil.Addr(4)),
		l.LikeToggled(2, testutil.Addr(3)),
		l.Commented(1, 2, testutil.Addr(4), "lovely"),
		l.Reported(1, 1, 2, testutil.Addr(5)),
	}
}

// indexedDB indexes sampleEvents into a fresh database file.
func indexedDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "index.db")
	_, err := execute(t, jsonl(t, sampleEvents()...), "index", "--db", db)
	require.NoError(t, err)
	return db
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"index", "replay", "query", "status", "validate", "test"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"verbose", "format", "config", "log-format", "db"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing flag --%s", name)
	}
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestRootCommand_RejectsInvalidFormat(t *testing.T) {
	_, err := execute(t, "", "status", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootCommand_RejectsInvalidLogFormat(t *testing.T) {
	_, err := execute(t, "", "status", "--log-format", "logfmt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log format "logfmt"`)
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("JSON"))
}

func TestSettings_ConfigFileAndFlags(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "vidindex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: from-file.db\nlog_level: warn\n"), 0o644))

	opts := &RootOptions{ConfigPath: path}
	cfg, err := opts.settings()
	require.NoError(t, err)
	assert.Equal(t, "from-file.db", cfg.Database)
	assert.Equal(t, "warn", cfg.LogLevel)

	opts = &RootOptions{ConfigPath: path, Database: "flag.db", Verbose: true, LogFormat: "json"}
	cfg, err = opts.settings()
	require.NoError(t, err)
	assert.Equal(t, "flag.db", cfg.Database)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestSettings_BadConfigIsCommandError(t *testing.T) {
	clearEnv(t)
	opts := &RootOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}
	_, err := opts.settings()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSettings_FlagsOverrideInvalidEnvBeforeValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvLogLevel, "bogus")

	opts := &RootOptions{Verbose: true}
	cfg, err := opts.settings()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = (&RootOptions{}).settings()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid config")

	dir := t.TempDir()
	path := filepath.Join(dir, "vidindex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_format: xml\n"), 0o644))
	clearEnv(t)
	cfg, err = (&RootOptions{ConfigPath: path, LogFormat: "json"}).settings()
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestRootCommand_VerboseOverridesBadEnvLevel(t *testing.T) {
	db := filepath.Join(t.TempDir(), "index.db")
	t.Setenv(config.EnvLogLevel, "bogus")

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(jsonl(t, sampleEvents()...)))
	cmd.SetArgs([]string{"index", "--db", db, "--verbose"})

	require.NoError(t, cmd.Execute())
}
