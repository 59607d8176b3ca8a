package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupCLI points the CLI at a fresh sqlite database and returns a runner.
func setupCLI(t *testing.T, extra string) func(args ...string) (int, string) {
	t.Helper()
	dir := t.TempDir()

	cfg := fmt.Sprintf(`{"backend": {"type": "sqlite", "path": %q}, "log": {"level": "debug"}%s}`,
		filepath.Join(dir, "results.db"), extra)
	cfgPath := filepath.Join(dir, "tunedb.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	t.Setenv("TUNEDB_CONFIG", cfgPath)

	return func(args ...string) (int, string) {
		var stdout, stderr bytes.Buffer
		code := run(append([]string{"tunedb"}, args...), &stdout, &stderr)
		return code, stdout.String()
	}
}

func writeResults(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestRun_NoCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"tunedb"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "Supported commands are: create, list, delete, load, tune")
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"tunedb", "frobnicate"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout.String(), "Unknown command.\nSupported commands are:"))
}

func TestRun_VersionAndHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"tunedb", "version"}, &stdout, &stderr))
	assert.Equal(t, "tunedb v"+Version+"\n", stdout.String())

	stdout.Reset()
	assert.Equal(t, 0, run([]string{"tunedb", "help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "singleParameterOptimizationSpace <table> <parameter>")
}

func TestRun_FixedArity(t *testing.T) {
	tunedb := setupCLI(t, "")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"create"}, "Usage: tunedb create <table> [cuda|opencl|subband]\n"},
		{[]string{"list", "extra"}, "Usage: tunedb list\n"},
		{[]string{"delete"}, "Usage: tunedb delete <table>\n"},
		{[]string{"load", "titan"}, "Usage: tunedb load <table> <input_file>\n"},
		{[]string{"export", "titan"}, "Usage: tunedb export <table> <min|max>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			code, out := tunedb(tt.args...)
			assert.Equal(t, 1, code)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRun_SchemaLifecycle(t *testing.T) {
	tunedb := setupCLI(t, "")

	code, out := tunedb("create", "titan")
	require.Equal(t, 0, code, out)
	assert.Empty(t, out)

	code, out = tunedb("create", "titan")
	assert.Equal(t, 0, code, "existing table is not an error")
	assert.Empty(t, out)

	code, out = tunedb("create", "hd7970", "opencl")
	require.Equal(t, 0, code, out)

	code, out = tunedb("create", "x", "vulkan")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Usage: tunedb create")

	code, out = tunedb("list")
	require.Equal(t, 0, code)
	assert.Equal(t, "hd7970\ntitan\n", out)

	code, out = tunedb("delete", "hd7970")
	require.Equal(t, 0, code, out)
	code, out = tunedb("delete", "hd7970")
	assert.Equal(t, 0, code, "missing table is not an error")
	assert.Empty(t, out)

	code, out = tunedb("list")
	require.Equal(t, 0, code)
	assert.Equal(t, "titan\n", out)
}

func TestRun_Queries(t *testing.T) {
	tunedb := setupCLI(t, "")

	code, out := tunedb("create", "titan", "cuda")
	require.Equal(t, 0, code, out)

	file := writeResults(t,
		"# DMs channels samples splitSeconds local unroll samplesPerBlock DMsPerBlock samplesPerThread DMsPerThread GFLOPs time time_err cov",
		"10 4 256 0 1 1 32 2 4 2 50 4.0 0.1 0.01",
		"10 4 256 0 0 1 64 1 4 1 60 2.0 0.1 0.01",
		"10 4 256 1 1 2 32 1 2 1 40 8.0 0.1 0.01",
		"5 4 256 0 1 1 32 2 4 2 100 2.0 0.1 0.01",
		"5 4 256 0 1 1 32 1 4 1 25 8.0 0.1 0.01",
	)
	code, out = tunedb("load", "titan", file)
	require.Equal(t, 0, code, out)

	t.Run("statistics", func(t *testing.T) {
		code, out := tunedb("statistics", "titan", "4", "256", "local")
		require.Equal(t, 0, code, out)
		lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "5 25.0 100.0 62.5 37.5 1.0"), lines[0])
		assert.Equal(t, "10 40.0 50.0 45.0 5.0 1.0", lines[1])
	})

	t.Run("tune", func(t *testing.T) {
		code, out := tunedb("tune", "titan", "max", "4", "256")
		require.Equal(t, 0, code, out)
		assert.Equal(t, "5 0 1 1 32 2 4 2 100.0 2.0 0.1 0.01\n10 0 0 1 64 1 4 1 60.0 2.0 0.1 0.01\n", out)

		code, out = tunedb("tune", "titan", "avg", "4", "256")
		assert.Equal(t, 0, code)
		assert.Empty(t, out)
	})

	t.Run("singleParameterOptimizationSpace groups", func(t *testing.T) {
		code, out := tunedb("singleParameterOptimizationSpace", "titan", "unroll", "4", "256")
		require.Equal(t, 0, code, out)
		assert.Equal(t, "1 100.0\n\n1 60.0\n2 40.0\n", out)
	})

	t.Run("speedupNoReuse", func(t *testing.T) {
		code, out := tunedb("speedupNoReuse", "titan", "4", "256")
		require.Equal(t, 0, code, out)
		assert.Equal(t, "5 4.0\n10 1.0\n", out)
	})

	t.Run("usage errors", func(t *testing.T) {
		code, out := tunedb("statistics", "titan", "4")
		assert.Equal(t, 1, code)
		assert.Equal(t, "Usage: tunedb statistics <table> <channels> <samples> [local|cache] [split|cont]\n", out)

		code, out = tunedb("statistics", "titan", "4", "x")
		assert.Equal(t, 1, code)
		assert.Contains(t, out, "invalid scenario")

		code, out = tunedb("histogram", "titan", "4", "256", "local", "cache")
		assert.Equal(t, 1, code)
		assert.Contains(t, out, "Usage:")

		code, out = tunedb("singleParameterOptimizationSpace", "titan", "channels", "4", "256")
		assert.Equal(t, 1, code)
		assert.Contains(t, out, "unknown tuning parameter")

		code, out = tunedb("speedup", "titan")
		assert.Equal(t, 1, code)
		assert.Equal(t, "Usage: tunedb speedup <table> <reference_table> <channels> <samples>\n", out)
	})

	t.Run("missing table", func(t *testing.T) {
		code, out := tunedb("statistics", "absent", "4", "256")
		assert.Equal(t, 0, code)
		assert.Empty(t, out)
	})

	t.Run("load failure", func(t *testing.T) {
		bad := writeResults(t, "10 4 256 0 1 1 32 2 4 2 50 4.0 0.1")
		code, out := tunedb("load", "titan", bad)
		assert.Equal(t, 1, code)
		assert.True(t, strings.HasPrefix(out, "Error: "), out)
		assert.Contains(t, out, "line 1")
	})
}

func TestRun_Histogram(t *testing.T) {
	tunedb := setupCLI(t, "")

	code, out := tunedb("create", "titan", "cuda")
	require.Equal(t, 0, code, out)
	code, out = tunedb("load", "titan", writeResults(t,
		"10 4 256 0 1 1 32 2 4 2 1.5 4.0 0.1 0.01",
		"10 4 256 0 1 1 64 2 4 2 2.2 4.0 0.1 0.01",
		"10 4 256 0 0 1 64 2 4 2 2.7 4.0 0.1 0.01",
		"20 4 256 0 1 1 32 2 4 2 0.5 4.0 0.1 0.01",
	))
	require.Equal(t, 0, code, out)

	code, out = tunedb("histogram", "titan", "4", "256")
	require.Equal(t, 0, code, out)
	assert.Equal(t, "0 0\n1 1\n2 2\n\n0 1\n", out)

	code, out = tunedb("histogram", "titan", "4", "256", "local")
	require.Equal(t, 0, code, out)
	assert.Equal(t, "0 0\n1 1\n2 1\n\n0 1\n", out)

	code, out = tunedb("load", "titan", writeResults(t, "30 4 256 0 1 1 32 2 4 2 1e19 4.0 0.1 0.01"))
	require.Equal(t, 0, code, out)

	code, out = tunedb("histogram", "titan", "4", "256")
	assert.Equal(t, 1, code)
	assert.True(t, strings.HasPrefix(out, "Error: "), out)
	assert.Contains(t, out, "histogram too large")
}

func TestRun_JSONOutput(t *testing.T) {
	tunedb := setupCLI(t, `, "output": {"format": "json"}`)

	code, out := tunedb("create", "hd7970", "opencl")
	require.Equal(t, 0, code, out)
	code, out = tunedb("load", "hd7970", writeResults(t, "256 32 2 4 4 95.4 1.2 0.0021 0.0001"))
	require.Equal(t, 0, code, out)

	code, out = tunedb("snr", "hd7970")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, `"command": "snr"`)
	assert.Contains(t, out, "null", "single row has an undefined snr")

	code, out = tunedb("statistics", "hd7970", "cache")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Usage: tunedb statistics <table>\n")
}

func TestRun_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tunedb.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"backend": {"type": "db2"}}`), 0o644))
	t.Setenv("TUNEDB_CONFIG", cfgPath)

	var stdout, stderr bytes.Buffer
	code := run([]string{"tunedb", "list"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "Error: ")
}
