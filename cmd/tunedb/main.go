// Package main is the CLI entry point for tunedb, a database of dedispersion
// auto-tuning results.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/whhaicheng/dedisp-tunedb/internal/app/usecase"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/config"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/report"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/schema"
	"github.com/whhaicheng/dedisp-tunedb/internal/infra/database"
	"github.com/whhaicheng/dedisp-tunedb/internal/infra/database/repository"
	infrareport "github.com/whhaicheng/dedisp-tunedb/internal/infra/report"
)

const Version = "1.0.0"

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	prog := "tunedb"
	if len(args) > 0 {
		prog = filepath.Base(args[0])
	}

	if len(args) < 2 {
		printSupported(stdout)
		return 1
	}

	name := args[1]
	switch name {
	case "version", "-v", "--version":
		fmt.Fprintf(stdout, "tunedb v%s\n", Version)
		return 0
	case "help", "-h", "--help":
		showHelp(stdout, prog)
		return 0
	}

	cmd, ok := lookupCommand(name)
	if !ok {
		fmt.Fprintln(stdout, "Unknown command.")
		printSupported(stdout)
		return 0
	}
	if cmd.arity != nil && !cmd.arity(len(args)-2) {
		fmt.Fprintf(stdout, "Usage: %s %s\n", prog, cmd.usage)
		return 1
	}

	cfg, cfgPath, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return 1
	}

	closeLog, err := setupLogging(cfg.Log, stderr)
	defer closeLog()
	if err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return 1
	}
	slog.Debug("tunedb started", "op", "main", "version", Version, "command", name, "config", cfgPath)

	// query_timeout bounds the whole command, tunnel and load included.
	ctx := context.Background()
	if cfg.Backend.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Backend.QueryTimeout)*time.Second)
		defer cancel()
	}

	a, err := newApp(ctx, cfg, stdout, stderr)
	if err != nil {
		slog.Error("Startup failed", "op", "main", "error", err)
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	return a.exec(ctx, prog, cmd, args[2:])
}

// app wires the use cases of one invocation.
type app struct {
	cfg    *config.Config
	db     *database.DB
	schema *usecase.SchemaUseCase
	query  *usecase.QueryUseCase
	output report.Generator
	stdout io.Writer
	stderr io.Writer
}

func newApp(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) (*app, error) {
	defaultVariant, err := schema.Lookup(cfg.Schema.DefaultVariant)
	if err != nil {
		return nil, err
	}
	output, err := infrareport.NewGenerator(report.Format(cfg.Output.Format))
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg.Backend, cfg.SSH)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		db:     db,
		schema: usecase.NewSchemaUseCase(repository.NewSQLTableRepository(db), defaultVariant),
		query:  usecase.NewQueryUseCase(repository.NewSQLResultsRepository(db)),
		output: output,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		slog.Warn("Close database failed", "op", "main", "error", err)
	}
}

func printSupported(w io.Writer) {
	fmt.Fprintf(w, "Supported commands are: %s\n", strings.Join(commandNames(), ", "))
}

func showHelp(w io.Writer, prog string) {
	fmt.Fprintf(w, `tunedb v%s - dedispersion auto-tuning results database

USAGE:
    %s <command> [arguments]

COMMANDS:
`, Version, prog)
	for _, cmd := range commands {
		fmt.Fprintf(w, "    %s\n", cmd.usage)
	}
	fmt.Fprintf(w, `    version
    help

<scenario...> is the scenario columns of the table's variant, in table order:
    opencl   (none)
    cuda     <channels> <samples>
    subband  <beams> <subBeams> <subbandingDMs> <subbands> <channels> <zappedChannels> <samples>

CONFIGURATION:
    $%s, or the first of: %s
`, config.EnvConfigPath, strings.Join(config.SearchPaths(), ", "))
}
