package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/whhaicheng/dedisp-tunedb/internal/app/usecase"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/report"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/scenario"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/schema"
	"github.com/whhaicheng/dedisp-tunedb/internal/infra/database"
)

// command is one CLI command.
type command struct {
	name string

	// usage is the generic usage line, without the program name.
	usage string

	// arity checks the argument count of commands whose arguments do not
	// depend on the table variant. nil for scenario commands.
	arity func(n int) bool

	// swallow is the expected backend error that ends the command with exit code 0.
	swallow error

	run func(ctx context.Context, a *app, args []string) (*report.Result, error)
}

const flagsUsage = "[local|cache] [split|cont]"

var createUsage = "create <table> [" + strings.Join(schema.Names(), "|") + "]"

var commands = []command{
	{
		name:    "create",
		usage:   createUsage,
		arity:   func(n int) bool { return n == 1 || n == 2 },
		swallow: database.ErrTableExists,
		run:     runCreate,
	},
	{
		name:  "list",
		usage: "list",
		arity: func(n int) bool { return n == 0 },
		run:   runList,
	},
	{
		name:    "delete",
		usage:   "delete <table>",
		arity:   func(n int) bool { return n == 1 },
		swallow: database.ErrTableNotFound,
		run:     runDelete,
	},
	{
		name:  "load",
		usage: "load <table> <input_file>",
		arity: func(n int) bool { return n == 2 },
		run:   runLoad,
	},
	{
		name:    "tune",
		usage:   "tune <table> <min|max> <scenario...> " + flagsUsage,
		swallow: database.ErrTableNotFound,
		run:     runTune(false),
	},
	{
		name:    "tuneNoReuse",
		usage:   "tuneNoReuse <table> <min|max> <scenario...> " + flagsUsage,
		swallow: database.ErrTableNotFound,
		run:     runTune(true),
	},
	{
		name:    "statistics",
		usage:   "statistics <table> <scenario...> " + flagsUsage,
		swallow: database.ErrTableNotFound,
		run:     runStatistics,
	},
	{
		name:    "histogram",
		usage:   "histogram <table> <scenario...> " + flagsUsage,
		swallow: database.ErrTableNotFound,
		run:     runHistogram,
	},
	{
		name:    "optimizationSpace",
		usage:   "optimizationSpace <table> <scenario...> " + flagsUsage,
		swallow: database.ErrTableNotFound,
		run:     runOptimizationSpace,
	},
	{
		name:    "singleParameterOptimizationSpace",
		usage:   "singleParameterOptimizationSpace <table> <parameter> <scenario...> " + flagsUsage,
		swallow: database.ErrTableNotFound,
		run:     runSingleParameterOptimizationSpace,
	},
	{
		name:    "speedup",
		usage:   "speedup <table> <reference_table> <scenario...>",
		swallow: database.ErrTableNotFound,
		run:     runSpeedup,
	},
	{
		name:    "speedupNoReuse",
		usage:   "speedupNoReuse <table> <scenario...>",
		swallow: database.ErrTableNotFound,
		run:     runSpeedupNoReuse,
	},
	{
		name:    "export",
		usage:   "export <table> <min|max>",
		arity:   func(n int) bool { return n == 2 },
		swallow: database.ErrTableNotFound,
		run:     runExport,
	},
	{
		name:    "snr",
		usage:   "snr <table>",
		arity:   func(n int) bool { return n == 1 },
		swallow: database.ErrTableNotFound,
		run:     runSNR,
	},
}

func lookupCommand(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func commandNames() []string {
	names := make([]string, len(commands))
	for i, cmd := range commands {
		names[i] = cmd.name
	}
	return names
}

// usageError reports a command line that does not match the command.
// cause, when set, says which argument was wrong.
type usageError struct {
	usage string
	cause error
}

func (e *usageError) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return "usage: " + e.usage
}

func (e *usageError) Unwrap() error {
	return e.cause
}

// exec runs cmd and renders its result on stdout.
func (a *app) exec(ctx context.Context, prog string, cmd command, args []string) int {
	res, err := cmd.run(ctx, a, args)

	var ue *usageError
	switch {
	case err == nil:
	case errors.As(err, &ue):
		if ue.cause != nil {
			fmt.Fprintf(a.stdout, "Error: %v\n", ue.cause)
		}
		fmt.Fprintf(a.stdout, "Usage: %s %s\n", prog, ue.usage)
		return 1
	case cmd.swallow != nil && errors.Is(err, cmd.swallow):
		slog.Info("Command ended on expected error", "op", cmd.name, "error", err)
		return 0
	default:
		slog.Error("Command failed", "op", cmd.name, "error", err)
		fmt.Fprintf(a.stdout, "Error: %v\n", err)
		return 1
	}

	if res == nil {
		return 0
	}
	if err := a.output.Generate(a.stdout, res); err != nil {
		slog.Error("Write output failed", "op", cmd.name, "error", err)
		return 1
	}
	return 0
}

func runCreate(ctx context.Context, a *app, args []string) (*report.Result, error) {
	var variant string
	if len(args) == 2 {
		variant = args[1]
	}
	if _, err := a.schema.CreateTable(ctx, args[0], variant); err != nil {
		if errors.Is(err, schema.ErrUnknownVariant) || errors.Is(err, database.ErrInvalidIdentifier) {
			return nil, &usageError{usage: createUsage, cause: err}
		}
		return nil, err
	}
	return nil, nil
}

func runList(ctx context.Context, a *app, _ []string) (*report.Result, error) {
	tables, err := a.schema.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	return report.FromTables("list", tables), nil
}

func runDelete(ctx context.Context, a *app, args []string) (*report.Result, error) {
	return nil, a.schema.DeleteTable(ctx, args[0])
}

func runLoad(ctx context.Context, a *app, args []string) (*report.Result, error) {
	var opts usecase.LoadOptions
	if a.cfg.Load.Progress {
		opts.Progress = a.stderr
	}
	_, err := a.schema.LoadFile(ctx, args[0], args[1], opts)
	return nil, err
}

// queryArgs is a parsed scenario command line.
type queryArgs struct {
	sel  usecase.Selection
	lead []string
}

// parseQuery parses "<table> <lead...> <scenario...> [flags]". The variant of
// the table decides how many scenario values follow.
func (a *app) parseQuery(ctx context.Context, name string, args []string, lead []string, withFlags bool) (*queryArgs, error) {
	if len(args) < 1 {
		return nil, &usageError{usage: a.queryUsage(name, lead, a.defaultVariant(), withFlags)}
	}

	table := args[0]
	v, err := a.schema.ResolveVariant(ctx, table)
	if err != nil {
		return nil, err
	}
	usage := a.queryUsage(name, lead, v, withFlags)

	rest := args[1:]
	n := len(lead) + len(v.ScenarioColumns())
	maxFlags := 0
	if withFlags {
		maxFlags = 2
	}
	if len(rest) < n || len(rest) > n+maxFlags {
		return nil, &usageError{usage: usage}
	}

	filter, err := scenario.Build(v, rest[len(lead):n])
	if err != nil {
		return nil, &usageError{usage: usage, cause: err}
	}
	flags, err := scenario.ParseFlags(rest[n:])
	if err != nil {
		return nil, &usageError{usage: usage, cause: err}
	}
	if _, err := flags.Predicates(v); err != nil {
		return nil, &usageError{usage: usage, cause: err}
	}

	return &queryArgs{
		sel:  usecase.Selection{Table: table, Variant: v, Scenario: filter, Flags: flags},
		lead: rest[:len(lead)],
	}, nil
}

// queryUsage renders the usage line of a scenario command for variant v.
func (a *app) queryUsage(name string, lead []string, v *schema.Variant, withFlags bool) string {
	parts := append([]string{name, "<table>"}, lead...)
	for _, c := range v.ScenarioColumns() {
		parts = append(parts, "<"+c+">")
	}
	if withFlags {
		if v.MemoryColumn != "" {
			parts = append(parts, "[local|cache]")
		}
		if v.SplitColumn != "" {
			parts = append(parts, "[split|cont]")
		}
	}
	return strings.Join(parts, " ")
}

func (a *app) defaultVariant() *schema.Variant {
	v, err := schema.Lookup(a.cfg.Schema.DefaultVariant)
	if err != nil {
		v, _ = schema.Lookup(schema.VariantCUDA)
	}
	return v
}

func runTune(noReuse bool) func(context.Context, *app, []string) (*report.Result, error) {
	name := "tune"
	if noReuse {
		name = "tuneNoReuse"
	}
	return func(ctx context.Context, a *app, args []string) (*report.Result, error) {
		q, err := a.parseQuery(ctx, name, args, []string{"<min|max>"}, true)
		if err != nil {
			return nil, err
		}

		tune := a.query.Tune
		if noReuse {
			tune = a.query.TuneNoReuse
		}
		rows, err := tune(ctx, q.sel, q.lead[0])
		if err != nil {
			return nil, err
		}
		return report.FromRows(name, q.sel.Table, rows), nil
	}
}

func runStatistics(ctx context.Context, a *app, args []string) (*report.Result, error) {
	q, err := a.parseQuery(ctx, "statistics", args, nil, true)
	if err != nil {
		return nil, err
	}
	stats, err := a.query.Statistics(ctx, q.sel)
	if err != nil {
		return nil, err
	}
	return report.FromStatistics("statistics", q.sel.Table, stats), nil
}

func runHistogram(ctx context.Context, a *app, args []string) (*report.Result, error) {
	q, err := a.parseQuery(ctx, "histogram", args, nil, true)
	if err != nil {
		return nil, err
	}
	histograms, err := a.query.Histogram(ctx, q.sel)
	if err != nil {
		return nil, err
	}
	return report.FromHistograms("histogram", q.sel.Table, histograms), nil
}

func runOptimizationSpace(ctx context.Context, a *app, args []string) (*report.Result, error) {
	q, err := a.parseQuery(ctx, "optimizationSpace", args, nil, true)
	if err != nil {
		return nil, err
	}
	rows, err := a.query.OptimizationSpace(ctx, q.sel)
	if err != nil {
		return nil, err
	}
	return report.FromRows("optimizationSpace", q.sel.Table, rows), nil
}

func runSingleParameterOptimizationSpace(ctx context.Context, a *app, args []string) (*report.Result, error) {
	const name = "singleParameterOptimizationSpace"
	q, err := a.parseQuery(ctx, name, args, []string{"<parameter>"}, true)
	if err != nil {
		return nil, err
	}

	parameter := q.lead[0]
	spaces, err := a.query.SingleParameterOptimizationSpace(ctx, q.sel, parameter)
	if errors.Is(err, usecase.ErrUnknownParameter) {
		return nil, &usageError{usage: a.queryUsage(name, []string{"<parameter>"}, q.sel.Variant, true), cause: err}
	}
	if err != nil {
		return nil, err
	}
	return report.FromParameterSpaces(name, q.sel.Table, parameter, spaces), nil
}

func runSpeedup(ctx context.Context, a *app, args []string) (*report.Result, error) {
	q, err := a.parseQuery(ctx, "speedup", args, []string{"<reference_table>"}, false)
	if err != nil {
		return nil, err
	}

	reference := q.lead[0]
	refVariant, err := a.schema.ResolveVariant(ctx, reference)
	if err != nil {
		return nil, err
	}
	speedups, err := a.query.Speedup(ctx, q.sel, reference, refVariant)
	if errors.Is(err, usecase.ErrIncompatibleReference) {
		return nil, &usageError{usage: a.queryUsage("speedup", []string{"<reference_table>"}, q.sel.Variant, false), cause: err}
	}
	if err != nil {
		return nil, err
	}
	return report.FromSpeedups("speedup", q.sel.Table, speedups), nil
}

func runSpeedupNoReuse(ctx context.Context, a *app, args []string) (*report.Result, error) {
	q, err := a.parseQuery(ctx, "speedupNoReuse", args, nil, false)
	if err != nil {
		return nil, err
	}
	speedups, err := a.query.SpeedupNoReuse(ctx, q.sel)
	if err != nil {
		return nil, err
	}
	return report.FromSpeedups("speedupNoReuse", q.sel.Table, speedups), nil
}

func runExport(ctx context.Context, a *app, args []string) (*report.Result, error) {
	v, err := a.schema.ResolveVariant(ctx, args[0])
	if err != nil {
		return nil, err
	}
	rows, err := a.query.Export(ctx, args[0], v, args[1])
	if err != nil {
		return nil, err
	}
	return report.FromRows("export", args[0], rows), nil
}

func runSNR(ctx context.Context, a *app, args []string) (*report.Result, error) {
	v, err := a.schema.ResolveVariant(ctx, args[0])
	if err != nil {
		return nil, err
	}
	points, err := a.query.SNR(ctx, args[0], v)
	if err != nil {
		return nil, err
	}
	return report.FromSNR("snr", args[0], points), nil
}
