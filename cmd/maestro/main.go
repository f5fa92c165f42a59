// Command maestro runs workflow definitions from the command line.
//
// Subcommands:
//
//	run        execute a workflow definition file
//	validate   parse and validate a definition without executing it
//	list       list persisted executions
//	inspect    show one execution record as JSON
//	resume     restore an execution from a checkpoint and continue it
//
// Exit codes: 0 on success, 1 on runtime failure, 2 when the definition
// does not parse or validate.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/xraph/maestro"
	"github.com/xraph/maestro/definition"
	"github.com/xraph/maestro/engine"
	"github.com/xraph/maestro/execution"
	"github.com/xraph/maestro/id"
	"github.com/xraph/maestro/observability"
	"github.com/xraph/maestro/store"
	bunstore "github.com/xraph/maestro/store/bun"
	memorystore "github.com/xraph/maestro/store/memory"
	redisstore "github.com/xraph/maestro/store/redis"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitInvalid = 2
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitInvalid)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var code int
	switch os.Args[1] {
	case "run":
		code = cmdRun(ctx, os.Args[2:])
	case "validate":
		code = cmdValidate(os.Args[2:])
	case "list":
		code = cmdList(ctx, os.Args[2:])
	case "inspect":
		code = cmdInspect(ctx, os.Args[2:])
	case "resume":
		code = cmdResume(ctx, os.Args[2:])
	default:
		usage()
		code = exitInvalid
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: maestro <run|validate|list|inspect|resume> [flags]")
}

// storeFlags holds the backend selection shared by the subcommands.
type storeFlags struct {
	backend  string
	redis    string
	postgres string
}

func (f *storeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.backend, "store", "memory", "store backend: memory, redis, or postgres")
	fs.StringVar(&f.redis, "redis-addr", "localhost:6379", "redis address for -store redis")
	fs.StringVar(&f.postgres, "postgres-dsn", "", "postgres DSN for -store postgres")
}

// open builds the selected backend behind the composite store
// interface; the cleanup closes whatever client the backend rides on.
func (f *storeFlags) open(ctx context.Context, logger *slog.Logger) (store.Store, func(), error) {
	switch f.backend {
	case "memory":
		return memorystore.New(), func() {}, nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: f.redis})
		s := redisstore.New(client, redisstore.WithLogger(logger))
		if err := s.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return s, func() { _ = client.Close() }, nil
	case "postgres":
		if f.postgres == "" {
			return nil, nil, fmt.Errorf("-postgres-dsn is required for -store postgres")
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(f.postgres)))
		db := bun.NewDB(sqldb, pgdialect.New())
		s := bunstore.New(db, bunstore.WithLogger(logger))
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return s, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", f.backend)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func formatFor(path, override string) definition.Format {
	if override != "" {
		return definition.Format(override)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return definition.FormatJSON
	default:
		return definition.FormatYAML
	}
}

func cmdRun(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	format := fs.String("format", "", "definition format (yaml or json, default by extension)")
	policy := fs.String("failure-policy", string(maestro.FailFast), "fail_fast or best_effort")
	verbose := fs.Bool("v", false, "debug logging")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: maestro run [flags] <definition-file>")
		return exitInvalid
	}
	path := fs.Arg(0)
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read definition: %v\n", err)
		return exitInvalid
	}

	logger := newLogger(*verbose)
	st, closeStore, err := sf.open(ctx, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntime
	}
	defer closeStore()

	eng, err := engine.New(st, echoInvoker{},
		engine.WithLogger(logger),
		engine.WithFailurePolicy(maestro.FailurePolicy(*policy)),
		engine.WithExtension(observability.NewMetricsExtension()),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntime
	}
	defer eng.Shutdown(ctx)

	rec, err := eng.Run(ctx, raw, formatFor(path, *format))
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return exitRuntime
	}
	return report(rec)
}

func cmdValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	format := fs.String("format", "", "definition format (yaml or json, default by extension)")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: maestro validate [flags] <definition-file>")
		return exitInvalid
	}
	path := fs.Arg(0)
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read definition: %v\n", err)
		return exitInvalid
	}

	wf, err := definition.Parse(raw, formatFor(path, *format))
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse: %v\n", err)
		return exitInvalid
	}
	if res := definition.Validate(wf); !res.Valid {
		fmt.Fprintf(os.Stderr, "invalid: %s\n", wf.ID)
		for _, e := range res.Errors {
			fmt.Fprintf(os.Stderr, "- %s\n", e)
		}
		return exitInvalid
	}
	fmt.Printf("OK: %s (%d steps)\n", wf.ID, len(wf.Steps))
	return exitOK
}

func cmdList(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	state := fs.String("state", "", "filter by lifecycle state")
	limit := fs.Int("limit", 20, "max records")
	_ = fs.Parse(args)

	logger := newLogger(false)
	st, closeStore, err := sf.open(ctx, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntime
	}
	defer closeStore()

	recs, err := st.ListExecutions(ctx, execution.ListOpts{State: *state, Limit: *limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "list: %v\n", err)
		return exitRuntime
	}
	for _, rec := range recs {
		fmt.Printf("%s\t%s\t%s\t%d/%d steps\n",
			rec.ID, rec.WorkflowID, rec.State,
			rec.Metrics.CompletedSteps, rec.Metrics.TotalSteps)
	}
	return exitOK
}

func cmdInspect(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: maestro inspect [flags] <execution-id>")
		return exitInvalid
	}
	execID, err := id.ParseExecutionID(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid execution id: %v\n", err)
		return exitInvalid
	}

	logger := newLogger(false)
	st, closeStore, err := sf.open(ctx, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntime
	}
	defer closeStore()

	rec, err := st.GetExecution(ctx, execID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		return exitRuntime
	}
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		return exitRuntime
	}
	fmt.Println(string(out))
	return exitOK
}

func cmdResume(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	policy := fs.String("failure-policy", string(maestro.FailFast), "fail_fast or best_effort")
	verbose := fs.Bool("v", false, "debug logging")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: maestro resume [flags] <checkpoint-id>")
		return exitInvalid
	}
	cpID, err := id.ParseCheckpointID(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid checkpoint id: %v\n", err)
		return exitInvalid
	}

	logger := newLogger(*verbose)
	st, closeStore, err := sf.open(ctx, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntime
	}
	defer closeStore()

	eng, err := engine.New(st, echoInvoker{},
		engine.WithLogger(logger),
		engine.WithFailurePolicy(maestro.FailurePolicy(*policy)),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRuntime
	}
	defer eng.Shutdown(ctx)

	rec, err := eng.Restore(ctx, cpID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resume: %v\n", err)
		return exitRuntime
	}
	return report(rec)
}

// report prints the terminal record and maps it to an exit code.
func report(rec *execution.Record) int {
	switch rec.State {
	case "completed":
		fmt.Printf("completed: %s (%d/%d steps)\n",
			rec.ID, rec.Metrics.CompletedSteps, rec.Metrics.TotalSteps)
		if len(rec.Result) > 0 {
			fmt.Println(string(rec.Result))
		}
		return exitOK
	case "cancelled":
		fmt.Printf("cancelled: %s\n", rec.ID)
		return exitRuntime
	default:
		fmt.Fprintf(os.Stderr, "%s: %s [%s] %s\n", rec.State, rec.ID, rec.ErrorCode, rec.Error)
		switch rec.ErrorCode {
		case execution.CodeParseError, execution.CodeSchemaError, execution.CodeValidationError, execution.CodeCycleError:
			return exitInvalid
		default:
			return exitRuntime
		}
	}
}
