// Command kodus-admin provides operational tooling for the review pipeline:
// running migrations and inspecting the webhook queue.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/config"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/bootstrap"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/data"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultMigrationTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2)
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2)
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1)
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1)
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrationsCmd,
		},
		"queue-stats": {
			name:        "queue-stats",
			description: "Show webhook queue depth per lifecycle state",
			run:         runQueueStats,
		},
		"queue-inspect": {
			name:        "queue-inspect",
			description: "Inspect a webhook job by correlation id",
			run:         runQueueInspect,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: kodus-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if err := writef(os.Stdout, "  %-16s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

type queueStatsOptions struct {
	RawJSON bool
}

type queueInspectOptions struct {
	CorrelationID string
	RawJSON       bool
}

func runMigrationsCmd(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx.Logger, db)

	cmdCtx.Logger.Info("running database migrations")

	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}

	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func runQueueStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseQueueStatsFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 30*time.Second)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx.Logger, db)

	repo := data.NewWebhookJobRepo(db, data.WebhookJobRepoConfig{Logger: cmdCtx.Logger})
	stats, err := repo.Stats(ctx)
	if err != nil {
		return fmt.Errorf("queue stats: %w", err)
	}

	if opts.RawJSON {
		return printJSON(os.Stdout, stats)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(w, "STATE\tJOBS\n"); err != nil {
		return err
	}
	rows := []struct {
		state string
		count int
	}{
		{"pending", stats.Pending},
		{"running", stats.Running},
		{"completed", stats.Completed},
		{"failed", stats.Failed},
	}
	for _, row := range rows {
		if err := writef(w, "%s\t%d\n", row.state, row.count); err != nil {
			return err
		}
	}
	return w.Flush()
}

func runQueueInspect(cmdCtx *commandContext, args []string) error {
	opts, err := parseQueueInspectFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 30*time.Second)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx.Logger, db)

	repo := data.NewWebhookJobRepo(db, data.WebhookJobRepoConfig{Logger: cmdCtx.Logger})
	job, err := repo.GetByCorrelationID(ctx, opts.CorrelationID)
	if err != nil {
		if errors.Is(err, data.ErrWebhookJobNotFound) {
			return fmt.Errorf("no webhook job with correlation id %q", opts.CorrelationID)
		}
		return fmt.Errorf("get webhook job: %w", err)
	}

	if opts.RawJSON {
		return printJSON(os.Stdout, job)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	lastError := ""
	if job.LastError != nil {
		lastError = *job.LastError
	}
	fields := []struct {
		name  string
		value any
	}{
		{"correlation_id", job.CorrelationID},
		{"platform", job.Metadata.PlatformType},
		{"event", job.Metadata.Event},
		{"status", job.Status},
		{"retry_count", job.RetryCount},
		{"max_retries", job.MaxRetries},
		{"scheduled_at", job.ScheduledAt.Format(time.RFC3339)},
		{"last_error", lastError},
	}
	for _, f := range fields {
		if err := writef(w, "%s\t%v\n", f.name, f.value); err != nil {
			return err
		}
	}
	return w.Flush()
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{
		Timeout: defaultMigrationTimeout,
	}

	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}

	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func parseQueueStatsFlags(args []string) (queueStatsOptions, error) {
	fs := flag.NewFlagSet("queue-stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := queueStatsOptions{}
	fs.BoolVar(&opts.RawJSON, "json", false, "Print stats as JSON")

	if err := fs.Parse(args); err != nil {
		return queueStatsOptions{}, err
	}
	return opts, nil
}

func parseQueueInspectFlags(args []string) (queueInspectOptions, error) {
	fs := flag.NewFlagSet("queue-inspect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := queueInspectOptions{}
	fs.StringVar(&opts.CorrelationID, "correlation-id", "", "Correlation id of the webhook job to inspect")
	fs.BoolVar(&opts.RawJSON, "json", false, "Print the job as JSON")

	if err := fs.Parse(args); err != nil {
		return queueInspectOptions{}, err
	}
	if opts.CorrelationID == "" {
		return queueInspectOptions{}, errors.New("--correlation-id is required")
	}
	return opts, nil
}

func connectDB(cmdCtx *commandContext) (*sql.DB, error) {
	db, err := bootstrap.ConnectDB(cmdCtx.Config.Postgres, cmdCtx.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return db, nil
}

func closeDB(logger *slog.Logger, db *sql.DB) {
	if err := db.Close(); err != nil {
		logger.Warn("db close failed", "error", err)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
