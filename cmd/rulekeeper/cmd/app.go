package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/core/config"
	"github.com/solatis/rulekeeper/internal/core/db"
	"github.com/solatis/rulekeeper/internal/logging"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/store"
	"github.com/solatis/rulekeeper/internal/types"
)

// app bundles what most subcommands need: configuration, a logger and an
// open store.
type app struct {
	cfg    *config.ServiceConfig
	logger *slog.Logger
	store  *store.SQLStore
}

// loadServiceConfig reads config and applies persistent flag overrides.
func loadServiceConfig(cmd *cobra.Command, opts *rootOptions) (*config.ServiceConfig, error) {
	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db-url") {
		cfg.Database.URL = opts.dbURL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp loads config and opens the datastore. Callers must Close.
func openApp(ctx context.Context, cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := loadServiceConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithWriter(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())

	conn, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	st, err := store.NewSQLStore(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}

	return &app{cfg: cfg, logger: logger, store: st}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// engine builds a rule engine over the app store.
func (a *app) engine(rec rules.Recorder) (*rules.Engine, error) {
	policy, err := rules.ParseCountPolicy(a.cfg.Engine.CountPolicy)
	if err != nil {
		return nil, err
	}
	var audit rules.AuditLog
	if a.cfg.Engine.Audit {
		audit = a.store
	}
	return rules.NewEngine(a.store, a.store, audit,
		rules.WithLogger(a.logger),
		rules.WithRecorder(rec),
		rules.WithCountPolicy(policy),
	), nil
}

// requireMigrated fails when schema migrations are pending.
func (a *app) requireMigrated(ctx context.Context) error {
	statuses, err := db.MigrateStatus(ctx, a.store.DB())
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'rulekeeper migrate' first", s.ID)
		}
	}
	return nil
}

// contextFlags registers --context and --context-file on cmd.
func contextFlags(cmd *cobra.Command, inline, file *string) {
	cmd.Flags().StringVar(inline, "context", "{}", "rule context as a JSON object")
	cmd.Flags().StringVar(file, "context-file", "", "read the rule context from a JSON file ('-' for stdin)")
}

// readContext decodes the rule context from the file (or stdin) when given,
// else from the inline JSON.
func readContext(cmd *cobra.Command, inline, file string) (types.Context, error) {
	data := []byte(inline)
	switch file {
	case "":
	case "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read context from stdin: %w", err)
		}
		data = b
	default:
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read context file: %w", err)
		}
		data = b
	}

	rc, err := types.DecodeContext(data)
	if err != nil {
		return nil, fmt.Errorf("context must be a JSON object: %w", err)
	}
	return rc, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
