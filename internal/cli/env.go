package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/onboarding/internal/catalog"
	"github.com/roach88/onboarding/internal/config"
	"github.com/roach88/onboarding/internal/engine"
	"github.com/roach88/onboarding/internal/model"
	"github.com/roach88/onboarding/internal/notify"
	"github.com/roach88/onboarding/internal/onboarding"
	"github.com/roach88/onboarding/internal/store"
)

// environment is everything a command needs to act on one partition of
// one database.
type environment struct {
	cfg       *config.Config
	partition model.Partition
	logger    *slog.Logger
	store     *store.Store
	outbox    *store.Outbox
	catalogs  catalog.Provider
	service   *onboarding.Service
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// resolveConfig loads the config file, if any, and applies flag overrides.
func resolveConfig(opts *RootOptions) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Partition != "" {
		cfg.Partition = opts.Partition
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// buildCatalog chains the catalog sources: templates imported into the
// database win, then the configured file, then the built-in templates.
func buildCatalog(cfg *config.Config, st *store.Store, logger *slog.Logger) (catalog.Provider, error) {
	var fallback catalog.Provider = catalog.Static{}
	if cfg.Catalog.Builtin {
		fallback = catalog.Static{Templates: catalog.DefaultTemplates()}
	}
	if cfg.Catalog.Path != "" {
		set, err := catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		fallback = catalog.Fallback{Primary: set, Default: fallback, Logger: logger}
	}
	return catalog.Fallback{
		Primary: store.CategoryProvider{Store: st},
		Default: fallback,
		Logger:  logger,
	}, nil
}

func buildSink(cfg *config.Config, outbox *store.Outbox, logger *slog.Logger) notify.Sink {
	switch cfg.Notify.Sink {
	case config.SinkLog:
		return notify.LogSink{Logger: logger}
	case config.SinkNone:
		return notify.Discard
	}
	return outbox
}

// openEnv wires config, store, catalog, notifications and the service.
// Failures are reported through f and returned as an *ExitError.
func openEnv(opts *RootOptions, cmd *cobra.Command, f *OutputFormatter) (*environment, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	logger.Debug("opening database", "path", cfg.Database, "partition", cfg.Partition)
	st, err := store.Open(cfg.Database)
	if err != nil {
		_ = f.Error(ErrCodeDatabase, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	cats, err := buildCatalog(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		_ = f.Error(ErrCodeCatalog, err.Error(), nil)
		return nil, WrapExitError(ExitFailure, "failed to load catalog", err)
	}

	outbox := &store.Outbox{Store: st}
	rec := engine.New(st, cats, buildSink(cfg, outbox, logger), engine.WithLogger(logger))
	svc := onboarding.NewService(st, st, rec, onboarding.WithLogger(logger))

	return &environment{
		cfg:       cfg,
		partition: model.Partition(cfg.Partition),
		logger:    logger,
		store:     st,
		outbox:    outbox,
		catalogs:  cats,
		service:   svc,
	}, nil
}

func (e *environment) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing database", "error", err)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// withEnv opens the environment, runs fn and closes it.
func withEnv(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, env *environment, f *OutputFormatter) error) error {
	f := newFormatter(opts, cmd)
	env, err := openEnv(opts, cmd, f)
	if err != nil {
		return err
	}
	defer env.Close()
	f.VerboseLog("database %s, partition %s", env.cfg.Database, env.partition)
	return fn(commandContext(cmd), env, f)
}

// errUsage reports a bad argument.
func errUsage(f *OutputFormatter, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	_ = f.Error(ErrCodeInput, msg, nil)
	return NewExitError(ExitCommandError, msg)
}
