package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obacore/internal/backend"
	"github.com/KilimcininKorOglu/obacore/internal/config"
	"github.com/KilimcininKorOglu/obacore/internal/logging"
	"github.com/KilimcininKorOglu/obacore/internal/schema"
	"github.com/KilimcininKorOglu/obacore/internal/storage/durable"
	"github.com/KilimcininKorOglu/obacore/internal/storage/stream"
)

// env is everything a command needs to talk to the directory.
type env struct {
	cfg    *config.Config
	log    logging.Logger
	out    *OutputFormatter
	store  durable.Store
	broker *stream.Broker
	server *backend.QueryServer

	watching chan struct{}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.LoadAndValidate(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

func newLogger(opts *RootOptions, cfg *config.Config, cmd *cobra.Command) logging.Logger {
	lc := logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if opts.Verbose {
		lc.Level = "debug"
	}
	if lc.Output == "" || lc.Output == "stderr" {
		lc.Writer = cmd.ErrOrStderr()
	}
	return logging.New(lc)
}

func loadSchema(cfg *config.Config) (*schema.Schema, error) {
	if cfg.Schema.File == "" {
		return schema.Default(), nil
	}
	sch, err := schema.LoadFile(cfg.Schema.File)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot load schema", err)
	}
	return sch, nil
}

func openStore(cfg *config.Config) (durable.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return durable.NewMemory(), nil
	case "sqlite":
		c, err := durable.ParseCompression(cfg.Storage.Compression)
		if err != nil {
			return nil, err
		}
		db, err := durable.OpenSQLite(cfg.Storage.Path, durable.WithCompression(c, cfg.Storage.Level))
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// openEnv loads the configuration, opens the store and loads the directory.
// The caller must call close.
func openEnv(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	sch, err := loadSchema(cfg)
	if err != nil {
		return nil, err
	}

	e := &env{
		cfg: cfg,
		log: newLogger(opts, cfg, cmd),
		out: newFormatter(opts, cmd),
	}

	e.store, err = openStore(cfg)
	if err != nil {
		e.close()
		return nil, WrapExitError(ExitCommandError, "cannot open store", err)
	}
	e.log.Debug("store opened", "backend", cfg.Storage.Backend, "path", cfg.Storage.Path)

	serverOpts := []backend.Option{
		backend.WithLogger(e.log),
		backend.WithVerifyWorkers(cfg.Verify.Workers),
		backend.WithAcquireTimeout(cfg.Write.AcquireTimeout),
	}
	if cfg.Write.NonBlocking {
		serverOpts = append(serverOpts, backend.WithNonBlockingWrites())
	}
	if cfg.Stream.Enabled {
		e.broker = stream.NewBroker(
			stream.WithReplaySize(cfg.Stream.ReplayBuffer),
			stream.WithChannelSize(cfg.Stream.ChannelSize),
		)
		serverOpts = append(serverOpts, backend.WithBroker(e.broker))
		e.watch()
	}

	e.server, err = backend.Open(ctx, e.store, sch, serverOpts...)
	if err != nil {
		e.close()
		return nil, WrapExitError(ExitCommandError, "cannot load directory", err)
	}
	return e, nil
}

// watch logs committed changes at debug level until the broker closes.
func (e *env) watch() {
	sub, err := e.broker.Subscribe(stream.MatchAll())
	if err != nil {
		return
	}
	e.watching = make(chan struct{})
	go func() {
		defer close(e.watching)
		for ev := range sub.C {
			e.log.Debug("change", "token", ev.Token, "op", ev.Operation.String(), "id", ev.ID, "snapshot", ev.Snapshot)
		}
	}()
}

func (e *env) close() {
	if e.broker != nil {
		e.broker.Close()
		if e.watching != nil {
			<-e.watching
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil && !errors.Is(err, durable.ErrClosed) {
			e.log.Warn("close store", "err", err)
		}
	}
	if e.log != nil {
		_ = e.log.Close()
	}
}
