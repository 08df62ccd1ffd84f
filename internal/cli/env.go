package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/rollbook/internal/app"
	"github.com/roach88/rollbook/internal/config"
	"github.com/roach88/rollbook/internal/logging"
	"github.com/roach88/rollbook/internal/schema"
)

// env is what every command needs: loaded config, a logger and a formatter.
type env struct {
	cfg *config.Config
	log *zap.Logger
	out *OutputFormatter
}

// newEnv builds the command environment. Errors are already reported
// through the formatter.
func newEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}

	logger, err := logging.NewWriter(logging.Verbose(cfg.Log.Level, opts.Verbose), cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}

	out.VerboseLog("database: %s", cfg.DatabasePath())
	out.VerboseLog("photos: %s", cfg.PhotoRoot())
	return &env{cfg: cfg, log: logger, out: out}, nil
}

func (e *env) seed() schema.Seed {
	return schema.Seed{
		Username: e.cfg.Admin.Username,
		Password: e.cfg.Admin.Password,
		Cost:     e.cfg.BcryptCost,
	}
}

// open loads and migrates the database. Errors are already reported.
func (e *env) open(ctx context.Context) (*app.Service, error) {
	svc, err := app.Open(ctx, app.Config{
		DatabasePath: e.cfg.DatabasePath(),
		PhotoRoot:    e.cfg.PhotoRoot(),
		Seed:         e.seed(),
		Logger:       e.log,
	})
	if err != nil {
		return nil, e.out.Fail(err)
	}
	return svc, nil
}

// close releases svc and flushes buffered log entries.
func (e *env) close(svc *app.Service) {
	if err := svc.Close(); err != nil {
		e.log.Error("error closing database", zap.Error(err))
	}
	_ = e.log.Sync()
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// plural formats n with a singular or plural noun.
func plural(n int64, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
