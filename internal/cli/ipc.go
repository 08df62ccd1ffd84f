package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/rollbook/internal/ipc"
)

// NewIPCCommand creates the ipc command.
func NewIPCCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ipc",
		Short: "Serve boundary operations over stdin/stdout",
		Long: `Read one JSON request per line from standard input and write one JSON
response per line to standard output, in order. Logs go to standard error.

Request:  {"id":1,"op":"get-user","params":{"id":7}}
Response: {"id":1,"result":{"success":true,"user":{...},"payments":[...]}}

Ops: login, get-dashboard-stats, get-users, add-user, get-user,
update-user, add-payment, upload-photos, get-user-photos.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIPC(rootOpts, cmd)
		},
	}
}

func runIPC(opts *RootOptions, cmd *cobra.Command) error {
	e, err := newEnv(opts, cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	svc, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer e.close(svc)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			e.log.Info("received signal, shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	e.log.Info("serving requests", zap.String("database", e.cfg.DatabasePath()))
	server := ipc.NewServer(svc, e.log.Named("ipc"))
	if err := server.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil && !errors.Is(err, context.Canceled) {
		e.log.Error("ipc loop failed", zap.Error(err))
		return WrapExitError(ExitCommandError, "ipc loop failed", err)
	}
	return nil
}
