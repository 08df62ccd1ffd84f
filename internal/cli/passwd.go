package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// PasswdResult is the output of the passwd command.
type PasswdResult struct {
	Username string `json:"username"`
}

func (r PasswdResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "Password updated for %s\n", r.Username)
}

// NewPasswdCommand creates the passwd command.
func NewPasswdCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <username>",
		Short: "Set an administrator password",
		Long: `Set the password of an existing administrator. The new password is
read from the first line of standard input.

Example:
  echo 's3cret' | rollbook passwd admin`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPasswd(rootOpts, args[0], cmd)
		},
	}
}

func runPasswd(opts *RootOptions, username string, cmd *cobra.Command) error {
	e, err := newEnv(opts, cmd)
	if err != nil {
		return err
	}

	password, err := readLine(cmd.InOrStdin())
	if err != nil {
		_ = e.out.Error(ErrCodeGeneric, fmt.Sprintf("reading password: %v", err), nil)
		return WrapExitError(ExitCommandError, "failed to read password", err)
	}

	ctx := commandContext(cmd)
	svc, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer e.close(svc)

	if err := svc.Auth().SetPassword(ctx, username, password, e.cfg.BcryptCost); err != nil {
		return e.out.Fail(err)
	}
	return e.out.Success(PasswdResult{Username: username})
}

// readLine returns the first line of r without its line ending. An empty
// reader yields "" so the store can reject the blank password.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
