package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// PhotosGCOptions holds flags for the photos gc command.
type PhotosGCOptions struct {
	*RootOptions
	DryRun bool
}

// PhotosGCResult lists orphaned photo files.
type PhotosGCResult struct {
	DryRun bool     `json:"dry_run"`
	Files  []string `json:"files"`
}

func (r PhotosGCResult) renderText(w io.Writer) {
	for _, f := range r.Files {
		fmt.Fprintln(w, f)
	}
	n := int64(len(r.Files))
	if r.DryRun {
		fmt.Fprintf(w, "%s would be removed\n", plural(n, "orphaned file"))
		return
	}
	fmt.Fprintf(w, "Removed %s\n", plural(n, "orphaned file"))
}

// NewPhotosCommand creates the photos command group.
func NewPhotosCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photos",
		Short: "Photo storage maintenance",
	}
	cmd.AddCommand(newPhotosGCCommand(rootOpts))
	return cmd
}

func newPhotosGCCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PhotosGCOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove photo files no record references",
		Long: `Replacing a record's photos leaves the previous files on disk. gc lists
the files under the photo directory that no photo row references and
deletes them.

Example:
  rollbook photos gc --dry-run
  rollbook photos gc`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhotosGC(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list orphaned files without deleting them")

	return cmd
}

func runPhotosGC(opts *PhotosGCOptions, cmd *cobra.Command) error {
	e, err := newEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	svc, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer e.close(svc)

	var files []string
	if opts.DryRun {
		files, err = svc.Photos().Orphans(ctx)
	} else {
		files, err = svc.Photos().CollectOrphans(ctx)
	}
	if err != nil {
		return e.out.Fail(err)
	}
	return e.out.Success(PhotosGCResult{DryRun: opts.DryRun, Files: files})
}
