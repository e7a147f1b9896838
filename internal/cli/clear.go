package cli

import (
	"fmt"

	"content-sync/internal/collection/usecase"
	"content-sync/internal/di"
	"content-sync/internal/shared/errors"

	"github.com/spf13/cobra"
)

// ClearOptions holds flags for the clear command.
type ClearOptions struct {
	*RootOptions
	Yes bool
}

// ClearResult reports what a clear removed.
type ClearResult struct {
	Collection string   `json:"collection"`
	Deleted    []string `json:"deleted"`
	Failed     []string `json:"failed,omitempty"`
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClearOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clear <collection>",
		Short: "Delete every record of a collection",
		Long: `Delete the records of a collection one by one. If a delete fails the
command stops and reports which records were already removed.

Example:
  contentsync clear invites --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(cmd, opts, args[0])
		},
	}
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "confirm the deletion")
	return cmd
}

func runClear(cmd *cobra.Command, opts *ClearOptions, name string) error {
	if !opts.Yes {
		return NewExitError(ExitCommandError, fmt.Sprintf("refusing to clear %s without --yes", name))
	}
	cfg, err := opts.config()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	container := di.NewContainer(cfg, commandLogger(cmd, opts.Verbose))
	defer container.Close()
	if err := container.InitializeCollection(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start collections", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	res := ClearResult{Collection: name, Deleted: []string{}}

	err = container.CollectionModule.Mutations.RemoveAll(ctx, name, usecase.ReconcileNone)
	if pb, ok := errors.AsPartialBatch(err); ok {
		res.Deleted = append(res.Deleted, pb.Completed...)
		for _, f := range pb.Failed {
			res.Failed = append(res.Failed, f.ID)
		}
		_ = out.Failure(err, res)
		return WrapExitError(ExitFailure, fmt.Sprintf("%s partly cleared", name), err)
	}
	if err != nil {
		_ = out.Failure(err, res)
		return WrapExitError(ExitFailure, fmt.Sprintf("failed to clear %s", name), err)
	}
	return out.Success(res, fmt.Sprintf("%s cleared", name))
}
