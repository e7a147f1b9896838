package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/di"

	"github.com/spf13/cobra"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	// Count stops after that many snapshots; 0 watches until interrupted.
	Count int
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <collection>",
		Short: "Print a collection every time it changes",
		Long: `Mount one collection and print each settled snapshot: the first fetch
and every refetch triggered by a change event.

Example:
  contentsync watch invites
  contentsync watch poems --count 1 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts, args[0])
		},
	}
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 0, "exit after this many snapshots (0 = until interrupted)")
	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions, name string) error {
	if opts.Count < 0 {
		return NewExitError(ExitCommandError, "--count must not be negative")
	}
	cfg, err := opts.config()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container := di.NewContainer(cfg, commandLogger(cmd, opts.Verbose))
	defer container.Close()
	if err := container.InitializeCollection(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start collections", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	states := make(chan model.FetchState, 16)
	store := container.CollectionModule.NewStore(name)
	cancelWatch := store.Watch(func(s model.FetchState) {
		if s.Status == model.StatusLoading {
			return
		}
		select {
		case states <- s:
		default:
			// The printer is behind; the next settled state supersedes this one.
		}
	})
	defer cancelWatch()

	if err := store.Mount(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s has no push updates: %v\n", name, err)
	}

	printed := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-states:
			if err := printState(out, s); err != nil {
				return err
			}
			printed++
			if opts.Count > 0 && printed >= opts.Count {
				return nil
			}
		}
	}
}

func printState(out *OutputFormatter, s model.FetchState) error {
	if s.Err != nil {
		return out.Failure(s.Err, s)
	}
	return out.Success(s, formatState(s))
}

func formatState(s model.FetchState) string {
	text := fmt.Sprintf("%s: %d record(s)", s.Collection, len(s.Data))
	for _, rec := range s.Data {
		text += "\n  " + rec.ID()
		if ts := rec.Timestamp(); !ts.IsZero() {
			text += "  " + ts.UTC().Format("2006-01-02 15:04:05")
		}
	}
	return text
}
