package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type runOptions struct {
	frames int
	dt     float32
	watch  bool
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Execute a command script headless",
		Long: `Executes the script against a fresh World, waits for every load to settle
and then simulates --frames updates. With --watch the script is re-run in a
fresh World each time it changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.dt <= 0 {
				opts.dt = float32(a.cfg.World.Tick) / 1000
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if opts.watch {
				return a.watch(ctx, args[0], opts, cmd.OutOrStdout())
			}
			return a.runScript(ctx, args[0], opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&opts.frames, "frames", "n", 0, "updates to simulate after the script settles")
	cmd.Flags().Float32Var(&opts.dt, "dt", 0, "seconds per simulated update (default world.tick)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "re-run the script when it changes")
	return cmd
}

// runScript executes path once in a fresh World and prints its events.
func (a *app) runScript(ctx context.Context, path string, opts runOptions, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	w, err := a.newWorld(path)
	if err != nil {
		return err
	}
	defer w.Dispose()

	p := newPrinter(out)
	start := time.Now()
	if err := w.ExecuteScript(ctx, data, p.callbacks()); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := w.Settle(ctx); err != nil {
		return err
	}
	for range opts.frames {
		if err := w.Update(opts.dt); err != nil {
			return err
		}
	}
	a.log.Debug("script finished", "path", path, "frames", opts.frames, "duration", time.Since(start))
	p.summary(w)
	return nil
}
