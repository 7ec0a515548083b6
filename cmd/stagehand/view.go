package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/phanxgames/stagehand"
	"github.com/phanxgames/stagehand/ebitenrender"
)

func newViewCmd(a *app) *cobra.Command {
	var fps bool
	cmd := &cobra.Command{
		Use:   "view <script>",
		Short: "Open a window and run a script in it",
		Long: `Registers the ebiten wireframe renderer and runs the script once the window
is up. Scripts should list "ebiten" among their setup renderers. F3 toggles
the FPS overlay and F12 saves a screenshot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			r := ebitenrender.New()
			w, err := a.newWorld(args[0], stagehand.WithRenderer(ebitenrender.Type, r.Factory()))
			if err != nil {
				return err
			}
			defer w.Dispose()

			p := newPrinter(cmd.OutOrStdout())
			g := ebitenrender.NewGame(w, r)
			g.ShowFPS = a.cfg.View.FPS || fps
			g.Startup = func(w *stagehand.World) error {
				return w.ExecuteScript(cmd.Context(), data, p.callbacks())
			}
			return ebitenrender.Run(g, ebitenrender.WindowOptions{
				Title:  a.cfg.View.Title,
				Width:  a.cfg.View.Width,
				Height: a.cfg.View.Height,
				TPS:    a.cfg.View.TPS,
			})
		},
	}
	cmd.Flags().BoolVar(&fps, "fps", false, "show the FPS overlay")
	return cmd
}
