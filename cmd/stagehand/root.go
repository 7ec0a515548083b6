package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phanxgames/stagehand"
	"github.com/phanxgames/stagehand/internal/config"
	"github.com/phanxgames/stagehand/internal/logging"
)

// app carries the state shared by every subcommand.
type app struct {
	cfgPath   string
	logLevel  string
	logFormat string
	assetRoot string

	cfg config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "stagehand",
		Short: "Stagehand drives 3D scenes from command scripts",
		Long: `Stagehand executes JSON or YAML command scripts against a scene graph:
setup a renderer and camera, load nodes and models, attach controllers and
splice in animations. Scripts run headless, in a window, or behind an HTTP API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.cfgPath, "config", "c", "", "TOML config file (default ./"+config.DefaultFile+" if present)")
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	f.StringVar(&a.assetRoot, "asset-root", "", "directory relative asset references resolve against")

	root.AddCommand(
		newRunCmd(a),
		newValidateCmd(a),
		newServeCmd(a),
		newViewCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// load reads the config file and applies flag overrides.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if flags.Changed("asset-root") {
		cfg.World.AssetRoot = a.assetRoot
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	a.log = logging.NewWriter(cmd.ErrOrStderr(), logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	return nil
}

// newWorld builds a World from the config. script, when set, provides the
// asset root if none is configured.
func (a *app) newWorld(script string, opts ...stagehand.Option) (*stagehand.World, error) {
	root := a.cfg.World.AssetRoot
	if root == "" && script != "" {
		root = filepath.Dir(script)
	}
	base := []stagehand.Option{
		stagehand.WithLogger(a.log),
		stagehand.WithAssetRoot(root),
		stagehand.WithCrossfadeDuration(a.cfg.World.Crossfade),
		stagehand.WithInboxSize(a.cfg.World.Inbox),
	}
	return stagehand.NewWorld(append(base, opts...)...)
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Encode(a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
