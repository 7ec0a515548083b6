// Package config loads the stagehand CLI configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFile is looked up in the working directory when no --config flag
// is given. A missing default file is not an error.
const DefaultFile = "stagehand.toml"

// Config is the full CLI configuration.
type Config struct {
	World  WorldConfig  `toml:"world"`
	Log    LogConfig    `toml:"log"`
	Server ServerConfig `toml:"server"`
	View   ViewConfig   `toml:"view"`
}

// WorldConfig maps to stagehand.World options.
type WorldConfig struct {
	// AssetRoot resolves relative asset references. Empty means the
	// directory of the script being run.
	AssetRoot string  `toml:"asset_root"`
	Crossfade float32 `toml:"crossfade"`
	Inbox     int     `toml:"inbox"`
	// Tick is the headless update interval in milliseconds.
	Tick int `toml:"tick"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig configures `stagehand serve`.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// ViewConfig configures the ebiten window of `stagehand view`.
type ViewConfig struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
	TPS    int    `toml:"tps"`
	FPS    bool   `toml:"fps"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		World:  WorldConfig{Crossfade: 0.333, Inbox: 64, Tick: 16},
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Addr: ":8080"},
		View:   ViewConfig{Width: 1280, Height: 720, Title: "stagehand", TPS: 60},
	}
}

// Load reads path over the defaults. An empty path tries DefaultFile and
// silently keeps the defaults when it does not exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode unmarshals TOML into cfg, rejecting unknown keys, and validates
// the result. Keys absent from data keep their current values.
func Decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("unknown config keys:\n%s", strict.String())
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return cfg.Validate()
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.World.Crossfade < 0 {
		errs = append(errs, fmt.Errorf("world.crossfade must not be negative, got %v", c.World.Crossfade))
	}
	if c.World.Inbox < 1 {
		errs = append(errs, fmt.Errorf("world.inbox must be positive, got %d", c.World.Inbox))
	}
	if c.World.Tick < 1 {
		errs = append(errs, fmt.Errorf("world.tick must be positive, got %d", c.World.Tick))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	if c.View.Width < 1 || c.View.Height < 1 {
		errs = append(errs, fmt.Errorf("view size %dx%d must be positive", c.View.Width, c.View.Height))
	}
	if c.View.TPS < 1 {
		errs = append(errs, fmt.Errorf("view.tps must be positive, got %d", c.View.TPS))
	}
	return errors.Join(errs...)
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	return toml.Marshal(cfg)
}
