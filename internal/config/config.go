//go:build !tinygo

// Package config loads the host configuration: a YAML file, then
// TINYSCOPE_* environment overrides. Command-line flags are applied on top
// by main.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"

	"tinyscope/hal"
	"tinyscope/scope/acquire"
	"tinyscope/scope/command"
	"tinyscope/scope/settings"
)

// Scope holds the power-on settings in user units.
type Scope struct {
	Running        bool   `yaml:"running"`
	Mode           string `yaml:"mode"`
	Slope          string `yaml:"slope"`
	TriggerChannel int    `yaml:"trigger_channel"`
	TriggerLevelMV int    `yaml:"trigger_level_mv"`
	XScaleUS       int    `yaml:"xscale_us"`
	YScaleMV       int    `yaml:"yscale_mv"`
}

// Pipeline tunes the scheduler and renderer.
type Pipeline struct {
	ColumnsPerStep int    `yaml:"columns_per_step"`
	RefreshTicks   uint64 `yaml:"refresh_ticks"`
}

// Record configures the Parquet recorder. An empty path disables it.
type Record struct {
	Path  string `yaml:"path"`
	Every uint64 `yaml:"every"`
}

// Config is the whole file.
type Config struct {
	Scope    Scope                           `yaml:"scope"`
	Pipeline Pipeline                        `yaml:"pipeline"`
	Signals  [acquire.NumChannels]hal.Signal `yaml:"signals"`
	Pots     [acquire.NumChannels]uint16     `yaml:"pots"`
	Seed     int64                           `yaml:"seed"`
	Stdin    bool                            `yaml:"stdin"`
	Listen   string                          `yaml:"listen"`
	Record   Record                          `yaml:"record"`
}

// overrides are the environment variables. Zero values leave the file
// setting alone.
type overrides struct {
	Listen         string `env:"TINYSCOPE_LISTEN"`
	RecordPath     string `env:"TINYSCOPE_RECORD"`
	RecordEvery    int    `env:"TINYSCOPE_RECORD_EVERY"`
	Stdin          bool   `env:"TINYSCOPE_STDIN"`
	Seed           int    `env:"TINYSCOPE_SEED"`
	XScaleUS       int    `env:"TINYSCOPE_XSCALE"`
	YScaleMV       int    `env:"TINYSCOPE_YSCALE"`
	ColumnsPerStep int    `env:"TINYSCOPE_COLUMNS_PER_STEP"`
	Running        bool   `env:"TINYSCOPE_RUNNING"`
}

// Default returns the built-in configuration.
func Default() Config {
	d := settings.Defaults()
	host := hal.DefaultHostConfig()
	return Config{
		Scope: Scope{
			Running:        d.Running,
			Mode:           "free",
			Slope:          d.Slope.String(),
			TriggerChannel: int(d.TriggerChannel) + 1,
			XScaleUS:       d.XScale,
			YScaleMV:       d.YScale,
		},
		Signals: host.Signals,
		Pots:    host.Pots,
		Seed:    host.Seed,
		Record:  Record{Every: 1},
	}
}

// Load reads path (if not empty) over the defaults and applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	var o overrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	if o.Listen != "" {
		c.Listen = o.Listen
	}
	if o.RecordPath != "" {
		c.Record.Path = o.RecordPath
	}
	if o.RecordEvery > 0 {
		c.Record.Every = uint64(o.RecordEvery)
	}
	if o.Stdin {
		c.Stdin = true
	}
	if o.Seed != 0 {
		c.Seed = int64(o.Seed)
	}
	if o.XScaleUS != 0 {
		c.Scope.XScaleUS = o.XScaleUS
	}
	if o.YScaleMV != 0 {
		c.Scope.YScaleMV = o.YScaleMV
	}
	if o.ColumnsPerStep != 0 {
		c.Pipeline.ColumnsPerStep = o.ColumnsPerStep
	}
	if o.Running {
		c.Scope.Running = true
	}
	return nil
}

// commands returns the scope section as console commands, in an order the
// command processor accepts from a stopped scope.
func (s Scope) commands() ([]command.Command, error) {
	var (
		cmds []command.Command
		errs []error
	)
	switch strings.ToLower(s.Mode) {
	case "", "free":
		cmds = append(cmds, command.Command{Kind: command.ModeFree})
	case "trigger":
		cmds = append(cmds, command.Command{Kind: command.ModeTrigger})
	default:
		errs = append(errs, fmt.Errorf("scope.mode %q: want free or trigger", s.Mode))
	}
	switch strings.ToLower(s.Slope) {
	case "", "positive", "rising":
		cmds = append(cmds, command.Command{Kind: command.SlopePositive})
	case "negative", "falling":
		cmds = append(cmds, command.Command{Kind: command.SlopeNegative})
	default:
		errs = append(errs, fmt.Errorf("scope.slope %q: want positive or negative", s.Slope))
	}
	switch s.TriggerChannel {
	case 0, 1:
		cmds = append(cmds, command.Command{Kind: command.TriggerChannel1})
	case 2:
		cmds = append(cmds, command.Command{Kind: command.TriggerChannel2})
	default:
		errs = append(errs, fmt.Errorf("scope.trigger_channel %d: want 1 or 2", s.TriggerChannel))
	}
	if s.TriggerLevelMV != 0 {
		cmds = append(cmds, command.Command{Kind: command.TriggerLevel, Arg: s.TriggerLevelMV})
	}
	cmds = append(cmds,
		command.Command{Kind: command.XScale, Arg: s.XScaleUS},
		command.Command{Kind: command.YScale, Arg: s.YScaleMV},
	)
	if s.Running {
		cmds = append(cmds, command.Command{Kind: command.Start})
	}
	return cmds, errors.Join(errs...)
}

// Settings runs the scope section through the command processor, so the
// file is held to the same ranges as the console.
func (c Config) Settings() (settings.Scope, error) {
	cmds, err := c.Scope.commands()
	if err != nil {
		return settings.Defaults(), err
	}
	st := settings.NewStore(settings.Defaults())
	p := command.NewProcessor(st)
	var errs []error
	for _, cmd := range cmds {
		if _, err := p.Apply(cmd); err != nil {
			errs = append(errs, fmt.Errorf("scope: %s: %w", cmd, err))
		}
	}
	return st.Get(), errors.Join(errs...)
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Settings(); err != nil {
		errs = append(errs, err)
	}
	if c.Pipeline.ColumnsPerStep < 0 {
		errs = append(errs, fmt.Errorf("pipeline.columns_per_step %d: must not be negative", c.Pipeline.ColumnsPerStep))
	}
	for i, sig := range c.Signals {
		if sig.FreqHz < 0 {
			errs = append(errs, fmt.Errorf("signals[%d].freq_hz %g: must not be negative", i, sig.FreqHz))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Host returns the simulator configuration.
func (c Config) Host() hal.HostConfig {
	return hal.HostConfig{
		Signals: c.Signals,
		Pots:    c.Pots,
		Seed:    c.Seed,
		Stdin:   c.Stdin,
	}
}
