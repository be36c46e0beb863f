// File: internal/config/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Debugger configuration: file and environment loading through viper,
// mapping onto session and engine parameters.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-kdebug/api"
	"github.com/momentics/hioload-kdebug/internal/engine"
	"github.com/momentics/hioload-kdebug/internal/session"
)

// EnvPrefix prefixes environment overrides, e.g. KDEBUG_OVERFLOW_POLICY.
const EnvPrefix = "KDEBUG"

// Config is the full debugger configuration.
type Config struct {
	ChannelCapacity  int            `mapstructure:"channel_capacity" yaml:"channel_capacity"`
	EventCapacity    int            `mapstructure:"event_capacity" yaml:"event_capacity"`
	RegistryCapacity int            `mapstructure:"registry_capacity" yaml:"registry_capacity"`
	PauseScope       string         `mapstructure:"pause_scope" yaml:"pause_scope"`
	Overflow         OverflowConfig `mapstructure:"overflow" yaml:"overflow"`
	Engine           EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Log              LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics          MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// OverflowConfig selects what controller writes do on a full channel.
type OverflowConfig struct {
	Policy       string        `mapstructure:"policy" yaml:"policy"`
	BacklogLimit int           `mapstructure:"backlog_limit" yaml:"backlog_limit"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
}

// EngineConfig drives the reference performance loop.
type EngineConfig struct {
	KsmpsPeriod  time.Duration `mapstructure:"ksmps_period" yaml:"ksmps_period"`
	PinCPU       int           `mapstructure:"pin_cpu" yaml:"pin_cpu"`
	MaxInstances int           `mapstructure:"max_instances" yaml:"max_instances"`
}

// LogConfig configures pslog.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Mode  string `mapstructure:"mode" yaml:"mode"`
}

// MetricsConfig configures the prometheus collectors.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// Default returns the stock configuration.
func Default() Config {
	sc := session.DefaultConfig()
	ec := engine.DefaultConfig()
	return Config{
		ChannelCapacity:  sc.ChannelCapacity,
		EventCapacity:    sc.EventCapacity,
		RegistryCapacity: sc.RegistryCapacity,
		PauseScope:       sc.PauseScope.String(),
		Overflow: OverflowConfig{
			Policy:       sc.Overflow.String(),
			BacklogLimit: sc.BacklogLimit,
			WaitTimeout:  sc.WaitTimeout,
		},
		Engine: EngineConfig{
			KsmpsPeriod:  ec.Period,
			PinCPU:       ec.PinCPU,
			MaxInstances: ec.MaxInstances,
		},
		Log:     LogConfig{Level: "info", Mode: "console"},
		Metrics: MetricsConfig{Namespace: "kdebug"},
	}
}

// Load reads configuration from path layered over Default, then applies
// KDEBUG_* environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("channel_capacity", cfg.ChannelCapacity)
	v.SetDefault("event_capacity", cfg.EventCapacity)
	v.SetDefault("registry_capacity", cfg.RegistryCapacity)
	v.SetDefault("pause_scope", cfg.PauseScope)
	v.SetDefault("overflow.policy", cfg.Overflow.Policy)
	v.SetDefault("overflow.backlog_limit", cfg.Overflow.BacklogLimit)
	v.SetDefault("overflow.wait_timeout", cfg.Overflow.WaitTimeout)
	v.SetDefault("engine.ksmps_period", cfg.Engine.KsmpsPeriod)
	v.SetDefault("engine.pin_cpu", cfg.Engine.PinCPU)
	v.SetDefault("engine.max_instances", cfg.Engine.MaxInstances)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.mode", cfg.Log.Mode)
	v.SetDefault("metrics.namespace", cfg.Metrics.Namespace)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	sc, err := c.SessionConfig()
	if err != nil {
		return err
	}
	if err := sc.Validate(); err != nil {
		return err
	}
	switch {
	case c.Engine.KsmpsPeriod < 0:
		return api.NewError(api.ErrCodeInvalidArgument, "engine.ksmps_period must not be negative").WithContext("ksmps_period", c.Engine.KsmpsPeriod.String())
	case c.Engine.MaxInstances <= 0:
		return api.NewError(api.ErrCodeInvalidArgument, "engine.max_instances must be positive").WithContext("max_instances", c.Engine.MaxInstances)
	}
	switch strings.ToLower(c.Log.Mode) {
	case "", "console", "structured", "json":
	default:
		return api.NewError(api.ErrCodeInvalidArgument, "unknown log.mode").WithContext("mode", c.Log.Mode)
	}
	return nil
}

// SessionConfig maps the file settings onto a session.Config.
func (c Config) SessionConfig() (session.Config, error) {
	scope, err := api.ParsePauseScope(c.PauseScope)
	if err != nil {
		return session.Config{}, err
	}
	policy, err := session.ParseOverflowPolicy(c.Overflow.Policy)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		ChannelCapacity:  c.ChannelCapacity,
		EventCapacity:    c.EventCapacity,
		RegistryCapacity: c.RegistryCapacity,
		PauseScope:       scope,
		Overflow:         policy,
		BacklogLimit:     c.Overflow.BacklogLimit,
		WaitTimeout:      c.Overflow.WaitTimeout,
	}, nil
}

// EngineConfig maps the engine settings onto an engine.Config.
func (c Config) EngineConfig() engine.Config {
	ec := engine.DefaultConfig()
	ec.Period = c.Engine.KsmpsPeriod
	ec.PinCPU = c.Engine.PinCPU
	ec.MaxInstances = c.Engine.MaxInstances
	return ec
}

// Marshal renders c as YAML that Load accepts. Durations are written in
// time.Duration notation.
func (c Config) Marshal() ([]byte, error) {
	doc := map[string]any{
		"channel_capacity":  c.ChannelCapacity,
		"event_capacity":    c.EventCapacity,
		"registry_capacity": c.RegistryCapacity,
		"pause_scope":       c.PauseScope,
		"overflow": map[string]any{
			"policy":        c.Overflow.Policy,
			"backlog_limit": c.Overflow.BacklogLimit,
			"wait_timeout":  c.Overflow.WaitTimeout.String(),
		},
		"engine": map[string]any{
			"ksmps_period":  c.Engine.KsmpsPeriod.String(),
			"pin_cpu":       c.Engine.PinCPU,
			"max_instances": c.Engine.MaxInstances,
		},
		"log": map[string]any{
			"level": c.Log.Level,
			"mode":  c.Log.Mode,
		},
		"metrics": map[string]any{
			"namespace": c.Metrics.Namespace,
		},
	}
	return yaml.Marshal(doc)
}

// Snapshot flattens c into dotted keys for api.Control.
func (c Config) Snapshot() map[string]any {
	return map[string]any{
		"channel_capacity":       c.ChannelCapacity,
		"event_capacity":         c.EventCapacity,
		"registry_capacity":      c.RegistryCapacity,
		"pause_scope":            c.PauseScope,
		"overflow.policy":        c.Overflow.Policy,
		"overflow.backlog_limit": c.Overflow.BacklogLimit,
		"overflow.wait_timeout":  c.Overflow.WaitTimeout.String(),
		"engine.ksmps_period":    c.Engine.KsmpsPeriod.String(),
		"engine.pin_cpu":         c.Engine.PinCPU,
		"engine.max_instances":   c.Engine.MaxInstances,
		"log.level":              c.Log.Level,
		"log.mode":               c.Log.Mode,
		"metrics.namespace":      c.Metrics.Namespace,
	}
}
