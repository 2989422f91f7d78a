/* YaNFD - Yet another NDN Forwarding Daemon
 *
 * Copyright (C) 2020-2021 Eric Newberry.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

// Package core holds the ambient, cross-cutting pieces of the forwarding
// daemon that every other package depends on: the process-wide logger and
// the tunable Config. Parsing the YAML file from disk, reloading it, and
// authenticating who may change it are management-plane concerns and stay
// out of scope; this package only owns the decoded struct.
package core

import (
	"time"

	"github.com/goccy/go-yaml"

	"github.com/named-data/yanfd/std/log"
)

// Config collects the forwarding core's tunables. Every field has a
// zero-value-safe default applied by WithDefaults.
type Config struct {
	Core           CoreConfig           `yaml:"core"`
	Fw             FwConfig             `yaml:"fw"`
	DeadNonceList  DeadNonceListConfig  `yaml:"dead_nonce_list"`
	Pit            PitConfig            `yaml:"pit"`
}

// CoreConfig holds logging setup shared by every subsystem.
type CoreConfig struct {
	Log LogConfig `yaml:"log"`
}

// LogConfig selects the minimum level the process-wide logger emits.
type LogConfig struct {
	Level string `yaml:"level"`
}

// FwConfig holds forwarder-wide defaults.
type FwConfig struct {
	// DefaultStrategy is the strategy Name bound to "/" at boot.
	DefaultStrategy string `yaml:"default_strategy"`
}

// DeadNonceListConfig tunes the bounded recent-Nonce memory.
type DeadNonceListConfig struct {
	Lifetime time.Duration `yaml:"lifetime"`
	Capacity int           `yaml:"capacity"`
}

// PitConfig tunes PIT entry lifecycle behavior.
type PitConfig struct {
	StragglerTimeout time.Duration `yaml:"straggler_timeout"`
}

// DefaultConfig returns a Config populated with the stock defaults.
func DefaultConfig() Config {
	return Config{
		Core: CoreConfig{Log: LogConfig{Level: "INFO"}},
		Fw:   FwConfig{DefaultStrategy: "/localhost/nfd/strategy/best-route/v=5"},
		DeadNonceList: DeadNonceListConfig{
			Lifetime: 6 * time.Second,
			Capacity: 100_000,
		},
		Pit: PitConfig{StragglerTimeout: 100 * time.Millisecond},
	}
}

// WithDefaults fills any zero-valued field of c with DefaultConfig's value.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Core.Log.Level == "" {
		c.Core.Log.Level = def.Core.Log.Level
	}
	if c.Fw.DefaultStrategy == "" {
		c.Fw.DefaultStrategy = def.Fw.DefaultStrategy
	}
	if c.DeadNonceList.Lifetime == 0 {
		c.DeadNonceList.Lifetime = def.DeadNonceList.Lifetime
	}
	if c.DeadNonceList.Capacity == 0 {
		c.DeadNonceList.Capacity = def.DeadNonceList.Capacity
	}
	if c.Pit.StragglerTimeout == 0 {
		c.Pit.StragglerTimeout = def.Pit.StragglerTimeout
	}
	return c
}

// ParseConfig decodes a YAML document into a Config and fills in defaults
// for anything the document leaves unset. Reading the file from disk and
// reacting to changes are the management plane's job.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, err
	}
	return c.WithDefaults(), nil
}

// LogLevel parses the configured log level, falling back to Info on error.
func (c Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Core.Log.Level)
	if err != nil {
		return log.LevelInfo
	}
	return lvl
}
