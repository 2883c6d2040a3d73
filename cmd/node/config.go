// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"blockwatch.cc/near-stake/pkg/service"
)

type Config struct {
	Listen        string         `yaml:"listen"`
	Database      string         `yaml:"database"`
	LogLevel      string         `yaml:"log_level"`
	DrainInterval time.Duration  `yaml:"drain_interval"`
	EpochInterval time.Duration  `yaml:"epoch_interval"`
	Service       service.Config `yaml:"service"`
}

func DefaultConfig() Config {
	return Config{
		Listen:        ":8000",
		LogLevel:      "info",
		DrainInterval: time.Second,
		Service:       service.DefaultConfig(),
	}
}

// LoadConfig reads a yaml file over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Service.Owner == "" {
		return errors.New("empty owner account")
	}
	if c.Service.Chain.ContractID == "" {
		return errors.New("empty contract id")
	}
	if c.DrainInterval <= 0 {
		return errors.New("drain interval must be positive")
	}
	return c.Service.Pool.Validate()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
