package app

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

// Config is the system configuration, normally read from a syscfg TOML
// file.
type Config struct {
	Kernel KernelConfig `toml:"kernel"`
	Msys   MsysConfig   `toml:"msys"`
	Demo   DemoConfig   `toml:"demo"`
	Log    LogConfig    `toml:"log"`
}

type KernelConfig struct {
	TicksPerSec      uint32 `toml:"ticks_per_sec"`
	SanityIntervalMs uint32 `toml:"sanity_interval_ms"`
}

// MsysConfig lists the mbuf pools registered with msys.
type MsysConfig struct {
	// Check enables the double free scan on every pool.
	Check bool         `toml:"check"`
	Pools []PoolConfig `toml:"pools"`
}

type PoolConfig struct {
	Blocks    int `toml:"blocks"`
	BlockSize int `toml:"block_size"`
}

type DemoConfig struct {
	// Workers is the number of tasks sharing the demo mutex.
	Workers int `toml:"workers"`
	// PeriodMs is the producer callout period.
	PeriodMs uint32 `toml:"period_ms"`
	// PacketSize is the payload length of each produced packet.
	PacketSize int `toml:"packet_size"`
	// Monitor enables the on-screen task monitor.
	Monitor bool `toml:"monitor"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig is used when no syscfg file is given.
func DefaultConfig() Config {
	return Config{
		Kernel: KernelConfig{TicksPerSec: 1000, SanityIntervalMs: 1000},
		Msys: MsysConfig{Pools: []PoolConfig{
			{Blocks: 32, BlockSize: 128},
			{Blocks: 8, BlockSize: 512},
		}},
		Demo: DemoConfig{Workers: 2, PeriodMs: 50, PacketSize: 300, Monitor: true},
		Log:  LogConfig{Level: "info"},
	}
}

// LoadConfig reads path over the defaults. Keys the file sets but the
// configuration does not know are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("syscfg %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("syscfg %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for values the system cannot run with.
func (c Config) Validate() error {
	if c.Kernel.TicksPerSec == 0 {
		return fmt.Errorf("kernel.ticks_per_sec must be positive")
	}
	if len(c.Msys.Pools) == 0 {
		return fmt.Errorf("msys: no pools configured")
	}
	for i, p := range c.Msys.Pools {
		if p.Blocks <= 0 || p.BlockSize <= 0 {
			return fmt.Errorf("msys.pools[%d]: blocks and block_size must be positive", i)
		}
	}
	if c.Demo.Workers < 0 || c.Demo.Workers > maxWorkers {
		return fmt.Errorf("demo.workers must be between 0 and %d", maxWorkers)
	}
	if c.Demo.PacketSize <= 0 || c.Demo.PacketSize > 0xFFFF {
		return fmt.Errorf("demo.packet_size out of range: %d", c.Demo.PacketSize)
	}
	if c.Demo.PeriodMs == 0 {
		return fmt.Errorf("demo.period_ms must be positive")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level. An empty level means info.
func (c Config) LogLevel() (zerolog.Level, error) {
	if c.Log.Level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
