// config.go — runtime parameters for the engine process.
//
// A single flat JSON document, decoded with sonnet. Every field has a
// compiled default so a missing file or empty document runs the engine
// with stock behavior.

package config

import (
	"os"

	"github.com/sugawarayuuta/sonnet"

	"main/constants"
)

// Config holds the tunables an operator may override per deployment.
type Config struct {
	GraphPath       string  `json:"graph_path"`       // backing file location
	SnapshotPath    string  `json:"snapshot_path"`    // sqlite export location ("" disables)
	Strict          bool    `json:"strict"`           // fail closed on a corrupt file (set false to reinitialize)
	LearningRate    float64 `json:"learning_rate"`    // initial hebbian rate
	TickSleepMs     int     `json:"tick_sleep_ms"`    // idle poll sleep
	IdleLimit       int     `json:"idle_limit"`       // idle ticks before shutdown after EOF
	SyncInterval    int     `json:"sync_interval"`    // ticks between region flushes
	CompactInterval int     `json:"compact_interval"` // ticks between edge compactions
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		GraphPath:       "melvin.mmap",
		SnapshotPath:    "melvin_snapshot.db",
		LearningRate:    constants.DefaultLearningRate,
		TickSleepMs:     constants.TickSleepMs,
		IdleLimit:       constants.IdleLimit,
		SyncInterval:    constants.SyncInterval,
		CompactInterval: constants.CompactInterval,
		Strict:          true,
	}
}

// Load reads path and overlays it on the defaults. A missing file is not
// an error; a present but unparsable file is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := sonnet.Unmarshal(data, &cfg); err != nil {
		return Default(), err
	}
	cfg.sanitize()
	return cfg, nil
}

// sanitize restores defaults for values that would stall or thrash the
// tick loop.
func (c *Config) sanitize() {
	d := Default()
	if c.GraphPath == "" {
		c.GraphPath = d.GraphPath
	}
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.TickSleepMs <= 0 {
		c.TickSleepMs = d.TickSleepMs
	}
	if c.IdleLimit <= 0 {
		c.IdleLimit = d.IdleLimit
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = d.SyncInterval
	}
	if c.CompactInterval <= 0 {
		c.CompactInterval = d.CompactInterval
	}
}
