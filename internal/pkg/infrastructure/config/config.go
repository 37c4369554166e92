package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"
)

// AppConfig holds the tuning knobs that are awkward as environment
// variables. Connection details for external services stay in the
// environment, this file covers behaviour.
type AppConfig struct {
	Watchdog struct {
		IntervalSeconds int `yaml:"interval_seconds"`
		SilenceSeconds  int `yaml:"silence_seconds"`
	} `yaml:"watchdog"`

	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"cache"`

	Detection struct {
		WindowSize      int     `yaml:"window_size"`
		MinSamples      int     `yaml:"min_samples"`
		ZScoreThreshold float64 `yaml:"zscore_threshold"`
	} `yaml:"detection"`

	Simulator struct {
		IntervalSeconds int     `yaml:"interval_seconds"`
		FaultChance     float64 `yaml:"fault_chance"`
		Vehicles        []struct {
			VehicleID string `yaml:"vehicle_id"`
			Make      string `yaml:"make"`
			Model     string `yaml:"model"`
			Year      int    `yaml:"year"`
		} `yaml:"vehicles"`
	} `yaml:"simulator"`
}

func defaults() AppConfig {
	cfg := AppConfig{}
	cfg.Watchdog.IntervalSeconds = 60
	cfg.Watchdog.SilenceSeconds = 300
	cfg.Cache.TTLSeconds = 600
	cfg.Detection.WindowSize = 50
	cfg.Detection.MinSamples = 10
	cfg.Detection.ZScoreThreshold = 2.0
	cfg.Simulator.IntervalSeconds = 2
	cfg.Simulator.FaultChance = 0.05
	return cfg
}

func Load(r io.Reader) (AppConfig, error) {
	cfg := defaults()

	data, err := io.ReadAll(r)
	if err != nil {
		return cfg, fmt.Errorf("could not read config: %w", err)
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("could not parse config: %w", err)
	}

	return cfg, nil
}

// LoadFile falls back to defaults when no config file exists at path.
func LoadFile(path string) (AppConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults(), nil
		}
		return defaults(), err
	}
	defer f.Close()

	return Load(f)
}
