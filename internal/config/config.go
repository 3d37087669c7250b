package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Paths              []string `yaml:"paths"`
	MinimumFreeGB      int      `yaml:"minimumFreeGB"`
	MaxNetworkBlocks   int      `yaml:"maxNetworkBlocks"`
	MaxCellsPerDisk    int      `yaml:"maxCellsPerDisk"`
	MaxQuantityPerCell int      `yaml:"maxQuantityPerCell"`
	WorkerCount        int      `yaml:"workerCount"`
}

// Load reads a YAML config file and fills in defaults for anything left
// unset.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return Config{}, fmt.Errorf("error parsing config file: %w", err)
	}

	config.ApplyDefaults()
	return config, nil
}

func (c *Config) ApplyDefaults() {
	if len(c.Paths) == 0 {
		c.Paths = []string{"./data"}
	}
	if c.MinimumFreeGB == 0 {
		c.MinimumFreeGB = 1
	}
	if c.MaxNetworkBlocks == 0 {
		c.MaxNetworkBlocks = 128
	}
	if c.MaxCellsPerDisk == 0 {
		c.MaxCellsPerDisk = 64
	}
	if c.MaxQuantityPerCell == 0 {
		c.MaxQuantityPerCell = 1024
	}
}
