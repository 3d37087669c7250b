package mss

import (
	"github.com/sirupsen/logrus"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

// Config configures the storage engine instance. Only Paths[0] is used at
// the moment; future versions may use multiple paths for sharding.
type Config struct {
	// Paths contains data directories. Currently only Paths[0] is used.
	Paths []string
	// MinimumFreeGB is a free-space threshold checked when the store opens.
	MinimumFreeGB int
	// MaxNetworkBlocks is the ceiling on blocks per network; detection
	// reports larger structures as invalid.
	MaxNetworkBlocks int
	// MaxCellsPerDisk is the cell ceiling every disk tier currently
	// normalizes to.
	MaxCellsPerDisk int
	// MaxQuantityPerCell caps the quantity of one cell, independent of the
	// item's natural stack size.
	MaxQuantityPerCell int
	// WorkerCount sizes the re-detection worker pool. Zero means one worker
	// per CPU.
	WorkerCount int
	// IsItemAllowed rejects items the engine refuses to store, e.g. its own
	// network blocks to prevent recursive storage. Nil allows everything.
	IsItemAllowed func(item types.ItemRecord) bool
	// Logger is an optional structured logger. If nil, a stderr logger is
	// used.
	Logger *logrus.Logger
}

func (c *Config) applyDefaults() {
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
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
}
