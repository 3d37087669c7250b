package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	mss "github.com/itzTheMeow/Modular-Storage-System-sub002"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/config"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	log := logrus.New()

	cfg := config.Config{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("error loading config: %v", err)
		}
		cfg = loaded
	} else {
		dir, err := os.MkdirTemp("", "mss-example")
		if err != nil {
			log.Fatalf("error creating temp dir: %v", err)
		}
		defer os.RemoveAll(dir)
		cfg.Paths = []string{dir}
		cfg.ApplyDefaults()
	}

	engine, err := mss.NewEngine(mss.Config{
		Paths:              cfg.Paths,
		MinimumFreeGB:      cfg.MinimumFreeGB,
		MaxNetworkBlocks:   cfg.MaxNetworkBlocks,
		MaxCellsPerDisk:    cfg.MaxCellsPerDisk,
		MaxQuantityPerCell: cfg.MaxQuantityPerCell,
		WorkerCount:        cfg.WorkerCount,
		Logger:             log,
	})
	if err != nil {
		log.Fatalf("error creating engine: %v", err)
	}
	defer engine.Close()

	// build a small network: server - cable - drive bay - terminal
	world := "overworld"
	blocks := []struct {
		loc  types.Location
		role types.BlockRole
	}{
		{types.Loc(world, 0, 64, 0), types.StorageServer},
		{types.Loc(world, 1, 64, 0), types.Cable},
		{types.Loc(world, 2, 64, 0), types.DriveBay},
		{types.Loc(world, 3, 64, 0), types.Terminal},
	}

	var networkID types.NetworkID
	for _, b := range blocks {
		id, err := engine.HandleBlockPlaced(b.loc, b.role)
		if err != nil {
			log.Fatalf("error placing %s at %s: %v", b.role, b.loc, err)
		}
		if id != "" {
			networkID = id
		}
	}
	log.Infof("network formed: %s", networkID)

	// craft and seat a disk
	disk, err := engine.RegisterDisk("disk-0001", "c0ffee00-0000-4000-8000-000000000001", "Steve", types.Tier4k)
	if err != nil {
		log.Fatalf("error registering disk: %v", err)
	}
	if err := engine.InsertDisk(types.Loc(world, 2, 64, 0), 0, disk.DiskID); err != nil {
		log.Fatalf("error inserting disk: %v", err)
	}

	// store a stack of items through the terminal
	payload := []byte(`{"material":"IRON_INGOT"}`)
	remainder, err := engine.StoreItems(networkID, []types.ItemRecord{{
		Payload:      payload,
		Quantity:     60,
		MaxStackSize: 64,
	}})
	if err != nil {
		log.Fatalf("error storing items: %v", err)
	}
	log.Infof("stored 60 items, remainder stacks: %d", len(remainder))

	summaries, err := engine.ListItems(networkID)
	if err != nil {
		log.Fatalf("error listing items: %v", err)
	}
	for _, summary := range summaries {
		out, _ := json.Marshal(summary)
		log.Infof("stored: %s", out)
	}

	record, err := engine.RetrieveItems(networkID, types.HashPayload(payload), 30)
	if err != nil {
		log.Fatalf("error retrieving items: %v", err)
	}
	if record != nil {
		log.Infof("retrieved %d of %s", record.Quantity, record.Hash)
	}

	status, err := engine.Status(networkID)
	if err != nil {
		log.Fatalf("error reading status: %v", err)
	}
	log.WithFields(logrus.Fields{
		"blocks":      status.Blocks,
		"seatedDisks": len(status.SeatedDisks),
		"usedCells":   status.UsedCells,
		"maxCells":    status.MaxCells,
	}).Info("network status")
}
