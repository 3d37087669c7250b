// Package mss implements a virtual, capacity-bounded storage engine for a
// voxel world: role-marked blocks form validated networks anchored by one
// storage server, removable disks seated in drive bays contribute cell
// capacity, and terminals store and retrieve item stacks against the
// network's pooled disks. All network and storage state is persisted
// transactionally; every operation on one network is serialized by a
// per-network lock.
package mss

import (
	"errors"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/allocator"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/blobstore"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/disks"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/keyValStore"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/netlock"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/network"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/store"
	workerpool "github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/workerPool"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

// ErrNetworkNotFound is surfaced for operations against unknown network ids.
var ErrNetworkNotFound = errors.New("mss: network not found")

// Engine is the storage engine handle. It owns the persistent store, the
// network registry, the disk registry, the allocator and the per-network
// lock table; nothing is ambient process state, so two engines on different
// paths can coexist in one process.
type Engine struct {
	log    *logrus.Logger
	config Config

	kv       *keyValStore.KeyValStore
	store    *store.Store
	blobs    *blobstore.BlobStore
	locks    *netlock.LockMap
	pool     *workerpool.WorkerPool
	detector *network.Detector
	networks *network.Registry
	disks    *disks.Registry
	alloc    *allocator.Allocator

	closeOnce sync.Once
}

func NewEngine(config Config) (*Engine, error) {
	config.applyDefaults()
	log := config.Logger

	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Paths:            config.Paths,
		MinimumFreeSpace: config.MinimumFreeGB,
		Logger:           log,
	})
	if err != nil {
		return nil, err
	}

	st := store.NewStore(kv, log)
	blobs := blobstore.NewBlobStore(log)
	diskRegistry := disks.NewRegistry(st, blobs, config.MaxCellsPerDisk, log)

	e := &Engine{
		log:    log,
		config: config,
		kv:     kv,
		store:  st,
		blobs:  blobs,
		locks:  netlock.NewLockMap(),
		pool: workerpool.NewWorkerPool(workerpool.Config{
			WorkerCount: config.WorkerCount,
		}),
		networks: network.NewRegistry(st, log),
		disks:    diskRegistry,
		alloc: allocator.NewAllocator(st, blobs, diskRegistry, allocator.Config{
			MaxQuantityPerCell: config.MaxQuantityPerCell,
			IsItemAllowed:      config.IsItemAllowed,
		}, log),
	}
	e.detector = network.NewDetector(e, config.MaxNetworkBlocks, log)

	return e, nil
}

// RoleAt reads the role marker at a coordinate from the persistent marker
// table. It implements the detector's read-only world-state boundary.
func (e *Engine) RoleAt(loc types.Location) (types.BlockRole, bool, error) {
	var role types.BlockRole
	var marked bool
	err := e.kv.View(func(txn *badger.Txn) error {
		var err error
		role, marked, err = e.store.GetMarker(txn, loc)
		return err
	})
	return role, marked, err
}

// NetworkAt is the point lookup from any member location to its network id.
func (e *Engine) NetworkAt(loc types.Location) (types.NetworkID, bool, error) {
	var id types.NetworkID
	var ok bool
	err := e.kv.View(func(txn *badger.Txn) error {
		var err error
		id, ok, err = e.store.NetworkAt(txn, loc)
		return err
	})
	return id, ok, err
}

// DetectNetwork runs one read-only detection pass from a seed coordinate.
// It validates but persists nothing.
func (e *Engine) DetectNetwork(seed types.Location) (types.NetworkInfo, error) {
	return e.detector.Detect(seed)
}

// Close flushes and closes the persistent store and stops the worker pool.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.pool.Close()
		err = e.kv.Close()
	})
	return err
}
