package mss

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

// RegisterDisk records a freshly crafted disk with zero used cells. Disk
// identity is independent of any network, so no network lock is involved.
func (e *Engine) RegisterDisk(diskID, crafterUUID, crafterName string, tier types.DiskTier) (types.StorageDisk, error) {
	var disk types.StorageDisk
	err := e.kv.ExecuteTransaction(func(txn *badger.Txn) error {
		var err error
		disk, err = e.disks.RegisterDisk(txn, diskID, crafterUUID, crafterName, tier)
		return err
	})
	return disk, err
}

// GetDisk looks up a disk by id with its used-cell count recomputed. This is
// the lookup the crafting collaborator uses to reconstruct a disk item from
// persisted fields alone.
func (e *Engine) GetDisk(diskID string) (types.StorageDisk, error) {
	var disk types.StorageDisk
	err := e.kv.View(func(txn *badger.Txn) error {
		var err error
		disk, err = e.disks.GetDisk(txn, diskID)
		return err
	})
	return disk, err
}

// InsertDisk seats a disk into a drive-bay slot. When the bay belongs to a
// network the operation runs under that network's lock, since it changes
// what concurrent store/retrieve calls can see.
func (e *Engine) InsertDisk(loc types.Location, slotNumber int, diskID string) error {
	insert := func() error {
		return e.kv.ExecuteTransaction(func(txn *badger.Txn) error {
			return e.disks.InsertDisk(txn, loc, slotNumber, diskID)
		})
	}

	id, bound, err := e.NetworkAt(loc)
	if err != nil {
		return err
	}
	if bound {
		return e.locks.With(id, insert)
	}
	return insert()
}

// WithdrawDisk removes a disk from a slot. The disk's record and contents
// persist; they are just invisible until the disk is reseated somewhere.
func (e *Engine) WithdrawDisk(loc types.Location, slotNumber int) (string, error) {
	var diskID string
	withdraw := func() error {
		return e.kv.ExecuteTransaction(func(txn *badger.Txn) error {
			var err error
			diskID, err = e.disks.WithdrawDisk(txn, loc, slotNumber)
			return err
		})
	}

	id, bound, err := e.NetworkAt(loc)
	if err != nil {
		return "", err
	}
	if bound {
		err = e.locks.With(id, withdraw)
	} else {
		err = withdraw()
	}
	if err != nil {
		return "", err
	}
	return diskID, nil
}

// RecoverDisk is the administrative escape hatch: reconstruct a disk purely
// by id, bypassing network membership, even after its network dissolved.
// Recovering a seated disk requires force and deletes the slot binding. It
// deliberately runs outside the network lock.
func (e *Engine) RecoverDisk(diskID string, force bool) (types.StorageDisk, error) {
	var disk types.StorageDisk
	err := e.kv.ExecuteTransaction(func(txn *badger.Txn) error {
		var err error
		disk, err = e.disks.RecoverDisk(txn, diskID, force)
		return err
	})
	return disk, err
}

// DeleteDisk is the explicit administrative deletion of a disk record, its
// cells and any payloads no longer referenced.
func (e *Engine) DeleteDisk(diskID string) error {
	return e.kv.ExecuteTransaction(func(txn *badger.Txn) error {
		return e.disks.DeleteDisk(txn, diskID)
	})
}
