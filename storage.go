package mss

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/store"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

// NetworkStatus is a point-in-time summary of one network for terminals and
// the demo binary.
type NetworkStatus struct {
	NetworkID      types.NetworkID
	ServerLocation types.Location
	Blocks         int
	SeatedDisks    []string
	UsedCells      int
	MaxCells       int
}

// StoreItems packs items into the network's seated disks under the network
// lock, inside one transaction. The returned remainder is whatever could not
// be placed, a normal outcome the caller returns to the physical world.
func (e *Engine) StoreItems(networkID types.NetworkID, items []types.ItemRecord) ([]types.ItemRecord, error) {
	var remainder []types.ItemRecord
	err := e.locks.With(networkID, func() error {
		return e.kv.ExecuteTransaction(func(txn *badger.Txn) error {
			if err := e.requireNetwork(txn, networkID); err != nil {
				return err
			}
			var err error
			remainder, err = e.alloc.Store(txn, networkID, items)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return remainder, nil
}

// RetrieveItems drains up to amount of one item fingerprint from the
// network, fullest cells first. Returns nil when nothing could be drained.
func (e *Engine) RetrieveItems(networkID types.NetworkID, hash types.Hash, amount int) (*types.ItemRecord, error) {
	var record *types.ItemRecord
	err := e.locks.With(networkID, func() error {
		return e.kv.ExecuteTransaction(func(txn *badger.Txn) error {
			if err := e.requireNetwork(txn, networkID); err != nil {
				return err
			}
			var err error
			record, err = e.alloc.Retrieve(txn, networkID, hash, amount)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListItems is the terminal's live view: totals per item fingerprint across
// the network's seated disks, largest first. Read-only, but still serialized
// under the network lock for consistency with concurrent mutations.
func (e *Engine) ListItems(networkID types.NetworkID) ([]types.ItemSummary, error) {
	var summaries []types.ItemSummary
	err := e.locks.With(networkID, func() error {
		return e.kv.View(func(txn *badger.Txn) error {
			if err := e.requireNetwork(txn, networkID); err != nil {
				return err
			}
			var err error
			summaries, err = e.alloc.ListItems(txn, networkID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// Status summarizes one network: membership size, seated disks and cell
// usage (recomputed, not read from cached counters).
func (e *Engine) Status(networkID types.NetworkID) (NetworkStatus, error) {
	var status NetworkStatus
	err := e.locks.With(networkID, func() error {
		return e.kv.View(func(txn *badger.Txn) error {
			rec, err := e.store.GetNetwork(txn, networkID)
			if err == store.ErrNotFound {
				return ErrNetworkNotFound
			}
			if err != nil {
				return err
			}
			members, err := e.store.Members(txn, networkID)
			if err != nil {
				return err
			}
			seated, err := e.disks.SeatedDiskIDs(txn, networkID)
			if err != nil {
				return err
			}

			status = NetworkStatus{
				NetworkID:      networkID,
				ServerLocation: rec.ServerLocation,
				Blocks:         len(members),
				SeatedDisks:    seated,
			}
			for _, diskID := range seated {
				disk, err := e.disks.GetDisk(txn, diskID)
				if err != nil {
					return err
				}
				status.UsedCells += disk.UsedCells
				status.MaxCells += disk.MaxCells
			}
			return nil
		})
	})
	if err != nil {
		return NetworkStatus{}, err
	}
	return status, nil
}

func (e *Engine) requireNetwork(txn *badger.Txn, networkID types.NetworkID) error {
	_, err := e.store.GetNetwork(txn, networkID)
	if err == store.ErrNotFound {
		return ErrNetworkNotFound
	}
	return err
}
