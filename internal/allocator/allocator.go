package allocator

import (
	"bytes"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/blobstore"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/disks"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/store"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

// Config carries the allocation policy: the per-cell quantity cap
// (independent of an item's natural stack size) and the predicate that
// rejects items the engine refuses to store at all.
type Config struct {
	MaxQuantityPerCell int
	IsItemAllowed      func(item types.ItemRecord) bool
}

// Allocator implements cell-based packing and draining across the disks
// currently seated in a network's drive bays. Every operation runs inside
// the caller's per-network lock and transaction; allocation itself holds no
// state between calls.
type Allocator struct {
	store  *store.Store
	blobs  *blobstore.BlobStore
	disks  *disks.Registry
	config Config
	log    *logrus.Logger
}

func NewAllocator(st *store.Store, blobs *blobstore.BlobStore, dr *disks.Registry, config Config, log *logrus.Logger) *Allocator {
	if log == nil {
		log = logrus.New()
	}
	if config.IsItemAllowed == nil {
		config.IsItemAllowed = func(types.ItemRecord) bool { return true }
	}
	return &Allocator{
		store:  st,
		blobs:  blobs,
		disks:  dr,
		config: config,
		log:    log,
	}
}

// Store packs items into the network's seated disks. Phase one tops up
// existing cells matching each item's fingerprint, walking disks in slot
// order; phase two creates new cells on disks with spare cell capacity, at
// most one cell per disk and fingerprint.
// Whatever cannot be placed comes back as the remainder, which is a normal
// outcome, not an error. Capacity is always recomputed from the cell table,
// so a stale cached counter cannot oversubscribe a disk.
func (a *Allocator) Store(txn *badger.Txn, networkID types.NetworkID, items []types.ItemRecord) ([]types.ItemRecord, error) {
	diskIDs, err := a.disks.SeatedDiskIDs(txn, networkID)
	if err != nil {
		return nil, err
	}
	if len(diskIDs) == 0 {
		return items, nil
	}

	var remainder []types.ItemRecord
	touched := make(map[string]bool)

	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		if item.Hash == (types.Hash{}) {
			item.Hash = types.HashPayload(item.Payload)
		}
		if !a.config.IsItemAllowed(item) {
			remainder = append(remainder, item)
			continue
		}

		remaining, err := a.placeItem(txn, diskIDs, item, touched)
		if err != nil {
			return nil, err
		}
		if remaining > 0 {
			rest := item
			rest.Quantity = remaining
			remainder = append(remainder, rest)
		}
	}

	if err := a.refreshUsedCells(txn, touched); err != nil {
		return nil, err
	}
	return remainder, nil
}

func (a *Allocator) placeItem(txn *badger.Txn, diskIDs []string, item types.ItemRecord, touched map[string]bool) (int, error) {
	remaining := item.Quantity

	// phase 1: top up existing cells before opening any new one
	for _, diskID := range diskIDs {
		if remaining == 0 {
			break
		}
		cell, ok, err := a.store.GetCell(txn, diskID, item.Hash)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		space := a.config.MaxQuantityPerCell - cell.Quantity
		if space <= 0 {
			continue
		}
		add := min(space, remaining)
		cell.Quantity += add
		if err := a.store.PutCell(txn, cell); err != nil {
			return 0, err
		}
		remaining -= add
		touched[diskID] = true
	}

	// phase 2: new cells on disks with spare cell capacity. A cell is keyed
	// by (disk, fingerprint), so each disk holds at most one cell per item;
	// disks that already have one were handled in phase 1 and are skipped
	// here, never overwritten.
	for _, diskID := range diskIDs {
		if remaining == 0 {
			break
		}
		_, exists, err := a.store.GetCell(txn, diskID, item.Hash)
		if err != nil {
			return 0, err
		}
		if exists {
			continue
		}
		available, err := a.disks.HasAvailableCells(txn, diskID)
		if err != nil {
			return 0, err
		}
		if !available {
			continue
		}
		if err := a.blobs.Put(txn, item.Hash, item.Payload); err != nil {
			return 0, err
		}
		amount := min(a.config.MaxQuantityPerCell, remaining)
		if err := a.store.PutCell(txn, store.CellRecord{
			DiskID:       diskID,
			Hash:         item.Hash,
			Quantity:     amount,
			MaxStackSize: item.MaxStackSize,
		}); err != nil {
			return 0, err
		}
		remaining -= amount
		touched[diskID] = true
	}

	return remaining, nil
}

// Retrieve drains up to amount of one item fingerprint from the network's
// seated disks, emptying the fullest cells first to keep fragmentation down.
// It returns the combined record, or nil if nothing could be drained.
func (a *Allocator) Retrieve(txn *badger.Txn, networkID types.NetworkID, hash types.Hash, amount int) (*types.ItemRecord, error) {
	if amount <= 0 {
		return nil, nil
	}

	diskIDs, err := a.disks.SeatedDiskIDs(txn, networkID)
	if err != nil {
		return nil, err
	}

	var candidates []store.CellRecord
	for _, diskID := range diskIDs {
		cell, ok, err := a.store.GetCell(txn, diskID, hash)
		if err != nil {
			return nil, err
		}
		if ok && cell.Quantity > 0 {
			candidates = append(candidates, cell)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// drain order: quantity descending, seating order on ties
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Quantity > candidates[j].Quantity
	})

	payload, err := a.blobs.Get(txn, hash)
	if err != nil {
		return nil, err
	}

	drained := 0
	maxStackSize := candidates[0].MaxStackSize
	touched := make(map[string]bool)
	for _, cell := range candidates {
		if drained == amount {
			break
		}
		take := min(amount-drained, cell.Quantity)
		cell.Quantity -= take
		if cell.Quantity == 0 {
			if err := a.store.DeleteCell(txn, cell.DiskID, cell.Hash); err != nil {
				return nil, err
			}
		} else {
			if err := a.store.PutCell(txn, cell); err != nil {
				return nil, err
			}
		}
		drained += take
		touched[cell.DiskID] = true
	}

	if drained == 0 {
		return nil, nil
	}

	referenced, err := a.store.HashReferenced(txn, hash)
	if err != nil {
		return nil, err
	}
	if !referenced {
		if err := a.blobs.Delete(txn, hash); err != nil {
			return nil, err
		}
	}

	if err := a.refreshUsedCells(txn, touched); err != nil {
		return nil, err
	}

	return &types.ItemRecord{
		Hash:         hash,
		Payload:      payload,
		Quantity:     drained,
		MaxStackSize: maxStackSize,
	}, nil
}

// ListItems aggregates quantity by item fingerprint across all cells on the
// network's seated disks, largest totals first. Unseated disks contribute
// nothing even though their rows persist.
func (a *Allocator) ListItems(txn *badger.Txn, networkID types.NetworkID) ([]types.ItemSummary, error) {
	diskIDs, err := a.disks.SeatedDiskIDs(txn, networkID)
	if err != nil {
		return nil, err
	}

	totals := make(map[types.Hash]*types.ItemSummary)
	for _, diskID := range diskIDs {
		cells, err := a.store.CellsOfDisk(txn, diskID)
		if err != nil {
			return nil, err
		}
		for _, cell := range cells {
			summary := totals[cell.Hash]
			if summary == nil {
				payload, err := a.blobs.Get(txn, cell.Hash)
				if err != nil {
					return nil, err
				}
				summary = &types.ItemSummary{
					Hash:          cell.Hash,
					SamplePayload: payload,
					MaxStackSize:  cell.MaxStackSize,
				}
				totals[cell.Hash] = summary
			}
			summary.TotalQuantity += cell.Quantity
		}
	}

	out := make([]types.ItemSummary, 0, len(totals))
	for _, summary := range totals {
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalQuantity != out[j].TotalQuantity {
			return out[i].TotalQuantity > out[j].TotalQuantity
		}
		return bytes.Compare(out[i].Hash.Bytes(), out[j].Hash.Bytes()) < 0
	})
	return out, nil
}

func (a *Allocator) refreshUsedCells(txn *badger.Txn, touched map[string]bool) error {
	for diskID := range touched {
		disk, err := a.store.GetDisk(txn, diskID)
		if err != nil {
			return err
		}
		used, err := a.store.CountCells(txn, diskID)
		if err != nil {
			return err
		}
		disk.UsedCells = used
		if err := a.store.PutDisk(txn, disk); err != nil {
			return err
		}
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
