package store

import (
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

// CellRecord is one storage cell: the quantity of one item fingerprint held
// on one disk. The (DiskID, Hash) pair is unique; a cell that reaches zero
// quantity is deleted, never left as a zero row.
type CellRecord struct {
	DiskID       string
	Hash         types.Hash
	Quantity     int
	MaxStackSize int
	UpdatedAt    int64
}

func diskKey(diskID string) string {
	return prefixDisk + diskID
}

func cellKey(diskID string, hash types.Hash) string {
	return prefixCell + diskID + "/" + hash.String()
}

func cellRefKey(hash types.Hash, diskID string) string {
	return prefixCellRef + hash.String() + "/" + diskID
}

func (s *Store) PutDisk(txn *badger.Txn, disk types.StorageDisk) error {
	data, err := encodeRecord(disk)
	if err != nil {
		return err
	}
	return txn.Set([]byte(diskKey(disk.DiskID)), data)
}

func (s *Store) GetDisk(txn *badger.Txn, diskID string) (types.StorageDisk, error) {
	data, err := getValue(txn, diskKey(diskID))
	if err != nil {
		return types.StorageDisk{}, err
	}
	var disk types.StorageDisk
	if err := decodeRecord(data, &disk); err != nil {
		return types.StorageDisk{}, err
	}
	return disk, nil
}

func (s *Store) DeleteDisk(txn *badger.Txn, diskID string) error {
	return txn.Delete([]byte(diskKey(diskID)))
}

func (s *Store) PutCell(txn *badger.Txn, cell CellRecord) error {
	cell.UpdatedAt = time.Now().Unix()
	data, err := encodeRecord(cell)
	if err != nil {
		return err
	}
	if err := txn.Set([]byte(cellKey(cell.DiskID, cell.Hash)), data); err != nil {
		return err
	}
	return txn.Set([]byte(cellRefKey(cell.Hash, cell.DiskID)), nil)
}

func (s *Store) GetCell(txn *badger.Txn, diskID string, hash types.Hash) (CellRecord, bool, error) {
	data, err := getValue(txn, cellKey(diskID, hash))
	if err == ErrNotFound {
		return CellRecord{}, false, nil
	}
	if err != nil {
		return CellRecord{}, false, err
	}
	var cell CellRecord
	if err := decodeRecord(data, &cell); err != nil {
		return CellRecord{}, false, err
	}
	return cell, true, nil
}

func (s *Store) DeleteCell(txn *badger.Txn, diskID string, hash types.Hash) error {
	if err := txn.Delete([]byte(cellKey(diskID, hash))); err != nil {
		return err
	}
	return txn.Delete([]byte(cellRefKey(hash, diskID)))
}

// CellsOfDisk returns every cell row of one disk.
func (s *Store) CellsOfDisk(txn *badger.Txn, diskID string) ([]CellRecord, error) {
	items, err := itemsWithPrefix(txn, prefixCell+diskID+"/")
	if err != nil {
		return nil, err
	}

	cells := make([]CellRecord, 0, len(items))
	for _, kv := range items {
		var cell CellRecord
		if err := decodeRecord(kv[1], &cell); err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	return cells, nil
}

// CountCells recomputes the used-cell count of a disk from the cell table.
// The UsedCells field on the disk record is only a cache of this value and
// is never trusted without recomputation.
func (s *Store) CountCells(txn *badger.Txn, diskID string) (int, error) {
	return countKeysWithPrefix(txn, prefixCell+diskID+"/")
}

// HashReferenced reports whether any cell on any disk still holds the given
// item fingerprint. Used to decide when a payload blob can be dropped.
func (s *Store) HashReferenced(txn *badger.Txn, hash types.Hash) (bool, error) {
	keys, err := keysWithPrefix(txn, prefixCellRef+hash.String()+"/")
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

// DisksReferencingHash lists the disks that hold a cell for the fingerprint.
func (s *Store) DisksReferencingHash(txn *badger.Txn, hash types.Hash) ([]string, error) {
	keys, err := keysWithPrefix(txn, prefixCellRef+hash.String()+"/")
	if err != nil {
		return nil, err
	}
	diskIDs := make([]string, 0, len(keys))
	for _, key := range keys {
		diskIDs = append(diskIDs, strings.TrimPrefix(key, prefixCellRef+hash.String()+"/"))
	}
	return diskIDs, nil
}
