package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

func slotKey(loc types.Location, slotNumber int) string {
	// slot numbers are zero-padded so key order equals slot order; the disk
	// registry bounds them to the padded range
	return fmt.Sprintf("%s%s/%05d", prefixSlot, loc.Key(), slotNumber)
}

func netSlotKey(id types.NetworkID, slotNumber int, loc types.Location) string {
	return fmt.Sprintf("%s%s/%05d/%s", prefixNetSlot, id, slotNumber, loc.Key())
}

func seatedKey(diskID string) string {
	return prefixSeated + diskID
}

// PutSlot writes one drive-bay slot row and keeps the two derived indexes in
// step: the slot-ordered seating index of the owning network and the
// disk-to-slot pointer used by the recovery path.
func (s *Store) PutSlot(txn *badger.Txn, slot types.DriveBaySlot) error {
	old, existed, err := s.GetSlot(txn, slot.Location, slot.SlotNumber)
	if err != nil {
		return err
	}
	if existed {
		if err := s.dropSlotIndexes(txn, old); err != nil {
			return err
		}
	}

	data, err := encodeRecord(slot)
	if err != nil {
		return err
	}
	if err := txn.Set([]byte(slotKey(slot.Location, slot.SlotNumber)), data); err != nil {
		return err
	}

	if slot.Occupied() {
		if slot.NetworkID != "" {
			key := netSlotKey(slot.NetworkID, slot.SlotNumber, slot.Location)
			if err := txn.Set([]byte(key), []byte(slot.DiskID)); err != nil {
				return err
			}
		}
		if err := txn.Set([]byte(seatedKey(slot.DiskID)), []byte(slotKey(slot.Location, slot.SlotNumber))); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetSlot(txn *badger.Txn, loc types.Location, slotNumber int) (types.DriveBaySlot, bool, error) {
	data, err := getValue(txn, slotKey(loc, slotNumber))
	if err == ErrNotFound {
		return types.DriveBaySlot{}, false, nil
	}
	if err != nil {
		return types.DriveBaySlot{}, false, err
	}
	var slot types.DriveBaySlot
	if err := decodeRecord(data, &slot); err != nil {
		return types.DriveBaySlot{}, false, err
	}
	return slot, true, nil
}

func (s *Store) DeleteSlot(txn *badger.Txn, loc types.Location, slotNumber int) error {
	slot, existed, err := s.GetSlot(txn, loc, slotNumber)
	if err != nil {
		return err
	}
	if !existed {
		return nil
	}
	if err := s.dropSlotIndexes(txn, slot); err != nil {
		return err
	}
	return txn.Delete([]byte(slotKey(loc, slotNumber)))
}

func (s *Store) dropSlotIndexes(txn *badger.Txn, slot types.DriveBaySlot) error {
	if !slot.Occupied() {
		return nil
	}
	if slot.NetworkID != "" {
		if err := txn.Delete([]byte(netSlotKey(slot.NetworkID, slot.SlotNumber, slot.Location))); err != nil {
			return err
		}
	}
	return txn.Delete([]byte(seatedKey(slot.DiskID)))
}

// SlotsAt returns all slot rows of one drive bay, slot-ordered.
func (s *Store) SlotsAt(txn *badger.Txn, loc types.Location) ([]types.DriveBaySlot, error) {
	items, err := itemsWithPrefix(txn, prefixSlot+loc.Key()+"/")
	if err != nil {
		return nil, err
	}

	slots := make([]types.DriveBaySlot, 0, len(items))
	for _, kv := range items {
		var slot types.DriveBaySlot
		if err := decodeRecord(kv[1], &slot); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// SeatedDiskIDs resolves the ordered list of disks currently seated in a
// network's drive bays. Ordering is ascending slot number, then location,
// so allocation is deterministic.
func (s *Store) SeatedDiskIDs(txn *badger.Txn, id types.NetworkID) ([]string, error) {
	items, err := itemsWithPrefix(txn, prefixNetSlot+string(id)+"/")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(items))
	var diskIDs []string
	for _, kv := range items {
		diskID := string(kv[1])
		if seen[diskID] {
			continue
		}
		seen[diskID] = true
		diskIDs = append(diskIDs, diskID)
	}
	return diskIDs, nil
}

// SlotForDisk returns the slot a disk is currently seated in, if any.
func (s *Store) SlotForDisk(txn *badger.Txn, diskID string) (types.DriveBaySlot, bool, error) {
	key, err := getValue(txn, seatedKey(diskID))
	if err == ErrNotFound {
		return types.DriveBaySlot{}, false, nil
	}
	if err != nil {
		return types.DriveBaySlot{}, false, err
	}

	data, err := getValue(txn, string(key))
	if err == ErrNotFound {
		// dangling pointer, self-heal by ignoring it
		return types.DriveBaySlot{}, false, nil
	}
	if err != nil {
		return types.DriveBaySlot{}, false, err
	}
	var slot types.DriveBaySlot
	if err := decodeRecord(data, &slot); err != nil {
		return types.DriveBaySlot{}, false, err
	}
	return slot, true, nil
}
