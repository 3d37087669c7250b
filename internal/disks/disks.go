package disks

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/blobstore"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/store"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

var (
	// ErrDiskNotFound is surfaced for unknown disk ids; not fatal.
	ErrDiskNotFound = errors.New("disks: disk not found")
	// ErrDiskExists means a disk id is already registered.
	ErrDiskExists = errors.New("disks: disk id already registered")
	// ErrDiskSeated means the disk currently occupies an active slot.
	ErrDiskSeated = errors.New("disks: disk is seated in an active slot")
	// ErrSlotOccupied means the target slot already holds a disk.
	ErrSlotOccupied = errors.New("disks: slot already occupied")
	// ErrSlotEmpty means the addressed slot holds no disk.
	ErrSlotEmpty = errors.New("disks: slot is empty")
	// ErrNotDriveBay means the addressed block is not a drive bay.
	ErrNotDriveBay = errors.New("disks: block is not a drive bay")
	// ErrInvalidDiskID means a disk id is empty or contains the key
	// delimiter.
	ErrInvalidDiskID = errors.New("disks: disk id is empty or contains '/'")
	// ErrInvalidSlot means a slot number is outside the representable range.
	ErrInvalidSlot = errors.New("disks: slot number out of range")
)

// maxSlotNumber bounds slot numbers to what the zero-padded slot keys can
// order correctly.
const maxSlotNumber = 99999

// Registry tracks disk identity, capacity and owner metadata, independent of
// which network currently hosts the disk. Disk records outlive network
// dissolution and bay breakage; only explicit administrative deletion
// removes them.
type Registry struct {
	store    *store.Store
	blobs    *blobstore.BlobStore
	maxCells int
	log      *logrus.Logger
}

func NewRegistry(st *store.Store, blobs *blobstore.BlobStore, maxCells int, log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.New()
	}
	return &Registry{
		store:    st,
		blobs:    blobs,
		maxCells: maxCells,
		log:      log,
	}
}

// RegisterDisk creates the persistent record for a freshly crafted disk with
// zero used cells. All tiers currently normalize to the same configured cell
// ceiling; the tier is recorded for later policy changes.
func (r *Registry) RegisterDisk(txn *badger.Txn, diskID, crafterUUID, crafterName string, tier types.DiskTier) (types.StorageDisk, error) {
	// disk ids end up as segments of '/'-delimited keys; an id carrying the
	// delimiter would make one disk's cell scans read another's rows
	if diskID == "" || strings.Contains(diskID, "/") {
		return types.StorageDisk{}, ErrInvalidDiskID
	}

	_, err := r.store.GetDisk(txn, diskID)
	if err == nil {
		return types.StorageDisk{}, ErrDiskExists
	}
	if err != store.ErrNotFound {
		return types.StorageDisk{}, err
	}

	disk := types.StorageDisk{
		DiskID:      diskID,
		CrafterUUID: crafterUUID,
		CrafterName: crafterName,
		Tier:        tier,
		MaxCells:    r.maxCells,
		UsedCells:   0,
	}
	if err := r.store.PutDisk(txn, disk); err != nil {
		return types.StorageDisk{}, err
	}

	r.log.WithFields(logrus.Fields{
		"diskId":  diskID,
		"tier":    tier.String(),
		"crafter": crafterName,
	}).Info("disk registered")

	return disk, nil
}

// GetDisk looks up a disk by id. UsedCells is recomputed from the cell
// table, never read from the cached counter alone.
func (r *Registry) GetDisk(txn *badger.Txn, diskID string) (types.StorageDisk, error) {
	disk, err := r.store.GetDisk(txn, diskID)
	if err == store.ErrNotFound {
		return types.StorageDisk{}, ErrDiskNotFound
	}
	if err != nil {
		return types.StorageDisk{}, err
	}
	used, err := r.store.CountCells(txn, diskID)
	if err != nil {
		return types.StorageDisk{}, err
	}
	disk.UsedCells = used
	return disk, nil
}

// HasAvailableCells reports whether the disk can hold one more cell, using
// the recomputed count.
func (r *Registry) HasAvailableCells(txn *badger.Txn, diskID string) (bool, error) {
	disk, err := r.GetDisk(txn, diskID)
	if err != nil {
		return false, err
	}
	return disk.UsedCells < disk.MaxCells, nil
}

// InsertDisk seats a disk into a physical drive-bay slot. The slot binds to
// whatever network the bay currently belongs to; an unbound bay seats the
// disk without making it visible to storage operations.
func (r *Registry) InsertDisk(txn *badger.Txn, loc types.Location, slotNumber int, diskID string) error {
	if slotNumber < 0 || slotNumber > maxSlotNumber {
		return ErrInvalidSlot
	}

	role, marked, err := r.store.GetMarker(txn, loc)
	if err != nil {
		return err
	}
	if !marked || !role.ContributesCapacity() {
		return ErrNotDriveBay
	}

	if _, err := r.GetDisk(txn, diskID); err != nil {
		return err
	}

	if _, seated, err := r.store.SlotForDisk(txn, diskID); err != nil {
		return err
	} else if seated {
		return ErrDiskSeated
	}

	if existing, occupied, err := r.store.GetSlot(txn, loc, slotNumber); err != nil {
		return err
	} else if occupied && existing.Occupied() {
		return ErrSlotOccupied
	}

	networkID, _, err := r.store.NetworkAt(txn, loc)
	if err != nil {
		return err
	}

	return r.store.PutSlot(txn, types.DriveBaySlot{
		Location:   loc,
		SlotNumber: slotNumber,
		DiskID:     diskID,
		NetworkID:  networkID,
	})
}

// WithdrawDisk removes a disk from a slot and deletes the slot row. The
// disk record and its cells persist; they are just invisible until reseated.
func (r *Registry) WithdrawDisk(txn *badger.Txn, loc types.Location, slotNumber int) (string, error) {
	slot, existed, err := r.store.GetSlot(txn, loc, slotNumber)
	if err != nil {
		return "", err
	}
	if !existed || !slot.Occupied() {
		return "", ErrSlotEmpty
	}
	if err := r.store.DeleteSlot(txn, loc, slotNumber); err != nil {
		return "", err
	}
	return slot.DiskID, nil
}

// EjectAll removes every slot row of a bay, as happens when the housing
// block is destroyed. Returns the ejected disk ids so the caller can drop
// their physical representations into the world.
func (r *Registry) EjectAll(txn *badger.Txn, loc types.Location) ([]string, error) {
	slots, err := r.store.SlotsAt(txn, loc)
	if err != nil {
		return nil, err
	}

	var ejected []string
	for _, slot := range slots {
		if slot.Occupied() {
			ejected = append(ejected, slot.DiskID)
		}
		if err := r.store.DeleteSlot(txn, slot.Location, slot.SlotNumber); err != nil {
			return nil, err
		}
	}
	return ejected, nil
}

// SeatedDiskIDs resolves the slot-ordered disks of a network.
func (r *Registry) SeatedDiskIDs(txn *badger.Txn, id types.NetworkID) ([]string, error) {
	return r.store.SeatedDiskIDs(txn, id)
}

// RecoverDisk is the administrative escape hatch: it reconstructs a disk's
// identity purely by id, bypassing network membership, even if the hosting
// network dissolved or the disk was never seated. Recovering a disk that is
// currently seated requires force and deletes the slot binding.
func (r *Registry) RecoverDisk(txn *badger.Txn, diskID string, force bool) (types.StorageDisk, error) {
	disk, err := r.GetDisk(txn, diskID)
	if err != nil {
		return types.StorageDisk{}, err
	}

	slot, seated, err := r.store.SlotForDisk(txn, diskID)
	if err != nil {
		return types.StorageDisk{}, err
	}
	if seated {
		if !force {
			return types.StorageDisk{}, ErrDiskSeated
		}
		if err := r.store.DeleteSlot(txn, slot.Location, slot.SlotNumber); err != nil {
			return types.StorageDisk{}, err
		}
		r.log.WithFields(logrus.Fields{
			"diskId": diskID,
			"slot":   fmt.Sprintf("%s#%d", slot.Location, slot.SlotNumber),
		}).Warn("forced recovery removed an active slot binding")
	}

	return disk, nil
}

// DeleteDisk is the explicit administrative deletion: the record, its cells
// and any payload blobs no longer referenced go away together.
func (r *Registry) DeleteDisk(txn *badger.Txn, diskID string) error {
	if _, err := r.GetDisk(txn, diskID); err != nil {
		return err
	}

	if slot, seated, err := r.store.SlotForDisk(txn, diskID); err != nil {
		return err
	} else if seated {
		if err := r.store.DeleteSlot(txn, slot.Location, slot.SlotNumber); err != nil {
			return err
		}
	}

	cells, err := r.store.CellsOfDisk(txn, diskID)
	if err != nil {
		return err
	}
	for _, cell := range cells {
		if err := r.store.DeleteCell(txn, diskID, cell.Hash); err != nil {
			return err
		}
		referenced, err := r.store.HashReferenced(txn, cell.Hash)
		if err != nil {
			return err
		}
		if !referenced {
			if err := r.blobs.Delete(txn, cell.Hash); err != nil {
				return err
			}
		}
	}

	return r.store.DeleteDisk(txn, diskID)
}
