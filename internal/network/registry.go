package network

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/store"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

// Registry owns the persistent mapping between network ids and member block
// sets. Registration replaces membership wholesale, which is also what
// implements merging: the moment a connecting block joins two previously
// separate networks, one detection pass covers both and one id survives.
type Registry struct {
	store *store.Store
	log   *logrus.Logger
}

func NewRegistry(st *store.Store, log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.New()
	}
	return &Registry{store: st, log: log}
}

// mintNetworkID creates a fresh opaque network id.
func mintNetworkID() (types.NetworkID, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("error minting network id: %w", err)
	}
	return types.NetworkID(hex.EncodeToString(b[:])), nil
}

// AffectedIDs returns the sorted set of existing network ids that any of the
// discovered blocks already belong to. Callers lock these ids (plus none,
// when a new id will be minted) before registering.
func (r *Registry) AffectedIDs(txn *badger.Txn, info types.NetworkInfo) ([]types.NetworkID, error) {
	idSet := make(map[types.NetworkID]bool)
	for loc := range info.Blocks {
		id, ok, err := r.store.NetworkAt(txn, loc)
		if err != nil {
			return nil, err
		}
		if ok {
			idSet[id] = true
		}
	}
	ids := make([]types.NetworkID, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// RegisterNetwork idempotently persists a validated detection snapshot. If
// discovered blocks already belong to existing networks, the smallest id is
// reused and the others are absorbed; otherwise a new id is minted.
// Membership rows of every affected id are deleted and replaced by the
// discovered set in the same transaction, and drive-bay slot rows are
// re-bound so seated disks follow their network.
func (r *Registry) RegisterNetwork(txn *badger.Txn, info types.NetworkInfo) (types.NetworkID, error) {
	ids, err := r.AffectedIDs(txn, info)
	if err != nil {
		return "", err
	}

	var id types.NetworkID
	if len(ids) == 0 {
		id, err = mintNetworkID()
		if err != nil {
			return "", err
		}
	} else {
		id = ids[0]
	}

	// remember drive bays bound to any affected id; bays that do not
	// survive the wholesale replace must have their slots unbound
	oldBays := make(map[types.Location]bool)
	for _, affected := range ids {
		members, err := r.store.Members(txn, affected)
		if err != nil {
			return "", err
		}
		for loc, role := range members {
			if role.ContributesCapacity() {
				oldBays[loc] = true
			}
		}
		if err := r.store.DeleteMembers(txn, affected); err != nil {
			return "", err
		}
		if affected != id {
			if err := r.store.DeleteNetwork(txn, affected); err != nil {
				return "", err
			}
		}
	}

	for loc, role := range info.Blocks {
		if err := r.store.PutMember(txn, id, loc, role); err != nil {
			return "", err
		}
	}
	if err := r.store.PutNetwork(txn, store.NetworkRecord{
		ID:             id,
		ServerLocation: info.ServerLocation,
	}); err != nil {
		return "", err
	}

	for loc, role := range info.Blocks {
		if role.ContributesCapacity() {
			if err := r.rebindSlots(txn, loc, id); err != nil {
				return "", err
			}
		}
	}
	for loc := range oldBays {
		if _, kept := info.Blocks[loc]; !kept {
			if err := r.rebindSlots(txn, loc, ""); err != nil {
				return "", err
			}
		}
	}

	r.log.WithFields(logrus.Fields{
		"networkId": string(id),
		"blocks":    len(info.Blocks),
		"server":    info.ServerLocation.String(),
		"absorbed":  len(ids),
	}).Info("network registered")

	return id, nil
}

// UnregisterNetwork dissolves a network: membership rows go away and seated
// slots are unbound. StorageDisk and cell rows are untouched; disk contents
// survive dissolution and stay recoverable through the administrative path.
func (r *Registry) UnregisterNetwork(txn *badger.Txn, id types.NetworkID) error {
	members, err := r.store.Members(txn, id)
	if err != nil {
		return err
	}

	for loc, role := range members {
		if role.ContributesCapacity() {
			if err := r.rebindSlots(txn, loc, ""); err != nil {
				return err
			}
		}
	}
	if err := r.store.DeleteMembers(txn, id); err != nil {
		return err
	}
	if err := r.store.DeleteNetwork(txn, id); err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{
		"networkId": string(id),
		"blocks":    len(members),
	}).Info("network dissolved")

	return nil
}

// NetworkAt is the point lookup from any member location to its network id.
func (r *Registry) NetworkAt(txn *badger.Txn, loc types.Location) (types.NetworkID, bool, error) {
	return r.store.NetworkAt(txn, loc)
}

func (r *Registry) rebindSlots(txn *badger.Txn, loc types.Location, id types.NetworkID) error {
	slots, err := r.store.SlotsAt(txn, loc)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		if slot.NetworkID == id {
			continue
		}
		slot.NetworkID = id
		if err := r.store.PutSlot(txn, slot); err != nil {
			return err
		}
	}
	return nil
}
