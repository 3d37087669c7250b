package mss

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/network"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

// RemovalResult reports what a block removal did to its surroundings so the
// world-event shell can react (drop ejected disks, refresh terminals).
type RemovalResult struct {
	// EjectedDisks lists disks physically ejected from a broken drive bay.
	// Their records and contents persist.
	EjectedDisks []string
	// NetworkID is the surviving network id, empty when none survived.
	NetworkID types.NetworkID
	// Dissolved is true when the removal dissolved a registered network.
	Dissolved bool
}

type detectOutcome struct {
	index int
	info  types.NetworkInfo
	err   error
}

// HandleBlockPlaced persists the role marker and re-detects from the placed
// block. A valid detection is registered (creating, extending or merging
// networks); an invalid one leaves the marker in place and reports why.
// Validation failures persist no network state.
func (e *Engine) HandleBlockPlaced(loc types.Location, role types.BlockRole) (types.NetworkID, error) {
	if role == types.UnknownRole {
		return "", fmt.Errorf("cannot place a block without a role")
	}

	err := e.kv.ExecuteTransaction(func(txn *badger.Txn) error {
		return e.store.SetMarker(txn, loc, role)
	})
	if err != nil {
		return "", err
	}

	info, err := e.detector.Detect(loc)
	if err != nil {
		if network.IsValidationError(err) {
			e.log.WithFields(logrus.Fields{
				"location": loc.String(),
				"role":     role.String(),
			}).Debugf("placed block forms no valid network: %v", err)
			return "", err
		}
		return "", err
	}

	// lock every network the discovered blocks already belong to, in
	// sorted order, so concurrent detections cannot clobber each other's
	// membership writes
	affected, err := e.affectedIDs(info)
	if err != nil {
		return "", err
	}

	// The affected set is computed before the locks are taken, so a racing
	// placement can change it. Registration re-detects under the lock,
	// recomputes the set inside the transaction and starts over with the
	// fresh set whenever it no longer matches what was locked. Badger
	// reports the remaining window (two registrations committing on
	// overlapping key sets without common locks) as a conflict, which takes
	// the same retry path.
	for {
		var id types.NetworkID
		var stale []types.NetworkID
		register := func() error {
			info, err := e.detector.Detect(loc)
			if err != nil {
				return err
			}
			return e.kv.ExecuteTransaction(func(txn *badger.Txn) error {
				current, err := e.networks.AffectedIDs(txn, info)
				if err != nil {
					return err
				}
				if !sameIDs(current, affected) {
					stale = current
					return nil
				}
				id, err = e.networks.RegisterNetwork(txn, info)
				return err
			})
		}

		if len(affected) == 0 {
			err = register()
		} else {
			err = e.locks.WithAll(affected, register)
		}
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return "", err
		}
		if stale == nil {
			return id, nil
		}
		affected = stale
	}
}

// sameIDs compares two sorted id sets.
func sameIDs(a, b []types.NetworkID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// HandleBlockRemoved deletes the marker, ejects disks if the block was a
// drive bay, and re-detects from every surviving neighbor. If exactly one
// neighbor yields a valid network, that sub-graph keeps the id via the
// normal register path; if none does, the network dissolves. Disk and cell
// rows always survive dissolution.
func (e *Engine) HandleBlockRemoved(loc types.Location) (RemovalResult, error) {
	role, marked, err := e.RoleAt(loc)
	if err != nil {
		return RemovalResult{}, err
	}
	if !marked {
		return RemovalResult{}, fmt.Errorf("no marked block at %s", loc)
	}

	id, hadNetwork, err := e.NetworkAt(loc)
	if err != nil {
		return RemovalResult{}, err
	}

	var result RemovalResult
	remove := func() error {
		err := e.kv.ExecuteTransaction(func(txn *badger.Txn) error {
			if err := e.store.DeleteMarker(txn, loc); err != nil {
				return err
			}
			if role.ContributesCapacity() {
				ejected, err := e.disks.EjectAll(txn, loc)
				if err != nil {
					return err
				}
				result.EjectedDisks = ejected
			}
			return nil
		})
		if err != nil {
			return err
		}

		survivor, err := e.redetectSurvivors(loc)
		if err != nil {
			return err
		}

		return e.kv.ExecuteTransaction(func(txn *badger.Txn) error {
			if survivor != nil {
				newID, err := e.networks.RegisterNetwork(txn, *survivor)
				if err != nil {
					return err
				}
				result.NetworkID = newID
				return nil
			}
			if hadNetwork {
				result.Dissolved = true
				return e.networks.UnregisterNetwork(txn, id)
			}
			return nil
		})
	}

	if hadNetwork {
		err = e.locks.With(id, remove)
	} else {
		err = remove()
	}
	if err != nil {
		return RemovalResult{}, err
	}
	return result, nil
}

// redetectSurvivors fans one detection per marked neighbor out on the
// worker pool and picks the first valid result in neighbor order, so the
// outcome does not depend on scheduling.
func (e *Engine) redetectSurvivors(removed types.Location) (*types.NetworkInfo, error) {
	var seeds []types.Location
	for _, neighbor := range removed.Neighbors() {
		_, marked, err := e.RoleAt(neighbor)
		if err != nil {
			return nil, err
		}
		if marked {
			seeds = append(seeds, neighbor)
		}
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	room := e.pool.CreateRoom(len(seeds))
	for i, seed := range seeds {
		i, seed := i, seed
		room.Submit(func() interface{} {
			info, err := e.detector.Detect(seed)
			return detectOutcome{index: i, info: info, err: err}
		})
	}

	outcomes := make([]detectOutcome, 0, len(seeds))
	for _, raw := range room.Collect() {
		outcomes = append(outcomes, raw.(detectOutcome))
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].index < outcomes[j].index })

	for _, outcome := range outcomes {
		if outcome.err == nil {
			info := outcome.info
			return &info, nil
		}
		if !network.IsValidationError(outcome.err) {
			return nil, outcome.err
		}
	}
	return nil, nil
}

func (e *Engine) affectedIDs(info types.NetworkInfo) ([]types.NetworkID, error) {
	var ids []types.NetworkID
	err := e.kv.View(func(txn *badger.Txn) error {
		var err error
		ids, err = e.networks.AffectedIDs(txn, info)
		return err
	})
	return ids, err
}
