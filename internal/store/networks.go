package store

import (
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

// NetworkRecord is the persistent head row of one network: its id and the
// location of its single storage server. Membership rows live separately
// under the member/ prefix.
type NetworkRecord struct {
	ID             types.NetworkID
	ServerLocation types.Location
}

func markerKey(loc types.Location) string {
	return prefixMarker + loc.Key()
}

func networkKey(id types.NetworkID) string {
	return prefixNetwork + string(id)
}

func memberKey(id types.NetworkID, loc types.Location) string {
	return prefixMember + string(id) + "/" + loc.Key()
}

func netLocKey(loc types.Location) string {
	return prefixNetLoc + loc.Key()
}

// Markers (custom block role per coordinate; at most one role each).

func (s *Store) SetMarker(txn *badger.Txn, loc types.Location, role types.BlockRole) error {
	return txn.Set([]byte(markerKey(loc)), role.Bytes())
}

func (s *Store) GetMarker(txn *badger.Txn, loc types.Location) (types.BlockRole, bool, error) {
	data, err := getValue(txn, markerKey(loc))
	if err == ErrNotFound {
		return types.UnknownRole, false, nil
	}
	if err != nil {
		return types.UnknownRole, false, err
	}
	var role types.BlockRole
	if err := role.FromBytes(data); err != nil {
		return types.UnknownRole, false, err
	}
	return role, true, nil
}

func (s *Store) DeleteMarker(txn *badger.Txn, loc types.Location) error {
	return txn.Delete([]byte(markerKey(loc)))
}

// Networks and membership.

func (s *Store) PutNetwork(txn *badger.Txn, rec NetworkRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return txn.Set([]byte(networkKey(rec.ID)), data)
}

func (s *Store) GetNetwork(txn *badger.Txn, id types.NetworkID) (NetworkRecord, error) {
	data, err := getValue(txn, networkKey(id))
	if err != nil {
		return NetworkRecord{}, err
	}
	var rec NetworkRecord
	if err := decodeRecord(data, &rec); err != nil {
		return NetworkRecord{}, err
	}
	return rec, nil
}

func (s *Store) DeleteNetwork(txn *badger.Txn, id types.NetworkID) error {
	return txn.Delete([]byte(networkKey(id)))
}

func (s *Store) PutMember(txn *badger.Txn, id types.NetworkID, loc types.Location, role types.BlockRole) error {
	if err := txn.Set([]byte(memberKey(id, loc)), role.Bytes()); err != nil {
		return err
	}
	return txn.Set([]byte(netLocKey(loc)), []byte(id))
}

// Members returns all membership rows of one network.
func (s *Store) Members(txn *badger.Txn, id types.NetworkID) (map[types.Location]types.BlockRole, error) {
	items, err := itemsWithPrefix(txn, prefixMember+string(id)+"/")
	if err != nil {
		return nil, err
	}

	members := make(map[types.Location]types.BlockRole, len(items))
	for _, kv := range items {
		locKey := strings.TrimPrefix(string(kv[0]), prefixMember+string(id)+"/")
		loc, err := types.ParseLocationKey(locKey)
		if err != nil {
			return nil, err
		}
		var role types.BlockRole
		if err := role.FromBytes(kv[1]); err != nil {
			return nil, err
		}
		members[loc] = role
	}
	return members, nil
}

// DeleteMembers removes every membership row of a network, including the
// reverse location index entries that still point at it.
func (s *Store) DeleteMembers(txn *badger.Txn, id types.NetworkID) error {
	members, err := s.Members(txn, id)
	if err != nil {
		return err
	}

	for loc := range members {
		if err := txn.Delete([]byte(memberKey(id, loc))); err != nil {
			return err
		}
		current, ok, err := s.NetworkAt(txn, loc)
		if err != nil {
			return err
		}
		if ok && current == id {
			if err := txn.Delete([]byte(netLocKey(loc))); err != nil {
				return err
			}
		}
	}
	return nil
}

// NetworkAt is the point lookup from a member location to its network id.
func (s *Store) NetworkAt(txn *badger.Txn, loc types.Location) (types.NetworkID, bool, error) {
	data, err := getValue(txn, netLocKey(loc))
	if err == ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return types.NetworkID(data), true, nil
}
