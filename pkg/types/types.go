package types

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Hash is the content fingerprint of a stored item payload. It is derived
// from the serialized item description without its quantity, so two items
// hash equal iff they are stackable-identical for storage purposes.
type Hash [64]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h *Hash) FromBytes(b []byte) error {
	if len(b) != 64 {
		return fmt.Errorf("invalid byte length for Hash: %d", len(b))
	}
	copy(h[:], b)
	return nil
}

// HashPayload fingerprints an opaque item payload. The payload is never
// interpreted, only hashed and round-tripped byte-for-byte.
func HashPayload(payload []byte) Hash {
	return sha512.Sum512(payload)
}

// NetworkID identifies one validated block network. It stays stable across
// additions and removals that keep the network connected and is replaced
// when a network dissolves and later re-forms.
type NetworkID string

// Location is a block coordinate in a named world.
type Location struct {
	World string
	X     int
	Y     int
	Z     int
}

func Loc(world string, x, y, z int) Location {
	return Location{World: world, X: x, Y: y, Z: z}
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d:%d", l.World, l.X, l.Y, l.Z)
}

// Key returns the canonical persistence key fragment for the location.
func (l Location) Key() string {
	return l.String()
}

func ParseLocationKey(key string) (Location, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 {
		return Location{}, fmt.Errorf("invalid location key: %q", key)
	}
	x, err := strconv.Atoi(parts[1])
	if err != nil {
		return Location{}, fmt.Errorf("invalid location key: %q", key)
	}
	y, err := strconv.Atoi(parts[2])
	if err != nil {
		return Location{}, fmt.Errorf("invalid location key: %q", key)
	}
	z, err := strconv.Atoi(parts[3])
	if err != nil {
		return Location{}, fmt.Errorf("invalid location key: %q", key)
	}
	return Location{World: parts[0], X: x, Y: y, Z: z}, nil
}

// Neighbors returns the six face-adjacent coordinates. Diagonal neighbors
// are not adjacent for network purposes.
func (l Location) Neighbors() [6]Location {
	return [6]Location{
		{l.World, l.X + 1, l.Y, l.Z},
		{l.World, l.X - 1, l.Y, l.Z},
		{l.World, l.X, l.Y + 1, l.Z},
		{l.World, l.X, l.Y - 1, l.Z},
		{l.World, l.X, l.Y, l.Z + 1},
		{l.World, l.X, l.Y, l.Z - 1},
	}
}

// BlockRole classifies a role-marked block. A coordinate carries at most one
// role; unmarked coordinates are vanilla blocks.
type BlockRole int

const (
	UnknownRole BlockRole = iota
	StorageServer
	DriveBay
	Terminal
	Cable
	Importer
	Exporter
)

func (r BlockRole) String() string {
	switch r {
	case StorageServer:
		return "StorageServer"
	case DriveBay:
		return "DriveBay"
	case Terminal:
		return "Terminal"
	case Cable:
		return "Cable"
	case Importer:
		return "Importer"
	case Exporter:
		return "Exporter"
	}
	return "Unknown"
}

func (r BlockRole) Bytes() []byte {
	return []byte{byte(r)}
}

func (r *BlockRole) FromBytes(b []byte) error {
	if len(b) != 1 {
		return fmt.Errorf("invalid byte length for BlockRole: %d", len(b))
	}
	*r = BlockRole(b[0])
	return nil
}

// Traversable reports whether detection continues through this block to its
// neighbors. Servers are network members but traversal stops at them.
func (r BlockRole) Traversable() bool {
	switch r {
	case DriveBay, Terminal, Cable, Importer, Exporter:
		return true
	}
	return false
}

// ContributesCapacity reports whether the block can seat storage disks.
func (r BlockRole) ContributesCapacity() bool {
	return r == DriveBay
}

// NetworkInfo is a transient detection snapshot. It is constructed fresh by
// every detection pass, handed to the registry, and then discarded; it is
// never mutated in place.
type NetworkInfo struct {
	ID             NetworkID // empty until registered
	ServerLocation Location
	Blocks         map[Location]BlockRole
}

func (n NetworkInfo) Size() int {
	return len(n.Blocks)
}

// ItemRecord is one homogeneous stack of items moving in or out of storage.
// Payload is the serialized item description without quantity.
type ItemRecord struct {
	Hash         Hash
	Payload      []byte
	Quantity     int
	MaxStackSize int
}

// ItemSummary is one line of a terminal's aggregated view: total quantity
// for one item fingerprint across all seated disks of a network.
type ItemSummary struct {
	Hash          Hash
	SamplePayload []byte
	MaxStackSize  int
	TotalQuantity int
}
