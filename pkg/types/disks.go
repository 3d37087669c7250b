package types

import "fmt"

// DiskTier is the capacity class stamped on a disk at craft time. All tiers
// currently normalize to the same cell ceiling by policy; the tier is kept
// on the record so the policy can change without migrating disks.
type DiskTier int

const (
	Tier1k DiskTier = iota
	Tier4k
	Tier16k
	Tier64k
)

func (t DiskTier) String() string {
	switch t {
	case Tier1k:
		return "1k"
	case Tier4k:
		return "4k"
	case Tier16k:
		return "16k"
	case Tier64k:
		return "64k"
	}
	return "unknown"
}

func ParseDiskTier(s string) (DiskTier, error) {
	switch s {
	case "1k":
		return Tier1k, nil
	case "4k":
		return Tier4k, nil
	case "16k":
		return Tier16k, nil
	case "64k":
		return Tier64k, nil
	}
	return 0, fmt.Errorf("unknown disk tier: %q", s)
}

// StorageDisk is the persistent identity of one removable disk. It is
// created on craft and destroyed only by explicit administrative deletion;
// breaking the housing drive bay ejects the disk physically but the record
// and its cells persist.
type StorageDisk struct {
	DiskID      string
	CrafterUUID string
	CrafterName string
	Tier        DiskTier
	MaxCells    int
	// UsedCells is a cache of the derived cell count. It is recomputed from
	// the cell table on every use and must never be trusted on its own.
	UsedCells int
}

// DriveBaySlot binds one physical slot of a drive bay to a disk. A disk not
// bound to any slot is unseated: invisible to storage operations even though
// its record and contents persist.
type DriveBaySlot struct {
	Location   Location
	SlotNumber int
	DiskID     string // empty when the slot is vacant
	NetworkID  NetworkID
}

func (s DriveBaySlot) Occupied() bool {
	return s.DiskID != ""
}
