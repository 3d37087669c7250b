package types

import (
	"encoding/json"
	"sort"
)

func (n NetworkInfo) MarshalJSON() ([]byte, error) {
	blocks := make([]string, 0, len(n.Blocks))
	for loc, role := range n.Blocks {
		blocks = append(blocks, loc.String()+"="+role.String())
	}
	sort.Strings(blocks)

	return json.MarshalIndent(&struct {
		NetworkID      string   `json:"networkId,omitempty"`
		ServerLocation string   `json:"serverLocation"`
		Blocks         []string `json:"blocks"`
	}{
		NetworkID:      string(n.ID),
		ServerLocation: n.ServerLocation.String(),
		Blocks:         blocks,
	}, "", "    ")
}

func (s ItemSummary) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(&struct {
		ItemHash      string `json:"itemHash"`
		MaxStackSize  int    `json:"maxStackSize"`
		TotalQuantity int    `json:"totalQuantity"`
	}{
		ItemHash:      s.Hash.String(),
		MaxStackSize:  s.MaxStackSize,
		TotalQuantity: s.TotalQuantity,
	}, "", "    ")
}

func (d StorageDisk) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(&struct {
		DiskID      string `json:"diskId"`
		CrafterUUID string `json:"crafterUuid"`
		CrafterName string `json:"crafterName"`
		Tier        string `json:"tier"`
		MaxCells    int    `json:"maxCells"`
		UsedCells   int    `json:"usedCells"`
	}{
		DiskID:      d.DiskID,
		CrafterUUID: d.CrafterUUID,
		CrafterName: d.CrafterName,
		Tier:        d.Tier.String(),
		MaxCells:    d.MaxCells,
		UsedCells:   d.UsedCells,
	}, "", "    ")
}
