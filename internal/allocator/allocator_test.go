package allocator_test

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/allocator"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/blobstore"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/disks"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/store"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/testutil"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

type fixture struct {
	st    *store.Store
	disks *disks.Registry
	alloc *allocator.Allocator
	netID types.NetworkID
	bay   types.Location
}

func newFixture(t *testing.T, maxCells, capPerCell int, allowed func(types.ItemRecord) bool) *fixture {
	t.Helper()

	kv := testutil.NewKV(t)
	st := store.NewStore(kv, testutil.QuietLogger())
	blobs := blobstore.NewBlobStore(testutil.QuietLogger())
	diskRegistry := disks.NewRegistry(st, blobs, maxCells, testutil.QuietLogger())
	alloc := allocator.NewAllocator(st, blobs, diskRegistry, allocator.Config{
		MaxQuantityPerCell: capPerCell,
		IsItemAllowed:      allowed,
	}, testutil.QuietLogger())

	f := &fixture{
		st:    st,
		disks: diskRegistry,
		alloc: alloc,
		netID: "net-1",
		bay:   types.Loc("w", 1, 64, 0),
	}

	err := kv.ExecuteTransaction(func(txn *badger.Txn) error {
		if err := st.SetMarker(txn, f.bay, types.DriveBay); err != nil {
			return err
		}
		if err := st.PutNetwork(txn, store.NetworkRecord{
			ID:             f.netID,
			ServerLocation: types.Loc("w", 0, 64, 0),
		}); err != nil {
			return err
		}
		return st.PutMember(txn, f.netID, f.bay, types.DriveBay)
	})
	require.NoError(t, err)

	return f
}

func (f *fixture) seatDisk(t *testing.T, diskID string, slotNumber int) {
	t.Helper()
	err := f.st.KV().ExecuteTransaction(func(txn *badger.Txn) error {
		if _, err := f.disks.RegisterDisk(txn, diskID, "uuid-1", "Alex", types.Tier4k); err != nil && err != disks.ErrDiskExists {
			return err
		}
		return f.disks.InsertDisk(txn, f.bay, slotNumber, diskID)
	})
	require.NoError(t, err)
}

func (f *fixture) storeItems(t *testing.T, items []types.ItemRecord) []types.ItemRecord {
	t.Helper()
	var remainder []types.ItemRecord
	err := f.st.KV().ExecuteTransaction(func(txn *badger.Txn) error {
		var err error
		remainder, err = f.alloc.Store(txn, f.netID, items)
		return err
	})
	require.NoError(t, err)
	return remainder
}

func (f *fixture) retrieve(t *testing.T, hash types.Hash, amount int) *types.ItemRecord {
	t.Helper()
	var record *types.ItemRecord
	err := f.st.KV().ExecuteTransaction(func(txn *badger.Txn) error {
		var err error
		record, err = f.alloc.Retrieve(txn, f.netID, hash, amount)
		return err
	})
	require.NoError(t, err)
	return record
}

func (f *fixture) listItems(t *testing.T) []types.ItemSummary {
	t.Helper()
	var summaries []types.ItemSummary
	err := f.st.KV().View(func(txn *badger.Txn) error {
		var err error
		summaries, err = f.alloc.ListItems(txn, f.netID)
		return err
	})
	require.NoError(t, err)
	return summaries
}

func (f *fixture) cellCount(t *testing.T, diskID string) int {
	t.Helper()
	var count int
	err := f.st.KV().View(func(txn *badger.Txn) error {
		var err error
		count, err = f.st.CountCells(txn, diskID)
		return err
	})
	require.NoError(t, err)
	return count
}

func item(payload string, quantity int) types.ItemRecord {
	return types.ItemRecord{
		Payload:      []byte(payload),
		Quantity:     quantity,
		MaxStackSize: 64,
	}
}

func TestStoreWithNoDisksReturnsEverything(t *testing.T) {
	f := newFixture(t, 8, 64, nil)

	remainder := f.storeItems(t, []types.ItemRecord{item("iron", 10)})
	require.Len(t, remainder, 1)
	assert.Equal(t, 10, remainder[0].Quantity)
}

func TestConservation(t *testing.T) {
	f := newFixture(t, 8, 128, nil)
	f.seatDisk(t, "disk-1", 0)
	hash := types.HashPayload([]byte("iron"))

	remainder := f.storeItems(t, []types.ItemRecord{item("iron", 100)})
	assert.Empty(t, remainder)

	record := f.retrieve(t, hash, 100)
	require.NotNil(t, record)
	assert.Equal(t, 100, record.Quantity)
	assert.Equal(t, []byte("iron"), record.Payload)

	assert.Equal(t, 0, f.cellCount(t, "disk-1"), "a fully drained cell must be deleted")

	err := f.st.KV().View(func(txn *badger.Txn) error {
		referenced, err := f.st.HashReferenced(txn, hash)
		require.NoError(t, err)
		assert.False(t, referenced)
		return nil
	})
	require.NoError(t, err)
}

func TestPartialRetrieval(t *testing.T) {
	f := newFixture(t, 8, 64, nil)
	f.seatDisk(t, "disk-1", 0)
	hash := types.HashPayload([]byte("iron"))

	f.storeItems(t, []types.ItemRecord{item("iron", 30)})

	record := f.retrieve(t, hash, 50)
	require.NotNil(t, record)
	assert.Equal(t, 30, record.Quantity, "retrieval is capped at what exists")
	assert.Equal(t, 0, f.cellCount(t, "disk-1"))
}

func TestRetrieveNothingReturnsAbsent(t *testing.T) {
	f := newFixture(t, 8, 64, nil)
	f.seatDisk(t, "disk-1", 0)

	record := f.retrieve(t, types.HashPayload([]byte("never stored")), 10)
	assert.Nil(t, record)
}

func TestTopUpBeforeNewCell(t *testing.T) {
	f := newFixture(t, 8, 64, nil)
	f.seatDisk(t, "disk-1", 0)

	f.storeItems(t, []types.ItemRecord{item("iron", 40)})
	remainder := f.storeItems(t, []types.ItemRecord{item("iron", 10)})
	assert.Empty(t, remainder)

	assert.Equal(t, 1, f.cellCount(t, "disk-1"), "top-up must not open a second cell")

	err := f.st.KV().View(func(txn *badger.Txn) error {
		cell, ok, err := f.st.GetCell(txn, "disk-1", types.HashPayload([]byte("iron")))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 50, cell.Quantity)
		return nil
	})
	require.NoError(t, err)
}

func TestOverflowCreatesRemainder(t *testing.T) {
	f := newFixture(t, 1, 64, nil)
	f.seatDisk(t, "disk-1", 0)

	remainder := f.storeItems(t, []types.ItemRecord{item("iron", 100)})
	require.Len(t, remainder, 1)
	assert.Equal(t, 36, remainder[0].Quantity)

	err := f.st.KV().View(func(txn *badger.Txn) error {
		cell, ok, err := f.st.GetCell(txn, "disk-1", types.HashPayload([]byte("iron")))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 64, cell.Quantity)
		return nil
	})
	require.NoError(t, err)
}

func TestCellCapNeverExceeded(t *testing.T) {
	f := newFixture(t, 2, 10, nil)
	f.seatDisk(t, "disk-1", 0)

	remainder := f.storeItems(t, []types.ItemRecord{
		item("iron", 100),
		item("gold", 100),
		item("coal", 5),
	})
	require.Len(t, remainder, 3)
	assert.Equal(t, 90, remainder[0].Quantity)
	assert.Equal(t, 90, remainder[1].Quantity)
	assert.Equal(t, 5, remainder[2].Quantity, "a full disk takes nothing of a new item")
	assert.Equal(t, 2, f.cellCount(t, "disk-1"))

	err := f.st.KV().View(func(txn *badger.Txn) error {
		disk, err := f.disks.GetDisk(txn, "disk-1")
		require.NoError(t, err)
		assert.LessOrEqual(t, disk.UsedCells, disk.MaxCells)
		return nil
	})
	require.NoError(t, err)
}

func TestOneCellPerItemPerDisk(t *testing.T) {
	f := newFixture(t, 8, 64, nil)
	f.seatDisk(t, "disk-1", 0)

	// more than one cell can hold, with plenty of free cells on the disk:
	// the overflow must come back as remainder, never silently disappear
	remainder := f.storeItems(t, []types.ItemRecord{item("iron", 100)})
	require.Len(t, remainder, 1)
	assert.Equal(t, 36, remainder[0].Quantity)
	assert.Equal(t, 1, f.cellCount(t, "disk-1"))

	var stored int
	err := f.st.KV().View(func(txn *badger.Txn) error {
		cells, err := f.st.CellsOfDisk(txn, "disk-1")
		require.NoError(t, err)
		for _, cell := range cells {
			stored += cell.Quantity
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 100, stored+remainder[0].Quantity, "every item is either on disk or in the remainder")
}

func TestSpillAcrossDisks(t *testing.T) {
	f := newFixture(t, 1, 64, nil)
	f.seatDisk(t, "disk-1", 0)
	f.seatDisk(t, "disk-2", 1)

	remainder := f.storeItems(t, []types.ItemRecord{item("iron", 100)})
	assert.Empty(t, remainder, "second disk must absorb the spill")
	assert.Equal(t, 1, f.cellCount(t, "disk-1"))
	assert.Equal(t, 1, f.cellCount(t, "disk-2"))
}

func TestDrainFullestCellsFirst(t *testing.T) {
	f := newFixture(t, 1, 64, nil)
	f.seatDisk(t, "disk-1", 0)
	f.seatDisk(t, "disk-2", 1)
	hash := types.HashPayload([]byte("iron"))

	// disk-1 gets 64, disk-2 gets 30
	f.storeItems(t, []types.ItemRecord{item("iron", 94)})

	record := f.retrieve(t, hash, 80)
	require.NotNil(t, record)
	assert.Equal(t, 80, record.Quantity)

	// the 64-cell drains completely, the 30-cell keeps the rest
	assert.Equal(t, 0, f.cellCount(t, "disk-1"))
	err := f.st.KV().View(func(txn *badger.Txn) error {
		cell, ok, err := f.st.GetCell(txn, "disk-2", hash)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 14, cell.Quantity)
		return nil
	})
	require.NoError(t, err)
}

func TestDisallowedItemsAreReturned(t *testing.T) {
	blocked := types.HashPayload([]byte("storage server block"))
	f := newFixture(t, 8, 64, func(it types.ItemRecord) bool {
		return it.Hash != blocked
	})
	f.seatDisk(t, "disk-1", 0)

	remainder := f.storeItems(t, []types.ItemRecord{
		item("storage server block", 5),
		item("iron", 5),
	})
	require.Len(t, remainder, 1)
	assert.Equal(t, 5, remainder[0].Quantity)
	assert.Equal(t, blocked, remainder[0].Hash)
	assert.Equal(t, 1, f.cellCount(t, "disk-1"))
}

func TestListItemsAggregatesAndOrders(t *testing.T) {
	f := newFixture(t, 8, 64, nil)
	f.seatDisk(t, "disk-1", 0)
	f.seatDisk(t, "disk-2", 1)

	f.storeItems(t, []types.ItemRecord{
		item("iron", 100), // spans two cells
		item("gold", 30),
	})

	summaries := f.listItems(t)
	require.Len(t, summaries, 2)
	assert.Equal(t, types.HashPayload([]byte("iron")), summaries[0].Hash)
	assert.Equal(t, 100, summaries[0].TotalQuantity)
	assert.Equal(t, []byte("iron"), summaries[0].SamplePayload)
	assert.Equal(t, 30, summaries[1].TotalQuantity)
}

func TestUnseatingIsolation(t *testing.T) {
	f := newFixture(t, 8, 64, nil)
	f.seatDisk(t, "disk-1", 0)
	hash := types.HashPayload([]byte("iron"))

	f.storeItems(t, []types.ItemRecord{item("iron", 40)})

	// withdraw the disk; its contents must vanish from the network view
	err := f.st.KV().ExecuteTransaction(func(txn *badger.Txn) error {
		_, err := f.disks.WithdrawDisk(txn, f.bay, 0)
		return err
	})
	require.NoError(t, err)
	assert.Empty(t, f.listItems(t))
	assert.Nil(t, f.retrieve(t, hash, 10))

	// reseat in a different slot; everything reappears unchanged
	f.seatDisk(t, "disk-1", 3)
	summaries := f.listItems(t)
	require.Len(t, summaries, 1)
	assert.Equal(t, 40, summaries[0].TotalQuantity)
}

func TestZeroQuantityCellsNeverLinger(t *testing.T) {
	f := newFixture(t, 8, 64, nil)
	f.seatDisk(t, "disk-1", 0)
	hash := types.HashPayload([]byte("iron"))

	f.storeItems(t, []types.ItemRecord{item("iron", 64)})

	for i := 0; i < 4; i++ {
		f.retrieve(t, hash, 16)
	}

	err := f.st.KV().View(func(txn *badger.Txn) error {
		cells, err := f.st.CellsOfDisk(txn, "disk-1")
		require.NoError(t, err)
		for _, cell := range cells {
			assert.Greater(t, cell.Quantity, 0)
		}
		assert.Empty(t, cells)
		return nil
	})
	require.NoError(t, err)
}
