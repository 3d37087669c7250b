package network_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/network"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/testutil"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

// mapRoles is an in-memory RoleLookup for detector tests.
type mapRoles map[types.Location]types.BlockRole

func (m mapRoles) RoleAt(loc types.Location) (types.BlockRole, bool, error) {
	role, ok := m[loc]
	return role, ok, nil
}

func line(world string, y int, roles ...types.BlockRole) mapRoles {
	m := make(mapRoles)
	for x, role := range roles {
		m[types.Loc(world, x, y, 0)] = role
	}
	return m
}

func TestDetectSimpleNetwork(t *testing.T) {
	world := line("w", 64,
		types.StorageServer, types.Cable, types.DriveBay, types.Terminal)
	d := network.NewDetector(world, 128, testutil.QuietLogger())

	info, err := d.Detect(types.Loc("w", 1, 64, 0))
	require.NoError(t, err)
	assert.Equal(t, 4, info.Size())
	assert.Equal(t, types.Loc("w", 0, 64, 0), info.ServerLocation)
	assert.Equal(t, types.StorageServer, info.Blocks[info.ServerLocation])
}

func TestDetectUnmarkedSeed(t *testing.T) {
	d := network.NewDetector(mapRoles{}, 128, testutil.QuietLogger())

	_, err := d.Detect(types.Loc("w", 0, 0, 0))
	assert.ErrorIs(t, err, network.ErrNotMarked)
	assert.True(t, network.IsValidationError(err))
}

func TestDetectNoServer(t *testing.T) {
	world := line("w", 64, types.Cable, types.Cable, types.Terminal)
	d := network.NewDetector(world, 128, testutil.QuietLogger())

	_, err := d.Detect(types.Loc("w", 0, 64, 0))
	assert.ErrorIs(t, err, network.ErrNoServer)
}

func TestDetectTwoServersRejected(t *testing.T) {
	world := line("w", 64,
		types.StorageServer, types.Cable, types.Cable, types.StorageServer)
	d := network.NewDetector(world, 128, testutil.QuietLogger())

	_, err := d.Detect(types.Loc("w", 1, 64, 0))
	assert.ErrorIs(t, err, network.ErrMultipleServers)
}

func TestDetectSizeCeiling(t *testing.T) {
	// ceiling=5, 6-block connected graph with one server
	world := line("w", 64,
		types.StorageServer, types.Cable, types.Cable, types.Cable, types.Cable, types.Terminal)
	d := network.NewDetector(world, 5, testutil.QuietLogger())

	_, err := d.Detect(types.Loc("w", 1, 64, 0))
	assert.ErrorIs(t, err, network.ErrNetworkTooLarge)

	// the same graph one block smaller is fine
	smaller := line("w", 64,
		types.StorageServer, types.Cable, types.Cable, types.Cable, types.Terminal)
	d = network.NewDetector(smaller, 5, testutil.QuietLogger())
	info, err := d.Detect(types.Loc("w", 1, 64, 0))
	require.NoError(t, err)
	assert.Equal(t, 5, info.Size())
}

func TestDetectTerminatesOnCycles(t *testing.T) {
	// a 2x2 cable loop attached to a server
	world := mapRoles{
		types.Loc("w", 0, 64, 0): types.StorageServer,
		types.Loc("w", 1, 64, 0): types.Cable,
		types.Loc("w", 2, 64, 0): types.Cable,
		types.Loc("w", 1, 64, 1): types.Cable,
		types.Loc("w", 2, 64, 1): types.Cable,
	}
	d := network.NewDetector(world, 128, testutil.QuietLogger())

	info, err := d.Detect(types.Loc("w", 1, 64, 0))
	require.NoError(t, err)
	assert.Equal(t, 5, info.Size())
}

func TestDetectServerIsDeadEnd(t *testing.T) {
	// cable - server - cable: detection from one side must not cross the
	// server to the far side
	world := line("w", 64, types.Cable, types.StorageServer, types.Cable)
	d := network.NewDetector(world, 128, testutil.QuietLogger())

	info, err := d.Detect(types.Loc("w", 0, 64, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, info.Size())
	_, farSide := info.Blocks[types.Loc("w", 2, 64, 0)]
	assert.False(t, farSide)
}

func TestDetectMergeUnion(t *testing.T) {
	// two cable runs, one with a server, joined by a new cable at x=3
	world := line("w", 64,
		types.StorageServer, types.Cable, types.Cable, types.Cable, types.Cable, types.Terminal)
	d := network.NewDetector(world, 128, testutil.QuietLogger())

	info, err := d.Detect(types.Loc("w", 3, 64, 0))
	require.NoError(t, err)
	assert.Equal(t, 6, info.Size(), "merge must contain the union of both sides")
}

func TestDetectMergeWithTwoServersRejected(t *testing.T) {
	// two previously separate valid networks, each with a server, being
	// bridged must be rejected rather than silently picking one
	world := line("w", 64,
		types.StorageServer, types.Cable, types.Cable, types.Cable, types.StorageServer)
	d := network.NewDetector(world, 128, testutil.QuietLogger())

	_, err := d.Detect(types.Loc("w", 2, 64, 0))
	assert.ErrorIs(t, err, network.ErrMultipleServers)
}
