package network

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

var (
	// ErrNotMarked means the seed coordinate carries no role marker.
	ErrNotMarked = errors.New("network: seed block carries no role marker")
	// ErrNoServer means no storage server is reachable from the seed.
	ErrNoServer = errors.New("network: no storage server reachable")
	// ErrMultipleServers means more than one storage server is reachable.
	ErrMultipleServers = errors.New("network: more than one storage server reachable")
	// ErrNetworkTooLarge means the discovered block set exceeds the ceiling.
	ErrNetworkTooLarge = errors.New("network: block count exceeds the configured maximum")
)

// IsValidationError reports whether a detection failure is a validation
// outcome (wrong server count, ceiling exceeded, unmarked seed) rather than
// a store failure. Validation outcomes persist no state.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNotMarked) ||
		errors.Is(err, ErrNoServer) ||
		errors.Is(err, ErrMultipleServers) ||
		errors.Is(err, ErrNetworkTooLarge)
}

// RoleLookup answers which role, if any, is marked at a coordinate. It is
// the read-only world-state boundary of detection.
type RoleLookup interface {
	RoleAt(loc types.Location) (types.BlockRole, bool, error)
}

// Detector performs the bounded flood fill that discovers one candidate
// network from a seed coordinate. It only reads marker state and never
// touches the registry.
type Detector struct {
	roles     RoleLookup
	maxBlocks int
	log       *logrus.Logger
}

func NewDetector(roles RoleLookup, maxBlocks int, log *logrus.Logger) *Detector {
	if log == nil {
		log = logrus.New()
	}
	return &Detector{
		roles:     roles,
		maxBlocks: maxBlocks,
		log:       log,
	}
}

// Detect flood-fills face-adjacent marked blocks starting at seed and
// validates the result: exactly one storage server, at most maxBlocks
// members. Traversal is breadth-first with an explicit visited set, so
// cyclic cable graphs terminate. Servers are members but dead ends; the
// seed itself always expands so that placing a server against an existing
// cable run merges rather than isolating it.
//
// The fill hard-stops one block past the ceiling to bound work on
// adversarially large structures.
func (d *Detector) Detect(seed types.Location) (types.NetworkInfo, error) {
	seedRole, ok, err := d.roles.RoleAt(seed)
	if err != nil {
		return types.NetworkInfo{}, fmt.Errorf("error reading seed marker: %w", err)
	}
	if !ok {
		return types.NetworkInfo{}, ErrNotMarked
	}

	info := types.NetworkInfo{
		Blocks: make(map[types.Location]types.BlockRole),
	}
	info.Blocks[seed] = seedRole

	visited := map[types.Location]bool{seed: true}
	queue := []types.Location{seed}
	servers := 0
	if seedRole == types.StorageServer {
		servers++
		info.ServerLocation = seed
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		role := info.Blocks[current]
		if current != seed && !role.Traversable() {
			continue
		}

		for _, neighbor := range current.Neighbors() {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true

			neighborRole, marked, err := d.roles.RoleAt(neighbor)
			if err != nil {
				return types.NetworkInfo{}, fmt.Errorf("error reading marker at %s: %w", neighbor, err)
			}
			if !marked {
				continue
			}

			info.Blocks[neighbor] = neighborRole
			if neighborRole == types.StorageServer {
				servers++
				info.ServerLocation = neighbor
			}

			if len(info.Blocks) > d.maxBlocks+1 {
				d.log.WithFields(logrus.Fields{
					"seed": seed.String(),
					"max":  d.maxBlocks,
				}).Warn("network detection aborted, size ceiling exceeded")
				return types.NetworkInfo{}, ErrNetworkTooLarge
			}

			queue = append(queue, neighbor)
		}
	}

	if len(info.Blocks) > d.maxBlocks {
		return types.NetworkInfo{}, ErrNetworkTooLarge
	}
	if servers == 0 {
		return types.NetworkInfo{}, ErrNoServer
	}
	if servers > 1 {
		return types.NetworkInfo{}, ErrMultipleServers
	}

	return info, nil
}
