package netlock_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/netlock"
	"github.com/itzTheMeow/Modular-Storage-System-sub002/pkg/types"
)

func TestMutualExclusionPerID(t *testing.T) {
	lm := netlock.NewLockMap()
	id := types.NetworkID("net-a")

	inCritical := 0
	maxInCritical := 0
	var track sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lm.With(id, func() error {
				track.Lock()
				inCritical++
				if inCritical > maxInCritical {
					maxInCritical = inCritical
				}
				track.Unlock()

				time.Sleep(time.Millisecond)

				track.Lock()
				inCritical--
				track.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInCritical, "two operations overlapped on one network id")
	assert.Equal(t, 0, lm.Held(), "idle lock entries must be collected")
}

func TestDisjointIDsDoNotBlock(t *testing.T) {
	lm := netlock.NewLockMap()

	release := lm.Acquire("net-a")
	defer release()

	done := make(chan struct{})
	go func() {
		lm.With("net-b", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("operation on a different network id blocked")
	}
}

func TestLockReleasedOnError(t *testing.T) {
	lm := netlock.NewLockMap()
	id := types.NetworkID("net-a")
	boom := errors.New("boom")

	err := lm.With(id, func() error { return boom })
	require.ErrorIs(t, err, boom, "operation error must propagate unchanged")

	// a failed operation must not leave the id locked
	done := make(chan struct{})
	go func() {
		lm.With(id, func() error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock was not released after the operation failed")
	}
	assert.Equal(t, 0, lm.Held())
}

func TestWithAllOrderedAcquisition(t *testing.T) {
	lm := netlock.NewLockMap()
	ids := []types.NetworkID{"net-a", "net-b", "net-c"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lm.WithAll(ids, func() error {
				time.Sleep(time.Millisecond)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, lm.Held())
}
