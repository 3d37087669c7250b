package testutil

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/itzTheMeow/Modular-Storage-System-sub002/internal/keyValStore"
)

// QuietLogger returns a logger that only reports warnings, so test output
// stays readable.
func QuietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return log
}

// NewKV opens a throwaway badger store under the test's temp dir and closes
// it on cleanup.
func NewKV(t testing.TB) *keyValStore.KeyValStore {
	t.Helper()

	kv, err := keyValStore.NewKeyValStore(keyValStore.StoreConfig{
		Paths:            []string{t.TempDir()},
		MinimumFreeSpace: 1,
		Logger:           QuietLogger(),
	})
	if err != nil {
		t.Fatalf("NewKeyValStore failed with error: %v", err)
	}
	t.Cleanup(func() {
		kv.Close()
	})
	return kv
}
