package keyValStore

import "fmt"

func (c StoreConfig) checkConfig() error {
	if len(c.Paths) == 0 {
		return fmt.Errorf("no storage path configured")
	}
	if len(c.Paths) > 1 {
		return fmt.Errorf("multiple storage paths are not supported yet, got %d", len(c.Paths))
	}
	if c.MinimumFreeSpace < 1 {
		return fmt.Errorf("minimum free space must be at least 1 GB, got %d", c.MinimumFreeSpace)
	}
	return nil
}
