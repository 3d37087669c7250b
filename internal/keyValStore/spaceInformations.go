package keyValStore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

// calculateDirectorySize calculates the total size of files within a directory
func calculateDirectorySize(path string) (size int64, err error) {
	err = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return
}

// displayDiskUsage logs the disk usage of every configured path and verifies
// the minimum-free-space threshold.
func (k *KeyValStore) displayDiskUsage(paths []string) error {
	for _, path := range paths {
		usage, err := disk.Usage(path)
		if err != nil {
			k.log.WithFields(logrus.Fields{
				"path": path,
			}).Errorf("Error retrieving disk usage stats: %v", err)
			return fmt.Errorf("error retrieving disk usage stats for %s: %w", path, err)
		}

		pathSize, err := calculateDirectorySize(path)
		if err != nil {
			k.log.WithFields(logrus.Fields{
				"path": path,
			}).Errorf("Error calculating directory size: %v", err)
			return fmt.Errorf("error calculating directory size for %s: %w", path, err)
		}

		totalSpace := float64(usage.Total) / 1e9
		freeSpace := float64(usage.Free) / 1e9
		usedSpace := float64(usage.Used) / 1e9
		pathUsage := float64(pathSize) / 1e9

		k.log.WithFields(logrus.Fields{
			"Path":          path,
			"Total (GB)":    fmt.Sprintf("%.2f", totalSpace),
			"Used (GB)":     fmt.Sprintf("%.2f", usedSpace),
			"Free (GB)":     fmt.Sprintf("%.2f", freeSpace),
			"Usage by DB":   fmt.Sprintf("%.2f", pathUsage),
			"Usage Percent": fmt.Sprintf("%.2f", usage.UsedPercent),
		}).Info("Disk Usage")

		if freeSpace < float64(k.config.MinimumFreeSpace) {
			return fmt.Errorf("not enough free space on %s: %.2f GB free, %d GB required",
				path, freeSpace, k.config.MinimumFreeSpace)
		}
	}

	return nil
}
