package sysfs

import (
	"io/ioutil"
	"path/filepath"
	"strconv"
	"strings"
)

// Root is the sysfs mount point; tests point it at a fixture tree.
var Root = "/sys"

// ReadFileAsInt64 reads a sysfs file and converts its content to int64.
// Suitable for numeric information such as device size.
func ReadFileAsInt64(sysFilePath string) (int64, error) {
	b, err := ioutil.ReadFile(filepath.Clean(sysFilePath))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
}

// ReadFileAsString reads a sysfs file and returns its trimmed content.
func ReadFileAsString(sysFilePath string) (string, error) {
	b, err := ioutil.ReadFile(filepath.Clean(sysFilePath))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

const sectorSize int64 = 512

// DeviceSizeBytes returns the capacity of a block device in bytes. The
// sysfs size entry counts 512-byte sectors regardless of the hardware
// sector size.
func DeviceSizeBytes(devName string) (int64, error) {
	sectors, err := ReadFileAsInt64(filepath.Join(Root, "class/block", devName, "size"))
	if err != nil {
		return 0, err
	}
	return sectors * sectorSize, nil
}

// Partitions lists partition names of a whole-disk device, e.g. sda =>
// [sda1 sda2].
func Partitions(devName string) ([]string, error) {
	entries, err := ioutil.ReadDir(filepath.Join(Root, "class/block", devName))
	if err != nil {
		return nil, err
	}
	var partitions []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), devName) {
			partitions = append(partitions, entry.Name())
		}
	}
	return partitions, nil
}

// IsPartition reports whether the named device node is a partition rather
// than a whole disk.
func IsPartition(devName string) bool {
	_, err := ReadFileAsString(filepath.Join(Root, "class/block", devName, "partition"))
	return err == nil
}

// ParentDisk resolves a partition name to its whole-disk parent, e.g.
// sda3 => sda, nvme0n1p2 => nvme0n1. A whole disk resolves to itself.
func ParentDisk(devName string) string {
	if !IsPartition(devName) {
		return devName
	}
	// the sysfs entry of a partition lives under its parent:
	// /sys/devices/.../block/sda/sda3
	link, err := filepath.EvalSymlinks(filepath.Join(Root, "class/block", devName))
	if err == nil {
		parent := filepath.Base(filepath.Dir(link))
		if parent != "block" {
			return parent
		}
	}
	// fall back to stripping the trailing partition number
	trimmed := strings.TrimRight(devName, "0123456789")
	return strings.TrimSuffix(trimmed, "p")
}
