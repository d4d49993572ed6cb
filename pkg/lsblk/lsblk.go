package lsblk

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/driveburn/driveburn/pkg/exechelper"
)

const lsblkCmd = "lsblk"

// BlockDevice is one row of lsblk output, with nested partitions.
type BlockDevice struct {
	Name       string        `json:"name"`
	Type       string        `json:"type"`
	Size       int64         `json:"size"`
	Model      string        `json:"model"`
	Serial     string        `json:"serial"`
	WWN        string        `json:"wwn"`
	MountPoint string        `json:"mountpoint"`
	Children   []BlockDevice `json:"children"`
}

// Path returns the device node, e.g. sda => /dev/sda.
func (d BlockDevice) Path() string {
	if strings.HasPrefix(d.Name, "/dev/") {
		return d.Name
	}
	return path.Join("/dev", d.Name)
}

// Mounted reports whether the device or any of its partitions carries a
// mountpoint in the lsblk output. The safety checker re-verifies against
// the mount table; this is for display and pre-filtering only.
func (d BlockDevice) Mounted() bool {
	if d.MountPoint != "" {
		return true
	}
	for _, child := range d.Children {
		if child.Mounted() {
			return true
		}
	}
	return false
}

// ListDisks returns all whole-disk block devices known to lsblk.
func ListDisks(exec exechelper.Executor) ([]BlockDevice, error) {
	result := exec.RunCommand(exechelper.ExecParams{
		CmdName: lsblkCmd,
		CmdArgs: []string{"-J", "-b", "-o", "NAME,TYPE,SIZE,MODEL,SERIAL,WWN,MOUNTPOINT"},
	})
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("lsblk failed: %v", result.Error)
	}

	var parsed struct {
		BlockDevices []BlockDevice `json:"blockdevices"`
	}
	if err := json.Unmarshal(result.OutBuf.Bytes(), &parsed); err != nil {
		return nil, fmt.Errorf("parse lsblk output: %w", err)
	}

	var disks []BlockDevice
	for _, dev := range parsed.BlockDevices {
		if dev.Type == "disk" {
			disks = append(disks, dev)
		}
	}
	return disks, nil
}
