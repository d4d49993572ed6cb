package safety

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/driveburn/driveburn/pkg/exechelper"
	"github.com/driveburn/driveburn/pkg/sysfs"
)

const findmntCmd = "findmnt"

// systemMountpoints are the mounts whose backing disks must never be
// selected for destructive testing.
var systemMountpoints = []string{"/", "/boot", "/boot/efi", "/var"}

// Violation is a safety-invariant failure. It is fatal for the whole
// destructive batch; a violating drive is never silently skipped.
type Violation struct {
	DevPath string
	Reason  string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("safety violation on %s: %s", v.DevPath, v.Reason)
}

// Checker validates that a device is eligible for destructive testing.
type Checker struct {
	exec exechelper.Executor

	// MountsPath and SwapsPath are overridable for tests.
	MountsPath string
	SwapsPath  string

	// Stat is overridable for tests; defaults to os.Stat.
	Stat func(string) (os.FileInfo, error)
}

func NewChecker(exec exechelper.Executor) *Checker {
	return &Checker{
		exec:       exec,
		MountsPath: "/proc/mounts",
		SwapsPath:  "/proc/swaps",
		Stat:       os.Stat,
	}
}

// CheckEligible rejects the device unless all invariants hold: it is a
// block device, a whole disk, unmounted (including all partitions), and
// not the disk backing any system mount or active swap.
func (c *Checker) CheckEligible(devPath string) error {
	info, err := c.Stat(devPath)
	if err != nil {
		return &Violation{DevPath: devPath, Reason: fmt.Sprintf("cannot stat: %v", err)}
	}
	if info.Mode()&os.ModeDevice == 0 || info.Mode()&os.ModeCharDevice != 0 {
		return &Violation{DevPath: devPath, Reason: "not a block device"}
	}

	devName := filepath.Base(devPath)
	if sysfs.IsPartition(devName) {
		return &Violation{DevPath: devPath, Reason: "is a partition, not a whole disk"}
	}

	mounted, err := c.mountedDevices()
	if err != nil {
		return fmt.Errorf("read mount table: %w", err)
	}
	nodes := []string{devPath}
	if partitions, err := sysfs.Partitions(devName); err == nil {
		for _, p := range partitions {
			if p != devName {
				nodes = append(nodes, "/dev/"+p)
			}
		}
	}
	for _, node := range nodes {
		if mp, ok := mounted[canonical(node)]; ok {
			return &Violation{DevPath: devPath, Reason: fmt.Sprintf("%s is mounted at %s", node, mp)}
		}
	}

	systemDisks, err := c.systemDisks()
	if err != nil {
		return fmt.Errorf("resolve system disks: %w", err)
	}
	devCanonical := canonical(devPath)
	for _, disk := range systemDisks {
		if devCanonical == disk {
			return &Violation{DevPath: devPath, Reason: fmt.Sprintf("is the operating system disk %s", disk)}
		}
	}

	log.WithField("device", devPath).Debug("Device passed safety checks")
	return nil
}

// mountedDevices maps canonical device paths from the mount table to
// their mountpoints.
func (c *Checker) mountedDevices() (map[string]string, error) {
	data, err := ioutil.ReadFile(c.MountsPath)
	if err != nil {
		return nil, err
	}
	mounted := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}
		mounted[canonical(fields[0])] = fields[1]
	}
	return mounted, nil
}

// systemDisks returns the canonical paths of every whole disk backing a
// system mountpoint or active swap.
func (c *Checker) systemDisks() ([]string, error) {
	var sources []string

	for _, mp := range systemMountpoints {
		result := c.exec.RunCommand(exechelper.ExecParams{
			CmdName: findmntCmd,
			CmdArgs: []string{"-no", "SOURCE", mp},
		})
		// non-zero exit just means the mountpoint does not exist
		if result.ExitCode != 0 {
			continue
		}
		if src := strings.TrimSpace(result.OutBuf.String()); strings.HasPrefix(src, "/dev/") {
			sources = append(sources, src)
		}
	}

	if data, err := ioutil.ReadFile(c.SwapsPath); err == nil {
		for i, line := range strings.Split(string(data), "\n") {
			if i == 0 {
				continue // header
			}
			fields := strings.Fields(line)
			if len(fields) > 0 && strings.HasPrefix(fields[0], "/dev/") {
				sources = append(sources, fields[0])
			}
		}
	}

	seen := map[string]struct{}{}
	var disks []string
	for _, src := range sources {
		for _, disk := range backingDisks(src) {
			p := canonical("/dev/" + disk)
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				disks = append(disks, p)
			}
		}
	}
	return disks, nil
}

// backingDisks resolves a source device (possibly a partition or a
// device-mapper node) down to whole-disk names, walking sysfs slaves.
func backingDisks(src string) []string {
	name := filepath.Base(canonical(src))
	return resolveSlaves(name, 0)
}

func resolveSlaves(devName string, depth int) []string {
	if depth > 8 {
		return nil
	}
	slavesDir := filepath.Join(sysfs.Root, "class/block", devName, "slaves")
	entries, err := ioutil.ReadDir(slavesDir)
	if err != nil || len(entries) == 0 {
		return []string{sysfs.ParentDisk(devName)}
	}
	var disks []string
	for _, entry := range entries {
		disks = append(disks, resolveSlaves(entry.Name(), depth+1)...)
	}
	return disks
}

func canonical(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}
