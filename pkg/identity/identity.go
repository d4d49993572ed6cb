package identity

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/driveburn/driveburn/pkg/exechelper"
	"github.com/driveburn/driveburn/pkg/smart"
	"github.com/driveburn/driveburn/pkg/sysfs"
)

// DriveIdentity maps a raw block device to a durable identity. Key is the
// registry primary key: the serial number when present and real, else the
// WWN (prefixed so it can never collide with a serial), else a key derived
// from the device path. Resolution is a pure query and idempotent.
type DriveIdentity struct {
	Key          string
	SerialNumber string
	WWN          string
	Model        string
	SizeBytes    int64
	StableAlias  string
	DevPath      string
}

const (
	wwnKeyPrefix  = "wwn-"
	pathKeyPrefix = "dev-"
)

// Prober is the subset of the diagnostic probe the resolver depends on.
type Prober interface {
	Identify(devPath string) (*smart.Identity, error)
}

// Resolver resolves device paths to durable identities.
type Resolver struct {
	exec  exechelper.Executor
	probe Prober
}

func NewResolver(exec exechelper.Executor, probe Prober) *Resolver {
	return &Resolver{exec: exec, probe: probe}
}

// Resolve builds the DriveIdentity for a device path. Probe or udev
// failures degrade the identity rather than failing the resolution: the
// weakest outcome is a device-path-derived key.
func (r *Resolver) Resolve(devPath string) (*DriveIdentity, error) {
	ident := &DriveIdentity{DevPath: devPath}

	smartIdent, err := r.probe.Identify(devPath)
	if err != nil {
		log.WithError(err).WithField("device", devPath).Warn("SMART identify unavailable, falling back to udev")
	} else {
		if !smart.IsPlaceholderSerial(smartIdent.SerialNumber) {
			ident.SerialNumber = strings.TrimSpace(smartIdent.SerialNumber)
		}
		ident.WWN = smartIdent.WWN
		ident.Model = smartIdent.ModelName
		ident.SizeBytes = smartIdent.CapacityBytes
	}

	udev, err := queryUdevInfo(r.exec, devPath)
	if err != nil {
		log.WithError(err).WithField("device", devPath).Warn("udevadm query unavailable")
	} else {
		if ident.SerialNumber == "" {
			if serial := udev.props["ID_SERIAL_SHORT"]; !smart.IsPlaceholderSerial(serial) {
				ident.SerialNumber = serial
			}
		}
		if ident.WWN == "" {
			ident.WWN = strings.TrimPrefix(udev.props["ID_WWN"], "0x")
		}
		if ident.Model == "" {
			ident.Model = udev.props["ID_MODEL"]
		}
		ident.StableAlias = pickStableAlias(udev.devLinks)
	}

	if ident.SizeBytes == 0 {
		if size, err := sysfs.DeviceSizeBytes(filepath.Base(devPath)); err == nil {
			ident.SizeBytes = size
		}
	}

	ident.Key = deriveKey(ident)
	return ident, nil
}

func deriveKey(ident *DriveIdentity) string {
	if ident.SerialNumber != "" {
		return ident.SerialNumber
	}
	if ident.WWN != "" {
		return wwnKeyPrefix + ident.WWN
	}
	return pathKeyPrefix + filepath.Base(ident.DevPath)
}

var partSuffix = regexp.MustCompile(`-part\d+$`)

// pickStableAlias chooses a /dev/disk symlink that survives reboots.
// WWN-based by-id links are preferred over transport-type links, and
// partition-suffixed links are never acceptable for a whole disk.
func pickStableAlias(devLinks []string) string {
	var byID []string
	for _, link := range devLinks {
		if !strings.Contains(link, "/by-id/") {
			continue
		}
		if partSuffix.MatchString(link) {
			continue
		}
		byID = append(byID, link)
	}
	sort.Strings(byID)

	for _, link := range byID {
		if strings.HasPrefix(filepath.Base(link), "wwn-") {
			return link
		}
	}
	if len(byID) > 0 {
		return byID[0]
	}
	return ""
}
