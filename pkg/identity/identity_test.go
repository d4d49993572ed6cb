package identity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driveburn/driveburn/pkg/exechelper"
	"github.com/driveburn/driveburn/pkg/smart"
)

type stubProbe struct {
	ident *smart.Identity
	err   error
}

func (s *stubProbe) Identify(devPath string) (*smart.Identity, error) {
	return s.ident, s.err
}

const udevOut = `P: /devices/pci0000:00/0000:00:1f.2/ata1/host0/target0:0:0/0:0:0:0/block/sda
N: sda
E: DEVNAME=/dev/sda
E: DEVTYPE=disk
E: ID_MODEL=WDC_WD40EFRX
E: ID_SERIAL_SHORT=WD-WCC4N5XYZ123
E: ID_WWN=0x50014ee2b5f6d6e1
E: DEVLINKS=/dev/disk/by-id/ata-WDC_WD40EFRX_WD-WCC4N5XYZ123 /dev/disk/by-id/wwn-0x50014ee2b5f6d6e1 /dev/disk/by-id/wwn-0x50014ee2b5f6d6e1-part1
`

func TestResolvePrefersSmartSerial(t *testing.T) {
	fake := exechelper.NewFakeExecutor()
	fake.Respond("udevadm info -n /dev/sda --query=all", exechelper.OKResult(udevOut))

	probe := &stubProbe{ident: &smart.Identity{
		SerialNumber:  "WD-WCC4N5XYZ123",
		WWN:           "50014ee2b5f6d6e1",
		ModelName:     "WDC WD40EFRX-68N32N0",
		CapacityBytes: 4000787030016,
	}}

	r := NewResolver(fake, probe)
	ident, err := r.Resolve("/dev/sda")
	assert.NoError(t, err)
	assert.Equal(t, "WD-WCC4N5XYZ123", ident.Key)
	assert.Equal(t, "50014ee2b5f6d6e1", ident.WWN)
	assert.Equal(t, "/dev/disk/by-id/wwn-0x50014ee2b5f6d6e1", ident.StableAlias)
}

func TestResolveFallsBackToWWNKey(t *testing.T) {
	fake := exechelper.NewFakeExecutor()
	fake.Respond("udevadm info -n /dev/sda --query=all", exechelper.OKResult(
		"E: ID_WWN=0x50014ee2b5f6d6e1\nE: ID_MODEL=SomeDisk\n"))

	// placeholder serial must not become an identity key
	probe := &stubProbe{ident: &smart.Identity{SerialNumber: "00000000"}}

	r := NewResolver(fake, probe)
	ident, err := r.Resolve("/dev/sda")
	assert.NoError(t, err)
	assert.Equal(t, "wwn-50014ee2b5f6d6e1", ident.Key)
}

func TestResolveFallsBackToDevicePathKey(t *testing.T) {
	fake := exechelper.NewFakeExecutor()
	probe := &stubProbe{err: fmt.Errorf("smartctl unavailable")}

	// udevadm also unavailable: the fake rejects unscripted commands
	r := NewResolver(fake, probe)
	ident, err := r.Resolve("/dev/sdq")
	assert.NoError(t, err)
	assert.Equal(t, "dev-sdq", ident.Key)
}

func TestResolveIsIdempotent(t *testing.T) {
	fake := exechelper.NewFakeExecutor()
	fake.Respond("udevadm info -n /dev/sda --query=all", exechelper.OKResult(udevOut))
	probe := &stubProbe{ident: &smart.Identity{SerialNumber: "WD-WCC4N5XYZ123"}}

	r := NewResolver(fake, probe)
	first, err := r.Resolve("/dev/sda")
	assert.NoError(t, err)
	second, err := r.Resolve("/dev/sda")
	assert.NoError(t, err)
	assert.Equal(t, first.Key, second.Key)
}

func TestParseUdevInfo(t *testing.T) {
	info := parseUdevInfo(udevOut)
	assert.Equal(t, "sda", info.props["NAME"])
	assert.Equal(t, "WD-WCC4N5XYZ123", info.props["ID_SERIAL_SHORT"])
	assert.Equal(t, "0x50014ee2b5f6d6e1", info.props["ID_WWN"])
	assert.Len(t, info.devLinks, 3)
}

func TestPickStableAlias(t *testing.T) {
	tests := []struct {
		name     string
		devLinks []string
		want     string
	}{
		{
			name: "prefers wwn link",
			devLinks: []string{
				"/dev/disk/by-id/ata-WDC_WD40EFRX_WD-WCC4N5XYZ123",
				"/dev/disk/by-id/wwn-0x50014ee2b5f6d6e1",
			},
			want: "/dev/disk/by-id/wwn-0x50014ee2b5f6d6e1",
		},
		{
			name: "skips partition links",
			devLinks: []string{
				"/dev/disk/by-id/wwn-0x50014ee2b5f6d6e1-part1",
				"/dev/disk/by-id/ata-WDC_WD40EFRX_WD-WCC4N5XYZ123",
			},
			want: "/dev/disk/by-id/ata-WDC_WD40EFRX_WD-WCC4N5XYZ123",
		},
		{
			name:     "ignores non by-id links",
			devLinks: []string{"/dev/disk/by-path/pci-0000:00:1f.2-ata-1"},
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pickStableAlias(tt.devLinks))
		})
	}
}
