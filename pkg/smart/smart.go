package smart

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/driveburn/driveburn/pkg/exechelper"
)

const (
	smartctlCmd = "smartctl"

	// json paths in smartctl output
	pathExitStatus   = "smartctl.exit_status"
	pathMessages     = "smartctl.messages"
	pathStatusPassed = "smart_status.passed"
)

// transportHints are tried in order on first contact with a device; the
// first one that yields usable output is cached for the session.
var transportHints = [][]string{
	nil,
	{"-d", "sat"},
	{"-d", "scsi"},
}

// Prober issues smartctl queries. Every call is time-bounded; a timeout or
// unparseable output is returned as an error ("probe unavailable"), never
// as zero values. The transport hint cache is owned by the instance so
// separate runs do not interfere.
type Prober struct {
	exec    exechelper.Executor
	timeout time.Duration

	mu    sync.Mutex
	hints map[string][]string
}

// NewProber creates a Prober running smartctl through exec with the given
// per-call timeout.
func NewProber(exec exechelper.Executor, timeout time.Duration) *Prober {
	if timeout == 0 {
		timeout = exechelper.DefaultTimeout
	}
	return &Prober{
		exec:    exec,
		timeout: timeout,
		hints:   map[string][]string{},
	}
}

// query runs smartctl against devPath, negotiating the transport override
// on first contact. Returns the raw JSON text and its parsed form.
func (p *Prober) query(devPath string, args ...string) (string, gjson.Result, error) {
	p.mu.Lock()
	hint, negotiated := p.hints[devPath]
	p.mu.Unlock()

	if negotiated {
		return p.queryWithHint(devPath, hint, args)
	}

	var lastErr error
	for _, candidate := range transportHints {
		raw, parsed, err := p.queryWithHint(devPath, candidate, args)
		if err == nil {
			p.mu.Lock()
			p.hints[devPath] = candidate
			p.mu.Unlock()
			if len(candidate) > 0 {
				log.WithFields(log.Fields{"device": devPath, "hint": candidate}).Debug("Cached smartctl transport hint")
			}
			return raw, parsed, nil
		}
		lastErr = err
	}
	return "", gjson.Result{}, fmt.Errorf("smartctl unavailable for %s: %w", devPath, lastErr)
}

func (p *Prober) queryWithHint(devPath string, hint []string, args []string) (string, gjson.Result, error) {
	cmdArgs := append(append([]string{}, hint...), args...)
	cmdArgs = append(cmdArgs, "--json", devPath)

	result := p.exec.RunCommand(exechelper.ExecParams{
		CmdName: smartctlCmd,
		CmdArgs: cmdArgs,
		Timeout: p.timeout,
	})
	if result.TimedOut() {
		return "", gjson.Result{}, result.Error
	}

	out := result.OutBuf.String()
	if !gjson.Valid(out) {
		if result.Error != nil {
			return "", gjson.Result{}, fmt.Errorf("smartctl produced no JSON: %w", result.Error)
		}
		return "", gjson.Result{}, fmt.Errorf("smartctl produced invalid JSON")
	}

	parsed := gjson.Parse(out)
	if err := exitStatusErr(parsed.Get(pathExitStatus).Int()); err != nil {
		return "", gjson.Result{}, err
	}
	if err := messagesErr(parsed); err != nil {
		return "", gjson.Result{}, err
	}
	return out, parsed, nil
}

// exitStatusErr interprets the smartctl exit status bitfield. Only the
// bits signalling that the command itself failed are errors here; failing
// drive indicators must come back as parseable data.
func exitStatusErr(status int64) error {
	if status&(1<<0) != 0 {
		return fmt.Errorf("smartctl command line did not parse")
	}
	if status&(1<<1) != 0 {
		return fmt.Errorf("smartctl could not open device")
	}
	if status&(1<<2) != 0 {
		return fmt.Errorf("a SMART command to the device failed")
	}
	return nil
}

func messagesErr(parsed gjson.Result) error {
	messages := parsed.Get(pathMessages)
	if !messages.Exists() {
		return nil
	}
	for _, message := range messages.Array() {
		if message.Get("severity").String() == "error" {
			return fmt.Errorf("smartctl: %s", message.Get("string").String())
		}
	}
	return nil
}

// Identify runs "smartctl -i" and extracts identity fields.
func (p *Prober) Identify(devPath string) (*Identity, error) {
	_, parsed, err := p.query(devPath, "-i")
	if err != nil {
		return nil, err
	}

	ident := &Identity{
		SerialNumber:  parsed.Get("serial_number").String(),
		ModelName:     parsed.Get("model_name").String(),
		ModelFamily:   parsed.Get("model_family").String(),
		FirmwareVer:   parsed.Get("firmware_version").String(),
		CapacityBytes: parsed.Get("user_capacity.bytes").Int(),
		RotationRate:  parsed.Get("rotation_rate").Int(),
	}
	if wwn := parsed.Get("wwn"); wwn.Exists() {
		ident.WWN = fmt.Sprintf("%x%06x%09x",
			wwn.Get("naa").Int(), wwn.Get("oui").Int(), wwn.Get("id").Int())
	}
	return ident, nil
}

// Health runs "smartctl -H". An explicit failed verdict is data, not an
// error: callers get Passed=false with a nil error.
func (p *Prober) Health(devPath string) (*HealthStatus, error) {
	_, parsed, err := p.query(devPath, "-H")
	if err != nil {
		return nil, err
	}
	if !parsed.Get("smart_status").Exists() {
		return nil, fmt.Errorf("no smart_status in smartctl -H output for %s", devPath)
	}
	return &HealthStatus{Passed: parsed.Get(pathStatusPassed).Bool()}, nil
}

// attributeIDs maps the attribute IDs used for verdicts.
const (
	attrReallocated   = 5
	attrPowerOnHours  = 9
	attrTempCelsius   = 194
	attrPending       = 197
	attrOfflineUncorr = 198
	attrUDMACRC       = 199
)

// Attributes runs "smartctl -A" and extracts raw attribute values.
func (p *Prober) Attributes(devPath string) (*Attributes, error) {
	_, parsed, err := p.query(devPath, "-A")
	if err != nil {
		return nil, err
	}

	attrs := &Attributes{}
	table := parsed.Get("ata_smart_attributes.table")
	for _, entry := range table.Array() {
		raw := entry.Get("raw.value").Int()
		switch entry.Get("id").Int() {
		case attrReallocated:
			attrs.ReallocatedSectors = raw
		case attrPowerOnHours:
			attrs.PowerOnHours = raw
		case attrTempCelsius:
			// raw value packs min/max in the high bytes on some firmware
			attrs.TemperatureC = raw & 0xFF
		case attrPending:
			attrs.PendingSectors = raw
		case attrOfflineUncorr:
			attrs.OfflineUncorrectable = raw
		case attrUDMACRC:
			attrs.UDMACRCErrors = raw
		}
	}

	// NVMe devices report through a different log page
	if nvme := parsed.Get("nvme_smart_health_information_log"); nvme.Exists() {
		attrs.PowerOnHours = nvme.Get("power_on_hours").Int()
		attrs.TemperatureC = nvme.Get("temperature").Int()
		attrs.PendingSectors = nvme.Get("media_errors").Int()
	}

	if temp := parsed.Get("temperature.current"); temp.Exists() {
		attrs.TemperatureC = temp.Int()
	}
	return attrs, nil
}

// Temperature returns the current drive temperature in Celsius.
func (p *Prober) Temperature(devPath string) (int64, error) {
	attrs, err := p.Attributes(devPath)
	if err != nil {
		return 0, err
	}
	if attrs.TemperatureC == 0 {
		return 0, fmt.Errorf("no temperature reading for %s", devPath)
	}
	return attrs.TemperatureC, nil
}

// ExtendedDump runs "smartctl -x" and returns the raw JSON text for the
// capture archive.
func (p *Prober) ExtendedDump(devPath string) (string, error) {
	raw, _, err := p.query(devPath, "-x")
	return raw, err
}

// Capabilities runs "smartctl -c" and reports self-test support/progress.
func (p *Prober) Capabilities(devPath string) (*Capabilities, error) {
	_, parsed, err := p.query(devPath, "-c")
	if err != nil {
		return nil, err
	}

	caps := &Capabilities{
		ConveyanceSupported: parsed.Get("ata_smart_data.capabilities.conveyance_self_test_supported").Bool(),
		SelfTestSupported:   parsed.Get("ata_smart_data.capabilities.self_tests_supported").Bool(),
	}
	status := parsed.Get("ata_smart_data.self_test.status")
	if remaining := status.Get("remaining_percent"); remaining.Exists() {
		caps.SelfTestInProgress = true
		caps.RemainingPercent = remaining.Int()
	}
	return caps, nil
}

// StartSelfTest issues "smartctl -t <kind>".
func (p *Prober) StartSelfTest(devPath string, kind SelfTestKind) error {
	_, _, err := p.query(devPath, "-t", string(kind))
	if err != nil {
		return fmt.Errorf("start %s self-test on %s: %w", kind, devPath, err)
	}
	log.WithFields(log.Fields{"device": devPath, "kind": kind}).Info("Started SMART self-test")
	return nil
}

// SelfTestLog runs "smartctl -l selftest" and flags any failed entry.
func (p *Prober) SelfTestLog(devPath string) (*SelfTestLog, error) {
	raw, parsed, err := p.query(devPath, "-l", "selftest")
	if err != nil {
		return nil, err
	}

	stLog := &SelfTestLog{Raw: raw}
	for _, entry := range parsed.Get("ata_smart_self_test_log.standard.table").Array() {
		status := entry.Get("status")
		if status.Get("passed").Exists() && !status.Get("passed").Bool() {
			stLog.Failed = true
			break
		}
	}
	return stLog, nil
}

// ErrorLog runs "smartctl -l error" and returns the raw JSON text.
func (p *Prober) ErrorLog(devPath string) (string, error) {
	raw, _, err := p.query(devPath, "-l", "error")
	return raw, err
}
