package state

import (
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"time"
)

const historyHeader = "run_id\tts\tphase\toutcome\tsn\twwn\tmodel\tsize_bytes\tpoh\trealloc\tpending\toffline_unc\tudma_crc\tsmart_health\ttemp_max\tlog_dir"

// History is the append-only run history table: one row per drive per
// phase attempt.
type History struct {
	path string
}

func NewHistory(path string) *History {
	return &History{path: path}
}

// Append adds one run record. The table is append-only; existing rows
// are never rewritten.
func (h *History) Append(rec RunRecord) error {
	return withTableLock(h.path, func() error {
		writeHeader := false
		if _, err := os.Stat(h.path); os.IsNotExist(err) {
			writeHeader = true
		}

		f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open history %s: %w", h.path, err)
		}
		defer f.Close()

		if writeHeader {
			if _, err := f.WriteString(historyHeader + "\n"); err != nil {
				return err
			}
		}

		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%d\t%s\n",
			rec.RunID, rec.Timestamp.Format(time.RFC3339),
			rec.Phase, rec.Outcome,
			sanitizeField(rec.DriveKey), sanitizeField(rec.WWN), sanitizeField(rec.Model),
			rec.SizeBytes, rec.PowerOnHours,
			rec.ReallocatedSectors, rec.PendingSectors, rec.OfflineUncorrectable,
			rec.InterfaceErrorCount,
			sanitizeField(rec.HealthVerdict), rec.MaxTemperatureC,
			sanitizeField(rec.LogDirectory))
		if _, err := f.WriteString(line); err != nil {
			return err
		}
		return f.Sync()
	})
}

// Records returns all history rows.
func (h *History) Records() ([]RunRecord, error) {
	var records []RunRecord
	err := withTableLock(h.path, func() error {
		data, err := ioutil.ReadFile(h.path)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		for i, line := range strings.Split(string(data), "\n") {
			if i == 0 || line == "" {
				continue
			}
			fields := strings.Split(line, "\t")
			if len(fields) != 16 {
				return fmt.Errorf("history %s line %d: expected 16 fields, got %d", h.path, i+1, len(fields))
			}
			ts, err := time.Parse(time.RFC3339, fields[1])
			if err != nil {
				return fmt.Errorf("history %s line %d: bad timestamp %q: %w", h.path, i+1, fields[1], err)
			}
			var nums []int64
			for _, idx := range []int{7, 8, 9, 10, 11, 12, 14} {
				v, err := strconv.ParseInt(fields[idx], 10, 64)
				if err != nil {
					return fmt.Errorf("history %s line %d: bad numeric field %q: %w", h.path, i+1, fields[idx], err)
				}
				nums = append(nums, v)
			}
			records = append(records, RunRecord{
				RunID:                fields[0],
				Timestamp:            ts,
				Phase:                Phase(fields[2]),
				Outcome:              Outcome(fields[3]),
				DriveKey:             fields[4],
				WWN:                  fields[5],
				Model:                fields[6],
				SizeBytes:            nums[0],
				PowerOnHours:         nums[1],
				ReallocatedSectors:   nums[2],
				PendingSectors:       nums[3],
				OfflineUncorrectable: nums[4],
				InterfaceErrorCount:  nums[5],
				HealthVerdict:        fields[13],
				MaxTemperatureC:      nums[6],
				LogDirectory:         fields[15],
			})
		}
		return nil
	})
	return records, err
}
