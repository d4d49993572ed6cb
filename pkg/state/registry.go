package state

import (
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const registryHeader = "sn\twwn\tmodel\tsize_bytes\tfirst_seen\tlast_seen\tnotes"

// Registry is the durable table of every drive this system has ever
// observed, keyed by identity key.
type Registry struct {
	path string
}

func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Upsert records an observation of a drive. A new identity gets a fresh
// row; a known one gets lastSeen bumped and blank fields filled in. A
// previously recorded WWN is never overwritten with a blank one, notes
// are never touched, and firstSeen never changes.
func (r *Registry) Upsert(obs Observation, seenAt time.Time) error {
	return withTableLock(r.path, func() error {
		entries, err := r.load()
		if err != nil {
			return err
		}

		found := false
		for i := range entries {
			if entries[i].Key != obs.Key {
				continue
			}
			found = true
			if seenAt.After(entries[i].LastSeen) {
				entries[i].LastSeen = seenAt
			}
			if obs.WWN != "" {
				entries[i].WWN = obs.WWN
			}
			if obs.Model != "" {
				entries[i].Model = obs.Model
			}
			if obs.SizeBytes != 0 {
				entries[i].SizeBytes = obs.SizeBytes
			}
			break
		}
		if !found {
			entries = append(entries, RegistryEntry{
				Key:       obs.Key,
				WWN:       obs.WWN,
				Model:     obs.Model,
				SizeBytes: obs.SizeBytes,
				FirstSeen: seenAt,
				LastSeen:  seenAt,
			})
			log.WithFields(log.Fields{"key": obs.Key, "model": obs.Model}).Info("New drive registered")
		}

		return r.save(entries)
	})
}

// Entries returns all registry rows.
func (r *Registry) Entries() ([]RegistryEntry, error) {
	var entries []RegistryEntry
	err := withTableLock(r.path, func() error {
		var loadErr error
		entries, loadErr = r.load()
		return loadErr
	})
	return entries, err
}

func (r *Registry) load() ([]RegistryEntry, error) {
	data, err := ioutil.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []RegistryEntry
	for i, line := range strings.Split(string(data), "\n") {
		if i == 0 || line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return nil, fmt.Errorf("registry %s line %d: expected 7 fields, got %d", r.path, i+1, len(fields))
		}
		size, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("registry %s line %d: bad size %q: %w", r.path, i+1, fields[3], err)
		}
		firstSeen, err := time.Parse(time.RFC3339, fields[4])
		if err != nil {
			return nil, fmt.Errorf("registry %s line %d: bad first_seen %q: %w", r.path, i+1, fields[4], err)
		}
		lastSeen, err := time.Parse(time.RFC3339, fields[5])
		if err != nil {
			return nil, fmt.Errorf("registry %s line %d: bad last_seen %q: %w", r.path, i+1, fields[5], err)
		}
		entries = append(entries, RegistryEntry{
			Key:       fields[0],
			WWN:       fields[1],
			Model:     fields[2],
			SizeBytes: size,
			FirstSeen: firstSeen,
			LastSeen:  lastSeen,
			Notes:     fields[6],
		})
	}
	return entries, nil
}

func (r *Registry) save(entries []RegistryEntry) error {
	var b strings.Builder
	b.WriteString(registryHeader)
	b.WriteByte('\n')
	for _, e := range entries {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			sanitizeField(e.Key), sanitizeField(e.WWN), sanitizeField(e.Model),
			e.SizeBytes,
			e.FirstSeen.Format(time.RFC3339), e.LastSeen.Format(time.RFC3339),
			sanitizeField(e.Notes))
	}
	return atomicWriteFile(r.path, []byte(b.String()))
}

// sanitizeField keeps field values from breaking the tab-separated format.
func sanitizeField(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
