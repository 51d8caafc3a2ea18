package state

import (
	"encoding/json"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"git.home.luguber.info/inful/choregate/internal/clock"
	"git.home.luguber.info/inful/choregate/internal/foundation/errors"
	"git.home.luguber.info/inful/choregate/internal/logfields"
)

// dateFile is a key -> ISO date map persisted as pretty-printed JSON.
type dateFile struct {
	path    string
	mu      sync.RWMutex
	entries map[string]string
	dirty   bool
}

// normalizeKey case-folds identities so hand edits like "Daniel" and "daniel" agree.
// A Caser is stateful, so a fresh one is used per call.
func normalizeKey(key string) string {
	return cases.Fold().String(strings.TrimSpace(key))
}

func openDateFile(path, kind string) (*dateFile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.ConfigError(kind + " state file path cannot be empty").Build()
	}
	df := &dateFile{path: path, entries: make(map[string]string)}
	df.load(kind)
	return df, nil
}

// load reads the file into memory. Any failure leaves the map empty.
func (df *dateFile) load(kind string) {
	log := slog.With(logfields.Path(df.path), slog.String("kind", kind))

	data, err := os.ReadFile(df.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("State file not found, starting with empty state")
			return
		}
		log.Error("Failed to read state file, starting with empty state", logfields.Error(err))
		return
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Error("State file is corrupt, starting with empty state", logfields.Error(err))
		return
	}

	for key, value := range raw {
		date, ok := value.(string)
		if !ok {
			log.Warn("Ignoring non-string state entry", slog.String("key", key))
			continue
		}
		if _, err := time.Parse(clock.DateLayout, date); err != nil {
			log.Warn("Ignoring state entry with invalid date", slog.String("key", key), logfields.Date(date))
			continue
		}
		df.entries[normalizeKey(key)] = date
	}
	log.Debug("State loaded", slog.Int("entries", len(df.entries)))
}

func (df *dateFile) isOn(key, date string) bool {
	df.mu.RLock()
	defer df.mu.RUnlock()
	stored, ok := df.entries[normalizeKey(key)]
	return ok && stored == date
}

func (df *dateFile) set(key, date string) {
	df.mu.Lock()
	defer df.mu.Unlock()
	k := normalizeKey(key)
	if df.entries[k] == date {
		return
	}
	df.entries[k] = date
	df.dirty = true
}

func (df *dateFile) snapshot() map[string]string {
	df.mu.RLock()
	defer df.mu.RUnlock()
	return maps.Clone(df.entries)
}

func (df *dateFile) isDirty() bool {
	df.mu.RLock()
	defer df.mu.RUnlock()
	return df.dirty
}

// save writes the map when it changed since the last load or save.
func (df *dateFile) save() error {
	df.mu.Lock()
	defer df.mu.Unlock()

	if !df.dirty {
		return nil
	}
	if err := writeJSONAtomic(df.path, df.entries); err != nil {
		return err
	}
	df.dirty = false
	return nil
}

// writeJSONAtomic writes v to path through a uniquely named temporary file in the
// same directory followed by a rename, so readers never observe a partial file.
// Overlapping writers resolve as last writer wins.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return errors.StateError("failed to marshal state").WithCause(err).WithContext("path", path).Build()
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.StateError("failed to create state directory").WithCause(err).WithContext("path", dir).Build()
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.StateError("failed to create temporary state file").WithCause(err).WithContext("path", path).Build()
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.StateError("failed to write temporary state file").WithCause(err).WithContext("path", tmpPath).Build()
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.StateError("failed to sync temporary state file").WithCause(err).WithContext("path", tmpPath).Build()
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.StateError("failed to close temporary state file").WithCause(err).WithContext("path", tmpPath).Build()
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return errors.StateError("failed to set state file permissions").WithCause(err).WithContext("path", tmpPath).Build()
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return errors.StateError("failed to replace state file").WithCause(err).WithContext("path", path).Build()
	}
	return nil
}
