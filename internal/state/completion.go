package state

import (
	"log/slog"

	"git.home.luguber.info/inful/choregate/internal/logfields"
)

// CompletionStore records, per child, the last day chores were confirmed complete.
type CompletionStore struct {
	file *dateFile
}

// OpenCompletionStore loads the completion file at path. A missing or corrupt
// file yields an empty store; only an empty path is an error.
func OpenCompletionStore(path string) (*CompletionStore, error) {
	df, err := openDateFile(path, "completion")
	if err != nil {
		return nil, err
	}
	return &CompletionStore{file: df}, nil
}

// IsDoneToday reports whether child is recorded as done on exactly today.
func (s *CompletionStore) IsDoneToday(child, today string) bool {
	if child == "" || today == "" {
		return false
	}
	return s.file.isOn(child, today)
}

// MarkDone records child as done on today. Only memory is changed; call Save to persist.
func (s *CompletionStore) MarkDone(child, today string) {
	if child == "" || today == "" {
		slog.Warn("MarkDone called with empty child or date, ignoring")
		return
	}
	slog.Info("Marking chores done for today", logfields.Child(child), logfields.Date(today))
	s.file.set(child, today)
}

// Dirty reports whether there are unsaved changes.
func (s *CompletionStore) Dirty() bool { return s.file.isDirty() }

// Save persists the map if it changed.
func (s *CompletionStore) Save() error { return s.file.save() }

// Entries returns a copy of the in-memory map.
func (s *CompletionStore) Entries() map[string]string { return s.file.snapshot() }

// Path returns the backing file path.
func (s *CompletionStore) Path() string { return s.file.path }
