package state

// ActionStore records, per scheduled action key, the last day the action succeeded.
type ActionStore struct {
	file *dateFile
}

// OpenActionStore loads the scheduled action file at path.
func OpenActionStore(path string) (*ActionStore, error) {
	df, err := openDateFile(path, "scheduled action")
	if err != nil {
		return nil, err
	}
	return &ActionStore{file: df}, nil
}

// HasRunToday reports whether the action already succeeded on today.
func (s *ActionStore) HasRunToday(action, today string) bool {
	if action == "" || today == "" {
		return false
	}
	return s.file.isOn(action, today)
}

// MarkRun records a successful run of action on today.
func (s *ActionStore) MarkRun(action, today string) {
	if action == "" || today == "" {
		return
	}
	s.file.set(action, today)
}

// Save persists the map if it changed.
func (s *ActionStore) Save() error { return s.file.save() }

// Entries returns a copy of the in-memory map.
func (s *ActionStore) Entries() map[string]string { return s.file.snapshot() }

// Path returns the backing file path.
func (s *ActionStore) Path() string { return s.file.path }
