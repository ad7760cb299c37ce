package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// FileMuteStore persists per-room mute flags as a small JSON file, so the
// preference survives reload and reconnect on the same device. It is not
// synchronized across devices.
type FileMuteStore struct {
	path string

	mu    sync.Mutex
	rooms map[string]bool
}

// OpenFileMuteStore loads the store at path, starting empty when the file
// does not exist yet.
func OpenFileMuteStore(path string) (*FileMuteStore, error) {
	s := &FileMuteStore{path: path, rooms: make(map[string]bool)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &s.rooms); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileMuteStore) Muted(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[room]
}

func (s *FileMuteStore) SetMuted(room string, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if muted {
		s.rooms[room] = true
	} else {
		delete(s.rooms, room)
	}
	return s.saveLocked()
}

func (s *FileMuteStore) saveLocked() error {
	data, err := json.MarshalIndent(s.rooms, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
