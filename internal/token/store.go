package token

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Pair holds the stored credential pair.
type Pair struct {
	Access  string `json:"access_token"`
	Refresh string `json:"refresh_token"`
}

// Store keeps the access/refresh pair and the cached user profile.
// Clear must always empty every slot so a failed refresh never leaves a
// partial credential behind.
type Store interface {
	Save(access, refresh string) error
	Load() (Pair, bool)
	SaveUser(profile string) error
	LoadUser() (string, bool)
	Clear() error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	pair    Pair
	profile string
	hasPair bool
	hasUser bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{Access: access, Refresh: refresh}
	s.hasPair = true
	return nil
}

func (s *MemoryStore) Load() (Pair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair, s.hasPair
}

func (s *MemoryStore) SaveUser(profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = profile
	s.hasUser = true
	return nil
}

func (s *MemoryStore) LoadUser() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile, s.hasUser
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{}
	s.profile = ""
	s.hasPair = false
	s.hasUser = false
	return nil
}

type fileState struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         string `json:"user,omitempty"`
	HasPair      bool   `json:"has_pair"`
	HasUser      bool   `json:"has_user"`
}

// FileStore persists the credential slots in a single JSON file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) read() fileState {
	var state fileState
	data, err := os.ReadFile(s.path)
	if err != nil {
		return state
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return fileState{}
	}
	return state
}

func (s *FileStore) write(state fileState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Save(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.read()
	state.AccessToken = access
	state.RefreshToken = refresh
	state.HasPair = true
	return s.write(state)
}

func (s *FileStore) Load() (Pair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.read()
	if !state.HasPair {
		return Pair{}, false
	}
	return Pair{Access: state.AccessToken, Refresh: state.RefreshToken}, true
}

func (s *FileStore) SaveUser(profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.read()
	state.User = profile
	state.HasUser = true
	return s.write(state)
}

func (s *FileStore) LoadUser() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.read()
	if !state.HasUser {
		return "", false
	}
	return state.User, true
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
