package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store persists one preference document per user under a directory.
// Writes for the same user are serialized with a per-key mutex: the
// read-modify-write over the file would otherwise race between
// interleaved turns.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create prefs directory: %w", err)
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// Apply merges directives into the user's document and writes it back.
// Applying the same directives twice yields an identical document.
func (s *Store) Apply(userID string, dir Directives) (Document, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.load(userID)
	if err != nil {
		return Document{}, err
	}
	doc.Merge(dir)
	if err := s.write(userID, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Load reads the user's current document. A missing file is an empty
// document, not an error.
func (s *Store) Load(userID string) (Document, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.load(userID)
}

func (s *Store) load(userID string) (Document, error) {
	body, err := os.ReadFile(s.path(userID))
	if os.IsNotExist(err) {
		return NewDocument(), nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("read prefs for %s: %w", userID, err)
	}
	return ParseDocument(string(body)), nil
}

func (s *Store) write(userID string, doc Document) error {
	path := s.path(userID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(doc.Render()), 0o644); err != nil {
		return fmt.Errorf("write prefs for %s: %w", userID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace prefs for %s: %w", userID, err)
	}
	return nil
}

func (s *Store) path(userID string) string {
	// User IDs come from the platform and can contain path separators.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, userID)
	return filepath.Join(s.dir, safe+".md")
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[userID]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[userID] = l
	return l
}
