package guestcart

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pharmacart/internal/domain"
)

// Store is the guest-side cart persistence: one JSON document holding
// the full line list per key. Only read and written while no user is
// authenticated.
type Store interface {
	Load(key string) ([]domain.CartLine, error)
	Save(key string, lines []domain.CartLine) error
	Clear(key string) error
}

// Namespace prefixes every guest cart key so documents from other
// features sharing the directory cannot collide with carts.
const Namespace = "cart"

// Key builds the namespaced store key for one guest identity.
func Key(guestID string) string {
	return Namespace + ":" + guestID
}

type fileStore struct {
	dir string
}

// NewFileStore persists guest carts as JSON files under dir.
func NewFileStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create guest cart dir: %w", err)
	}
	return &fileStore{dir: dir}, nil
}

func (s *fileStore) path(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(s.dir, safe+".json")
}

func (s *fileStore) Load(key string) ([]domain.CartLine, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read guest cart: %w", err)
	}
	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("decode guest cart: %w", err)
	}
	return lines, nil
}

func (s *fileStore) Save(key string, lines []domain.CartLine) error {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode guest cart: %w", err)
	}
	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write guest cart: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace guest cart: %w", err)
	}
	return nil
}

func (s *fileStore) Clear(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove guest cart: %w", err)
	}
	return nil
}
