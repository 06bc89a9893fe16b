// Package tokenstore persists authentication state — access/refresh tokens
// and marked ("authy") response values — one JSON document per manifest
// identity, under .credentials/<id>.json.
package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blackcoderx/precog/pkg/authstate"
)

// Store reads and writes one manifest's auth state document.
type Store struct {
	dir string
	id  string
}

// New returns a Store rooted at baseDir/.credentials/<id>.json.
func New(baseDir, id string) *Store {
	return &Store{dir: filepath.Join(baseDir, ".credentials"), id: id}
}

type document struct {
	AccessToken  string                 `json:"accessToken,omitempty"`
	RefreshToken string                 `json:"refreshToken,omitempty"`
	ExpiresAt    *time.Time             `json:"expiresAt,omitempty"`
	AuthyValues  map[string]interface{} `json:"authyValues"`
}

func (s *Store) path() string {
	return filepath.Join(s.dir, s.id+".json")
}

// Load reads the persisted state, treating absence as an empty state.
func (s *Store) Load() (*authstate.State, error) {
	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return authstate.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("tokenstore: load %s: %w", s.id, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("tokenstore: decode %s: %w", s.id, err)
	}

	st := authstate.New()
	st.AccessToken = doc.AccessToken
	st.RefreshToken = doc.RefreshToken
	st.Expiry = doc.ExpiresAt
	if doc.AuthyValues != nil {
		st.AuthyValues = doc.AuthyValues
	}
	return st, nil
}

// Save persists state atomically: write to a temp file in the same
// directory, then rename into place.
func (s *Store) Save(st *authstate.State) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("tokenstore: mkdir: %w", err)
	}

	doc := document{
		AccessToken:  st.AccessToken,
		RefreshToken: st.RefreshToken,
		ExpiresAt:    st.Expiry,
		AuthyValues:  st.AuthyValues,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenstore: encode %s: %w", s.id, err)
	}

	tmp, err := os.CreateTemp(s.dir, s.id+".*.tmp")
	if err != nil {
		return fmt.Errorf("tokenstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("tokenstore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("tokenstore: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("tokenstore: rename into place: %w", err)
	}
	return nil
}

// Clear removes the persisted document, if any.
func (s *Store) Clear() error {
	err := os.Remove(s.path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("tokenstore: clear %s: %w", s.id, err)
	}
	return nil
}

// SaveAuthyValue is a read-modify-write convenience: load the current
// document, set one authy value, save it back.
func (s *Store) SaveAuthyValue(name string, value interface{}) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	st.SaveAuthyValue(name, value)
	return s.Save(st)
}

// UpdateAccessToken is a read-modify-write convenience mirroring
// authstate.State.UpdateAccessToken.
func (s *Store) UpdateAccessToken(token string, ttlSeconds *int) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	st.UpdateAccessToken(token, ttlSeconds, time.Now())
	return s.Save(st)
}

// UpdateRefreshToken is a read-modify-write convenience.
func (s *Store) UpdateRefreshToken(token string) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	st.UpdateRefreshToken(token)
	return s.Save(st)
}

// GetAuthyValue reads a single authy value from the persisted document.
func (s *Store) GetAuthyValue(name string) (interface{}, bool, error) {
	st, err := s.Load()
	if err != nil {
		return nil, false, err
	}
	v, ok := st.GetAuthyValue(name)
	return v, ok, nil
}

// IsTokenExpired reports whether the persisted access token is missing or
// past its expiry instant.
func (s *Store) IsTokenExpired() (bool, error) {
	st, err := s.Load()
	if err != nil {
		return true, err
	}
	return st.IsExpired(time.Now()), nil
}

// HasRefreshToken reports whether the persisted document carries a refresh
// token.
func (s *Store) HasRefreshToken() (bool, error) {
	st, err := s.Load()
	if err != nil {
		return false, err
	}
	return st.HasRefreshToken(), nil
}
