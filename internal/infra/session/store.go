// Package session provides persistence for the Bandcamp login credential.
package session

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrNoCredential is returned when no credential has been stored.
var ErrNoCredential = errors.New("no credential stored")

const credentialFile = "cookies"

// Credential is the opaque authentication blob obtained from the login flow.
// The content is a browser cookie string; the store never inspects it beyond
// the validity check.
type Credential struct {
	Cookies string
	SavedAt time.Time
}

// IsValid reports whether the credential can plausibly authenticate requests.
// Bandcamp sessions carry an "identity" cookie; without it the blob is junk.
func (c Credential) IsValid() bool {
	return strings.Contains(c.Cookies, "identity=")
}

// Store holds the current credential and persists it to disk. Reads are
// concurrent; writes happen only through the login/logout flow and swap the
// credential atomically, so readers observe either the old or the new value.
type Store struct {
	mu   sync.RWMutex
	dir  string
	cred *Credential
}

// NewStore creates a store rooted at dir and loads any persisted credential.
func NewStore(dir string) (*Store, error) {
	s := &Store{dir: dir}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultDir returns the per-user credential directory.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to locate user config dir")
	}
	return filepath.Join(base, "camper"), nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(filepath.Join(s.dir, credentialFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to read credential file")
	}

	info, _ := os.Stat(filepath.Join(s.dir, credentialFile))
	cred := Credential{Cookies: strings.TrimSpace(string(data))}
	if info != nil {
		cred.SavedAt = info.ModTime()
	}
	s.cred = &cred
	return nil
}

// Current returns the stored credential, if any.
func (s *Store) Current() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return Credential{}, false
	}
	return *s.cred, true
}

// IsValid reports whether a plausibly valid credential is stored.
func (s *Store) IsValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred != nil && s.cred.IsValid()
}

// Set persists a new credential and swaps it in atomically. The file is
// written to a temp path and renamed so a crash never leaves a torn blob.
func (s *Store) Set(cred Credential) error {
	if cred.Cookies == "" {
		return errors.New("credential is empty")
	}
	if cred.SavedAt.IsZero() {
		cred.SavedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return errors.Wrap(err, "failed to create credential dir")
	}

	path := filepath.Join(s.dir, credentialFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(cred.Cookies), 0600); err != nil {
		return errors.Wrap(err, "failed to write credential")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "failed to persist credential")
	}

	s.cred = &cred
	zlog.Info().Msg("session: credential stored")
	return nil
}

// Clear removes the credential from memory and disk.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = nil
	err := os.Remove(filepath.Join(s.dir, credentialFile))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove credential file")
	}
	zlog.Info().Msg("session: credential cleared")
	return nil
}
