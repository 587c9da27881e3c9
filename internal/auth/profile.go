// internal/auth/profile.go
package auth

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/cvscout/cvscout/internal/driver"
)

const (
	// KeyringService is the service name for keyring storage.
	KeyringService = "cvscout"
	// FallbackDir is the directory for file-based profile storage, relative
	// to the user home, used when no keyring is available (CI, containers).
	FallbackDir = ".cvscout/profiles"

	// DefaultStaleness is how long a persisted profile context is trusted
	// to skip fresh credential submission.
	DefaultStaleness = 24 * time.Hour
)

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9]+`)

// ProfileKey derives a stable, filesystem-safe key from a caller identity.
// Long identities keep a truncated prefix plus a short hash for uniqueness.
func ProfileKey(identity string) string {
	safe := unsafeKeyChars.ReplaceAllString(strings.ToLower(identity), "_")
	safe = strings.Trim(safe, "_")
	if len(safe) > 20 {
		sum := md5.Sum([]byte(strings.ToLower(identity)))
		safe = safe[:15] + "_" + hex.EncodeToString(sum[:])[:5]
	}
	return "user_" + safe
}

// ProfileRecord is the persisted authenticated context for one profile key:
// the metadata deciding restore freshness plus the cookies to replay.
type ProfileRecord struct {
	ProfileKey  string          `json:"profile_key"`
	Identity    string          `json:"identity"`
	LastLoginAt time.Time       `json:"last_login_at"`
	Preserved   bool            `json:"preserved"`
	Cookies     []driver.Cookie `json:"cookies,omitempty"`
}

// Stale reports whether the record is too old to trust for the cheap
// restore path under the given threshold.
func (r *ProfileRecord) Stale(threshold time.Duration) bool {
	if threshold <= 0 {
		threshold = DefaultStaleness
	}
	return time.Since(r.LastLoginAt) > threshold
}

// ProfileStore persists profile records to the OS keyring with a file
// fallback, and owns the on-disk browser profile directories.
type ProfileStore struct {
	baseDir string

	// fileOnly is resolved once on first use.
	fileOnly *bool
}

// NewProfileStore creates a store rooted at dir. Empty dir means
// ~/.cvscout/profiles.
func NewProfileStore(dir string) (*ProfileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve profile dir: %w", err)
		}
		dir = filepath.Join(home, FallbackDir)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	return &ProfileStore{baseDir: dir}, nil
}

// BrowserDir returns the durable user-data-dir for a profile key, creating
// it if needed. The automation driver points its persistent context here.
func (s *ProfileStore) BrowserDir(profileKey string) (string, error) {
	dir := filepath.Join(s.baseDir, profileKey, "browser")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create browser profile dir: %w", err)
	}
	return dir, nil
}

// useFileStorage checks once whether the keyring is usable and caches the
// answer.
func (s *ProfileStore) useFileStorage() bool {
	if s.fileOnly != nil {
		return *s.fileOnly
	}
	if os.Getenv("CI") != "" || os.Getenv("CVSCOUT_NO_KEYRING") != "" {
		t := true
		s.fileOnly = &t
		return true
	}
	const testKey = "_test_keyring_access_"
	err := keyring.Set(KeyringService, testKey, "test")
	fileOnly := err != nil
	if !fileOnly {
		keyring.Delete(KeyringService, testKey)
	}
	s.fileOnly = &fileOnly
	return fileOnly
}

func (s *ProfileStore) recordPath(profileKey string) string {
	return filepath.Join(s.baseDir, profileKey+".json")
}

// Save persists the record.
func (s *ProfileStore) Save(record *ProfileRecord) error {
	if record.ProfileKey == "" {
		return fmt.Errorf("profile key cannot be empty")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("serialize profile record: %w", err)
	}

	if s.useFileStorage() {
		if err := os.WriteFile(s.recordPath(record.ProfileKey), data, 0600); err != nil {
			return fmt.Errorf("save profile record: %w", err)
		}
		return nil
	}
	if err := keyring.Set(KeyringService, record.ProfileKey, string(data)); err != nil {
		return fmt.Errorf("save profile record to keyring: %w", err)
	}
	return nil
}

// Load returns the persisted record for a profile key, or an error when
// none exists.
func (s *ProfileStore) Load(profileKey string) (*ProfileRecord, error) {
	if profileKey == "" {
		return nil, fmt.Errorf("profile key cannot be empty")
	}

	var data string
	if s.useFileStorage() {
		raw, err := os.ReadFile(s.recordPath(profileKey))
		if err != nil {
			return nil, fmt.Errorf("load profile record: %w", err)
		}
		data = string(raw)
	} else {
		var err error
		data, err = keyring.Get(KeyringService, profileKey)
		if err != nil {
			return nil, fmt.Errorf("load profile record from keyring: %w", err)
		}
	}

	var record ProfileRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("deserialize profile record: %w", err)
	}
	return &record, nil
}

// Delete removes the persisted record. The browser profile directory is
// deliberately preserved.
func (s *ProfileStore) Delete(profileKey string) error {
	if profileKey == "" {
		return fmt.Errorf("profile key cannot be empty")
	}
	if s.useFileStorage() {
		if err := os.Remove(s.recordPath(profileKey)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete profile record: %w", err)
		}
		return nil
	}
	if err := keyring.Delete(KeyringService, profileKey); err != nil {
		return fmt.Errorf("delete profile record from keyring: %w", err)
	}
	return nil
}

// List returns the profile keys with a persisted record on disk. Keyring
// entries are not enumerable portably, so listing covers file storage only.
func (s *ProfileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var keys []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			keys = append(keys, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	return keys, nil
}
