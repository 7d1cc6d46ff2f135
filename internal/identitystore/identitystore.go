// Package identitystore maintains the server-side `userid → Ed25519
// public key` mapping of §6: "No passwords are ever transmitted or
// stored." Entries are loaded from a flat YAML file (reusing the config
// package's viper-based decoding rather than a second serialization
// stack) and hot-reloaded via fsnotify so newly-provisioned identities
// become available without a server restart.
package identitystore

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/hackvr/hackvr-core/internal/logging"
)

var log = logging.L("identitystore")

// fileFormat is the on-disk shape: userid -> base64-standard-encoded
// 32-byte Ed25519 public key.
type fileFormat struct {
	Users map[string]string `mapstructure:"users"`
}

// Store is the server's identity table (§5: "logically single-writer at
// a time", "lookups are read-mostly and tolerant of stale entries").
type Store struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey

	path    string
	watcher *fsnotify.Watcher
}

// Load reads path once and returns a Store with no hot-reload watcher
// attached. Use Watch to additionally track file changes.
func Load(path string) (*Store, error) {
	s := &Store{path: path, keys: make(map[string]ed25519.PublicKey)}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Watch starts an fsnotify watch on the store's backing file, reloading
// it on every write. The caller must call Close when done.
func (s *Store) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("identitystore: creating watcher: %w", err)
	}
	if err := w.Add(s.path); err != nil {
		w.Close()
		return fmt.Errorf("identitystore: watching %s: %w", s.path, err)
	}
	s.watcher = w

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := s.reload(); err != nil {
						log.Error("identity store reload failed", logging.KeyError, err)
					} else {
						log.Info("identity store reloaded", "path", s.path)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("identity store watch error", logging.KeyError, err)
			}
		}
	}()
	return nil
}

// Close stops the hot-reload watcher, if any.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *Store) reload() error {
	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("identitystore: reading %s: %w", s.path, err)
	}

	var ff fileFormat
	if err := v.Unmarshal(&ff); err != nil {
		return fmt.Errorf("identitystore: decoding %s: %w", s.path, err)
	}

	keys := make(map[string]ed25519.PublicKey, len(ff.Users))
	for user, encoded := range ff.Users {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			log.Warn("skipping identity store entry with invalid key encoding", "user", user)
			continue
		}
		if len(raw) != ed25519.PublicKeySize {
			log.Warn("skipping identity store entry with wrong key size", "user", user, "size", len(raw))
			continue
		}
		keys[user] = ed25519.PublicKey(raw)
	}

	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	return nil
}

// Lookup returns user's public key, if known.
func (s *Store) Lookup(user string) (ed25519.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[user]
	return k, ok
}

// Append adds or replaces one entry and rewrites the backing file. Used
// by the `keygen` CLI subcommand (SPEC_FULL.md §4.13); not called from
// any connection-handling path.
func Append(path, user string, pub ed25519.PublicKey) error {
	v := viper.New()
	v.SetConfigFile(path)
	_ = v.ReadInConfig() // a missing file is fine; we're about to create it

	var ff fileFormat
	_ = v.Unmarshal(&ff)
	if ff.Users == nil {
		ff.Users = make(map[string]string)
	}
	ff.Users[user] = base64.StdEncoding.EncodeToString(pub)

	v.Set("users", ff.Users)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("identitystore: writing %s: %w", path, err)
	}
	return nil
}

// EnsureFile creates an empty identity store file at path if one does
// not already exist, so Watch has something to attach to.
func EnsureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.Set("users", map[string]string{})
	return v.WriteConfigAs(path)
}
