package vault

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"vitals/pkg/logging"

	"github.com/cenkalti/backoff/v5"
	"github.com/timshannon/badgerhold/v4"
)

const (
	// secretKeyBytes selects AES-256 for badger's at-rest encryption.
	secretKeyBytes = 32

	// encryptedIndexCacheSize is required by badger whenever encryption is on.
	encryptedIndexCacheSize = 16 << 20
)

// defaultLockWait bounds how long an operation waits for another vitals
// process to release the database directory.
const defaultLockWait = 3 * time.Second

// ErrStoreBusy is returned when another process holds the database for
// longer than the store is willing to wait.
var ErrStoreBusy = errors.New("another vitals process is using the data store; retry once it finishes")

// record is the persisted form of one key/value pair.
type record struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// BadgerStore is a Store persisted in a badgerhold database. The database is
// opened for each operation and closed again, so concurrent vitals processes
// share it instead of one holding badger's directory lock for its lifetime.
type BadgerStore struct {
	mu        sync.Mutex
	options   badgerhold.Options
	path      string
	encrypted bool
	lockWait  time.Duration
	closed    bool
}

// OpenBadgerStore prepares a badger database in dir, creating it on first
// use. A non-nil encryptionKey enables badger's at-rest encryption and must
// be 16, 24 or 32 bytes long. The database is opened once here to surface a
// wrong key or a corrupt directory early.
func OpenBadgerStore(dir string, encryptionKey []byte) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil
	if encryptionKey != nil {
		options.EncryptionKey = encryptionKey
		options.IndexCacheSize = encryptedIndexCacheSize
	}

	s := &BadgerStore{
		options:   options,
		path:      dir,
		encrypted: encryptionKey != nil,
		lockWait:  defaultLockWait,
	}
	if err := s.with(context.Background(), func(*badgerhold.Store) error { return nil }); err != nil {
		return nil, err
	}

	logging.Debug("Vault", "Prepared badger store at %s (encrypted=%t)", dir, s.encrypted)
	return s, nil
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		rec   record
		found bool
	)
	err := s.with(ctx, func(db *badgerhold.Store) error {
		err := db.Get(normalizeKey(key), &rec)
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get key: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return rec.Value, found, nil
}

// Set implements Store.
func (s *BadgerStore) Set(ctx context.Context, key, value string) error {
	return s.with(ctx, func(db *badgerhold.Store) error {
		k := normalizeKey(key)
		rec := record{Key: k, Value: value, UpdatedAt: time.Now()}
		if err := db.Upsert(k, &rec); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		return nil
	})
}

// Delete implements Store. Deleting a missing key is a no-op.
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	return s.with(ctx, func(db *badgerhold.Store) error {
		err := db.Delete(normalizeKey(key), &record{})
		if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("failed to delete key: %w", err)
		}
		return nil
	})
}

// Encrypted reports whether the store was opened with at-rest encryption.
func (s *BadgerStore) Encrypted() bool {
	return s.encrypted
}

// Close marks the store closed. It is safe to call more than once.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// with opens the database, runs fn and closes it again. Operations on one
// store are serialized since badger's lock is per open handle.
func (s *BadgerStore) with(ctx context.Context, fn func(*badgerhold.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	err = fn(db)
	if cerr := db.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("failed to close badger store: %w", cerr))
	}
	return err
}

// open retries while another process holds the directory lock.
func (s *BadgerStore) open(ctx context.Context) (*badgerhold.Store, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	op := func() (*badgerhold.Store, error) {
		db, err := badgerhold.Open(s.options)
		if err == nil {
			return db, nil
		}
		if isLockContention(err) {
			return nil, err
		}
		return nil, backoff.Permanent(fmt.Errorf("failed to open badger store at %s: %w", s.path, err))
	}
	notify := func(_ error, next time.Duration) {
		logging.Debug("Vault", "Store at %s is locked, retrying in %s", s.path, next)
	}

	db, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(s.lockWait),
		backoff.WithNotify(notify),
	)
	if err != nil && isLockContention(err) {
		logging.Warn("Vault", "Gave up waiting for store lock at %s", s.path)
		return nil, fmt.Errorf("%w (%s)", ErrStoreBusy, s.path)
	}
	return db, err
}

// isLockContention matches badger's directory lock failure, which is
// formatted into the message rather than wrapped.
func isLockContention(err error) bool {
	return strings.Contains(err.Error(), "Cannot acquire directory lock")
}

func normalizeKey(key string) string {
	return strings.TrimSpace(key)
}

// LoadOrCreateKey reads a hex-encoded encryption key from path, generating and
// persisting a new random key (0600) when the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, decodeErr := hex.DecodeString(strings.TrimSpace(string(data)))
		if decodeErr != nil {
			return nil, fmt.Errorf("secret key file %s is corrupt: %w", path, decodeErr)
		}
		if len(key) != secretKeyBytes {
			return nil, fmt.Errorf("secret key file %s holds %d bytes, expected %d", path, len(key), secretKeyBytes)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read secret key file: %w", err)
	}

	key := make([]byte, secretKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate secret key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create secret key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write secret key file: %w", err)
	}

	logging.Audit(logging.AuditEvent{Action: "secret_key_created", Outcome: "success", Details: path})
	return key, nil
}

// Stores bundles the two persistent stores used by the vault and the session.
type Stores struct {
	State   *BadgerStore
	Secrets *BadgerStore
}

// OpenStores opens the plain state store in dataDir/state and the encrypted
// secret store in dataDir/secrets, using the key at keyFile.
func OpenStores(dataDir, keyFile string) (*Stores, error) {
	key, err := LoadOrCreateKey(keyFile)
	if err != nil {
		return nil, err
	}

	state, err := OpenBadgerStore(filepath.Join(dataDir, "state"), nil)
	if err != nil {
		return nil, err
	}

	secrets, err := OpenBadgerStore(filepath.Join(dataDir, "secrets"), key)
	if err != nil {
		_ = state.Close()
		return nil, err
	}

	return &Stores{State: state, Secrets: secrets}, nil
}

// Close closes both stores.
func (s *Stores) Close() error {
	return errors.Join(s.State.Close(), s.Secrets.Close())
}
