package credstore

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	credentialsBucket = "credentials"
	credentialKey     = "session"
)

// BoltStore persists the credential pair in a BBolt database so a credential
// stored by one process invocation (e.g. `relay login`) serves later ones.
// BBolt serializes writes internally, which gives Replace/Clear the required
// atomicity; reads run in their own view transaction.
type BoltStore struct {
	db     *bbolt.DB
	logger *zap.Logger
}

// OpenBoltStore opens (or creates) the credential database at path.
func OpenBoltStore(path string, logger *zap.Logger) (*BoltStore, error) {
	if logger == nil {
		logger = zap.L()
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open credential database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(credentialsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create credentials bucket: %w", err)
	}

	return &BoltStore{db: db, logger: logger.Named("credstore")}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Current returns the latest persisted credential snapshot.
func (s *BoltStore) Current() (Credential, bool) {
	var cred Credential
	var present bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(credentialsBucket))
		if bucket == nil {
			return nil
		}
		data := bucket.Get([]byte(credentialKey))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &cred); err != nil {
			return err
		}
		present = true
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to load credential", zap.Error(err))
		return Credential{}, false
	}

	return cred, present
}

// Replace atomically persists a new credential pair.
func (s *BoltStore) Replace(cred Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(credentialsBucket))
		return bucket.Put([]byte(credentialKey), data)
	})
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	s.logger.Debug("credential saved")
	return nil
}

// Clear removes the persisted credential.
func (s *BoltStore) Clear() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(credentialsBucket))
		return bucket.Delete([]byte(credentialKey))
	})
	if err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}

	s.logger.Debug("credential cleared")
	return nil
}
