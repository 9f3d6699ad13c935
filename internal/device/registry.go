// Package device implements the persistent device registry: a durable
// device-id → secret+status mapping, backed by a single bbolt file so records
// survive a relay restart.
package device

import (
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var bucketName = []byte("devices")

// Record is one registered device.
type Record struct {
	DeviceID     string    `json:"device_id"`
	Secret       string    `json:"secret"`
	Model        string    `json:"model"`
	RegisteredAt time.Time `json:"registered_at"`
	Active       bool      `json:"active"`
}

// Registry serializes every operation under a single mutex on top of a bbolt-backed
// key/value store, per "all operations are serialized under a single mutex".
type Registry struct {
	mu sync.Mutex
	db *bbolt.DB
}

// Open opens (creating if necessary) the bbolt device store at path.
func Open(path string) (*Registry, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open device store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init device bucket: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Register creates a new device record. Fails if device_id already exists, per
// "device-id is unique".
func (r *Registry) Register(deviceID, secret, model string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := false
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(deviceID)) != nil {
			return nil
		}
		rec := Record{
			DeviceID:     deviceID,
			Secret:       secret,
			Model:        model,
			RegisteredAt: time.Now().UTC(),
			Active:       true,
		}
		data, err := encode(rec)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(deviceID), data); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// Authenticate succeeds iff the record exists, is active, and secret matches by
// constant-time comparison (case-sensitive exact match on device-id lookup).
func (r *Registry) Authenticate(deviceID, secret string) (bool, error) {
	rec, ok, err := r.Get(deviceID)
	if err != nil {
		return false, err
	}
	if !ok || !rec.Active {
		return false, nil
	}
	match := subtle.ConstantTimeCompare([]byte(rec.Secret), []byte(secret)) == 1
	return match, nil
}

// Get returns the record for deviceID, if any.
func (r *Registry) Get(deviceID string) (Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rec Record
	found := false
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		data := b.Get([]byte(deviceID))
		if data == nil {
			return nil
		}
		var err error
		rec, err = decode(data)
		found = err == nil
		return err
	})
	return rec, found, err
}

// Deactivate clears the active flag, denying further authentications without deleting
// the record.
func (r *Registry) Deactivate(deviceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deactivated := false
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		data := b.Get([]byte(deviceID))
		if data == nil {
			return nil
		}
		rec, err := decode(data)
		if err != nil {
			return err
		}
		if !rec.Active {
			deactivated = true
			return nil
		}
		rec.Active = false
		newData, err := encode(rec)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(deviceID), newData); err != nil {
			return err
		}
		deactivated = true
		return nil
	})
	return deactivated, err
}
