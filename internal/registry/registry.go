// Package registry provides persistent storage for bundle documents using
// BoltDB as the underlying storage engine. It keeps versioned copies of the
// raw model artifact and an active-version pointer, so the service can come
// up from its last known-good bundle without reaching for a file or URL.
//
// The registry stores bundle documents only; prediction results are never
// persisted.
package registry

import (
	"fmt"
	"path/filepath"
	"time"

	"riskcast/internal/bundle"

	"go.etcd.io/bbolt"
)

const (
	bundlesBucket = "bundles" // Bucket name for raw bundle documents keyed by version
	metaBucket    = "meta"    // Bucket name for registry metadata
	activeKey     = "active"  // Meta key holding the active version
)

// Registry provides versioned persistent storage for bundle documents.
type Registry struct {
	db *bbolt.DB
}

// Open creates a registry instance rooted at the given data path.
// It initializes the BoltDB database and creates the necessary buckets.
func Open(dataPath string) (*Registry, error) {
	dbPath := filepath.Join(dataPath, "riskcast-bundles.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bundlesBucket)); err != nil {
			return fmt.Errorf("create bundles bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(metaBucket)); err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Registry{db: db}, nil
}

// Close closes the database connection gracefully.
func (r *Registry) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Put validates and stores a bundle document under the given version.
// Documents that fail schema validation are rejected so the registry only
// ever holds loadable bundles.
func (r *Registry) Put(version string, doc []byte) error {
	if _, err := bundle.Parse(doc); err != nil {
		return fmt.Errorf("refusing to store invalid bundle: %w", err)
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bundlesBucket))
		return b.Put([]byte(version), doc)
	})
}

// Get retrieves the raw bundle document stored under a version.
func (r *Registry) Get(version string) ([]byte, error) {
	var doc []byte
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bundlesBucket))
		v := b.Get([]byte(version))
		if v == nil {
			return fmt.Errorf("version %s not found", version)
		}
		doc = append(doc, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Activate marks a stored version as the one the service should load.
func (r *Registry) Activate(version string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(bundlesBucket)).Get([]byte(version)) == nil {
			return fmt.Errorf("version %s not found", version)
		}
		return tx.Bucket([]byte(metaBucket)).Put([]byte(activeKey), []byte(version))
	})
}

// Active returns the active version and its document. Returns an error when
// no version has been activated.
func (r *Registry) Active() (string, []byte, error) {
	var version string
	var doc []byte
	err := r.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(metaBucket)).Get([]byte(activeKey))
		if v == nil {
			return fmt.Errorf("no active bundle version")
		}
		version = string(v)
		d := tx.Bucket([]byte(bundlesBucket)).Get(v)
		if d == nil {
			return fmt.Errorf("active version %s has no document", version)
		}
		doc = append(doc, d...)
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return version, doc, nil
}

// Versions lists all stored versions in key order.
func (r *Registry) Versions() ([]string, error) {
	var versions []string
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bundlesBucket)).ForEach(func(k, _ []byte) error {
			versions = append(versions, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}
