// Package portaldb persistently stores the daemon's few settings,
// most importantly the single saved network profile.
package portaldb

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

const dbFilename = "portal.db"

type DB struct {
	*bbolt.DB
}

func Open(dataDir string) (*DB, error) {
	err := os.MkdirAll(dataDir, 0700)
	if err != nil {
		return nil, errors.Errorf("could not create data directory: %v", err)
	}

	path := filepath.Join(dataDir, dbFilename)

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Errorf("could not open %v: %v", path, err)
	}

	return &DB{db}, nil
}
