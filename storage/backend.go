package storage

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/MajorBarnulf/harsh/config"
)

var (
	// ErrUnknownEngine is returned by Open for an unsupported engine name.
	ErrUnknownEngine = errors.New("unknown storage engine")

	// ErrClosed is returned by a backend used after Close.
	ErrClosed = errors.New("storage backend closed")
)

// Backend is an ordered key-value store. Only the storage actor touches
// it, so implementations need not serialize callers.
type Backend interface {
	// Get returns the value stored at key and whether it exists.
	Get(key string) ([]byte, bool, error)

	// Set stores value at key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes keys. Missing keys are ignored.
	Delete(keys ...string) error

	// Scan returns every key starting with prefix in ascending byte order.
	Scan(prefix string) ([]string, error)

	Close() error
}

// Open creates the backend selected by cfg.Engine.
func Open(cfg config.StorageConfig, logger *logrus.Logger) (Backend, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithFields(logrus.Fields{
		"component": "storage",
		"engine":    cfg.Engine,
	})

	var (
		backend Backend
		err     error
	)
	switch cfg.Engine {
	case config.EngineBadger, "":
		backend, err = OpenBadger(cfg)
	case config.EngineSQLite:
		backend, err = OpenSQLite(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, cfg.Engine)
	}
	if err != nil {
		return nil, err
	}

	if cfg.InMemory {
		log.Info("opened in-memory store")
	} else {
		log.WithField("path", cfg.DatabasePath).Info("opened store")
	}
	return backend, nil
}
