/*
Package jobqueue configuration - tunable parameters for the delayed-close queue.

Two backends exist:

  - "timer" keeps scheduled closes in process memory. Pending closes are lost on restart,
    which is acceptable for single-instance deployments.
  - "river" stores them as River jobs in PostgreSQL so they survive restarts and can be
    worked by any instance. The River schema is migrated on start.
*/
package jobqueue

import (
	"fmt"
	"time"

	"github.com/riverqueue/river"
)

// Backend names.
const (
	BackendTimer = "timer"
	BackendRiver = "river"
)

// QueueConfig holds all configurable parameters for the job queue
type QueueConfig struct {
	Backend string `koanf:"backend"`

	// DatabaseURL is the PostgreSQL URL used by the river backend.
	DatabaseURL string `koanf:"database_url"`

	// MaxWorkers is the number of concurrent River workers (default: 5)
	MaxWorkers int `koanf:"max_workers"`

	// DeleteTimeout bounds a single conversation delete (default: 30 seconds)
	DeleteTimeout time.Duration `koanf:"delete_timeout"`
}

// DefaultQueueConfig returns the default configuration
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Backend:       BackendTimer,
		MaxWorkers:    5,
		DeleteTimeout: 30 * time.Second,
	}
}

// Validate checks that the selected backend has what it needs.
func (c QueueConfig) Validate() error {
	switch c.Backend {
	case "", BackendTimer:
		return nil
	case BackendRiver:
		if c.DatabaseURL == "" {
			return fmt.Errorf("jobs.database_url is required for the %s backend", BackendRiver)
		}
		return nil
	default:
		return fmt.Errorf("unknown job queue backend %q", c.Backend)
	}
}

func (c QueueConfig) withDefaults() QueueConfig {
	d := DefaultQueueConfig()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = d.MaxWorkers
	}
	if c.DeleteTimeout <= 0 {
		c.DeleteTimeout = d.DeleteTimeout
	}
	return c
}

// RiverQueueConfig converts our config to River's queue configuration format
func (c QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}
