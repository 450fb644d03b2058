package authvault

import (
	"errors"

	"github.com/rs/zerolog"
)

// Config configures a [Client].
//
// Config instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise.
type Config struct {
	Storage       StorageConfig
	Notifications NotificationConfig
	Dispatcher    DispatcherConfig
	Metrics       MetricsConfig

	// Logger receives per-record corruption warnings and lifecycle events.
	// Defaults to a no-op logger.
	Logger zerolog.Logger
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig configures the default Redis storage client. It is ignored
// when a custom [StorageClient] is supplied through [Builder.WithStorage].
type StorageConfig struct {
	// KeyPrefix namespaces every stored hash. Defaults to "av".
	KeyPrefix string
}

/*
====================================
NOTIFICATION CONFIG
====================================
*/

// NotificationConfig bounds the stored challenge history.
type NotificationConfig struct {
	// MaxStored caps the notification history; insertions beyond the cap
	// evict the oldest entries. Defaults to 20.
	MaxStored int
}

const defaultMaxStoredNotifications = 20

/*
====================================
DISPATCHER CONFIG
====================================
*/

// DispatcherConfig configures the outcome dispatcher.
type DispatcherConfig struct {
	// BufferSize is the number of completed results that may be queued ahead
	// of the consumer. Defaults to 64.
	BufferSize int
	// DropIfFull makes Emit non-blocking: results beyond the buffer are
	// counted and discarded instead of back-pressuring workers.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig enables the in-process atomic counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			KeyPrefix: defaultStoragePrefix,
		},
		Notifications: NotificationConfig{
			MaxStored: defaultMaxStoredNotifications,
		},
		Dispatcher: DispatcherConfig{
			BufferSize: 64,
		},
		Logger: zerolog.Nop(),
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; the logger is safe to copy.
	return cfg
}

// Validate checks the configuration for values the client cannot operate
// with.
func (c *Config) Validate() error {
	if c.Notifications.MaxStored < 0 {
		return errors.New("Notifications.MaxStored must not be negative")
	}
	if c.Dispatcher.BufferSize < 0 {
		return errors.New("Dispatcher.BufferSize must not be negative")
	}
	return nil
}
