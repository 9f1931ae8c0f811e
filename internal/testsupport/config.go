package testsupport

import (
	"path/filepath"
	"testing"

	"autocoder/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithPersistChunkSize overrides the persistence chunk size on the test config.
func WithPersistChunkSize(size int) ConfigOption {
	return func(c *config.Config) {
		c.Coding.PersistChunkSize = size
	}
}

// WithFastWorkflow shrinks the daemon polling intervals so worker tests do
// not wait on production timings.
func WithFastWorkflow() ConfigOption {
	return func(c *config.Config) {
		c.Workflow.QueuePollInterval = 1
		c.Workflow.ErrorRetryInterval = 1
		c.Workflow.HeartbeatInterval = 1
		c.Workflow.HeartbeatTimeout = 10
	}
}
