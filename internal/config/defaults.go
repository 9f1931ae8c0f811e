package config

const (
	defaultDataDir                 = "~/.local/share/autocoder/data"
	defaultLogDir                  = "~/.local/share/autocoder/logs"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultPersistChunkSize        = 500
	defaultSchemeCacheTTLMinutes   = 30
	defaultTestFileCacheTTLMinutes = 15
	defaultQueuePollInterval       = 5
	defaultErrorRetryInterval      = 10
	defaultHeartbeatInterval       = 15
	defaultHeartbeatTimeout        = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Coding: Coding{
			PersistChunkSize:        defaultPersistChunkSize,
			SchemeCacheTTLMinutes:   defaultSchemeCacheTTLMinutes,
			TestFileCacheTTLMinutes: defaultTestFileCacheTTLMinutes,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
