package config

// Auth configures bearer-token verification on the HTTP API.
type Auth struct {
	// HMACSecret signs and verifies API tokens. HMACSecretEnv names an
	// environment variable that overrides it.
	HMACSecret      string `toml:"HMACSecret"`
	HMACSecretEnv   string `toml:"HMACSecretEnv"`
	Issuer          string `toml:"Issuer"`
	TokenTTLSeconds uint64 `toml:"TokenTTLSeconds"`
}

// RateLimit bounds requests per client on the HTTP API.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// Indexer selects the SQL store that keeps the event history.
type Indexer struct {
	// Driver is "sqlite", "postgres" or empty to disable the indexer.
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Telemetry mirrors the OTLP exporter settings.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	Headers     string  `toml:"Headers"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Log controls verbosity and the optional rotated log file.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Pauses lists modules that start paused.
type Pauses struct {
	Staking bool `toml:"Staking"`
}
