package config

// Config is the root configuration for PulseStage.
type Config struct {
	Realtime RealtimeConfig `yaml:"realtime,omitempty"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	Services ServicesConfig `yaml:"services,omitempty"`
	UI       UIConfig       `yaml:"ui,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// RealtimeConfig controls the duplex session to the conversational agent.
type RealtimeConfig struct {
	TokenURL   string `yaml:"tokenUrl,omitempty"`   // ephemeral credential endpoint
	SignalURL  string `yaml:"signalUrl,omitempty"`  // offer/answer signaling endpoint
	Model      string `yaml:"model,omitempty"`
	Voice      string `yaml:"voice,omitempty"`
	CampaignID string `yaml:"campaignId,omitempty"`
	Context    string `yaml:"context,omitempty"` // free-text session context sent at token time
}

// StoreConfig selects the question/result store backend.
type StoreConfig struct {
	Backend string `yaml:"backend,omitempty"` // "sqlite" | "redis" | "memory"
	Path    string `yaml:"path,omitempty"`    // sqlite file path (default under data dir)

	Redis RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig configures the Redis store backend.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// ServicesConfig configures external HTTP services used by tools.
type ServicesConfig struct {
	Search ServiceEndpoint `yaml:"search,omitempty"`
	Image  ServiceEndpoint `yaml:"image,omitempty"`
}

// ServiceEndpoint is an HTTP endpoint plus its credential.
type ServiceEndpoint struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	APIKey   string `yaml:"apiKey,omitempty"`
}

// UIConfig controls the renderer-facing event broadcaster.
type UIConfig struct {
	Port           int      `yaml:"port,omitempty"` // 0 disables the broadcaster
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}
