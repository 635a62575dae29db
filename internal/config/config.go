package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Realtime: RealtimeConfig{
			Model:      "gpt-realtime",
			Voice:      "marin",
			CampaignID: "default",
		},
		Store: StoreConfig{
			Backend: "sqlite",
		},
		UI: UIConfig{
			Port: 18460,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
