package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	DBPath      string `envconfig:"DB_PATH" default:"./data/notifier.db"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	DefaultTZ   string `envconfig:"DEFAULT_TZ" default:"UTC"`
	DefaultLang string `envconfig:"DEFAULT_LANGUAGE" default:"en"`

	// Push provider credentials. Leave empty to run with dispatch disabled.
	PushBaseURL string `envconfig:"PUSH_BASE_URL" default:"https://onesignal.com/api/v1"`
	PushAppID   string `envconfig:"PUSH_APP_ID"`
	PushAPIKey  string `envconfig:"PUSH_API_KEY"`
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
