package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken  string  `envconfig:"BOT_TOKEN" required:"true"`
	DBPath    string  `envconfig:"DB_PATH" default:"./data/pillbot.db"`
	DefaultTZ string  `envconfig:"DEFAULT_TZ" default:"Europe/Moscow"`
	AdminIDs  []int64 `envconfig:"ADMIN_USER_IDS"`            // comma-separated Telegram user ids
	LogLevel  string  `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	HTTPAddr  string  `envconfig:"HTTP_ADDR" default:":8080"` // health endpoints
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// IsAdmin reports whether the given user id is in the admin list.
func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
