package redis

import "time"

type Config struct {
	ConnectionURL  string        `yaml:"url" env:"REDIS_URL"`                         // ConnectionURL is the URL of the database. It should be in the format "redis://:password@localhost:6379/0"
	RetryAttempts  int           `yaml:"retry_attempts" env:"REDIS_RETRY_ATTEMPTS"`   // RetryAttempts is the number of retry attempts to connect to the database.
	RetryInterval  time.Duration `yaml:"retry_interval" env:"REDIS_RETRY_INTERVAL"`   // RetryInterval is the interval between retry attempts, e.g. "5s".
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"REDIS_CONNECT_TIMEOUT"` // ConnectTimeout bounds the whole connection phase, e.g. "30s".
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() Config {
	return Config{
		ConnectionURL:  "redis://localhost:6379/0",
		RetryAttempts:  3,
		RetryInterval:  5 * time.Second,
		ConnectTimeout: 30 * time.Second,
	}
}
