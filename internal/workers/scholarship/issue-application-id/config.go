package issueapplicationid

import (
	"time"

	"scholarship-workers/internal/models"
)

type Config struct {
	Timeout time.Duration
	// CounterKeys lists the counters a job may draw from.
	CounterKeys []string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     10 * time.Second,
		CounterKeys: []string{models.ApplicationCounterKey},
	}
}

func (c *Config) allows(key string) bool {
	keys := c.CounterKeys
	if len(keys) == 0 {
		keys = []string{models.ApplicationCounterKey}
	}
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
