// internal/workers/nutrition/calculate-targets/config.go
package calculatetargets

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
