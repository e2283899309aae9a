// internal/workers/recommendation/filter-constraints/config.go
package filterconstraints

import "time"

type Config struct {
	Timeout time.Duration
	// SurvivorFloor is the minimum pool the engine wants after filtering;
	// the handler only reports the shortfall, expansion is the engine's job.
	SurvivorFloor int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       10 * time.Second,
		SurvivorFloor: 10,
	}
}
