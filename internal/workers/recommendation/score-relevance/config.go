// internal/workers/recommendation/score-relevance/config.go
package scorerelevance

import "time"

type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
	// Score weights. They must sum to 1; config validation enforces it.
	WeightNutrition float64
	WeightTaste     float64
	WeightHistory   float64
	WeightCost      float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         10 * time.Second,
		CacheTTL:        5 * time.Minute,
		WeightNutrition: 0.50,
		WeightTaste:     0.20,
		WeightHistory:   0.15,
		WeightCost:      0.15,
	}
}
