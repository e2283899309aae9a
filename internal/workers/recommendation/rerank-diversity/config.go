// internal/workers/recommendation/rerank-diversity/config.go
package rerankdiversity

import "time"

type Config struct {
	Timeout time.Duration
	// Lambda trades relevance against diversity: 1 keeps the score order,
	// lower values penalize similarity to already-selected items.
	Lambda float64
	// PoolTop caps how many scored survivors enter the greedy loop.
	PoolTop int
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
		Lambda:  0.7,
		PoolTop: 100,
	}
}
