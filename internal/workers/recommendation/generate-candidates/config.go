// internal/workers/recommendation/generate-candidates/config.go
package generatecandidates

import "time"

type Config struct {
	Timeout time.Duration
	// RetrievalTimeout bounds the primary query; on expiry the handler falls
	// back to the category-only query.
	RetrievalTimeout time.Duration
	Index            string
	DefaultPoolSize  int
	MaxPoolSize      int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          30 * time.Second,
		RetrievalTimeout: 2 * time.Second,
		Index:            "meals",
		DefaultPoolSize:  40,
		MaxPoolSize:      1000,
	}
}
