// internal/workers/infrastructure/build-response/config.go
package buildresponse

import "time"

type Config struct {
	Timeout time.Duration
	// RegistryPath points at the activity registry JSON whose build-response
	// output schema the packaged payload is validated against.
	RegistryPath string
	// NotableThreshold is the sub-score above which a why annotation is
	// emitted for that factor.
	NotableThreshold float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          10 * time.Second,
		RegistryPath:     "configs/activity-registry.json",
		NotableThreshold: 0.75,
	}
}
