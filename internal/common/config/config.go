// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Engine   EngineConfig            `mapstructure:"engine"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Registry RegistryConfig          `mapstructure:"registry"`
	Logging  LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	MealIndex  string   `mapstructure:"meal_index"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Recommendation Engine Config ---

// EngineConfig holds the recommendation pipeline tunables. Every value has a
// default applied in applyDefaults, so an empty section is valid.
type EngineConfig struct {
	// Retrieval
	RetrievalTimeout int `mapstructure:"retrieval_timeout"` // milliseconds, primary ES query deadline
	PoolSize         int `mapstructure:"pool_size"`         // initial candidate pool size
	MaxPoolSize      int `mapstructure:"max_pool_size"`     // hard cap after expansions

	// Filtering
	SurvivorFloor     int `mapstructure:"survivor_floor"`      // minimum usable result size
	MaxPoolExpansions int `mapstructure:"max_pool_expansions"` // pool doublings before relaxing

	// Scoring weights, expected to sum to 1.
	WeightNutrition float64 `mapstructure:"weight_nutrition"`
	WeightTaste     float64 `mapstructure:"weight_taste"`
	WeightHistory   float64 `mapstructure:"weight_history"`
	WeightCost      float64 `mapstructure:"weight_cost"`

	// Re-ranking
	MMRLambda     float64 `mapstructure:"mmr_lambda"`     // relevance/diversity trade-off, (0,1]
	RerankPoolTop int     `mapstructure:"rerank_pool_top"` // top-K scored items fed into MMR

	// Packaging
	NotableThreshold float64 `mapstructure:"notable_threshold"` // sub-score level that earns a "why"

	// Collaborators
	ProfileCacheTTL int `mapstructure:"profile_cache_ttl"` // seconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// RegistryConfig points at the activity registry consumed by build-response.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
