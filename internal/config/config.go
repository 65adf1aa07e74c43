package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Neo4j      Neo4jConfig      `mapstructure:"neo4j"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Describe   DescribeConfig   `mapstructure:"describe"`
	Similarity SimilarityConfig `mapstructure:"similarity"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Workers    int              `mapstructure:"workers"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type Neo4jConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Project  string `mapstructure:"project"`
}

// EmbeddingConfig selects the embedding provider: "tei", "openai" or "none".
// An empty URL means the provider's default endpoint.
type EmbeddingConfig struct {
	Provider  string        `mapstructure:"provider"`
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	Dimension int           `mapstructure:"dimension"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int           `mapstructure:"burst"`
}

// DescribeConfig selects the description provider: "agent", "openai" or
// "none".
type DescribeConfig struct {
	Provider  string        `mapstructure:"provider"`
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
}

type SimilarityConfig struct {
	StructuralThreshold float64  `mapstructure:"structural_threshold"`
	SemanticThreshold   float64  `mapstructure:"semantic_threshold"`
	SemanticTopK        int      `mapstructure:"semantic_top_k"`
	SkeletonWeight      float64  `mapstructure:"skeleton_weight"`
	TokenWeight         float64  `mapstructure:"token_weight"`
	LengthWeight        float64  `mapstructure:"length_weight"`
	TrivialPrefixes     []string `mapstructure:"trivial_prefixes"`
	TrivialDelta        float64  `mapstructure:"trivial_delta"`
	MergePolicy         []string `mapstructure:"merge_policy"`
}

type StorageConfig struct {
	Dir             string `mapstructure:"dir"`
	VectorFile      string `mapstructure:"vector_file"`
	CacheFile       string `mapstructure:"cache_file"`
	IndexFile       string `mapstructure:"index_file"`
	ReposDir        string `mapstructure:"repos_dir"`
	CacheFlushEvery int    `mapstructure:"cache_flush_every"`
}

func (s StorageConfig) VectorPath() string { return s.path(s.VectorFile) }
func (s StorageConfig) CachePath() string  { return s.path(s.CacheFile) }
func (s StorageConfig) IndexPath() string  { return s.path(s.IndexFile) }
func (s StorageConfig) ReposPath() string  { return s.path(s.ReposDir) }

func (s StorageConfig) path(file string) string {
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(s.Dir, file)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.port": "3001",

		"neo4j.enabled":  false,
		"neo4j.uri":      "bolt://localhost:7687",
		"neo4j.user":     "neo4j",
		"neo4j.password": "codesense_password",
		"neo4j.project":  "default",

		"embedding.provider":   "tei",
		"embedding.url":        "",
		"embedding.api_key":    "",
		"embedding.model":      "text-embedding-3-small",
		"embedding.dimension":  768,
		"embedding.timeout":    30 * time.Second,
		"embedding.rate_limit": 0.0,
		"embedding.burst":      1,

		"describe.provider":   "none",
		"describe.url":        "",
		"describe.api_key":    "",
		"describe.model":      "gpt-4o-mini",
		"describe.timeout":    30 * time.Second,
		"describe.rate_limit": 0.0,
		"describe.burst":      1,

		"similarity.structural_threshold": 0.7,
		"similarity.semantic_threshold":   0.85,
		"similarity.semantic_top_k":       10,
		"similarity.skeleton_weight":      0.4,
		"similarity.token_weight":         0.4,
		"similarity.length_weight":        0.2,
		"similarity.trivial_prefixes": []string{
			"get", "set", "is", "has", "on", "toggle", "add", "remove",
			"create", "update", "delete", "handle",
		},
		"similarity.trivial_delta": 0.1,
		"similarity.merge_policy":  []string{"methods", "props", "source", "description"},

		"storage.dir":               ".codesense",
		"storage.vector_file":       "vectors.json",
		"storage.cache_file":        "descriptions.json",
		"storage.index_file":        "entities.json",
		"storage.repos_dir":         "repos",
		"storage.cache_flush_every": 20,

		"workers": 4,

		"log.level":  "info",
		"log.format": "text",
	}
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg, err := load(viper.New(), "")
	if err != nil {
		panic(fmt.Sprintf("invalid built-in defaults: %v", err))
	}
	return cfg
}

// Load reads .env files, then the optional YAML config file at path (or
// codesense.yaml in the working directory or .codesense/), then CODESENSE_*
// environment variables such as CODESENSE_SIMILARITY_SEMANTIC_THRESHOLD. The
// legacy variables BACKEND_PORT, NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD,
// TEI_URL and OPENAI_API_KEY take precedence over everything.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix("CODESENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("codesense")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(".codesense")
	}

	cfg, err := load(v, path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(v *viper.Viper, path string) (*Config, error) {
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("BACKEND_PORT"); ok {
		cfg.Server.Port = v
	}
	if v, ok := os.LookupEnv("NEO4J_URI"); ok {
		cfg.Neo4j.URI = v
	}
	if v, ok := os.LookupEnv("NEO4J_USER"); ok {
		cfg.Neo4j.User = v
	}
	if v, ok := os.LookupEnv("NEO4J_PASSWORD"); ok {
		cfg.Neo4j.Password = v
	}
	if v, ok := os.LookupEnv("TEI_URL"); ok {
		cfg.Embedding.URL = v
	}
	if v, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = v
		}
		if cfg.Describe.APIKey == "" {
			cfg.Describe.APIKey = v
		}
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error

	for name, th := range map[string]float64{
		"similarity.structural_threshold": c.Similarity.StructuralThreshold,
		"similarity.semantic_threshold":   c.Similarity.SemanticThreshold,
		"similarity.trivial_delta":        c.Similarity.TrivialDelta,
	} {
		if th < 0 || th > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, th))
		}
	}

	s := c.Similarity
	if s.SkeletonWeight < 0 || s.TokenWeight < 0 || s.LengthWeight < 0 {
		errs = append(errs, errors.New("similarity weights must not be negative"))
	}
	if s.SkeletonWeight+s.TokenWeight+s.LengthWeight == 0 {
		errs = append(errs, errors.New("similarity weights must not all be zero"))
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}

	switch c.Embedding.Provider {
	case "tei", "openai", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider))
	}
	switch c.Describe.Provider {
	case "agent", "openai", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown describe.provider %q", c.Describe.Provider))
	}

	return errors.Join(errs...)
}
