package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Memory   MemoryConfig   `yaml:"memory"`
	Game     GameConfig     `yaml:"game"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	MySQL  MySQLConfig  `yaml:"mysql"`
	Redis  RedisConfig  `yaml:"redis"`
	Qdrant QdrantConfig `yaml:"qdrant"`
}

type MySQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

type AIConfig struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
}

type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	// Format is the prompt markup the model handles best: xml, markdown or
	// plain.
	Format string `yaml:"format"`
}

type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

type MemoryConfig struct {
	ShortWindowTurns int `yaml:"short_window_turns"`
	MediumMultiplier int `yaml:"medium_multiplier"`
	LongMultiplier   int `yaml:"long_multiplier"`
	// EmbedSource picks the rendering to embed: condensed or descriptive.
	EmbedSource      string        `yaml:"embed_source"`
	BackfillInterval time.Duration `yaml:"backfill_interval"`
	RecallLimit      int           `yaml:"recall_limit"`
}

type GameConfig struct {
	// DefaultContentRating is applied to games without a settings row.
	DefaultContentRating string `yaml:"default_content_rating"`
	// StaleIntentTurns is how many inactive turns before an intent is
	// abandoned.
	StaleIntentTurns int `yaml:"stale_intent_turns"`
	// WitnessedTurnLimit caps how many turns of perspective history a
	// context query returns by default.
	WitnessedTurnLimit int `yaml:"witnessed_turn_limit"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		cfg.AI.LLM.APIKey = apiKey
	}
	if apiKey := os.Getenv("EMBEDDING_API_KEY"); apiKey != "" {
		cfg.AI.Embedding.APIKey = apiKey
	}
	if apiKey := os.Getenv("QDRANT_API_KEY"); apiKey != "" {
		cfg.Database.Qdrant.APIKey = apiKey
	}
	if password := os.Getenv("MYSQL_PASSWORD"); password != "" {
		cfg.Database.MySQL.Password = password
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Database.Redis.Password = password
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Memory.ShortWindowTurns == 0 {
		c.Memory.ShortWindowTurns = 10
	}
	if c.Memory.MediumMultiplier == 0 {
		c.Memory.MediumMultiplier = 5
	}
	if c.Memory.LongMultiplier == 0 {
		c.Memory.LongMultiplier = 5
	}
	if c.Memory.RecallLimit == 0 {
		c.Memory.RecallLimit = 5
	}
	if c.Game.StaleIntentTurns == 0 {
		c.Game.StaleIntentTurns = 3
	}
	if c.Game.WitnessedTurnLimit == 0 {
		c.Game.WitnessedTurnLimit = 10
	}
}
