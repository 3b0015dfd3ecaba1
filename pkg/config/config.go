// Package config loads application configuration from file, environment
// and flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/finrag/finrag/pkg/events"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Config holds application-wide configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Chunker  ChunkerConfig  `mapstructure:"chunker"`
	Events   EventsConfig   `mapstructure:"events"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Client   ClientConfig   `mapstructure:"client"`
}

type ServerConfig struct {
	ListenAddr     string            `mapstructure:"listenAddr"`
	APIKeys        map[string]string `mapstructure:"apiKeys"`
	MaxUploadBytes int64             `mapstructure:"maxUploadBytes"`
	LogRequests    bool              `mapstructure:"logRequests"`
}

type PostgresConfig struct {
	ConnString string `mapstructure:"connString"`
}

type LLMConfig struct {
	APIURL         string `mapstructure:"apiURL"`
	APIKey         string `mapstructure:"apiKey"`
	ModelID        string `mapstructure:"modelID"`
	EmbeddingModel string `mapstructure:"embeddingModel"`
	EmbeddingsPath string `mapstructure:"embeddingsPath"`
	GeneratePath   string `mapstructure:"generatePath"`
	Dimensions     int    `mapstructure:"dimensions"`
	BatchSize      int    `mapstructure:"batchSize"`
}

type ChunkerConfig struct {
	SentencesPerChunk int `mapstructure:"sentencesPerChunk"`
	OverlapSentences  int `mapstructure:"overlapSentences"`
}

type EventsConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	NATS    events.NATSConfig `mapstructure:"nats"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ClientConfig configures the CLI client subcommands.
type ClientConfig struct {
	BaseURL   string `mapstructure:"baseURL"`
	APIKey    string `mapstructure:"apiKey"`
	CorpusKey string `mapstructure:"corpusKey"`
}

// Load reads config from file or environment. Environment variables use
// the FINRAG_ prefix, e.g. FINRAG_POSTGRES_CONNSTRING.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("finrag")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.SetDefault("server.listenAddr", ":8080")
	v.SetDefault("server.logRequests", true)
	v.SetDefault("chunker.sentencesPerChunk", 5)
	v.SetDefault("chunker.overlapSentences", 1)
	v.SetDefault("llm.dimensions", 3072)
	v.SetDefault("llm.batchSize", 100)
	v.SetDefault("llm.embeddingsPath", "/v1/embeddings")
	v.SetDefault("llm.generatePath", "/api/generate")
	v.SetDefault("metrics.addr", ":9100")
	v.SetDefault("client.baseURL", "http://localhost:8080")
	v.SetDefault("client.corpusKey", "default")

	v.AutomaticEnv()
	v.SetEnvPrefix("FINRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		fmt.Println("Using config file:", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}
