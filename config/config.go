package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the Orakle middleware
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address        string `mapstructure:"address"`
	JWTSecret      string `mapstructure:"jwt_secret"`
	RefreshCron    string `mapstructure:"refresh_cron"`
	AllowedOrigins string `mapstructure:"allowed_origins"`
}

// LLMConfig contains LLM provider configuration
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai is the only wired provider
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SearchConfig contains meta-search settings
type SearchConfig struct {
	Engines  map[string]EngineConfig `mapstructure:"engines"`
	Meta     MetaSearchConfig        `mapstructure:"meta"`
	CacheTTL time.Duration           `mapstructure:"cache_ttl"`
}

// EngineConfig holds credentials for a single search engine
type EngineConfig struct {
	APIKey  string `mapstructure:"api_key"`
	CX      string `mapstructure:"cx"` // google custom search engine id
	BaseURL string `mapstructure:"base_url"`
}

// MetaSearchConfig tunes fusion behaviour
type MetaSearchConfig struct {
	FusionStrategy string                        `mapstructure:"fusion_strategy"` // simple, weighted, llm
	Weights        map[string]map[string]float64 `mapstructure:"weights"`         // search_type -> engine -> weight
	MaxLLMResults  int                           `mapstructure:"max_llm_results"`
}

// MCPConfig lists remote tool servers
type MCPConfig struct {
	Servers map[string]MCPServerConfig `mapstructure:"servers"`
}

// MCPServerConfig describes one MCP server connection
type MCPServerConfig struct {
	Enabled        bool           `mapstructure:"enabled"`
	ConnectionType string         `mapstructure:"connection_type"` // stdio, http_bearer
	Prefix         string         `mapstructure:"prefix"`
	Stdio          MCPStdioConfig `mapstructure:"stdio_params"`
	URL            string         `mapstructure:"url"`
	Authentication MCPAuthConfig  `mapstructure:"authentication"`
	Timeout        time.Duration  `mapstructure:"timeout"`
}

// MCPStdioConfig holds the subprocess command for stdio servers
type MCPStdioConfig struct {
	Command []string          `mapstructure:"command"`
	Env     map[string]string `mapstructure:"env"`
}

// MCPAuthConfig holds a bearer token for http servers
type MCPAuthConfig struct {
	Token string `mapstructure:"token"`
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && !strings.HasPrefix(t.MetricsPath, "/") {
		return fmt.Errorf("telemetry.metrics_path must start with /")
	}
	return nil
}

// StorageConfig contains storage settings
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings; optional, used for the search cache
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a Redis endpoint was configured at all.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Host) != ""
}

func (r RedisConfig) Validate() error {
	if !r.Enabled() {
		return nil
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when host is set")
	}
	return nil
}

// Normalize applies defaults for unset search values.
func (s SearchConfig) Normalize() SearchConfig {
	if s.Meta.FusionStrategy == "" {
		s.Meta.FusionStrategy = "llm"
	}
	if s.Meta.MaxLLMResults <= 0 {
		s.Meta.MaxLLMResults = 30
	}
	if s.CacheTTL <= 0 {
		s.CacheTTL = 10 * time.Minute
	}
	return s
}

func (s SearchConfig) Validate() error {
	switch s.Meta.FusionStrategy {
	case "simple", "weighted", "llm":
	default:
		return fmt.Errorf("search.meta.fusion_strategy must be one of simple, weighted, llm")
	}
	return nil
}

// Normalize applies defaults for unset server values.
func (s ServerConfig) Normalize() ServerConfig {
	if strings.TrimSpace(s.Address) == "" {
		s.Address = ":8100"
	}
	if strings.TrimSpace(s.AllowedOrigins) == "" {
		s.AllowedOrigins = "*"
	}
	return s
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "60s")
	viper.SetDefault("server.address", ":8100")
	viper.SetDefault("search.meta.fusion_strategy", "llm")
	viper.SetDefault("search.meta.max_llm_results", 30)
	viper.SetDefault("search.cache_ttl", "10m")
	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.metrics_path", "/metrics")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("ORAKLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Search = config.Search.Normalize()
	config.Server = config.Server.Normalize()

	if err := config.Telemetry.Validate(); err != nil {
		panic(err)
	}
	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	return &config
}
