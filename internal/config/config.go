package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// envPrefix is shared by env.Parse and the file merge so both agree on
// which variables count as explicitly set
const envPrefix = "SQL_BALL_"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `json:"database"`
	Cache    CacheConfig    `json:"cache"`
	Logging  LoggingConfig  `json:"logging"`
	LLM      LLMConfig      `json:"llm"`
	Pipeline PipelineConfig `json:"pipeline"`
	Server   ServerConfig   `json:"server"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Path            string `json:"path"               env:"DB_PATH"               envDefault:"~/.config/sql-ball/sqlball.db"`
	MaxConnections  int    `json:"max_connections"    env:"DB_MAX_CONNECTIONS"    envDefault:"10"`
	MaxIdleConns    int    `json:"max_idle_conns"     env:"DB_MAX_IDLE_CONNS"     envDefault:"5"`
	ConnMaxLifetime string `json:"conn_max_lifetime"  env:"DB_CONN_MAX_LIFETIME"  envDefault:"30m"`
	QueryTimeout    string `json:"query_timeout"      env:"DB_QUERY_TIMEOUT"      envDefault:"5s"`
	MaxRows         int    `json:"max_rows"           env:"DB_MAX_ROWS"           envDefault:"10000"`
}

// CacheConfig represents result cache configuration
type CacheConfig struct {
	TTLMinutes  int    `json:"ttl_minutes"        env:"CACHE_TTL_MINUTES"  envDefault:"15"`
	MaxEntries  int    `json:"max_entries"        env:"CACHE_MAX_ENTRIES"  envDefault:"1000"`
	SweepFreq   string `json:"sweep_frequency"    env:"CACHE_SWEEP_FREQ"   envDefault:"5m"`
	SweepEnable bool   `json:"sweep_enabled"      env:"CACHE_SWEEP_ENABLED" envDefault:"true"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"  env:"LOG_LEVEL"  envDefault:"info"`   // debug, info, warn, error
	Format string `json:"format" env:"LOG_FORMAT" envDefault:"text"`   // text, json
	Output string `json:"output" env:"LOG_OUTPUT" envDefault:"stdout"` // stdout, stderr, file
	File   string `json:"file"   env:"LOG_FILE"   envDefault:"~/.config/sql-ball/logs/app.log"`
}

// LLMConfig represents the text-generation provider configuration
type LLMConfig struct {
	Provider  string `json:"provider"   env:"LLM_PROVIDER"   envDefault:"openai"` // openai, anthropic, ollama
	Model     string `json:"model"      env:"LLM_MODEL"      envDefault:"gpt-4"`
	APIKey    string `json:"api_key"    env:"LLM_API_KEY"`
	BaseURL   string `json:"base_url"   env:"LLM_BASE_URL"`
	Timeout   string `json:"timeout"    env:"LLM_TIMEOUT"    envDefault:"30s"`
	MaxTokens int    `json:"max_tokens" env:"LLM_MAX_TOKENS" envDefault:"1000"`
}

// PipelineConfig represents the query pipeline configuration
type PipelineConfig struct {
	MaxAttempts      int `json:"max_attempts"       env:"PIPELINE_MAX_ATTEMPTS"  envDefault:"3"`
	SchemaContextK   int `json:"schema_context_k"   env:"PIPELINE_SCHEMA_K"      envDefault:"5"`
	PromptCharBudget int `json:"prompt_char_budget" env:"PIPELINE_PROMPT_BUDGET" envDefault:"6000"`
	FallbackLimit    int `json:"fallback_limit"     env:"PIPELINE_FALLBACK_LIMIT" envDefault:"10"`
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	Addr            string `json:"addr"             env:"SERVER_ADDR"             envDefault:":8080"`
	ReadTimeout     string `json:"read_timeout"     env:"SERVER_READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    string `json:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    envDefault:"60s"`
	ShutdownTimeout string `json:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag
// overrides. Precedence from weakest to strongest: envDefault tags, config
// file, explicit environment variables, flags.
func LoadConfigWithOverrides(flagOverrides map[string]interface{}) (*Config, error) {
	config := &Config{}

	// Defaults and explicit environment values come from the env tags
	if err := env.ParseWithOptions(config, env.Options{
		Prefix: envPrefix,
	}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if flagOverrides != nil {
		applyFlagOverrides(config, flagOverrides)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadConfigFromFile merges a JSON config file into the already defaulted
// configuration
func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// the raw sections tell apart "absent from the file" and "set to the
	// zero value", which the decoded struct cannot
	var present map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeFileConfig(config, &fileConfig, present)

	return nil
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "db-path":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Path = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		case "addr":
			if str, ok := value.(string); ok && str != "" {
				config.Server.Addr = str
			}
		case "provider":
			if str, ok := value.(string); ok && str != "" {
				config.LLM.Provider = str
			}
		case "max-attempts":
			if n, ok := value.(int); ok && n > 0 {
				config.Pipeline.MaxAttempts = n
			}
		}
	}
}

// mergeFileConfig copies file values over the defaulted configuration.
// Only fields the file actually names are taken, and never when their
// environment variable is explicitly set.
func mergeFileConfig(target, source *Config, present map[string]map[string]json.RawMessage) {
	tv := reflect.ValueOf(target).Elem()
	sv := reflect.ValueOf(source).Elem()
	ct := tv.Type()

	for i := range ct.NumField() {
		fields := present[jsonName(ct.Field(i))]
		if len(fields) == 0 {
			continue
		}

		st := ct.Field(i).Type

		for j := range st.NumField() {
			field := st.Field(j)

			if _, inFile := fields[jsonName(field)]; !inFile {
				continue
			}

			// an explicitly set environment variable outranks the file
			if name := field.Tag.Get("env"); name != "" {
				if _, set := os.LookupEnv(envPrefix + name); set {
					continue
				}
			}

			tv.Field(i).Field(j).Set(sv.Field(i).Field(j))
		}
	}
}

func jsonName(field reflect.StructField) string {
	name := strings.Split(field.Tag.Get("json"), ",")[0]
	if name == "" {
		name = strings.ToLower(field.Name)
	}

	return name
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf(
			"invalid log level: %s (must be debug, info, warn, or error)",
			config.Logging.Level,
		)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", config.Logging.Format)
	}

	validLogOutputs := map[string]bool{
		"stdout": true, "stderr": true, "file": true,
	}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return fmt.Errorf(
			"invalid log output: %s (must be stdout, stderr, or file)",
			config.Logging.Output,
		)
	}

	validProviders := map[string]bool{
		"openai": true, "anthropic": true, "ollama": true,
	}
	if !validProviders[strings.ToLower(config.LLM.Provider)] {
		return fmt.Errorf(
			"invalid LLM provider: %s (must be openai, anthropic, or ollama)",
			config.LLM.Provider,
		)
	}

	for name, val := range map[string]string{
		"database query timeout":  config.Database.QueryTimeout,
		"LLM timeout":             config.LLM.Timeout,
		"cache sweep frequency":   config.Cache.SweepFreq,
		"server read timeout":     config.Server.ReadTimeout,
		"server write timeout":    config.Server.WriteTimeout,
		"server shutdown timeout": config.Server.ShutdownTimeout,
	} {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("invalid %s: %s", name, val)
		}
	}

	if config.Database.MaxConnections <= 0 {
		return fmt.Errorf(
			"database max connections must be positive: %d",
			config.Database.MaxConnections,
		)
	}

	if config.Pipeline.MaxAttempts <= 0 {
		return fmt.Errorf("pipeline max attempts must be positive: %d", config.Pipeline.MaxAttempts)
	}

	if config.Database.MaxRows <= 0 {
		return fmt.Errorf("database max rows must be positive: %d", config.Database.MaxRows)
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config) error {
	configPath := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	if configPath := os.Getenv("SQL_BALL_CONFIG"); configPath != "" {
		return expandPath(configPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(homeDir, ".config", "sql-ball", "config.json")
}

// expandPath expands ~ to home directory in file paths
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Database.Path = expandPath(c.Database.Path)
	c.Logging.File = expandPath(c.Logging.File)
}

// QueryTimeoutDuration returns the parsed database query timeout
func (d DatabaseConfig) QueryTimeoutDuration() time.Duration {
	timeout, err := time.ParseDuration(d.QueryTimeout)
	if err != nil || timeout <= 0 {
		return 5 * time.Second
	}

	return timeout
}

// CacheTTL returns the result cache TTL as a duration
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// EnsureDirectories creates necessary directories for the configuration
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Database.Path),
		filepath.Dir(c.Logging.File),
	}

	for _, dir := range dirs {
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}
