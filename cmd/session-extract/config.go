package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	providerOllama = "ollama"
	providerOpenAI = "openai"
)

type Config struct {
	ConfigPath string

	InputPath string
	OutputDir string

	Provider string
	Model    string
	BaseURL  string
	APIKey   string

	Temperature float64
	MaxTokens   int
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration

	MaxSessions int

	ExtractionPrompt bool
	SystemPromptFile string
	Schema           bool

	SQLitePath string
}

func (c Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("missing -in")
	}
	if c.OutputDir == "" {
		return errors.New("missing -out")
	}
	switch c.Provider {
	case providerOllama:
	case providerOpenAI:
		if c.APIKey == "" {
			return errors.New("missing OPENAI_API_KEY (or pass -api-key)")
		}
	default:
		return fmt.Errorf("unknown -provider %q (want %s or %s)", c.Provider, providerOllama, providerOpenAI)
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.Temperature > 2 {
		return errors.New("temperature must be <= 2 (negative omits it)")
	}
	if c.MaxTokens <= 0 {
		return errors.New("max-tokens must be > 0")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("max-attempts must be > 0")
	}
	if c.Backoff < 0 {
		return errors.New("backoff must be >= 0")
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be >= 0")
	}
	if c.MaxSessions < 0 {
		return errors.New("max-sessions must be >= 0")
	}
	return nil
}

// temperature returns the value to send, or nil when the request should leave it out.
func (c Config) temperature() *float64 {
	if c.Temperature < 0 {
		return nil
	}
	t := c.Temperature
	return &t
}

func defaultConfig() Config {
	return Config{
		InputPath:        filepath.FromSlash("memoryAss1/homework_data.json"),
		OutputDir:        "memoryAss1",
		Provider:         providerOllama,
		Model:            "llama3:8b",
		Temperature:      0.2,
		MaxTokens:        4000,
		MaxAttempts:      3,
		Backoff:          time.Second,
		Timeout:          120 * time.Second,
		MaxSessions:      20,
		ExtractionPrompt: true,
	}
}

// applyEnv fills values that may come from the environment (or a .env file).
func applyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv("USE_EXTRACTION_PROMPT")); v != "" {
		cfg.ExtractionPrompt = strings.EqualFold(v, "true")
	}
	if v := strings.TrimSpace(getenv("SESSION_EXTRACT_PROVIDER")); v != "" {
		cfg.Provider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv("SESSION_EXTRACT_MAX_SESSIONS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSessions = n
		}
	}
}

// resolveEndpointEnv picks provider-specific base URL and API key from the environment when the
// flags left them empty.
func resolveEndpointEnv(cfg *Config, getenv func(string) string) {
	switch cfg.Provider {
	case providerOllama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = strings.TrimSpace(getenv("OLLAMA_BASE_URL"))
		}
	case providerOpenAI:
		if cfg.BaseURL == "" {
			cfg.BaseURL = strings.TrimSpace(getenv("OPENAI_BASE_URL"))
		}
		if cfg.APIKey == "" {
			cfg.APIKey = strings.TrimSpace(getenv("OPENAI_API_KEY"))
		}
	}
}

// fileConfig is the TOML run file. Absent keys leave the current value alone.
// API keys are deliberately not read from it.
type fileConfig struct {
	Input            *string  `toml:"input"`
	Output           *string  `toml:"output"`
	Provider         *string  `toml:"provider"`
	Model            *string  `toml:"model"`
	BaseURL          *string  `toml:"base_url"`
	Temperature      *float64 `toml:"temperature"`
	MaxTokens        *int     `toml:"max_tokens"`
	MaxAttempts      *int     `toml:"max_attempts"`
	Backoff          *string  `toml:"backoff"`
	Timeout          *string  `toml:"timeout"`
	MaxSessions      *int     `toml:"max_sessions"`
	ExtractionPrompt *bool    `toml:"extraction_prompt"`
	SystemPromptFile *string  `toml:"system_prompt_file"`
	Schema           *bool    `toml:"schema"`
	SQLite           *string  `toml:"sqlite"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read -config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fileConfig{}, fmt.Errorf("read -config %s: unknown keys %v", path, undecoded)
	}
	return fc, nil
}

// applyFileConfig copies file values into cfg for every flag the user did not set explicitly.
func applyFileConfig(cfg *Config, fc fileConfig, set map[string]bool) error {
	setStr := func(flagName string, dst *string, v *string) {
		if v != nil && !set[flagName] {
			*dst = *v
		}
	}
	setInt := func(flagName string, dst *int, v *int) {
		if v != nil && !set[flagName] {
			*dst = *v
		}
	}
	setBool := func(flagName string, dst *bool, v *bool) {
		if v != nil && !set[flagName] {
			*dst = *v
		}
	}
	setDur := func(flagName string, dst *time.Duration, v *string) error {
		if v == nil || set[flagName] {
			return nil
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("config %s: %w", flagName, err)
		}
		*dst = d
		return nil
	}

	setStr("in", &cfg.InputPath, fc.Input)
	setStr("out", &cfg.OutputDir, fc.Output)
	setStr("provider", &cfg.Provider, fc.Provider)
	setStr("model", &cfg.Model, fc.Model)
	setStr("base-url", &cfg.BaseURL, fc.BaseURL)
	if fc.Temperature != nil && !set["temperature"] {
		cfg.Temperature = *fc.Temperature
	}
	setInt("max-tokens", &cfg.MaxTokens, fc.MaxTokens)
	setInt("max-attempts", &cfg.MaxAttempts, fc.MaxAttempts)
	if err := setDur("backoff", &cfg.Backoff, fc.Backoff); err != nil {
		return err
	}
	if err := setDur("timeout", &cfg.Timeout, fc.Timeout); err != nil {
		return err
	}
	setInt("max-sessions", &cfg.MaxSessions, fc.MaxSessions)
	setBool("extraction-prompt", &cfg.ExtractionPrompt, fc.ExtractionPrompt)
	setStr("system-prompt-file", &cfg.SystemPromptFile, fc.SystemPromptFile)
	setBool("schema", &cfg.Schema, fc.Schema)
	setStr("sqlite", &cfg.SQLitePath, fc.SQLite)
	return nil
}
