// Package config loads the service configuration from an optional YAML
// file and HEAL_* environment variables, the latter taking precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultFile = "config.yml"

type ProviderConfig struct {
	ModelName string `yaml:"model_name"`
	APIKey    string `yaml:"api_key,omitempty"`
	APIURL    string `yaml:"api_url,omitempty"`
}

// ModelConfig selects one of several providers.
type ModelConfig struct {
	DefaultProvider string                    `yaml:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
}

type SafeguardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider"`
	ModelName string `yaml:"model_name"`
}

type MemoryConfig struct {
	Collection        string  `yaml:"collection"`
	Path              string  `yaml:"path"`
	SearchLimit       int     `yaml:"search_limit"`
	DistanceThreshold float64 `yaml:"distance_threshold"`
}

type WorkflowConfig struct {
	MaxCycles              int           `yaml:"max_cycles"`
	PatchMode              string        `yaml:"patch_mode"`
	CallTimeout            time.Duration `yaml:"call_timeout"`
	SmokeTestResetsFailure bool          `yaml:"smoke_test_resets_failure"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	APIKeys     []string `yaml:"api_keys"`
	HistoryFile string   `yaml:"history_file"`
}

type Config struct {
	LLM            ModelConfig     `yaml:"llm"`
	EmbeddingModel ModelConfig     `yaml:"embedding_model"`
	Safeguard      SafeguardConfig `yaml:"safeguard"`
	Memory         MemoryConfig    `yaml:"memory"`
	Workflow       WorkflowConfig  `yaml:"workflow"`
	Server         ServerConfig    `yaml:"server"`
	StateDir       string          `yaml:"state_dir"`
	Timeout        time.Duration   `yaml:"timeout"`
}

func Default() *Config {
	return &Config{
		LLM: ModelConfig{
			DefaultProvider: "openai",
			Providers: map[string]ProviderConfig{
				"openai": {ModelName: "gpt-4o-mini"},
				"groq":   {ModelName: "llama-3.3-70b-versatile"},
				"google": {ModelName: "gemini-2.0-flash"},
			},
		},
		EmbeddingModel: ModelConfig{
			DefaultProvider: "local",
			Providers: map[string]ProviderConfig{
				"openai": {ModelName: "text-embedding-3-small"},
				"google": {ModelName: "text-embedding-004"},
				"local":  {ModelName: "hash-256"},
			},
		},
		Safeguard: SafeguardConfig{
			Provider:  "groq",
			ModelName: "meta-llama/llama-guard-4-12b",
		},
		Memory: MemoryConfig{
			Collection:        "bug-reports",
			SearchLimit:       10,
			DistanceThreshold: 0.3,
		},
		Workflow: WorkflowConfig{
			MaxCycles:              5,
			PatchMode:              "source",
			CallTimeout:            10 * time.Second,
			SmokeTestResetsFailure: true,
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
		Timeout: 5 * time.Minute,
	}
}

// Load reads path (or HEAL_CONFIG, or config.yml when present) and then
// applies the environment. A file named explicitly must exist.
func Load(path string) (*Config, error) {
	required := true
	if path == "" {
		path = os.Getenv("HEAL_CONFIG")
	}
	if path == "" {
		path = DefaultFile
		required = false
	}

	cfg := Default()
	if err := cfg.loadFile(path, required); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.fillPaths()
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays the HEAL_* variables returned by getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.LLM.DefaultProvider, "HEAL_LLM_PROVIDER")
	llm := c.LLM.Providers[c.LLM.DefaultProvider]
	set(&llm.ModelName, "HEAL_MODEL")
	set(&llm.APIURL, "HEAL_LLM_API_URL")
	set(&llm.APIKey, "HEAL_LLM_API_KEY")
	c.setProvider(&c.LLM, c.LLM.DefaultProvider, llm)

	for provider, key := range map[string]string{
		"google": "HEAL_GOOGLE_API_KEY",
		"groq":   "HEAL_GROQ_API_KEY",
	} {
		if v := getenv(key); v != "" {
			p := c.LLM.Providers[provider]
			p.APIKey = v
			c.setProvider(&c.LLM, provider, p)
		}
	}

	set(&c.EmbeddingModel.DefaultProvider, "HEAL_EMBEDDING_PROVIDER")
	emb := c.EmbeddingModel.Providers[c.EmbeddingModel.DefaultProvider]
	set(&emb.ModelName, "HEAL_EMBEDDING_MODEL")
	c.setProvider(&c.EmbeddingModel, c.EmbeddingModel.DefaultProvider, emb)

	if v := getenv("HEAL_SAFEGUARD_MODEL"); v != "" {
		c.Safeguard.ModelName = v
		c.Safeguard.Enabled = true
	}

	set(&c.StateDir, "HEAL_STATE_DIR")
	set(&c.Workflow.PatchMode, "HEAL_PATCH_MODE")
	set(&c.Server.Addr, "HEAL_ADDR")

	if v := getenv("HEAL_MAX_CYCLES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HEAL_MAX_CYCLES: %w", err)
		}
		c.Workflow.MaxCycles = n
	}
	if v := getenv("HEAL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HEAL_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := getenv("HEAL_API_KEYS"); v != "" {
		c.Server.APIKeys = strings.Split(v, ",")
	}
	return nil
}

func (c *Config) setProvider(m *ModelConfig, name string, p ProviderConfig) {
	if m.Providers == nil {
		m.Providers = map[string]ProviderConfig{}
	}
	m.Providers[name] = p
}

func (c *Config) fillPaths() {
	if c.StateDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			c.StateDir = filepath.Join(cwd, "state")
		}
	}
	if c.Memory.Path == "" {
		c.Memory.Path = filepath.Join(c.StateDir, "memory")
	}
	if c.Server.HistoryFile == "" {
		c.Server.HistoryFile = filepath.Join(c.StateDir, "runs.json")
	}
}

func (c *Config) Validate() error {
	if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok {
		return fmt.Errorf("unknown LLM provider %q", c.LLM.DefaultProvider)
	}
	if _, ok := c.EmbeddingModel.Providers[c.EmbeddingModel.DefaultProvider]; !ok {
		return fmt.Errorf("unknown embedding provider %q", c.EmbeddingModel.DefaultProvider)
	}
	switch c.Workflow.PatchMode {
	case "source", "strategy":
	default:
		return fmt.Errorf("unknown patch mode %q", c.Workflow.PatchMode)
	}
	if c.Workflow.MaxCycles < 1 {
		return fmt.Errorf("max_cycles must be at least 1, got %d", c.Workflow.MaxCycles)
	}
	if c.Memory.DistanceThreshold < 0 || c.Memory.DistanceThreshold > 2 {
		return fmt.Errorf("distance_threshold %v out of range", c.Memory.DistanceThreshold)
	}
	return nil
}

// LLMProvider returns the selected chat provider and its settings.
func (c *Config) LLMProvider() (string, ProviderConfig) {
	return c.LLM.DefaultProvider, c.LLM.Providers[c.LLM.DefaultProvider]
}

func (c *Config) EmbeddingProvider() (string, ProviderConfig) {
	return c.EmbeddingModel.DefaultProvider, c.EmbeddingModel.Providers[c.EmbeddingModel.DefaultProvider]
}

// SafeguardProvider returns the settings of the safeguard model, sharing
// credentials with the chat provider of the same name.
func (c *Config) SafeguardProvider() (string, ProviderConfig) {
	p := c.LLM.Providers[c.Safeguard.Provider]
	p.ModelName = c.Safeguard.ModelName
	return c.Safeguard.Provider, p
}
