package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all application settings. Values come from an optional YAML
// file with INVOICEAGENT_* environment overrides; path defaults land under
// ~/.invoiceagent.
type Config struct {
	Env string `yaml:"env" env:"INVOICEAGENT_ENV" env-default:"production"`

	Log struct {
		Level  string `yaml:"level" env:"INVOICEAGENT_LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"INVOICEAGENT_LOG_FORMAT" env-default:"console"`
	} `yaml:"log"`

	DatabasePath string `yaml:"database_path" env:"INVOICEAGENT_DB_PATH"`
	TemplatesDir string `yaml:"templates_dir" env:"INVOICEAGENT_TEMPLATES_DIR"`
	PromptsDir   string `yaml:"prompts_dir" env:"INVOICEAGENT_PROMPTS_DIR"`
	CacheDir     string `yaml:"cache_dir" env:"INVOICEAGENT_CACHE_DIR"`

	Ollama struct {
		BaseURL  string `yaml:"base_url" env:"INVOICEAGENT_OLLAMA_URL" env-default:"http://localhost:11434"`
		Model    string `yaml:"model" env:"INVOICEAGENT_OLLAMA_MODEL" env-default:"llama3.2:latest"`
		Timeout  int    `yaml:"timeout" env:"INVOICEAGENT_OLLAMA_TIMEOUT" env-default:"60"`
		CacheTTL int    `yaml:"cache_ttl" env:"INVOICEAGENT_OLLAMA_CACHE_TTL" env-default:"3600"`
	} `yaml:"ollama"`
}

// Load reads configuration from the given YAML file, or from the environment
// alone when path is empty. A local .env file is applied first if present.
func Load(path string) (*Config, error) {
	// Missing .env is fine; it only seeds the environment.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from environment: %w", err)
		}
	}

	if err := cfg.applyPathDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyPathDefaults() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to resolve home directory: %w", err)
	}
	base := filepath.Join(home, ".invoiceagent")

	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(base, "invoiceagent.db")
	}
	if c.TemplatesDir == "" {
		c.TemplatesDir = filepath.Join(base, "templates")
	}
	if c.PromptsDir == "" {
		c.PromptsDir = filepath.Join(base, "prompts")
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(base, "cache")
	}

	for _, dir := range []string{filepath.Dir(c.DatabasePath), c.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
