package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

var AppFs = afero.NewOsFs()

// Cache defaults applied when caching is enabled without explicit values.
const (
	DefaultCacheSize = 512
	DefaultCacheTTL  = 5 * time.Minute
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	Provider    string
	CacheSize   int
	CacheTTL    time.Duration
	Debug       bool
}

// Load loads configuration from config files, .env files and the
// environment, in increasing priority.
func Load() (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	viper.SetConfigName(".hydrate")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(home)
	viper.AddConfigPath(filepath.Join(home, ".config", "hydrate"))

	viper.SetEnvPrefix("HYDRATE")
	viper.AutomaticEnv()

	viper.SetDefault("provider", "")
	viper.SetDefault("cache_size", 0)
	viper.SetDefault("cache_ttl", DefaultCacheTTL)
	viper.SetDefault("debug", false)

	// Missing config files are fine; flags and env cover everything.
	_ = viper.ReadInConfig()

	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	// .env.local overrides .env when both exist.
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Provider:    viper.GetString("provider"),
		CacheSize:   viper.GetInt("cache_size"),
		CacheTTL:    viper.GetDuration("cache_ttl"),
		Debug:       viper.GetBool("debug"),
	}
	return cfg, nil
}

// Save saves configuration to the user config directory.
func Save(cfg *Config) error {
	viper.Set("provider", cfg.Provider)
	viper.Set("cache_size", cfg.CacheSize)
	viper.Set("cache_ttl", cfg.CacheTTL)
	viper.Set("debug", cfg.Debug)

	home, err := homedir.Dir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(home, ".config", "hydrate")
	if err := AppFs.MkdirAll(configPath, 0755); err != nil {
		return err
	}

	configFile := filepath.Join(configPath, ".hydrate.yaml")
	return viper.WriteConfigAs(configFile)
}
