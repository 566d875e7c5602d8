package commands

import (
	"fmt"
	"strings"

	"github.com/hydrate-orm/hydrate-go/cli/internal/config"
	"github.com/hydrate-orm/hydrate-go/runtime/client"
)

// detectProvider guesses the provider from a connection string.
func detectProvider(connStr string) string {
	if strings.Contains(connStr, "mysql") {
		return "mysql"
	} else if strings.Contains(connStr, "sqlite") || strings.Contains(connStr, "file:") {
		return "sqlite"
	}
	return "postgresql"
}

// openClient builds a client from flags and the loaded configuration.
func openClient(urlFlag, providerFlag string) (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	connStr := cfg.DatabaseURL
	if urlFlag != "" {
		connStr = urlFlag
	}
	if connStr == "" {
		return nil, fmt.Errorf("no connection string: set DATABASE_URL or pass --url")
	}

	provider := cfg.Provider
	if providerFlag != "" {
		provider = providerFlag
	}
	if provider == "" {
		provider = detectProvider(connStr)
	}

	opts := []client.Option{}
	if cfg.CacheSize > 0 {
		opts = append(opts, client.WithCache(cfg.CacheSize, cfg.CacheTTL))
	}
	return client.Open(provider, connStr, opts...)
}

// formatValue renders one cell for table output.
func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
