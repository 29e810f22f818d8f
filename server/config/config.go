package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cyclopcam/dbh"
)

const DefaultHistorySize = 32
const DefaultJPEGQuality = 85

type Config struct {
	DB          *dbh.DBConfig `json:"db"`          // If nil, annotations are not stored in a database
	CatalogFile string        `json:"catalogFile"` // Text file with one object type per line. If empty, use the built-in catalog.
	Threads     int           `json:"threads"`     // Number of threads used to resolve regions (0 = one per CPU)
	HistorySize int           `json:"historySize"` // Number of frame results kept in memory for the HTTP API
	Listen      string        `json:"listen"`      // HTTP listen address, eg ":8090". If empty, don't run the HTTP server.
	Overlay     OverlayConfig `json:"overlay"`
}

type OverlayConfig struct {
	Enabled     bool   `json:"enabled"`
	JPEGQuality int    `json:"jpegQuality"`
	SaveDir     string `json:"saveDir"` // If not empty, write the overlay of every frame into this directory
}

func DefaultConfig() *Config {
	return &Config{
		HistorySize: DefaultHistorySize,
		Overlay: OverlayConfig{
			Enabled:     true,
			JPEGQuality: DefaultJPEGQuality,
		},
	}
}

// Load a config file. Fields that are missing from the file keep their default values.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("Error parsing config file %v: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid config file %v: %w", filename, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Threads < 0 {
		return fmt.Errorf("threads may not be negative")
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.Overlay.JPEGQuality <= 0 || c.Overlay.JPEGQuality > 100 {
		c.Overlay.JPEGQuality = DefaultJPEGQuality
	}
	if c.DB != nil && c.DB.Driver != dbh.DriverSqlite && c.DB.Driver != dbh.DriverPostgres {
		return fmt.Errorf("Unsupported db driver '%v'", c.DB.Driver)
	}
	return nil
}
