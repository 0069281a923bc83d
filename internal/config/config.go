package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Store struct {
		Path string `yaml:"path"` // SQLite document database
	} `yaml:"store"`
	Export struct {
		Format        string  `yaml:"format"`         // json or css
		RemBase       float64 `yaml:"rem_base"`       // px per rem in CSS output
		JSONPrecision int     `yaml:"json_precision"` // decimals kept for left/top
		CSSPrecision  int     `yaml:"css_precision"`  // decimals kept for percentages
	} `yaml:"export"`
	Marker struct {
		Name string  `yaml:"name"`
		Size float64 `yaml:"size"`
	} `yaml:"marker"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Store.Path = "hotspotter.db"
	cfg.Export.Format = "json"
	cfg.Export.RemBase = 16
	cfg.Export.JSONPrecision = 5
	cfg.Export.CSSPrecision = 3
	cfg.Marker.Name = "image-hotspot/Hotspot"
	cfg.Marker.Size = 48
	cfg.Server.Addr = ":8080"
	cfg.Log.Level = "info"
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config over the defaults
	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	}

	// 3. Override with Environment Variables if present
	if db := os.Getenv("HOTSPOTTER_DB"); db != "" {
		cfg.Store.Path = db
	}
	if format := os.Getenv("HOTSPOTTER_FORMAT"); format != "" {
		cfg.Export.Format = format
	}
	if addr := os.Getenv("HOTSPOTTER_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if level := os.Getenv("HOTSPOTTER_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if base := os.Getenv("HOTSPOTTER_REM_BASE"); base != "" {
		v, err := strconv.ParseFloat(base, 64)
		if err != nil {
			return nil, err
		}
		cfg.Export.RemBase = v
	}

	return cfg, nil
}
