// Package config loads runtime configuration from environment variables,
// with a small YAML overlay for the settings an operator would rather
// keep in a file than in the process environment: the model and
// provider registries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Config is the runtime configuration for the engine and its transport.
type Config struct {
	// NeuralToken authenticates every protected HTTP/WS call as a Bearer
	// token. Required outside Debug mode.
	NeuralToken string

	// DatabaseURL names the SQLite database, e.g. "sqlite:tadpole.db".
	DatabaseURL string

	// DataDir roots skills/, workflows/, hooks/, workspaces/, and vault/.
	DataDir string

	// AllowedOrigins is the CORS allow-list for the HTTP/WS surface.
	AllowedOrigins []string

	// Port is the HTTP listen port.
	Port int

	GoogleAPIKey   string
	GroqAPIKey     string
	DiscordWebhook string

	// LegacyJSONBackup holds the configured legacy JSON backup path. Load
	// reads it, but no component uses it: mission state is written only
	// to the SQLite tables.
	LegacyJSONBackup string

	// Debug relaxes the NeuralToken requirement for local development.
	Debug bool

	// Providers and Models back the mission runner's config-resolve
	// step; loaded from the registry file named by NEXUS_REGISTRY_PATH
	// (default "<DataDir>/registry.yaml") if present.
	Providers map[string]models.ProviderConfig
	Models    map[string]models.ModelEntry
}

const (
	defaultDatabaseURL = "sqlite:tadpole.db"
	defaultDataDir     = "."
	defaultPort        = 8000
)

// Load builds a Config from the process environment plus the optional
// model/provider registry file.
func Load() (*Config, error) {
	cfg := &Config{
		NeuralToken:      os.Getenv("NEURAL_TOKEN"),
		DatabaseURL:      firstNonEmpty(os.Getenv("DATABASE_URL"), defaultDatabaseURL),
		DataDir:          firstNonEmpty(os.Getenv("DATA_DIR"), defaultDataDir),
		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		GroqAPIKey:       os.Getenv("GROQ_API_KEY"),
		DiscordWebhook:   os.Getenv("DISCORD_WEBHOOK"),
		LegacyJSONBackup: os.Getenv("LEGACY_JSON_BACKUP"),
		Debug:            parseBool(os.Getenv("NEXUS_DEBUG")),
		Port:             defaultPort,
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("parse PORT: %w", err)
		}
		cfg.Port = port
	}

	if cfg.NeuralToken == "" && !cfg.Debug {
		return nil, fmt.Errorf("NEURAL_TOKEN is required outside debug mode")
	}

	registryPath := firstNonEmpty(os.Getenv("NEXUS_REGISTRY_PATH"), cfg.DataDir+"/registry.yaml")
	providers, entries, err := loadRegistry(registryPath)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	cfg.Providers = providers
	cfg.Models = entries

	return cfg, nil
}

// registryFile is the on-disk shape of the optional model/provider
// registry overlay.
type registryFile struct {
	Version   int                     `yaml:"version"`
	Providers []models.ProviderConfig `yaml:"providers"`
	Models    []models.ModelEntry     `yaml:"models"`
}

// loadRegistry reads path if present; a missing file is not an error,
// since the engine can run with zero registry entries and rely entirely
// on payload-level provider/model overrides. A present file must carry a
// supported version.
func loadRegistry(path string) (map[string]models.ProviderConfig, map[string]models.ModelEntry, error) {
	providers := make(map[string]models.ProviderConfig)
	entries := make(map[string]models.ModelEntry)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return providers, entries, nil
		}
		return nil, nil, err
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := ValidateVersion(file.Version); err != nil {
		return nil, nil, err
	}

	for _, p := range file.Providers {
		providers[p.ID] = p
	}
	for _, m := range file.Models {
		entries[m.ID] = m
	}
	return providers, entries, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseBool(s string) bool {
	v, _ := strconv.ParseBool(s)
	return v
}
