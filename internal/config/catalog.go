package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProviderEntry overrides one provider's defaults.
type ProviderEntry struct {
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// Catalog is the PROVIDERS_FILE document:
//
//	providers:
//	  ollama:
//	    base_url: http://gpu-box:11434/v1
//	    default_model: qwen2.5
type Catalog struct {
	Providers map[string]ProviderEntry `yaml:"providers"`
}

// LoadCatalog reads a provider catalog. An empty path yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return &Catalog{Providers: map[string]ProviderEntry{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse provider catalog: %w", err)
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderEntry{}
	}
	return &c, nil
}
