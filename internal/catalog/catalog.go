// Package catalog holds the static model catalog: which models exist, which
// provider serves them, their display names, pricing, and per-model-family
// overrides such as locked temperatures on reasoning models. The catalog is
// loaded once at startup and is read-only afterwards.
package catalog

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/promptlab/workbench/internal/domain"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

const (
	// Temperature bounds accepted from authors.
	minTemperature = 0.0
	maxTemperature = 2.0

	// Max-token bounds accepted from authors.
	minMaxTokens     = 1
	maxMaxTokens     = 4096
	defaultMaxTokens = 1024
)

// Entry describes one known model.
type Entry struct {
	ID               string   `yaml:"id"`
	Provider         string   `yaml:"provider"`
	DisplayName      string   `yaml:"display_name"`
	Reasoning        bool     `yaml:"reasoning"`
	FixedTemperature *float64 `yaml:"fixed_temperature"`
	InputCostPer1K   float64  `yaml:"input_cost_per_1k"`
	OutputCostPer1K  float64  `yaml:"output_cost_per_1k"`
}

// Catalog is an immutable lookup table of known models.
type Catalog struct {
	entries []Entry
	byID    map[string]Entry
}

type catalogFile struct {
	Models []Entry `yaml:"models"`
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(embeddedCatalog)
}

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}

	byID := make(map[string]Entry, len(file.Models))
	for _, entry := range file.Models {
		if entry.ID == "" {
			return nil, fmt.Errorf("catalog entry missing id")
		}
		if entry.Provider == "" {
			return nil, fmt.Errorf("catalog entry %s missing provider", entry.ID)
		}
		if _, exists := byID[entry.ID]; exists {
			return nil, fmt.Errorf("duplicate catalog entry: %s", entry.ID)
		}
		byID[entry.ID] = entry
	}

	return &Catalog{entries: file.Models, byID: byID}, nil
}

// Lookup returns the entry for a model id.
func (c *Catalog) Lookup(model string) (Entry, bool) {
	entry, ok := c.byID[model]
	return entry, ok
}

// Models returns all model ids served by the given provider.
func (c *Catalog) Models(provider string) []string {
	var ids []string
	for _, entry := range c.entries {
		if entry.Provider == provider {
			ids = append(ids, entry.ID)
		}
	}
	return ids
}

// Normalize clamps a model config to the bounds the platform accepts and
// applies per-model-family overrides: locked temperature on families that
// disable the control, and reasoning effort stripped from models that cannot
// honor it. Unknown models are clamped but otherwise passed through.
func (c *Catalog) Normalize(cfg domain.ModelConfig) domain.ModelConfig {
	if cfg.Temperature < minTemperature {
		cfg.Temperature = minTemperature
	}
	if cfg.Temperature > maxTemperature {
		cfg.Temperature = maxTemperature
	}
	if cfg.MaxTokens < minMaxTokens {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MaxTokens > maxMaxTokens {
		cfg.MaxTokens = maxMaxTokens
	}
	if cfg.ReasoningEffort != "" && !cfg.ReasoningEffort.Valid() {
		cfg.ReasoningEffort = ""
	}

	entry, ok := c.Lookup(cfg.Model)
	if !ok {
		return cfg
	}

	if cfg.Provider == "" {
		cfg.Provider = entry.Provider
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = entry.DisplayName
	}
	if entry.FixedTemperature != nil {
		cfg.Temperature = *entry.FixedTemperature
	}
	if !entry.Reasoning {
		cfg.ReasoningEffort = ""
	}

	return cfg
}

// SeedPricing registers catalog pricing into the pricing registry. Entries
// without pricing (cost unknown) are skipped so their cost stays null.
func (c *Catalog) SeedPricing(ctx context.Context, registry domain.PricingRegistry) error {
	for _, entry := range c.entries {
		if entry.InputCostPer1K == 0 && entry.OutputCostPer1K == 0 {
			continue
		}
		err := registry.RegisterPricing(ctx, entry.ID, domain.PricingConfig{
			InputCostPer1K:  entry.InputCostPer1K,
			OutputCostPer1K: entry.OutputCostPer1K,
		})
		if err != nil {
			return fmt.Errorf("failed to seed pricing for %s: %w", entry.ID, err)
		}
	}
	return nil
}
