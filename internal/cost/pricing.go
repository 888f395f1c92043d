package cost

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PricingFile is the on-disk pricing table format.
type PricingFile struct {
	DefaultModel   string          `yaml:"default_model"`
	DailyBudgetUSD float64         `yaml:"daily_budget_usd"`
	Models         map[string]Rate `yaml:"models"`
}

// LoadPricing reads a YAML pricing table. Built-in rates are kept for
// models the file does not mention.
func LoadPricing(path string) (*PricingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}
	var pf PricingFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse pricing file: %w", err)
	}
	rates := DefaultRates()
	for model, r := range pf.Models {
		if r.InputPer1K < 0 || r.OutputPer1K < 0 {
			return nil, fmt.Errorf("pricing for %s must not be negative", model)
		}
		rates[model] = r
	}
	pf.Models = rates
	if pf.DefaultModel == "" {
		pf.DefaultModel = DefaultModel
	}
	if _, ok := pf.Models[pf.DefaultModel]; !ok {
		return nil, fmt.Errorf("default model %q has no pricing", pf.DefaultModel)
	}
	return &pf, nil
}

// Options converts the file into governor options.
func (pf *PricingFile) Options() []Option {
	return []Option{WithRates(pf.Models), WithDefaultModel(pf.DefaultModel)}
}
