// Package plancatalog reads investment plan tiers from YAML.
package plancatalog

import (
	"bytes"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/iho/yieldledger/internal/domain"
)

type file struct {
	Plans []planEntry `yaml:"plans"`
}

// Amounts are strings so they never pass through float64.
type planEntry struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	MinPrincipal string  `yaml:"min_principal"`
	MaxPrincipal *string `yaml:"max_principal"`
	DailyRate    string  `yaml:"daily_rate"`
}

// Load returns the catalog at path, or the built-in tiers when path is empty.
func Load(path string) (*domain.PlanCatalog, error) {
	if path == "" {
		return domain.DefaultPlanCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a validated catalog from YAML data.
func Parse(data []byte) (*domain.PlanCatalog, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: parse YAML: %v", domain.ErrInvalidPlanCatalog, err)
	}

	plans := make([]domain.Plan, 0, len(f.Plans))
	for i, e := range f.Plans {
		p, err := e.toPlan()
		if err != nil {
			return nil, fmt.Errorf("%w: plan %d (%s): %v", domain.ErrInvalidPlanCatalog, i, e.ID, err)
		}
		plans = append(plans, p)
	}

	return domain.NewPlanCatalog(plans)
}

func (e planEntry) toPlan() (domain.Plan, error) {
	minimum, err := decimal.NewFromString(e.MinPrincipal)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("min_principal: %w", err)
	}
	rate, err := decimal.NewFromString(e.DailyRate)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("daily_rate: %w", err)
	}

	p := domain.Plan{
		ID:           e.ID,
		Name:         e.Name,
		MinPrincipal: minimum,
		DailyRate:    rate,
	}
	if p.Name == "" {
		p.Name = e.ID
	}
	if e.MaxPrincipal != nil {
		maximum, err := decimal.NewFromString(*e.MaxPrincipal)
		if err != nil {
			return domain.Plan{}, fmt.Errorf("max_principal: %w", err)
		}
		p.MaxPrincipal = &maximum
	}
	return p, nil
}
