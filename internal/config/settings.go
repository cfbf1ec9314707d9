package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"presupuesto/internal/core"
)

// Settings are the ledger knobs: rate table, initial categories, alert
// threshold and the auto-save rule applied to income.
type Settings struct {
	Rates            core.RateTable
	Categories       []string
	AlertThreshold   decimal.Decimal
	AutoSavePercent  decimal.Decimal
	AutoSaveCategory string
	AutoSaveNotes    string
}

// settingsFile is the YAML shape; numbers are read as text so they stay exact.
type settingsFile struct {
	Rates          map[string]string `yaml:"rates"`
	Categories     []string          `yaml:"categories"`
	AlertThreshold string            `yaml:"alert_threshold"`
	AutoSave       struct {
		Percent  string `yaml:"percent"`
		Category string `yaml:"category"`
		Notes    string `yaml:"notes"`
	} `yaml:"auto_save"`
}

func DefaultSettings() Settings {
	return Settings{
		Rates:            core.DefaultRates(),
		Categories:       []string{"Comida", "Transporte", "Vivienda", "Entretenimiento", "Salud"},
		AlertThreshold:   decimal.RequireFromString("0.8"),
		AutoSavePercent:  decimal.NewFromInt(10),
		AutoSaveCategory: "Ahorro Automático",
		AutoSaveNotes:    "Ahorro de ingreso",
	}
}

// LoadSettings reads path on top of DefaultSettings. An empty path yields
// the defaults. Keys absent from the file keep their default.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read settings file: %w", err)
	}
	var raw settingsFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return s, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(raw.Rates) > 0 {
		s.Rates = core.RateTable{}
		for code, v := range raw.Rates {
			rate, err := decimal.NewFromString(strings.TrimSpace(v))
			if err != nil {
				return s, fmt.Errorf("rate for %s: %w", code, err)
			}
			s.Rates[core.NormalizeCode(code)] = rate
		}
	}
	if raw.Categories != nil {
		s.Categories = raw.Categories
	}
	if err := setDecimal(&s.AlertThreshold, raw.AlertThreshold, "alert_threshold"); err != nil {
		return s, err
	}
	if err := setDecimal(&s.AutoSavePercent, raw.AutoSave.Percent, "auto_save.percent"); err != nil {
		return s, err
	}
	if raw.AutoSave.Category != "" {
		s.AutoSaveCategory = raw.AutoSave.Category
	}
	if raw.AutoSave.Notes != "" {
		s.AutoSaveNotes = raw.AutoSave.Notes
	}
	return s, nil
}

func setDecimal(dst *decimal.Decimal, raw, name string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

func (s Settings) Validate() error {
	var errs []error
	if err := s.Rates.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, ok := s.Rates[core.BaseCurrency]; !ok {
		errs = append(errs, fmt.Errorf("rate table must include the base currency %s", core.BaseCurrency))
	}
	if !s.AlertThreshold.IsPositive() {
		errs = append(errs, fmt.Errorf("alert threshold must be positive, got %s", s.AlertThreshold))
	}
	if s.AutoSavePercent.IsNegative() || s.AutoSavePercent.GreaterThan(decimal.NewFromInt(100)) {
		errs = append(errs, fmt.Errorf("auto-save percent must be between 0 and 100, got %s", s.AutoSavePercent))
	}
	if strings.TrimSpace(s.AutoSaveCategory) == "" {
		errs = append(errs, errors.New("auto-save category cannot be empty"))
	}
	return errors.Join(errs...)
}
