package fees

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultTables returns the built-in contract and fee tables. Each call returns fresh maps.
func DefaultTables() Tables {
	return Tables{
		Contracts: map[string]ContractSpec{
			"ES":  {Multiplier: 50, TickValue: 12.5},
			"MES": {Multiplier: 5, TickValue: 1.25},
			"NQ":  {Multiplier: 20, TickValue: 5},
			"MNQ": {Multiplier: 2, TickValue: 0.5},
			"YM":  {Multiplier: 5, TickValue: 5},
			"MYM": {Multiplier: 0.5, TickValue: 0.5},
			"RTY": {Multiplier: 50, TickValue: 5},
			"M2K": {Multiplier: 5, TickValue: 0.5},
			"CL":  {Multiplier: 1000, TickValue: 10},
			"MCL": {Multiplier: 100, TickValue: 1},
			"GC":  {Multiplier: 100, TickValue: 10},
			"MGC": {Multiplier: 10, TickValue: 1},
			"SI":  {Multiplier: 5000, TickValue: 25},
			"6E":  {Multiplier: 125000, TickValue: 6.25},
		},
		Brokers: map[string]Schedule{
			"tradovate":   {CommissionPerRoundTrip: 1.34, EntryFeePerUnit: 0.05, ExitFeePerUnit: 0.05},
			"ninjatrader": {CommissionPerRoundTrip: 1.29, EntryFeePerUnit: 0.02, ExitFeePerUnit: 0.02},
			"rithmic":     {CommissionPerRoundTrip: 1.04, EntryFeePerUnit: 0.10, ExitFeePerUnit: 0.10},
			GenericBroker: {},
		},
		DataSources: map[string]string{
			"tradovate_csv":   "tradovate",
			"ninjatrader_csv": "ninjatrader",
			"rithmic_csv":     "rithmic",
		},
		AccountTypes: map[string]string{
			"EVALUATION": "tradovate",
			"FUNDED":     "tradovate",
		},
	}
}

// LoadTables reads a YAML fee schedule file.
func LoadTables(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read fee schedule file: %w", err)
	}
	t, err := ParseTables(data)
	if err != nil {
		return Tables{}, fmt.Errorf("fee schedule %s: %w", path, err)
	}
	return t, nil
}

// ParseTables decodes and validates YAML fee tables.
func ParseTables(data []byte) (Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

// Validate rejects non-positive multipliers and negative fees.
func (t Tables) Validate() error {
	var errs []string
	for sym, spec := range t.Contracts {
		if spec.Multiplier <= 0 {
			errs = append(errs, fmt.Sprintf("contract %s: multiplier must be positive", sym))
		}
		if spec.TickValue < 0 {
			errs = append(errs, fmt.Sprintf("contract %s: tick_value cannot be negative", sym))
		}
	}
	for name, s := range t.Brokers {
		if s.CommissionPerRoundTrip < 0 || s.EntryFeePerUnit < 0 || s.ExitFeePerUnit < 0 {
			errs = append(errs, fmt.Sprintf("broker %s: fees cannot be negative", name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid fee tables: %s", strings.Join(errs, "; "))
	}
	return nil
}
