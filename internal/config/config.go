// Package config loads declink settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"declink/internal/clean"
	"declink/internal/dedupe"
	"declink/internal/export"
	"declink/internal/linker"
	"declink/internal/record"
)

// EnvPath names a config file used when no --config flag is given.
const EnvPath = "DECLINK_CONFIG"

// CleaningConfig tunes the cell cleaner.
type CleaningConfig struct {
	YearPivot int `yaml:"year_pivot"`
}

// LinkingConfig tunes the record linker.
type LinkingConfig struct {
	MinUnlinkedNameLength int `yaml:"min_unlinked_name_length"`
}

// DedupeConfig selects fingerprint deduplication.
type DedupeConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Strategy string `yaml:"strategy"`
}

// ExportConfig shapes the review workbook. Highlight columns address
// processed-file columns.
type ExportConfig struct {
	Sheets           int    `yaml:"sheets"`
	GroupSheets      int    `yaml:"group_sheets"`
	MinLinkGroupSize int    `yaml:"min_link_group_size"`
	HighlightColumns []int  `yaml:"highlight_columns"`
	GroupColumn      string `yaml:"group_column"`
}

// MergeConfig names the columns of the reviewed exports.
type MergeConfig struct {
	GroupColumn      string   `yaml:"group_column"`
	Marker           string   `yaml:"marker"`
	Extra            []string `yaml:"extra"`
	PositionColumns  []string `yaml:"position_columns"`
	MovablesEncoding string   `yaml:"movables_encoding"`
	Output           string   `yaml:"output"`
}

// OutputConfig places the process artifacts.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// Config holds every declink setting.
type Config struct {
	Columns  record.Schema  `yaml:"columns"`
	Cleaning CleaningConfig `yaml:"cleaning"`
	Linking  LinkingConfig  `yaml:"linking"`
	Dedupe   DedupeConfig   `yaml:"dedupe"`
	Export   ExportConfig   `yaml:"export"`
	Merge    MergeConfig    `yaml:"merge"`
	Output   OutputConfig   `yaml:"output"`
}

// DefaultHighlightColumns are the processed columns compared within a group:
// the boolean and year columns in front of the email and every filing value
// up to the derived block.
func DefaultHighlightColumns() []int {
	cols := []int{2, 3}
	for i := 5; i <= 310; i++ {
		cols = append(cols, i)
	}
	return record.Columns(cols...)
}

// Default returns the settings of the original declaration review.
func Default() Config {
	return Config{
		Columns:  record.DefaultSchema(),
		Cleaning: CleaningConfig{YearPivot: clean.DefaultYearPivot},
		Linking:  LinkingConfig{MinUnlinkedNameLength: linker.DefaultMinUnlinkedName},
		Dedupe:   DedupeConfig{Enabled: false, Strategy: string(dedupe.StrategySorted)},
		Export: ExportConfig{
			Sheets:           10,
			GroupSheets:      1,
			MinLinkGroupSize: 2,
			HighlightColumns: DefaultHighlightColumns(),
			GroupColumn:      export.DefaultGroupColumn,
		},
		Merge: MergeConfig{
			GroupColumn:      export.DefaultGroupColumn,
			Marker:           "ОБЩ",
			Extra:            []string{"Результат сверки машин"},
			PositionColumns:  []string{"Регіон", "Структура", "Посада"},
			MovablesEncoding: "windows-1251",
			Output:           "merged_declarations.csv",
		},
		Output: OutputConfig{Dir: "."},
	}
}

// Load reads path over the defaults, so missing fields keep their default
// values. An empty path falls back to $DECLINK_CONFIG and then to the
// defaults alone.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read config at %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if err := c.Columns.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Cleaning.YearPivot < 0 || c.Cleaning.YearPivot > 99 {
		errs = append(errs, fmt.Errorf("cleaning.year_pivot must be within 0..99, got %d", c.Cleaning.YearPivot))
	}
	if c.Linking.MinUnlinkedNameLength < 1 {
		errs = append(errs, fmt.Errorf("linking.min_unlinked_name_length must be positive"))
	}
	if _, err := dedupe.ParseStrategy(c.Dedupe.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("dedupe.strategy: %w", err))
	}
	if c.Export.Sheets < 1 || c.Export.GroupSheets < 1 {
		errs = append(errs, fmt.Errorf("export sheet counts must be positive"))
	}
	if c.Export.MinLinkGroupSize < 1 {
		errs = append(errs, fmt.Errorf("export.min_link_group_size must be positive"))
	}
	for _, i := range c.Export.HighlightColumns {
		if i < 0 {
			errs = append(errs, fmt.Errorf("export.highlight_columns: negative index %d", i))
			break
		}
	}
	if _, err := Encoding(c.Merge.MovablesEncoding); err != nil {
		errs = append(errs, fmt.Errorf("merge.movables_encoding: %w", err))
	}
	return errors.Join(errs...)
}
