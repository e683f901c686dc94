package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"basis-backtest/internal/backtest"
)

// Config is the application configuration: the engine parameters plus
// the data, server and logging settings the collaborators need.
type Config struct {
	// Preset names a built-in engine configuration. When set it takes
	// precedence over the backtest section.
	Preset string `mapstructure:"preset"`

	// PresetFile points at a YAML file carrying a backtest section to
	// overlay on top of the resolved config (explicit non-zero fields in
	// the backtest section still win).
	PresetFile string `mapstructure:"preset_file"`

	Backtest backtest.Config `mapstructure:"backtest"`
	Data     DataConfig      `mapstructure:"data"`
	Server   ServerConfig    `mapstructure:"server"`
	Logging  LoggingConfig   `mapstructure:"logging"`
}

// DataConfig drives the acquisition collaborator.
type DataConfig struct {
	PerpSymbol string `mapstructure:"perp_symbol"` // e.g. BTCUSD_PERP
	SpotSymbol string `mapstructure:"spot_symbol"` // e.g. BTCUSDT
	Interval   string `mapstructure:"interval"`    // kline interval for both legs
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Load reads configuration from the given YAML file (or the default
// search path when empty), environment variables prefixed BASISBT_, and
// code defaults, in ascending precedence of default < preset file <
// file < env.
func Load(path string) (*Config, error) {
	v := newViper(path)
	setDefaults(v)
	if err := readIn(v); err != nil {
		return nil, err
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if c.PresetFile != "" {
		presetPath := c.PresetFile
		if !filepath.IsAbs(presetPath) && path != "" {
			// Prefer paths relative to the config file directory, falling
			// back to the cwd-relative path if that doesn't exist.
			cand := filepath.Join(filepath.Dir(path), presetPath)
			if _, err := os.Stat(cand); err == nil {
				presetPath = cand
			}
		}
		loaded, err := loadPresetFile(presetPath)
		if err != nil {
			return nil, err
		}
		// Only keys the config file or environment actually set may
		// override the preset file. A second viper without defaults
		// tells explicit values apart from defaulted ones.
		raw := newViper(path)
		if err := readIn(raw); err != nil {
			return nil, err
		}
		c.Backtest = overlayExplicit(loaded, raw.IsSet, c.Backtest)
	}

	bt, err := c.ResolveBacktest()
	if err != nil {
		return nil, err
	}
	if err := bt.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// newViper wires the file location and environment binding shared by
// both the defaulted and the raw instance.
func newViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("BASISBT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func readIn(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
		// No file; defaults and environment carry the run.
	}
	return nil
}

// ResolveBacktest returns the engine configuration a run should use:
// the named preset when one is set, otherwise the backtest section.
func (c *Config) ResolveBacktest() (backtest.Config, error) {
	if c.Preset != "" {
		return backtest.Preset(c.Preset)
	}
	return c.Backtest, nil
}

func setDefaults(v *viper.Viper) {
	def := backtest.DefaultConfig()
	v.SetDefault("backtest.initial_cash", def.InitialCash)
	v.SetDefault("backtest.entry_funding_threshold", def.EntryFundingThreshold)
	v.SetDefault("backtest.exit_funding_threshold", def.ExitFundingThreshold)
	v.SetDefault("backtest.entry_basis_threshold", def.EntryBasisThreshold)
	v.SetDefault("backtest.exit_basis_threshold", def.ExitBasisThreshold)
	v.SetDefault("backtest.spot_fee_rate", def.SpotFeeRate)
	v.SetDefault("backtest.perp_fee_rate", def.PerpFeeRate)
	v.SetDefault("backtest.funding_fee_rate", def.FundingFeeRate)
	v.SetDefault("backtest.enable_two_sided_entry", def.EnableTwoSidedEntry)
	v.SetDefault("backtest.funding_on_cash", def.FundingOnCash)
	v.SetDefault("backtest.use_lagged_funding", def.UseLaggedFunding)

	v.SetDefault("data.perp_symbol", "BTCUSD_PERP")
	v.SetDefault("data.spot_symbol", "BTCUSDT")
	v.SetDefault("data.interval", "1h")

	v.SetDefault("server.port", 8080)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// backtestOverride mirrors backtest.Config with pointer fields so an
// absent key in a preset file is distinguishable from an explicit zero.
type backtestOverride struct {
	InitialCash           *float64 `yaml:"initial_cash"`
	EntryFundingThreshold *float64 `yaml:"entry_funding_threshold"`
	ExitFundingThreshold  *float64 `yaml:"exit_funding_threshold"`
	EntryBasisThreshold   *float64 `yaml:"entry_basis_threshold"`
	ExitBasisThreshold    *float64 `yaml:"exit_basis_threshold"`
	SpotFeeRate           *float64 `yaml:"spot_fee_rate"`
	PerpFeeRate           *float64 `yaml:"perp_fee_rate"`
	FundingFeeRate        *float64 `yaml:"funding_fee_rate"`
	EnableTwoSidedEntry   *bool    `yaml:"enable_two_sided_entry"`
	FundingOnCash         *bool    `yaml:"funding_on_cash"`
	UseLaggedFunding      *bool    `yaml:"use_lagged_funding"`
}

func (o backtestOverride) apply(base backtest.Config) backtest.Config {
	out := base
	if o.InitialCash != nil {
		out.InitialCash = *o.InitialCash
	}
	if o.EntryFundingThreshold != nil {
		out.EntryFundingThreshold = *o.EntryFundingThreshold
	}
	if o.ExitFundingThreshold != nil {
		out.ExitFundingThreshold = *o.ExitFundingThreshold
	}
	if o.EntryBasisThreshold != nil {
		out.EntryBasisThreshold = *o.EntryBasisThreshold
	}
	if o.ExitBasisThreshold != nil {
		out.ExitBasisThreshold = *o.ExitBasisThreshold
	}
	if o.SpotFeeRate != nil {
		out.SpotFeeRate = *o.SpotFeeRate
	}
	if o.PerpFeeRate != nil {
		out.PerpFeeRate = *o.PerpFeeRate
	}
	if o.FundingFeeRate != nil {
		out.FundingFeeRate = *o.FundingFeeRate
	}
	if o.EnableTwoSidedEntry != nil {
		out.EnableTwoSidedEntry = *o.EnableTwoSidedEntry
	}
	if o.FundingOnCash != nil {
		out.FundingOnCash = *o.FundingOnCash
	}
	if o.UseLaggedFunding != nil {
		out.UseLaggedFunding = *o.UseLaggedFunding
	}
	return out
}

type presetFileWrapper struct {
	Backtest backtestOverride `yaml:"backtest"`
}

// loadPresetFile reads a YAML preset and returns the default config
// with only the keys the file actually carries replaced. Absent basis
// thresholds stay at the -Inf "no gate" default rather than becoming a
// gate at zero.
func loadPresetFile(path string) (backtest.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return backtest.Config{}, err
	}
	var w presetFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return backtest.Config{}, fmt.Errorf("preset file %s: %w", path, err)
	}
	return w.Backtest.apply(backtest.DefaultConfig()), nil
}

// overlayExplicit copies onto base only the backtest fields isSet
// reports as explicitly present, taking the values from over. Defaults
// registered on the resolving viper never count as explicit, so a
// preset file's settings survive unless the file or environment really
// overrode them.
func overlayExplicit(base backtest.Config, isSet func(string) bool, over backtest.Config) backtest.Config {
	out := base
	if isSet("backtest.initial_cash") {
		out.InitialCash = over.InitialCash
	}
	if isSet("backtest.entry_funding_threshold") {
		out.EntryFundingThreshold = over.EntryFundingThreshold
	}
	if isSet("backtest.exit_funding_threshold") {
		out.ExitFundingThreshold = over.ExitFundingThreshold
	}
	if isSet("backtest.entry_basis_threshold") {
		out.EntryBasisThreshold = over.EntryBasisThreshold
	}
	if isSet("backtest.exit_basis_threshold") {
		out.ExitBasisThreshold = over.ExitBasisThreshold
	}
	if isSet("backtest.spot_fee_rate") {
		out.SpotFeeRate = over.SpotFeeRate
	}
	if isSet("backtest.perp_fee_rate") {
		out.PerpFeeRate = over.PerpFeeRate
	}
	if isSet("backtest.funding_fee_rate") {
		out.FundingFeeRate = over.FundingFeeRate
	}
	if isSet("backtest.enable_two_sided_entry") {
		out.EnableTwoSidedEntry = over.EnableTwoSidedEntry
	}
	if isSet("backtest.funding_on_cash") {
		out.FundingOnCash = over.FundingOnCash
	}
	if isSet("backtest.use_lagged_funding") {
		out.UseLaggedFunding = over.UseLaggedFunding
	}
	return out
}
