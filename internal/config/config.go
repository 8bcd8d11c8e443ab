// Package config layers tool settings: flag defaults, then a settings file,
// then CABALRUN_* environment variables, then explicitly set flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CABALRUN_CABAL.
const EnvPrefix = "CABALRUN"

// SettingsName is the base name of the per-user settings file searched in
// the home directory (.cabalrun.yaml, .cabalrun.toml, ...).
const SettingsName = ".cabalrun"

// Settings holds every tunable of an invocation.
type Settings struct {
	Cabal         string        `mapstructure:"cabal"`
	ConfigureArgs []string      `mapstructure:"configure-arg"`
	BuildArgs     []string      `mapstructure:"build-arg"`
	EnvFile       string        `mapstructure:"env-file"`
	Encoding      string        `mapstructure:"encoding"`
	PTY           bool          `mapstructure:"pty"`
	Format        string        `mapstructure:"format"`
	PathMode      string        `mapstructure:"path-mode"`
	Color         string        `mapstructure:"color"`
	Quiet         bool          `mapstructure:"quiet"`
	Timings       bool          `mapstructure:"timings"`
	MaxDiags      int           `mapstructure:"max-diagnostics"`
	UI            string        `mapstructure:"ui"`
	Report        string        `mapstructure:"report"`
	ReportFormat  string        `mapstructure:"report-format"`
	NATSURL       string        `mapstructure:"nats-url"`
	NATSSubject   string        `mapstructure:"nats-subject"`
	History       string        `mapstructure:"history"`
	MetricsFile   string        `mapstructure:"metrics-file"`
	LogLevel      string        `mapstructure:"log-level"`
	LogFormat     string        `mapstructure:"log-format"`
	LogFile       string        `mapstructure:"log-file"`
	Debounce      time.Duration `mapstructure:"debounce"`
}

// Loader resolves Settings against a flag set.
type Loader struct {
	v *viper.Viper
	// File is an explicit settings file; empty searches the home directory.
	File string
	// Home overrides os.UserHomeDir for the search.
	Home string
}

// NewLoader returns a Loader with its own viper instance.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load binds flags, reads the settings file if any and decodes the result.
func (l *Loader) Load(flags *pflag.FlagSet) (Settings, error) {
	var s Settings
	if flags != nil {
		if err := l.v.BindPFlags(flags); err != nil {
			return s, fmt.Errorf("bind flags: %w", err)
		}
	}
	if err := l.readFile(); err != nil {
		return s, err
	}
	if err := l.v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// FileUsed reports the settings file that was read, if any.
func (l *Loader) FileUsed() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) readFile() error {
	if l.File != "" {
		l.v.SetConfigFile(l.File)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read settings %s: %w", l.File, err)
		}
		return nil
	}

	home := l.Home
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		home = h
	}
	l.v.AddConfigPath(home)
	l.v.SetConfigName(SettingsName)
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read settings: %w", err)
	}
	return nil
}
