package cmd

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tbd/internal/exports"
	"tbd/internal/extract"
)

// Config holds the settings shared by every command. Values come from flags,
// TBD_* environment variables and an optional YAML file, in that order of
// precedence.
type Config struct {
	Private          bool   `json:"private" mapstructure:"private" jsonschema:"title=Private Symbols,description=Also export non-external symbols of every kind"`
	PrivateObjC      bool   `json:"privateObjc" mapstructure:"private-objc" jsonschema:"title=Private Objective-C Symbols,description=Also export non-external Objective-C classes and ivars"`
	Strict           bool   `json:"strict" mapstructure:"strict" jsonschema:"title=Strict,description=Fail on malformed symbol table entries instead of skipping them"`
	Library          bool   `json:"library" mapstructure:"library" jsonschema:"title=Library,description=Reject inputs that are not dynamic libraries"`
	Recurse          bool   `json:"recurse" mapstructure:"recurse" jsonschema:"title=Recurse,description=Descend into subdirectories of directory inputs"`
	Output           string `json:"output,omitempty" mapstructure:"output" jsonschema:"title=Output,description=Output file for one input or directory for many; stdout when empty"`
	Jobs             int    `json:"jobs,omitempty" mapstructure:"jobs" jsonschema:"title=Jobs,description=Architecture slices parsed at once; 0 means one per CPU,minimum=0"`
	IgnoreErrors     bool   `json:"ignoreErrors" mapstructure:"ignore-errors" jsonschema:"title=Ignore Errors,description=Warn about failing inputs and keep going"`
	NoOverwrite      bool   `json:"noOverwrite" mapstructure:"no-overwrite" jsonschema:"title=No Overwrite,description=Leave existing output files alone"`
	ReplaceExtension bool   `json:"replaceExtension" mapstructure:"replace-extension" jsonschema:"title=Replace Extension,description=Replace the input's extension with .tbd instead of appending it"`
	PreserveSubdirs  bool   `json:"preserveSubdirs" mapstructure:"preserve-subdirs" jsonschema:"title=Preserve Subdirectories,description=Mirror the input directory layout below the output directory"`
	Color            string `json:"color,omitempty" mapstructure:"color" jsonschema:"title=Color,description=Highlight stubs written to a terminal,enum=auto,enum=always,enum=never,default=auto"`
	Debug            bool   `json:"debug" mapstructure:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
}

// ParseOptions maps the private symbol settings to classifier options.
func (c *Config) ParseOptions() exports.Options {
	var opts exports.Options
	if c.Private {
		opts |= exports.AllowAllPrivateSymbols
	}
	if c.PrivateObjC {
		opts |= exports.AllowPrivateObjCSymbols
	}
	return opts
}

// ExtractOptions returns the driver options for this configuration.
func (c *Config) ExtractOptions(lg *log.Logger) extract.Options {
	return extract.Options{
		Parse:          c.ParseOptions(),
		Strict:         c.Strict,
		RequireLibrary: c.Library,
		Jobs:           c.Jobs,
		Logger:         lg,
	}
}

func (c *Config) validate() error {
	switch c.Color {
	case "", "auto", "always", "never":
	default:
		return errors.Errorf("invalid --color %q: want auto, always or never", c.Color)
	}
	if c.Jobs < 0 {
		return errors.Errorf("invalid --jobs %d", c.Jobs)
	}
	return nil
}

// addExtractFlags registers the flags that shape extraction.
func addExtractFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("private", "p", false, "Export private symbols of every kind")
	cmd.Flags().Bool("private-objc", false, "Export private Objective-C classes and ivars")
	cmd.Flags().Bool("strict", false, "Fail on malformed symbol table entries")
	cmd.Flags().Bool("library", false, "Only accept dynamic libraries")
	cmd.Flags().IntP("jobs", "j", 0, "Slices parsed at once (0: one per CPU)")
}

// loadConfig resolves the configuration of cmd. The viper instance is local
// to the call so commands can run more than once in a process.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("tbd")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("color", "auto")

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}
	if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", f.Value.String())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
