package generate

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/matchall/internal"
	"github.com/gnolang/matchall/internal/rewrite"
	tt "github.com/gnolang/matchall/internal/types"
)

const DefaultConfigFile = ".matchall.yaml"

// Config is the content of a .matchall.yaml file.
type Config struct {
	Name            string                   `yaml:"name"`
	BuildTag        string                   `yaml:"build_tag,omitempty"`
	OutputSuffix    string                   `yaml:"output_suffix,omitempty"`
	RequireFallback bool                     `yaml:"require_fallback"`
	InPlace         bool                     `yaml:"in_place,omitempty"`
	Exclude         []string                 `yaml:"exclude,omitempty"`
	CacheDir        string                   `yaml:"cache_dir,omitempty"`
	Rules           map[string]tt.ConfigRule `yaml:"rules"`
}

// DefaultConfig is what `matchall init` writes.
func DefaultConfig() Config {
	rules := make(map[string]tt.ConfigRule, len(rewrite.DefaultSeverity))
	for name, severity := range rewrite.DefaultSeverity {
		rules[name] = tt.ConfigRule{Severity: severity}
	}
	return Config{
		Name:     "matchall",
		BuildTag: rewrite.DefaultBuildTag,
		Exclude:  []string{"**/testdata/**", "vendor/**"},
		Rules:    rules,
	}
}

// Options converts the configuration to engine options.
func (c Config) Options() internal.Options {
	return internal.Options{
		BuildTag:        c.BuildTag,
		OutputSuffix:    c.OutputSuffix,
		RequireFallback: c.RequireFallback,
		InPlace:         c.InPlace,
		Rules:           c.Rules,
		Exclude:         c.Exclude,
		CacheDir:        c.CacheDir,
	}
}

// LoadConfig reads the configuration at path. An empty path falls back to
// DefaultConfigFile, and a missing default file yields the zero Config.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	config, err := parseConfigurationFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{Name: "matchall"}, nil
		}
		return Config{}, err
	}
	return config, nil
}

func parseConfigurationFile(configurationPath string) (Config, error) {
	var config Config

	f, err := os.Open(configurationPath)
	if err != nil {
		return config, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, fmt.Errorf("error parsing %s: %w", configurationPath, err)
	}

	for name := range config.Rules {
		if _, known := rewrite.DefaultSeverity[name]; !known {
			return config, fmt.Errorf("error parsing %s: unknown rule %q", configurationPath, name)
		}
	}

	return config, nil
}

// WriteConfig writes config as YAML to path.
func WriteConfig(path string, config Config) error {
	d, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(d)
	return err
}
