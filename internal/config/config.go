package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/naseridev/deepscene/internal/stegerr"
)

// EnvConfigPath names the environment variable consulted when no -c flag is given
const EnvConfigPath = "DEEPSCENE_CONFIG"

// Config holds user preferences. Nothing here changes the embedded format.
type Config struct {
	LogLevel      string `yaml:"log_level"`      // debug, info, warn, error
	OutputSuffix  string `yaml:"output_suffix"`  // appended to the carrier stem for default encode output
	OutputFormat  string `yaml:"output_format"`  // png, bmp or tiff for default encode output
	KeepConverted bool   `yaml:"keep_converted"` // keep the PNG written when converting a lossy carrier
	Workers       int    `yaml:"workers"`        // extraction fan-out, 1 is sequential
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		OutputSuffix: "_steg",
		OutputFormat: "png",
		Workers:      1,
	}
}

// Load reads a YAML file over the defaults. An empty path returns defaults.
func Load(path string) (*Config, error) {
	conf := Default()
	if path == "" {
		return conf, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, stegerr.IO(err, "failed to read config %s", path)
	}

	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, stegerr.Wrap(stegerr.KindValidation, err, "invalid config "+path)
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Save writes the configuration as YAML
func Save(path string, conf *Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return stegerr.Wrap(stegerr.KindValidation, err, "failed to encode config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return stegerr.IO(err, "failed to write config %s", path)
	}
	return nil
}

// Validate normalizes and checks the fields
func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	case "":
		c.LogLevel = "info"
	default:
		return stegerr.Validation("invalid log_level %q", c.LogLevel)
	}

	c.OutputFormat = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.OutputFormat), "."))
	switch c.OutputFormat {
	case "png", "bmp", "tiff":
	case "tif":
		c.OutputFormat = "tiff"
	case "":
		c.OutputFormat = "png"
	default:
		return stegerr.Validation("invalid output_format %q (png, bmp or tiff)", c.OutputFormat)
	}

	if strings.ContainsAny(c.OutputSuffix, `/\`) {
		return stegerr.Validation("output_suffix cannot contain path separators")
	}

	if c.Workers < 1 {
		return stegerr.Validation("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// ResolvePath returns flagPath, falling back to the environment
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return os.Getenv(EnvConfigPath)
}
