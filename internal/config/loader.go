package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration file at path. Files ending in .hcl are read as
// HCL, anything else as YAML. Keys missing from the file keep their default.
// If path does not exist or is empty, it returns Default() with no errors.
// If the file is malformed, it returns a nil config with a parse error.
// For validation errors, it returns a usable config with the invalid fields
// reset to their defaults plus errors describing what was reset.
func Load(path string) (*Config, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, []error{fmt.Errorf("failed to read config file: %w", err)}
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return Default(), nil
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		if err := hclsimple.Decode(filepath.Base(path), data, nil, cfg); err != nil {
			return nil, []error{fmt.Errorf("failed to parse config HCL: %w", err)}
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, []error{fmt.Errorf("failed to parse config YAML: %w", err)}
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks every field, resets invalid ones to their default and
// returns one error per reset field.
func (c *Config) Validate() []error {
	def := Default()
	var validationErrors []error

	if c.Port < 1 || c.Port > 65535 {
		validationErrors = append(validationErrors, fmt.Errorf("port: must be between 1 and 65535, got %d", c.Port))
		c.Port = def.Port
	}
	if err := validateTarget(c.ProxyTarget); err != nil {
		validationErrors = append(validationErrors, fmt.Errorf("proxyTarget: %w", err))
		c.ProxyTarget = def.ProxyTarget
	}
	if err := validateTarget(c.SourceTarget); err != nil {
		validationErrors = append(validationErrors, fmt.Errorf("sourceTarget: %w", err))
		c.SourceTarget = def.SourceTarget
	}
	if strings.TrimSpace(c.ViewDir) == "" {
		validationErrors = append(validationErrors, errors.New("viewDir: required field missing"))
		c.ViewDir = def.ViewDir
	}
	if strings.Trim(c.MountPrefix, "/ ") == "" {
		validationErrors = append(validationErrors, errors.New("mountPrefix: required field missing"))
		c.MountPrefix = def.MountPrefix
	}
	if strings.TrimSpace(c.BootstrapScript) == "" {
		validationErrors = append(validationErrors, errors.New("bootstrapScript: required field missing"))
		c.BootstrapScript = def.BootstrapScript
	}
	if d, err := time.ParseDuration(c.Debounce); err != nil || d <= 0 {
		validationErrors = append(validationErrors, fmt.Errorf("debounce: must be a positive duration, got %q", c.Debounce))
		c.Debounce = def.Debounce
	}
	if d, err := time.ParseDuration(c.HealthInterval); err != nil || d < 0 {
		validationErrors = append(validationErrors, fmt.Errorf("healthInterval: must be a duration, got %q", c.HealthInterval))
		c.HealthInterval = def.HealthInterval
	}

	files := make([]string, 0, len(c.Files))
	for i, f := range c.Files {
		if strings.TrimSpace(f) == "" {
			validationErrors = append(validationErrors, fmt.Errorf("files[%d]: empty pattern", i))
			continue
		}
		files = append(files, f)
	}
	c.Files = files

	return validationErrors
}

func validateTarget(target string) error {
	if strings.TrimSpace(target) == "" {
		return errors.New("required field missing")
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https scheme, got %q", target)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", target)
	}
	return nil
}
