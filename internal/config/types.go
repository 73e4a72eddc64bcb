package config

import (
	"time"

	"github.com/onosproject/gui-devproxy/internal/health"
	"github.com/onosproject/gui-devproxy/internal/livereload"
	"github.com/onosproject/gui-devproxy/internal/router"
)

// Config is the dev proxy configuration. The same flat set of keys is read
// from YAML and HCL files.
type Config struct {
	Port         int    `yaml:"port"         hcl:"port,optional"`
	Open         bool   `yaml:"open"         hcl:"open,optional"`
	ProxyTarget  string `yaml:"proxyTarget"  hcl:"proxy_target,optional"`
	SourceTarget string `yaml:"sourceTarget" hcl:"source_target,optional"`
	// SourceDir, when set, serves rewritten requests from this directory
	// instead of forwarding them to SourceTarget.
	SourceDir string `yaml:"sourceDir" hcl:"source_dir,optional"`
	ViewDir   string `yaml:"viewDir"   hcl:"view_dir,optional"`

	MountPrefix      string `yaml:"mountPrefix"      hcl:"mount_prefix,optional"`
	AppsPrefix       string `yaml:"appsPrefix"       hcl:"apps_prefix,optional"`
	AppResources     string `yaml:"appResources"     hcl:"app_resources,optional"`
	CoreSourcePrefix string `yaml:"coreSourcePrefix" hcl:"core_source_prefix,optional"`
	BootstrapScript  string `yaml:"bootstrapScript"  hcl:"bootstrap_script,optional"`

	LiveReload bool     `yaml:"liveReload" hcl:"live_reload,optional"`
	Files      []string `yaml:"files"      hcl:"files,optional"`
	Debounce   string   `yaml:"debounce"   hcl:"debounce,optional"`

	// HealthInterval is the time between origin reachability checks. "0"
	// disables them.
	HealthInterval string `yaml:"healthInterval" hcl:"health_interval,optional"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	rules := router.DefaultRules()
	return &Config{
		Port:             3000,
		Open:             false,
		ProxyTarget:      "http://localhost:8181",
		SourceTarget:     "http://localhost:8182",
		ViewDir:          "./app/view/",
		MountPrefix:      rules.MountPrefix,
		AppsPrefix:       rules.AppsPrefix,
		AppResources:     rules.AppResources,
		CoreSourcePrefix: rules.CoreSourcePrefix,
		BootstrapScript:  rules.BootstrapScript,
		LiveReload:       true,
		Files:            append([]string(nil), livereload.DefaultPatterns...),
		Debounce:         livereload.DefaultDebounce.String(),
		HealthInterval:   health.DefaultInterval.String(),
	}
}

// Rules returns the routing rules described by the configuration.
func (c *Config) Rules() router.Rules {
	return router.Rules{
		MountPrefix:      c.MountPrefix,
		AppsPrefix:       c.AppsPrefix,
		AppResources:     c.AppResources,
		CoreSourcePrefix: c.CoreSourcePrefix,
		BootstrapScript:  c.BootstrapScript,
	}
}

// DebounceDuration returns the parsed debounce, or the default when it does
// not parse.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Debounce)
	if err != nil || d <= 0 {
		return livereload.DefaultDebounce
	}
	return d
}

// HealthCheckInterval returns the parsed health interval. Zero means checks
// are disabled.
func (c *Config) HealthCheckInterval() time.Duration {
	d, err := time.ParseDuration(c.HealthInterval)
	if err != nil || d < 0 {
		return health.DefaultInterval
	}
	return d
}
