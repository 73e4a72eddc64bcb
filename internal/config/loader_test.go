package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onosproject/gui-devproxy/internal/health"
	"github.com/onosproject/gui-devproxy/internal/livereload"
	"github.com/onosproject/gui-devproxy/internal/router"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Port)
	}
	if cfg.Open {
		t.Error("expected browser auto-open disabled")
	}
	if cfg.ProxyTarget != "http://localhost:8181" {
		t.Errorf("unexpected proxy target %q", cfg.ProxyTarget)
	}
	if cfg.SourceTarget != "http://localhost:8182" {
		t.Errorf("unexpected source target %q", cfg.SourceTarget)
	}
	if cfg.ViewDir != "./app/view/" {
		t.Errorf("unexpected view dir %q", cfg.ViewDir)
	}
	if cfg.Rules() != router.DefaultRules() {
		t.Errorf("unexpected rules %+v", cfg.Rules())
	}
	if len(cfg.Files) != len(livereload.DefaultPatterns) {
		t.Errorf("expected %d watch patterns, got %d", len(livereload.DefaultPatterns), len(cfg.Files))
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("defaults do not validate: %v", errs)
	}
}

func TestDefault_FilesAreCopied(t *testing.T) {
	cfg := Default()
	cfg.Files[0] = "changed"
	if livereload.DefaultPatterns[0] == "changed" {
		t.Error("Default() shares the watch pattern slice")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeTempConfig(t, "devproxy.yaml", `
port: 3001
open: true
proxyTarget: "http://onos.local:8181"
sourceDir: "../../../../.."
mountPrefix: "/onos/ui/"
files:
  - "./app/**/*.js"
debounce: "500ms"
`)
	cfg, errs := Load(path)

	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.Port != 3001 || !cfg.Open {
		t.Errorf("unexpected port/open: %d %v", cfg.Port, cfg.Open)
	}
	if cfg.ProxyTarget != "http://onos.local:8181" {
		t.Errorf("unexpected proxy target %q", cfg.ProxyTarget)
	}
	if cfg.SourceTarget != "http://localhost:8182" {
		t.Errorf("expected default source target, got %q", cfg.SourceTarget)
	}
	if cfg.SourceDir != "../../../../.." {
		t.Errorf("unexpected source dir %q", cfg.SourceDir)
	}
	if len(cfg.Files) != 1 || cfg.Files[0] != "./app/**/*.js" {
		t.Errorf("unexpected files %v", cfg.Files)
	}
	if cfg.DebounceDuration() != 500*time.Millisecond {
		t.Errorf("unexpected debounce %v", cfg.DebounceDuration())
	}
	if !cfg.LiveReload {
		t.Error("expected live reload to keep its default")
	}
}

func TestLoad_ValidHCL(t *testing.T) {
	path := writeTempConfig(t, "devproxy.hcl", `
port          = 3002
proxy_target  = "https://onos.example:8443"
source_target = "http://127.0.0.1:9000"
live_reload   = false
health_interval = "0s"
files         = ["./app/**/*.css", "./app/**/*.html"]
`)
	cfg, errs := Load(path)

	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.Port != 3002 {
		t.Errorf("expected port 3002, got %d", cfg.Port)
	}
	if cfg.ProxyTarget != "https://onos.example:8443" || cfg.SourceTarget != "http://127.0.0.1:9000" {
		t.Errorf("unexpected targets %q %q", cfg.ProxyTarget, cfg.SourceTarget)
	}
	if cfg.LiveReload {
		t.Error("expected live reload disabled")
	}
	if len(cfg.Files) != 2 {
		t.Errorf("unexpected files %v", cfg.Files)
	}
	if cfg.HealthCheckInterval() != 0 {
		t.Errorf("expected health checks disabled, got %v", cfg.HealthCheckInterval())
	}
	if cfg.BootstrapScript != "/onos/ui/onos.js" {
		t.Errorf("expected default bootstrap, got %q", cfg.BootstrapScript)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, errs := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
	if cfg == nil || cfg.Port != 3000 {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	for _, name := range []string{"empty.yaml", "empty.hcl"} {
		cfg, errs := Load(writeTempConfig(t, name, "  \n"))
		if len(errs) != 0 {
			t.Errorf("%s: expected no errors, got %v", name, errs)
		}
		if cfg == nil || cfg.ProxyTarget != "http://localhost:8181" {
			t.Errorf("%s: expected defaults, got %+v", name, cfg)
		}
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	cfg, errs := Load(writeTempConfig(t, "bad.yaml", "port: [3000\n"))

	if cfg != nil {
		t.Errorf("expected nil config, got %+v", cfg)
	}
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "YAML") {
		t.Errorf("expected one YAML parse error, got %v", errs)
	}
}

func TestLoad_MalformedHCL(t *testing.T) {
	cfg, errs := Load(writeTempConfig(t, "bad.hcl", "port = \n"))

	if cfg != nil {
		t.Errorf("expected nil config, got %+v", cfg)
	}
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "HCL") {
		t.Errorf("expected one HCL parse error, got %v", errs)
	}
}

func TestLoad_UnknownHCLAttribute(t *testing.T) {
	cfg, errs := Load(writeTempConfig(t, "typo.hcl", "prot = 3000\n"))

	if cfg != nil || len(errs) == 0 {
		t.Errorf("expected unknown attribute to be rejected, got %+v %v", cfg, errs)
	}
}

func TestLoad_ValidationResetsInvalidFields(t *testing.T) {
	path := writeTempConfig(t, "devproxy.yaml", `
port: 70000
proxyTarget: "localhost:8181"
sourceTarget: "http://"
viewDir: "  "
mountPrefix: "/"
bootstrapScript: ""
debounce: "soon"
healthInterval: "-5s"
files:
  - "./app/**/*.js"
  - ""
`)
	cfg, errs := Load(path)

	if cfg == nil {
		t.Fatal("expected non-nil config for validation errors")
	}
	if len(errs) != 9 {
		t.Errorf("expected 9 validation errors, got %d: %v", len(errs), errs)
	}

	def := Default()
	if cfg.Port != def.Port || cfg.ProxyTarget != def.ProxyTarget || cfg.SourceTarget != def.SourceTarget {
		t.Errorf("invalid fields not reset: %+v", cfg)
	}
	if cfg.ViewDir != def.ViewDir || cfg.MountPrefix != def.MountPrefix || cfg.BootstrapScript != def.BootstrapScript {
		t.Errorf("invalid fields not reset: %+v", cfg)
	}
	if cfg.Debounce != def.Debounce {
		t.Errorf("debounce not reset: %q", cfg.Debounce)
	}
	if cfg.HealthInterval != def.HealthInterval {
		t.Errorf("health interval not reset: %q", cfg.HealthInterval)
	}
	if len(cfg.Files) != 1 {
		t.Errorf("expected empty pattern dropped, got %v", cfg.Files)
	}
}

func TestLoad_ErrorMessagesNameTheField(t *testing.T) {
	_, errs := Load(writeTempConfig(t, "devproxy.yaml", "proxyTarget: \"ftp://onos\"\n"))

	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if !strings.HasPrefix(errs[0].Error(), "proxyTarget:") {
		t.Errorf("unexpected error %q", errs[0])
	}
}

func TestDebounceDurationFallback(t *testing.T) {
	cfg := &Config{Debounce: "-1s"}
	if cfg.DebounceDuration() != livereload.DefaultDebounce {
		t.Errorf("expected default debounce, got %v", cfg.DebounceDuration())
	}
}

func TestHealthCheckIntervalFallback(t *testing.T) {
	cfg := &Config{HealthInterval: "later"}
	if cfg.HealthCheckInterval() != health.DefaultInterval {
		t.Errorf("expected default interval, got %v", cfg.HealthCheckInterval())
	}
	if Default().HealthCheckInterval() != health.DefaultInterval {
		t.Errorf("unexpected default interval %v", Default().HealthCheckInterval())
	}
}
