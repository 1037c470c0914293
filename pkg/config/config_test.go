package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/madhesh-litfest/mlf/pkg/config"
)

// isolate points HOME and the working directory at empty temp dirs and
// clears store credentials from the environment.
func isolate(t *testing.T) (home, project string) {
	t.Helper()
	home = t.TempDir()
	project = t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"MLF_STORE_URL", "MLF_STORE_ANON_KEY", "SUPABASE_URL", "SUPABASE_ANON_KEY",
		"VITE_SUPABASE_URL", "VITE_SUPABASE_ANON_KEY", "MLF_BACKEND_DRIVER", "MLF_LOG_LEVEL",
		"MLF_SLACK_WEBHOOK_URL",
	} {
		t.Setenv(k, "")
	}

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(project); err != nil {
		t.Fatalf("chdir project: %v", err)
	}
	return home, project
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	if cfg.Search.QuietPeriod != 300*time.Millisecond || cfg.Search.MinLength != 2 {
		t.Fatalf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Backend.Bucket != "speakers_photo" {
		t.Fatalf("unexpected bucket: %s", cfg.Backend.Bucket)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.ResolvedDriver() != config.DriverLocal {
		t.Fatalf("expected local driver without credentials, got %s", cfg.ResolvedDriver())
	}
}

func TestLoadHierarchy(t *testing.T) {
	home, project := isolate(t)

	writeFile(t, filepath.Join(home, ".mlf", "config.yaml"), `
server:
  listen: 0.0.0.0:9000
  secure_cookies: true
search:
  quiet_period: 500ms
logging:
  dev: true
`)
	writeFile(t, filepath.Join(project, ".mlf", "config.yaml"), `
server:
  listen: 127.0.0.1:9100
logging:
  dev: false
`)
	t.Setenv("MLF_LOG_LEVEL", "DEBUG")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load returned error: %v", err)
	}
	if cfg.Server.Listen != "127.0.0.1:9100" {
		t.Fatalf("expected project listen override, got %s", cfg.Server.Listen)
	}
	if !cfg.Server.SecureCookies {
		t.Fatalf("expected user secure_cookies to survive")
	}
	if cfg.Search.QuietPeriod != 500*time.Millisecond {
		t.Fatalf("expected user quiet period, got %s", cfg.Search.QuietPeriod)
	}
	if cfg.Logging.Dev {
		t.Fatalf("expected project logging.dev=false to win")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env log level, got %s", cfg.Logging.Level)
	}
}

func TestStoreCredentialsFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("MLF_STORE_URL", "https://store.example.org")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.URL != "https://store.example.org" {
		t.Fatalf("MLF_STORE_URL should take precedence, got %s", cfg.Backend.URL)
	}
	if cfg.Backend.AnonKey != "anon" {
		t.Fatalf("expected SUPABASE_ANON_KEY fallback, got %q", cfg.Backend.AnonKey)
	}
	if cfg.ResolvedDriver() != config.DriverHosted {
		t.Fatalf("expected hosted driver, got %s", cfg.ResolvedDriver())
	}
}

func TestDotEnvFileIsFallback(t *testing.T) {
	_, project := isolate(t)
	writeFile(t, filepath.Join(project, ".env"), "VITE_SUPABASE_URL=https://dotenv.supabase.co\nVITE_SUPABASE_ANON_KEY=\"from-file\"\n")
	t.Setenv("MLF_STORE_ANON_KEY", "from-env")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.URL != "https://dotenv.supabase.co" {
		t.Fatalf("expected URL from .env, got %s", cfg.Backend.URL)
	}
	if cfg.Backend.AnonKey != "from-env" {
		t.Fatalf("process env should beat .env, got %s", cfg.Backend.AnonKey)
	}
}

func TestMissingCredentialsOnlyWarn(t *testing.T) {
	isolate(t)
	t.Setenv("MLF_BACKEND_DRIVER", "hosted")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("missing credentials must not fail Load: %v", err)
	}
	found := false
	for _, w := range cfg.ValidationWarnings() {
		if strings.Contains(w, "MLF_STORE_URL") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected credentials warning, got %v", cfg.ValidationWarnings())
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*config.Config){
		"driver":     func(c *config.Config) { c.Backend.Driver = "firebase" },
		"url":        func(c *config.Config) { c.Backend.URL = "ftp://x" },
		"listen":     func(c *config.Config) { c.Server.Listen = " " },
		"min length": func(c *config.Config) { c.Search.MinLength = 0 },
		"log level":  func(c *config.Config) { c.Logging.Level = "chatty" },
		"session":    func(c *config.Config) { c.Server.SessionTTL = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation to fail")
			}
		})
	}
}

func TestEnvOverrideBooleans(t *testing.T) {
	cfg := config.DefaultConfig()

	t.Setenv("MLF_DEV", "1")
	t.Setenv("MLF_TRACING", "true")
	config.ApplyEnvOverridesForTest(cfg)
	if !cfg.Logging.Dev || !cfg.Tracing.Enabled {
		t.Fatalf("expected dev and tracing enabled: %+v %+v", cfg.Logging, cfg.Tracing)
	}

	t.Setenv("MLF_DEV", "off")
	config.ApplyEnvOverridesForTest(cfg)
	if cfg.Logging.Dev {
		t.Fatalf("expected MLF_DEV=off to disable dev mode")
	}
}

func TestPaths(t *testing.T) {
	home, _ := isolate(t)
	cfg := config.DefaultConfig()

	if got, want := cfg.DatabasePath(), filepath.Join(home, ".mlf", "mlf.db"); got != want {
		t.Fatalf("DatabasePath() = %s, want %s", got, want)
	}
	if got, want := cfg.MediaDir(), filepath.Join(home, ".mlf", "media"); got != want {
		t.Fatalf("MediaDir() = %s, want %s", got, want)
	}
	cfg.Storage.DatabasePath = "/srv/mlf/site.db"
	if cfg.DatabasePath() != "/srv/mlf/site.db" {
		t.Fatalf("explicit database path ignored")
	}
}
