package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ppiankov/feedharvest/internal/logger"
	"github.com/ppiankov/feedharvest/internal/model"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetEnvPrefix("FEEDHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := registerDefaults(v, model.DefaultConfig()); err != nil {
		t.Fatalf("registerDefaults failed: %v", err)
	}
	return v
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newTestViper(t))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	def := model.DefaultConfig()
	if cfg.Comments.Cap != def.Comments.Cap || cfg.Comments.MaxAttempts != def.Comments.MaxAttempts {
		t.Errorf("unexpected comments config %+v", cfg.Comments)
	}
	if cfg.Navigation.Timeout != 60*time.Second {
		t.Errorf("expected 60s navigation timeout, got %v", cfg.Navigation.Timeout)
	}
	if cfg.Comments.ScrollDelta != 1200 || cfg.Comments.InitialSettle != 1500*time.Millisecond {
		t.Errorf("unexpected scroll settings %+v", cfg.Comments)
	}
	if len(cfg.Comments.Selectors) != 2 {
		t.Errorf("expected 2 comment selectors, got %v", cfg.Comments.Selectors)
	}
	if cfg.RateLimiting.RequestsPerSecond != 0.5 {
		t.Errorf("unexpected rate %v", cfg.RateLimiting.RequestsPerSecond)
	}
}

func TestLoadConfig_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "comments:\n  cap: 4\nnavigation:\n  timeout: 30s\n  fail_fast: true\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	v := newTestViper(t)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Comments.Cap != 4 || cfg.Navigation.Timeout != 30*time.Second || !cfg.Navigation.FailFast {
		t.Errorf("config file not applied: comments=%+v navigation=%+v", cfg.Comments, cfg.Navigation)
	}
	if cfg.Comments.MaxAttempts != 20 {
		t.Errorf("keys absent from the file should keep defaults, got %d", cfg.Comments.MaxAttempts)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	_ = os.WriteFile(path, []byte("comments:\n  cap: 4\n"), 0644)
	t.Setenv("FEEDHARVEST_COMMENTS_CAP", "7")
	t.Setenv("FEEDHARVEST_BROWSER_HEADLESS", "true")

	v := newTestViper(t)
	v.SetConfigFile(path)
	_ = v.ReadInConfig()

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Comments.Cap != 7 {
		t.Errorf("expected env cap 7, got %d", cfg.Comments.Cap)
	}
	if !cfg.Browser.Headless {
		t.Error("expected env to enable headless")
	}
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("FEEDHARVEST_COMMENTS_CAP", "7")

	fs := pflag.NewFlagSet("harvest", pflag.ContinueOnError)
	addRunFlags(fs)
	if err := fs.Parse([]string{"--comments", "3", "--limit", "5", "--timeout", "15s"}); err != nil {
		t.Fatal(err)
	}

	v := newTestViper(t)
	if err := bindFlags(v, fs, harvestFlagKeys); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Comments.Cap != 3 || cfg.Target.ItemLimit != 5 || cfg.Navigation.Timeout != 15*time.Second {
		t.Errorf("flags not applied: cap=%d limit=%d timeout=%v", cfg.Comments.Cap, cfg.Target.ItemLimit, cfg.Navigation.Timeout)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("FEEDHARVEST_COMMENTS_CAP", "0")

	_, err := loadConfig(newTestViper(t))
	if !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadConfig_Verbose(t *testing.T) {
	v := newTestViper(t)
	v.Set("verbose", true)

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Development {
		t.Errorf("expected debug development logging, got %+v", cfg.Logging)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := writeDefaultConfig(path, false); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}
	if err := writeDefaultConfig(path, false); err == nil {
		t.Error("expected error when config already exists")
	}
	if err := writeDefaultConfig(path, true); err != nil {
		t.Errorf("expected --force to overwrite: %v", err)
	}

	// The written file must load back to the defaults
	v := newTestViper(t)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("written config is not readable: %v", err)
	}
	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Comments.PanelTimeout != 3*time.Second || cfg.Output.Path != "itts_tiktok_latest.csv" {
		t.Errorf("unexpected round trip %+v", cfg)
	}
}

func TestReadURLsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.txt")
	content := `# profiles to harvest
https://www.example.com/@shop

https://www.example.com/@other
  https://www.example.com/@shop
# trailing comment
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	urls, err := ReadURLsFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 2 || urls[0] != "https://www.example.com/@shop" || urls[1] != "https://www.example.com/@other" {
		t.Errorf("unexpected urls %v", urls)
	}

	if _, err := ReadURLsFromFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestProfileSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.example.com/@shop", "www.example.com-shop"},
		{"https://www.example.com/@shop/", "www.example.com-shop"},
		{"https://www.example.com/", "www.example.com"},
		{"not a url", "not-a-url"},
		{"", "profile"},
	}
	for _, tt := range tests {
		if got := profileSlug(tt.in); got != tt.want {
			t.Errorf("profileSlug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilename_Length(t *testing.T) {
	if got := sanitizeFilename(strings.Repeat("a", 150)); len(got) != 100 {
		t.Errorf("expected 100 characters, got %d", len(got))
	}
	if got := sanitizeFilename(`a/b\c:d*e?f"g<h>i|j`); strings.ContainsAny(got, `/\:*?"<>|`) {
		t.Errorf("unsafe characters left in %q", got)
	}
}

func TestFormatExtension(t *testing.T) {
	for format, want := range map[string]string{"": ".csv", "csv": ".csv", "XLSX": ".xlsx", "db": ".db", "sqlite": ".db"} {
		got, err := formatExtension(format)
		if err != nil || got != want {
			t.Errorf("formatExtension(%q) = %q, %v; want %q", format, got, err, want)
		}
	}
	if _, err := formatExtension("json"); err == nil {
		t.Error("expected error for unknown format")
	}
}

// stubSurface serves a one-item listing with fixed metrics and comments
type stubSurface struct{}

func (stubSurface) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return nil
}
func (stubSurface) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (stubSurface) HTML(ctx context.Context) (string, string, error) {
	return `<html><body><div data-e2e="user-post-item"><a href="/@shop/video/1">v</a></div></body></html>`, "https://www.example.com/@shop", nil
}
func (stubSurface) QueryFirstText(ctx context.Context, selector string, timeout time.Duration) (model.Lookup, error) {
	return model.Found("42"), nil
}
func (stubSurface) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return errors.New("not found")
}
func (stubSurface) QueryText(ctx context.Context, selector string) ([]string, error) {
	return []string{"first comment", "second comment"}, nil
}
func (stubSurface) ScrollBy(ctx context.Context, dy float64) error { return nil }
func (stubSurface) Wait(ctx context.Context, d time.Duration) error { return nil }

func TestHarvestProfile_WritesOutput(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 0
	cfg.Comments.MaxAttempts = 2

	out := filepath.Join(t.TempDir(), "out.csv")
	res, err := harvestProfile(context.Background(), cfg, stubSurface{}, logger.NewNop(), "https://www.example.com/@shop", out)
	if err != nil {
		t.Fatalf("harvestProfile failed: %v", err)
	}
	if res.Succeeded != 1 {
		t.Errorf("expected 1 harvested item, got %d", res.Succeeded)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "video_url,likes,shares,comments\n" +
		"https://www.example.com/@shop/video/1,42,42,first comment | second comment\n"
	if string(data) != want {
		t.Errorf("unexpected output:\n%s\nwant:\n%s", data, want)
	}
}
