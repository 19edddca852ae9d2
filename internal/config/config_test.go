package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"uplift/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "uplift", "data")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7643" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Sampler.URL != "http://127.0.0.1:8474" {
		t.Fatalf("unexpected sampler url: %q", cfg.Sampler.URL)
	}
	if cfg.Model.Draws != 1000 || cfg.Model.Chains != 2 {
		t.Fatalf("unexpected model defaults: %+v", cfg.Model)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadFileOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uplift.toml")
	content := strings.Join([]string{
		`[paths]`,
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		`api_bind = " 127.0.0.1:9000 "`,
		``,
		`[sampler]`,
		`url = "http://engine.internal:8000/"`,
		``,
		`[model]`,
		`chains = 4`,
		``,
		`[logging]`,
		`format = "JSON"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config loaded from %s, got %s (exists=%v)", path, resolved, exists)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9000" {
		t.Fatalf("expected trimmed api bind, got %q", cfg.Paths.APIBind)
	}
	if cfg.Sampler.URL != "http://engine.internal:8000" {
		t.Fatalf("expected trailing slash stripped, got %q", cfg.Sampler.URL)
	}
	if cfg.Sampler.TimeoutSeconds != 1800 {
		t.Fatalf("expected default sampler timeout, got %d", cfg.Sampler.TimeoutSeconds)
	}
	if cfg.Model.Chains != 4 {
		t.Fatalf("expected chains override, got %d", cfg.Model.Chains)
	}
	if cfg.Model.Draws != 1000 {
		t.Fatalf("expected default draws alongside override, got %d", cfg.Model.Draws)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercased format, got %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "empty sampler url",
			content: "[sampler]\nurl = \"\"\n",
			want:    "sampler.url",
		},
		{
			name:    "bad target accept",
			content: "[model]\ntarget_accept = 1.5\n",
			want:    "target_accept",
		},
		{
			name:    "bad log format",
			content: "[logging]\nformat = \"yaml\"\n",
			want:    "logging.format",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tc.name, " ", "_")+".toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, _, _, err := config.Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, sub := range []string{"data", "logs"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil || !info.IsDir() {
			t.Fatalf("expected %s directory, err=%v", sub, err)
		}
	}
}

func TestSampleConfigParsesToDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample config: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	def := config.Default()
	if cfg.Sampler.URL != def.Sampler.URL {
		t.Fatalf("sample sampler url %q differs from default %q", cfg.Sampler.URL, def.Sampler.URL)
	}
	if cfg.Model != def.Model {
		t.Fatalf("sample model %+v differs from default %+v", cfg.Model, def.Model)
	}
}
