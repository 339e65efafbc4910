package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if cfg.Bridge != BridgeAuto {
		t.Errorf("Bridge = %v, want %v", cfg.Bridge, BridgeAuto)
	}

	if len(cfg.Strategies) != 3 {
		t.Errorf("Strategies = %v, want all three", cfg.Strategies)
	}

	if cfg.DefaultDurationMS != 100 {
		t.Errorf("DefaultDurationMS = %d, want 100", cfg.DefaultDurationMS)
	}

	if cfg.TranscoderTimeout != 5*time.Minute {
		t.Errorf("TranscoderTimeout = %s, want 5m", cfg.TranscoderTimeout)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown bridge",
			mutate:  func(c *Config) { c.Bridge = "magick" },
			wantErr: true,
		},
		{
			name:    "no strategies",
			mutate:  func(c *Config) { c.Strategies = nil },
			wantErr: true,
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *Config) { c.Strategies = []string{"external", "gpu"} },
			wantErr: true,
		},
		{
			name:    "duplicate strategy",
			mutate:  func(c *Config) { c.Strategies = []string{"native", "Native"} },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.TranscoderTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "zero default duration",
			mutate:  func(c *Config) { c.DefaultDurationMS = 0 },
			wantErr: true,
		},
		{
			name:    "zero pixel limit",
			mutate:  func(c *Config) { c.MaxPixels = 0 },
			wantErr: true,
		},
		{
			name:    "native only",
			mutate:  func(c *Config) { c.Strategies = []string{"native"}; c.Bridge = BridgeNone },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateFillsPaths(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.LogDir == "" {
		t.Error("LogDir should be filled by Validate")
	}
	if cfg.DBPath == "" {
		t.Error("DBPath should be filled by Validate")
	}
}

func TestConfig_StrategyEnabled(t *testing.T) {
	cfg := &Config{Strategies: []string{"External", " native "}}

	tests := []struct {
		name string
		want bool
	}{
		{StrategyExternal, true},
		{StrategyLibrary, false},
		{StrategyNative, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.StrategyEnabled(tt.name); got != tt.want {
				t.Errorf("StrategyEnabled(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestIsSourceFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/a/b.webp", true},
		{"/a/b.WEBP", true},
		{"/a/b.WebP", true},
		{"/a/b.txt", false},
		{"/a/b.webp.gif", false},
		{"/a/webp", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsSourceFile(tt.path); got != tt.want {
				t.Errorf("IsSourceFile(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	src := filepath.Join("photos", "cats", "Funny.Cat.WEBP")
	want := filepath.Join("photos", "cats", "result", "Funny.Cat.gif")
	if got := OutputPath(src); got != want {
		t.Errorf("OutputPath() = %q, want %q", got, want)
	}
}

func TestFileConfig_ApplyToConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webp2gif.yaml")
	content := `
tools:
  ffmpeg: /opt/ffmpeg
  timeout: 90s
conversion:
  bridge: imaging
  strategies: [library, native]
  default_duration_ms: 80
  max_pixels: 1000000
output:
  debug: true
paths:
  db: /tmp/h.sqlite
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	fc, found, err := FindAndLoadConfig(path)
	if err != nil {
		t.Fatalf("FindAndLoadConfig() error = %v", err)
	}
	if found != path {
		t.Errorf("found = %q, want %q", found, path)
	}

	cfg := DefaultConfig()
	if err := fc.ApplyToConfig(cfg); err != nil {
		t.Fatalf("ApplyToConfig() error = %v", err)
	}

	if cfg.FFmpegPath != "/opt/ffmpeg" {
		t.Errorf("FFmpegPath = %q", cfg.FFmpegPath)
	}
	if cfg.TranscoderTimeout != 90*time.Second {
		t.Errorf("TranscoderTimeout = %s", cfg.TranscoderTimeout)
	}
	if cfg.Bridge != BridgeImaging {
		t.Errorf("Bridge = %s", cfg.Bridge)
	}
	if cfg.StrategyEnabled(StrategyExternal) {
		t.Error("external should be disabled by file config")
	}
	if cfg.DefaultDurationMS != 80 {
		t.Errorf("DefaultDurationMS = %d", cfg.DefaultDurationMS)
	}
	if cfg.MaxPixels != 1_000_000 {
		t.Errorf("MaxPixels = %d", cfg.MaxPixels)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
	if cfg.DBPath != "/tmp/h.sqlite" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
}

func TestFileConfig_BadTimeout(t *testing.T) {
	fc := &FileConfig{Tools: &ToolsConfig{Timeout: "soon"}}
	if err := fc.ApplyToConfig(DefaultConfig()); err == nil {
		t.Error("expected error for invalid timeout")
	}
}

func TestFindAndLoadConfig_Missing(t *testing.T) {
	if _, _, err := FindAndLoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for explicit missing config")
	}
}

func TestGenerateExampleConfig_Parses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.yaml")
	if err := os.WriteFile(path, []byte(GenerateExampleConfig()), 0o644); err != nil {
		t.Fatal(err)
	}
	fc, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	cfg := DefaultConfig()
	if err := fc.ApplyToConfig(cfg); err != nil {
		t.Fatalf("ApplyToConfig() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("example config does not validate: %v", err)
	}
}
