package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Server.URL != "http://127.0.0.1:8080" {
			t.Errorf("expected server url http://127.0.0.1:8080, got %s", config.Server.URL)
		}

		if config.Server.BaseURL() != "http://127.0.0.1:8080/api/v1" {
			t.Errorf("unexpected base url %s", config.Server.BaseURL())
		}

		if config.Auth.RefreshInterval != 4*time.Minute {
			t.Errorf("expected refresh interval 4m, got %s", config.Auth.RefreshInterval)
		}

		if config.UI.BannerTimeout != 5*time.Second {
			t.Errorf("expected banner timeout 5s, got %s", config.UI.BannerTimeout)
		}

		if config.Web.Addr() != "127.0.0.1:3000" {
			t.Errorf("expected web addr 127.0.0.1:3000, got %s", config.Web.Addr())
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should be valid: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[server]
url = "https://media.example.com"

[auth]
refresh_interval = "90s"

[player]
command = "vlc"
args = ["--fullscreen"]
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.URL != "https://media.example.com" {
			t.Errorf("expected server url override, got %s", config.Server.URL)
		}
		if config.Server.APIPrefix != "/api/v1" {
			t.Errorf("expected api prefix default to be kept, got %s", config.Server.APIPrefix)
		}
		if config.Auth.RefreshInterval != 90*time.Second {
			t.Errorf("expected refresh interval 90s, got %s", config.Auth.RefreshInterval)
		}
		if config.Player.Command != "vlc" || len(config.Player.Args) != 1 {
			t.Errorf("unexpected player config %+v", config.Player)
		}
	})

	t.Run("LoadConfig rejects invalid values", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[query]\nretry = -1\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
