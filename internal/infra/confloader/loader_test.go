package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Server struct {
		HTTP struct {
			Addr   string `koanf:"addr"`
			WSPath string `koanf:"ws_path"`
		} `koanf:"http"`
	} `koanf:"server"`
	Session struct {
		Grace         time.Duration `koanf:"grace"`
		SweepInterval time.Duration `koanf:"sweep_interval"`
	} `koanf:"session"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

func defaults() testConfig {
	var c testConfig
	c.Server.HTTP.Addr = "127.0.0.1:8080"
	c.Server.HTTP.WSPath = "/ws"
	c.Session.Grace = 30 * time.Second
	c.Session.SweepInterval = 10 * time.Second
	c.Log.Level = "info"
	return c
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wsmesh.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader(WithConfigFile("/etc/wsmesh.yaml"))
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}
	if l.FilePath() != "/etc/wsmesh.yaml" {
		t.Errorf("FilePath() = %q", l.FilePath())
	}
	if l.IsLoaded() {
		t.Error("IsLoaded() = true before Load()")
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"WSMESH_LOG__LEVEL", "log.level"},
		{"WSMESH_SESSION__SWEEP_INTERVAL", "session.sweep_interval"},
		{"WSMESH_SERVER__HTTP__WS_PATH", "server.http.ws_path"},
		{"WSMESH_TOP", "top"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnvKey("WSMESH_", tt.name); got != tt.want {
				t.Errorf("EnvKey(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, `
server:
  http:
    addr: "0.0.0.0:9000"
session:
  grace: 45s
log:
  level: warn
`)
	t.Setenv("WSMESH_SESSION__GRACE", "1m")
	t.Setenv("WSMESH_LOG__LEVEL", "error")

	cfg := defaults()
	l := NewLoader(
		WithConfigFile(path),
		WithOverrides(map[string]any{"log.level": "debug"}),
	)
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTP.Addr != "0.0.0.0:9000" {
		t.Errorf("addr = %q, want file value", cfg.Server.HTTP.Addr)
	}
	if cfg.Server.HTTP.WSPath != "/ws" {
		t.Errorf("ws_path = %q, want default kept", cfg.Server.HTTP.WSPath)
	}
	if cfg.Session.Grace != time.Minute {
		t.Errorf("grace = %v, want env value", cfg.Session.Grace)
	}
	if cfg.Session.SweepInterval != 10*time.Second {
		t.Errorf("sweep_interval = %v, want default kept", cfg.Session.SweepInterval)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want override", cfg.Log.Level)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() = false after Load()")
	}
}

func TestLoad_FileErrors(t *testing.T) {
	cfg := defaults()
	if err := NewLoader(WithConfigFile("/nonexistent/wsmesh.yaml")).Load(&cfg); err == nil {
		t.Error("Load() with missing file error = nil")
	}
	bad := writeFile(t, "server: [unclosed")
	if err := NewLoader(WithConfigFile(bad)).Load(&cfg); err == nil {
		t.Error("Load() with invalid YAML error = nil")
	}
}

func TestReload(t *testing.T) {
	path := writeFile(t, "log:\n  level: warn\n")
	l := NewLoader(WithConfigFile(path))
	cfg := defaults()
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("server:\n  http:\n    addr: \":1\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	next := defaults()
	if err := l.Reload(&next); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if next.Log.Level != "info" {
		t.Errorf("log.level = %q after reload, want stale value dropped", next.Log.Level)
	}
	if next.Server.HTTP.Addr != ":1" {
		t.Errorf("addr = %q after reload", next.Server.HTTP.Addr)
	}
}

func TestLoadMap_Nested(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{"server.http.addr": ":7", "log.level": "debug"}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}
	if got := l.GetString("server.http.addr"); got != ":7" {
		t.Errorf("GetString() = %q", got)
	}
	if _, err := mapProvider(nil).ReadBytes(); err != ErrReadBytesNotSupported {
		t.Errorf("ReadBytes() error = %v", err)
	}
}
