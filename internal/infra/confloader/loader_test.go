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
			Addr    string `koanf:"addr"`
			Enabled bool   `koanf:"enabled"`
		} `koanf:"http"`
	} `koanf:"server"`
	Distro struct {
		VerifyInterval time.Duration `koanf:"verify_interval"`
	} `koanf:"distro"`
	Cluster struct {
		Seeds []string `koanf:"seeds"`
	} `koanf:"cluster"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}

	l = NewLoader(
		WithEnvPrefix("TEST_"),
		WithConfigFile("/path/to/config.yaml"),
		WithOverrides(map[string]any{"a": 1, "b": nil}),
	)
	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.FilePath() != "/path/to/config.yaml" {
		t.Errorf("FilePath() = %q", l.FilePath())
	}
	if _, ok := l.overrides["b"]; ok || len(l.overrides) != 1 {
		t.Errorf("overrides = %v, nil values should be skipped", l.overrides)
	}
}

func TestLoader_Load(t *testing.T) {
	path := writeConfig(t, `
server:
  http:
    addr: "0.0.0.0:8848"
    enabled: true
distro:
  verify_interval: 10s
cluster:
  seeds: ["10.0.0.1:7946", "10.0.0.2:7946"]
`)
	l := NewLoader(WithConfigFile(path))
	if l.IsLoaded() {
		t.Error("IsLoaded() should be false before Load()")
	}

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTP.Addr != "0.0.0.0:8848" || !cfg.Server.HTTP.Enabled {
		t.Errorf("HTTP = %+v", cfg.Server.HTTP)
	}
	if cfg.Distro.VerifyInterval != 10*time.Second {
		t.Errorf("VerifyInterval = %v, want 10s", cfg.Distro.VerifyInterval)
	}
	if len(cfg.Cluster.Seeds) != 2 {
		t.Errorf("Seeds = %v", cfg.Cluster.Seeds)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() should be true after Load()")
	}
}

func TestLoader_LoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  http:\n    enabled: true\n")
	var cfg testConfig
	cfg.Server.HTTP.Addr = "default:1"
	cfg.Distro.VerifyInterval = 5 * time.Second

	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.HTTP.Addr != "default:1" || cfg.Distro.VerifyInterval != 5*time.Second {
		t.Errorf("defaults overwritten: %+v", cfg)
	}
}

func TestLoader_LoadFile_NotFound(t *testing.T) {
	l := NewLoader(WithConfigFile("/nonexistent/config.yaml"))
	var cfg testConfig
	if err := l.Load(&cfg); err == nil {
		t.Error("Load() expected error for nonexistent file")
	}
	if l.IsLoaded() {
		t.Error("IsLoaded() should stay false after a failed Load()")
	}
}

func TestLoader_Env(t *testing.T) {
	t.Setenv("REGMESH_SERVER__HTTP__ADDR", "127.0.0.1:9000")
	t.Setenv("REGMESH_DISTRO__VERIFY_INTERVAL", "2s")
	t.Setenv("REGMESH_CLUSTER__SEEDS", "a:1,b:2")

	var cfg testConfig
	if err := NewLoader().Load(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.HTTP.Addr != "127.0.0.1:9000" {
		t.Errorf("Addr = %q", cfg.Server.HTTP.Addr)
	}
	if cfg.Distro.VerifyInterval != 2*time.Second {
		t.Errorf("VerifyInterval = %v", cfg.Distro.VerifyInterval)
	}
	if len(cfg.Cluster.Seeds) != 2 || cfg.Cluster.Seeds[1] != "b:2" {
		t.Errorf("Seeds = %v", cfg.Cluster.Seeds)
	}
}

func TestLoader_EnvCustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER__HTTP__ADDR", "x:1")
	l := NewLoader(WithEnvPrefix("MYAPP_"))
	if err := l.Reload(); err != nil {
		t.Fatal(err)
	}
	if got := l.GetString("server.http.addr"); got != "x:1" {
		t.Errorf("server.http.addr = %q", got)
	}
}

func TestLoader_Priority(t *testing.T) {
	path := writeConfig(t, `
server:
  http:
    addr: "from-file:1"
distro:
  verify_interval: 10s
`)
	t.Setenv("REGMESH_SERVER__HTTP__ADDR", "from-env:2")
	t.Setenv("REGMESH_DISTRO__VERIFY_INTERVAL", "20s")

	l := NewLoader(WithConfigFile(path), WithOverrides(map[string]any{
		"distro.verify_interval": "30s",
	}))
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.HTTP.Addr != "from-env:2" {
		t.Errorf("Addr = %q, env should override file", cfg.Server.HTTP.Addr)
	}
	if cfg.Distro.VerifyInterval != 30*time.Second {
		t.Errorf("VerifyInterval = %v, overrides should win", cfg.Distro.VerifyInterval)
	}
}

func TestLoader_OverridesOnly(t *testing.T) {
	l := NewLoader(WithOverrides(map[string]any{
		"server.http.addr":    "localhost:3000",
		"server.http.enabled": true,
	}))
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTP.Addr != "localhost:3000" || !cfg.Server.HTTP.Enabled {
		t.Errorf("HTTP = %+v", cfg.Server.HTTP)
	}
	if got := l.GetString("missing"); got != "" {
		t.Errorf("GetString(missing) = %q", got)
	}
}

func TestLoader_Reload(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	l := NewLoader(WithConfigFile(path))
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := l.Reload(); err != nil {
		t.Fatal(err)
	}
	if got := l.GetString("log.level"); got != "debug" {
		t.Errorf("log.level after reload = %q", got)
	}

	if err := os.WriteFile(path, []byte("log: [unterminated\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := l.Reload(); err == nil {
		t.Fatal("Reload() accepted invalid yaml")
	}
	if got := l.GetString("log.level"); got != "debug" {
		t.Errorf("log.level after failed reload = %q, want previous value", got)
	}
}

func TestMapProvider(t *testing.T) {
	p := mapProvider{"a.b": 1}
	if _, err := p.ReadBytes(); err != ErrReadBytesNotSupported {
		t.Errorf("ReadBytes() error = %v", err)
	}
	m, err := p.Read()
	if err != nil {
		t.Fatal(err)
	}
	inner, ok := m["a"].(map[string]any)
	if !ok || inner["b"] != 1 {
		t.Errorf("Read() = %v, want nested map", m)
	}
}
