package main

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/urfave/cli/v2"
)

func runApp(t *testing.T, args []string, action cli.ActionFunc) {
	t.Helper()
	app := newApp()
	app.Action = action
	if err := app.Run(append([]string{"regmesh-server"}, args...)); err != nil {
		t.Fatalf("Run(%v) error: %v", args, err)
	}
}

func TestOverrides(t *testing.T) {
	var got map[string]any
	runApp(t, []string{"--node-id", "n1", "--seeds", "10.0.0.2:7946", "--seeds", "10.0.0.3:7946"},
		func(c *cli.Context) error {
			got = overrides(c)
			return nil
		})

	if got["cluster.node_id"] != "n1" {
		t.Errorf("node id = %v", got["cluster.node_id"])
	}
	seeds, _ := got["cluster.seeds"].([]string)
	if !slices.Equal(seeds, []string{"10.0.0.2:7946", "10.0.0.3:7946"}) {
		t.Errorf("seeds = %v", got["cluster.seeds"])
	}
	if _, ok := got["log.level"]; ok {
		t.Error("unset flag produced an override")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regmesh.yaml")
	yaml := "log:\n  level: debug\nserver:\n  http:\n    addr: 127.0.0.1:9000\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	runApp(t, []string{"--config", path, "--http-addr", "127.0.0.1:9100"}, func(c *cli.Context) error {
		cfg, loader, err := loadConfig(c)
		if err != nil {
			t.Fatalf("loadConfig() error: %v", err)
		}
		if cfg.Log.Level != "debug" {
			t.Errorf("log level = %q, want debug from file", cfg.Log.Level)
		}
		if cfg.Server.HTTP.Addr != "127.0.0.1:9100" {
			t.Errorf("http addr = %q, want flag value", cfg.Server.HTTP.Addr)
		}
		if loader.FilePath() != path {
			t.Errorf("FilePath() = %q", loader.FilePath())
		}
		return nil
	})
}

func TestLoadConfig_Invalid(t *testing.T) {
	runApp(t, []string{"--http-addr", "127.0.0.1:7848"}, func(c *cli.Context) error {
		if _, _, err := loadConfig(c); err == nil {
			t.Error("loadConfig() accepted http and cluster on the same address")
		}
		return nil
	})
}
