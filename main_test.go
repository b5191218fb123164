package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"worktreehub/internal/instance"
	"worktreehub/internal/logging"
)

// writeConfig writes a config.yaml into a fresh config dir and returns it.
func writeConfig(t *testing.T, dataDir string) string {
	t.Helper()
	configDir := t.TempDir()
	body := "data_dir: " + dataDir + "\n" +
		"shell: /bin/sh\n" +
		"agent:\n  name: worktreehub-test-missing-agent\n" +
		"web:\n  bind: 127.0.0.1\n  port: 0\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return configDir
}

func TestLoadConfig_FromDir(t *testing.T) {
	dataDir := t.TempDir()
	cfg, err := loadConfig(writeConfig(t, dataDir))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.ResolvedDataDir() != dataDir {
		t.Errorf("data dir = %q, want %q", cfg.ResolvedDataDir(), dataDir)
	}
	if cfg.Terminal.Cols != 80 || cfg.Terminal.Rows != 24 {
		t.Errorf("terminal = %dx%d, want defaults", cfg.Terminal.Cols, cfg.Terminal.Rows)
	}
}

func TestNewHub_MissingAgent(t *testing.T) {
	dataDir := t.TempDir()
	cfg, err := loadConfig(writeConfig(t, dataDir))
	if err != nil {
		t.Fatal(err)
	}
	lm, err := logging.NewManager(logging.Config{
		FilePath: filepath.Join(dataDir, "test.log"),
		Level:    "debug",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer lm.Close()

	h, auth, err := newHub(&cfg, lm)
	if err != nil {
		t.Fatalf("newHub() error = %v", err)
	}
	defer h.Close()

	if auth != nil {
		t.Error("auth client should be nil without an agent executable")
	}
	if h.Store() == nil {
		t.Error("hub should record projects in a store")
	}
}

func TestRunServer_ServesUntilCancelled(t *testing.T) {
	dataDir := t.TempDir()
	configDir := writeConfig(t, dataDir)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, configDir) }()

	var baseURL string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if url, err := instance.Discover(configDir); err == nil {
			baseURL = url
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if baseURL == "" {
		cancel()
		t.Fatal("server was not discoverable")
	}

	resp, err := http.Get(baseURL + "/api/projects")
	if err != nil {
		t.Fatalf("GET /api/projects: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /api/projects status = %d, want 200", resp.StatusCode)
	}

	if _, err := instance.Lock(configDir); err == nil {
		t.Error("second lock should fail while the server runs")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runServer() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runServer did not return after cancel")
	}

	if _, err := os.Stat(filepath.Join(dataDir, "worktreehub.log")); err != nil {
		t.Errorf("log file not written: %v", err)
	}
	if _, err := instance.Discover(configDir); err == nil {
		t.Error("server still discoverable after shutdown")
	}
}
