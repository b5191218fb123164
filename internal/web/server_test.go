package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"worktreehub/internal/events"
	"worktreehub/internal/git/gittest"
	"worktreehub/internal/hub"
	"worktreehub/internal/logging"
	"worktreehub/internal/project"
	"worktreehub/internal/web"
)

type testEnv struct {
	base   string
	repo   string
	hub    *hub.Hub
	broker *events.Broker
	logs   *logging.TestLogManager
}

// startTestServer runs a server over a hub with one fresh repository
// available to open. The agent executable is "true", so agent sessions
// fall through to an interactive /bin/sh.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()
	repo := gittest.InitRepo(t)
	layout := project.Layout{DataDir: t.TempDir()}
	store, err := project.OpenStore(layout.StatePath())
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}

	lm := logging.NewTestLogManager(200)
	t.Cleanup(func() { _ = lm.Close() })

	agent, _ := exec.LookPath("true")
	broker := events.NewBroker()
	h := hub.New(hub.Options{
		Layout:       layout,
		Store:        store,
		Events:       broker,
		Logs:         lm,
		AgentPath:    agent,
		Shell:        "/bin/sh",
		StopGrace:    500 * time.Millisecond,
		DisableWatch: true,
	})
	t.Cleanup(h.Close)

	s := web.New(web.Config{
		Bind:      "127.0.0.1",
		Port:      0,
		ScanPaths: []string{filepath.Dir(repo)},
	}, h, nil, lm)
	ln, err := s.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ln)
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		<-done
	})

	return &testEnv{base: "http://" + s.Addr(), repo: repo, hub: h, broker: broker, logs: lm}
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decoding response: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestHandleHealth(t *testing.T) {
	env := startTestServer(t)

	resp, err := http.Get(env.base + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
	body, _ := io.ReadAll(resp.Body)
	if want := `{"status":"ok"}`; string(body) != want {
		t.Errorf("body = %q, want %q", string(body), want)
	}
}

func TestServer_AddrBeforeListen(t *testing.T) {
	lm := logging.NewTestLogManager(10)
	t.Cleanup(func() { _ = lm.Close() })

	s := web.New(web.Config{Bind: "127.0.0.1", Port: 8765}, hub.New(hub.Options{}), nil, lm)
	if got := s.Addr(); got != "127.0.0.1:8765" {
		t.Errorf("Addr() = %q, want %q", got, "127.0.0.1:8765")
	}
}
