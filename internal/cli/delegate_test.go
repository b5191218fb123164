// pattern: Imperative Shell
package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"worktreehub/internal/instance"
)

// startInstance serves handler as a discoverable server in a temp config dir.
func startInstance(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	fl, err := instance.Lock(dir)
	if err != nil {
		t.Fatalf("failed to lock: %v", err)
	}
	t.Cleanup(func() { instance.Cleanup(dir, fl) })

	if err := instance.WritePort(dir, server.Listener.Addr().String()); err != nil {
		t.Fatalf("failed to write port file: %v", err)
	}
	return dir
}

func TestDelegate_Run_NoInstance_ExitsCode2(t *testing.T) {
	exitCode := -1
	stderr := &bytes.Buffer{}

	delegate := Delegate{
		ConfigDir: t.TempDir(),
		ExitFunc:  func(code int) { exitCode = code },
		Stderr:    stderr,
	}

	called := false
	delegate.Run(func(client *instance.Client) error {
		called = true
		return nil
	})

	if called {
		t.Error("fn should not run without a server")
	}
	if exitCode != 2 {
		t.Errorf("exit code = %d, want 2", exitCode)
	}
	if !strings.Contains(stderr.String(), "no running worktreehub server found") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestDelegate_Run_Success(t *testing.T) {
	dir := startInstance(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"open":[],"recents":[],"favorites":[]}`))
	})

	exitCode := -1
	stderr := &bytes.Buffer{}
	delegate := Delegate{
		ConfigDir: dir,
		ExitFunc:  func(code int) { exitCode = code },
		Stderr:    stderr,
	}

	called := false
	delegate.Run(func(client *instance.Client) error {
		called = true
		_, err := client.ListProjects()
		return err
	})

	if !called {
		t.Error("fn was not called")
	}
	if exitCode != -1 {
		t.Errorf("exit code = %d, want no exit", exitCode)
	}
	if stderr.Len() > 0 {
		t.Errorf("stderr should be empty on success, got: %s", stderr.String())
	}
}

func TestDelegate_Run_ServerError_ExitsCode1(t *testing.T) {
	dir := startInstance(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"worktree depth limit reached"}`))
	})

	exitCode := -1
	stderr := &bytes.Buffer{}
	delegate := Delegate{
		ConfigDir: dir,
		ExitFunc:  func(code int) { exitCode = code },
		Stderr:    stderr,
	}

	delegate.Run(func(client *instance.Client) error {
		_, err := client.CreateWorktree("repo-1a2b3c4d", "main", "")
		return err
	})

	if exitCode != 1 {
		t.Errorf("exit code = %d, want 1", exitCode)
	}
	if got := stderr.String(); got != "error: worktree depth limit reached\n" {
		t.Errorf("stderr = %q", got)
	}
}

func TestFprintJSON(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		pretty bool
		want   string
	}{
		{"raw adds newline", `{"a":1}`, false, "{\"a\":1}\n"},
		{"raw keeps newline", "{\"a\":1}\n", false, "{\"a\":1}\n"},
		{"pretty", `{"a":1}`, true, "{\n  \"a\": 1\n}\n"},
		{"pretty invalid", `not json`, true, "not json\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			if err := FprintJSON(buf, []byte(tt.data), tt.pretty); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Errorf("FprintJSON = %q, want %q", buf.String(), tt.want)
			}
			if tt.pretty && json.Valid([]byte(tt.data)) && !json.Valid(buf.Bytes()) {
				t.Error("pretty output is not valid JSON")
			}
		})
	}
}
