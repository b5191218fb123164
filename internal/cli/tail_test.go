// pattern: Imperative Shell
package cli

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestTailSession_StreamsUntilExit(t *testing.T) {
	var reqCount atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch reqCount.Add(1) {
		case 1:
			w.Write([]byte(`{"output":"$ ","running":true}`))
		case 2:
			w.Write([]byte(`{"output":"$ make\r\n","running":true}`))
		default:
			w.Write([]byte(`{"output":"$ make\r\n\u001b[31mFAIL\u001b[0m\r\n","running":false}`))
		}
	})

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	err := TailSession(context.Background(), client, TailConfig{
		ProjectKey: "repo-1a2b3c4d",
		Worktree:   "feature",
		Interval:   10 * time.Millisecond,
		NoColor:    true,
		Writer:     stdout,
		ErrWriter:  stderr,
	})
	if err != nil {
		t.Fatalf("TailSession() error = %v", err)
	}

	if want := "$ make\r\nFAIL\r\n"; stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
	if !strings.Contains(stderr.String(), "Session ended.") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestTailSession_NoSession(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"agent not running"}`))
	})

	stderr := &bytes.Buffer{}
	err := TailSession(context.Background(), client, TailConfig{
		ProjectKey: "repo-1a2b3c4d",
		Worktree:   "feature",
		Interval:   10 * time.Millisecond,
		Writer:     &bytes.Buffer{},
		ErrWriter:  stderr,
	})
	if err != nil {
		t.Fatalf("TailSession() error = %v", err)
	}
	if !strings.Contains(stderr.String(), "No session running.") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestTailSession_ContextCancel(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output":"idle","running":true}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	stdout := &bytes.Buffer{}
	err := TailSession(ctx, client, TailConfig{
		ProjectKey: "repo-1a2b3c4d",
		Worktree:   "feature",
		Interval:   10 * time.Millisecond,
		Writer:     stdout,
		ErrWriter:  &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("TailSession() error = %v", err)
	}
	if stdout.String() != "idle" {
		t.Errorf("stdout = %q, want output written once", stdout.String())
	}
}

func TestNewOutput(t *testing.T) {
	long := strings.Repeat("x", 300) + "tail-marker"
	tests := []struct {
		name     string
		previous string
		current  string
		want     string
	}{
		{"appended", "abc", "abcdef", "def"},
		{"unchanged", "abc", "abc", ""},
		{"first snapshot", "", "abc", "abc"},
		{"buffer trimmed", "0123456789", "56789ab", "ab"},
		{"long buffer trimmed", long, long[100:] + "new", "new"},
		{"restarted", "old session", "fresh", "fresh"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newOutput(tt.previous, tt.current); got != tt.want {
				t.Errorf("newOutput(%q, %q) = %q, want %q", tt.previous, tt.current, got, tt.want)
			}
		})
	}
}
