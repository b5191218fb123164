package worktree

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestWatcher_DebouncedChange(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "worktrees")
	changes := make(chan struct{}, 10)

	w, err := newWatcher([]string{dir}, 20*time.Millisecond, func() { changes <- struct{}{} }, nil)
	if err != nil {
		t.Fatalf("newWatcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// Wait for the directory to be created and watched.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watched directory never created")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	for i := range 5 {
		name := filepath.Join(dir, "hub-wt-main-0000000"+string(rune('0'+i)))
		if err := os.Mkdir(name, 0755); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
	}

	select {
	case <-changes:
		t.Error("burst should be coalesced into one notification")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestIgnoredEvent(t *testing.T) {
	tests := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: "/m/.lock", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/m/.x.json.123.tmp", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/m/x.json", Op: fsnotify.Chmod}, true},
		{fsnotify.Event{Name: "/m/x.json", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/w/hub-wt-main-aaaa1111", Op: fsnotify.Remove}, false},
	}
	for _, tt := range tests {
		if got := ignoredEvent(tt.ev); got != tt.want {
			t.Errorf("ignoredEvent(%v) = %v, want %v", tt.ev, got, tt.want)
		}
	}
}
