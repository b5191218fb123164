// pattern: Imperative Shell

package logging

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func writeJSONEntry(t *testing.T, sink *HistorySink, fields map[string]any) {
	t.Helper()
	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	data = append(data, '\n')
	n, err := sink.Write(data)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != len(data) {
		t.Errorf("Write() = %d, want %d", n, len(data))
	}
}

func TestHistorySink_Write(t *testing.T) {
	sink := NewHistorySink(10)
	defer sink.Close()

	writeJSONEntry(t, sink, map[string]any{
		"level":  "info",
		"ts":     float64(time.Now().Unix()),
		"logger": "test.scope",
		"msg":    "test message",
		"fieldA": "valueA",
	})

	got := sink.Recent("", 0)
	if len(got) != 1 {
		t.Fatalf("Recent() returned %d entries, want 1", len(got))
	}
	if got[0].Message != "test message" {
		t.Errorf("Message = %q, want %q", got[0].Message, "test message")
	}
	if got[0].Scope != "test.scope" {
		t.Errorf("Scope = %q, want %q", got[0].Scope, "test.scope")
	}
	if got[0].Level != "INFO" {
		t.Errorf("Level = %q, want %q", got[0].Level, "INFO")
	}
	if got[0].Fields["fieldA"] != "valueA" {
		t.Errorf("Fields[fieldA] = %v, want valueA", got[0].Fields["fieldA"])
	}
}

func TestHistorySink_OverwritesOldest(t *testing.T) {
	sink := NewHistorySink(3)
	defer sink.Close()

	for i := range 5 {
		writeJSONEntry(t, sink, map[string]any{"level": "info", "logger": "app", "msg": fmt.Sprintf("m%d", i)})
	}

	got := sink.Recent("", 0)
	if len(got) != 3 {
		t.Fatalf("Recent() returned %d entries, want 3", len(got))
	}
	for i, want := range []string{"m2", "m3", "m4"} {
		if got[i].Message != want {
			t.Errorf("entry %d = %q, want %q", i, got[i].Message, want)
		}
	}
}

func TestHistorySink_RecentFiltersAndLimits(t *testing.T) {
	sink := NewHistorySink(10)
	defer sink.Close()

	writeJSONEntry(t, sink, map[string]any{"logger": "session.a", "msg": "one"})
	writeJSONEntry(t, sink, map[string]any{"logger": "worktree.p", "msg": "two"})
	writeJSONEntry(t, sink, map[string]any{"logger": "session.b", "msg": "three"})
	writeJSONEntry(t, sink, map[string]any{"logger": "session.a", "msg": "four"})

	got := sink.Recent("session.", 2)
	if len(got) != 2 {
		t.Fatalf("Recent() returned %d entries, want 2", len(got))
	}
	if got[0].Message != "three" || got[1].Message != "four" {
		t.Errorf("Recent() = [%q %q], want [three four]", got[0].Message, got[1].Message)
	}
}

func TestHistorySink_UnparseableIsDropped(t *testing.T) {
	sink := NewHistorySink(4)
	defer sink.Close()

	n, err := sink.Write([]byte("not json"))
	if err != nil || n != len("not json") {
		t.Errorf("Write(garbage) = %d, %v", n, err)
	}
	if got := sink.Recent("", 0); len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
}

func TestHistorySink_Sync(t *testing.T) {
	sink := NewHistorySink(10)
	defer sink.Close()

	if err := sink.Sync(); err != nil {
		t.Errorf("Sync() error = %v", err)
	}
}

func TestHistorySink_Close(t *testing.T) {
	sink := NewHistorySink(10)
	sink.Close()

	_, err := sink.Write([]byte(`{"msg":"test"}`))
	if err == nil {
		t.Error("Write() after Close() should return error")
	}
}
