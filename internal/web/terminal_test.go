package web_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestTerminal_SessionNotFound(t *testing.T) {
	env := startTestServer(t)
	p := openProject(t, env)
	wt := createWorktree(t, env, p.Key)

	resp, err := http.Get(worktreeURL(env, p.Key, wt.Name) + "/agent/terminal")
	if err != nil {
		t.Fatalf("GET terminal error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestTerminal_BridgesAgentSession(t *testing.T) {
	requirePty(t)
	env := startTestServer(t)
	p := openProject(t, env)
	wt := createWorktree(t, env, p.Key)
	agentURL := worktreeURL(env, p.Key, wt.Name) + "/agent"

	if status := doJSON(t, http.MethodPost, agentURL, nil, nil); status != http.StatusOK {
		t.Fatalf("start agent status = %d", status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(agentURL, "http") + "/terminal"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = conn.CloseNow() }()

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"resize","cols":120,"rows":40}`)); err != nil {
		t.Fatalf("resize write error = %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageBinary, []byte("echo $((7*6))\r")); err != nil {
		t.Fatalf("input write error = %v", err)
	}

	var got strings.Builder
	for !strings.Contains(got.String(), "42") {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("Read() error = %v; output so far %q", err, got.String())
		}
		got.Write(data)
	}

	proj, _ := env.hub.Get(p.Key)
	sess := proj.Sessions.Agent(wt.Path)
	if sess == nil {
		t.Fatal("agent session missing")
	}
	if cols, rows := sess.Size(); cols != 120 || rows != 40 {
		t.Errorf("session size = %dx%d, want 120x40", cols, rows)
	}

	// Stopping the session closes the socket normally.
	doJSON(t, http.MethodDelete, agentURL, nil, nil)
	for {
		_, _, err := conn.Read(ctx)
		if err == nil {
			continue
		}
		if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure {
			t.Errorf("close status = %v (err %v), want normal closure", status, err)
		}
		break
	}
}
