package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"worktreehub/internal/events"
	"worktreehub/internal/git/gittest"
	"worktreehub/internal/hub"
	"worktreehub/internal/logging"
	"worktreehub/internal/project"
)

func TestRemovalContext_OutlivesRequest(t *testing.T) {
	reqCtx, cancelReq := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodDelete, "/", nil).WithContext(reqCtx)
	cancelReq()

	ctx, cancel := removalContext(req)
	defer cancel()
	if err := ctx.Err(); err != nil {
		t.Fatalf("removal context cancelled with request: %v", err)
	}
	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > removalTimeout {
		t.Errorf("deadline = %v (set %v), want within %v", deadline, ok, removalTimeout)
	}
}

func TestHandleDeleteWorktree_CompletesAfterClientGone(t *testing.T) {
	repo := gittest.InitRepo(t)
	lm := logging.NewTestLogManager(50)
	t.Cleanup(func() { _ = lm.Close() })

	h := hub.New(hub.Options{
		Layout:       project.Layout{DataDir: t.TempDir()},
		Events:       events.NewBroker(),
		Logs:         lm,
		Shell:        "/bin/sh",
		StopGrace:    200 * time.Millisecond,
		DisableWatch: true,
	})
	t.Cleanup(h.Close)
	s := New(Config{Bind: "127.0.0.1"}, h, nil, lm)

	p, err := h.Open(context.Background(), repo)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	wt, err := p.Worktrees.CreateManagedWorktree(context.Background(), "main", "")
	if err != nil {
		t.Fatalf("CreateManagedWorktree() error = %v", err)
	}

	reqCtx, cancelReq := context.WithCancel(context.Background())
	cancelReq()
	req := httptest.NewRequest(http.MethodDelete, "/api/projects/"+p.Key()+"/worktrees/"+wt.Name, nil).WithContext(reqCtx)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if _, err := os.Stat(wt.Path); !os.IsNotExist(err) {
		t.Errorf("worktree still on disk, stat err = %v", err)
	}
	branches, err := h.Git().ListBranches(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range branches {
		if b == wt.AgentBranch {
			t.Errorf("branch %s survived deletion", b)
		}
	}
}
