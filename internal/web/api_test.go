package web_test

import (
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/creack/pty"

	"worktreehub/internal/git/gittest"
	"worktreehub/internal/logging"
	"worktreehub/internal/metadata"
	"worktreehub/internal/project"
	"worktreehub/internal/web"
)

func requirePty(t *testing.T) {
	t.Helper()
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("pseudo-terminals unavailable: %v", err)
	}
	_ = tty.Close()
	_ = ptmx.Close()
}

func openProject(t *testing.T, env *testEnv) web.ProjectResponse {
	t.Helper()
	var p web.ProjectResponse
	if status := doJSON(t, http.MethodPost, env.base+"/api/projects", map[string]string{"path": env.repo}, &p); status != http.StatusOK {
		t.Fatalf("POST /api/projects status = %d", status)
	}
	return p
}

func createWorktree(t *testing.T, env *testEnv, key string) web.WorktreeResponse {
	t.Helper()
	var wt web.WorktreeResponse
	status := doJSON(t, http.MethodPost, env.base+"/api/projects/"+key+"/worktrees",
		web.CreateWorktreeRequest{Branch: "main"}, &wt)
	if status != http.StatusCreated {
		t.Fatalf("create worktree status = %d", status)
	}
	return wt
}

func worktreeURL(env *testEnv, key, name string) string {
	return env.base + "/api/projects/" + key + "/worktrees/" + url.PathEscape(name)
}

func TestProjects_OpenListClose(t *testing.T) {
	env := startTestServer(t)

	var errResp map[string]string
	status := doJSON(t, http.MethodPost, env.base+"/api/projects", map[string]string{"path": t.TempDir()}, &errResp)
	if status != http.StatusUnprocessableEntity {
		t.Errorf("open non-repository status = %d, want %d", status, http.StatusUnprocessableEntity)
	}
	if status := doJSON(t, http.MethodPost, env.base+"/api/projects", map[string]string{}, nil); status != http.StatusBadRequest {
		t.Errorf("open without path status = %d, want 400", status)
	}

	p := openProject(t, env)
	if p.Path != env.repo || p.Key == "" {
		t.Errorf("opened project = %+v", p)
	}

	var list web.ProjectsListResponse
	if status := doJSON(t, http.MethodGet, env.base+"/api/projects", nil, &list); status != http.StatusOK {
		t.Fatalf("GET /api/projects status = %d", status)
	}
	if len(list.Open) != 1 || list.Open[0].Key != p.Key {
		t.Errorf("open projects = %+v", list.Open)
	}
	if len(list.Recents) != 1 || list.Recents[0].Path != env.repo {
		t.Errorf("recents = %+v", list.Recents)
	}

	if status := doJSON(t, http.MethodDelete, env.base+"/api/projects/"+p.Key, nil, nil); status != http.StatusNoContent {
		t.Errorf("DELETE project status = %d, want 204", status)
	}
	if status := doJSON(t, http.MethodDelete, env.base+"/api/projects/"+p.Key, nil, nil); status != http.StatusNotFound {
		t.Errorf("second DELETE project status = %d, want 404", status)
	}
}

func TestProjects_Discover(t *testing.T) {
	env := startTestServer(t)
	p := openProject(t, env)

	var resp struct {
		Projects []web.DiscoveredProject `json:"projects"`
	}
	if status := doJSON(t, http.MethodGet, env.base+"/api/projects/discover", nil, &resp); status != http.StatusOK {
		t.Fatalf("GET /api/projects/discover status = %d", status)
	}
	if len(resp.Projects) != 1 {
		t.Fatalf("discovered %d projects, want 1: %+v", len(resp.Projects), resp.Projects)
	}
	if got := resp.Projects[0]; got.Key != p.Key || !got.Open {
		t.Errorf("discovered project = %+v, want key %s open", got, p.Key)
	}
}

func TestProjects_Branches(t *testing.T) {
	env := startTestServer(t)
	gittest.Run(t, env.repo, "branch", "feature/x")
	p := openProject(t, env)
	createWorktree(t, env, p.Key)

	var resp struct {
		Branches []string `json:"branches"`
	}
	if status := doJSON(t, http.MethodGet, env.base+"/api/projects/"+p.Key+"/branches", nil, &resp); status != http.StatusOK {
		t.Fatalf("GET branches status = %d", status)
	}
	if !slices.Equal(resp.Branches, []string{"feature/x", "main"}) {
		t.Errorf("branches = %v", resp.Branches)
	}
}

func TestWorktrees_Lifecycle(t *testing.T) {
	env := startTestServer(t)
	p := openProject(t, env)

	if status := doJSON(t, http.MethodPost, env.base+"/api/projects/"+p.Key+"/worktrees", web.CreateWorktreeRequest{}, nil); status != http.StatusBadRequest {
		t.Errorf("create without branch status = %d, want 400", status)
	}

	wt := createWorktree(t, env, p.Key)
	if wt.OriginalBranch != "main" || wt.AgentBranch != wt.Name || wt.Agent != nil {
		t.Errorf("created worktree = %+v", wt)
	}
	if _, err := os.Stat(wt.Path); err != nil {
		t.Errorf("worktree path missing: %v", err)
	}

	var list []web.WorktreeResponse
	if status := doJSON(t, http.MethodGet, env.base+"/api/projects/"+p.Key+"/worktrees?branch=main", nil, &list); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if len(list) != 1 || list[0].Name != wt.Name {
		t.Errorf("list = %+v", list)
	}

	var renamed web.WorktreeResponse
	status := doJSON(t, http.MethodPatch, worktreeURL(env, p.Key, wt.Name), web.RenameWorktreeRequest{DisplayName: "  Login  "}, &renamed)
	if status != http.StatusOK || renamed.DisplayName != "Login" {
		t.Errorf("rename = %d %+v", status, renamed)
	}
	if status := doJSON(t, http.MethodPatch, worktreeURL(env, p.Key, wt.Name), web.RenameWorktreeRequest{DisplayName: " "}, nil); status != http.StatusBadRequest {
		t.Errorf("blank rename status = %d, want 400", status)
	}

	svc := metadata.NewPreviewServiceConfig("web", "sleep 30")
	var updated web.WorktreeResponse
	status = doJSON(t, http.MethodPut, worktreeURL(env, p.Key, wt.Name)+"/previews",
		web.UpdatePreviewsRequest{Services: []metadata.PreviewServiceConfig{svc}}, &updated)
	if status != http.StatusOK || len(updated.PreviewServices) != 1 || updated.PreviewServices[0].ID != svc.ID {
		t.Errorf("update previews = %d %+v", status, updated.PreviewServices)
	}
	if updated.DisplayName != "Login" {
		t.Errorf("preview update changed display name to %q", updated.DisplayName)
	}

	if status := doJSON(t, http.MethodDelete, worktreeURL(env, p.Key, wt.Name), nil, nil); status != http.StatusNoContent {
		t.Errorf("DELETE worktree status = %d, want 204", status)
	}
	if _, err := os.Stat(wt.Path); !os.IsNotExist(err) {
		t.Errorf("worktree still on disk, stat err = %v", err)
	}
	if status := doJSON(t, http.MethodDelete, worktreeURL(env, p.Key, wt.Name), nil, nil); status != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", status)
	}
}

func TestWorktrees_UnknownProject(t *testing.T) {
	env := startTestServer(t)

	var resp map[string]string
	status := doJSON(t, http.MethodGet, env.base+"/api/projects/nope-12345678/worktrees", nil, &resp)
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
	if resp["error"] != "project not open" {
		t.Errorf("error = %q", resp["error"])
	}
}

func TestAgent_StartInputOutputStop(t *testing.T) {
	requirePty(t)
	env := startTestServer(t)
	p := openProject(t, env)
	wt := createWorktree(t, env, p.Key)
	agentURL := worktreeURL(env, p.Key, wt.Name) + "/agent"

	if status := doJSON(t, http.MethodGet, agentURL+"/output", nil, nil); status != http.StatusNotFound {
		t.Errorf("output before start status = %d, want 404", status)
	}

	var sess web.SessionResponse
	if status := doJSON(t, http.MethodPost, agentURL, web.StartSessionRequest{Cols: 100, Rows: 30}, &sess); status != http.StatusOK {
		t.Fatalf("start agent status = %d", status)
	}
	if !sess.Running || sess.Kind != "agent" || sess.Title != wt.DisplayName {
		t.Errorf("session = %+v", sess)
	}

	if status := doJSON(t, http.MethodPost, agentURL+"/input", web.InputRequest{Text: "echo $((6*7))", Enter: true}, nil); status != http.StatusNoContent {
		t.Errorf("input status = %d, want 204", status)
	}

	deadline := time.Now().Add(5 * time.Second)
	var out web.OutputResponse
	for time.Now().Before(deadline) {
		doJSON(t, http.MethodGet, agentURL+"/output", nil, &out)
		if strings.Contains(out.Output, "42") {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(out.Output, "42") {
		t.Fatalf("agent output = %q, want command result", out.Output)
	}
	if strings.Contains(out.Output, "\x1b[") {
		t.Errorf("output should have escape sequences stripped: %q", out.Output)
	}

	if status := doJSON(t, http.MethodDelete, agentURL, nil, nil); status != http.StatusNoContent {
		t.Errorf("stop status = %d, want 204", status)
	}
	if status := doJSON(t, http.MethodDelete, agentURL, nil, nil); status != http.StatusNotFound {
		t.Errorf("second stop status = %d, want 404", status)
	}
}

func TestPreviews_StartAndStop(t *testing.T) {
	requirePty(t)
	env := startTestServer(t)
	p := openProject(t, env)
	wt := createWorktree(t, env, p.Key)
	base := worktreeURL(env, p.Key, wt.Name)

	if status := doJSON(t, http.MethodPost, base+"/previews/start", nil, nil); status != http.StatusBadRequest {
		t.Errorf("start with no services status = %d, want 400", status)
	}

	svc := metadata.NewPreviewServiceConfig("server", "sleep 30")
	doJSON(t, http.MethodPut, base+"/previews", web.UpdatePreviewsRequest{Services: []metadata.PreviewServiceConfig{svc}}, nil)

	if status := doJSON(t, http.MethodPost, base+"/previews/unknown/run", nil, nil); status != http.StatusNotFound {
		t.Errorf("run unknown service status = %d, want 404", status)
	}

	var sess web.SessionResponse
	if status := doJSON(t, http.MethodPost, base+"/previews/"+svc.ID+"/run", nil, &sess); status != http.StatusOK {
		t.Fatalf("run service status = %d", status)
	}
	if !sess.Running || sess.ServiceID != svc.ID || sess.Kind != "preview" {
		t.Errorf("preview session = %+v", sess)
	}

	var list []web.WorktreeResponse
	doJSON(t, http.MethodGet, env.base+"/api/projects/"+p.Key+"/worktrees", nil, &list)
	if len(list) != 1 || len(list[0].Previews) != 1 {
		t.Fatalf("worktrees = %+v, want one live preview", list)
	}

	if status := doJSON(t, http.MethodDelete, base+"/previews/running", nil, nil); status != http.StatusNoContent {
		t.Errorf("stop all status = %d, want 204", status)
	}
	if status := doJSON(t, http.MethodDelete, base+"/previews/"+svc.ID+"/run", nil, nil); status != http.StatusNotFound {
		t.Errorf("stop stopped service status = %d, want 404", status)
	}
}

func TestAuth_UnavailableWithoutAgent(t *testing.T) {
	env := startTestServer(t)

	if status := doJSON(t, http.MethodGet, env.base+"/api/auth/status", nil, nil); status != http.StatusServiceUnavailable {
		t.Errorf("auth status = %d, want 503", status)
	}
	if status := doJSON(t, http.MethodPost, env.base+"/api/auth/login", nil, nil); status != http.StatusServiceUnavailable {
		t.Errorf("auth login = %d, want 503", status)
	}
}

func TestLogs_ReturnsRecentEntries(t *testing.T) {
	env := startTestServer(t)
	openProject(t, env)

	var entries []logging.LogEntry
	if status := doJSON(t, http.MethodGet, env.base+"/api/logs?scope=hub&limit=10", nil, &entries); status != http.StatusOK {
		t.Fatalf("GET /api/logs status = %d", status)
	}
	found := false
	for _, e := range entries {
		if e.Message == "project opened" {
			found = true
		}
	}
	if !found {
		t.Errorf("entries = %+v, want the project-opened entry", entries)
	}

	if status := doJSON(t, http.MethodGet, env.base+"/api/logs?limit=x", nil, nil); status != http.StatusBadRequest {
		t.Errorf("invalid limit status = %d, want 400", status)
	}
}

func TestProjects_Favorites(t *testing.T) {
	env := startTestServer(t)

	if status := doJSON(t, http.MethodPost, env.base+"/api/projects/favorites", web.FavoriteRequest{Path: "/does/not/exist"}, nil); status != http.StatusBadRequest {
		t.Errorf("favorite missing directory status = %d, want 400", status)
	}

	openProject(t, env)
	var favs web.FavoritesResponse
	if status := doJSON(t, http.MethodPost, env.base+"/api/projects/favorites", web.FavoriteRequest{Path: env.repo}, &favs); status != http.StatusOK {
		t.Fatalf("POST favorites status = %d", status)
	}
	if len(favs.Favorites) != 1 || favs.Favorites[0].Path != env.repo {
		t.Errorf("favorites = %+v", favs.Favorites)
	}

	var list web.ProjectsListResponse
	doJSON(t, http.MethodGet, env.base+"/api/projects", nil, &list)
	if len(list.Favorites) != 1 || len(list.Recents) != 0 {
		t.Errorf("after favorite: favorites = %+v, recents = %+v", list.Favorites, list.Recents)
	}

	status := doJSON(t, http.MethodDelete, env.base+"/api/projects/favorites?path="+url.QueryEscape(env.repo), nil, &favs)
	if status != http.StatusOK || len(favs.Favorites) != 0 {
		t.Errorf("DELETE favorites = %d %+v", status, favs.Favorites)
	}
	if status := doJSON(t, http.MethodDelete, env.base+"/api/projects/favorites", nil, nil); status != http.StatusBadRequest {
		t.Errorf("DELETE favorites without path status = %d, want 400", status)
	}
}

func TestProjects_State(t *testing.T) {
	env := startTestServer(t)
	p := openProject(t, env)
	wt := createWorktree(t, env, p.Key)
	stateURL := env.base + "/api/projects/" + p.Key + "/state"

	var st project.State
	if status := doJSON(t, http.MethodGet, stateURL, nil, &st); status != http.StatusOK {
		t.Fatalf("GET state status = %d", status)
	}
	if st.OpenTabs == nil || len(st.OpenTabs) != 0 || st.ActiveTab != "" {
		t.Errorf("initial state = %+v", st)
	}

	want := project.State{
		BaseBranch:       "main",
		SelectedWorktree: wt.Name,
		OpenTabs:         []string{"agent", "web"},
		ActiveTab:        "web",
	}
	if status := doJSON(t, http.MethodPut, stateURL, want, nil); status != http.StatusOK {
		t.Fatalf("PUT state status = %d", status)
	}
	st = project.State{}
	doJSON(t, http.MethodGet, stateURL, nil, &st)
	if st.BaseBranch != want.BaseBranch || st.SelectedWorktree != wt.Name || !slices.Equal(st.OpenTabs, want.OpenTabs) || st.ActiveTab != "web" {
		t.Errorf("stored state = %+v, want %+v", st, want)
	}
	if got := env.hub.Store().State(env.repo); got.ActiveTab != "web" {
		t.Errorf("store state = %+v", got)
	}

	tests := []struct {
		name string
		body project.State
	}{
		{"active tab not open", project.State{OpenTabs: []string{"agent"}, ActiveTab: "web"}},
		{"unknown worktree", project.State{SelectedWorktree: "missing"}},
	}
	for _, tt := range tests {
		if status := doJSON(t, http.MethodPut, stateURL, tt.body, nil); status != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, status)
		}
	}

	if status := doJSON(t, http.MethodGet, env.base+"/api/projects/nope-00000000/state", nil, nil); status != http.StatusNotFound {
		t.Errorf("state of unknown project status = %d, want 404", status)
	}
}
