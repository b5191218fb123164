// pattern: Imperative Shell

package web

import (
	"net/http"
	"os"
	"slices"

	"worktreehub/internal/project"
)

// FavoriteRequest is the body of POST /api/projects/favorites.
type FavoriteRequest struct {
	Path string `json:"path"`
}

// FavoritesResponse lists the favorite projects after a change.
type FavoritesResponse struct {
	Favorites []project.Ref `json:"favorites"`
}

func (s *Server) projectStore(w http.ResponseWriter) (*project.Store, bool) {
	store := s.hub.Store()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "project list unavailable")
		return nil, false
	}
	return store, true
}

func favoritesResponse(store *project.Store) FavoritesResponse {
	return FavoritesResponse{Favorites: append([]project.Ref{}, store.Favorites()...)}
}

// handleAddFavorite handles POST /api/projects/favorites.
func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	store, ok := s.projectStore(w)
	if !ok {
		return
	}
	var req FavoriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	if info, err := os.Stat(req.Path); err != nil || !info.IsDir() {
		writeError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	if err := store.AddFavorite(project.NewRef(req.Path)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, favoritesResponse(store))
}

// handleRemoveFavorite handles DELETE /api/projects/favorites?path=p.
func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	store, ok := s.projectStore(w)
	if !ok {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	if err := store.RemoveFavorite(project.NewRef(path).Path); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, favoritesResponse(store))
}

// handleGetProjectState handles GET /api/projects/{key}/state.
func (s *Server) handleGetProjectState(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupProject(w, r)
	if !ok {
		return
	}
	store, ok := s.projectStore(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateResponse(store.State(p.Ref.Path)))
}

// handlePutProjectState handles PUT /api/projects/{key}/state. The active
// tab must be one of the open tabs.
func (s *Server) handlePutProjectState(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupProject(w, r)
	if !ok {
		return
	}
	store, ok := s.projectStore(w)
	if !ok {
		return
	}
	var st project.State
	if err := decodeJSON(r, &st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if st.ActiveTab != "" && !slices.Contains(st.OpenTabs, st.ActiveTab) {
		writeError(w, http.StatusBadRequest, "active tab is not open")
		return
	}
	if st.SelectedWorktree != "" {
		if _, err := p.Worktree(st.SelectedWorktree); err != nil {
			writeError(w, http.StatusBadRequest, "selected worktree not found")
			return
		}
	}
	if err := store.SetState(p.Ref.Path, st); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stateResponse(st))
}

func stateResponse(st project.State) project.State {
	if st.OpenTabs == nil {
		st.OpenTabs = []string{}
	}
	return st
}
