package api

import (
	"errors"
	"net/http"
	"strings"

	"vidtube/internal/models"
	"vidtube/internal/storage"
)

// Playlists handles the /api/playlists collection.
func (h *Handler) Playlists(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createPlaylist(w, r)
	case http.MethodGet:
		h.listPlaylists(w, r)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// PlaylistByPath dispatches /api/playlists/{id} and
// /api/playlists/{id}/videos/{videoId}.
func (h *Handler) PlaylistByPath(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/playlists/"), "/")
	if trimmed == "" {
		h.Playlists(w, r)
		return
	}
	parts := strings.Split(trimmed, "/")
	playlistID := parts[0]
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.getPlaylist(w, r, playlistID)
		case http.MethodPut:
			h.updatePlaylist(w, r, playlistID)
		case http.MethodDelete:
			h.deletePlaylist(w, r, playlistID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case len(parts) == 3 && parts[1] == "videos" && parts[2] != "":
		switch r.Method {
		case http.MethodPost:
			h.addPlaylistVideo(w, r, playlistID, parts[2])
		case http.MethodDelete:
			h.removePlaylistVideo(w, r, playlistID, parts[2])
		default:
			writeMethodNotAllowed(w, http.MethodPost, http.MethodDelete)
		}
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) createPlaylist(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, "name and description are required")
		return
	}

	playlist, err := h.Store.CreatePlaylist(r.Context(), user.ID, req.Name, req.Description)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, playlist, "playlist created")
}

func (h *Handler) listPlaylists(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	playlists, err := h.Store.ListUserPlaylists(r.Context(), user.ID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, playlists, "playlists fetched")
}

type playlistDetail struct {
	models.Playlist
	Videos []models.Video `json:"videos"`
}

// loadOwnedPlaylist fetches the playlist and enforces ownership. All playlist
// views and mutations are owner-only.
func (h *Handler) loadOwnedPlaylist(w http.ResponseWriter, r *http.Request, playlistID string) (models.Playlist, bool) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return models.Playlist{}, false
	}
	playlist, err := h.Store.GetPlaylist(r.Context(), playlistID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return models.Playlist{}, false
	}
	if !requireOwner(w, user.ID, playlist.OwnerID) {
		return models.Playlist{}, false
	}
	return playlist, true
}

func (h *Handler) getPlaylist(w http.ResponseWriter, r *http.Request, playlistID string) {
	playlist, ok := h.loadOwnedPlaylist(w, r, playlistID)
	if !ok {
		return
	}

	videos := make([]models.Video, 0, len(playlist.VideoIDs))
	for _, videoID := range playlist.VideoIDs {
		video, err := h.Store.GetVideo(r.Context(), videoID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			h.writeStoreError(w, r, err)
			return
		}
		videos = append(videos, video)
	}
	writeData(w, http.StatusOK, playlistDetail{Playlist: playlist, Videos: videos}, "playlist fetched")
}

func (h *Handler) updatePlaylist(w http.ResponseWriter, r *http.Request, playlistID string) {
	if _, ok := h.loadOwnedPlaylist(w, r, playlistID); !ok {
		return
	}

	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, "name and description are required")
		return
	}

	updated, err := h.Store.UpdatePlaylist(r.Context(), playlistID, req.Name, req.Description)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated, "playlist updated")
}

func (h *Handler) deletePlaylist(w http.ResponseWriter, r *http.Request, playlistID string) {
	if _, ok := h.loadOwnedPlaylist(w, r, playlistID); !ok {
		return
	}
	if err := h.Store.DeletePlaylist(r.Context(), playlistID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nil, "playlist deleted")
}

func (h *Handler) addPlaylistVideo(w http.ResponseWriter, r *http.Request, playlistID, videoID string) {
	if _, ok := h.loadOwnedPlaylist(w, r, playlistID); !ok {
		return
	}
	if _, err := h.Store.GetVideo(r.Context(), videoID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	updated, err := h.Store.AddPlaylistVideo(r.Context(), playlistID, videoID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated, "video added to playlist")
}

func (h *Handler) removePlaylistVideo(w http.ResponseWriter, r *http.Request, playlistID, videoID string) {
	if _, ok := h.loadOwnedPlaylist(w, r, playlistID); !ok {
		return
	}

	updated, err := h.Store.RemovePlaylistVideo(r.Context(), playlistID, videoID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated, "video removed from playlist")
}
