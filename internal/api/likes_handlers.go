package api

import (
	"net/http"
	"strings"

	"vidtube/internal/models"
)

// Likes dispatches /api/likes/videos and /api/likes/{video|comment|tweet}/{id}.
func (h *Handler) Likes(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/likes/"), "/")

	if trimmed == "videos" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.listLikedVideos(w, r)
		return
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[1] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var kind models.LikeTarget
	switch parts[0] {
	case "video":
		kind = models.LikeTargetVideo
	case "comment":
		kind = models.LikeTargetComment
	case "tweet":
		kind = models.LikeTargetTweet
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	h.toggleLike(w, r, kind, parts[1])
}

// toggleLike verifies the target exists before toggling, for every target
// kind alike.
func (h *Handler) toggleLike(w http.ResponseWriter, r *http.Request, kind models.LikeTarget, targetID string) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var err error
	switch kind {
	case models.LikeTargetVideo:
		_, err = h.Store.GetVideo(r.Context(), targetID)
	case models.LikeTargetComment:
		_, err = h.Store.GetComment(r.Context(), targetID)
	case models.LikeTargetTweet:
		_, err = h.Store.GetTweet(r.Context(), targetID)
	}
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	liked, err := h.Store.ToggleLike(r.Context(), user.ID, kind, targetID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"liked": liked}, "like toggled")
}

func (h *Handler) listLikedVideos(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	videos, err := h.Store.ListLikedVideos(r.Context(), user.ID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, videos, "liked videos fetched")
}
