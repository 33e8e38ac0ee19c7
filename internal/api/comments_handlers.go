package api

import (
	"fmt"
	"net/http"
	"strings"
)

// Comments dispatches /api/comments/video/{videoId} and /api/comments/{id}.
func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/comments/"), "/")
	if trimmed == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if videoID, ok := strings.CutPrefix(trimmed, "video/"); ok {
		if videoID == "" || strings.Contains(videoID, "/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.listComments(w, r, videoID)
		case http.MethodPost:
			h.createComment(w, r, videoID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
		return
	}

	if strings.Contains(trimmed, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodPatch:
		h.updateComment(w, r, trimmed)
	case http.MethodDelete:
		h.deleteComment(w, r, trimmed)
	default:
		writeMethodNotAllowed(w, http.MethodPatch, http.MethodDelete)
	}
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request, videoID string) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := h.Store.ListVideoComments(r.Context(), videoID, page)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, listResponse{Items: items, Total: total, Page: page.Number, Limit: page.Size}, "comments fetched")
}

type commentRequest struct {
	Content string `json:"content"`
}

func validCommentContent(w http.ResponseWriter, content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return "", false
	}
	if len(trimmed) > maxCommentLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("content must be at most %d characters", maxCommentLength))
		return "", false
	}
	return trimmed, true
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request, videoID string) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	content, ok := validCommentContent(w, req.Content)
	if !ok {
		return
	}

	comment, err := h.Store.CreateComment(r.Context(), user.ID, videoID, content)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, comment, "comment added")
}

func (h *Handler) updateComment(w http.ResponseWriter, r *http.Request, commentID string) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	comment, err := h.Store.GetComment(r.Context(), commentID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !requireOwner(w, user.ID, comment.OwnerID) {
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	content, ok := validCommentContent(w, req.Content)
	if !ok {
		return
	}

	updated, err := h.Store.UpdateComment(r.Context(), commentID, content)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated, "comment updated")
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request, commentID string) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	comment, err := h.Store.GetComment(r.Context(), commentID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !requireOwner(w, user.ID, comment.OwnerID) {
		return
	}

	if err := h.Store.DeleteComment(r.Context(), commentID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nil, "comment deleted")
}
