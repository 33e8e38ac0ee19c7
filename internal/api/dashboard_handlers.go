package api

import (
	"net/http"
	"strings"
)

// Dashboard dispatches /api/dashboard/channelStats/{channelId} and
// /api/dashboard/channelVideos/{channelId}.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/dashboard/"), "/")

	if channelID, ok := strings.CutPrefix(trimmed, "channelStats/"); ok {
		if channelID == "" || strings.Contains(channelID, "/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.channelStats(w, r, channelID)
		return
	}

	if channelID, ok := strings.CutPrefix(trimmed, "channelVideos/"); ok {
		if channelID == "" || strings.Contains(channelID, "/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.channelVideos(w, r, channelID)
		return
	}

	writeError(w, http.StatusNotFound, "not found")
}

func (h *Handler) channelStats(w http.ResponseWriter, r *http.Request, channelID string) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}
	if _, err := h.Store.GetUser(r.Context(), channelID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	stats, err := h.Store.ChannelStats(r.Context(), channelID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats, "channel stats fetched")
}

func (h *Handler) channelVideos(w http.ResponseWriter, r *http.Request, channelID string) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.Store.GetUser(r.Context(), channelID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	// channel owners see their drafts alongside published videos
	includeUnpublished := user.ID == channelID
	items, total, err := h.Store.ListChannelVideos(r.Context(), channelID, includeUnpublished, page)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, listResponse{Items: items, Total: total, Page: page.Number, Limit: page.Size}, "channel videos fetched")
}
