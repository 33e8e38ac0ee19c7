package api

import (
	"net/http"
	"strings"
)

// Subscriptions dispatches /api/subscriptions/subscribe/{channelId},
// /api/subscriptions/subscribers/{channelId} and
// /api/subscriptions/subscriptions.
func (h *Handler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/subscriptions/"), "/")

	if trimmed == "subscriptions" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.listSubscribedChannels(w, r)
		return
	}

	if channelID, ok := strings.CutPrefix(trimmed, "subscribe/"); ok {
		if channelID == "" || strings.Contains(channelID, "/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.toggleSubscription(w, r, channelID)
		return
	}

	if channelID, ok := strings.CutPrefix(trimmed, "subscribers/"); ok {
		if channelID == "" || strings.Contains(channelID, "/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.listSubscribers(w, r, channelID)
		return
	}

	writeError(w, http.StatusNotFound, "not found")
}

func (h *Handler) toggleSubscription(w http.ResponseWriter, r *http.Request, channelID string) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if user.ID == channelID {
		writeError(w, http.StatusForbidden, "cannot subscribe to your own channel")
		return
	}
	if _, err := h.Store.GetUser(r.Context(), channelID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	subscribed, err := h.Store.ToggleSubscription(r.Context(), user.ID, channelID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"subscribed": subscribed}, "subscription toggled")
}

func (h *Handler) listSubscribers(w http.ResponseWriter, r *http.Request, channelID string) {
	if _, ok := h.requireUser(w, r); !ok {
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

	items, total, err := h.Store.ListChannelSubscribers(r.Context(), channelID, page)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, listResponse{Items: items, Total: total, Page: page.Number, Limit: page.Size}, "subscribers fetched")
}

func (h *Handler) listSubscribedChannels(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.Store.ListSubscribedChannels(r.Context(), user.ID, page)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, listResponse{Items: items, Total: total, Page: page.Number, Limit: page.Size}, "subscribed channels fetched")
}
