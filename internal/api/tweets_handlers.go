package api

import (
	"net/http"
	"strings"
)

// Tweets handles the /api/tweets collection.
func (h *Handler) Tweets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	h.createTweet(w, r)
}

// TweetByPath dispatches /api/tweets/user/{userId} and /api/tweets/{id}.
func (h *Handler) TweetByPath(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tweets/"), "/")
	if trimmed == "" {
		h.Tweets(w, r)
		return
	}

	if userID, ok := strings.CutPrefix(trimmed, "user/"); ok {
		if userID == "" || strings.Contains(userID, "/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.listUserTweets(w, r, userID)
		return
	}

	if strings.Contains(trimmed, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodPatch:
		h.updateTweet(w, r, trimmed)
	case http.MethodDelete:
		h.deleteTweet(w, r, trimmed)
	default:
		writeMethodNotAllowed(w, http.MethodPatch, http.MethodDelete)
	}
}

type tweetRequest struct {
	Content string `json:"content"`
}

func (h *Handler) createTweet(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req tweetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	tweet, err := h.Store.CreateTweet(r.Context(), user.ID, content)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, tweet, "tweet created")
}

func (h *Handler) listUserTweets(w http.ResponseWriter, r *http.Request, userID string) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.Store.ListUserTweets(r.Context(), userID, page)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, listResponse{Items: items, Total: total, Page: page.Number, Limit: page.Size}, "tweets fetched")
}

func (h *Handler) updateTweet(w http.ResponseWriter, r *http.Request, tweetID string) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	tweet, err := h.Store.GetTweet(r.Context(), tweetID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !requireOwner(w, user.ID, tweet.OwnerID) {
		return
	}

	var req tweetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	updated, err := h.Store.UpdateTweet(r.Context(), tweetID, content)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated, "tweet updated")
}

func (h *Handler) deleteTweet(w http.ResponseWriter, r *http.Request, tweetID string) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	tweet, err := h.Store.GetTweet(r.Context(), tweetID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !requireOwner(w, user.ID, tweet.OwnerID) {
		return
	}

	if err := h.Store.DeleteTweet(r.Context(), tweetID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nil, "tweet deleted")
}
