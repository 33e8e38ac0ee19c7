package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"vidtube/internal/media"
	"vidtube/internal/observability/logging"
	"vidtube/internal/storage"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 500
	maxCommentLength     = 1000
)

// Videos handles the /api/videos collection: public listing and uploads.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listVideos(w, r)
	case http.MethodPost:
		h.createVideo(w, r)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// VideoByPath handles /api/videos/{id} and /api/videos/{id}/toggle-publish.
func (h *Handler) VideoByPath(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/videos/"), "/")
	if trimmed == "" {
		h.Videos(w, r)
		return
	}
	parts := strings.Split(trimmed, "/")
	videoID := parts[0]
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.getVideo(w, r, videoID)
		case http.MethodPatch:
			h.updateVideo(w, r, videoID)
		case http.MethodDelete:
			h.deleteVideo(w, r, videoID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "toggle-publish":
		h.togglePublish(w, r, videoID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

var allowedVideoSorts = map[string]bool{
	"createdAt": true,
	"views":     true,
	"duration":  true,
	"title":     true,
}

func (h *Handler) listVideos(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	filter := storage.VideoFilter{
		PublishedOnly: true,
		Query:         strings.TrimSpace(query.Get("query")),
		SortBy:        "createdAt",
	}
	if userID := strings.TrimSpace(query.Get("userId")); userID != "" {
		if _, parseErr := uuid.Parse(userID); parseErr != nil {
			writeError(w, http.StatusBadRequest, "userId must be a valid id")
			return
		}
		filter.OwnerID = userID
	}
	if sortBy := query.Get("sortBy"); sortBy != "" {
		if !allowedVideoSorts[sortBy] {
			writeError(w, http.StatusBadRequest, "sortBy must be one of createdAt, views, duration, title")
			return
		}
		filter.SortBy = sortBy
	}
	switch sortType := query.Get("sortType"); sortType {
	case "", "desc":
	case "asc":
		filter.SortAscending = true
	default:
		writeError(w, http.StatusBadRequest, "sortType must be asc or desc")
		return
	}

	items, total, err := h.Store.ListVideos(r.Context(), filter, page)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, listResponse{Items: items, Total: total, Page: page.Number, Limit: page.Size}, "videos fetched")
}

func (h *Handler) createVideo(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "multipart form required")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if len(title) > maxTitleLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("title must be at most %d characters", maxTitleLength))
		return
	}
	if len(description) > maxDescriptionLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
		return
	}

	videoPath, found, err := saveUploadedFile(r, "videoFile")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer removeStaged(videoPath)
	if !found {
		writeError(w, http.StatusBadRequest, "videoFile is required")
		return
	}
	thumbPath, found, err := saveUploadedFile(r, "thumbnail")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer removeStaged(thumbPath)
	if !found {
		writeError(w, http.StatusBadRequest, "thumbnail is required")
		return
	}

	videoAsset, err := h.Media.Upload(r.Context(), videoPath, media.KindVideo)
	if err != nil {
		logging.WithContext(r.Context(), h.Logger).Error("video upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "video upload failed")
		return
	}
	thumbAsset, err := h.Media.Upload(r.Context(), thumbPath, media.KindThumbnail)
	if err != nil {
		h.deleteAssetByURL(r, videoAsset.URL)
		logging.WithContext(r.Context(), h.Logger).Error("thumbnail upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "thumbnail upload failed")
		return
	}

	video, err := h.Store.CreateVideo(r.Context(), storage.CreateVideoParams{
		OwnerID:         user.ID,
		Title:           title,
		Description:     description,
		VideoURL:        videoAsset.URL,
		ThumbnailURL:    thumbAsset.URL,
		DurationSeconds: videoAsset.DurationSeconds,
		Published:       true,
	})
	if err != nil {
		h.deleteAssetByURL(r, videoAsset.URL)
		h.deleteAssetByURL(r, thumbAsset.URL)
		h.writeStoreError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, video, "video published")
}

func (h *Handler) getVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	video, err := h.Store.GetVideo(r.Context(), videoID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	requester, authErr := h.Authenticate(r)
	isOwner := authErr == nil && requester.ID == video.OwnerID
	if !video.Published && !isOwner {
		// unpublished videos are invisible to everyone but their owner
		writeError(w, http.StatusNotFound, "video not found")
		return
	}

	if !isOwner {
		if err := h.Store.IncrementVideoViews(r.Context(), videoID); err != nil {
			logging.WithContext(r.Context(), h.Logger).Warn("view count update failed", "video", videoID, "error", err)
		} else {
			video.Views++
		}
	}

	owner, err := h.Store.GetUser(r.Context(), video.OwnerID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, storage.VideoWithOwner{Video: video, Owner: owner.Profile()}, "video fetched")
}

type updateVideoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (h *Handler) updateVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	video, err := h.Store.GetVideo(r.Context(), videoID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !requireOwner(w, user.ID, video.OwnerID) {
		return
	}

	update := storage.VideoUpdate{}
	var newThumbnailURL string
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		if title := r.FormValue("title"); title != "" {
			trimmed := strings.TrimSpace(title)
			update.Title = &trimmed
		}
		if _, set := r.MultipartForm.Value["description"]; set {
			trimmed := strings.TrimSpace(r.FormValue("description"))
			update.Description = &trimmed
		}
		thumbPath, found, fileErr := saveUploadedFile(r, "thumbnail")
		if fileErr != nil {
			writeError(w, http.StatusBadRequest, fileErr.Error())
			return
		}
		defer removeStaged(thumbPath)
		if found {
			asset, uploadErr := h.Media.Upload(r.Context(), thumbPath, media.KindThumbnail)
			if uploadErr != nil {
				logging.WithContext(r.Context(), h.Logger).Error("thumbnail upload failed", "error", uploadErr)
				writeError(w, http.StatusInternalServerError, "thumbnail upload failed")
				return
			}
			update.ThumbnailURL = &asset.URL
			newThumbnailURL = asset.URL
		}
	} else {
		var req updateVideoRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Title != nil {
			trimmed := strings.TrimSpace(*req.Title)
			update.Title = &trimmed
		}
		if req.Description != nil {
			trimmed := strings.TrimSpace(*req.Description)
			update.Description = &trimmed
		}
	}

	if update.Title != nil {
		if *update.Title == "" {
			writeError(w, http.StatusBadRequest, "title must not be empty")
			return
		}
		if len(*update.Title) > maxTitleLength {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("title must be at most %d characters", maxTitleLength))
			return
		}
	}
	if update.Description != nil && len(*update.Description) > maxDescriptionLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
		return
	}

	updated, err := h.Store.UpdateVideo(r.Context(), videoID, update)
	if err != nil {
		h.deleteAssetByURL(r, newThumbnailURL)
		h.writeStoreError(w, r, err)
		return
	}
	if newThumbnailURL != "" && video.ThumbnailURL != newThumbnailURL {
		h.deleteAssetByURL(r, video.ThumbnailURL)
	}
	writeData(w, http.StatusOK, updated, "video updated")
}

func (h *Handler) deleteVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	video, err := h.Store.GetVideo(r.Context(), videoID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !requireOwner(w, user.ID, video.OwnerID) {
		return
	}

	if err := h.Store.DeleteVideo(r.Context(), videoID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.deleteAssetByURL(r, video.VideoURL)
	h.deleteAssetByURL(r, video.ThumbnailURL)
	writeData(w, http.StatusOK, nil, "video deleted")
}

func (h *Handler) togglePublish(w http.ResponseWriter, r *http.Request, videoID string) {
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w, http.MethodPatch)
		return
	}
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	video, err := h.Store.GetVideo(r.Context(), videoID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !requireOwner(w, user.ID, video.OwnerID) {
		return
	}

	published := !video.Published
	updated, err := h.Store.UpdateVideo(r.Context(), videoID, storage.VideoUpdate{Published: &published})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"published": updated.Published}, "publish state toggled")
}
