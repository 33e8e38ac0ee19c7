package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"vidtube/internal/models"
	"vidtube/internal/storage"
)

func TestCreateVideoUploadsBothAssets(t *testing.T) {
	h, uploader := newTestHandler(t)
	user := createTestUser(t, h, "uploader")
	cookie := accessCookie(t, h, user.ID)

	req := newMultipartRequest(t, http.MethodPost, "/api/videos", map[string]string{
		"title":       "First video",
		"description": "hello world",
	}, map[string]string{
		"videoFile": "clip.mp4",
		"thumbnail": "thumb.jpg",
	}, cookie)
	rr := httptest.NewRecorder()
	h.Videos(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d (body %q)", rr.Code, rr.Body.String())
	}
	var video models.Video
	decodeSuccess(t, rr, &video)
	if video.OwnerID != user.ID {
		t.Fatalf("ownerId = %q, want %q", video.OwnerID, user.ID)
	}
	if !video.Published {
		t.Fatalf("new videos should be published by default")
	}
	if video.DurationSeconds != 42.5 {
		t.Fatalf("durationSeconds = %v, want probed duration", video.DurationSeconds)
	}
	if len(uploader.uploads) != 2 {
		t.Fatalf("uploads = %d, want video and thumbnail", len(uploader.uploads))
	}
}

func TestCreateVideoValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	user := createTestUser(t, h, "validator")
	cookie := accessCookie(t, h, user.ID)

	longTitle := ""
	for i := 0; i < 11; i++ {
		longTitle += "0123456789"
	}

	tests := []struct {
		name   string
		fields map[string]string
		files  map[string]string
	}{
		{"missing title", map[string]string{"description": "d"}, map[string]string{"videoFile": "v.mp4", "thumbnail": "t.jpg"}},
		{"title too long", map[string]string{"title": longTitle}, map[string]string{"videoFile": "v.mp4", "thumbnail": "t.jpg"}},
		{"missing videoFile", map[string]string{"title": "ok"}, map[string]string{"thumbnail": "t.jpg"}},
		{"missing thumbnail", map[string]string{"title": "ok"}, map[string]string{"videoFile": "v.mp4"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := newMultipartRequest(t, http.MethodPost, "/api/videos", tc.fields, tc.files, cookie)
			rr := httptest.NewRecorder()
			h.Videos(rr, req)
			requireErrorEnvelope(t, rr, http.StatusBadRequest)
		})
	}
}

func TestListVideosExcludesUnpublished(t *testing.T) {
	h, _ := newTestHandler(t)
	user := createTestUser(t, h, "lister")
	createTestVideo(t, h, user.ID, "public one", true)
	createTestVideo(t, h, user.ID, "draft", false)

	rr := httptest.NewRecorder()
	h.Videos(rr, httptest.NewRequest(http.MethodGet, "/api/videos", nil))

	var resp struct {
		Items []storage.VideoWithOwner `json:"items"`
		Total int64                    `json:"total"`
	}
	decodeSuccess(t, rr, &resp)
	if resp.Total != 1 || len(resp.Items) != 1 {
		t.Fatalf("total = %d, items = %d, want only the published video", resp.Total, len(resp.Items))
	}
	if resp.Items[0].Title != "public one" {
		t.Fatalf("listed %q, want the published video", resp.Items[0].Title)
	}
	if resp.Items[0].Owner.Username != "lister" {
		t.Fatalf("owner profile missing: %+v", resp.Items[0].Owner)
	}
}

func TestListVideosQueryValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name  string
		query string
	}{
		{"bad page", "?page=0"},
		{"bad limit", "?limit=-2"},
		{"bad userId", "?userId=not-a-uuid"},
		{"bad sortBy", "?sortBy=ownerId"},
		{"bad sortType", "?sortType=sideways"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Videos(rr, httptest.NewRequest(http.MethodGet, "/api/videos"+tc.query, nil))
			requireErrorEnvelope(t, rr, http.StatusBadRequest)
		})
	}
}

func TestListVideosPagination(t *testing.T) {
	h, _ := newTestHandler(t)
	user := createTestUser(t, h, "paginator")
	for i := 0; i < 15; i++ {
		createTestVideo(t, h, user.ID, fmt.Sprintf("video-%02d", i), true)
	}

	rr := httptest.NewRecorder()
	h.Videos(rr, httptest.NewRequest(http.MethodGet, "/api/videos?page=2&limit=10", nil))

	var resp struct {
		Items []storage.VideoWithOwner `json:"items"`
		Total int64                    `json:"total"`
		Page  int                      `json:"page"`
		Limit int                      `json:"limit"`
	}
	decodeSuccess(t, rr, &resp)
	if resp.Total != 15 || len(resp.Items) != 5 || resp.Page != 2 || resp.Limit != 10 {
		t.Fatalf("page 2 of 15: total=%d items=%d page=%d limit=%d", resp.Total, len(resp.Items), resp.Page, resp.Limit)
	}
}

func TestGetVideoIncrementsViewsForVisitors(t *testing.T) {
	h, _ := newTestHandler(t)
	owner := createTestUser(t, h, "owner")
	visitor := createTestUser(t, h, "visitor")
	video := createTestVideo(t, h, owner.ID, "watched", true)

	// anonymous view counts
	rr := httptest.NewRecorder()
	h.VideoByPath(rr, httptest.NewRequest(http.MethodGet, "/api/videos/"+video.ID, nil))
	var got storage.VideoWithOwner
	decodeSuccess(t, rr, &got)
	if got.Views != 1 {
		t.Fatalf("views after anonymous fetch = %d, want 1", got.Views)
	}

	// authenticated non-owner view counts too
	req := httptest.NewRequest(http.MethodGet, "/api/videos/"+video.ID, nil)
	req.AddCookie(accessCookie(t, h, visitor.ID))
	rr = httptest.NewRecorder()
	h.VideoByPath(rr, req)
	decodeSuccess(t, rr, &got)
	if got.Views != 2 {
		t.Fatalf("views after visitor fetch = %d, want 2", got.Views)
	}

	// the owner's own fetch does not
	req = httptest.NewRequest(http.MethodGet, "/api/videos/"+video.ID, nil)
	req.AddCookie(accessCookie(t, h, owner.ID))
	rr = httptest.NewRecorder()
	h.VideoByPath(rr, req)
	decodeSuccess(t, rr, &got)
	if got.Views != 2 {
		t.Fatalf("views after owner fetch = %d, want 2", got.Views)
	}
}

func TestGetUnpublishedVideoHiddenFromNonOwners(t *testing.T) {
	h, _ := newTestHandler(t)
	owner := createTestUser(t, h, "secretive")
	other := createTestUser(t, h, "curious")
	video := createTestVideo(t, h, owner.ID, "draft", false)

	rr := httptest.NewRecorder()
	h.VideoByPath(rr, httptest.NewRequest(http.MethodGet, "/api/videos/"+video.ID, nil))
	requireErrorEnvelope(t, rr, http.StatusNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/videos/"+video.ID, nil)
	req.AddCookie(accessCookie(t, h, other.ID))
	rr = httptest.NewRecorder()
	h.VideoByPath(rr, req)
	requireErrorEnvelope(t, rr, http.StatusNotFound)

	req = httptest.NewRequest(http.MethodGet, "/api/videos/"+video.ID, nil)
	req.AddCookie(accessCookie(t, h, owner.ID))
	rr = httptest.NewRecorder()
	h.VideoByPath(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("owner fetch status = %d (body %q)", rr.Code, rr.Body.String())
	}
}

func TestUpdateVideoOwnerOnly(t *testing.T) {
	h, _ := newTestHandler(t)
	owner := createTestUser(t, h, "editor")
	intruder := createTestUser(t, h, "intruder")
	video := createTestVideo(t, h, owner.ID, "original", true)

	req := newJSONRequest(t, http.MethodPatch, "/api/videos/"+video.ID, map[string]string{
		"title": "hijacked",
	}, accessCookie(t, h, intruder.ID))
	rr := httptest.NewRecorder()
	h.VideoByPath(rr, req)
	requireErrorEnvelope(t, rr, http.StatusForbidden)

	req = newJSONRequest(t, http.MethodPatch, "/api/videos/"+video.ID, map[string]string{
		"title": "renamed",
	}, accessCookie(t, h, owner.ID))
	rr = httptest.NewRecorder()
	h.VideoByPath(rr, req)
	var updated models.Video
	decodeSuccess(t, rr, &updated)
	if updated.Title != "renamed" {
		t.Fatalf("title = %q, want renamed", updated.Title)
	}
	if updated.Description != video.Description {
		t.Fatalf("description changed on a title-only update")
	}
}

func TestUpdateVideoReplacesThumbnail(t *testing.T) {
	h, uploader := newTestHandler(t)
	owner := createTestUser(t, h, "rethumber")
	video := createTestVideo(t, h, owner.ID, "clip", true)

	req := newMultipartRequest(t, http.MethodPatch, "/api/videos/"+video.ID, nil,
		map[string]string{"thumbnail": "new-thumb.jpg"}, accessCookie(t, h, owner.ID))
	rr := httptest.NewRecorder()
	h.VideoByPath(rr, req)

	var updated models.Video
	decodeSuccess(t, rr, &updated)
	if updated.ThumbnailURL == video.ThumbnailURL {
		t.Fatalf("thumbnail URL unchanged")
	}
	deletes := uploader.deletedKeys()
	if len(deletes) != 1 || deletes[0] != "thumbnails/clip" {
		t.Fatalf("deleted keys = %v, want the previous thumbnail", deletes)
	}
}

func TestDeleteVideoRemovesAssetsAndDependents(t *testing.T) {
	h, uploader := newTestHandler(t)
	owner := createTestUser(t, h, "remover")
	video := createTestVideo(t, h, owner.ID, "doomed", true)
	cookie := accessCookie(t, h, owner.ID)

	commentReq := newJSONRequest(t, http.MethodPost, "/api/comments/video/"+video.ID,
		map[string]string{"content": "nice"}, cookie)
	commentRR := httptest.NewRecorder()
	h.Comments(commentRR, commentReq)
	var comment models.Comment
	decodeSuccess(t, commentRR, &comment)

	req := httptest.NewRequest(http.MethodDelete, "/api/videos/"+video.ID, nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	h.VideoByPath(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d (body %q)", rr.Code, rr.Body.String())
	}

	if len(uploader.deletedKeys()) != 2 {
		t.Fatalf("deleted assets = %v, want video and thumbnail", uploader.deletedKeys())
	}

	getRR := httptest.NewRecorder()
	h.VideoByPath(getRR, httptest.NewRequest(http.MethodGet, "/api/videos/"+video.ID, nil))
	requireErrorEnvelope(t, getRR, http.StatusNotFound)

	patchReq := newJSONRequest(t, http.MethodPatch, "/api/comments/"+comment.ID,
		map[string]string{"content": "edited"}, cookie)
	patchRR := httptest.NewRecorder()
	h.Comments(patchRR, patchReq)
	requireErrorEnvelope(t, patchRR, http.StatusNotFound)
}

func TestTogglePublish(t *testing.T) {
	h, _ := newTestHandler(t)
	owner := createTestUser(t, h, "publisher")
	video := createTestVideo(t, h, owner.ID, "toggle me", true)
	cookie := accessCookie(t, h, owner.ID)

	req := httptest.NewRequest(http.MethodPatch, "/api/videos/"+video.ID+"/toggle-publish", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	h.VideoByPath(rr, req)
	var state map[string]bool
	decodeSuccess(t, rr, &state)
	if state["published"] {
		t.Fatalf("expected unpublished after first toggle")
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/videos/"+video.ID+"/toggle-publish", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	h.VideoByPath(rr, req)
	decodeSuccess(t, rr, &state)
	if !state["published"] {
		t.Fatalf("expected published after second toggle")
	}
}

func TestCreateVideoCleansStagedFileWhenThumbnailMissing(t *testing.T) {
	h, uploader := newTestHandler(t)
	uploader.keepLocal = true
	user := createTestUser(t, h, "stager")
	before := stagedTempFiles(t)

	req := newMultipartRequest(t, http.MethodPost, "/api/videos", map[string]string{
		"title": "orphan check",
	}, map[string]string{
		"videoFile": "clip.mp4",
	}, accessCookie(t, h, user.ID))
	rr := httptest.NewRecorder()
	h.Videos(rr, req)

	requireErrorEnvelope(t, rr, http.StatusBadRequest)
	if leaked := leakedStagedFiles(t, before); len(leaked) != 0 {
		t.Fatalf("staged temp files left behind: %v", leaked)
	}
}

func TestCreateVideoCleansStagedFilesWithoutUploaderHelp(t *testing.T) {
	// the handler owns staged files; it must not depend on the uploader
	// consuming them
	h, uploader := newTestHandler(t)
	uploader.keepLocal = true
	user := createTestUser(t, h, "keeper")
	before := stagedTempFiles(t)

	req := newMultipartRequest(t, http.MethodPost, "/api/videos", map[string]string{
		"title": "kept upload",
	}, map[string]string{
		"videoFile": "clip.mp4",
		"thumbnail": "thumb.jpg",
	}, accessCookie(t, h, user.ID))
	rr := httptest.NewRecorder()
	h.Videos(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d (body %q)", rr.Code, rr.Body.String())
	}
	if leaked := leakedStagedFiles(t, before); len(leaked) != 0 {
		t.Fatalf("staged temp files left behind: %v", leaked)
	}
}
