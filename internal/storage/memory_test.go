package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"vidtube/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorage(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return store
}

func createTestUser(t *testing.T, store *Storage, username string) models.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), CreateUserParams{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test " + username,
		PasswordHash: "hash",
		AvatarURL:    "https://cdn.example.com/" + username + ".png",
	})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return user
}

func createTestVideo(t *testing.T, store *Storage, ownerID, title string, published bool) models.Video {
	t.Helper()
	video, err := store.CreateVideo(context.Background(), CreateVideoParams{
		OwnerID:      ownerID,
		Title:        title,
		VideoURL:     "https://cdn.example.com/videos/" + title + ".mp4",
		ThumbnailURL: "https://cdn.example.com/thumbs/" + title + ".png",
		Published:    published,
	})
	if err != nil {
		t.Fatalf("CreateVideo(%s): %v", title, err)
	}
	return video
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	createTestUser(t, store, "alice")

	cases := []struct {
		name   string
		params CreateUserParams
	}{
		{"same username different case", CreateUserParams{Username: "Alice", Email: "other@example.com", PasswordHash: "hash"}},
		{"same email different case", CreateUserParams{Username: "bob", Email: "ALICE@example.com", PasswordHash: "hash"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.CreateUser(ctx, tc.params); !errors.Is(err, ErrConflict) {
				t.Fatalf("expected ErrConflict, got %v", err)
			}
		})
	}
}

func TestFindUserByLogin(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "carol")

	for _, identifier := range []string{"carol", "Carol", "carol@example.com", "CAROL@example.com"} {
		found, err := store.FindUserByLogin(ctx, identifier)
		if err != nil {
			t.Fatalf("FindUserByLogin(%s): %v", identifier, err)
		}
		if found.ID != user.ID {
			t.Fatalf("FindUserByLogin(%s) = %s, want %s", identifier, found.ID, user.ID)
		}
	}

	if _, err := store.FindUserByLogin(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUserPartialFields(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "dave")

	fullName := "Dave Updated"
	updated, err := store.UpdateUser(ctx, user.ID, UserUpdate{FullName: &fullName})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.FullName != fullName {
		t.Fatalf("FullName = %q, want %q", updated.FullName, fullName)
	}
	if updated.Email != user.Email {
		t.Fatalf("Email changed unexpectedly: %q", updated.Email)
	}
	if updated.AvatarURL != user.AvatarURL {
		t.Fatalf("AvatarURL changed unexpectedly: %q", updated.AvatarURL)
	}
}

func TestPurgeExpiredRefreshTokens(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	expired := createTestUser(t, store, "expired")
	active := createTestUser(t, store, "active")

	now := time.Now().UTC()
	if err := store.SetRefreshToken(ctx, expired.ID, "stale", now.Add(-time.Hour)); err != nil {
		t.Fatalf("SetRefreshToken: %v", err)
	}
	if err := store.SetRefreshToken(ctx, active.ID, "fresh", now.Add(time.Hour)); err != nil {
		t.Fatalf("SetRefreshToken: %v", err)
	}

	purged, err := store.PurgeExpiredRefreshTokens(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpiredRefreshTokens: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}

	got, err := store.GetUser(ctx, expired.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.RefreshToken != "" || got.RefreshTokenExpiresAt != nil {
		t.Fatalf("expired token not cleared: %+v", got)
	}
	got, err = store.GetUser(ctx, active.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.RefreshToken != "fresh" {
		t.Fatalf("active token cleared unexpectedly")
	}
}

func TestListVideosFilterSortAndPagination(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := createTestUser(t, store, "uploader")
	other := createTestUser(t, store, "other")

	clock := time.Now().UTC().Add(-time.Hour)
	store.clock = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for i := 0; i < 15; i++ {
		createTestVideo(t, store, owner.ID, fmt.Sprintf("go tutorial %02d", i), true)
	}
	createTestVideo(t, store, owner.ID, "unpublished draft", false)
	createTestVideo(t, store, other.ID, "cooking show", true)

	t.Run("published only with pagination", func(t *testing.T) {
		filter := VideoFilter{PublishedOnly: true}
		first, total, err := store.ListVideos(ctx, filter, Page{Number: 1, Size: 10})
		if err != nil {
			t.Fatalf("ListVideos: %v", err)
		}
		if total != 16 {
			t.Fatalf("total = %d, want 16", total)
		}
		if len(first) != 10 {
			t.Fatalf("page 1 size = %d, want 10", len(first))
		}
		second, _, err := store.ListVideos(ctx, filter, Page{Number: 2, Size: 10})
		if err != nil {
			t.Fatalf("ListVideos page 2: %v", err)
		}
		if len(second) != 6 {
			t.Fatalf("page 2 size = %d, want 6", len(second))
		}
	})

	t.Run("newest first by default", func(t *testing.T) {
		items, _, err := store.ListVideos(ctx, VideoFilter{PublishedOnly: true}, Page{Number: 1, Size: 2})
		if err != nil {
			t.Fatalf("ListVideos: %v", err)
		}
		if items[0].Title != "cooking show" {
			t.Fatalf("first item = %q, want newest", items[0].Title)
		}
		if !items[0].CreatedAt.After(items[1].CreatedAt) {
			t.Fatalf("items not sorted newest first")
		}
	})

	t.Run("title query is case-insensitive", func(t *testing.T) {
		items, total, err := store.ListVideos(ctx, VideoFilter{PublishedOnly: true, Query: "COOKING"}, Page{Number: 1, Size: 10})
		if err != nil {
			t.Fatalf("ListVideos: %v", err)
		}
		if total != 1 || len(items) != 1 {
			t.Fatalf("total = %d, len = %d, want 1/1", total, len(items))
		}
		if items[0].Owner.Username != "other" {
			t.Fatalf("owner = %q, want other", items[0].Owner.Username)
		}
	})

	t.Run("owner filter excludes drafts for public listing", func(t *testing.T) {
		_, total, err := store.ListVideos(ctx, VideoFilter{PublishedOnly: true, OwnerID: owner.ID}, Page{Number: 1, Size: 5})
		if err != nil {
			t.Fatalf("ListVideos: %v", err)
		}
		if total != 15 {
			t.Fatalf("total = %d, want 15", total)
		}
	})
}

func TestToggleLike(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "liker")
	video := createTestVideo(t, store, user.ID, "clip", true)

	liked, err := store.ToggleLike(ctx, user.ID, models.LikeTargetVideo, video.ID)
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if !liked {
		t.Fatalf("first toggle should like")
	}
	liked, err = store.ToggleLike(ctx, user.ID, models.LikeTargetVideo, video.ID)
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if liked {
		t.Fatalf("second toggle should unlike")
	}

	videos, err := store.ListLikedVideos(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListLikedVideos: %v", err)
	}
	if len(videos) != 0 {
		t.Fatalf("liked videos = %d, want 0", len(videos))
	}
}

func TestToggleSubscription(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	subscriber := createTestUser(t, store, "viewer")
	channel := createTestUser(t, store, "creator")

	subscribed, err := store.ToggleSubscription(ctx, subscriber.ID, channel.ID)
	if err != nil {
		t.Fatalf("ToggleSubscription: %v", err)
	}
	if !subscribed {
		t.Fatalf("first toggle should subscribe")
	}

	entries, total, err := store.ListChannelSubscribers(ctx, channel.ID, Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("ListChannelSubscribers: %v", err)
	}
	if total != 1 || len(entries) != 1 {
		t.Fatalf("subscribers = %d/%d, want 1/1", total, len(entries))
	}
	if entries[0].Subscriber.Username != "viewer" {
		t.Fatalf("subscriber = %q, want viewer", entries[0].Subscriber.Username)
	}

	subscribed, err = store.ToggleSubscription(ctx, subscriber.ID, channel.ID)
	if err != nil {
		t.Fatalf("ToggleSubscription: %v", err)
	}
	if subscribed {
		t.Fatalf("second toggle should unsubscribe")
	}

	if _, err := store.ToggleSubscription(ctx, subscriber.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing channel, got %v", err)
	}
}

func TestPlaylistVideoSetSemantics(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := createTestUser(t, store, "curator")
	video := createTestVideo(t, store, owner.ID, "first", true)

	playlist, err := store.CreatePlaylist(ctx, owner.ID, "favorites", "the good ones")
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}

	playlist, err = store.AddPlaylistVideo(ctx, playlist.ID, video.ID)
	if err != nil {
		t.Fatalf("AddPlaylistVideo: %v", err)
	}
	if len(playlist.VideoIDs) != 1 {
		t.Fatalf("video ids = %d, want 1", len(playlist.VideoIDs))
	}

	// adding again is a no-op
	playlist, err = store.AddPlaylistVideo(ctx, playlist.ID, video.ID)
	if err != nil {
		t.Fatalf("AddPlaylistVideo repeat: %v", err)
	}
	if len(playlist.VideoIDs) != 1 {
		t.Fatalf("video ids after repeat = %d, want 1", len(playlist.VideoIDs))
	}

	playlist, err = store.RemovePlaylistVideo(ctx, playlist.ID, video.ID)
	if err != nil {
		t.Fatalf("RemovePlaylistVideo: %v", err)
	}
	if len(playlist.VideoIDs) != 0 {
		t.Fatalf("video ids after remove = %d, want 0", len(playlist.VideoIDs))
	}

	if _, err := store.RemovePlaylistVideo(ctx, playlist.ID, video.ID); !errors.Is(err, ErrVideoNotInPlaylist) {
		t.Fatalf("expected ErrVideoNotInPlaylist, got %v", err)
	}
}

func TestDeleteVideoCascades(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := createTestUser(t, store, "owner")
	commenter := createTestUser(t, store, "commenter")
	video := createTestVideo(t, store, owner.ID, "doomed", true)

	comment, err := store.CreateComment(ctx, commenter.ID, video.ID, "nice")
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if _, err := store.ToggleLike(ctx, commenter.ID, models.LikeTargetVideo, video.ID); err != nil {
		t.Fatalf("ToggleLike video: %v", err)
	}
	if _, err := store.ToggleLike(ctx, owner.ID, models.LikeTargetComment, comment.ID); err != nil {
		t.Fatalf("ToggleLike comment: %v", err)
	}
	playlist, err := store.CreatePlaylist(ctx, owner.ID, "mine", "stuff")
	if err != nil {
		t.Fatalf("CreatePlaylist: %v", err)
	}
	if _, err := store.AddPlaylistVideo(ctx, playlist.ID, video.ID); err != nil {
		t.Fatalf("AddPlaylistVideo: %v", err)
	}

	if err := store.DeleteVideo(ctx, video.ID); err != nil {
		t.Fatalf("DeleteVideo: %v", err)
	}

	if _, err := store.GetVideo(ctx, video.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("video still present: %v", err)
	}
	if _, err := store.GetComment(ctx, comment.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("comment still present: %v", err)
	}
	got, err := store.GetPlaylist(ctx, playlist.ID)
	if err != nil {
		t.Fatalf("GetPlaylist: %v", err)
	}
	if len(got.VideoIDs) != 0 {
		t.Fatalf("playlist still references deleted video")
	}
	if len(store.data.Likes) != 0 {
		t.Fatalf("likes not cleaned up: %d remaining", len(store.data.Likes))
	}
}

func TestChannelStats(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	channel := createTestUser(t, store, "stats")
	fan := createTestUser(t, store, "fan")

	t.Run("zero defaults with no videos", func(t *testing.T) {
		stats, err := store.ChannelStats(ctx, channel.ID)
		if err != nil {
			t.Fatalf("ChannelStats: %v", err)
		}
		want := models.ChannelStats{ChannelID: channel.ID}
		if stats != want {
			t.Fatalf("stats = %+v, want all zeroes", stats)
		}
	})

	t.Run("aggregates across videos", func(t *testing.T) {
		first := createTestVideo(t, store, channel.ID, "one", true)
		createTestVideo(t, store, channel.ID, "two", false)
		for i := 0; i < 3; i++ {
			if err := store.IncrementVideoViews(ctx, first.ID); err != nil {
				t.Fatalf("IncrementVideoViews: %v", err)
			}
		}
		if _, err := store.ToggleLike(ctx, fan.ID, models.LikeTargetVideo, first.ID); err != nil {
			t.Fatalf("ToggleLike: %v", err)
		}
		if _, err := store.ToggleSubscription(ctx, fan.ID, channel.ID); err != nil {
			t.Fatalf("ToggleSubscription: %v", err)
		}

		stats, err := store.ChannelStats(ctx, channel.ID)
		if err != nil {
			t.Fatalf("ChannelStats: %v", err)
		}
		if stats.TotalVideos != 2 || stats.TotalViews != 3 || stats.TotalSubscribers != 1 || stats.TotalLikes != 1 {
			t.Fatalf("stats = %+v", stats)
		}
	})

	if _, err := store.ChannelStats(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListVideoCommentsNewestFirst(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	owner := createTestUser(t, store, "host")
	video := createTestVideo(t, store, owner.ID, "talk", true)

	clock := time.Now().UTC().Add(-time.Hour)
	store.clock = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for i := 0; i < 5; i++ {
		if _, err := store.CreateComment(ctx, owner.ID, video.ID, fmt.Sprintf("comment %d", i)); err != nil {
			t.Fatalf("CreateComment: %v", err)
		}
	}

	items, total, err := store.ListVideoComments(ctx, video.ID, Page{Number: 1, Size: 3})
	if err != nil {
		t.Fatalf("ListVideoComments: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(items) != 3 {
		t.Fatalf("page size = %d, want 3", len(items))
	}
	if items[0].Content != "comment 4" {
		t.Fatalf("first comment = %q, want newest", items[0].Content)
	}
	if items[0].Owner.Username != "host" {
		t.Fatalf("owner = %q, want host", items[0].Owner.Username)
	}

	if _, _, err := store.ListVideoComments(ctx, "missing", Page{Number: 1, Size: 3}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing video, got %v", err)
	}
}

func TestStorageReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json")

	store, err := NewStorage(path)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	user := createTestUser(t, store, "persisted")

	reloaded, err := NewStorage(path)
	if err != nil {
		t.Fatalf("NewStorage reload: %v", err)
	}
	got, err := reloaded.GetUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUser after reload: %v", err)
	}
	if got.Username != "persisted" {
		t.Fatalf("username = %q, want persisted", got.Username)
	}
}
