package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidtube/internal/models"
)

type dataset struct {
	Users         map[string]models.User         `json:"users"`
	Videos        map[string]models.Video        `json:"videos"`
	Comments      map[string]models.Comment      `json:"comments"`
	Tweets        map[string]models.Tweet        `json:"tweets"`
	Likes         map[string]models.Like         `json:"likes"`
	Playlists     map[string]models.Playlist     `json:"playlists"`
	Subscriptions map[string]models.Subscription `json:"subscriptions"`
}

func newDataset() dataset {
	return dataset{
		Users:         make(map[string]models.User),
		Videos:        make(map[string]models.Video),
		Comments:      make(map[string]models.Comment),
		Tweets:        make(map[string]models.Tweet),
		Likes:         make(map[string]models.Like),
		Playlists:     make(map[string]models.Playlist),
		Subscriptions: make(map[string]models.Subscription),
	}
}

func (d *dataset) ensureInitialized() {
	if d.Users == nil {
		d.Users = make(map[string]models.User)
	}
	if d.Videos == nil {
		d.Videos = make(map[string]models.Video)
	}
	if d.Comments == nil {
		d.Comments = make(map[string]models.Comment)
	}
	if d.Tweets == nil {
		d.Tweets = make(map[string]models.Tweet)
	}
	if d.Likes == nil {
		d.Likes = make(map[string]models.Like)
	}
	if d.Playlists == nil {
		d.Playlists = make(map[string]models.Playlist)
	}
	if d.Subscriptions == nil {
		d.Subscriptions = make(map[string]models.Subscription)
	}
}

// Storage is a mutex-guarded in-memory datastore persisted to a single JSON
// file. Every mutation rewrites the file atomically; a failed persist rolls
// the in-memory state back so the two never diverge.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	clock    func() time.Time
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
}

// Option mutates storage configuration.
type Option func(*Storage)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Storage) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewStorage opens (or creates) the JSON datastore at path.
func NewStorage(path string, opts ...Option) (*Storage, error) {
	store := &Storage{
		filePath: path,
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	file, err := os.Open(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.data = newDataset()
		return nil
	} else if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			s.data = newDataset()
			return nil
		}
		return fmt.Errorf("decode store file: %w", err)
	}

	s.data.ensureInitialized()

	return nil
}

func (s *Storage) persist() error {
	if s.persistOverride != nil {
		if err := s.persistOverride(s.data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush store file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	success = true
	return nil
}

func (s *Storage) now() time.Time {
	return s.clock()
}

func generateID() string {
	return uuid.NewString()
}

// Ping reports the store as reachable; the JSON store has no remote side.
func (s *Storage) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close flushes the current dataset to disk one final time.
func (s *Storage) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

func (s *Storage) profileLocked(userID string) models.PublicProfile {
	if user, ok := s.data.Users[userID]; ok {
		return user.Profile()
	}
	return models.PublicProfile{ID: userID}
}

func pageSlice[T any](items []T, page Page) []T {
	if page.Size <= 0 {
		return items
	}
	offset := page.Offset()
	if offset >= len(items) {
		return []T{}
	}
	end := offset + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// User operations

func (s *Storage) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	username, err := NormalizeUsername(params.Username)
	if err != nil {
		return models.User{}, fmt.Errorf("normalize username: %w", err)
	}
	email := NormalizeEmail(params.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.data.Users {
		if user.Username == username {
			return models.User{}, fmt.Errorf("username %s: %w", username, ErrConflict)
		}
		if user.Email == email {
			return models.User{}, fmt.Errorf("email %s: %w", email, ErrConflict)
		}
	}

	now := s.now()
	user := models.User{
		ID:            generateID(),
		Username:      username,
		Email:         email,
		FullName:      strings.TrimSpace(params.FullName),
		AvatarURL:     params.AvatarURL,
		CoverImageURL: params.CoverImageURL,
		PasswordHash:  params.PasswordHash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.data.Users[user.ID] = user
	if err := s.persist(); err != nil {
		delete(s.data.Users, user.ID)
		return models.User{}, err
	}
	return user, nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return user, nil
}

// FindUserByLogin resolves a login identifier that may be either a username
// or an email address.
func (s *Storage) FindUserByLogin(ctx context.Context, identifier string) (models.User, error) {
	email := NormalizeEmail(identifier)
	username, usernameErr := NormalizeUsername(identifier)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.data.Users {
		if user.Email == email {
			return user, nil
		}
		if usernameErr == nil && user.Username == username {
			return user, nil
		}
	}
	return models.User{}, fmt.Errorf("user %s: %w", identifier, ErrNotFound)
}

func (s *Storage) UpdateUser(ctx context.Context, id string, update UserUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	previous := user

	if update.Email != nil {
		email := NormalizeEmail(*update.Email)
		for otherID, other := range s.data.Users {
			if otherID != id && other.Email == email {
				return models.User{}, fmt.Errorf("email %s: %w", email, ErrConflict)
			}
		}
		user.Email = email
	}
	if update.FullName != nil {
		user.FullName = strings.TrimSpace(*update.FullName)
	}
	if update.AvatarURL != nil {
		user.AvatarURL = *update.AvatarURL
	}
	if update.CoverImageURL != nil {
		user.CoverImageURL = *update.CoverImageURL
	}
	user.UpdatedAt = s.now()

	s.data.Users[id] = user
	if err := s.persist(); err != nil {
		s.data.Users[id] = previous
		return models.User{}, err
	}
	return user, nil
}

func (s *Storage) SetUserPassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	previous := user

	user.PasswordHash = passwordHash
	user.UpdatedAt = s.now()

	s.data.Users[id] = user
	if err := s.persist(); err != nil {
		s.data.Users[id] = previous
		return err
	}
	return nil
}

func (s *Storage) SetRefreshToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	previous := user

	user.RefreshToken = token
	expiry := expiresAt.UTC()
	user.RefreshTokenExpiresAt = &expiry
	user.UpdatedAt = s.now()

	s.data.Users[id] = user
	if err := s.persist(); err != nil {
		s.data.Users[id] = previous
		return err
	}
	return nil
}

func (s *Storage) ClearRefreshToken(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	previous := user

	user.RefreshToken = ""
	user.RefreshTokenExpiresAt = nil
	user.UpdatedAt = s.now()

	s.data.Users[id] = user
	if err := s.persist(); err != nil {
		s.data.Users[id] = previous
		return err
	}
	return nil
}

// PurgeExpiredRefreshTokens clears refresh tokens whose expiry has passed and
// reports how many users were affected.
func (s *Storage) PurgeExpiredRefreshTokens(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := make(map[string]models.User)
	purged := 0
	for id, user := range s.data.Users {
		if user.RefreshToken == "" || user.RefreshTokenExpiresAt == nil {
			continue
		}
		if user.RefreshTokenExpiresAt.After(now) {
			continue
		}
		previous[id] = user
		user.RefreshToken = ""
		user.RefreshTokenExpiresAt = nil
		s.data.Users[id] = user
		purged++
	}
	if purged == 0 {
		return 0, nil
	}
	if err := s.persist(); err != nil {
		for id, user := range previous {
			s.data.Users[id] = user
		}
		return 0, err
	}
	return purged, nil
}

// Video operations

func (s *Storage) CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[params.OwnerID]; !ok {
		return models.Video{}, fmt.Errorf("user %s: %w", params.OwnerID, ErrNotFound)
	}

	now := s.now()
	video := models.Video{
		ID:              generateID(),
		OwnerID:         params.OwnerID,
		Title:           strings.TrimSpace(params.Title),
		Description:     strings.TrimSpace(params.Description),
		VideoURL:        params.VideoURL,
		ThumbnailURL:    params.ThumbnailURL,
		DurationSeconds: params.DurationSeconds,
		Published:       params.Published,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	s.data.Videos[video.ID] = video
	if err := s.persist(); err != nil {
		delete(s.data.Videos, video.ID)
		return models.Video{}, err
	}
	return video, nil
}

func (s *Storage) GetVideo(ctx context.Context, id string) (models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return video, nil
}

func (s *Storage) UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	previous := video

	if update.Title != nil {
		video.Title = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		video.Description = strings.TrimSpace(*update.Description)
	}
	if update.ThumbnailURL != nil {
		video.ThumbnailURL = *update.ThumbnailURL
	}
	if update.Published != nil {
		video.Published = *update.Published
	}
	video.UpdatedAt = s.now()

	s.data.Videos[id] = video
	if err := s.persist(); err != nil {
		s.data.Videos[id] = previous
		return models.Video{}, err
	}
	return video, nil
}

// DeleteVideo removes the video together with its comments, the likes
// pointing at the video or those comments, and any playlist references.
func (s *Storage) DeleteVideo(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}

	removedComments := make(map[string]models.Comment)
	for commentID, comment := range s.data.Comments {
		if comment.VideoID == id {
			removedComments[commentID] = comment
			delete(s.data.Comments, commentID)
		}
	}

	removedLikes := make(map[string]models.Like)
	for likeID, like := range s.data.Likes {
		switch like.TargetKind {
		case models.LikeTargetVideo:
			if like.TargetID != id {
				continue
			}
		case models.LikeTargetComment:
			if _, removed := removedComments[like.TargetID]; !removed {
				continue
			}
		default:
			continue
		}
		removedLikes[likeID] = like
		delete(s.data.Likes, likeID)
	}

	previousPlaylists := make(map[string]models.Playlist)
	for playlistID, playlist := range s.data.Playlists {
		if !playlist.Contains(id) {
			continue
		}
		previousPlaylists[playlistID] = playlist
		trimmed := playlist
		trimmed.VideoIDs = make([]string, 0, len(playlist.VideoIDs)-1)
		for _, videoID := range playlist.VideoIDs {
			if videoID != id {
				trimmed.VideoIDs = append(trimmed.VideoIDs, videoID)
			}
		}
		s.data.Playlists[playlistID] = trimmed
	}

	delete(s.data.Videos, id)
	if err := s.persist(); err != nil {
		s.data.Videos[id] = video
		for commentID, comment := range removedComments {
			s.data.Comments[commentID] = comment
		}
		for likeID, like := range removedLikes {
			s.data.Likes[likeID] = like
		}
		for playlistID, playlist := range previousPlaylists {
			s.data.Playlists[playlistID] = playlist
		}
		return err
	}
	return nil
}

func matchesFilter(video models.Video, filter VideoFilter) bool {
	if filter.PublishedOnly && !video.Published {
		return false
	}
	if filter.OwnerID != "" && video.OwnerID != filter.OwnerID {
		return false
	}
	if filter.Query != "" {
		if !strings.Contains(strings.ToLower(video.Title), strings.ToLower(filter.Query)) {
			return false
		}
	}
	return true
}

func sortVideos(videos []models.Video, sortBy string, ascending bool) {
	less := func(a, b models.Video) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch sortBy {
	case "views":
		less = func(a, b models.Video) bool { return a.Views < b.Views }
	case "duration":
		less = func(a, b models.Video) bool { return a.DurationSeconds < b.DurationSeconds }
	case "title":
		less = func(a, b models.Video) bool { return a.Title < b.Title }
	}
	sort.SliceStable(videos, func(i, j int) bool {
		if ascending {
			return less(videos[i], videos[j])
		}
		return less(videos[j], videos[i])
	})
}

func (s *Storage) ListVideos(ctx context.Context, filter VideoFilter, page Page) ([]VideoWithOwner, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]models.Video, 0)
	for _, video := range s.data.Videos {
		if matchesFilter(video, filter) {
			matched = append(matched, video)
		}
	}
	sortVideos(matched, filter.SortBy, filter.SortAscending)

	total := int64(len(matched))
	items := make([]VideoWithOwner, 0, page.Size)
	for _, video := range pageSlice(matched, page) {
		items = append(items, VideoWithOwner{Video: video, Owner: s.profileLocked(video.OwnerID)})
	}
	return items, total, nil
}

func (s *Storage) IncrementVideoViews(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	previous := video

	video.Views++
	s.data.Videos[id] = video
	if err := s.persist(); err != nil {
		s.data.Videos[id] = previous
		return err
	}
	return nil
}

// Comment operations

func (s *Storage) CreateComment(ctx context.Context, ownerID, videoID, content string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return models.Comment{}, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}

	now := s.now()
	comment := models.Comment{
		ID:        generateID(),
		OwnerID:   ownerID,
		VideoID:   videoID,
		Content:   strings.TrimSpace(content),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.data.Comments[comment.ID] = comment
	if err := s.persist(); err != nil {
		delete(s.data.Comments, comment.ID)
		return models.Comment{}, err
	}
	return comment, nil
}

func (s *Storage) GetComment(ctx context.Context, id string) (models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.data.Comments[id]
	if !ok {
		return models.Comment{}, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	return comment, nil
}

func (s *Storage) UpdateComment(ctx context.Context, id, content string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.data.Comments[id]
	if !ok {
		return models.Comment{}, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	previous := comment

	comment.Content = strings.TrimSpace(content)
	comment.UpdatedAt = s.now()

	s.data.Comments[id] = comment
	if err := s.persist(); err != nil {
		s.data.Comments[id] = previous
		return models.Comment{}, err
	}
	return comment, nil
}

func (s *Storage) DeleteComment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.data.Comments[id]
	if !ok {
		return fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}

	removedLikes := make(map[string]models.Like)
	for likeID, like := range s.data.Likes {
		if like.TargetKind == models.LikeTargetComment && like.TargetID == id {
			removedLikes[likeID] = like
			delete(s.data.Likes, likeID)
		}
	}

	delete(s.data.Comments, id)
	if err := s.persist(); err != nil {
		s.data.Comments[id] = comment
		for likeID, like := range removedLikes {
			s.data.Likes[likeID] = like
		}
		return err
	}
	return nil
}

func (s *Storage) ListVideoComments(ctx context.Context, videoID string, page Page) ([]CommentWithOwner, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return nil, 0, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}

	matched := make([]models.Comment, 0)
	for _, comment := range s.data.Comments {
		if comment.VideoID == videoID {
			matched = append(matched, comment)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[j].CreatedAt.Before(matched[i].CreatedAt)
	})

	total := int64(len(matched))
	items := make([]CommentWithOwner, 0, page.Size)
	for _, comment := range pageSlice(matched, page) {
		items = append(items, CommentWithOwner{Comment: comment, Owner: s.profileLocked(comment.OwnerID)})
	}
	return items, total, nil
}

// Tweet operations

func (s *Storage) CreateTweet(ctx context.Context, ownerID, content string) (models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[ownerID]; !ok {
		return models.Tweet{}, fmt.Errorf("user %s: %w", ownerID, ErrNotFound)
	}

	now := s.now()
	tweet := models.Tweet{
		ID:        generateID(),
		OwnerID:   ownerID,
		Content:   strings.TrimSpace(content),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.data.Tweets[tweet.ID] = tweet
	if err := s.persist(); err != nil {
		delete(s.data.Tweets, tweet.ID)
		return models.Tweet{}, err
	}
	return tweet, nil
}

func (s *Storage) GetTweet(ctx context.Context, id string) (models.Tweet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tweet, ok := s.data.Tweets[id]
	if !ok {
		return models.Tweet{}, fmt.Errorf("tweet %s: %w", id, ErrNotFound)
	}
	return tweet, nil
}

func (s *Storage) UpdateTweet(ctx context.Context, id, content string) (models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tweet, ok := s.data.Tweets[id]
	if !ok {
		return models.Tweet{}, fmt.Errorf("tweet %s: %w", id, ErrNotFound)
	}
	previous := tweet

	tweet.Content = strings.TrimSpace(content)
	tweet.UpdatedAt = s.now()

	s.data.Tweets[id] = tweet
	if err := s.persist(); err != nil {
		s.data.Tweets[id] = previous
		return models.Tweet{}, err
	}
	return tweet, nil
}

func (s *Storage) DeleteTweet(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tweet, ok := s.data.Tweets[id]
	if !ok {
		return fmt.Errorf("tweet %s: %w", id, ErrNotFound)
	}

	removedLikes := make(map[string]models.Like)
	for likeID, like := range s.data.Likes {
		if like.TargetKind == models.LikeTargetTweet && like.TargetID == id {
			removedLikes[likeID] = like
			delete(s.data.Likes, likeID)
		}
	}

	delete(s.data.Tweets, id)
	if err := s.persist(); err != nil {
		s.data.Tweets[id] = tweet
		for likeID, like := range removedLikes {
			s.data.Likes[likeID] = like
		}
		return err
	}
	return nil
}

func (s *Storage) ListUserTweets(ctx context.Context, userID string, page Page) ([]TweetWithOwner, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data.Users[userID]; !ok {
		return nil, 0, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	matched := make([]models.Tweet, 0)
	for _, tweet := range s.data.Tweets {
		if tweet.OwnerID == userID {
			matched = append(matched, tweet)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[j].CreatedAt.Before(matched[i].CreatedAt)
	})

	total := int64(len(matched))
	items := make([]TweetWithOwner, 0, page.Size)
	for _, tweet := range pageSlice(matched, page) {
		items = append(items, TweetWithOwner{Tweet: tweet, Owner: s.profileLocked(tweet.OwnerID)})
	}
	return items, total, nil
}

// Like operations

// ToggleLike removes an existing like for (userID, kind, targetID) or creates
// one, returning whether the target is liked afterwards.
func (s *Storage) ToggleLike(ctx context.Context, userID string, kind models.LikeTarget, targetID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for likeID, like := range s.data.Likes {
		if like.UserID == userID && like.TargetKind == kind && like.TargetID == targetID {
			delete(s.data.Likes, likeID)
			if err := s.persist(); err != nil {
				s.data.Likes[likeID] = like
				return false, err
			}
			return false, nil
		}
	}

	like := models.Like{
		ID:         generateID(),
		UserID:     userID,
		TargetKind: kind,
		TargetID:   targetID,
		CreatedAt:  s.now(),
	}
	s.data.Likes[like.ID] = like
	if err := s.persist(); err != nil {
		delete(s.data.Likes, like.ID)
		return false, err
	}
	return true, nil
}

func (s *Storage) ListLikedVideos(ctx context.Context, userID string) ([]VideoWithOwner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	likes := make([]models.Like, 0)
	for _, like := range s.data.Likes {
		if like.UserID == userID && like.TargetKind == models.LikeTargetVideo {
			likes = append(likes, like)
		}
	}
	sort.SliceStable(likes, func(i, j int) bool {
		return likes[j].CreatedAt.Before(likes[i].CreatedAt)
	})

	items := make([]VideoWithOwner, 0, len(likes))
	for _, like := range likes {
		video, ok := s.data.Videos[like.TargetID]
		if !ok {
			continue
		}
		items = append(items, VideoWithOwner{Video: video, Owner: s.profileLocked(video.OwnerID)})
	}
	return items, nil
}

// Playlist operations

func clonePlaylist(playlist models.Playlist) models.Playlist {
	cloned := playlist
	if playlist.VideoIDs != nil {
		cloned.VideoIDs = append([]string(nil), playlist.VideoIDs...)
	}
	return cloned
}

func (s *Storage) CreatePlaylist(ctx context.Context, ownerID, name, description string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[ownerID]; !ok {
		return models.Playlist{}, fmt.Errorf("user %s: %w", ownerID, ErrNotFound)
	}

	now := s.now()
	playlist := models.Playlist{
		ID:          generateID(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		VideoIDs:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.data.Playlists[playlist.ID] = playlist
	if err := s.persist(); err != nil {
		delete(s.data.Playlists, playlist.ID)
		return models.Playlist{}, err
	}
	return clonePlaylist(playlist), nil
}

func (s *Storage) GetPlaylist(ctx context.Context, id string) (models.Playlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	playlist, ok := s.data.Playlists[id]
	if !ok {
		return models.Playlist{}, fmt.Errorf("playlist %s: %w", id, ErrNotFound)
	}
	return clonePlaylist(playlist), nil
}

func (s *Storage) UpdatePlaylist(ctx context.Context, id, name, description string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist, ok := s.data.Playlists[id]
	if !ok {
		return models.Playlist{}, fmt.Errorf("playlist %s: %w", id, ErrNotFound)
	}
	previous := playlist

	playlist.Name = strings.TrimSpace(name)
	playlist.Description = strings.TrimSpace(description)
	playlist.UpdatedAt = s.now()

	s.data.Playlists[id] = playlist
	if err := s.persist(); err != nil {
		s.data.Playlists[id] = previous
		return models.Playlist{}, err
	}
	return clonePlaylist(playlist), nil
}

func (s *Storage) DeletePlaylist(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist, ok := s.data.Playlists[id]
	if !ok {
		return fmt.Errorf("playlist %s: %w", id, ErrNotFound)
	}

	delete(s.data.Playlists, id)
	if err := s.persist(); err != nil {
		s.data.Playlists[id] = playlist
		return err
	}
	return nil
}

func (s *Storage) ListUserPlaylists(ctx context.Context, ownerID string) ([]models.Playlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]models.Playlist, 0)
	for _, playlist := range s.data.Playlists {
		if playlist.OwnerID == ownerID {
			matched = append(matched, clonePlaylist(playlist))
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[j].CreatedAt.Before(matched[i].CreatedAt)
	})
	return matched, nil
}

// AddPlaylistVideo appends the video reference unless it is already present;
// the add is idempotent.
func (s *Storage) AddPlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist, ok := s.data.Playlists[playlistID]
	if !ok {
		return models.Playlist{}, fmt.Errorf("playlist %s: %w", playlistID, ErrNotFound)
	}
	if _, ok := s.data.Videos[videoID]; !ok {
		return models.Playlist{}, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	if playlist.Contains(videoID) {
		return clonePlaylist(playlist), nil
	}
	previous := playlist

	playlist.VideoIDs = append(append([]string(nil), playlist.VideoIDs...), videoID)
	playlist.UpdatedAt = s.now()

	s.data.Playlists[playlistID] = playlist
	if err := s.persist(); err != nil {
		s.data.Playlists[playlistID] = previous
		return models.Playlist{}, err
	}
	return clonePlaylist(playlist), nil
}

func (s *Storage) RemovePlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	playlist, ok := s.data.Playlists[playlistID]
	if !ok {
		return models.Playlist{}, fmt.Errorf("playlist %s: %w", playlistID, ErrNotFound)
	}
	if !playlist.Contains(videoID) {
		return models.Playlist{}, fmt.Errorf("playlist %s video %s: %w", playlistID, videoID, ErrVideoNotInPlaylist)
	}
	previous := playlist

	trimmed := make([]string, 0, len(playlist.VideoIDs)-1)
	for _, id := range playlist.VideoIDs {
		if id != videoID {
			trimmed = append(trimmed, id)
		}
	}
	playlist.VideoIDs = trimmed
	playlist.UpdatedAt = s.now()

	s.data.Playlists[playlistID] = playlist
	if err := s.persist(); err != nil {
		s.data.Playlists[playlistID] = previous
		return models.Playlist{}, err
	}
	return clonePlaylist(playlist), nil
}

// Subscription operations

// ToggleSubscription removes an existing subscription or creates one,
// returning whether the actor is subscribed afterwards. Self-subscription is
// rejected at the API layer.
func (s *Storage) ToggleSubscription(ctx context.Context, subscriberID, channelID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[channelID]; !ok {
		return false, fmt.Errorf("user %s: %w", channelID, ErrNotFound)
	}

	for subID, sub := range s.data.Subscriptions {
		if sub.SubscriberID == subscriberID && sub.ChannelID == channelID {
			delete(s.data.Subscriptions, subID)
			if err := s.persist(); err != nil {
				s.data.Subscriptions[subID] = sub
				return false, err
			}
			return false, nil
		}
	}

	sub := models.Subscription{
		ID:           generateID(),
		SubscriberID: subscriberID,
		ChannelID:    channelID,
		CreatedAt:    s.now(),
	}
	s.data.Subscriptions[sub.ID] = sub
	if err := s.persist(); err != nil {
		delete(s.data.Subscriptions, sub.ID)
		return false, err
	}
	return true, nil
}

func (s *Storage) ListChannelSubscribers(ctx context.Context, channelID string, page Page) ([]SubscriberEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data.Users[channelID]; !ok {
		return nil, 0, fmt.Errorf("user %s: %w", channelID, ErrNotFound)
	}

	matched := make([]models.Subscription, 0)
	for _, sub := range s.data.Subscriptions {
		if sub.ChannelID == channelID {
			matched = append(matched, sub)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[j].CreatedAt.Before(matched[i].CreatedAt)
	})

	total := int64(len(matched))
	items := make([]SubscriberEntry, 0, page.Size)
	for _, sub := range pageSlice(matched, page) {
		items = append(items, SubscriberEntry{
			Subscriber:   s.profileLocked(sub.SubscriberID),
			SubscribedAt: sub.CreatedAt,
		})
	}
	return items, total, nil
}

func (s *Storage) ListSubscribedChannels(ctx context.Context, subscriberID string, page Page) ([]ChannelEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]models.Subscription, 0)
	for _, sub := range s.data.Subscriptions {
		if sub.SubscriberID == subscriberID {
			matched = append(matched, sub)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[j].CreatedAt.Before(matched[i].CreatedAt)
	})

	total := int64(len(matched))
	items := make([]ChannelEntry, 0, page.Size)
	for _, sub := range pageSlice(matched, page) {
		items = append(items, ChannelEntry{
			Channel:      s.profileLocked(sub.ChannelID),
			SubscribedAt: sub.CreatedAt,
		})
	}
	return items, total, nil
}

// Dashboard operations

// ChannelStats aggregates totals across the channel's videos. A channel with
// no videos reports explicit zeroes.
func (s *Storage) ChannelStats(ctx context.Context, channelID string) (models.ChannelStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data.Users[channelID]; !ok {
		return models.ChannelStats{}, fmt.Errorf("user %s: %w", channelID, ErrNotFound)
	}

	stats := models.ChannelStats{ChannelID: channelID}
	owned := make(map[string]struct{})
	for id, video := range s.data.Videos {
		if video.OwnerID != channelID {
			continue
		}
		owned[id] = struct{}{}
		stats.TotalVideos++
		stats.TotalViews += video.Views
	}
	for _, like := range s.data.Likes {
		if like.TargetKind != models.LikeTargetVideo {
			continue
		}
		if _, ok := owned[like.TargetID]; ok {
			stats.TotalLikes++
		}
	}
	for _, sub := range s.data.Subscriptions {
		if sub.ChannelID == channelID {
			stats.TotalSubscribers++
		}
	}
	return stats, nil
}

func (s *Storage) ListChannelVideos(ctx context.Context, channelID string, includeUnpublished bool, page Page) ([]models.Video, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data.Users[channelID]; !ok {
		return nil, 0, fmt.Errorf("user %s: %w", channelID, ErrNotFound)
	}

	matched := make([]models.Video, 0)
	for _, video := range s.data.Videos {
		if video.OwnerID != channelID {
			continue
		}
		if !includeUnpublished && !video.Published {
			continue
		}
		matched = append(matched, video)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[j].CreatedAt.Before(matched[i].CreatedAt)
	})

	total := int64(len(matched))
	return pageSlice(matched, page), total, nil
}
