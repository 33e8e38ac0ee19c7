package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/secure/precis"

	"vidtube/internal/models"
)

var (
	// ErrNotFound reports that a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a uniqueness violation (duplicate username/email).
	ErrConflict = errors.New("already exists")
	// ErrVideoNotInPlaylist reports a removal of a video the playlist does not reference.
	ErrVideoNotInPlaylist = errors.New("video not in playlist")
)

// Page selects a slice of a listing. Number is 1-based. Callers are
// responsible for rejecting non-positive values before building a Page.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of leading records to skip.
func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// CreateUserParams captures the attributes set at registration. Password
// hashing happens at the API boundary; storage only sees the hash.
type CreateUserParams struct {
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
}

// UserUpdate represents the mutable account fields. Nil pointers leave the
// stored value untouched.
type UserUpdate struct {
	Email         *string
	FullName      *string
	AvatarURL     *string
	CoverImageURL *string
}

// CreateVideoParams captures the attributes set when publishing a video.
type CreateVideoParams struct {
	OwnerID         string
	Title           string
	Description     string
	VideoURL        string
	ThumbnailURL    string
	DurationSeconds float64
	Published       bool
}

// VideoUpdate represents the mutable video fields.
type VideoUpdate struct {
	Title        *string
	Description  *string
	ThumbnailURL *string
	Published    *bool
}

// VideoFilter narrows the public video listing.
type VideoFilter struct {
	OwnerID       string
	Query         string
	PublishedOnly bool
	SortBy        string
	SortAscending bool
}

// VideoWithOwner pairs a video with its owner's public profile for listings.
type VideoWithOwner struct {
	models.Video
	Owner models.PublicProfile `json:"owner"`
}

// CommentWithOwner pairs a comment with its owner's public profile.
type CommentWithOwner struct {
	models.Comment
	Owner models.PublicProfile `json:"owner"`
}

// TweetWithOwner pairs a tweet with its owner's public profile.
type TweetWithOwner struct {
	models.Tweet
	Owner models.PublicProfile `json:"owner"`
}

// SubscriberEntry is one row of a channel's subscriber listing.
type SubscriberEntry struct {
	Subscriber   models.PublicProfile `json:"subscriber"`
	SubscribedAt time.Time            `json:"subscribedAt"`
}

// ChannelEntry is one row of a user's subscribed-channel listing.
type ChannelEntry struct {
	Channel      models.PublicProfile `json:"channel"`
	SubscribedAt time.Time            `json:"subscribedAt"`
}

// Repository exposes the datastore operations required by the API handlers
// and the background refresh-token purger.
type Repository interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	FindUserByLogin(ctx context.Context, identifier string) (models.User, error)
	UpdateUser(ctx context.Context, id string, update UserUpdate) (models.User, error)
	SetUserPassword(ctx context.Context, id, passwordHash string) error
	SetRefreshToken(ctx context.Context, id, token string, expiresAt time.Time) error
	ClearRefreshToken(ctx context.Context, id string) error
	PurgeExpiredRefreshTokens(ctx context.Context, now time.Time) (int, error)

	CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error)
	GetVideo(ctx context.Context, id string) (models.Video, error)
	UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error)
	DeleteVideo(ctx context.Context, id string) error
	ListVideos(ctx context.Context, filter VideoFilter, page Page) ([]VideoWithOwner, int64, error)
	IncrementVideoViews(ctx context.Context, id string) error

	CreateComment(ctx context.Context, ownerID, videoID, content string) (models.Comment, error)
	GetComment(ctx context.Context, id string) (models.Comment, error)
	UpdateComment(ctx context.Context, id, content string) (models.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ListVideoComments(ctx context.Context, videoID string, page Page) ([]CommentWithOwner, int64, error)

	CreateTweet(ctx context.Context, ownerID, content string) (models.Tweet, error)
	GetTweet(ctx context.Context, id string) (models.Tweet, error)
	UpdateTweet(ctx context.Context, id, content string) (models.Tweet, error)
	DeleteTweet(ctx context.Context, id string) error
	ListUserTweets(ctx context.Context, userID string, page Page) ([]TweetWithOwner, int64, error)

	ToggleLike(ctx context.Context, userID string, kind models.LikeTarget, targetID string) (bool, error)
	ListLikedVideos(ctx context.Context, userID string) ([]VideoWithOwner, error)

	CreatePlaylist(ctx context.Context, ownerID, name, description string) (models.Playlist, error)
	GetPlaylist(ctx context.Context, id string) (models.Playlist, error)
	UpdatePlaylist(ctx context.Context, id, name, description string) (models.Playlist, error)
	DeletePlaylist(ctx context.Context, id string) error
	ListUserPlaylists(ctx context.Context, ownerID string) ([]models.Playlist, error)
	AddPlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error)
	RemovePlaylistVideo(ctx context.Context, playlistID, videoID string) (models.Playlist, error)

	ToggleSubscription(ctx context.Context, subscriberID, channelID string) (bool, error)
	ListChannelSubscribers(ctx context.Context, channelID string, page Page) ([]SubscriberEntry, int64, error)
	ListSubscribedChannels(ctx context.Context, subscriberID string, page Page) ([]ChannelEntry, int64, error)

	ChannelStats(ctx context.Context, channelID string) (models.ChannelStats, error)
	ListChannelVideos(ctx context.Context, channelID string, includeUnpublished bool, page Page) ([]models.Video, int64, error)
}

var usernameProfile = precis.UsernameCaseMapped

// NormalizeUsername case-maps and validates a username using the PRECIS
// UsernameCaseMapped profile so that lookups and uniqueness checks are
// case-insensitive across both storage backends.
func NormalizeUsername(username string) (string, error) {
	normalized, err := usernameProfile.String(strings.TrimSpace(username))
	if err != nil {
		return "", err
	}
	return normalized, nil
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ Repository = (*Storage)(nil)
