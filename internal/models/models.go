// Package models defines the persistent entities shared by the storage
// backends and the HTTP API.
package models

import "time"

// User is an account holder. Every user doubles as a channel that other
// users can subscribe to. PasswordHash and the refresh-token fields are
// never serialized into API responses.
type User struct {
	ID                    string     `json:"id"`
	Username              string     `json:"username"`
	Email                 string     `json:"email"`
	FullName              string     `json:"fullName"`
	AvatarURL             string     `json:"avatarUrl"`
	CoverImageURL         string     `json:"coverImageUrl,omitempty"`
	PasswordHash          string     `json:"-"`
	RefreshToken          string     `json:"-"`
	RefreshTokenExpiresAt *time.Time `json:"-"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// Video is an uploaded clip owned by a single user.
type Video struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"ownerId"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	VideoURL        string    `json:"videoUrl"`
	ThumbnailURL    string    `json:"thumbnailUrl"`
	DurationSeconds float64   `json:"durationSeconds"`
	Views           int64     `json:"views"`
	Published       bool      `json:"published"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Comment is attached to exactly one video.
type Comment struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	VideoID   string    `json:"videoId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Tweet is a short free-standing post.
type Tweet struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LikeTarget enumerates the entity kinds a like may point at. A like row
// references exactly one target kind.
type LikeTarget string

const (
	LikeTargetVideo   LikeTarget = "video"
	LikeTargetComment LikeTarget = "comment"
	LikeTargetTweet   LikeTarget = "tweet"
)

// Like is a join row; its existence means "liked".
type Like struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	TargetKind LikeTarget `json:"targetKind"`
	TargetID   string     `json:"targetId"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Playlist groups video references with set semantics.
type Playlist struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	VideoIDs    []string  `json:"videoIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Contains reports whether the playlist already references the video.
func (p Playlist) Contains(videoID string) bool {
	for _, id := range p.VideoIDs {
		if id == videoID {
			return true
		}
	}
	return false
}

// Subscription is a join row between a subscriber and a channel user.
type Subscription struct {
	ID           string    `json:"id"`
	SubscriberID string    `json:"subscriberId"`
	ChannelID    string    `json:"channelId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicProfile is the denormalized owner summary embedded in listings.
type PublicProfile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl"`
}

// Profile returns the public projection of a user.
func (u User) Profile() PublicProfile {
	return PublicProfile{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
	}
}

// ChannelStats aggregates a channel's totals. A channel with no videos
// reports explicit zeroes rather than missing fields.
type ChannelStats struct {
	ChannelID        string `json:"channelId"`
	TotalViews       int64  `json:"totalViews"`
	TotalVideos      int64  `json:"totalVideos"`
	TotalSubscribers int64  `json:"totalSubscribers"`
	TotalLikes       int64  `json:"totalLikes"`
}
