// Package media moves uploaded files from request-scoped temp storage into an
// S3-compatible object store and deletes remote assets that are no longer
// referenced.
package media

import (
	"context"
	"errors"
	"os"
)

// Kind labels what an asset is used for and selects its key prefix.
type Kind string

const (
	KindVideo     Kind = "videos"
	KindThumbnail Kind = "thumbnails"
	KindAvatar    Kind = "avatars"
	KindCover     Kind = "covers"
)

// Asset describes a stored object.
type Asset struct {
	URL             string
	Key             string
	DurationSeconds float64
}

// ErrUploaderDisabled is returned by the disabled uploader used when no
// object store is configured.
var ErrUploaderDisabled = errors.New("media uploads disabled")

// Uploader stores and removes media assets. Upload consumes the local file:
// implementations remove it whether or not the upload succeeds.
type Uploader interface {
	Upload(ctx context.Context, localPath string, kind Kind) (*Asset, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(url string) string
	Enabled() bool
}

// Disabled is an Uploader that rejects every upload. It lets the server boot
// without object-store credentials while keeping media endpoints honest.
type Disabled struct{}

func (Disabled) Upload(ctx context.Context, localPath string, kind Kind) (*Asset, error) {
	// the staged file is consumed even though the upload is rejected
	_ = os.Remove(localPath)
	return nil, ErrUploaderDisabled
}

func (Disabled) Delete(ctx context.Context, key string) error { return nil }

func (Disabled) KeyFromURL(url string) string { return "" }

func (Disabled) Enabled() bool { return false }

var _ Uploader = Disabled{}
