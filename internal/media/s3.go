package media

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config targets an S3-compatible object store. Endpoint is optional and
// used for MinIO-style deployments.
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
}

// DurationProber extracts a media duration in seconds from a local file.
// S3 reports no media metadata, so probing happens before upload.
type DurationProber func(path string) (float64, error)

// S3Uploader stores assets in a bucket using multipart uploads.
type S3Uploader struct {
	uploader *manager.Uploader
	client   *s3.Client
	bucket   string
	baseURL  string
	prober   DurationProber
}

// NewS3Uploader configures an uploader targeting the provided object store.
// The prober may be nil, in which case video durations are reported as zero.
func NewS3Uploader(ctx context.Context, cfg S3Config, prober DurationProber) (*S3Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 uploader: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if strings.TrimSpace(cfg.Endpoint) != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	return &S3Uploader{
		uploader: uploader,
		client:   client,
		bucket:   cfg.Bucket,
		baseURL:  strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		prober:   prober,
	}, nil
}

// Upload pushes the local file into the bucket under a generated key and
// removes the local file on every path.
func (s *S3Uploader) Upload(ctx context.Context, localPath string, kind Kind) (*Asset, error) {
	defer os.Remove(localPath)

	file, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", localPath, err)
	}
	defer file.Close()

	var duration float64
	if kind == KindVideo && s.prober != nil {
		probed, probeErr := s.prober(localPath)
		if probeErr != nil {
			return nil, fmt.Errorf("probe duration %s: %w", localPath, probeErr)
		}
		duration = probed
	}

	ext := strings.ToLower(filepath.Ext(localPath))
	key := fmt.Sprintf("%s/%s%s", kind, uuid.NewString(), ext)
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	return &Asset{
		URL:             s.publicURL(key),
		Key:             key,
		DurationSeconds: duration,
	}, nil
}

// Delete removes a stored object. Deleting a missing key is not an error.
func (s *S3Uploader) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// KeyFromURL maps a public asset URL back to its object key. Returns an
// empty string for URLs outside the configured base.
func (s *S3Uploader) KeyFromURL(url string) string {
	if s.baseURL == "" || url == "" {
		return ""
	}
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}

func (s *S3Uploader) publicURL(key string) string {
	if s.baseURL == "" {
		return key
	}
	return s.baseURL + "/" + key
}

func (s *S3Uploader) Enabled() bool { return true }

var _ Uploader = (*S3Uploader)(nil)
