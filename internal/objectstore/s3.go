package objectstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/models"
)

const defaultPartSize = 5 * 1024 * 1024

type Config struct {
	// Bucket to keep objects in
	// Required to be set
	Bucket string

	Region string

	// S3 compatible endpoint (minio, r2, ...), AWS is used if empty
	Endpoint string

	// Base url objects are served from, for example CDN address
	// If not set objects are addressed as <endpoint>/<bucket>/<key>
	PublicBaseURL string

	// Static credentials, default AWS chain is used if empty
	AccessKeyID     string
	SecretAccessKey string

	// Key prefix for every uploaded object
	Prefix string
}

// S3Store keeps media objects in S3 compatible storage
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	baseURL  string
	prefix   string
}

func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 store: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = defaultPartSize
		u.LeavePartsOnError = false
	})

	baseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if baseURL == "" && cfg.Endpoint != "" {
		baseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3Store{
		client:   client,
		uploader: uploader,
		bucket:   cfg.Bucket,
		baseURL:  baseURL,
		prefix:   strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Upload stores bytes under a fresh key
// Returned object id is the key itself
func (s *S3Store) Upload(ctx context.Context, u models.Upload) (models.MediaObject, error) {
	if u.Body == nil {
		return models.MediaObject{}, errors.New("s3 store: empty body")
	}

	key := objectKey(s.prefix, uuid.NewString(), u.Name)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   manager.ReadSeekCloser(u.Body),
	}
	if u.ContentType != "" {
		input.ContentType = aws.String(u.ContentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return models.MediaObject{}, fmt.Errorf("s3 store upload %s: %w", key, err)
	}

	return models.MediaObject{ID: key, URL: s.baseURL + "/" + key}, nil
}

// Delete removes object by its key
// Deleting absent key is not an error for S3
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("s3 store: empty key")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("s3 store delete %s: %w", id, err)
	}
	return nil
}

// Key is <prefix>/<id><ext>: original names are never part of the key
func objectKey(prefix string, id string, name string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(name, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	if prefix == "" {
		return id + ext
	}
	return prefix + "/" + id + ext
}
