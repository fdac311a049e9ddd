package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"bailian-gateway/internal/config"
	"bailian-gateway/internal/logger"
	"bailian-gateway/internal/pkg/errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Media types a multimodal message can reference.
var allowedMediaTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"video/mp4":  ".mp4",
}

type UploadedMedia struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// MediaStore persists an object and returns its public URL.
type MediaStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type S3MediaStore struct {
	client        *s3.S3
	bucket        string
	region        string
	publicBaseURL string
}

// NewS3MediaStore uses the default AWS credential chain. Endpoint may point
// at any S3-compatible service such as Aliyun OSS.
func NewS3MediaStore(cfg config.MediaConfig) (*S3MediaStore, error) {
	return newS3MediaStore(cfg, nil)
}

func newS3MediaStore(cfg config.MediaConfig, creds *credentials.Credentials) (*S3MediaStore, error) {
	awsCfg := &aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: creds,
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage session: %v", err)
	}

	return &S3MediaStore{
		client:        s3.New(sess),
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func (s *S3MediaStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key, nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

// MediaService stores files users attach to multimodal messages.
type MediaService interface {
	Upload(ctx context.Context, userID uuid.UUID, filename string, data []byte) (*UploadedMedia, error)
}

type mediaService struct {
	store    MediaStore
	maxBytes int64
}

func NewMediaService(store MediaStore, maxBytes int64) MediaService {
	return &mediaService{store: store, maxBytes: maxBytes}
}

// Upload sniffs the content type from the bytes rather than trusting the
// client.
func (s *mediaService) Upload(ctx context.Context, userID uuid.UUID, filename string, data []byte) (*UploadedMedia, error) {
	if len(data) == 0 {
		return nil, errors.Validation(errors.ErrInvalidInput, "File is empty")
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, errors.Validation(errors.ErrInvalidInput, "File size exceeds the maximum allowed limit")
	}

	contentType := mimetype.Detect(data).String()
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	ext, ok := allowedMediaTypes[contentType]
	if !ok {
		return nil, errors.Validation(errors.ErrInvalidInput, fmt.Sprintf("Unsupported media type %s", contentType))
	}

	key := path.Join("uploads", userID.String(), uuid.NewString()+ext)
	url, err := s.store.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store upload")
	}

	logger.WithContext(ctx).WithFields(logrus.Fields{
		"user_id":      userID.String(),
		"key":          key,
		"content_type": contentType,
		"size":         len(data),
		"filename":     filename,
	}).Info("Media uploaded")

	return &UploadedMedia{URL: url, Key: key, ContentType: contentType, Size: len(data)}, nil
}
