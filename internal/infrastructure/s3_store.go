package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"project_citabot/internal/interfaces"
)

// S3Store uploads media to an S3 compatible bucket.
type S3Store struct {
	s3        *s3.S3
	bucket    string
	publicURL string
}

type S3Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string // Base URL for object links; derived from the endpoint when empty
}

func NewS3Store(opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3: bucket name is empty")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	cfg := &aws.Config{
		Credentials: credentials.NewStaticCredentials(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Region:      aws.String(opts.Region),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("s3: create session: %w", err)
	}

	return &S3Store{
		s3:        s3.New(sess),
		bucket:    opts.Bucket,
		publicURL: objectBaseURL(opts),
	}, nil
}

var _ interfaces.MediaStore = (*S3Store)(nil)

func objectBaseURL(opts S3Options) string {
	if opts.PublicURL != "" {
		return strings.TrimRight(opts.PublicURL, "/")
	}
	if opts.Endpoint != "" {
		endpoint := strings.TrimRight(opts.Endpoint, "/")
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		return endpoint + "/" + opts.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
}

// Upload stores body under key and returns its URL.
func (s *S3Store) Upload(ctx context.Context, key string, body io.ReadSeeker, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key = strings.TrimLeft(key, "/")

	_, err := s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return s.publicURL + "/" + key, nil
}
