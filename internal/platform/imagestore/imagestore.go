// Package imagestore archives scanned meal photos.
package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"nutritrack/internal/capture"
	"nutritrack/internal/meal"
)

// DiskStore writes images under a local directory as <hash><ext>.
type DiskStore struct {
	Dir string
}

// NewDiskStore creates the directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}
	return &DiskStore{Dir: dir}, nil
}

// Save writes img and returns its path. An existing file for the same hash is
// left in place.
func (d *DiskStore) Save(ctx context.Context, hash string, img meal.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", capture.ErrEmptyImage
	}
	imagePath := filepath.Join(d.Dir, hash+capture.Extension(img))
	if _, err := os.Stat(imagePath); err == nil {
		return imagePath, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to stat image file: %w", err)
	}

	tmp, err := os.CreateTemp(d.Dir, hash+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(img.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := os.Rename(tmp.Name(), imagePath); err != nil {
		return "", fmt.Errorf("failed to move image file: %w", err)
	}
	return imagePath, nil
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads images to a bucket under the meals/ prefix.
type S3Store struct {
	client objectPutter
	bucket string
}

// NewS3Store loads the default AWS configuration for region.
func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config for S3: %w", err)
	}
	return &S3Store{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// Save uploads img and returns its s3:// location.
func (s *S3Store) Save(ctx context.Context, hash string, img meal.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", capture.ErrEmptyImage
	}
	key := "meals/" + hash + capture.Extension(img)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(img.MIMEType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
