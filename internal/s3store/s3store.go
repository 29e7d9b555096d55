// Package s3store reads build artifacts from S3.
package s3store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/deploykit/site-deploy/internal/types"
)

// S3API defines the S3 operations used by Store.
type S3API interface {
	ListObjectsV2(input *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error)
	GetObject(input *s3.GetObjectInput) (*s3.GetObjectOutput, error)
}

// Store lists and fetches objects from S3.
type Store struct {
	s3 S3API
}

// New creates a Store.
func New(client S3API) *Store {
	return &Store{s3: client}
}

// List returns all objects under bucket/prefix, recursively.
func (s *Store) List(ctx context.Context, bucket, prefix string) ([]types.ObjectInfo, error) {
	var objects []types.ObjectInfo

	var token *string
	for {
		resp, err := s.s3.ListObjectsV2(&s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}

		for _, item := range resp.Contents {
			objects = append(objects, types.ObjectInfo{
				Bucket: bucket,
				Key:    *item.Key,
			})
		}

		if resp.IsTruncated == nil || !*resp.IsTruncated {
			break
		}
		token = resp.NextContinuationToken
	}

	return objects, nil
}

// Download streams an object to destPath, creating parent directories as needed.
func (s *Store) Download(ctx context.Context, obj types.ObjectInfo, destPath string) error {
	resp, err := s.s3.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		return fmt.Errorf("get object %s: %w", obj.URL(), err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", destPath, err)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return f.Close()
}
