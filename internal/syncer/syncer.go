// Package syncer mirrors a local directory to an S3 bucket. The mirror is
// one-way: new and changed files are uploaded with a public-read ACL, and
// remote objects with no local counterpart are deleted.
package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"golang.org/x/sync/errgroup"
)

const (
	maxConcurrency = 10
	deleteBatch    = 1000 // DeleteObjects API limit
	objectACL      = "public-read"
)

// S3API defines the S3 operations used by Syncer.
type S3API interface {
	ListObjectsV2(input *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error)
	PutObject(input *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	DeleteObjects(input *s3.DeleteObjectsInput) (*s3.DeleteObjectsOutput, error)
}

// Syncer uploads a directory tree to a bucket and prunes extraneous objects.
type Syncer struct {
	s3 S3API
}

// New creates a Syncer.
func New(client S3API) *Syncer {
	return &Syncer{s3: client}
}

type localFile struct {
	path    string // absolute path on disk
	size    int64
	modTime time.Time
}

type remoteObject struct {
	size         int64
	lastModified time.Time
}

// Sync mirrors localDir to the root of bucket.
func (s *Syncer) Sync(ctx context.Context, localDir, bucket string) error {
	local, err := scanLocal(localDir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", localDir, err)
	}

	remote, err := s.scanRemote(bucket)
	if err != nil {
		return fmt.Errorf("list bucket %s: %w", bucket, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)

	var uploaded, skipped int64
	var mu sync.Mutex

	for key, f := range local {
		if obj, ok := remote[key]; ok && unchanged(f, obj) {
			mu.Lock()
			skipped++
			mu.Unlock()
			continue
		}
		key, f := key, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.upload(bucket, key, f); err != nil {
				return err
			}
			mu.Lock()
			uploaded++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	deleted, err := s.deleteExtraneous(bucket, local, remote)
	if err != nil {
		return err
	}

	slog.Info("sync summary", "bucket", bucket,
		"uploaded", uploaded, "skipped", skipped, "deleted", deleted)
	return nil
}

// scanLocal walks dir and returns regular files keyed by their object key.
func scanLocal(dir string) (map[string]localFile, error) {
	files := make(map[string]localFile)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = localFile{
			path:    path,
			size:    info.Size(),
			modTime: info.ModTime(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (s *Syncer) scanRemote(bucket string) (map[string]remoteObject, error) {
	objects := make(map[string]remoteObject)

	var token *string
	for {
		resp, err := s.s3.ListObjectsV2(&s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Contents {
			obj := remoteObject{size: *item.Size}
			if item.LastModified != nil {
				obj.lastModified = *item.LastModified
			}
			objects[*item.Key] = obj
		}

		if resp.IsTruncated == nil || !*resp.IsTruncated {
			break
		}
		token = resp.NextContinuationToken
	}

	return objects, nil
}

// unchanged reports whether the remote copy can be kept: same size and not
// older than the local file.
func unchanged(f localFile, obj remoteObject) bool {
	return f.size == obj.size && !obj.lastModified.Before(f.modTime)
}

func (s *Syncer) upload(bucket, key string, f localFile) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   file,
		ACL:    aws.String(objectACL),
	}
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.s3.PutObject(input); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	slog.Info("uploaded", "bucket", bucket, "key", key, "size", f.size)
	return nil
}

// deleteExtraneous removes remote objects that have no local counterpart.
func (s *Syncer) deleteExtraneous(bucket string, local map[string]localFile, remote map[string]remoteObject) (int, error) {
	var stale []*s3.ObjectIdentifier
	for key := range remote {
		if _, ok := local[key]; !ok {
			stale = append(stale, &s3.ObjectIdentifier{Key: aws.String(key)})
		}
	}

	for start := 0; start < len(stale); start += deleteBatch {
		end := start + deleteBatch
		if end > len(stale) {
			end = len(stale)
		}
		_, err := s.s3.DeleteObjects(&s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3.Delete{Objects: stale[start:end]},
		})
		if err != nil {
			return 0, fmt.Errorf("delete extraneous objects: %w", err)
		}
	}

	return len(stale), nil
}
