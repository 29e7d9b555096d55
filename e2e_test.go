//go:build e2e

package main

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/deploykit/site-deploy/internal/config"
	"github.com/deploykit/site-deploy/internal/deployer"
	"github.com/deploykit/site-deploy/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	localstackEndpoint = "http://localhost:4566"
	testSourceBucket   = "test-artifacts"
	testSourceFolder   = "builds/site"
	testDestBucket     = "test-website"
)

var siteFiles = map[string]string{
	"index.html":     "<html><body>hello</body></html>",
	"assets/app.js":  "console.log('hello')",
	"assets/app.css": "body { margin: 0 }",
}

func newLocalStackSession() *session.Session {
	return session.Must(session.NewSession(&aws.Config{
		Region:           aws.String("us-east-1"),
		Endpoint:         aws.String(localstackEndpoint),
		Credentials:      credentials.NewStaticCredentials("test", "test", ""),
		S3ForcePathStyle: aws.Bool(true),
	}))
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func setupBuckets(t *testing.T, sess *session.Session) *s3.S3 {
	t.Helper()
	client := s3.New(sess)

	for _, bucket := range []string{testSourceBucket, testDestBucket} {
		_, err := client.CreateBucket(&s3.CreateBucketInput{
			Bucket: aws.String(bucket),
		})
		if err != nil {
			t.Logf("Bucket may already exist: %v", err)
		}
	}

	// The single artifact the discovery stage must find.
	_, err := client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(testSourceBucket),
		Key:    aws.String(testSourceFolder + "/app.zip"),
		Body:   bytes.NewReader(zipBytes(t, siteFiles)),
	})
	require.NoError(t, err)

	// A stale object the mirror-sync must delete.
	_, err = client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(testDestBucket),
		Key:    aws.String("old/removed.html"),
		Body:   bytes.NewReader([]byte("stale")),
	})
	require.NoError(t, err)

	return client
}

func destObject(t *testing.T, client *s3.S3, key string) string {
	t.Helper()
	resp, err := client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(testDestBucket),
		Key:    aws.String(key),
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(content)
}

func TestE2E_Deploy(t *testing.T) {
	sess := newLocalStackSession()
	client := setupBuckets(t, sess)

	downloadDir := t.TempDir()
	extractDir := filepath.Join(t.TempDir(), "website")

	cfg := config.Config{
		SourceBucket: testSourceBucket,
		SourceFolder: testSourceFolder,
		DestBucket:   testDestBucket,
		DownloadDir:  downloadDir,
		ExtractDir:   extractDir,
	}

	err := deployer.New(sess).Run(context.Background(), cfg)
	require.NoError(t, err)

	// Destination mirrors the site.
	for name, content := range siteFiles {
		assert.Equal(t, content, destObject(t, client, name))
	}

	// Stale object was pruned.
	_, err = client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(testDestBucket),
		Key:    aws.String("old/removed.html"),
	})
	assert.Error(t, err)

	// Without the cleanup flag the local artifacts remain.
	_, err = os.Stat(filepath.Join(downloadDir, "app.zip"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(extractDir, "index.html"))
	assert.NoError(t, err)
}

func TestE2E_DeployWithCleanup(t *testing.T) {
	sess := newLocalStackSession()
	setupBuckets(t, sess)

	downloadDir := t.TempDir()
	extractDir := filepath.Join(t.TempDir(), "website")

	cfg := config.Config{
		SourceBucket: testSourceBucket,
		SourceFolder: testSourceFolder,
		DestBucket:   testDestBucket,
		DownloadDir:  downloadDir,
		ExtractDir:   extractDir,
		Cleanup:      true,
	}

	require.NoError(t, deployer.New(sess).Run(context.Background(), cfg))

	_, err := os.Stat(filepath.Join(downloadDir, "app.zip"))
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(extractDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestE2E_ArtifactNotFound(t *testing.T) {
	sess := newLocalStackSession()
	setupBuckets(t, sess)

	cfg := config.Config{
		SourceBucket: testSourceBucket,
		SourceFolder: "builds/empty",
		DestBucket:   testDestBucket,
		DownloadDir:  t.TempDir(),
		ExtractDir:   filepath.Join(t.TempDir(), "website"),
	}

	err := deployer.New(sess).Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, types.KindArtifactNotFound, types.KindOf(err))
}

func TestE2E_LambdaEvent(t *testing.T) {
	sess := newLocalStackSession()
	client := setupBuckets(t, sess)

	t.Setenv("DEST_BUCKET", testDestBucket)
	t.Setenv("DOWNLOAD_DIR", t.TempDir())
	t.Setenv("EXTRACT_DIR", filepath.Join(t.TempDir(), "website"))

	event := events.S3Event{
		Records: []events.S3EventRecord{
			{S3: events.S3Entity{
				Bucket: events.S3Bucket{Name: testSourceBucket},
				Object: events.S3Object{Key: testSourceFolder + "/app.zip"},
			}},
		},
	}

	require.NoError(t, deployer.New(sess).HandleS3Event(context.Background(), event))
	assert.Equal(t, siteFiles["index.html"], destObject(t, client, "index.html"))
}
