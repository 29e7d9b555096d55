// Package deployer runs the deploy pipeline: discover the build artifact in
// the source bucket, fetch it, unpack it locally, and mirror the result to
// the destination bucket. Stages run in order and the first failure aborts
// the run with a kind-tagged error; nothing is rolled back.
package deployer

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/deploykit/site-deploy/internal/archive"
	"github.com/deploykit/site-deploy/internal/config"
	"github.com/deploykit/site-deploy/internal/s3store"
	"github.com/deploykit/site-deploy/internal/syncer"
	"github.com/deploykit/site-deploy/internal/types"
	"github.com/deploykit/site-deploy/internal/workspace"
)

// ObjectStore lists and fetches artifacts from source storage.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]types.ObjectInfo, error)
	Download(ctx context.Context, obj types.ObjectInfo, destPath string) error
}

// Extractor unpacks a fetched archive into a directory.
type Extractor interface {
	Extract(archivePath, destDir string) error
}

// Syncer mirrors a local directory to destination storage.
type Syncer interface {
	Sync(ctx context.Context, localDir, bucket string) error
}

// Workspace performs local filesystem mutations. Its methods return
// kind-tagged errors so mkdir and remove failures stay distinguishable.
type Workspace interface {
	EnsureEmptyDir(path string) error
	RemoveFile(path string) error
	ClearDir(path string) error
}

// Deployer executes the deploy pipeline against its collaborators.
type Deployer struct {
	store     ObjectStore
	extractor Extractor
	syncer    Syncer
	ws        Workspace
}

// New creates a Deployer with real AWS-backed collaborators.
func New(sess *session.Session) *Deployer {
	client := s3.New(sess)
	return &Deployer{
		store:     s3store.New(client),
		extractor: archive.New(),
		syncer:    syncer.New(client),
		ws:        workspace.New(),
	}
}

// NewWithDeps creates a Deployer with explicit dependencies (for testing).
func NewWithDeps(store ObjectStore, extractor Extractor, sync Syncer, ws Workspace) *Deployer {
	return &Deployer{store: store, extractor: extractor, syncer: sync, ws: ws}
}

// Run executes one full deploy: discovery through optional cleanup.
func (d *Deployer) Run(ctx context.Context, cfg config.Config) error {
	obj, err := d.discover(ctx, cfg)
	if err != nil {
		return err
	}
	return d.deploy(ctx, cfg, obj)
}

// discover lists the source folder and requires exactly one artifact.
func (d *Deployer) discover(ctx context.Context, cfg config.Config) (types.ObjectInfo, error) {
	slog.Info("discovering artifact", "bucket", cfg.SourceBucket, "folder", cfg.SourceFolder)

	objects, err := d.store.List(ctx, cfg.SourceBucket, cfg.SourceFolder)
	if err != nil {
		return types.ObjectInfo{}, types.E(types.KindCopyFailed,
			"list s3://%s/%s: %w", cfg.SourceBucket, cfg.SourceFolder, err)
	}

	switch len(objects) {
	case 0:
		return types.ObjectInfo{}, types.E(types.KindArtifactNotFound,
			"no artifact under s3://%s/%s", cfg.SourceBucket, cfg.SourceFolder)
	case 1:
		slog.Info("found artifact", "key", objects[0].Key)
		return objects[0], nil
	}
	return types.ObjectInfo{}, types.E(types.KindAmbiguousArtifact,
		"%d objects under s3://%s/%s, expected exactly one",
		len(objects), cfg.SourceBucket, cfg.SourceFolder)
}

// deploy runs stages 3-7 for an already-known artifact.
func (d *Deployer) deploy(ctx context.Context, cfg config.Config, obj types.ObjectInfo) error {
	archivePath := filepath.Join(cfg.DownloadDir, path.Base(obj.Key))

	slog.Info("fetching artifact", "from", obj.URL(), "to", archivePath)
	if err := d.store.Download(ctx, obj, archivePath); err != nil {
		return types.E(types.KindCopyFailed, "fetch %s: %w", obj.URL(), err)
	}
	slog.Info("fetched artifact", "path", archivePath)

	slog.Info("preparing extract dir", "dir", cfg.ExtractDir)
	if err := d.ws.EnsureEmptyDir(cfg.ExtractDir); err != nil {
		return err
	}

	slog.Info("extracting", "archive", archivePath, "dir", cfg.ExtractDir)
	if err := d.extractor.Extract(archivePath, cfg.ExtractDir); err != nil {
		return types.E(types.KindUnzipFailed, "extract %s: %w", archivePath, err)
	}
	slog.Info("extracted", "dir", cfg.ExtractDir)

	slog.Info("syncing site", "dir", cfg.ExtractDir, "bucket", cfg.DestBucket)
	if err := d.syncer.Sync(ctx, cfg.ExtractDir, cfg.DestBucket); err != nil {
		return types.E(types.KindSyncFailed, "sync to %s: %w", cfg.DestBucket, err)
	}
	slog.Info("synced site", "bucket", cfg.DestBucket)

	if cfg.Cleanup {
		slog.Info("cleaning up", "archive", archivePath, "dir", cfg.ExtractDir)
		if err := d.ws.RemoveFile(archivePath); err != nil {
			return err
		}
		if err := d.ws.ClearDir(cfg.ExtractDir); err != nil {
			return err
		}
		slog.Info("cleaned up")
	}

	slog.Info("deploy complete", "artifact", obj.URL(), "bucket", cfg.DestBucket)
	return nil
}

// HandleS3Event deploys each artifact named in an S3 object-created event.
// Records are deployed one at a time: concurrent mirror-syncs into the same
// destination bucket would race on the delete-extraneous pass.
func (d *Deployer) HandleS3Event(ctx context.Context, event events.S3Event) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("lambda config: %w", err)
	}

	for _, r := range event.Records {
		obj := types.ObjectInfo{
			Bucket: r.S3.Bucket.Name,
			Key:    r.S3.Object.Key,
		}
		slog.Info("deploying from event", "artifact", obj.URL())
		if err := d.deploy(ctx, cfg, obj); err != nil {
			return fmt.Errorf("%s: %w", obj.URL(), err)
		}
	}
	return nil
}
