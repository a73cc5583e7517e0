package activities

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/yourorg/bucket-session/internal/metrics"
	"github.com/yourorg/bucket-session/internal/session"
	"github.com/yourorg/bucket-session/internal/storage"
	"github.com/yourorg/bucket-session/internal/types"
)

type Config struct {
	// DownloadDir overrides the per-session download directory when set.
	DownloadDir string
}

// Activities wraps the session phases as Temporal activities. Each activity
// is stateless between calls; everything a phase needs travels in its params.
type Activities struct {
	store storage.ObjectStore
	cfg   Config
}

func New(store storage.ObjectStore, cfg Config) *Activities {
	return &Activities{store: store, cfg: cfg}
}

// EnsureBucket creates the bucket, treating already-exists as success.
func (a *Activities) EnsureBucket(ctx context.Context, p types.SessionParams) error {
	err := a.store.CreateBucket(ctx, p.Bucket)
	if errors.Is(err, storage.ErrBucketExists) {
		activity.GetLogger(ctx).Info("bucket already exists", "bucket", p.Bucket)
		return nil
	}
	return err
}

// UploadPayloads uploads every payload in order under timestamp-prefixed
// keys, skipping payloads whose source file is absent.
func (a *Activities) UploadPayloads(ctx context.Context, p types.SessionParams) (types.UploadResult, error) {
	res := types.UploadResult{Checksums: make(map[string]string)}
	stamp := time.Unix(p.RunStamp, 0)
	for i, spec := range p.Payloads {
		data, skip, err := session.ResolvePayload(session.Payload{Name: spec.Name, Body: spec.Body, Path: spec.Path})
		if err != nil {
			return types.UploadResult{}, err
		}
		if skip {
			activity.GetLogger(ctx).Warn("payload file not found, skipping", "name", spec.Name, "path", spec.Path)
			metrics.PayloadsSkipped.Inc()
			res.Skipped = append(res.Skipped, spec.Name)
			continue
		}
		key := session.KeyFor(stamp, spec.Name)
		if err := a.store.Put(ctx, p.Bucket, key, bytes.NewReader(data)); err != nil {
			return types.UploadResult{}, err
		}
		res.Keys = append(res.Keys, key)
		res.Checksums[key] = session.ChecksumHex(data)
		metrics.ObjectsUploaded.Inc()
		activity.RecordHeartbeat(ctx, i+1)
	}
	return res, nil
}

func (a *Activities) ListObjects(ctx context.Context, p types.SessionParams) (types.ListResult, error) {
	keys, err := a.store.List(ctx, p.Bucket)
	if err != nil {
		return types.ListResult{}, err
	}
	return types.ListResult{Keys: keys}, nil
}

// DownloadObjects fetches every listed key, verifies content against the
// upload checksums where known, and writes local copies.
func (a *Activities) DownloadObjects(ctx context.Context, p types.DownloadParams) (types.DownloadResult, error) {
	dir := p.Session.DownloadDir
	if a.cfg.DownloadDir != "" {
		dir = a.cfg.DownloadDir
	}
	prefix := p.Session.DownloadPrefix
	if prefix == "" {
		prefix = session.DefaultDownloadPrefix
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return types.DownloadResult{}, err
		}
	}
	var res types.DownloadResult
	for i, key := range p.Keys {
		rc, err := a.store.Get(ctx, p.Session.Bucket, key)
		if err != nil {
			return types.DownloadResult{}, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return types.DownloadResult{}, err
		}
		if want, ok := p.Checksums[key]; ok && want != session.ChecksumHex(data) {
			return types.DownloadResult{}, fmt.Errorf("content mismatch for key %s", key)
		}
		local := session.LocalName(dir, prefix, key)
		if err := os.WriteFile(local, data, 0o644); err != nil {
			return types.DownloadResult{}, err
		}
		res.Files = append(res.Files, local)
		metrics.ObjectsDownloaded.Inc()
		activity.RecordHeartbeat(ctx, i+1)
	}
	return res, nil
}

func (a *Activities) DeleteObjects(ctx context.Context, p types.DeleteParams) (types.DeleteResult, error) {
	var res types.DeleteResult
	for i, key := range p.Keys {
		if err := a.store.Delete(ctx, p.Bucket, key); err != nil {
			return types.DeleteResult{}, err
		}
		res.Deleted = append(res.Deleted, key)
		metrics.ObjectsDeleted.Inc()
		activity.RecordHeartbeat(ctx, i+1)
	}
	return res, nil
}

func (a *Activities) DeleteBucket(ctx context.Context, p types.SessionParams) error {
	return a.store.DeleteBucket(ctx, p.Bucket)
}
