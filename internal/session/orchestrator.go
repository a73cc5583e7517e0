package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/bucket-session/internal/journal"
	"github.com/yourorg/bucket-session/internal/metrics"
	"github.com/yourorg/bucket-session/internal/storage"
)

// DefaultDownloadPrefix is prepended to the key basename for local copies.
const DefaultDownloadPrefix = "downloaded_"

// Config holds one run's inputs. It is passed in at construction; the
// orchestrator keeps no state between runs and no module-level state at all.
type Config struct {
	Bucket      string
	Payloads    []Payload
	DownloadDir string
	// DownloadPrefix defaults to DefaultDownloadPrefix.
	DownloadPrefix string
	// RunID identifies this run in the journal. Defaults to the run
	// timestamp.
	RunID string
	// Journal, when set, durably records every transfer outcome.
	Journal *journal.Journal
	Logger  *zap.Logger
	// Now is the clock used for key generation; defaults to time.Now.
	Now func() time.Time
}

// Orchestrator drives one bucket session through the phase pipeline.
// Not safe for concurrent use; create one per run.
type Orchestrator struct {
	store storage.ObjectStore
	cfg   Config
	log   *zap.Logger
	now   func() time.Time

	runID   string
	stamp   time.Time
	state   RunState
	bucket  BucketHandle
	records []ObjectRecord
	byKey   map[string]ObjectRecord
	keys    []string
	results []TransferResult
	files   []string
}

func New(store storage.ObjectStore, cfg Config) *Orchestrator {
	if cfg.DownloadPrefix == "" {
		cfg.DownloadPrefix = DefaultDownloadPrefix
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		store: store,
		cfg:   cfg,
		log:   log,
		now:   now,
		state: StateInit,
		byKey: make(map[string]ObjectRecord),
	}
}

type step struct {
	name   string
	policy Policy
	next   RunState
	fn     func(context.Context) error
}

// Run executes the phase pipeline. Fail-fast phase errors abort the run and
// are returned as a *PhaseError; best-effort failures are logged, recorded
// and survived. Cancellation is honored between phases, never mid-phase.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	o.stamp = o.now()
	o.runID = o.cfg.RunID
	if o.runID == "" {
		o.runID = o.stamp.UTC().Format("20060102T150405Z")
	}
	o.bucket = BucketHandle{Name: o.cfg.Bucket, State: BucketAbsent}

	steps := []step{
		{PhaseEnsureBucket, BestEffort, StateBucketEnsured, o.ensureBucket},
		{PhaseUpload, FailFast, StateUploaded, o.uploadAll},
		{PhaseList, FailFast, StateListed, o.listKeys},
		{PhaseDownload, FailFast, StateDownloaded, o.downloadAll},
		{PhaseDeleteObjects, FailFast, StateObjectsDeleted, o.deleteObjects},
		{PhaseDeleteBucket, BestEffort, StateBucketDeleted, o.deleteBucket},
	}

	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return o.abort(st.name, "", err)
		}
		if err := st.fn(ctx); err != nil {
			metrics.PhaseFailures.WithLabelValues(st.name).Inc()
			if st.policy == FailFast {
				var pe *PhaseError
				if !errors.As(err, &pe) {
					err = &PhaseError{Phase: st.name, Err: err}
				}
				o.state = StateAborted
				o.log.Error("phase failed, aborting run",
					zap.String("phase", st.name), zap.Error(err))
				return o.report(), err
			}
			o.log.Warn("best-effort phase failed, continuing",
				zap.String("phase", st.name), zap.Error(err))
		}
		o.state = st.next
	}
	o.state = StateDone
	o.log.Info("run complete",
		zap.String("bucket", o.bucket.Name),
		zap.Int("uploaded", len(o.records)),
		zap.Int("downloaded", len(o.files)))
	return o.report(), nil
}

func (o *Orchestrator) report() Report {
	return Report{
		State:      o.state,
		Bucket:     o.bucket,
		Records:    o.records,
		Results:    o.results,
		ListedKeys: o.keys,
		Downloads:  o.files,
	}
}

func (o *Orchestrator) abort(phase, key string, err error) (Report, error) {
	o.state = StateAborted
	perr := &PhaseError{Phase: phase, Key: key, Err: err}
	o.record(TransferResult{Phase: phase, Key: key, Err: err})
	o.log.Error("run aborted", zap.String("phase", phase), zap.Error(err))
	return o.report(), perr
}

// record appends the result and mirrors it into the journal when one is
// configured. Journal failures never affect the run outcome.
func (o *Orchestrator) record(res TransferResult) {
	o.results = append(o.results, res)
	if o.cfg.Journal == nil {
		return
	}
	e := journal.Entry{Run: o.runID, Phase: res.Phase, Key: res.Key, Outcome: journal.OutcomeOK}
	switch {
	case res.Err != nil:
		e.Outcome = journal.OutcomeFailed
		e.Error = res.Err.Error()
	case res.Skipped:
		e.Outcome = journal.OutcomeSkipped
	}
	if err := o.cfg.Journal.Append(e); err != nil {
		o.log.Warn("journal append failed", zap.Error(err))
	}
}

func (o *Orchestrator) ensureBucket(ctx context.Context) error {
	o.bucket.State = BucketCreating
	err := o.store.CreateBucket(ctx, o.bucket.Name)
	if errors.Is(err, storage.ErrBucketExists) {
		o.log.Info("bucket already exists", zap.String("bucket", o.bucket.Name))
		err = nil
	}
	o.record(TransferResult{Phase: PhaseEnsureBucket, Err: err})
	if err != nil {
		return err
	}
	o.bucket.State = BucketPresent
	o.log.Info("bucket ensured", zap.String("bucket", o.bucket.Name))
	return nil
}

func (o *Orchestrator) uploadAll(ctx context.Context) error {
	for _, p := range o.cfg.Payloads {
		data, skip, err := ResolvePayload(p)
		if err != nil {
			o.record(TransferResult{Phase: PhaseUpload, Err: err})
			return &PhaseError{Phase: PhaseUpload, Err: err}
		}
		if skip {
			o.log.Warn("payload file not found, skipping",
				zap.String("name", p.Name), zap.String("path", p.Path))
			metrics.PayloadsSkipped.Inc()
			o.record(TransferResult{Phase: PhaseUpload, Skipped: true})
			continue
		}
		key := KeyFor(o.stamp, p.Name)
		rec := ObjectRecord{Key: key, Name: p.Name, State: UploadPending}
		if err := o.store.Put(ctx, o.bucket.Name, key, bytes.NewReader(data)); err != nil {
			rec.State = UploadFailed
			o.records = append(o.records, rec)
			o.record(TransferResult{Phase: PhaseUpload, Key: key, Err: err})
			return &PhaseError{Phase: PhaseUpload, Key: key, Err: err}
		}
		rec.State = Uploaded
		rec.Size = int64(len(data))
		rec.SHA256 = ChecksumHex(data)
		o.records = append(o.records, rec)
		o.byKey[key] = rec
		metrics.ObjectsUploaded.Inc()
		o.record(TransferResult{Phase: PhaseUpload, Key: key})
		o.log.Info("uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
	}
	return nil
}

func (o *Orchestrator) listKeys(ctx context.Context) error {
	keys, err := o.store.List(ctx, o.bucket.Name)
	o.record(TransferResult{Phase: PhaseList, Err: err})
	if err != nil {
		return err
	}
	o.keys = keys
	o.log.Info("listed objects", zap.Int("count", len(keys)))
	return nil
}

func (o *Orchestrator) downloadAll(ctx context.Context) error {
	if o.cfg.DownloadDir != "" {
		if err := os.MkdirAll(o.cfg.DownloadDir, 0o755); err != nil {
			return err
		}
	}
	for _, key := range o.keys {
		data, err := o.fetch(ctx, key)
		if err != nil {
			o.record(TransferResult{Phase: PhaseDownload, Key: key, Err: err})
			return &PhaseError{Phase: PhaseDownload, Key: key, Err: err}
		}
		if rec, ok := o.byKey[key]; ok && rec.SHA256 != ChecksumHex(data) {
			err := fmt.Errorf("content mismatch: downloaded bytes differ from upload")
			o.record(TransferResult{Phase: PhaseDownload, Key: key, Err: err})
			return &PhaseError{Phase: PhaseDownload, Key: key, Err: err}
		}
		local := LocalName(o.cfg.DownloadDir, o.cfg.DownloadPrefix, key)
		if err := os.WriteFile(local, data, 0o644); err != nil {
			o.record(TransferResult{Phase: PhaseDownload, Key: key, Err: err})
			return &PhaseError{Phase: PhaseDownload, Key: key, Err: err}
		}
		o.files = append(o.files, local)
		metrics.ObjectsDownloaded.Inc()
		o.record(TransferResult{Phase: PhaseDownload, Key: key})
		o.log.Info("downloaded", zap.String("key", key), zap.String("file", filepath.Base(local)))
	}
	return nil
}

func (o *Orchestrator) fetch(ctx context.Context, key string) ([]byte, error) {
	rc, err := o.store.Get(ctx, o.bucket.Name, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (o *Orchestrator) deleteObjects(ctx context.Context) error {
	for _, key := range o.keys {
		if err := o.store.Delete(ctx, o.bucket.Name, key); err != nil {
			o.record(TransferResult{Phase: PhaseDeleteObjects, Key: key, Err: err})
			return &PhaseError{Phase: PhaseDeleteObjects, Key: key, Err: err}
		}
		metrics.ObjectsDeleted.Inc()
		o.record(TransferResult{Phase: PhaseDeleteObjects, Key: key})
		o.log.Info("deleted", zap.String("key", key))
	}
	return nil
}

func (o *Orchestrator) deleteBucket(ctx context.Context) error {
	o.bucket.State = BucketDeleting
	err := o.store.DeleteBucket(ctx, o.bucket.Name)
	o.record(TransferResult{Phase: PhaseDeleteBucket, Err: err})
	if err != nil {
		o.bucket.State = BucketPresent
		return err
	}
	o.bucket.State = BucketDeleted
	o.log.Info("bucket deleted", zap.String("bucket", o.bucket.Name))
	return nil
}
