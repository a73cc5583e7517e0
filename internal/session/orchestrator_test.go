package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/yourorg/bucket-session/internal/storage"
)

func fixedNow() time.Time { return time.Unix(1700000000, 0) }

func newTestOrch(t *testing.T, store storage.ObjectStore, payloads []Payload) *Orchestrator {
	t.Helper()
	return New(store, Config{
		Bucket:      "mybucket",
		Payloads:    payloads,
		DownloadDir: t.TempDir(),
		Now:         fixedNow,
	})
}

func TestRunEndToEnd(t *testing.T) {
	mem := storage.NewMemStore()
	o := newTestOrch(t, mem, []Payload{{Name: "hello.txt", Body: []byte("Hello World")}})

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.State != StateDone {
		t.Fatalf("state %s, want Done", report.State)
	}

	if len(report.Records) != 1 {
		t.Fatalf("records %v", report.Records)
	}
	keyRe := regexp.MustCompile(`^\d+_hello\.txt$`)
	if !keyRe.MatchString(report.Records[0].Key) {
		t.Fatalf("key %q does not match <timestamp>_hello.txt", report.Records[0].Key)
	}
	if report.Records[0].State != Uploaded {
		t.Fatalf("record state %v", report.Records[0].State)
	}

	if len(report.Downloads) != 1 {
		t.Fatalf("downloads %v", report.Downloads)
	}
	got, err := os.ReadFile(report.Downloads[0])
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if !bytes.Equal(got, []byte("Hello World")) {
		t.Fatalf("downloaded content %q", string(got))
	}
	if base := filepath.Base(report.Downloads[0]); base != DefaultDownloadPrefix+report.Records[0].Key {
		t.Fatalf("local name %q", base)
	}

	// Object and bucket are gone after cleanup.
	if mem.HasBucket("mybucket") {
		t.Fatal("bucket still present after run")
	}
	if report.Bucket.State != BucketDeleted {
		t.Fatalf("bucket handle state %v", report.Bucket.State)
	}
}

func TestListMatchesUploads(t *testing.T) {
	mem := storage.NewMemStore()
	payloads := []Payload{
		{Name: "a.txt", Body: []byte("aaa")},
		{Name: "b.txt", Body: []byte("bbb")},
		{Name: "c.txt", Body: []byte("ccc")},
	}
	o := newTestOrch(t, mem, payloads)

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.ListedKeys) != len(payloads) {
		t.Fatalf("listed %v, want %d keys", report.ListedKeys, len(payloads))
	}
	uploaded := make(map[string]bool)
	for _, rec := range report.Records {
		uploaded[rec.Key] = true
	}
	for _, k := range report.ListedKeys {
		if !uploaded[k] {
			t.Fatalf("listed key %q was not uploaded", k)
		}
	}
}

func TestCreateBucketIdempotent(t *testing.T) {
	mem := storage.NewMemStore()
	if err := mem.CreateBucket(context.Background(), "mybucket"); err != nil {
		t.Fatal(err)
	}
	o := newTestOrch(t, mem, []Payload{{Name: "x.txt", Body: []byte("x")}})

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run against existing bucket: %v", err)
	}
	if report.State != StateDone {
		t.Fatalf("state %s, want Done", report.State)
	}
}

func TestMissingFileSkipped(t *testing.T) {
	mem := storage.NewMemStore()
	payloads := []Payload{
		{Name: "present.txt", Body: []byte("here")},
		{Name: "absent.png", Path: filepath.Join(t.TempDir(), "absent.png")},
	}
	o := newTestOrch(t, mem, payloads)

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.State != StateDone {
		t.Fatalf("state %s, want Done despite missing file", report.State)
	}
	if len(report.Records) != 1 || report.Records[0].Name != "present.txt" {
		t.Fatalf("records %v", report.Records)
	}
	var skipped bool
	for _, r := range report.Results {
		if r.Phase == PhaseUpload && r.Skipped {
			skipped = true
		}
	}
	if !skipped {
		t.Fatal("skip was not reported")
	}
}

// failingStore wraps a store, failing selected operations and counting
// calls to the later phases.
type failingStore struct {
	storage.ObjectStore
	putErr       error
	deleteBucket error
	listCalls    int
	getCalls     int
	deleteCalls  int
}

func (f *failingStore) Put(ctx context.Context, bucket, key string, body io.Reader) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.ObjectStore.Put(ctx, bucket, key, body)
}

func (f *failingStore) List(ctx context.Context, bucket string) ([]string, error) {
	f.listCalls++
	return f.ObjectStore.List(ctx, bucket)
}

func (f *failingStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	f.getCalls++
	return f.ObjectStore.Get(ctx, bucket, key)
}

func (f *failingStore) Delete(ctx context.Context, bucket, key string) error {
	f.deleteCalls++
	return f.ObjectStore.Delete(ctx, bucket, key)
}

func (f *failingStore) DeleteBucket(ctx context.Context, bucket string) error {
	if f.deleteBucket != nil {
		return f.deleteBucket
	}
	return f.ObjectStore.DeleteBucket(ctx, bucket)
}

func TestPutFailureAborts(t *testing.T) {
	fs := &failingStore{ObjectStore: storage.NewMemStore(), putErr: errors.New("backend down")}
	o := newTestOrch(t, fs, []Payload{{Name: "a.txt", Body: []byte("a")}})

	report, err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected abort error")
	}
	var pe *PhaseError
	if !errors.As(err, &pe) || pe.Phase != PhaseUpload {
		t.Fatalf("error %v, want PhaseError in upload phase", err)
	}
	if report.State != StateAborted {
		t.Fatalf("state %s, want Aborted", report.State)
	}
	if fs.listCalls != 0 || fs.getCalls != 0 || fs.deleteCalls != 0 {
		t.Fatalf("later phases ran: list=%d get=%d delete=%d",
			fs.listCalls, fs.getCalls, fs.deleteCalls)
	}
}

func TestDeleteBucketBestEffort(t *testing.T) {
	fs := &failingStore{ObjectStore: storage.NewMemStore(), deleteBucket: errors.New("denied")}
	o := newTestOrch(t, fs, []Payload{{Name: "a.txt", Body: []byte("a")}})

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.State != StateDone {
		t.Fatalf("state %s, want Done despite delete-bucket failure", report.State)
	}
	var recorded bool
	for _, r := range report.Results {
		if r.Phase == PhaseDeleteBucket && r.Err != nil {
			recorded = true
		}
	}
	if !recorded {
		t.Fatal("delete-bucket failure was not recorded")
	}
}

func TestCancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := newTestOrch(t, storage.NewMemStore(), []Payload{{Name: "a.txt", Body: []byte("a")}})

	report, err := o.Run(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error %v, want context.Canceled", err)
	}
	if report.State != StateAborted {
		t.Fatalf("state %s, want Aborted", report.State)
	}
}

func TestRoundTripFidelityPerKey(t *testing.T) {
	mem := storage.NewMemStore()
	payloads := []Payload{
		{Name: "bin.dat", Body: []byte{0x00, 0xFF, 0x7F, 0x80, 0x01}},
		{Name: "text.txt", Body: []byte("line one\nline two\n")},
	}
	o := newTestOrch(t, mem, payloads)

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	byName := map[string][]byte{}
	for _, p := range payloads {
		byName[p.Name] = p.Body
	}
	if len(report.Downloads) != len(payloads) {
		t.Fatalf("downloads %v", report.Downloads)
	}
	for _, rec := range report.Records {
		local := LocalName(o.cfg.DownloadDir, DefaultDownloadPrefix, rec.Key)
		got, err := os.ReadFile(local)
		if err != nil {
			t.Fatalf("read %s: %v", local, err)
		}
		if !bytes.Equal(got, byName[rec.Name]) {
			t.Fatalf("round-trip mismatch for %s", rec.Name)
		}
	}
}

func TestHelpers(t *testing.T) {
	if got := KeyFor(time.Unix(42, 0), "hello.txt"); got != "42_hello.txt" {
		t.Fatalf("KeyFor got %q", got)
	}
	if got := LocalName("/tmp/dl", "downloaded_", "123_sample.png"); got != filepath.Join("/tmp/dl", "downloaded_123_sample.png") {
		t.Fatalf("LocalName got %q", got)
	}
	if got := LocalName("", "downloaded_", "a/b/123_x.txt"); got != "downloaded_123_x.txt" {
		t.Fatalf("LocalName basename got %q", got)
	}
}
