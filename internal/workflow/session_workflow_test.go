package workflow

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	tactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/yourorg/bucket-session/internal/activities"
	"github.com/yourorg/bucket-session/internal/storage"
	"github.com/yourorg/bucket-session/internal/types"
)

func registerAll(env *testsuite.TestWorkflowEnvironment, acts *activities.Activities) {
	env.RegisterActivityWithOptions(acts.EnsureBucket, tactivity.RegisterOptions{Name: "Activities.EnsureBucket"})
	env.RegisterActivityWithOptions(acts.UploadPayloads, tactivity.RegisterOptions{Name: "Activities.UploadPayloads"})
	env.RegisterActivityWithOptions(acts.ListObjects, tactivity.RegisterOptions{Name: "Activities.ListObjects"})
	env.RegisterActivityWithOptions(acts.DownloadObjects, tactivity.RegisterOptions{Name: "Activities.DownloadObjects"})
	env.RegisterActivityWithOptions(acts.DeleteObjects, tactivity.RegisterOptions{Name: "Activities.DeleteObjects"})
	env.RegisterActivityWithOptions(acts.DeleteBucket, tactivity.RegisterOptions{Name: "Activities.DeleteBucket"})
	env.RegisterWorkflow(SessionWorkflow)
}

func TestSessionWorkflowEndToEnd(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	mem := storage.NewMemStore()
	dir := t.TempDir()
	acts := activities.New(mem, activities.Config{})
	registerAll(env, acts)

	params := types.SessionParams{
		Bucket:      "mybucket",
		DownloadDir: dir,
		Payloads: []types.PayloadSpec{
			{Name: "hello.txt", Body: []byte("Hello World")},
			{Name: "absent.png", Path: filepath.Join(dir, "absent.png")},
		},
	}
	env.ExecuteWorkflow(SessionWorkflow, params)

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var report types.SessionReport
	if err := env.GetWorkflowResult(&report); err != nil {
		t.Fatalf("result: %v", err)
	}
	if report.State != "Done" {
		t.Fatalf("state %q, want Done", report.State)
	}
	if report.Uploaded != 1 || report.Skipped != 1 || report.Downloaded != 1 || report.Deleted != 1 {
		t.Fatalf("report %+v", report)
	}

	files, err := filepath.Glob(filepath.Join(dir, "downloaded_*"))
	if err != nil || len(files) != 1 {
		t.Fatalf("downloaded files %v (%v)", files, err)
	}
	if ok, _ := regexp.MatchString(`^downloaded_\d+_hello\.txt$`, filepath.Base(files[0])); !ok {
		t.Fatalf("local name %q", filepath.Base(files[0]))
	}
	got, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("Hello World")) {
		t.Fatalf("downloaded content %q", string(got))
	}

	if mem.HasBucket("mybucket") {
		t.Fatal("bucket still present after workflow")
	}
}

// brokenPut fails every upload; the workflow must abort without reaching
// the later phases.
type brokenPut struct {
	storage.ObjectStore
	listCalls int
}

func (b *brokenPut) Put(context.Context, string, string, io.Reader) error {
	return errors.New("backend down")
}

func (b *brokenPut) List(ctx context.Context, bucket string) ([]string, error) {
	b.listCalls++
	return b.ObjectStore.List(ctx, bucket)
}

func TestSessionWorkflowAbortsOnUploadFailure(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	store := &brokenPut{ObjectStore: storage.NewMemStore()}
	acts := activities.New(store, activities.Config{})
	registerAll(env, acts)

	params := types.SessionParams{
		Bucket:      "mybucket",
		DownloadDir: t.TempDir(),
		Payloads:    []types.PayloadSpec{{Name: "hello.txt", Body: []byte("x")}},
	}
	env.ExecuteWorkflow(SessionWorkflow, params)

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err == nil {
		t.Fatal("expected workflow error from failed upload")
	}
	if store.listCalls != 0 {
		t.Fatalf("list ran %d times after upload failure", store.listCalls)
	}
}
