package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yourorg/bucket-session/internal/types"
)

// SessionWorkflow runs one bucket session as a phase pipeline. Bucket
// create/delete are best-effort: their failures are logged and collected as
// warnings. Upload, list, download and delete-objects are fail-fast and
// abort the workflow. Unlike the standalone runner, activities here carry a
// bounded retry policy; phase idempotence (timestamped keys, idempotent
// create) keeps retries safe.
func SessionWorkflow(ctx workflow.Context, p types.SessionParams) (types.SessionReport, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    1 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	if p.RunStamp == 0 {
		// Assign the key timestamp deterministically so replays and
		// retried activities generate identical keys.
		p.RunStamp = workflow.Now(ctx).Unix()
	}

	var report types.SessionReport

	if err := workflow.ExecuteActivity(ctx, "Activities.EnsureBucket", p).Get(ctx, nil); err != nil {
		logger.Warn("ensure-bucket failed, continuing", "error", err)
		report.Warnings = append(report.Warnings, "ensure-bucket: "+err.Error())
	}

	var up types.UploadResult
	if err := workflow.ExecuteActivity(ctx, "Activities.UploadPayloads", p).Get(ctx, &up); err != nil {
		report.State = "Aborted"
		return report, err
	}
	report.Uploaded = len(up.Keys)
	report.Skipped = len(up.Skipped)

	var list types.ListResult
	if err := workflow.ExecuteActivity(ctx, "Activities.ListObjects", p).Get(ctx, &list); err != nil {
		report.State = "Aborted"
		return report, err
	}

	dp := types.DownloadParams{Session: p, Keys: list.Keys, Checksums: up.Checksums}
	var down types.DownloadResult
	if err := workflow.ExecuteActivity(ctx, "Activities.DownloadObjects", dp).Get(ctx, &down); err != nil {
		report.State = "Aborted"
		return report, err
	}
	report.Downloaded = len(down.Files)

	del := types.DeleteParams{Bucket: p.Bucket, Keys: list.Keys}
	var deleted types.DeleteResult
	if err := workflow.ExecuteActivity(ctx, "Activities.DeleteObjects", del).Get(ctx, &deleted); err != nil {
		report.State = "Aborted"
		return report, err
	}
	report.Deleted = len(deleted.Deleted)

	if err := workflow.ExecuteActivity(ctx, "Activities.DeleteBucket", p).Get(ctx, nil); err != nil {
		logger.Warn("delete-bucket failed, continuing", "error", err)
		report.Warnings = append(report.Warnings, "delete-bucket: "+err.Error())
	}

	report.State = "Done"
	return report, nil
}
