package main

import (
	"context"
	"log"
	"os"
	"strings"

	tactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/yourorg/bucket-session/internal/activities"
	"github.com/yourorg/bucket-session/internal/config"
	bsmetrics "github.com/yourorg/bucket-session/internal/metrics"
	"github.com/yourorg/bucket-session/internal/storage"
	"github.com/yourorg/bucket-session/internal/workflow"
)

func main() {
	ctx := context.Background()
	// Support both TEMPORAL_TARGET_HOST and TEMPORAL_ADDRESS for compatibility
	taddr := getenv("TEMPORAL_TARGET_HOST", getenv("TEMPORAL_ADDRESS", "localhost:7233"))
	ns := getenv("TEMPORAL_NAMESPACE", "default")
	q := getenv("TEMPORAL_TASK_QUEUE", "bucket-session")
	downloadDir := getenv("DOWNLOAD_DIR", "/var/bucket-session")
	_ = os.MkdirAll(downloadDir, 0o777)

	// Structured logger (zap)
	zl := newZap(getenv("LOG_LEVEL", "info"))
	defer zl.Sync()

	// Metrics server
	bsmetrics.Init()
	go func() {
		_ = bsmetrics.Serve(bsmetrics.AddrFromEnv())
	}()

	store, err := storage.NewS3(ctx, config.FromEnv().S3)
	if err != nil {
		log.Fatal("s3 init:", err)
	}

	c, err := client.Dial(client.Options{HostPort: taddr, Namespace: ns})
	if err != nil {
		log.Fatal("temporal client:", err)
	}
	defer c.Close()

	w := worker.New(c, q, worker.Options{})
	acts := activities.New(store, activities.Config{DownloadDir: downloadDir})
	// Register activities with explicit names matching workflow.ExecuteActivity calls
	w.RegisterActivityWithOptions(acts.EnsureBucket, tactivity.RegisterOptions{Name: "Activities.EnsureBucket"})
	w.RegisterActivityWithOptions(acts.UploadPayloads, tactivity.RegisterOptions{Name: "Activities.UploadPayloads"})
	w.RegisterActivityWithOptions(acts.ListObjects, tactivity.RegisterOptions{Name: "Activities.ListObjects"})
	w.RegisterActivityWithOptions(acts.DownloadObjects, tactivity.RegisterOptions{Name: "Activities.DownloadObjects"})
	w.RegisterActivityWithOptions(acts.DeleteObjects, tactivity.RegisterOptions{Name: "Activities.DeleteObjects"})
	w.RegisterActivityWithOptions(acts.DeleteBucket, tactivity.RegisterOptions{Name: "Activities.DeleteBucket"})
	w.RegisterWorkflow(workflow.SessionWorkflow)

	zl.Info("worker started", zap.String("namespace", ns), zap.String("taskQueue", q), zap.String("downloadDir", downloadDir))
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal("worker failed:", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func newZap(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
