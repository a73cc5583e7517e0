package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/yourorg/bucket-session/internal/config"
	"github.com/yourorg/bucket-session/internal/journal"
	"github.com/yourorg/bucket-session/internal/metrics"
	"github.com/yourorg/bucket-session/internal/naming"
	"github.com/yourorg/bucket-session/internal/session"
	"github.com/yourorg/bucket-session/internal/storage"
)

// Exit codes: 0 when the run reaches Done, 1 when a fail-fast phase aborts
// it (the phase is named in the error log).
func main() {
	ctx := context.Background()
	cfg := config.FromEnv()

	zl := newZap(getenv("LOG_LEVEL", "info"))
	defer zl.Sync()

	if err := naming.ValidateBucketName(cfg.Bucket); err != nil {
		log.Fatalf("bucket name %q: %v", cfg.Bucket, err)
	}

	metrics.Init()
	go func() {
		_ = metrics.Serve(metrics.AddrFromEnv())
	}()

	var store storage.ObjectStore
	if cfg.Local {
		store = storage.NewMemStore()
	} else {
		s3c, err := storage.NewS3(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("s3 init: %v", err)
		}
		store = s3c
	}

	var jr *journal.Journal
	if cfg.JournalDir != "" {
		var err error
		jr, err = journal.Open(cfg.JournalDir)
		if err != nil {
			log.Fatalf("journal open: %v", err)
		}
		defer jr.Close()
	}

	payloads := []session.Payload{
		{Name: "hello.txt", Body: []byte("Hello World from Go")},
	}
	for _, f := range cfg.Files {
		payloads = append(payloads, session.Payload{Name: filepath.Base(f), Path: f})
	}

	orch := session.New(store, session.Config{
		Bucket:         cfg.Bucket,
		Payloads:       payloads,
		DownloadDir:    cfg.DownloadDir,
		DownloadPrefix: cfg.DownloadPrefix,
		Journal:        jr,
		Logger:         zl,
	})

	report, err := orch.Run(ctx)
	if err != nil {
		zl.Error("session aborted",
			zap.String("state", report.State.String()), zap.Error(err))
		zl.Sync()
		if jr != nil {
			jr.Close()
		}
		os.Exit(1)
	}
	zl.Info("session done", zap.String("state", report.State.String()))
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
