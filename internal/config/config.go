// Package config loads run configuration from the environment. All inputs
// are explicit struct fields passed into the orchestrator at construction;
// nothing here is module-level mutable state.
package config

import (
	"os"
	"strings"

	"github.com/yourorg/bucket-session/internal/storage"
)

// RunConfig is everything one session run needs.
type RunConfig struct {
	Bucket string
	// Files are local paths uploaded in addition to the default inline
	// payload; absent files are skipped with a warning.
	Files          []string
	DownloadDir    string
	DownloadPrefix string
	// JournalDir enables the badger transfer journal when set.
	JournalDir string
	// Local runs against the in-memory store instead of S3.
	Local bool
	S3    storage.S3Options
}

// FromEnv loads configuration from environment variables.
func FromEnv() RunConfig {
	return RunConfig{
		Bucket:         getenv("BUCKET_NAME", "mybucket"),
		Files:          splitList(os.Getenv("UPLOAD_FILES")),
		DownloadDir:    getenv("DOWNLOAD_DIR", "."),
		DownloadPrefix: getenv("DOWNLOAD_PREFIX", ""),
		JournalDir:     os.Getenv("JOURNAL_DIR"),
		Local:          strings.EqualFold(os.Getenv("LOCAL_STORE"), "true"),
		S3: storage.S3Options{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Region:    getenv("AWS_REGION", "us-east-1"),
			AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			PathStyle: strings.EqualFold(os.Getenv("AWS_S3_FORCE_PATH_STYLE"), "true"),
		},
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
