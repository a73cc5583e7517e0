// Package session sequences one bucket lifecycle run: ensure bucket, upload
// payloads, list, download, delete objects, delete bucket. All network
// operations go through an injected storage.ObjectStore.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"
)

// Policy is the failure policy attached to each phase.
type Policy int

const (
	// BestEffort phases log their failure and let the run continue.
	BestEffort Policy = iota
	// FailFast phases abort the run on the first failure.
	FailFast
)

func (p Policy) String() string {
	if p == BestEffort {
		return "best-effort"
	}
	return "fail-fast"
}

// Phase names, also used as journal and metrics labels.
const (
	PhaseEnsureBucket  = "ensure-bucket"
	PhaseUpload        = "upload"
	PhaseList          = "list"
	PhaseDownload      = "download"
	PhaseDeleteObjects = "delete-objects"
	PhaseDeleteBucket  = "delete-bucket"
)

// RunState tracks progress through the phase pipeline.
type RunState int

const (
	StateInit RunState = iota
	StateBucketEnsured
	StateUploaded
	StateListed
	StateDownloaded
	StateObjectsDeleted
	StateBucketDeleted
	StateDone
	StateAborted
)

var runStateNames = map[RunState]string{
	StateInit:           "Init",
	StateBucketEnsured:  "BucketEnsured",
	StateUploaded:       "Uploaded",
	StateListed:         "Listed",
	StateDownloaded:     "Downloaded",
	StateObjectsDeleted: "ObjectsDeleted",
	StateBucketDeleted:  "BucketDeleted",
	StateDone:           "Done",
	StateAborted:        "Aborted",
}

func (s RunState) String() string {
	if n, ok := runStateNames[s]; ok {
		return n
	}
	return "Unknown"
}

// BucketState is the lifecycle state of the bucket handle.
type BucketState int

const (
	BucketAbsent BucketState = iota
	BucketCreating
	BucketPresent
	BucketDeleting
	BucketDeleted
)

// BucketHandle names the bucket and tracks its lifecycle state.
type BucketHandle struct {
	Name  string
	State BucketState
}

// UploadState is the per-object upload state.
type UploadState int

const (
	UploadPending UploadState = iota
	Uploaded
	UploadFailed
)

// Payload is one named input to the upload phase. Body takes precedence;
// when nil the content is read from Path, and an absent Path file causes
// the payload to be skipped with a warning rather than failing the run.
type Payload struct {
	Name string
	Body []byte
	Path string
}

// ObjectRecord tracks one uploaded object. The key is assigned once at
// upload time and never changes.
type ObjectRecord struct {
	Key    string
	Name   string
	State  UploadState
	Size   int64
	SHA256 string
}

// TransferResult is the outcome of one upload/download/delete attempt.
type TransferResult struct {
	Phase   string
	Key     string
	Skipped bool
	Err     error
}

func (r TransferResult) OK() bool { return r.Err == nil }

// PhaseError reports the phase (and key, when per-object) that aborted a run.
type PhaseError struct {
	Phase string
	Key   string
	Err   error
}

func (e *PhaseError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("phase %s: key %s: %v", e.Phase, e.Key, e.Err)
	}
	return fmt.Sprintf("phase %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Report is the caller-facing outcome of one run.
type Report struct {
	State      RunState
	Bucket     BucketHandle
	Records    []ObjectRecord
	Results    []TransferResult
	ListedKeys []string
	Downloads  []string
}

// KeyFor derives the object key for a payload name: <unix-seconds>_<name>.
// One timestamp is used for a whole run, so keys never collide across runs
// and a run's keys share a prefix.
func KeyFor(ts time.Time, name string) string {
	return strconv.FormatInt(ts.Unix(), 10) + "_" + name
}

// LocalName derives the local download path for an object key:
// dir/<prefix><basename of key>.
func LocalName(dir, prefix, key string) string {
	return filepath.Join(dir, prefix+path.Base(key))
}

// ResolvePayload returns the payload content. skip is true when the payload
// has no inline body and its source file does not exist.
func ResolvePayload(p Payload) (data []byte, skip bool, err error) {
	if p.Body != nil {
		return p.Body, false, nil
	}
	data, err = os.ReadFile(p.Path)
	if os.IsNotExist(err) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, false, nil
}

// ChecksumHex returns the hex SHA-256 of data, recorded at upload and
// verified at download.
func ChecksumHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
