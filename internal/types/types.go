package types

// SessionParams is the input to SessionWorkflow and its activities.
type SessionParams struct {
	Bucket string `json:"bucket"`
	// Payloads are uploaded in order under timestamp-prefixed keys.
	Payloads []PayloadSpec `json:"payloads"`
	// DownloadDir receives local copies during the download phase.
	DownloadDir string `json:"download_dir"`
	// DownloadPrefix defaults to "downloaded_".
	DownloadPrefix string `json:"download_prefix,omitempty"`
	// RunStamp is the unix-seconds timestamp used for key generation. The
	// workflow assigns it once so retried upload activities regenerate the
	// same keys.
	RunStamp int64 `json:"run_stamp"`
}

// PayloadSpec names one payload. Body takes precedence over Path; a Path
// pointing at an absent file is skipped with a warning.
type PayloadSpec struct {
	Name string `json:"name"`
	Body []byte `json:"body,omitempty"`
	Path string `json:"path,omitempty"`
}

// UploadResult reports the upload phase outcome.
type UploadResult struct {
	Keys    []string `json:"keys"`
	Skipped []string `json:"skipped,omitempty"`
	// Checksums maps key to hex SHA-256 of the uploaded bytes, verified
	// again during the download phase.
	Checksums map[string]string `json:"checksums,omitempty"`
}

// ListResult reports the keys currently in the bucket.
type ListResult struct {
	Keys []string `json:"keys"`
}

// DownloadParams carries the listed keys and upload checksums into the
// download phase.
type DownloadParams struct {
	Session   SessionParams     `json:"session"`
	Keys      []string          `json:"keys"`
	Checksums map[string]string `json:"checksums,omitempty"`
}

// DownloadResult reports the local files written by the download phase.
type DownloadResult struct {
	Files []string `json:"files"`
}

// DeleteParams carries the keys to remove in the delete-objects phase.
type DeleteParams struct {
	Bucket string   `json:"bucket"`
	Keys   []string `json:"keys"`
}

// DeleteResult reports the keys removed.
type DeleteResult struct {
	Deleted []string `json:"deleted"`
}

// SessionReport is the workflow's final result.
type SessionReport struct {
	State      string   `json:"state"` // Done or Aborted
	Uploaded   int      `json:"uploaded"`
	Skipped    int      `json:"skipped"`
	Downloaded int      `json:"downloaded"`
	Deleted    int      `json:"deleted"`
	Warnings   []string `json:"warnings,omitempty"`
}
