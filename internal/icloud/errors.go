package icloud

import "errors"

var (
	// ErrCloudUnavailable means the cloud CLI could not be spawned at all.
	ErrCloudUnavailable = errors.New("cloud CLI unavailable")

	// ErrCloudCheckFailed means the check command kept failing after retries.
	ErrCloudCheckFailed = errors.New("cloud check failed")

	// ErrCloudDownloadFailed means the download command kept failing after retries.
	ErrCloudDownloadFailed = errors.New("cloud download failed")

	// ErrConflict means the cloud reports an unresolved sync conflict for the
	// file. The file must be skipped, never staged.
	ErrConflict = errors.New("unresolved iCloud conflict")

	// ErrDownloadTimeout means the file did not materialize within the
	// per-file wait budget.
	ErrDownloadTimeout = errors.New("download wait timed out")
)
