package domain

import "go.trai.ch/zerr"

var (
	// ErrConfigParse is returned when a configuration layer fails to parse.
	ErrConfigParse = zerr.New("config parse error")

	// ErrConfigMerge is returned when layers cannot be merged into a single view.
	ErrConfigMerge = zerr.New("config merge error")

	// ErrAliasCycle is returned when alias resolution exceeds the chain limit.
	ErrAliasCycle = zerr.New("alias cycle")

	// ErrVersionNotFound is returned when a version request matches nothing in the catalog.
	ErrVersionNotFound = zerr.New("version not found")

	// ErrBackendUnavailable is returned when no backend is registered for a tool.
	ErrBackendUnavailable = zerr.New("backend unavailable")

	// ErrChecksumMismatch is returned when an install payload fails integrity verification.
	ErrChecksumMismatch = zerr.New("checksum mismatch")

	// ErrInstallBusy is returned when the per-tool advisory lock cannot be acquired in time.
	ErrInstallBusy = zerr.New("install busy")

	// ErrInstallFailed is returned when a backend install fails.
	ErrInstallFailed = zerr.New("install failed")

	// ErrCorrupt is returned when an installed prefix no longer matches its recorded checksums.
	ErrCorrupt = zerr.New("install corrupt")

	// ErrInUse is returned when an uninstall is refused because another process holds the lock.
	ErrInUse = zerr.New("install in use")

	// ErrTaskNotFound is returned when a requested task is not defined.
	ErrTaskNotFound = zerr.New("task not found")

	// ErrTaskCycle is returned when the task graph contains a cycle.
	ErrTaskCycle = zerr.New("task cycle")

	// ErrTaskFailed is returned when a task command exits non-zero.
	ErrTaskFailed = zerr.New("task failed")

	// ErrShimConflict is returned when reconciliation would overwrite a non-managed file.
	ErrShimConflict = zerr.New("shim conflict")

	// ErrCancelled is returned when an operation is aborted by cancellation.
	ErrCancelled = zerr.New("cancelled")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = zerr.New("timeout")
)
