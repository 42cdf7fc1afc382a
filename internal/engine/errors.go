package engine

import (
	"errors"
	"fmt"
)

// SyncErrorCode categorizes reconciliation errors.
type SyncErrorCode string

const (
	// ErrCodeMissingIdentity aborts a pass: the subject has no id to key tasks on.
	ErrCodeMissingIdentity SyncErrorCode = "MISSING_SUBJECT_IDENTITY"

	// ErrCodeCatalogIntegrity aborts a pass: the catalog failed validation.
	ErrCodeCatalogIntegrity SyncErrorCode = "CATALOG_INTEGRITY"

	// ErrCodeCatalogUnavailable aborts a pass: the catalog could not be loaded.
	ErrCodeCatalogUnavailable SyncErrorCode = "CATALOG_UNAVAILABLE"

	// ErrCodeStoreRead is a per-flag failure looking up a task.
	ErrCodeStoreRead SyncErrorCode = "STORE_READ_FAILURE"

	// ErrCodeStoreWrite is a per-flag failure inserting or updating a task.
	ErrCodeStoreWrite SyncErrorCode = "STORE_WRITE_FAILURE"

	// ErrCodeNotification is a failed notification dispatch. Never aborts.
	ErrCodeNotification SyncErrorCode = "NOTIFICATION_FAILURE"
)

// SyncError is an error raised while reconciling one subject.
type SyncError struct {
	Code      SyncErrorCode
	Message   string
	SubjectID string
	TaskID    string
	Err       error
}

func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.SubjectID != "" && e.TaskID != "":
		msg += fmt.Sprintf(" (subject=%s, task=%s)", e.SubjectID, e.TaskID)
	case e.SubjectID != "":
		msg += fmt.Sprintf(" (subject=%s)", e.SubjectID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SyncError) Unwrap() error { return e.Err }

// Aborting reports whether the error stops a whole pass rather than one flag.
func (e *SyncError) Aborting() bool {
	switch e.Code {
	case ErrCodeMissingIdentity, ErrCodeCatalogIntegrity, ErrCodeCatalogUnavailable:
		return true
	}
	return false
}

// HasCode reports whether err wraps a *SyncError with the given code.
func HasCode(err error, code SyncErrorCode) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsAborting reports whether err is a pass-level failure.
func IsAborting(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Aborting()
}
