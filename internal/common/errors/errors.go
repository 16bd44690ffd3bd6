package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

type ErrorCode string

const (
	// Pipeline taxonomy. Only LOCAL_STORAGE_UNAVAILABLE ever reaches a caller;
	// the others become error-log entries and ops alerts.
	ErrCodeCodingDefault            ErrorCode = "CODING_DEFAULT"
	ErrCodeDuplicateCheckDegraded   ErrorCode = "DUPLICATE_CHECK_DEGRADED"
	ErrCodeNumberGenerationDegraded ErrorCode = "NUMBER_GENERATION_DEGRADED"
	ErrCodeRemoteMirrorExhausted    ErrorCode = "REMOTE_MIRROR_EXHAUSTED"
	ErrCodeCRMSyncFailed            ErrorCode = "CRM_SYNC_FAILED"
	ErrCodeLocalStorageUnavailable  ErrorCode = "LOCAL_STORAGE_UNAVAILABLE"

	// Request and infrastructure errors.
	ErrCodeInputValidationFailed    ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeRecordNotFound           ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeConversionInProgress     ErrorCode = "CONVERSION_IN_PROGRESS"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the error shape shared by the pipeline, the HTTP API and
// the job workers.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata sets one metadata entry and returns e.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	e := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// BPMNError is the error thrown back to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func NewCodingDefaultError(questionIDs []string) *StandardError {
	e := newError(ErrCodeCodingDefault, "Unrecognized answers replaced by defaults", nil, false)
	e.Details = fmt.Sprintf("questions: %v", questionIDs)
	return e
}

func NewDuplicateCheckDegradedError(err error) *StandardError {
	return newError(ErrCodeDuplicateCheckDegraded, "Duplicate check unavailable, treated as new contact", err, false)
}

func NewNumberGenerationDegradedError(fallback string, err error) *StandardError {
	return newError(ErrCodeNumberGenerationDegraded, "Atomic counter unavailable, temporary number issued", err, false).
		WithMetadata("fallbackNumber", fallback)
}

func NewRemoteMirrorExhaustedError(attempts int, err error) *StandardError {
	return newError(ErrCodeRemoteMirrorExhausted, "Remote mirror write failed after retries", err, false).
		WithMetadata("attempts", attempts)
}

func NewCRMSyncFailedError(errType SyncErrorType, attempts int, err error) *StandardError {
	return newError(ErrCodeCRMSyncFailed, "CRM case registration failed", err, true).
		WithMetadata("errorType", string(errType)).
		WithMetadata("severity", string(errType.Severity())).
		WithMetadata("hint", errType.Hint()).
		WithMetadata("attempts", attempts)
}

func NewLocalStorageUnavailableError(err error) *StandardError {
	return newError(ErrCodeLocalStorageUnavailable, "Local storage is unavailable, the submission could not be saved", err, true)
}

func NewInputValidationError(details string) *StandardError {
	e := newError(ErrCodeInputValidationFailed, "Input validation failed", nil, false)
	e.Details = details
	return e
}

func NewRecordNotFoundError(id string) *StandardError {
	e := newError(ErrCodeRecordNotFound, "Record not found", nil, false)
	e.Details = fmt.Sprintf("id: %s", id)
	return e
}

func NewConversionInProgressError(id string) *StandardError {
	e := newError(ErrCodeConversionInProgress, "Record is being converted by another instance", nil, true)
	e.Details = fmt.Sprintf("id: %s", id)
	return e
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err, true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

// CodeOf returns the code of the first StandardError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code, true
	}
	return "", false
}

func HasCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// GetRetryCount is the number of job retries granted to a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeLocalStorageUnavailable,
		ErrCodeDatabaseConnectionFailed:
		return 3
	case ErrCodeConversionInProgress:
		return 2
	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeCodingDefault, ErrCodeInputValidationFailed:
		return "VALIDATION"
	case ErrCodeDuplicateCheckDegraded, ErrCodeCRMSyncFailed:
		return "CRM"
	case ErrCodeNumberGenerationDegraded, ErrCodeRemoteMirrorExhausted, ErrCodeDatabaseConnectionFailed:
		return "DATABASE"
	case ErrCodeLocalStorageUnavailable, ErrCodeRecordNotFound:
		return "STORAGE"
	default:
		return "OTHER"
	}
}
