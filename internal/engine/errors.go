package engine

// ErrorKind classifies a business error for callers that translate it
// into a transport status (validation and state map to 4xx, not-found
// to 404; anything else is a persistence failure).
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindState
	KindNotFound
)

// BusinessError is a typed, user-facing failure with a stable code.
type BusinessError struct {
	Code    string
	Message string
	Kind    ErrorKind
}

func (e *BusinessError) Error() string { return e.Message }

var (
	ErrTitleRequired  = &BusinessError{Code: "TITLE_REQUIRED", Message: "title is required", Kind: KindValidation}
	ErrModuleRequired = &BusinessError{Code: "MODULE_REQUIRED", Message: "module is required", Kind: KindValidation}
	ErrBadPriority    = &BusinessError{Code: "BAD_PRIORITY", Message: "unknown priority", Kind: KindValidation}

	// Not-found covers both absent and foreign-owned rows so callers
	// cannot probe for other users' data.
	ErrTaskNotFound   = &BusinessError{Code: "TASK_NOT_FOUND", Message: "task not found", Kind: KindNotFound}
	ErrModuleNotFound = &BusinessError{Code: "MODULE_NOT_FOUND", Message: "module not found", Kind: KindNotFound}

	ErrStartNotAllowed    = &BusinessError{Code: "START_NOT_ALLOWED", Message: "status does not allow start", Kind: KindState}
	ErrPauseNotAllowed    = &BusinessError{Code: "PAUSE_NOT_ALLOWED", Message: "status does not allow pause", Kind: KindState}
	ErrCompleteNotAllowed = &BusinessError{Code: "COMPLETE_NOT_ALLOWED", Message: "status does not allow complete", Kind: KindState}
	ErrTaskCompleted      = &BusinessError{Code: "TASK_COMPLETED", Message: "completed tasks cannot be interrupted", Kind: KindState}
	ErrTaskInterrupted    = &BusinessError{Code: "TASK_INTERRUPTED", Message: "status does not allow interrupt", Kind: KindState}
	ErrTaskRunning        = &BusinessError{Code: "TASK_RUNNING", Message: "task is in progress", Kind: KindState}
	ErrModuleHasTasks     = &BusinessError{Code: "MODULE_HAS_TASKS", Message: "module still has tasks", Kind: KindState}
)
