package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 20000-20999: Assessment lifecycle errors
// 21000-21999: Question & fixture errors
// 22000-22999: Evaluation & sandbox errors
const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102
	TransactionFailed   ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError     ErrorCode = 10200
	CacheMiss      ErrorCode = 10201
	CacheSetFailed ErrorCode = 10202
	LockFailed     ErrorCode = 10203

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// Auth errors (10400-10499)
	TokenExpired ErrorCode = 10400
	TokenInvalid ErrorCode = 10401

	// ========== Assessment Lifecycle Errors (20000-20999) ==========

	// Lookup (20000-20099)
	AssessmentNotFound  ErrorCode = 20000
	CandidateNotFound   ErrorCode = 20001
	InvalidAccessToken  ErrorCode = 20002
	AssessmentForbidden ErrorCode = 20003

	// Transitions (20100-20199)
	StateConflict      ErrorCode = 20100
	InviteExpired      ErrorCode = 20101
	TimeLimitExpired   ErrorCode = 20102
	QuestionNotChosen  ErrorCode = 20103
	SubmissionTooLarge ErrorCode = 20104

	// ========== Question & Fixture Errors (21000-21999) ==========

	QuestionNotFound      ErrorCode = 21000
	QuestionTypeUnknown   ErrorCode = 21001
	FixtureUnavailable    ErrorCode = 21100
	FixtureWriteFailed    ErrorCode = 21101
	LanguageNotSupported  ErrorCode = 21200
	StarterCodeNotDefined ErrorCode = 21201

	// ========== Evaluation & Sandbox Errors (22000-22999) ==========

	// Orchestration (22000-22099)
	EvaluationNotReady   ErrorCode = 22000
	EvaluationInProgress ErrorCode = 22001
	EvaluationQueueFull  ErrorCode = 22002

	// Sandbox (22100-22199)
	SandboxFailure    ErrorCode = 22100
	SandboxTimeout    ErrorCode = 22101
	SandboxBadOutput  ErrorCode = 22102
	SandboxStartError ErrorCode = 22103

	// Harness (22200-22299)
	HarnessError        ErrorCode = 22200
	HarnessSchemaFailed ErrorCode = 22201
	EntryPointNotFound  ErrorCode = 22202
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:       "Database operation failed",
	RecordNotFound:      "Record not found in database",
	RecordAlreadyExists: "Record already exists",
	TransactionFailed:   "Database transaction failed",

	// Cache
	CacheError:     "Cache operation failed",
	CacheMiss:      "Cache miss",
	CacheSetFailed: "Failed to set cache",
	LockFailed:     "Failed to acquire lock",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Auth
	TokenExpired: "Token has expired",
	TokenInvalid: "Token is invalid",

	// Assessment lifecycle
	AssessmentNotFound:  "Assessment not found",
	CandidateNotFound:   "Candidate not found",
	InvalidAccessToken:  "Assessment access token is invalid",
	AssessmentForbidden: "Assessment does not belong to this caller",
	StateConflict:       "Assessment state does not allow this transition",
	InviteExpired:       "Assessment invitation has expired",
	TimeLimitExpired:    "Assessment time limit has elapsed",
	QuestionNotChosen:   "No coding question has been chosen",
	SubmissionTooLarge:  "Code submission exceeds the size limit",

	// Question & fixture
	QuestionNotFound:      "Coding question not found",
	QuestionTypeUnknown:   "Unknown question type",
	FixtureUnavailable:    "No fixture bundle available for this question type",
	FixtureWriteFailed:    "Failed to materialize fixture bundle",
	LanguageNotSupported:  "Code language is not supported",
	StarterCodeNotDefined: "No starter code defined for this language",

	// Evaluation & sandbox
	EvaluationNotReady:   "Assessment is not ready for evaluation",
	EvaluationInProgress: "Evaluation is already in progress",
	EvaluationQueueFull:  "Evaluation worker pool is full",
	SandboxFailure:       "Sandbox execution failed",
	SandboxTimeout:       "Sandbox execution timed out",
	SandboxBadOutput:     "Sandbox produced malformed output",
	SandboxStartError:    "Sandbox failed to start",
	HarnessError:         "Test harness failed",
	HarnessSchemaFailed:  "Schema setup failed",
	EntryPointNotFound:   "Entry-point function not found in submission",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == TokenExpired, c == TokenInvalid, c == InvalidAccessToken:
		return 401
	case c == Forbidden, c == AssessmentForbidden:
		return 403
	case c == NotFound, c == AssessmentNotFound, c == CandidateNotFound, c == QuestionNotFound, c == RecordNotFound:
		return 404
	case c == StateConflict, c == EvaluationInProgress:
		return 409
	case c == InviteExpired, c == TimeLimitExpired:
		return 410
	case c == TooManyRequests, c == EvaluationQueueFull:
		return 429
	case c == ServiceUnavailable:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == LanguageNotSupported, c == QuestionNotChosen, c == SubmissionTooLarge, c == EvaluationNotReady:
		return 400
	default:
		return 500
	}
}
