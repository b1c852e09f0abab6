package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrStaffAccessOnly   ErrCode = "STAFF_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrActionForbidden ErrCode = "ACTION_FORBIDDEN"

	// ─── Exam lifecycle ────────────────────────────────────────────────
	ErrExamNotAvailable ErrCode = "EXAM_NOT_AVAILABLE"
	ErrExamWindowClosed ErrCode = "EXAM_WINDOW_CLOSED"
	ErrExamNotPublished ErrCode = "EXAM_NOT_PUBLISHED"
	ErrExamNotDraft     ErrCode = "EXAM_NOT_DRAFT"
	ErrNotExamOwner     ErrCode = "NOT_EXAM_OWNER"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"

	// ─── Attempts ──────────────────────────────────────────────────────
	ErrAttemptClosed   ErrCode = "ATTEMPT_CLOSED"
	ErrAttemptNotFound ErrCode = "ATTEMPT_NOT_FOUND"
	ErrNotAcknowledged ErrCode = "RULES_NOT_ACKNOWLEDGED"

	// ─── Uploads ───────────────────────────────────────────────────────
	ErrFileRequired ErrCode = "FILE_REQUIRED"
	ErrFileTooLarge ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionActive:
		return "You are already signed in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please sign in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrStaffAccessOnly:
		return "This resource is restricted to staff."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrActionForbidden:
		return "This action is not allowed."

	// ─── Exam lifecycle ────────────────────────────────────────────────
	case ErrExamNotAvailable:
		return "This exam is currently not available."
	case ErrExamWindowClosed:
		return "The exam window has closed."
	case ErrExamNotPublished:
		return "This exam has not been published."
	case ErrExamNotDraft:
		return "This exam is not in DRAFT status."
	case ErrNotExamOwner:
		return "You are not the owner of this exam."
	case ErrNoQuestions:
		return "This exam has no questions."

	// ─── Attempts ──────────────────────────────────────────────────────
	case ErrAttemptClosed:
		return "This attempt has already been submitted."
	case ErrAttemptNotFound:
		return "No attempt found for this exam."
	case ErrNotAcknowledged:
		return "The exam rules have not been acknowledged."

	// ─── Uploads ───────────────────────────────────────────────────────
	case ErrFileRequired:
		return "A file upload is required."
	case ErrFileTooLarge:
		return "The file size exceeds the limit."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	}
	return "An unknown error occurred."
}
