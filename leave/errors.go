package leave

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers missing requests, employees and leave types, and
	// requests that belong to someone else.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorizedRole is returned for an unknown stage or when the caller
	// is not the approver assigned to that stage.
	ErrUnauthorizedRole = errors.New("unauthorized role")

	// ErrInvalidDecision is returned for a verdict other than Approved/Rejected.
	ErrInvalidDecision = errors.New("invalid decision")

	// ErrAlreadyTerminal is returned when acting on a request that can no
	// longer change.
	ErrAlreadyTerminal = errors.New("request already terminal")

	// ErrStageNotRequired is returned for a decision on a skipped stage.
	ErrStageNotRequired = errors.New("approval stage not required")

	// ErrStageAlreadyDecided is returned when a stage already has a verdict.
	ErrStageAlreadyDecided = errors.New("approval stage already decided")
)

// Validation codes. Each failing create check has its own code so callers
// can tell them apart without parsing messages.
const (
	CodeInvalidDateRange     = "invalid_date_range"
	CodePastStartDate        = "past_start_date"
	CodeInvalidHalfDay       = "invalid_half_day"
	CodeUnknownEmployee      = "unknown_employee"
	CodeUnknownLeaveType     = "unknown_leave_type"
	CodeInsufficientLeadTime = "insufficient_lead_time"
	CodeZeroDuration         = "zero_duration"
	CodeExceedsMaxDays       = "exceeds_max_days"
	CodeNoBalance            = "no_balance"
	CodeInsufficientBalance  = "insufficient_balance"
	CodeOverlappingRequest   = "overlapping_request"
	CodeInvalidStatus        = "invalid_status"
	CodeInvalidMonth         = "invalid_month"
)

// ValidationError is a rejected user input. Message is safe to show as is.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalid(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
