// Package leave implements leave requests: working-day durations, the
// Manager → HR → Director approval chain, day balances and accrual.
// Balances live in the generic ledger; everything request-shaped lives here.
package leave

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// ENUMS
// =============================================================================

// HalfDayType qualifies the first or last day of a leave range.
type HalfDayType string

const (
	FullDay    HalfDayType = "FullDay"
	FirstHalf  HalfDayType = "FirstHalf"  // morning
	SecondHalf HalfDayType = "SecondHalf" // afternoon
)

func (h HalfDayType) Valid() bool {
	switch h {
	case FullDay, FirstHalf, SecondHalf:
		return true
	}
	return false
}

// Role is an approval stage.
type Role string

const (
	RoleManager  Role = "Manager"
	RoleHR       Role = "HR"
	RoleDirector Role = "Director"
)

// Roles lists the stages in approval order.
var Roles = []Role{RoleManager, RoleHR, RoleDirector}

// ParseRole accepts the stage names case-insensitively. "Admin" is the
// Director stage.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manager":
		return RoleManager, nil
	case "hr":
		return RoleHR, nil
	case "director", "admin":
		return RoleDirector, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnauthorizedRole, s)
}

// EmployeeRole is the applicant's own position in the organisation.
type EmployeeRole string

const (
	EmployeeRoleEmployee EmployeeRole = "Employee"
	EmployeeRoleManager  EmployeeRole = "Manager"
	EmployeeRoleHR       EmployeeRole = "HR"
	EmployeeRoleAdmin    EmployeeRole = "Admin"
)

// ApprovalStatus is the state of one stage column.
type ApprovalStatus string

const (
	ApprovalPending     ApprovalStatus = "Pending"
	ApprovalApproved    ApprovalStatus = "Approved"
	ApprovalRejected    ApprovalStatus = "Rejected"
	ApprovalNotRequired ApprovalStatus = "NotRequired"
)

// cleared reports whether the stage no longer blocks approval.
func (s ApprovalStatus) cleared() bool {
	return s == ApprovalApproved || s == ApprovalNotRequired
}

type RequestStatus string

const (
	StatusPending   RequestStatus = "Pending"
	StatusApproved  RequestStatus = "Approved"
	StatusRejected  RequestStatus = "Rejected"
	StatusCancelled RequestStatus = "Cancelled"
)

func (s RequestStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

func ParseRequestStatus(s string) (RequestStatus, error) {
	switch RequestStatus(s) {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return RequestStatus(s), nil
	}
	return "", &ValidationError{Code: CodeInvalidStatus, Message: fmt.Sprintf("unknown status %q", s)}
}

// RecordStatus is the state of one audit record.
type RecordStatus string

const (
	RecordPending   RecordStatus = "Pending"
	RecordApproved  RecordStatus = "Approved"
	RecordRejected  RecordStatus = "Rejected"
	RecordCancelled RecordStatus = "Cancelled"
)

// =============================================================================
// APPROVAL STATE
// =============================================================================

// ApprovalState is the triple of stage columns on a request.
type ApprovalState struct {
	Manager  ApprovalStatus
	HR       ApprovalStatus
	Director ApprovalStatus
}

func (s ApprovalState) Get(role Role) ApprovalStatus {
	switch role {
	case RoleManager:
		return s.Manager
	case RoleHR:
		return s.HR
	case RoleDirector:
		return s.Director
	}
	return ""
}

func (s *ApprovalState) set(role Role, status ApprovalStatus) {
	switch role {
	case RoleManager:
		s.Manager = status
	case RoleHR:
		s.HR = status
	case RoleDirector:
		s.Director = status
	}
}

// =============================================================================
// DIRECTORY AND CATALOG (read-only to the engine)
// =============================================================================

// Employee carries the hierarchy lookups the approval chain needs.
// An empty approver ID means the stage is not assigned.
type Employee struct {
	ID         string
	Name       string
	Email      string
	Role       EmployeeRole
	ManagerID  string
	HRID       string
	DirectorID string
}

// ApproverFor returns the employee's assigned approver for a stage.
func (e Employee) ApproverFor(role Role) string {
	switch role {
	case RoleManager:
		return e.ManagerID
	case RoleHR:
		return e.HRID
	case RoleDirector:
		return e.DirectorID
	}
	return ""
}

type LeaveType struct {
	ID              string
	Name            string
	MaxDays         int // 0 = no per-request cap
	ApplyBeforeDays int
	CarryForward    bool
	MonthlyAccrual  decimal.Decimal
}

// =============================================================================
// REQUEST AND AUDIT RECORD
// =============================================================================

type Request struct {
	ID          string
	EmployeeID  string
	LeaveTypeID string
	StartDate   generic.TimePoint
	EndDate     generic.TimePoint
	StartHalf   HalfDayType
	EndHalf     HalfDayType
	Reason      string

	Approvals  ApprovalState
	Status     RequestStatus
	UserStatus RequestStatus

	// Days is the duration computed at creation. DebitedDays is what the
	// ledger was actually charged; zero until the request is approved.
	Days        decimal.Decimal
	DebitedDays decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r Request) Period() generic.Period {
	return generic.Period{Type: generic.PeriodRange, Start: r.StartDate, End: r.EndDate}
}

// ApprovalRecord is one row of a request's audit trail. There is at most one
// row per request and role.
type ApprovalRecord struct {
	ID         string
	RequestID  string
	Role       Role
	ApproverID string
	Status     RecordStatus
	Reason     string
	Synthetic  bool
	DecidedAt  *time.Time
	CreatedAt  time.Time
}

// =============================================================================
// VIEWS
// =============================================================================

// RequestView is a request as listed to callers, with its duration
// recomputed against the current holiday calendar.
type RequestView struct {
	Request
	EmployeeName   string
	LeaveTypeName  string
	CalculatedDays decimal.Decimal
}

type BalanceView struct {
	LeaveTypeID    string
	LeaveTypeName  string
	Balance        decimal.Decimal
	CarryForward   bool
	MonthlyAccrual decimal.Decimal
}

// TeamCalendar is one month of approved leave across the members of a team
// who are away at least once. Holidays are those falling in the month.
type TeamCalendar struct {
	Year     int
	Month    time.Month
	Members  []TeamMember
	Holidays []generic.Holiday
}

// TeamMember holds one entry per day of the month. A nil entry is a day the
// member is not on leave.
type TeamMember struct {
	EmployeeID string
	Name       string
	Days       []*CalendarDay
}

type CalendarDay struct {
	RequestID     string
	LeaveTypeID   string
	LeaveTypeName string
}

// Account is a provisioned (employee, leave type) balance.
type Account struct {
	EmployeeID  string
	LeaveTypeID string
}
