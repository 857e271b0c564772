/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the leave
  domain types from the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Small response wrappers

VALIDATION:
  Request bodies carry go-playground/validator tags and are checked by
  decodeAndValidate before they reach the service. Business rules (dates in
  the past, half-day combinations, balances) stay in leave.Service, which
  reports them with their own codes.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST BODIES
// =============================================================================

// CreateLeaveRequest is the body of POST /api/employees/{id}/leaves.
type CreateLeaveRequest struct {
	LeaveTypeID string `json:"leave_type_id" validate:"required"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02"`
	StartHalf   string `json:"start_half,omitempty"` // defaults to FullDay
	EndHalf     string `json:"end_half,omitempty"`   // defaults to FullDay
	Reason      string `json:"reason,omitempty" validate:"max=1000"`
}

// DecisionRequest is the body of POST /api/leaves/{id}/decisions.
type DecisionRequest struct {
	Role       string `json:"role" validate:"required"`
	Decision   string `json:"decision" validate:"required"`
	Reason     string `json:"reason,omitempty" validate:"max=1000"`
	ApproverID string `json:"approver_id" validate:"required"`
}

// CancelLeaveRequest is the body of POST /api/leaves/{id}/cancel.
type CancelLeaveRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type LeaveRequestDTO struct {
	ID               string           `json:"id"`
	EmployeeID       string           `json:"employee_id"`
	EmployeeName     string           `json:"employee_name,omitempty"`
	LeaveTypeID      string           `json:"leave_type_id"`
	LeaveTypeName    string           `json:"leave_type_name,omitempty"`
	StartDate        string           `json:"start_date"`
	EndDate          string           `json:"end_date"`
	StartHalf        string           `json:"start_half"`
	EndHalf          string           `json:"end_half"`
	Reason           string           `json:"reason,omitempty"`
	ManagerApproval  string           `json:"manager_approval"`
	HRApproval       string           `json:"hr_approval"`
	DirectorApproval string           `json:"director_approval"`
	Status           string           `json:"status"`
	UserStatus       string           `json:"user_status"`
	Days             decimal.Decimal  `json:"days"`
	CalculatedDays   *decimal.Decimal `json:"calculated_days,omitempty"`
	DebitedDays      decimal.Decimal  `json:"debited_days"`
	CreatedAt        string           `json:"created_at"`
	UpdatedAt        string           `json:"updated_at"`
}

type DecisionResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

type CancelResponse struct {
	RequestID      string          `json:"request_id"`
	Status         string          `json:"status"`
	ReimbursedDays decimal.Decimal `json:"reimbursed_days"`
}

type ApprovalRecordDTO struct {
	ID         string  `json:"id"`
	Role       string  `json:"role"`
	ApproverID string  `json:"approver_id,omitempty"`
	Status     string  `json:"status"`
	Reason     string  `json:"reason,omitempty"`
	Synthetic  bool    `json:"synthetic"`
	DecidedAt  *string `json:"decided_at,omitempty"`
}

type BalanceDTO struct {
	LeaveTypeID    string          `json:"leave_type_id"`
	LeaveTypeName  string          `json:"leave_type_name"`
	Balance        decimal.Decimal `json:"balance"`
	CarryForward   bool            `json:"carry_forward"`
	MonthlyAccrual decimal.Decimal `json:"monthly_accrual"`
}

type EmployeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	ManagerID  string `json:"manager_id,omitempty"`
	HRID       string `json:"hr_id,omitempty"`
	DirectorID string `json:"director_id,omitempty"`
}

type AccrualRunDTO struct {
	Job     string `json:"job"`
	Period  string `json:"period"`
	Applied int    `json:"applied"`
}

// TeamCalendarDTO is one month of a team's approved leave. Each member's
// days array has one entry per day of the month, null when at work.
type TeamCalendarDTO struct {
	Year     int             `json:"year"`
	Month    int             `json:"month"`
	TeamSize int             `json:"team_size"`
	Members  []TeamMemberDTO `json:"members"`
	Holidays []HolidayDTO    `json:"holidays"`
}

type TeamMemberDTO struct {
	EmployeeID string            `json:"employee_id"`
	Name       string            `json:"name"`
	Days       []*CalendarDayDTO `json:"days"`
}

type CalendarDayDTO struct {
	RequestID     string `json:"request_id"`
	LeaveTypeID   string `json:"leave_type_id"`
	LeaveTypeName string `json:"leave_type_name"`
}

type HolidayDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRequestDTO(r leave.Request) LeaveRequestDTO {
	return LeaveRequestDTO{
		ID:               r.ID,
		EmployeeID:       r.EmployeeID,
		LeaveTypeID:      r.LeaveTypeID,
		StartDate:        r.StartDate.String(),
		EndDate:          r.EndDate.String(),
		StartHalf:        string(r.StartHalf),
		EndHalf:          string(r.EndHalf),
		Reason:           r.Reason,
		ManagerApproval:  string(r.Approvals.Manager),
		HRApproval:       string(r.Approvals.HR),
		DirectorApproval: string(r.Approvals.Director),
		Status:           string(r.Status),
		UserStatus:       string(r.UserStatus),
		Days:             r.Days,
		DebitedDays:      r.DebitedDays,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        r.UpdatedAt.Format(time.RFC3339),
	}
}

func toViewDTOs(views []leave.RequestView) []LeaveRequestDTO {
	out := make([]LeaveRequestDTO, len(views))
	for i, v := range views {
		dto := toRequestDTO(v.Request)
		dto.EmployeeName = v.EmployeeName
		dto.LeaveTypeName = v.LeaveTypeName
		calculated := v.CalculatedDays
		dto.CalculatedDays = &calculated
		out[i] = dto
	}
	return out
}

func toRecordDTOs(records []leave.ApprovalRecord) []ApprovalRecordDTO {
	out := make([]ApprovalRecordDTO, len(records))
	for i, rec := range records {
		dto := ApprovalRecordDTO{
			ID:         rec.ID,
			Role:       string(rec.Role),
			ApproverID: rec.ApproverID,
			Status:     string(rec.Status),
			Reason:     rec.Reason,
			Synthetic:  rec.Synthetic,
		}
		if rec.DecidedAt != nil {
			s := rec.DecidedAt.Format(time.RFC3339)
			dto.DecidedAt = &s
		}
		out[i] = dto
	}
	return out
}

func toTeamCalendarDTO(cal leave.TeamCalendar) TeamCalendarDTO {
	dto := TeamCalendarDTO{
		Year:     cal.Year,
		Month:    int(cal.Month),
		TeamSize: len(cal.Members),
		Members:  make([]TeamMemberDTO, len(cal.Members)),
		Holidays: make([]HolidayDTO, len(cal.Holidays)),
	}
	for i, m := range cal.Members {
		days := make([]*CalendarDayDTO, len(m.Days))
		for j, day := range m.Days {
			if day != nil {
				days[j] = &CalendarDayDTO{RequestID: day.RequestID, LeaveTypeID: day.LeaveTypeID, LeaveTypeName: day.LeaveTypeName}
			}
		}
		dto.Members[i] = TeamMemberDTO{EmployeeID: m.EmployeeID, Name: m.Name, Days: days}
	}
	for i, h := range cal.Holidays {
		dto.Holidays[i] = HolidayDTO{ID: h.ID, Date: h.Date.String(), Name: h.Name, Recurring: h.Recurring}
	}
	return dto
}
