package leave

import (
	"context"

	"github.com/warp/leave-engine/generic"
)

// RequestFilter narrows ListRequests. Zero fields match everything. The
// approver IDs match against the applicant's assigned approvers.
type RequestFilter struct {
	EmployeeID string
	Statuses   []RequestStatus

	ManagerID  string
	HRID       string
	DirectorID string

	Manager  []ApprovalStatus
	HR       []ApprovalStatus
	Director []ApprovalStatus

	// Overlapping keeps requests sharing at least one day with the period.
	Overlapping *generic.Period
}

// Reader is the read side of a Store. Lookups of missing rows return an
// error wrapping ErrNotFound.
type Reader interface {
	GetEmployee(ctx context.Context, id string) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	GetLeaveType(ctx context.Context, id string) (LeaveType, error)
	ListLeaveTypes(ctx context.Context) ([]LeaveType, error)
	Holidays(ctx context.Context) ([]generic.Holiday, error)

	GetRequest(ctx context.Context, id string) (Request, error)
	// ListRequests returns matches newest first.
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error)
	ApprovalRecords(ctx context.Context, requestID string) ([]ApprovalRecord, error)

	// Accounts lists provisioned balances. An empty employeeID lists all.
	Accounts(ctx context.Context, employeeID string) ([]Account, error)

	// Watermark returns the last period a job completed, if any.
	Watermark(ctx context.Context, job string) (generic.TimePoint, bool, error)
}

// StoreTx is a unit of work. Its ledger writes, request writes and audit
// records commit or roll back together.
type StoreTx interface {
	Reader
	generic.Store

	CreateRequest(ctx context.Context, r Request) error
	UpdateRequest(ctx context.Context, r Request) error
	// SaveApprovalRecord inserts or replaces the record with the same ID.
	SaveApprovalRecord(ctx context.Context, rec ApprovalRecord) error
	SetWatermark(ctx context.Context, job string, at generic.TimePoint) error
}

// Store is the persistence boundary. WithTx serializes units of work, which
// is what keeps two approvers from both computing a final status from the
// same stale state.
type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(tx StoreTx) error) error
}

func holidayCalendar(ctx context.Context, r Reader) (*generic.HolidaySet, error) {
	hs, err := r.Holidays(ctx)
	if err != nil {
		return nil, err
	}
	return generic.NewHolidaySet(hs), nil
}
