package leave

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// QUERY VIEWS - Read-only projections
// =============================================================================

// RequestsForEmployee is an employee's full history, newest first.
func (s *Service) RequestsForEmployee(ctx context.Context, employeeID string) ([]RequestView, error) {
	return s.views(ctx, RequestFilter{EmployeeID: employeeID})
}

// RequestsByStatus is an employee's history filtered to one status.
func (s *Service) RequestsByStatus(ctx context.Context, employeeID string, status RequestStatus) ([]RequestView, error) {
	return s.views(ctx, RequestFilter{EmployeeID: employeeID, Statuses: []RequestStatus{status}})
}

// PendingForApprover lists the requests waiting on approverID at a stage.
// Managers see their direct reports; HR sees requests the manager stage has
// cleared; directors see requests both earlier stages have cleared.
func (s *Service) PendingForApprover(ctx context.Context, approverID string, role Role) ([]RequestView, error) {
	cleared := []ApprovalStatus{ApprovalApproved, ApprovalNotRequired}
	filter := RequestFilter{Statuses: []RequestStatus{StatusPending}}
	switch role {
	case RoleManager:
		filter.ManagerID = approverID
		filter.Manager = []ApprovalStatus{ApprovalPending}
	case RoleHR:
		filter.HRID = approverID
		filter.Manager = cleared
		filter.HR = []ApprovalStatus{ApprovalPending}
	case RoleDirector:
		filter.DirectorID = approverID
		filter.Manager = cleared
		filter.HR = cleared
		filter.Director = []ApprovalStatus{ApprovalPending}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnauthorizedRole, role)
	}
	return s.views(ctx, filter)
}

// AdminPending lists every request awaiting a director decision once the
// manager and HR stages are cleared.
func (s *Service) AdminPending(ctx context.Context) ([]RequestView, error) {
	cleared := []ApprovalStatus{ApprovalApproved, ApprovalNotRequired}
	return s.views(ctx, RequestFilter{
		Statuses: []RequestStatus{StatusPending},
		Manager:  cleared,
		HR:       cleared,
		Director: []ApprovalStatus{ApprovalPending},
	})
}

// TeamCalendar lays out a month of Approved leave for the caller's team.
//
// HR sees everyone. A Manager sees their direct reports. Anyone else sees
// their manager's reports, themselves included, or only themselves when they
// have no manager.
func (s *Service) TeamCalendar(ctx context.Context, employeeID string, year int, month time.Month) (TeamCalendar, error) {
	if month < time.January || month > time.December || year < 1 {
		return TeamCalendar{}, invalid(CodeInvalidMonth, "no such month %d-%d", year, int(month))
	}
	caller, err := s.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return TeamCalendar{}, err
	}
	team, err := s.teamOf(ctx, caller)
	if err != nil {
		return TeamCalendar{}, err
	}

	period := generic.MonthPeriod(year, month)
	requests, err := s.Store.ListRequests(ctx, RequestFilter{
		Statuses:    []RequestStatus{StatusApproved},
		Overlapping: &period,
	})
	if err != nil {
		return TeamCalendar{}, err
	}
	byEmployee := make(map[string][]Request)
	for _, r := range requests {
		byEmployee[r.EmployeeID] = append(byEmployee[r.EmployeeID], r)
	}

	days := period.Days()
	typeNames := map[string]string{}
	out := TeamCalendar{Year: year, Month: month}
	for _, member := range team {
		own := byEmployee[member.ID]
		if len(own) == 0 {
			continue
		}
		row := TeamMember{EmployeeID: member.ID, Name: member.Name, Days: make([]*CalendarDay, len(days))}
		for _, r := range own {
			name, err := cachedName(typeNames, r.LeaveTypeID, func() (string, error) {
				lt, err := s.Store.GetLeaveType(ctx, r.LeaveTypeID)
				return lt.Name, err
			})
			if err != nil {
				return TeamCalendar{}, err
			}
			entry := &CalendarDay{RequestID: r.ID, LeaveTypeID: r.LeaveTypeID, LeaveTypeName: name}
			for i, day := range days {
				if r.Period().Contains(day) {
					row.Days[i] = entry
				}
			}
		}
		out.Members = append(out.Members, row)
	}

	out.Holidays, err = s.holidaysIn(ctx, period)
	if err != nil {
		return TeamCalendar{}, err
	}
	return out, nil
}

func (s *Service) teamOf(ctx context.Context, caller Employee) ([]Employee, error) {
	all, err := s.Store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case caller.Role == EmployeeRoleHR:
		return all, nil
	case caller.Role == EmployeeRoleManager:
		return reportsOf(all, caller.ID), nil
	case caller.ManagerID == "":
		return []Employee{caller}, nil
	}
	team := reportsOf(all, caller.ManagerID)
	for _, e := range team {
		if e.ID == caller.ID {
			return team, nil
		}
	}
	return append(team, caller), nil
}

func reportsOf(all []Employee, managerID string) []Employee {
	var out []Employee
	for _, e := range all {
		if e.ManagerID == managerID {
			out = append(out, e)
		}
	}
	return out
}

// holidaysIn lists the holidays inside period, recurring ones moved to the
// period's year.
func (s *Service) holidaysIn(ctx context.Context, period generic.Period) ([]generic.Holiday, error) {
	all, err := s.Store.Holidays(ctx)
	if err != nil {
		return nil, err
	}
	var out []generic.Holiday
	for _, h := range all {
		if h.Recurring {
			moved := generic.NewTimePoint(period.Start.Year(), h.Date.Month(), h.Date.Day())
			if moved.Month() != h.Date.Month() {
				continue // 29 February outside a leap year
			}
			h.Date = moved
		}
		if period.Contains(h.Date) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// AuditTrail returns a request's approval records in decision order.
// Undecided records come last.
func (s *Service) AuditTrail(ctx context.Context, requestID string) ([]ApprovalRecord, error) {
	if _, err := s.Store.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	records, err := s.Store.ApprovalRecords(ctx, requestID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].DecidedAt, records[j].DecidedAt
		switch {
		case a == nil && b == nil:
			return roleOrder(records[i].Role) < roleOrder(records[j].Role)
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return roleOrder(records[i].Role) < roleOrder(records[j].Role)
		}
	})
	return records, nil
}

func roleOrder(r Role) int {
	for i, role := range Roles {
		if role == r {
			return i
		}
	}
	return len(Roles)
}

// Balances returns every provisioned balance of an employee.
func (s *Service) Balances(ctx context.Context, employeeID string) ([]BalanceView, error) {
	if _, err := s.Store.GetEmployee(ctx, employeeID); err != nil {
		return nil, err
	}
	var out []BalanceView
	err := s.Store.WithTx(ctx, func(tx StoreTx) error {
		accounts, err := tx.Accounts(ctx, employeeID)
		if err != nil {
			return err
		}
		ledger := NewBalanceLedger(tx, s.today(), employeeID)
		for _, a := range accounts {
			lt, err := tx.GetLeaveType(ctx, a.LeaveTypeID)
			if err != nil {
				return err
			}
			bal, err := ledger.Balance(ctx, employeeID, a.LeaveTypeID)
			if err != nil {
				return err
			}
			out = append(out, BalanceView{
				LeaveTypeID:    lt.ID,
				LeaveTypeName:  lt.Name,
				Balance:        bal,
				CarryForward:   lt.CarryForward,
				MonthlyAccrual: lt.MonthlyAccrual,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeaveTypeID < out[j].LeaveTypeID })
	return out, nil
}

func (s *Service) views(ctx context.Context, filter RequestFilter) ([]RequestView, error) {
	requests, err := s.Store.ListRequests(ctx, filter)
	if err != nil {
		return nil, err
	}
	cal, err := holidayCalendar(ctx, s.Store)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	typeNames := map[string]string{}
	views := make([]RequestView, 0, len(requests))
	for _, r := range requests {
		v := RequestView{Request: r, CalculatedDays: RequestDuration(r, cal)}
		v.EmployeeName, err = cachedName(names, r.EmployeeID, func() (string, error) {
			e, err := s.Store.GetEmployee(ctx, r.EmployeeID)
			return e.Name, err
		})
		if err != nil {
			return nil, err
		}
		v.LeaveTypeName, err = cachedName(typeNames, r.LeaveTypeID, func() (string, error) {
			lt, err := s.Store.GetLeaveType(ctx, r.LeaveTypeID)
			return lt.Name, err
		})
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func cachedName(cache map[string]string, id string, load func() (string, error)) (string, error) {
	if name, ok := cache[id]; ok {
		return name, nil
	}
	name, err := load()
	if err != nil {
		return "", err
	}
	cache[id] = name
	return name, nil
}

// Balance is a single balance lookup.
func (s *Service) Balance(ctx context.Context, employeeID, leaveTypeID string) (bal decimal.Decimal, err error) {
	err = s.Store.WithTx(ctx, func(tx StoreTx) error {
		bal, err = NewBalanceLedger(tx, s.today(), employeeID).Balance(ctx, employeeID, leaveTypeID)
		return err
	})
	return bal, err
}
