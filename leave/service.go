package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/events"
	"github.com/warp/leave-engine/generic"
	"go.uber.org/zap"
)

const cancelReason = "Cancelled by user"

// =============================================================================
// SERVICE - Request lifecycle with transactional guarantees
// =============================================================================

// Service creates, decides and cancels leave requests. Every mutation runs in
// one Store.WithTx call: the stage columns, the audit records and the ledger
// entries of a decision commit together or not at all.
type Service struct {
	Store  Store
	Events events.Publisher
	Logger *zap.Logger

	// Now is the clock. Date rules (past start, lead time, cancellation
	// reimbursement) use its UTC calendar date.
	Now func() time.Time
}

func NewService(store Store, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:  store,
		Events: publisher,
		Logger: logger.Named("leave.service"),
		Now:    time.Now,
	}
}

func (s *Service) today() generic.TimePoint {
	return generic.DateOf(s.Now().UTC())
}

// =============================================================================
// CREATE
// =============================================================================

type CreateInput struct {
	EmployeeID  string
	LeaveTypeID string
	StartDate   generic.TimePoint
	EndDate     generic.TimePoint
	StartHalf   HalfDayType
	EndHalf     HalfDayType
	Reason      string
}

// Create validates and stores a new Pending request. Validation failures are
// returned as *ValidationError, one code per check.
func (s *Service) Create(ctx context.Context, in CreateInput) (Request, error) {
	today := s.today()
	now := s.Now().UTC()
	var created Request

	err := s.Store.WithTx(ctx, func(tx StoreTx) error {
		period, err := generic.NewPeriod(in.StartDate, in.EndDate)
		if err != nil {
			return invalid(CodeInvalidDateRange, "end date %s is before start date %s", in.EndDate, in.StartDate)
		}
		if in.StartDate.Before(today) {
			return invalid(CodePastStartDate, "start date %s is in the past", in.StartDate)
		}
		if err := ValidateHalfDays(in.StartDate, in.EndDate, in.StartHalf, in.EndHalf); err != nil {
			return err
		}

		emp, err := tx.GetEmployee(ctx, in.EmployeeID)
		if errors.Is(err, ErrNotFound) {
			return invalid(CodeUnknownEmployee, "employee %q does not exist", in.EmployeeID)
		}
		if err != nil {
			return err
		}
		lt, err := tx.GetLeaveType(ctx, in.LeaveTypeID)
		if errors.Is(err, ErrNotFound) {
			return invalid(CodeUnknownLeaveType, "leave type %q does not exist", in.LeaveTypeID)
		}
		if err != nil {
			return err
		}

		if lead := generic.DaysBetween(today, in.StartDate); lead < lt.ApplyBeforeDays {
			return invalid(CodeInsufficientLeadTime,
				"%s must be applied for at least %d days in advance", lt.Name, lt.ApplyBeforeDays)
		}

		cal, err := holidayCalendar(ctx, tx)
		if err != nil {
			return err
		}
		duration := CalculateDuration(in.StartDate, in.EndDate, in.StartHalf, in.EndHalf, cal)
		if !duration.IsPositive() {
			return invalid(CodeZeroDuration, "the selected dates contain no working days")
		}
		if lt.MaxDays > 0 && duration.GreaterThan(decimal.NewFromInt(int64(lt.MaxDays))) {
			return invalid(CodeExceedsMaxDays, "%s allows at most %d days per request", lt.Name, lt.MaxDays)
		}

		if ok, err := hasAccount(ctx, tx, emp.ID, lt.ID); err != nil {
			return err
		} else if !ok {
			return invalid(CodeNoBalance, "no %s balance is set up for this employee", lt.Name)
		}
		balance, err := NewBalanceLedger(tx, today, emp.ID).Balance(ctx, emp.ID, lt.ID)
		if err != nil {
			return err
		}
		if balance.LessThan(duration) {
			return invalid(CodeInsufficientBalance,
				"requested %s days but only %s %s days are available", duration, balance, lt.Name)
		}

		overlapping, err := tx.ListRequests(ctx, RequestFilter{
			EmployeeID:  emp.ID,
			Statuses:    []RequestStatus{StatusPending, StatusApproved},
			Overlapping: &period,
		})
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return invalid(CodeOverlappingRequest,
				"the dates overlap request %s (%s to %s)",
				overlapping[0].ID, overlapping[0].StartDate, overlapping[0].EndDate)
		}

		created = Request{
			ID:          uuid.NewString(),
			EmployeeID:  emp.ID,
			LeaveTypeID: lt.ID,
			StartDate:   in.StartDate,
			EndDate:     in.EndDate,
			StartHalf:   in.StartHalf,
			EndHalf:     in.EndHalf,
			Reason:      in.Reason,
			Approvals:   InitialState(emp, duration),
			Status:      StatusPending,
			UserStatus:  StatusPending,
			Days:        duration,
			DebitedDays: decimal.Zero,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreateRequest(ctx, created); err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		// Every assigned approver gets a row, including a director the
		// short-leave gate skipped; Reduce and Cancel close it later.
		for _, role := range Roles {
			if emp.ApproverFor(role) == "" {
				continue
			}
			if err := tx.SaveApprovalRecord(ctx, ApprovalRecord{
				ID:         uuid.NewString(),
				RequestID:  created.ID,
				Role:       role,
				ApproverID: emp.ApproverFor(role),
				Status:     RecordPending,
				CreatedAt:  now,
			}); err != nil {
				return fmt.Errorf("seed %s approval record: %w", role, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logFailure("create leave failed", err,
			zap.String("employee_id", in.EmployeeID),
			zap.String("leave_type_id", in.LeaveTypeID),
			zap.Stringer("start_date", in.StartDate),
			zap.Stringer("end_date", in.EndDate),
		)
		return Request{}, err
	}

	s.Logger.Info("create leave success",
		zap.String("request_id", created.ID),
		zap.String("employee_id", created.EmployeeID),
		zap.String("days", created.Days.String()),
	)
	s.publish(ctx, events.EventLeaveCreated, created, created.EmployeeID, "")
	return created, nil
}

func hasAccount(ctx context.Context, r Reader, employeeID, leaveTypeID string) (bool, error) {
	accounts, err := r.Accounts(ctx, employeeID)
	if err != nil {
		return false, err
	}
	for _, a := range accounts {
		if a.LeaveTypeID == leaveTypeID {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// DECIDE
// =============================================================================

// Decide records one approver's verdict and returns the request's status
// afterwards. The balance is debited here, once, when the request first
// becomes Approved.
func (s *Service) Decide(ctx context.Context, requestID string, role Role, verdict ApprovalStatus, reason, approverID string) (RequestStatus, error) {
	today := s.today()
	now := s.Now().UTC()
	var (
		req     Request
		outcome Outcome
	)

	err := s.Store.WithTx(ctx, func(tx StoreTx) error {
		var err error
		req, err = tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return fmt.Errorf("%w: request %s is %s", ErrAlreadyTerminal, req.ID, req.Status)
		}
		applicant, err := tx.GetEmployee(ctx, req.EmployeeID)
		if err != nil {
			return err
		}
		if err := authorize(ctx, tx, applicant, role, approverID); err != nil {
			return err
		}

		cal, err := holidayCalendar(ctx, tx)
		if err != nil {
			return err
		}
		duration := RequestDuration(req, cal)

		outcome, err = Reduce(req.Approvals, Decision{
			Role: role, Verdict: verdict, Reason: reason, ApproverID: approverID,
		}, DecisionContext{Applicant: applicant, Duration: duration})
		if err != nil {
			return err
		}

		if err := saveRecords(ctx, tx, req.ID, outcome.Records, now); err != nil {
			return err
		}

		ledger := NewBalanceLedger(tx, today, approverID)
		switch {
		case outcome.Approved:
			if err := ledger.Debit(ctx, req.EmployeeID, req.LeaveTypeID, duration, req.ID); err != nil {
				if errors.Is(err, generic.ErrInsufficientBalance) {
					s.Logger.Error("balance integrity fault at approval",
						zap.String("request_id", req.ID),
						zap.String("employee_id", req.EmployeeID),
						zap.String("leave_type_id", req.LeaveTypeID),
						zap.Error(err),
					)
				}
				return err
			}
			req.DebitedDays = duration
		case outcome.Status == StatusRejected && req.DebitedDays.IsPositive():
			if err := ledger.Credit(ctx, req.EmployeeID, req.LeaveTypeID, req.DebitedDays, req.ID, "rejected after debit"); err != nil {
				return err
			}
		}

		req.Approvals = outcome.State
		req.Status = outcome.Status
		req.UserStatus = outcome.Status
		req.UpdatedAt = now
		return tx.UpdateRequest(ctx, req)
	})
	if err != nil {
		s.logFailure("record decision failed", err,
			zap.String("request_id", requestID),
			zap.String("role", string(role)),
			zap.String("verdict", string(verdict)),
			zap.String("approver_id", approverID),
		)
		return "", err
	}

	s.Logger.Info("record decision success",
		zap.String("request_id", req.ID),
		zap.String("role", string(role)),
		zap.String("verdict", string(verdict)),
		zap.String("status", string(req.Status)),
		zap.Bool("auto_approved", outcome.AutoApproved),
	)
	switch req.Status {
	case StatusApproved:
		s.publish(ctx, events.EventLeaveApproved, req, approverID, role)
	case StatusRejected:
		s.publish(ctx, events.EventLeaveRejected, req, approverID, role)
	}
	return req.Status, nil
}

// authorize accepts the approver assigned to the stage. An Admin may also act
// for the director stage of any request that has one.
func authorize(ctx context.Context, r Reader, applicant Employee, role Role, approverID string) error {
	assigned := applicant.ApproverFor(role)
	if approverID != "" && assigned == approverID {
		return nil
	}
	if role == RoleDirector && assigned != "" && approverID != "" {
		actor, err := r.GetEmployee(ctx, approverID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err == nil && actor.Role == EmployeeRoleAdmin {
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not the %s approver for employee %s", ErrUnauthorizedRole, approverID, role, applicant.ID)
}

func saveRecords(ctx context.Context, tx StoreTx, requestID string, changes []RecordChange, now time.Time) error {
	if len(changes) == 0 {
		return nil
	}
	existing, err := tx.ApprovalRecords(ctx, requestID)
	if err != nil {
		return err
	}
	byRole := make(map[Role]ApprovalRecord, len(existing))
	for _, rec := range existing {
		byRole[rec.Role] = rec
	}

	for _, c := range changes {
		rec, ok := byRole[c.Role]
		if !ok {
			rec = ApprovalRecord{ID: uuid.NewString(), RequestID: requestID, Role: c.Role, CreatedAt: now}
		}
		decided := now
		rec.ApproverID = c.ApproverID
		rec.Status = c.Status
		rec.Reason = c.Reason
		rec.Synthetic = c.Synthetic
		rec.DecidedAt = &decided
		if err := tx.SaveApprovalRecord(ctx, rec); err != nil {
			return fmt.Errorf("save %s approval record: %w", c.Role, err)
		}
	}
	return nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel withdraws a Pending or Approved request on behalf of its owner and
// returns the days credited back.
//
// For an Approved request the refund depends on today: before the start the
// whole debit comes back; during the leave only the working days after today
// come back and the request is shortened to end today; after the end nothing
// comes back.
func (s *Service) Cancel(ctx context.Context, requestID, employeeID string) (decimal.Decimal, error) {
	today := s.today()
	now := s.Now().UTC()
	var (
		req        Request
		reimbursed = decimal.Zero
	)

	err := s.Store.WithTx(ctx, func(tx StoreTx) error {
		var err error
		req, err = tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.EmployeeID != employeeID {
			return fmt.Errorf("%w: request %s", ErrNotFound, requestID)
		}
		if req.Status.Terminal() {
			return fmt.Errorf("%w: request %s is %s", ErrAlreadyTerminal, req.ID, req.Status)
		}

		if req.Status == StatusApproved {
			switch {
			case today.Before(req.StartDate):
				reimbursed = req.DebitedDays
			case today.BeforeOrEqual(req.EndDate):
				cal, err := holidayCalendar(ctx, tx)
				if err != nil {
					return err
				}
				remaining := CalculateDuration(today.AddDays(1), req.EndDate, FullDay, req.EndHalf, cal)
				reimbursed = decimal.Min(remaining, req.DebitedDays)
				req.EndDate = today
				req.EndHalf = FullDay
			}
		}

		if reimbursed.IsPositive() {
			ledger := NewBalanceLedger(tx, today, employeeID)
			if err := ledger.Credit(ctx, req.EmployeeID, req.LeaveTypeID, reimbursed, req.ID, "cancelled by employee"); err != nil {
				return err
			}
		}

		records, err := tx.ApprovalRecords(ctx, req.ID)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if rec.Status != RecordPending && rec.Status != RecordApproved {
				continue
			}
			decided := now
			rec.Status = RecordCancelled
			rec.Reason = cancelReason
			rec.DecidedAt = &decided
			if err := tx.SaveApprovalRecord(ctx, rec); err != nil {
				return err
			}
		}

		req.Status = StatusCancelled
		req.UserStatus = StatusCancelled
		req.UpdatedAt = now
		return tx.UpdateRequest(ctx, req)
	})
	if err != nil {
		s.logFailure("cancel leave failed", err,
			zap.String("request_id", requestID),
			zap.String("employee_id", employeeID),
		)
		return decimal.Zero, err
	}

	s.Logger.Info("cancel leave success",
		zap.String("request_id", req.ID),
		zap.String("reimbursed", reimbursed.String()),
	)
	s.publish(ctx, events.EventLeaveCancelled, req, employeeID, "")
	return reimbursed, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// publish runs after commit. A broker failure is logged and does not undo
// the state change.
func (s *Service) publish(ctx context.Context, eventType string, req Request, actorID string, role Role) {
	days := req.Days
	if req.Status == StatusApproved {
		days = req.DebitedDays
	}
	err := s.Events.PublishLeaveStatusChanged(ctx, events.LeaveStatusChanged{
		EventType:   eventType,
		RequestID:   req.ID,
		EmployeeID:  req.EmployeeID,
		LeaveTypeID: req.LeaveTypeID,
		Status:      string(req.Status),
		ActorID:     actorID,
		Role:        string(role),
		Days:        days.String(),
		OccurredAt:  s.Now().UTC(),
	})
	if err != nil {
		s.Logger.Warn("publish leave event failed",
			zap.String("event_type", eventType),
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
	}
}

// logFailure logs caller mistakes at warn and everything else at error.
func (s *Service) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	switch {
	case IsValidation(err),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnauthorizedRole),
		errors.Is(err, ErrInvalidDecision),
		errors.Is(err, ErrAlreadyTerminal),
		errors.Is(err, ErrStageNotRequired),
		errors.Is(err, ErrStageAlreadyDecided):
		s.Logger.Warn(msg, fields...)
	default:
		s.Logger.Error(msg, fields...)
	}
}
