package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/events"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// FIXTURE
// =============================================================================

// Monday.
var monday = time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memory.Store
	svc    *leave.Service
	events *events.Recorder
	ctx    context.Context
}

// newFixture seeds a small org:
//
//	e1  Employee  manager m1, HR h1, director d1   annual 10, comp 0.5
//	e2  Employee  manager m1, director d1          annual 10
//	h2  HR        manager m1, HR h1, director d1   annual 10
//	a1  Admin
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	for _, e := range []leave.Employee{
		{ID: "m1", Name: "Mira", Role: leave.EmployeeRoleManager},
		{ID: "h1", Name: "Hal", Role: leave.EmployeeRoleHR},
		{ID: "d1", Name: "Dana", Role: leave.EmployeeRoleManager},
		{ID: "a1", Name: "Ada", Role: leave.EmployeeRoleAdmin},
		{ID: "e1", Name: "Eve", Role: leave.EmployeeRoleEmployee, ManagerID: "m1", HRID: "h1", DirectorID: "d1"},
		{ID: "e2", Name: "Eli", Role: leave.EmployeeRoleEmployee, ManagerID: "m1", DirectorID: "d1"},
		{ID: "h2", Name: "Hugo", Role: leave.EmployeeRoleHR, ManagerID: "m1", HRID: "h1", DirectorID: "d1"},
	} {
		require.NoError(t, store.SaveEmployee(ctx, e))
	}
	for _, lt := range []leave.LeaveType{
		{ID: "annual", Name: "Annual", MaxDays: 10, CarryForward: true, MonthlyAccrual: dec("1.5")},
		{ID: "comp", Name: "Comp off"},
		{ID: "planned", Name: "Planned", ApplyBeforeDays: 7},
		{ID: "sick", Name: "Sick", MonthlyAccrual: dec("1")},
	} {
		require.NoError(t, store.SaveLeaveType(ctx, lt))
	}

	provision(t, store, "e1", "annual", "10")
	provision(t, store, "e1", "comp", "0.5")
	provision(t, store, "e2", "annual", "10")
	provision(t, store, "h2", "annual", "10")

	rec := &events.Recorder{}
	svc := leave.NewService(store, rec, nil)
	svc.Now = func() time.Time { return monday }
	return &fixture{store: store, svc: svc, events: rec, ctx: ctx}
}

func provision(t *testing.T, store *memory.Store, employeeID, leaveTypeID, amount string) {
	t.Helper()
	err := store.WithTx(context.Background(), func(tx leave.StoreTx) error {
		_, err := leave.NewBalanceLedger(tx, d("2025-01-01"), "test").Provision(context.Background(), employeeID, leaveTypeID, dec(amount))
		return err
	})
	require.NoError(t, err)
}

func (f *fixture) setToday(date string) {
	at := d(date).Time.Add(9 * time.Hour)
	f.svc.Now = func() time.Time { return at }
}

func (f *fixture) create(t *testing.T, emp, leaveType, start, end string) leave.Request {
	t.Helper()
	req, err := f.svc.Create(f.ctx, leave.CreateInput{
		EmployeeID: emp, LeaveTypeID: leaveType,
		StartDate: d(start), EndDate: d(end),
		StartHalf: leave.FullDay, EndHalf: leave.FullDay,
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) approve(t *testing.T, requestID string, role leave.Role, approverID string) leave.RequestStatus {
	t.Helper()
	status, err := f.svc.Decide(f.ctx, requestID, role, leave.ApprovalApproved, "", approverID)
	require.NoError(t, err)
	return status
}

func (f *fixture) balance(t *testing.T, emp, leaveType string) string {
	t.Helper()
	bal, err := f.svc.Balance(f.ctx, emp, leaveType)
	require.NoError(t, err)
	return bal.String()
}

func (f *fixture) request(t *testing.T, id string) leave.Request {
	t.Helper()
	req, err := f.store.GetRequest(f.ctx, id)
	require.NoError(t, err)
	return req
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarioA_CreateSingleDay(t *testing.T) {
	f := newFixture(t)

	// WHEN e1 applies for tomorrow
	req := f.create(t, "e1", "annual", "2025-06-03", "2025-06-03")

	// THEN the request is Pending for one day with an open audit trail
	assert.Equal(t, leave.StatusPending, req.Status)
	assert.Equal(t, leave.StatusPending, req.UserStatus)
	assert.True(t, req.Days.Equal(dec("1")))
	assert.True(t, req.DebitedDays.IsZero())
	assert.Equal(t, leave.ApprovalState{
		Manager: leave.ApprovalPending, HR: leave.ApprovalPending, Director: leave.ApprovalNotRequired,
	}, req.Approvals)

	trail, err := f.svc.AuditTrail(f.ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	for i, role := range leave.Roles {
		assert.Equal(t, role, trail[i].Role)
		assert.Equal(t, leave.RecordPending, trail[i].Status)
		assert.Nil(t, trail[i].DecidedAt)
	}
	assert.Equal(t, "m1", trail[0].ApproverID)
	// the skipped director still has a row to close later
	assert.Equal(t, "d1", trail[2].ApproverID)

	// AND the balance is untouched until approval
	assert.Equal(t, "10", f.balance(t, "e1", "annual"))

	require.Len(t, f.events.Events, 1)
	assert.Equal(t, events.EventLeaveCreated, f.events.Events[0].EventType)
}

func TestScenarioB_ManagerApprovalAutoApprovesDirector(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "e2", "annual", "2025-06-03", "2025-06-04")

	// WHEN the manager approves a two-day request
	status := f.approve(t, req.ID, leave.RoleManager, "m1")

	// THEN the director stage is auto-approved and the balance debited once
	assert.Equal(t, leave.StatusApproved, status)
	got := f.request(t, req.ID)
	assert.Equal(t, leave.ApprovalApproved, got.Approvals.Director)
	assert.True(t, got.DebitedDays.Equal(dec("2")))
	assert.Equal(t, "8", f.balance(t, "e2", "annual"))

	trail, err := f.svc.AuditTrail(f.ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, leave.RoleManager, trail[0].Role)
	assert.Equal(t, leave.RecordApproved, trail[0].Status)
	assert.Equal(t, leave.RoleDirector, trail[1].Role)
	assert.Equal(t, "d1", trail[1].ApproverID)
	assert.True(t, trail[1].Synthetic)
	assert.Equal(t, "Auto-approved due to short leave duration", trail[1].Reason)

	last := f.events.Events[len(f.events.Events)-1]
	assert.Equal(t, events.EventLeaveApproved, last.EventType)
	assert.Equal(t, "2", last.Days)
	assert.Equal(t, "Manager", last.Role)
}

func TestScenarioC_RejectionCascadesAfterManagerApproval(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "e1", "annual", "2025-06-03", "2025-06-04")

	// GIVEN the manager approved; the director stage was auto-approved
	assert.Equal(t, leave.StatusPending, f.approve(t, req.ID, leave.RoleManager, "m1"))

	// WHEN HR rejects
	status, err := f.svc.Decide(f.ctx, req.ID, leave.RoleHR, leave.ApprovalRejected, "team offsite", "h1")
	require.NoError(t, err)

	// THEN every column is Rejected and nothing was debited
	assert.Equal(t, leave.StatusRejected, status)
	got := f.request(t, req.ID)
	assert.Equal(t, leave.ApprovalState{
		Manager: leave.ApprovalRejected, HR: leave.ApprovalRejected, Director: leave.ApprovalRejected,
	}, got.Approvals)
	assert.True(t, got.DebitedDays.IsZero())
	assert.Equal(t, "10", f.balance(t, "e1", "annual"))

	trail, err := f.svc.AuditTrail(f.ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	synthetic := 0
	for _, rec := range trail {
		assert.Equal(t, leave.RecordRejected, rec.Status)
		if rec.Synthetic {
			synthetic++
			assert.Equal(t, "Cascaded rejection from HR (team offsite)", rec.Reason)
		}
	}
	assert.Equal(t, 2, synthetic)

	// AND the request can no longer change
	_, err = f.svc.Decide(f.ctx, req.ID, leave.RoleHR, leave.ApprovalApproved, "", "h1")
	assert.ErrorIs(t, err, leave.ErrAlreadyTerminal)
	_, err = f.svc.Cancel(f.ctx, req.ID, "e1")
	assert.ErrorIs(t, err, leave.ErrAlreadyTerminal)
}

func TestScenarioD_ImpossibleHalfDayCreatesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.ctx, leave.CreateInput{
		EmployeeID: "e1", LeaveTypeID: "annual",
		StartDate: d("2026-01-01"), EndDate: d("2026-01-01"),
		StartHalf: leave.SecondHalf, EndHalf: leave.FirstHalf,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "logically impossible")
	views, err := f.svc.RequestsForEmployee(f.ctx, "e1")
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.Empty(t, f.events.Events)
}

func TestScenarioE_CancelBeforeStartRefundsEverything(t *testing.T) {
	f := newFixture(t)

	// GIVEN an approved five-day leave starting in two days
	req := f.create(t, "e2", "annual", "2025-06-04", "2025-06-10")
	assert.True(t, req.Days.Equal(dec("5")))
	assert.Equal(t, leave.StatusPending, f.approve(t, req.ID, leave.RoleManager, "m1"))
	assert.Equal(t, leave.StatusApproved, f.approve(t, req.ID, leave.RoleDirector, "d1"))
	assert.Equal(t, "5", f.balance(t, "e2", "annual"))

	// WHEN it is cancelled today
	refund, err := f.svc.Cancel(f.ctx, req.ID, "e2")

	// THEN all five days come back and the dates are unchanged
	require.NoError(t, err)
	assert.True(t, refund.Equal(dec("5")), "refund %s", refund)
	assert.Equal(t, "10", f.balance(t, "e2", "annual"))

	got := f.request(t, req.ID)
	assert.Equal(t, leave.StatusCancelled, got.Status)
	assert.Equal(t, "2025-06-10", got.EndDate.String())
	assert.Equal(t, leave.FullDay, got.EndHalf)
}

func TestScenarioF_CancelMidLeaveRefundsRemainingDays(t *testing.T) {
	f := newFixture(t)

	// GIVEN an approved Mon-Fri leave
	req := f.create(t, "e2", "annual", "2025-06-09", "2025-06-13")
	f.approve(t, req.ID, leave.RoleManager, "m1")
	f.approve(t, req.ID, leave.RoleDirector, "d1")
	assert.Equal(t, "5", f.balance(t, "e2", "annual"))

	// WHEN it is cancelled on Wednesday, day 3 of 5
	f.setToday("2025-06-11")
	refund, err := f.svc.Cancel(f.ctx, req.ID, "e2")

	// THEN Thursday and Friday come back and the leave ends today
	require.NoError(t, err)
	assert.True(t, refund.Equal(dec("2")), "refund %s", refund)
	assert.Equal(t, "7", f.balance(t, "e2", "annual"))

	got := f.request(t, req.ID)
	assert.Equal(t, leave.StatusCancelled, got.Status)
	assert.Equal(t, "2025-06-11", got.EndDate.String())
	assert.Equal(t, leave.FullDay, got.EndHalf)
}

// =============================================================================
// CREATE VALIDATION
// =============================================================================

func TestCreate_ValidationCodes(t *testing.T) {
	tests := []struct {
		name       string
		emp, lt    string
		start, end string
		sh, eh     leave.HalfDayType
		want       string
	}{
		{"end before start", "e1", "annual", "2025-06-05", "2025-06-03", leave.FullDay, leave.FullDay, leave.CodeInvalidDateRange},
		{"start in the past", "e1", "annual", "2025-06-01", "2025-06-03", leave.FullDay, leave.FullDay, leave.CodePastStartDate},
		{"impossible halves", "e1", "annual", "2025-06-03", "2025-06-03", leave.SecondHalf, leave.FirstHalf, leave.CodeInvalidHalfDay},
		{"unknown employee", "ghost", "annual", "2025-06-03", "2025-06-03", leave.FullDay, leave.FullDay, leave.CodeUnknownEmployee},
		{"unknown leave type", "e1", "ghost", "2025-06-03", "2025-06-03", leave.FullDay, leave.FullDay, leave.CodeUnknownLeaveType},
		{"short notice", "e1", "planned", "2025-06-05", "2025-06-05", leave.FullDay, leave.FullDay, leave.CodeInsufficientLeadTime},
		{"weekend only", "e1", "annual", "2025-06-07", "2025-06-08", leave.FullDay, leave.FullDay, leave.CodeZeroDuration},
		{"over the cap", "e1", "annual", "2025-06-03", "2025-06-17", leave.FullDay, leave.FullDay, leave.CodeExceedsMaxDays},
		{"never provisioned", "e1", "sick", "2025-06-03", "2025-06-03", leave.FullDay, leave.FullDay, leave.CodeNoBalance},
		{"not enough days", "e1", "comp", "2025-06-03", "2025-06-03", leave.FullDay, leave.FullDay, leave.CodeInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Create(f.ctx, leave.CreateInput{
				EmployeeID: tt.emp, LeaveTypeID: tt.lt,
				StartDate: d(tt.start), EndDate: d(tt.end),
				StartHalf: tt.sh, EndHalf: tt.eh,
			})
			var ve *leave.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.want, ve.Code)
		})
	}
}

func TestCreate_HalfDayFitsSmallBalance(t *testing.T) {
	f := newFixture(t)

	req, err := f.svc.Create(f.ctx, leave.CreateInput{
		EmployeeID: "e1", LeaveTypeID: "comp",
		StartDate: d("2025-06-03"), EndDate: d("2025-06-03"),
		StartHalf: leave.FirstHalf, EndHalf: leave.FirstHalf,
	})

	require.NoError(t, err)
	assert.True(t, req.Days.Equal(dec("0.5")))
}

func TestCreate_Overlap(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, "e1", "annual", "2025-06-03", "2025-06-04")

	// overlapping a Pending request is rejected
	_, err := f.svc.Create(f.ctx, leave.CreateInput{
		EmployeeID: "e1", LeaveTypeID: "annual",
		StartDate: d("2025-06-04"), EndDate: d("2025-06-05"),
		StartHalf: leave.FullDay, EndHalf: leave.FullDay,
	})
	var ve *leave.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, leave.CodeOverlappingRequest, ve.Code)
	assert.Contains(t, ve.Message, first.ID)

	// a cancelled request no longer blocks the dates
	_, err = f.svc.Cancel(f.ctx, first.ID, "e1")
	require.NoError(t, err)
	f.create(t, "e1", "annual", "2025-06-04", "2025-06-05")

	// another employee's leave never overlaps
	f.create(t, "e2", "annual", "2025-06-04", "2025-06-05")
}

// =============================================================================
// DECIDE
// =============================================================================

func TestDecide_FullChainLongLeave(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "e1", "annual", "2025-06-09", "2025-06-13")
	assert.Equal(t, leave.ApprovalPending, req.Approvals.Director)

	assert.Equal(t, leave.StatusPending, f.approve(t, req.ID, leave.RoleManager, "m1"))
	assert.Equal(t, leave.StatusPending, f.approve(t, req.ID, leave.RoleHR, "h1"))
	assert.Equal(t, "10", f.balance(t, "e1", "annual"))

	assert.Equal(t, leave.StatusApproved, f.approve(t, req.ID, leave.RoleDirector, "d1"))
	assert.Equal(t, "5", f.balance(t, "e1", "annual"))

	// a second decision cannot debit again
	_, err := f.svc.Decide(f.ctx, req.ID, leave.RoleDirector, leave.ApprovalApproved, "", "d1")
	assert.ErrorIs(t, err, leave.ErrAlreadyTerminal)
	assert.Equal(t, "5", f.balance(t, "e1", "annual"))
}

func TestDecide_AdminActsForDirector(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "e1", "annual", "2025-06-09", "2025-06-13")
	f.approve(t, req.ID, leave.RoleManager, "m1")
	f.approve(t, req.ID, leave.RoleHR, "h1")

	status := f.approve(t, req.ID, leave.RoleDirector, "a1")

	assert.Equal(t, leave.StatusApproved, status)
	trail, err := f.svc.AuditTrail(f.ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, "a1", trail[2].ApproverID)
}

func TestDecide_HRApplicantNeedsDirector(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "h2", "annual", "2025-06-03", "2025-06-03")
	assert.Equal(t, leave.ApprovalPending, req.Approvals.Director)

	f.approve(t, req.ID, leave.RoleManager, "m1")
	status := f.approve(t, req.ID, leave.RoleHR, "h1")

	assert.Equal(t, leave.StatusPending, status)
	assert.Equal(t, leave.ApprovalPending, f.request(t, req.ID).Approvals.Director)
}

func TestDecide_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, f *fixture, id string)
		role     leave.Role
		verdict  leave.ApprovalStatus
		approver string
		want     error
	}{
		{"wrong approver", nil, leave.RoleManager, leave.ApprovalApproved, "h1", leave.ErrUnauthorizedRole},
		{"empty approver", nil, leave.RoleManager, leave.ApprovalApproved, "", leave.ErrUnauthorizedRole},
		{"unknown stage", nil, leave.Role("CEO"), leave.ApprovalApproved, "m1", leave.ErrUnauthorizedRole},
		{"non-admin for director", nil, leave.RoleDirector, leave.ApprovalApproved, "m1", leave.ErrUnauthorizedRole},
		{"pending verdict", nil, leave.RoleManager, leave.ApprovalPending, "m1", leave.ErrInvalidDecision},
		{"stage already decided", func(t *testing.T, f *fixture, id string) {
			f.approve(t, id, leave.RoleManager, "m1")
		}, leave.RoleManager, leave.ApprovalRejected, "m1", leave.ErrStageAlreadyDecided},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.create(t, "e1", "annual", "2025-06-09", "2025-06-13")
			if tt.setup != nil {
				tt.setup(t, f, req.ID)
			}
			_, err := f.svc.Decide(f.ctx, req.ID, tt.role, tt.verdict, "", tt.approver)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecide_SkippedStage(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "e1", "annual", "2025-06-03", "2025-06-03")

	_, err := f.svc.Decide(f.ctx, req.ID, leave.RoleDirector, leave.ApprovalApproved, "", "d1")

	assert.ErrorIs(t, err, leave.ErrStageNotRequired)
}

func TestDecide_UnknownRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Decide(f.ctx, "missing", leave.RoleManager, leave.ApprovalApproved, "", "m1")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

// =============================================================================
// CANCEL
// =============================================================================

func TestCancel_PendingRequest(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "e1", "annual", "2025-06-03", "2025-06-04")

	refund, err := f.svc.Cancel(f.ctx, req.ID, "e1")

	require.NoError(t, err)
	assert.True(t, refund.IsZero())
	assert.Equal(t, "10", f.balance(t, "e1", "annual"))

	// THEN every seeded record is closed, the skipped director's included
	trail, err := f.svc.AuditTrail(f.ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	for _, rec := range trail {
		assert.Equal(t, leave.RecordCancelled, rec.Status)
		assert.Equal(t, "Cancelled by user", rec.Reason)
		assert.NotNil(t, rec.DecidedAt)
	}
	assert.Equal(t, leave.RoleDirector, trail[2].Role)
	assert.Equal(t, "d1", trail[2].ApproverID)

	_, err = f.svc.Cancel(f.ctx, req.ID, "e1")
	assert.ErrorIs(t, err, leave.ErrAlreadyTerminal)
}

func TestCancel_SomeoneElsesRequest(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "e1", "annual", "2025-06-03", "2025-06-04")

	_, err := f.svc.Cancel(f.ctx, req.ID, "e2")

	assert.ErrorIs(t, err, leave.ErrNotFound)
	assert.Equal(t, leave.StatusPending, f.request(t, req.ID).Status)
}

func TestCancel_AfterLeaveEndedRefundsNothing(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "e2", "annual", "2025-06-03", "2025-06-04")
	f.approve(t, req.ID, leave.RoleManager, "m1")

	f.setToday("2025-06-10")
	refund, err := f.svc.Cancel(f.ctx, req.ID, "e2")

	require.NoError(t, err)
	assert.True(t, refund.IsZero())
	assert.Equal(t, "8", f.balance(t, "e2", "annual"))
	assert.Equal(t, "2025-06-04", f.request(t, req.ID).EndDate.String())
}

func TestCancel_OnLastDayRefundsNothing(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "e2", "annual", "2025-06-03", "2025-06-04")
	f.approve(t, req.ID, leave.RoleManager, "m1")

	f.setToday("2025-06-04")
	refund, err := f.svc.Cancel(f.ctx, req.ID, "e2")

	require.NoError(t, err)
	assert.True(t, refund.IsZero())
	assert.Equal(t, "8", f.balance(t, "e2", "annual"))
}

// =============================================================================
// QUERIES
// =============================================================================

func TestPendingForApprover_FollowsTheChain(t *testing.T) {
	f := newFixture(t)
	req := f.create(t, "e1", "annual", "2025-06-09", "2025-06-13")

	count := func(approver string, role leave.Role) int {
		views, err := f.svc.PendingForApprover(f.ctx, approver, role)
		require.NoError(t, err)
		return len(views)
	}
	adminCount := func() int {
		views, err := f.svc.AdminPending(f.ctx)
		require.NoError(t, err)
		return len(views)
	}

	assert.Equal(t, 1, count("m1", leave.RoleManager))
	assert.Equal(t, 0, count("h1", leave.RoleHR))
	assert.Equal(t, 0, count("d1", leave.RoleDirector))

	f.approve(t, req.ID, leave.RoleManager, "m1")
	assert.Equal(t, 0, count("m1", leave.RoleManager))
	assert.Equal(t, 1, count("h1", leave.RoleHR))
	assert.Equal(t, 0, adminCount())

	f.approve(t, req.ID, leave.RoleHR, "h1")
	assert.Equal(t, 0, count("h1", leave.RoleHR))
	assert.Equal(t, 1, count("d1", leave.RoleDirector))
	assert.Equal(t, 1, adminCount())

	// someone else's reports are not listed
	assert.Equal(t, 0, count("h2", leave.RoleDirector))

	_, err := f.svc.PendingForApprover(f.ctx, "m1", leave.Role("CEO"))
	assert.ErrorIs(t, err, leave.ErrUnauthorizedRole)
}

func TestRequestViews(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, "e1", "annual", "2025-06-03", "2025-06-03")
	f.svc.Now = func() time.Time { return monday.Add(time.Minute) }
	second := f.create(t, "e1", "annual", "2025-06-05", "2025-06-06")
	_, err := f.svc.Cancel(f.ctx, first.ID, "e1")
	require.NoError(t, err)

	all, err := f.svc.RequestsForEmployee(f.ctx, "e1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")
	assert.Equal(t, "Eve", all[0].EmployeeName)
	assert.Equal(t, "Annual", all[0].LeaveTypeName)
	assert.True(t, all[0].CalculatedDays.Equal(dec("2")))

	cancelled, err := f.svc.RequestsByStatus(f.ctx, "e1", leave.StatusCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, first.ID, cancelled[0].ID)
}

func TestBalances(t *testing.T) {
	f := newFixture(t)

	views, err := f.svc.Balances(f.ctx, "e1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "annual", views[0].LeaveTypeID)
	assert.Equal(t, "Annual", views[0].LeaveTypeName)
	assert.True(t, views[0].Balance.Equal(dec("10")))
	assert.True(t, views[0].CarryForward)
	assert.True(t, views[0].MonthlyAccrual.Equal(dec("1.5")))
	assert.Equal(t, "comp", views[1].LeaveTypeID)

	_, err = f.svc.Balances(f.ctx, "ghost")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestAuditTrail_UnknownRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AuditTrail(f.ctx, "missing")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}
