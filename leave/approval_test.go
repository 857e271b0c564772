package leave_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
)

var (
	fullChain = leave.Employee{ID: "e1", Role: leave.EmployeeRoleEmployee, ManagerID: "m1", HRID: "h1", DirectorID: "d1"}
	twoDays   = decimal.NewFromInt(2)
	fiveDays  = decimal.NewFromInt(5)
)

func TestInitialState(t *testing.T) {
	tests := []struct {
		name     string
		emp      leave.Employee
		duration decimal.Decimal
		want     leave.ApprovalState
	}{
		{"short leave skips director", fullChain, twoDays,
			leave.ApprovalState{Manager: leave.ApprovalPending, HR: leave.ApprovalPending, Director: leave.ApprovalNotRequired}},
		{"three days still short", fullChain, decimal.NewFromInt(3),
			leave.ApprovalState{Manager: leave.ApprovalPending, HR: leave.ApprovalPending, Director: leave.ApprovalNotRequired}},
		{"long leave needs director", fullChain, decimal.NewFromFloat(3.5),
			leave.ApprovalState{Manager: leave.ApprovalPending, HR: leave.ApprovalPending, Director: leave.ApprovalPending}},
		{"HR applicant always needs director",
			leave.Employee{ID: "h2", Role: leave.EmployeeRoleHR, ManagerID: "m1", HRID: "h1", DirectorID: "d1"}, twoDays,
			leave.ApprovalState{Manager: leave.ApprovalPending, HR: leave.ApprovalPending, Director: leave.ApprovalPending}},
		{"unassigned stages not required",
			leave.Employee{ID: "e2", Role: leave.EmployeeRoleEmployee, ManagerID: "m1"}, fiveDays,
			leave.ApprovalState{Manager: leave.ApprovalPending, HR: leave.ApprovalNotRequired, Director: leave.ApprovalNotRequired}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, leave.InitialState(tt.emp, tt.duration))
		})
	}
}

func TestOverallStatus(t *testing.T) {
	p, a, r, n := leave.ApprovalPending, leave.ApprovalApproved, leave.ApprovalRejected, leave.ApprovalNotRequired
	assert.Equal(t, leave.StatusPending, leave.OverallStatus(leave.ApprovalState{Manager: p, HR: p, Director: n}))
	assert.Equal(t, leave.StatusPending, leave.OverallStatus(leave.ApprovalState{Manager: a, HR: p, Director: a}))
	assert.Equal(t, leave.StatusApproved, leave.OverallStatus(leave.ApprovalState{Manager: a, HR: n, Director: a}))
	assert.Equal(t, leave.StatusApproved, leave.OverallStatus(leave.ApprovalState{Manager: n, HR: n, Director: n}))
	assert.Equal(t, leave.StatusRejected, leave.OverallStatus(leave.ApprovalState{Manager: a, HR: r, Director: a}))
}

func TestReduce_ManagerApprovalAutoApprovesDirector(t *testing.T) {
	// GIVEN a short request by an Employee with manager and director only
	emp := leave.Employee{ID: "e1", Role: leave.EmployeeRoleEmployee, ManagerID: "m1", DirectorID: "d1"}
	state := leave.InitialState(emp, twoDays)

	// WHEN the manager approves
	out, err := leave.Reduce(state, leave.Decision{Role: leave.RoleManager, Verdict: leave.ApprovalApproved, ApproverID: "m1"},
		leave.DecisionContext{Applicant: emp, Duration: twoDays})

	// THEN the director stage is approved automatically and the request is Approved
	require.NoError(t, err)
	assert.True(t, out.AutoApproved)
	assert.True(t, out.Approved)
	assert.Equal(t, leave.StatusApproved, out.Status)
	assert.Equal(t, leave.ApprovalApproved, out.State.Director)

	require.Len(t, out.Records, 2)
	assert.Equal(t, leave.RoleManager, out.Records[0].Role)
	assert.False(t, out.Records[0].Synthetic)
	assert.Equal(t, leave.RoleDirector, out.Records[1].Role)
	assert.Equal(t, "d1", out.Records[1].ApproverID)
	assert.Equal(t, "Auto-approved due to short leave duration", out.Records[1].Reason)
	assert.True(t, out.Records[1].Synthetic)
}

func TestReduce_NoAutoApproval(t *testing.T) {
	tests := []struct {
		name     string
		emp      leave.Employee
		duration decimal.Decimal
	}{
		{"long leave", fullChain, fiveDays},
		{"HR applicant", leave.Employee{ID: "h2", Role: leave.EmployeeRoleHR, ManagerID: "m1", HRID: "h1", DirectorID: "d1"}, twoDays},
		{"Admin applicant", leave.Employee{ID: "a2", Role: leave.EmployeeRoleAdmin, ManagerID: "m1", HRID: "h1", DirectorID: "d1"}, twoDays},
		{"no director assigned", leave.Employee{ID: "e2", Role: leave.EmployeeRoleEmployee, ManagerID: "m1", HRID: "h1"}, twoDays},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := leave.InitialState(tt.emp, tt.duration)
			out, err := leave.Reduce(state, leave.Decision{Role: leave.RoleManager, Verdict: leave.ApprovalApproved, ApproverID: "m1"},
				leave.DecisionContext{Applicant: tt.emp, Duration: tt.duration})
			require.NoError(t, err)
			assert.False(t, out.AutoApproved)
			assert.Equal(t, state.Director, out.State.Director)
			assert.Len(t, out.Records, 1)
		})
	}
}

func TestReduce_RejectionCascades(t *testing.T) {
	// GIVEN manager approved, HR pending, director auto-approved
	state := leave.ApprovalState{Manager: leave.ApprovalApproved, HR: leave.ApprovalPending, Director: leave.ApprovalApproved}

	// WHEN HR rejects
	out, err := leave.Reduce(state, leave.Decision{Role: leave.RoleHR, Verdict: leave.ApprovalRejected, Reason: "busy", ApproverID: "h1"},
		leave.DecisionContext{Applicant: fullChain, Duration: twoDays})

	// THEN every stage is Rejected with one explicit and two cascaded records
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, out.Status)
	assert.Equal(t, leave.ApprovalState{Manager: leave.ApprovalRejected, HR: leave.ApprovalRejected, Director: leave.ApprovalRejected}, out.State)
	assert.False(t, out.Approved)

	require.Len(t, out.Records, 3)
	assert.Equal(t, leave.RoleHR, out.Records[0].Role)
	assert.Equal(t, "busy", out.Records[0].Reason)
	assert.False(t, out.Records[0].Synthetic)
	for _, rec := range out.Records[1:] {
		assert.Equal(t, leave.RecordRejected, rec.Status)
		assert.True(t, rec.Synthetic)
		assert.Equal(t, "h1", rec.ApproverID)
		assert.Equal(t, "Cascaded rejection from HR (busy)", rec.Reason)
	}
}

func TestReduce_RejectionSkipsUnassignedStages(t *testing.T) {
	managerOnly := leave.Employee{ID: "e2", Role: leave.EmployeeRoleEmployee, ManagerID: "m1"}
	state := leave.InitialState(managerOnly, twoDays)

	out, err := leave.Reduce(state, leave.Decision{Role: leave.RoleManager, Verdict: leave.ApprovalRejected, ApproverID: "m1"},
		leave.DecisionContext{Applicant: managerOnly, Duration: twoDays})

	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, out.Status)
	assert.Len(t, out.Records, 1)
}

func TestReduce_RejectionClosesSkippedDirectorRecord(t *testing.T) {
	// GIVEN a short leave whose assigned director was skipped
	state := leave.InitialState(fullChain, twoDays)
	require.Equal(t, leave.ApprovalNotRequired, state.Director)

	// WHEN the manager rejects
	out, err := leave.Reduce(state, leave.Decision{Role: leave.RoleManager, Verdict: leave.ApprovalRejected, Reason: "no", ApproverID: "m1"},
		leave.DecisionContext{Applicant: fullChain, Duration: twoDays})

	// THEN HR and the director both get a cascaded rejection
	require.NoError(t, err)
	require.Len(t, out.Records, 3)
	assert.Equal(t, leave.RoleHR, out.Records[1].Role)
	assert.Equal(t, leave.RoleDirector, out.Records[2].Role)
	assert.Equal(t, leave.RecordRejected, out.Records[2].Status)
	assert.Equal(t, "Cascaded rejection from Manager (no)", out.Records[2].Reason)
	assert.True(t, out.Records[2].Synthetic)
}

func TestReduce_ApprovalCancelsSkippedDirectorRecord(t *testing.T) {
	// GIVEN a short leave by an Admin, which never auto-approves the director
	admin := leave.Employee{ID: "a2", Role: leave.EmployeeRoleAdmin, ManagerID: "m1", DirectorID: "d1"}
	state := leave.InitialState(admin, twoDays)
	require.Equal(t, leave.ApprovalNotRequired, state.Director)

	// WHEN the manager approves
	out, err := leave.Reduce(state, leave.Decision{Role: leave.RoleManager, Verdict: leave.ApprovalApproved, ApproverID: "m1"},
		leave.DecisionContext{Applicant: admin, Duration: twoDays})

	// THEN the request is Approved and the director's record is closed
	require.NoError(t, err)
	assert.True(t, out.Approved)
	assert.False(t, out.AutoApproved)
	assert.Equal(t, leave.ApprovalNotRequired, out.State.Director)
	require.Len(t, out.Records, 2)
	assert.Equal(t, leave.RoleDirector, out.Records[1].Role)
	assert.Equal(t, "d1", out.Records[1].ApproverID)
	assert.Equal(t, leave.RecordCancelled, out.Records[1].Status)
	assert.Equal(t, "Not required for this leave", out.Records[1].Reason)
	assert.True(t, out.Records[1].Synthetic)
}

func TestReduce_Errors(t *testing.T) {
	pending := leave.ApprovalState{Manager: leave.ApprovalPending, HR: leave.ApprovalPending, Director: leave.ApprovalNotRequired}
	decided := leave.ApprovalState{Manager: leave.ApprovalApproved, HR: leave.ApprovalPending, Director: leave.ApprovalNotRequired}
	c := leave.DecisionContext{Applicant: fullChain, Duration: fiveDays}

	tests := []struct {
		name  string
		state leave.ApprovalState
		d     leave.Decision
		want  error
	}{
		{"unknown role", pending, leave.Decision{Role: "CEO", Verdict: leave.ApprovalApproved}, leave.ErrUnauthorizedRole},
		{"pending verdict", pending, leave.Decision{Role: leave.RoleManager, Verdict: leave.ApprovalPending}, leave.ErrInvalidDecision},
		{"not required verdict", pending, leave.Decision{Role: leave.RoleManager, Verdict: leave.ApprovalNotRequired}, leave.ErrInvalidDecision},
		{"skipped stage", pending, leave.Decision{Role: leave.RoleDirector, Verdict: leave.ApprovalApproved}, leave.ErrStageNotRequired},
		{"already decided", decided, leave.Decision{Role: leave.RoleManager, Verdict: leave.ApprovalRejected}, leave.ErrStageAlreadyDecided},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := leave.Reduce(tt.state, tt.d, c)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReduce_ApprovedImpliesAllCleared(t *testing.T) {
	statuses := []leave.ApprovalStatus{leave.ApprovalPending, leave.ApprovalApproved, leave.ApprovalNotRequired}
	verdicts := []leave.ApprovalStatus{leave.ApprovalApproved, leave.ApprovalRejected}

	for _, m := range statuses {
		for _, h := range statuses {
			for _, dir := range statuses {
				state := leave.ApprovalState{Manager: m, HR: h, Director: dir}
				for _, role := range leave.Roles {
					for _, v := range verdicts {
						out, err := leave.Reduce(state, leave.Decision{Role: role, Verdict: v, ApproverID: "x"},
							leave.DecisionContext{Applicant: fullChain, Duration: twoDays})
						if err != nil {
							continue
						}
						switch out.Status {
						case leave.StatusApproved:
							for _, r := range leave.Roles {
								s := out.State.Get(r)
								assert.True(t, s == leave.ApprovalApproved || s == leave.ApprovalNotRequired, "%+v", out.State)
							}
						case leave.StatusRejected:
							for _, r := range leave.Roles {
								assert.Equal(t, leave.ApprovalRejected, out.State.Get(r))
							}
						}
					}
				}
			}
		}
	}
}
