package leave_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

const raceIterations = 20

// newSQLiteService seeds e1 (manager m1, HR h1, director d1) with 10 annual
// days in a private in-memory database.
func newSQLiteService(t *testing.T) (*leave.Service, *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	for _, e := range []leave.Employee{
		{ID: "m1", Name: "Mira", Role: leave.EmployeeRoleManager},
		{ID: "h1", Name: "Hal", Role: leave.EmployeeRoleHR},
		{ID: "d1", Name: "Dana", Role: leave.EmployeeRoleManager},
		{ID: "a1", Name: "Ada", Role: leave.EmployeeRoleAdmin},
		{ID: "e1", Name: "Eve", Role: leave.EmployeeRoleEmployee, ManagerID: "m1", HRID: "h1", DirectorID: "d1"},
	} {
		require.NoError(t, store.SaveEmployee(ctx, e))
	}
	require.NoError(t, store.SaveLeaveType(ctx, leave.LeaveType{ID: "annual", Name: "Annual", MaxDays: 10}))
	require.NoError(t, store.WithTx(ctx, func(tx leave.StoreTx) error {
		_, err := leave.NewBalanceLedger(tx, d("2025-01-01"), "test").Provision(ctx, "e1", "annual", dec("10"))
		return err
	}))

	svc := leave.NewService(store, nil, nil)
	svc.Now = func() time.Time { return monday }
	return svc, store
}

func createFor(t *testing.T, svc *leave.Service, start, end string) leave.Request {
	t.Helper()
	req, err := svc.Create(context.Background(), leave.CreateInput{
		EmployeeID: "e1", LeaveTypeID: "annual",
		StartDate: d(start), EndDate: d(end),
		StartHalf: leave.FullDay, EndHalf: leave.FullDay,
	})
	require.NoError(t, err)
	return req
}

// ledgerCounts counts e1's annual consumption and reversal transactions.
func ledgerCounts(t *testing.T, store *sqlite.Store) (consumed, reversed int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(tx leave.StoreTx) error {
		txs, err := tx.Load(ctx, "e1", "annual")
		if err != nil {
			return err
		}
		for _, x := range txs {
			switch x.Type {
			case generic.TxConsumption:
				consumed++
			case generic.TxReversal:
				reversed++
			}
		}
		return nil
	}))
	return consumed, reversed
}

func TestConcurrent_ApprovalsAndCancelNeverDoubleDebit(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < raceIterations; i++ {
		svc, store := newSQLiteService(t)
		req := createFor(t, svc, "2025-06-03", "2025-06-04")

		// WHEN the manager, HR and the owner act at the same time
		var (
			wg                           sync.WaitGroup
			managerErr, hrErr, cancelErr error
		)
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, managerErr = svc.Decide(ctx, req.ID, leave.RoleManager, leave.ApprovalApproved, "", "m1")
		}()
		go func() {
			defer wg.Done()
			_, hrErr = svc.Decide(ctx, req.ID, leave.RoleHR, leave.ApprovalApproved, "", "h1")
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = svc.Cancel(ctx, req.ID, "e1")
		}()
		wg.Wait()

		// THEN a decision either lands or finds the request already closed
		for _, err := range []error{managerErr, hrErr} {
			if err != nil {
				assert.ErrorIs(t, err, leave.ErrAlreadyTerminal, "iteration %d", i)
			}
		}
		// AND cancelling a Pending or Approved request always succeeds
		require.NoError(t, cancelErr, "iteration %d", i)

		got, err := store.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, leave.StatusCancelled, got.Status)

		// AND the balance was debited at most once and refunded in full
		bal, err := svc.Balance(ctx, "e1", "annual")
		require.NoError(t, err)
		assert.Equal(t, "10", bal.String(), "iteration %d", i)
		consumed, reversed := ledgerCounts(t, store)
		assert.LessOrEqual(t, consumed, 1, "iteration %d", i)
		assert.Equal(t, consumed, reversed, "iteration %d", i)
	}
}

func TestConcurrent_BothStagesApproveDebitsOnce(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < raceIterations; i++ {
		svc, store := newSQLiteService(t)
		req := createFor(t, svc, "2025-06-03", "2025-06-04")

		var wg sync.WaitGroup
		statuses := make([]leave.RequestStatus, 2)
		errs := make([]error, 2)
		for j, step := range []struct {
			role     leave.Role
			approver string
		}{{leave.RoleManager, "m1"}, {leave.RoleHR, "h1"}} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				statuses[j], errs[j] = svc.Decide(ctx, req.ID, step.role, leave.ApprovalApproved, "", step.approver)
			}()
		}
		wg.Wait()

		require.NoError(t, errs[0], "iteration %d", i)
		require.NoError(t, errs[1], "iteration %d", i)
		// exactly one of the two saw the request become Approved
		assert.ElementsMatch(t, []leave.RequestStatus{leave.StatusPending, leave.StatusApproved}, statuses)

		bal, err := svc.Balance(ctx, "e1", "annual")
		require.NoError(t, err)
		assert.Equal(t, "8", bal.String(), "iteration %d", i)
		consumed, _ := ledgerCounts(t, store)
		assert.Equal(t, 1, consumed, "iteration %d", i)
	}
}

func TestConcurrent_DirectorAndAdminRace(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < raceIterations; i++ {
		svc, store := newSQLiteService(t)

		// GIVEN a five-day leave cleared by manager and HR
		req := createFor(t, svc, "2025-06-09", "2025-06-13")
		for _, step := range []struct {
			role     leave.Role
			approver string
		}{{leave.RoleManager, "m1"}, {leave.RoleHR, "h1"}} {
			_, err := svc.Decide(ctx, req.ID, step.role, leave.ApprovalApproved, "", step.approver)
			require.NoError(t, err)
		}

		// WHEN the director and an admin both approve the director stage
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, approver := range []string{"d1", "a1"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[j] = svc.Decide(ctx, req.ID, leave.RoleDirector, leave.ApprovalApproved, "", approver)
			}()
		}
		wg.Wait()

		// THEN exactly one wins and the other finds the request closed
		var failed []error
		for _, err := range errs {
			if err != nil {
				failed = append(failed, err)
			}
		}
		require.Len(t, failed, 1, "iteration %d", i)
		assert.True(t, errors.Is(failed[0], leave.ErrAlreadyTerminal), "iteration %d: %v", i, failed[0])

		bal, err := svc.Balance(ctx, "e1", "annual")
		require.NoError(t, err)
		assert.Equal(t, "5", bal.String(), "iteration %d", i)
		consumed, _ := ledgerCounts(t, store)
		assert.Equal(t, 1, consumed, "iteration %d", i)
	}
}
