/*
accrual.go - Monthly accrual and yearly reset

PURPOSE:
  Grows every provisioned balance by its leave type's monthly accrual, and
  resets balances at the start of each year. Leave types with carryForward
  keep their balance across the reset; the rest restart at one month's
  accrual.

CATCH-UP:
  Each job keeps a watermark: the start of the last period it finished.
  CatchUp replays every period between the watermark and today in date
  order, so a process that was down for three months applies three
  accruals. A year reset and the January accrual share a start date; the
  accrual runs first.

  A period is applied in one store transaction together with its
  watermark. Every ledger entry also carries a per (employee, type, period)
  idempotency key, so running a period twice changes nothing.

SEE ALSO:
  - balance.go: Accrue and ResetYearly
  - api/scheduler.go: Runs CatchUp on a ticker
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
	"go.uber.org/zap"
)

const (
	JobMonthlyAccrual = "monthly_accrual"
	JobYearlyReset    = "yearly_reset"

	accrualActor = "system:accrual"
)

type AccrualJob struct {
	Store  Store
	Logger *zap.Logger
	Now    func() time.Time
}

func NewAccrualJob(store Store, logger *zap.Logger) *AccrualJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccrualJob{Store: store, Logger: logger.Named("leave.accrual"), Now: time.Now}
}

// PeriodRun is one applied period.
type PeriodRun struct {
	Job     string
	Period  string
	Applied int
}

// RunMonthly accrues one month for every provisioned balance whose type
// accrues, and records the month as done.
func (j *AccrualJob) RunMonthly(ctx context.Context, month generic.Period) (int, error) {
	return j.runPeriod(ctx, JobMonthlyAccrual, month, func(b *BalanceLedger, a Account, lt LeaveType) (bool, error) {
		if !lt.MonthlyAccrual.IsPositive() {
			return false, nil
		}
		return b.Accrue(ctx, a.EmployeeID, a.LeaveTypeID, lt.MonthlyAccrual, month)
	})
}

// RunYearly resets every provisioned balance for the year and records the
// year as done.
func (j *AccrualJob) RunYearly(ctx context.Context, year generic.Period) (int, error) {
	return j.runPeriod(ctx, JobYearlyReset, year, func(b *BalanceLedger, a Account, lt LeaveType) (bool, error) {
		var newValue decimal.Decimal
		if lt.CarryForward {
			current, err := b.Balance(ctx, a.EmployeeID, a.LeaveTypeID)
			if err != nil {
				return false, err
			}
			newValue = current
		} else {
			newValue = lt.MonthlyAccrual
		}
		return b.ResetYearly(ctx, a.EmployeeID, a.LeaveTypeID, newValue, year)
	})
}

func (j *AccrualJob) runPeriod(ctx context.Context, job string, p generic.Period,
	apply func(*BalanceLedger, Account, LeaveType) (bool, error)) (int, error) {

	applied := 0
	err := j.Store.WithTx(ctx, func(tx StoreTx) error {
		applied = 0
		types, err := tx.ListLeaveTypes(ctx)
		if err != nil {
			return err
		}
		byID := make(map[string]LeaveType, len(types))
		for _, lt := range types {
			byID[lt.ID] = lt
		}
		accounts, err := tx.Accounts(ctx, "")
		if err != nil {
			return err
		}

		ledger := NewBalanceLedger(tx, p.Start, accrualActor)
		for _, a := range accounts {
			lt, ok := byID[a.LeaveTypeID]
			if !ok {
				continue
			}
			ok, err := apply(ledger, a, lt)
			if err != nil {
				return fmt.Errorf("%s %s for %s/%s: %w", job, p.Key(), a.EmployeeID, a.LeaveTypeID, err)
			}
			if ok {
				applied++
			}
		}
		return advance(ctx, tx, job, p.Start)
	})
	if err != nil {
		j.Logger.Error("accrual period failed", zap.String("job", job), zap.String("period", p.Key()), zap.Error(err))
		return 0, err
	}
	j.Logger.Info("accrual period applied", zap.String("job", job), zap.String("period", p.Key()), zap.Int("applied", applied))
	return applied, nil
}

// advance moves the watermark forward only; re-running an old period
// leaves it alone.
func advance(ctx context.Context, tx StoreTx, job string, at generic.TimePoint) error {
	current, ok, err := tx.Watermark(ctx, job)
	if err != nil {
		return err
	}
	if ok && !at.After(current) {
		return nil
	}
	return tx.SetWatermark(ctx, job, at)
}

// CatchUp applies every month and year that started after the watermarks
// and on or before today. A job without a watermark starts counting from the
// current period, which it treats as already applied.
func (j *AccrualJob) CatchUp(ctx context.Context) ([]PeriodRun, error) {
	today := generic.DateOf(j.Now().UTC())

	month, err := j.nextPeriod(ctx, JobMonthlyAccrual, generic.MonthPeriod(today.Year(), today.Month()))
	if err != nil {
		return nil, err
	}
	year, err := j.nextPeriod(ctx, JobYearlyReset, generic.YearPeriod(today.Year()))
	if err != nil {
		return nil, err
	}

	var runs []PeriodRun
	for {
		monthDue := !month.Start.After(today)
		yearDue := !year.Start.After(today)
		if !monthDue && !yearDue {
			return runs, nil
		}
		if monthDue && (!yearDue || !month.Start.After(year.Start)) {
			n, err := j.RunMonthly(ctx, month)
			if err != nil {
				return runs, err
			}
			runs = append(runs, PeriodRun{Job: JobMonthlyAccrual, Period: month.Key(), Applied: n})
			month = month.Next()
			continue
		}
		n, err := j.RunYearly(ctx, year)
		if err != nil {
			return runs, err
		}
		runs = append(runs, PeriodRun{Job: JobYearlyReset, Period: year.Key(), Applied: n})
		year = year.Next()
	}
}

func (j *AccrualJob) nextPeriod(ctx context.Context, job string, current generic.Period) (generic.Period, error) {
	wm, ok, err := j.Store.Watermark(ctx, job)
	if err != nil {
		return generic.Period{}, err
	}
	if !ok {
		err := j.Store.WithTx(ctx, func(tx StoreTx) error {
			return tx.SetWatermark(ctx, job, current.Start)
		})
		if err != nil {
			return generic.Period{}, err
		}
		j.Logger.Info("accrual watermark initialised", zap.String("job", job), zap.String("period", current.Key()))
		return current.Next(), nil
	}

	var last generic.Period
	if current.Type == generic.PeriodYear {
		last = generic.YearPeriod(wm.Year())
	} else {
		last = generic.MonthPeriod(wm.Year(), wm.Month())
	}
	return last.Next(), nil
}
