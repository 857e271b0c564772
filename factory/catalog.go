/*
Package factory converts a JSON catalog into the reference data the leave
engine reads.

PURPOSE:
  Employees (with their approver chain), leave types, holidays and opening
  balances are maintained outside the engine. The factory parses a JSON
  catalog, validates it and writes it to a store so a fresh deployment or a
  test starts from a known organisation.

JSON SCHEMA:
  {
    "employees": [
      {"id": "e1", "name": "Asha", "email": "asha@example.com", "role": "Employee",
       "manager_id": "m1", "hr_id": "h1", "director_id": "d1"}
    ],
    "leave_types": [
      {"id": "annual", "name": "Annual Leave", "max_days": 20,
       "apply_before_days": 3, "carry_forward": true, "monthly_accrual": "1.5"}
    ],
    "holidays": [
      {"id": "xmas", "date": "2025-12-25", "name": "Christmas", "recurring": true}
    ],
    "balances": [
      {"employee_id": "e1", "leave_type_id": "annual", "opening": "12"}
    ]
  }

KEY FEATURES:
  - Struct tag validation (go-playground/validator)
  - Cross references checked before anything is written
  - Re-applying a catalog upserts reference data and leaves balances alone

SEE ALSO:
  - leave/balance.go: Provision records the opening balances
  - cmd/server/main.go: Applies seed.path at startup
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type CatalogJSON struct {
	Employees  []EmployeeJSON  `json:"employees" validate:"dive"`
	LeaveTypes []LeaveTypeJSON `json:"leave_types" validate:"dive"`
	Holidays   []HolidayJSON   `json:"holidays" validate:"dive"`
	Balances   []BalanceJSON   `json:"balances" validate:"dive"`
}

type EmployeeJSON struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Role       string `json:"role" validate:"required,oneof=Employee Manager HR Admin"`
	ManagerID  string `json:"manager_id,omitempty"`
	HRID       string `json:"hr_id,omitempty"`
	DirectorID string `json:"director_id,omitempty"`
}

type LeaveTypeJSON struct {
	ID              string          `json:"id" validate:"required"`
	Name            string          `json:"name" validate:"required"`
	MaxDays         int             `json:"max_days" validate:"gte=0"`
	ApplyBeforeDays int             `json:"apply_before_days" validate:"gte=0"`
	CarryForward    bool            `json:"carry_forward"`
	MonthlyAccrual  decimal.Decimal `json:"monthly_accrual"`
}

type HolidayJSON struct {
	ID        string `json:"id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Name      string `json:"name" validate:"required"`
	Recurring bool   `json:"recurring"`
}

type BalanceJSON struct {
	EmployeeID  string          `json:"employee_id" validate:"required"`
	LeaveTypeID string          `json:"leave_type_id" validate:"required"`
	Opening     decimal.Decimal `json:"opening"`
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is a validated, typed catalog.
type Catalog struct {
	Employees  []leave.Employee
	LeaveTypes []leave.LeaveType
	Holidays   []generic.Holiday
	Balances   []Balance
}

type Balance struct {
	EmployeeID  string
	LeaveTypeID string
	Opening     decimal.Decimal
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFile reads and parses a catalog file.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a JSON catalog.
func Parse(raw []byte) (*Catalog, error) {
	var cj CatalogJSON
	if err := json.Unmarshal(raw, &cj); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	return FromJSON(cj)
}

func FromJSON(cj CatalogJSON) (*Catalog, error) {
	if err := validate.Struct(cj); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	c := &Catalog{}
	employees := make(map[string]bool, len(cj.Employees))
	for _, e := range cj.Employees {
		if employees[e.ID] {
			return nil, fmt.Errorf("invalid catalog: duplicate employee %q", e.ID)
		}
		employees[e.ID] = true
		c.Employees = append(c.Employees, leave.Employee{
			ID:         e.ID,
			Name:       e.Name,
			Email:      e.Email,
			Role:       leave.EmployeeRole(e.Role),
			ManagerID:  e.ManagerID,
			HRID:       e.HRID,
			DirectorID: e.DirectorID,
		})
	}
	for _, e := range c.Employees {
		for _, role := range leave.Roles {
			if id := e.ApproverFor(role); id != "" && !employees[id] {
				return nil, fmt.Errorf("invalid catalog: %s approver %q of %q is not an employee", role, id, e.ID)
			}
		}
	}

	types := make(map[string]bool, len(cj.LeaveTypes))
	for _, lt := range cj.LeaveTypes {
		if types[lt.ID] {
			return nil, fmt.Errorf("invalid catalog: duplicate leave type %q", lt.ID)
		}
		if lt.MonthlyAccrual.IsNegative() {
			return nil, fmt.Errorf("invalid catalog: leave type %q has a negative monthly accrual", lt.ID)
		}
		types[lt.ID] = true
		c.LeaveTypes = append(c.LeaveTypes, leave.LeaveType{
			ID:              lt.ID,
			Name:            lt.Name,
			MaxDays:         lt.MaxDays,
			ApplyBeforeDays: lt.ApplyBeforeDays,
			CarryForward:    lt.CarryForward,
			MonthlyAccrual:  lt.MonthlyAccrual,
		})
	}

	for _, h := range cj.Holidays {
		date, err := generic.ParseDate(h.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid catalog: holiday %q: %w", h.ID, err)
		}
		c.Holidays = append(c.Holidays, generic.Holiday{ID: h.ID, Date: date, Name: h.Name, Recurring: h.Recurring})
	}

	for _, b := range cj.Balances {
		if !employees[b.EmployeeID] {
			return nil, fmt.Errorf("invalid catalog: balance for unknown employee %q", b.EmployeeID)
		}
		if !types[b.LeaveTypeID] {
			return nil, fmt.Errorf("invalid catalog: balance for unknown leave type %q", b.LeaveTypeID)
		}
		if b.Opening.IsNegative() {
			return nil, fmt.Errorf("invalid catalog: negative opening balance for %s/%s", b.EmployeeID, b.LeaveTypeID)
		}
		c.Balances = append(c.Balances, Balance{EmployeeID: b.EmployeeID, LeaveTypeID: b.LeaveTypeID, Opening: b.Opening})
	}
	return c, nil
}

// =============================================================================
// APPLY
// =============================================================================

// Seeder is a store that accepts reference data. Both store/memory and
// store/sqlite implement it.
type Seeder interface {
	leave.Store
	SaveEmployee(ctx context.Context, e leave.Employee) error
	SaveLeaveType(ctx context.Context, lt leave.LeaveType) error
	SaveHoliday(ctx context.Context, h generic.Holiday) error
}

// ApplyResult counts what Apply wrote.
type ApplyResult struct {
	Employees   int
	LeaveTypes  int
	Holidays    int
	Provisioned int
}

// Apply writes the catalog to the store. Opening balances are provisioned in
// one transaction; accounts that already exist are skipped.
func (c *Catalog) Apply(ctx context.Context, s Seeder, now time.Time) (ApplyResult, error) {
	var res ApplyResult
	for _, e := range c.Employees {
		if err := s.SaveEmployee(ctx, e); err != nil {
			return res, fmt.Errorf("save employee %s: %w", e.ID, err)
		}
		res.Employees++
	}
	for _, lt := range c.LeaveTypes {
		if err := s.SaveLeaveType(ctx, lt); err != nil {
			return res, fmt.Errorf("save leave type %s: %w", lt.ID, err)
		}
		res.LeaveTypes++
	}
	for _, h := range c.Holidays {
		if err := s.SaveHoliday(ctx, h); err != nil {
			return res, fmt.Errorf("save holiday %s: %w", h.ID, err)
		}
		res.Holidays++
	}

	err := s.WithTx(ctx, func(tx leave.StoreTx) error {
		res.Provisioned = 0
		ledger := leave.NewBalanceLedger(tx, generic.DateOf(now.UTC()), "system:seed")
		for _, b := range c.Balances {
			ok, err := ledger.Provision(ctx, b.EmployeeID, b.LeaveTypeID, b.Opening)
			if err != nil {
				return fmt.Errorf("provision %s/%s: %w", b.EmployeeID, b.LeaveTypeID, err)
			}
			if ok {
				res.Provisioned++
			}
		}
		return nil
	})
	return res, err
}
