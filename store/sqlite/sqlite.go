/*
Package sqlite provides the SQLite implementation of leave.Store.

PURPOSE:
  Persists the balance ledger, leave requests, their approval records, the
  reference data the engine reads (employees, leave types, holidays) and the
  accrual job watermarks.

APPEND-ONLY LEDGER:
  The transactions table only ever sees INSERT. Balances are sums over it;
  corrections are new rows.

UNITS OF WORK:
  WithTx opens one SQL transaction and hands fn a view bound to it. Every
  read and write fn makes goes through that *sql.Tx, so a decision's stage
  columns, audit records and ledger rows commit together. A process mutex
  serializes units of work; SQLite has a single writer anyway.

KEY TABLES:
  transactions:     Ledger rows (idempotency_key is UNIQUE)
  leave_requests:   One row per request, including the three stage columns
  approval_records: Audit trail, UNIQUE(request_id, role)
  employees, leave_types, holidays: Reference data
  job_status:       Accrual watermarks

TIME ENCODING:
  Calendar dates are stored as YYYY-MM-DD. Timestamps use a fixed-width
  UTC layout so string order is time order.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  svc := leave.NewService(store, events.Noop{}, logger)
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements leave.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
	c  conn
}

var _ leave.Store = (*Store)(nil)

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for a private in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database exists per connection, and
	// SQLite admits a single writer regardless.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, c: conn{q: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		delta_value TEXT NOT NULL,
		delta_unit TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_entity_account
		ON transactions(entity_id, account_id, effective_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference_id) WHERE reference_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL,
		manager_id TEXT,
		hr_id TEXT,
		director_id TEXT
	);

	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		max_days INTEGER NOT NULL DEFAULT 0,
		apply_before_days INTEGER NOT NULL DEFAULT 0,
		carry_forward INTEGER NOT NULL DEFAULT 0,
		monthly_accrual TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		start_half TEXT NOT NULL,
		end_half TEXT NOT NULL,
		reason TEXT,
		manager_approval TEXT NOT NULL,
		hr_approval TEXT NOT NULL,
		director_approval TEXT NOT NULL,
		status TEXT NOT NULL,
		user_status TEXT NOT NULL,
		days TEXT NOT NULL,
		debited_days TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id, status);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status, created_at);

	CREATE TABLE IF NOT EXISTS approval_records (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES leave_requests(id),
		role TEXT NOT NULL,
		approver_id TEXT,
		status TEXT NOT NULL,
		reason TEXT,
		synthetic INTEGER NOT NULL DEFAULT 0,
		decided_at TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(request_id, role)
	);

	CREATE TABLE IF NOT EXISTS job_status (
		job TEXT PRIMARY KEY,
		watermark TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// UNITS OF WORK
// =============================================================================

// WithTx runs fn inside one SQL transaction. fn's error rolls it back.
func (s *Store) WithTx(ctx context.Context, fn func(leave.StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{conn{q: sqlTx}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", generic.ErrTransactionFailed, err)
	}
	return nil
}

// txStore is the leave.StoreTx bound to one *sql.Tx. It takes no locks: the
// caller of WithTx already holds the write lock.
type txStore struct {
	conn
}

// =============================================================================
// LOCKED READS
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id string) (leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.GetEmployee(ctx, id)
}

func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.ListEmployees(ctx)
}

func (s *Store) GetLeaveType(ctx context.Context, id string) (leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.GetLeaveType(ctx, id)
}

func (s *Store) ListLeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.ListLeaveTypes(ctx)
}

func (s *Store) Holidays(ctx context.Context) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.Holidays(ctx)
}

func (s *Store) GetRequest(ctx context.Context, id string) (leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.GetRequest(ctx, id)
}

func (s *Store) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.ListRequests(ctx, f)
}

func (s *Store) ApprovalRecords(ctx context.Context, requestID string) ([]leave.ApprovalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.ApprovalRecords(ctx, requestID)
}

func (s *Store) Accounts(ctx context.Context, employeeID string) ([]leave.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.Accounts(ctx, employeeID)
}

func (s *Store) Watermark(ctx context.Context, job string) (generic.TimePoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.Watermark(ctx, job)
}

// =============================================================================
// REFERENCE DATA (seeded, read-only to the engine)
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, role, manager_id, hr_id, director_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			manager_id = excluded.manager_id,
			hr_id = excluded.hr_id,
			director_id = excluded.director_id
	`, e.ID, e.Name, e.Email, string(e.Role),
		nullString(e.ManagerID), nullString(e.HRID), nullString(e.DirectorID))
	return err
}

func (s *Store) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_types (id, name, max_days, apply_before_days, carry_forward, monthly_accrual)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			max_days = excluded.max_days,
			apply_before_days = excluded.apply_before_days,
			carry_forward = excluded.carry_forward,
			monthly_accrual = excluded.monthly_accrual
	`, lt.ID, lt.Name, lt.MaxDays, lt.ApplyBeforeDays, lt.CarryForward, lt.MonthlyAccrual.String())
	return err
}

func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, date, name, recurring)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			name = excluded.name,
			recurring = excluded.recurring
	`, h.ID, h.Date.Time.Format(dateLayout), h.Name, h.Recurring)
	return err
}

// =============================================================================
// CONN - queries shared by Store and txStore
// =============================================================================

type conn struct {
	q querier
}

// ---- ledger (generic.Store) ----

func (c conn) Append(ctx context.Context, tx generic.Transaction) error {
	metadataJSON, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	createdAt := tx.CreatedAt.Time
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = c.q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, entity_id, account_id, effective_at, delta_value, delta_unit,
		 tx_type, reference_id, reason, idempotency_key, metadata_json, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(tx.ID),
		string(tx.EntityID),
		string(tx.AccountID),
		tx.EffectiveAt.Time.Format(dateLayout),
		tx.Delta.Value.String(),
		string(tx.Delta.Unit),
		string(tx.Type),
		nullString(tx.ReferenceID),
		nullString(tx.Reason),
		nullString(tx.IdempotencyKey),
		string(metadataJSON),
		nullString(tx.CreatedBy),
		createdAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

const transactionColumns = `id, entity_id, account_id, effective_at, delta_value, delta_unit,
	tx_type, reference_id, reason, idempotency_key, metadata_json, created_by, created_at`

func (c conn) Load(ctx context.Context, entityID generic.EntityID, accountID generic.AccountID) ([]generic.Transaction, error) {
	return c.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE entity_id = ? AND account_id = ?
		ORDER BY effective_at ASC, created_at ASC
	`, string(entityID), string(accountID))
}

func (c conn) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := c.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?", idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func (c conn) queryTransactions(ctx context.Context, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []generic.Transaction
	for rows.Next() {
		var (
			tx                                   generic.Transaction
			id, entityID, accountID, effectiveAt string
			deltaValue, deltaUnit, txType        string
			referenceID, reason, idempotencyKey  sql.NullString
			metadataJSON, createdBy              sql.NullString
			createdAt                            string
		)
		if err := rows.Scan(&id, &entityID, &accountID, &effectiveAt, &deltaValue, &deltaUnit,
			&txType, &referenceID, &reason, &idempotencyKey, &metadataJSON, &createdBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.ID = generic.TransactionID(id)
		tx.EntityID = generic.EntityID(entityID)
		tx.AccountID = generic.AccountID(accountID)
		tx.EffectiveAt = parseDate(effectiveAt)
		tx.Delta = generic.Amount{Value: generic.MustParseDecimal(deltaValue), Unit: generic.Unit(deltaUnit)}
		tx.Type = generic.TransactionType(txType)
		tx.ReferenceID = referenceID.String
		tx.Reason = reason.String
		tx.IdempotencyKey = idempotencyKey.String
		tx.CreatedBy = createdBy.String
		tx.CreatedAt = generic.TimePoint{Time: parseTimestamp(createdAt)}
		if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &tx.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata of %s: %w", id, err)
			}
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (c conn) Accounts(ctx context.Context, employeeID string) ([]leave.Account, error) {
	query := `SELECT DISTINCT entity_id, account_id FROM transactions`
	var args []any
	if employeeID != "" {
		query += ` WHERE entity_id = ?`
		args = append(args, employeeID)
	}
	query += ` ORDER BY entity_id, account_id`

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Account
	for rows.Next() {
		var a leave.Account
		if err := rows.Scan(&a.EmployeeID, &a.LeaveTypeID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- reference data ----

func (c conn) GetEmployee(ctx context.Context, id string) (leave.Employee, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, name, email, role, manager_id, hr_id, director_id
		FROM employees WHERE id = ?`, id)
	if err != nil {
		return leave.Employee{}, err
	}
	employees, err := scanEmployees(rows)
	if err != nil {
		return leave.Employee{}, err
	}
	if len(employees) == 0 {
		return leave.Employee{}, fmt.Errorf("employee %s: %w", id, leave.ErrNotFound)
	}
	return employees[0], nil
}

func (c conn) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, name, email, role, manager_id, hr_id, director_id
		FROM employees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanEmployees(rows)
}

func scanEmployees(rows *sql.Rows) ([]leave.Employee, error) {
	defer rows.Close()
	var out []leave.Employee
	for rows.Next() {
		var (
			e                        leave.Employee
			role                     string
			email, mgr, hr, director sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Name, &email, &role, &mgr, &hr, &director); err != nil {
			return nil, err
		}
		e.Email = email.String
		e.Role = leave.EmployeeRole(role)
		e.ManagerID, e.HRID, e.DirectorID = mgr.String, hr.String, director.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c conn) GetLeaveType(ctx context.Context, id string) (leave.LeaveType, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, name, max_days, apply_before_days, carry_forward, monthly_accrual
		FROM leave_types WHERE id = ?`, id)
	if err != nil {
		return leave.LeaveType{}, err
	}
	types, err := scanLeaveTypes(rows)
	if err != nil {
		return leave.LeaveType{}, err
	}
	if len(types) == 0 {
		return leave.LeaveType{}, fmt.Errorf("leave type %s: %w", id, leave.ErrNotFound)
	}
	return types[0], nil
}

func (c conn) ListLeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, name, max_days, apply_before_days, carry_forward, monthly_accrual
		FROM leave_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanLeaveTypes(rows)
}

func scanLeaveTypes(rows *sql.Rows) ([]leave.LeaveType, error) {
	defer rows.Close()
	var out []leave.LeaveType
	for rows.Next() {
		var (
			lt      leave.LeaveType
			accrual string
		)
		if err := rows.Scan(&lt.ID, &lt.Name, &lt.MaxDays, &lt.ApplyBeforeDays, &lt.CarryForward, &accrual); err != nil {
			return nil, err
		}
		lt.MonthlyAccrual = generic.MustParseDecimal(accrual)
		out = append(out, lt)
	}
	return out, rows.Err()
}

func (c conn) Holidays(ctx context.Context) ([]generic.Holiday, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT id, date, name, recurring FROM holidays ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.Holiday
	for rows.Next() {
		var (
			h    generic.Holiday
			date string
		)
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		h.Date = parseDate(date)
		out = append(out, h)
	}
	return out, rows.Err()
}

// ---- requests ----

const requestColumns = `r.id, r.employee_id, r.leave_type_id, r.start_date, r.end_date,
	r.start_half, r.end_half, r.reason, r.manager_approval, r.hr_approval, r.director_approval,
	r.status, r.user_status, r.days, r.debited_days, r.created_at, r.updated_at`

func (c conn) CreateRequest(ctx context.Context, r leave.Request) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO leave_requests (id, employee_id, leave_type_id, start_date, end_date,
			start_half, end_half, reason, manager_approval, hr_approval, director_approval,
			status, user_status, days, debited_days, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.EmployeeID, r.LeaveTypeID,
		r.StartDate.Time.Format(dateLayout), r.EndDate.Time.Format(dateLayout),
		string(r.StartHalf), string(r.EndHalf), nullString(r.Reason),
		string(r.Approvals.Manager), string(r.Approvals.HR), string(r.Approvals.Director),
		string(r.Status), string(r.UserStatus), r.Days.String(), r.DebitedDays.String(),
		r.CreatedAt.UTC().Format(timestampLayout), r.UpdatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request %s: %w", r.ID, err)
	}
	return nil
}

func (c conn) UpdateRequest(ctx context.Context, r leave.Request) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE leave_requests SET
			end_date = ?, end_half = ?,
			manager_approval = ?, hr_approval = ?, director_approval = ?,
			status = ?, user_status = ?, debited_days = ?, updated_at = ?
		WHERE id = ?
	`,
		r.EndDate.Time.Format(dateLayout), string(r.EndHalf),
		string(r.Approvals.Manager), string(r.Approvals.HR), string(r.Approvals.Director),
		string(r.Status), string(r.UserStatus), r.DebitedDays.String(),
		r.UpdatedAt.UTC().Format(timestampLayout), r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update request %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("request %s: %w", r.ID, leave.ErrNotFound)
	}
	return nil
}

func (c conn) GetRequest(ctx context.Context, id string) (leave.Request, error) {
	requests, err := c.queryRequests(ctx, `SELECT `+requestColumns+` FROM leave_requests r WHERE r.id = ?`, id)
	if err != nil {
		return leave.Request{}, err
	}
	if len(requests) == 0 {
		return leave.Request{}, fmt.Errorf("request %s: %w", id, leave.ErrNotFound)
	}
	return requests[0], nil
}

func (c conn) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "r.employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	where, args = appendIn(where, args, "r.status", f.Statuses)
	where, args = appendIn(where, args, "r.manager_approval", f.Manager)
	where, args = appendIn(where, args, "r.hr_approval", f.HR)
	where, args = appendIn(where, args, "r.director_approval", f.Director)
	if f.ManagerID != "" {
		where = append(where, "e.manager_id = ?")
		args = append(args, f.ManagerID)
	}
	if f.HRID != "" {
		where = append(where, "e.hr_id = ?")
		args = append(args, f.HRID)
	}
	if f.DirectorID != "" {
		where = append(where, "e.director_id = ?")
		args = append(args, f.DirectorID)
	}
	if f.Overlapping != nil {
		where = append(where, "r.start_date <= ? AND r.end_date >= ?")
		args = append(args, f.Overlapping.End.Time.Format(dateLayout), f.Overlapping.Start.Time.Format(dateLayout))
	}

	query := `SELECT ` + requestColumns + `
		FROM leave_requests r
		LEFT JOIN employees e ON e.id = r.employee_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY r.created_at DESC, r.id DESC"

	return c.queryRequests(ctx, query, args...)
}

func appendIn[T ~string](where []string, args []any, column string, values []T) ([]string, []any) {
	if len(values) == 0 {
		return where, args
	}
	marks := make([]string, len(values))
	for i, v := range values {
		marks[i] = "?"
		args = append(args, string(v))
	}
	return append(where, column+" IN ("+strings.Join(marks, ", ")+")"), args
}

func (c conn) queryRequests(ctx context.Context, query string, args ...any) ([]leave.Request, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var out []leave.Request
	for rows.Next() {
		var (
			r                                      leave.Request
			start, end, startHalf, endHalf         string
			reason                                 sql.NullString
			mgr, hr, director, status, userStatus  string
			days, debited, createdAt, updatedAt    string
		)
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.LeaveTypeID, &start, &end,
			&startHalf, &endHalf, &reason, &mgr, &hr, &director,
			&status, &userStatus, &days, &debited, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		r.StartDate, r.EndDate = parseDate(start), parseDate(end)
		r.StartHalf, r.EndHalf = leave.HalfDayType(startHalf), leave.HalfDayType(endHalf)
		r.Reason = reason.String
		r.Approvals = leave.ApprovalState{
			Manager:  leave.ApprovalStatus(mgr),
			HR:       leave.ApprovalStatus(hr),
			Director: leave.ApprovalStatus(director),
		}
		r.Status, r.UserStatus = leave.RequestStatus(status), leave.RequestStatus(userStatus)
		r.Days = generic.MustParseDecimal(days)
		r.DebitedDays = generic.MustParseDecimal(debited)
		r.CreatedAt, r.UpdatedAt = parseTimestamp(createdAt), parseTimestamp(updatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- approval records ----

func (c conn) SaveApprovalRecord(ctx context.Context, rec leave.ApprovalRecord) error {
	var decidedAt sql.NullString
	if rec.DecidedAt != nil {
		decidedAt = sql.NullString{String: rec.DecidedAt.UTC().Format(timestampLayout), Valid: true}
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO approval_records (id, request_id, role, approver_id, status, reason, synthetic, decided_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			approver_id = excluded.approver_id,
			status = excluded.status,
			reason = excluded.reason,
			synthetic = excluded.synthetic,
			decided_at = excluded.decided_at
	`, rec.ID, rec.RequestID, string(rec.Role), nullString(rec.ApproverID), string(rec.Status),
		nullString(rec.Reason), rec.Synthetic, decidedAt, rec.CreatedAt.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("failed to save approval record %s: %w", rec.ID, err)
	}
	return nil
}

func (c conn) ApprovalRecords(ctx context.Context, requestID string) ([]leave.ApprovalRecord, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, request_id, role, approver_id, status, reason, synthetic, decided_at, created_at
		FROM approval_records
		WHERE request_id = ?
		ORDER BY created_at ASC, id ASC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.ApprovalRecord
	for rows.Next() {
		var (
			rec                           leave.ApprovalRecord
			role, status, createdAt       string
			approverID, reason, decidedAt sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.RequestID, &role, &approverID, &status,
			&reason, &rec.Synthetic, &decidedAt, &createdAt); err != nil {
			return nil, err
		}
		rec.Role = leave.Role(role)
		rec.Status = leave.RecordStatus(status)
		rec.ApproverID = approverID.String
		rec.Reason = reason.String
		rec.CreatedAt = parseTimestamp(createdAt)
		if decidedAt.Valid {
			t := parseTimestamp(decidedAt.String)
			rec.DecidedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ---- job watermarks ----

func (c conn) Watermark(ctx context.Context, job string) (generic.TimePoint, bool, error) {
	var wm string
	err := c.q.QueryRowContext(ctx, `SELECT watermark FROM job_status WHERE job = ?`, job).Scan(&wm)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.TimePoint{}, false, nil
	}
	if err != nil {
		return generic.TimePoint{}, false, err
	}
	return parseDate(wm), true, nil
}

func (c conn) SetWatermark(ctx context.Context, job string, at generic.TimePoint) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO job_status (job, watermark, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(job) DO UPDATE SET
			watermark = excluded.watermark,
			updated_at = excluded.updated_at
	`, job, at.Time.Format(dateLayout), time.Now().UTC().Format(timestampLayout))
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDate(s string) generic.TimePoint {
	t, _ := time.Parse(dateLayout, s)
	return generic.DateOf(t)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(timestampLayout, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
