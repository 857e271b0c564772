// Package memory is an in-memory leave.Store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store keeps everything in maps behind one lock. WithTx holds the write
// lock for the whole unit of work and restores a snapshot if fn fails.
type Store struct {
	mu sync.RWMutex
	d  *data
}

type accountKey struct {
	EntityID  generic.EntityID
	AccountID generic.AccountID
}

type data struct {
	employees    map[string]leave.Employee
	leaveTypes   map[string]leave.LeaveType
	holidays     []generic.Holiday
	requests     map[string]leave.Request
	records      map[string]leave.ApprovalRecord
	transactions map[accountKey][]generic.Transaction
	idempotency  map[string]bool
	watermarks   map[string]generic.TimePoint
}

func New() *Store {
	return &Store{d: &data{
		employees:    make(map[string]leave.Employee),
		leaveTypes:   make(map[string]leave.LeaveType),
		requests:     make(map[string]leave.Request),
		records:      make(map[string]leave.ApprovalRecord),
		transactions: make(map[accountKey][]generic.Transaction),
		idempotency:  make(map[string]bool),
		watermarks:   make(map[string]generic.TimePoint),
	}}
}

var _ leave.Store = (*Store)(nil)

// WithTx executes fn against a transactional view. On error the state is
// rolled back to the snapshot taken before fn ran.
func (s *Store) WithTx(ctx context.Context, fn func(leave.StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	if err := fn(&txView{data: s.d}); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

func (d *data) clone() *data {
	c := &data{
		employees:    make(map[string]leave.Employee, len(d.employees)),
		leaveTypes:   make(map[string]leave.LeaveType, len(d.leaveTypes)),
		holidays:     append([]generic.Holiday(nil), d.holidays...),
		requests:     make(map[string]leave.Request, len(d.requests)),
		records:      make(map[string]leave.ApprovalRecord, len(d.records)),
		transactions: make(map[accountKey][]generic.Transaction, len(d.transactions)),
		idempotency:  make(map[string]bool, len(d.idempotency)),
		watermarks:   make(map[string]generic.TimePoint, len(d.watermarks)),
	}
	for k, v := range d.employees {
		c.employees[k] = v
	}
	for k, v := range d.leaveTypes {
		c.leaveTypes[k] = v
	}
	for k, v := range d.requests {
		c.requests[k] = v
	}
	for k, v := range d.records {
		c.records[k] = v
	}
	for k, v := range d.transactions {
		c.transactions[k] = append([]generic.Transaction(nil), v...)
	}
	for k, v := range d.idempotency {
		c.idempotency[k] = v
	}
	for k, v := range d.watermarks {
		c.watermarks[k] = v
	}
	return c
}

// =============================================================================
// SEEDING (reference data the engine only reads)
// =============================================================================

func (s *Store) SaveEmployee(_ context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.employees[e.ID] = e
	return nil
}

func (s *Store) SaveLeaveType(_ context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.leaveTypes[lt.ID] = lt
	return nil
}

func (s *Store) SaveHoliday(_ context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.d.holidays {
		if existing.ID == h.ID {
			s.d.holidays[i] = h
			return nil
		}
	}
	s.d.holidays = append(s.d.holidays, h)
	return nil
}

// =============================================================================
// READS (locked wrappers around data)
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id string) (leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetEmployee(ctx, id)
}

func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListEmployees(ctx)
}

func (s *Store) GetLeaveType(ctx context.Context, id string) (leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetLeaveType(ctx, id)
}

func (s *Store) ListLeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListLeaveTypes(ctx)
}

func (s *Store) Holidays(ctx context.Context) ([]generic.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.Holidays(ctx)
}

func (s *Store) GetRequest(ctx context.Context, id string) (leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetRequest(ctx, id)
}

func (s *Store) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListRequests(ctx, f)
}

func (s *Store) ApprovalRecords(ctx context.Context, requestID string) ([]leave.ApprovalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ApprovalRecords(ctx, requestID)
}

func (s *Store) Accounts(ctx context.Context, employeeID string) ([]leave.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.Accounts(ctx, employeeID)
}

func (s *Store) Watermark(ctx context.Context, job string) (generic.TimePoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.Watermark(ctx, job)
}

// =============================================================================
// DATA - unlocked implementation shared by Store and txView
// =============================================================================

func (d *data) GetEmployee(_ context.Context, id string) (leave.Employee, error) {
	e, ok := d.employees[id]
	if !ok {
		return leave.Employee{}, fmt.Errorf("employee %s: %w", id, leave.ErrNotFound)
	}
	return e, nil
}

func (d *data) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	out := make([]leave.Employee, 0, len(d.employees))
	for _, e := range d.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *data) GetLeaveType(_ context.Context, id string) (leave.LeaveType, error) {
	lt, ok := d.leaveTypes[id]
	if !ok {
		return leave.LeaveType{}, fmt.Errorf("leave type %s: %w", id, leave.ErrNotFound)
	}
	return lt, nil
}

func (d *data) ListLeaveTypes(_ context.Context) ([]leave.LeaveType, error) {
	out := make([]leave.LeaveType, 0, len(d.leaveTypes))
	for _, lt := range d.leaveTypes {
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *data) Holidays(_ context.Context) ([]generic.Holiday, error) {
	return append([]generic.Holiday(nil), d.holidays...), nil
}

func (d *data) GetRequest(_ context.Context, id string) (leave.Request, error) {
	r, ok := d.requests[id]
	if !ok {
		return leave.Request{}, fmt.Errorf("request %s: %w", id, leave.ErrNotFound)
	}
	return r, nil
}

func (d *data) ListRequests(_ context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	var out []leave.Request
	for _, r := range d.requests {
		if d.matches(r, f) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (d *data) matches(r leave.Request, f leave.RequestFilter) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, r.Status) {
		return false
	}
	if len(f.Manager) > 0 && !contains(f.Manager, r.Approvals.Manager) {
		return false
	}
	if len(f.HR) > 0 && !contains(f.HR, r.Approvals.HR) {
		return false
	}
	if len(f.Director) > 0 && !contains(f.Director, r.Approvals.Director) {
		return false
	}
	if f.Overlapping != nil && !r.Period().Overlaps(*f.Overlapping) {
		return false
	}
	if f.ManagerID != "" || f.HRID != "" || f.DirectorID != "" {
		e, ok := d.employees[r.EmployeeID]
		if !ok {
			return false
		}
		if f.ManagerID != "" && e.ManagerID != f.ManagerID {
			return false
		}
		if f.HRID != "" && e.HRID != f.HRID {
			return false
		}
		if f.DirectorID != "" && e.DirectorID != f.DirectorID {
			return false
		}
	}
	return true
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (d *data) ApprovalRecords(_ context.Context, requestID string) ([]leave.ApprovalRecord, error) {
	var out []leave.ApprovalRecord
	for _, rec := range d.records {
		if rec.RequestID == requestID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (d *data) Accounts(_ context.Context, employeeID string) ([]leave.Account, error) {
	var out []leave.Account
	for k := range d.transactions {
		if employeeID != "" && string(k.EntityID) != employeeID {
			continue
		}
		out = append(out, leave.Account{EmployeeID: string(k.EntityID), LeaveTypeID: string(k.AccountID)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].LeaveTypeID < out[j].LeaveTypeID
	})
	return out, nil
}

func (d *data) Watermark(_ context.Context, job string) (generic.TimePoint, bool, error) {
	wm, ok := d.watermarks[job]
	return wm, ok, nil
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// txView is handed to WithTx callbacks. It runs under the store's write lock
// so it touches data directly.
type txView struct {
	*data
}

func (tv *txView) CreateRequest(_ context.Context, r leave.Request) error {
	if _, exists := tv.requests[r.ID]; exists {
		return fmt.Errorf("request %s already exists", r.ID)
	}
	tv.requests[r.ID] = r
	return nil
}

func (tv *txView) UpdateRequest(_ context.Context, r leave.Request) error {
	if _, exists := tv.requests[r.ID]; !exists {
		return fmt.Errorf("request %s: %w", r.ID, leave.ErrNotFound)
	}
	tv.requests[r.ID] = r
	return nil
}

func (tv *txView) SaveApprovalRecord(_ context.Context, rec leave.ApprovalRecord) error {
	tv.records[rec.ID] = rec
	return nil
}

func (tv *txView) SetWatermark(_ context.Context, job string, at generic.TimePoint) error {
	tv.watermarks[job] = at
	return nil
}

func (tv *txView) Append(_ context.Context, tx generic.Transaction) error {
	if tx.IdempotencyKey != "" && tv.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	k := accountKey{EntityID: tx.EntityID, AccountID: tx.AccountID}
	txs := tv.transactions[k]

	// keep EffectiveAt order; equal times stay in append order
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].EffectiveAt.After(tx.EffectiveAt)
	})
	txs = append(txs, generic.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	tv.transactions[k] = txs

	if tx.IdempotencyKey != "" {
		tv.idempotency[tx.IdempotencyKey] = true
	}
	return nil
}

func (tv *txView) Load(_ context.Context, entityID generic.EntityID, accountID generic.AccountID) ([]generic.Transaction, error) {
	k := accountKey{EntityID: entityID, AccountID: accountID}
	return append([]generic.Transaction(nil), tv.transactions[k]...), nil
}

func (tv *txView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.idempotency[idempotencyKey], nil
}
