/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes leave.Service over REST. Handles HTTP request/response, JSON
  serialization and input validation, and delegates to the service.

ENDPOINTS:
  Employees:
    GET    /api/employees                     List employees
    POST   /api/employees/{id}/leaves         Create a leave request
    GET    /api/employees/{id}/leaves         Request history (?status=)
    GET    /api/employees/{id}/balances       Balances per leave type
    GET    /api/employees/{id}/team-calendar  Team's approved leave (?year=&month=)

  Leaves:
    POST   /api/leaves/{id}/decisions         Record an approver's decision
    POST   /api/leaves/{id}/cancel            Cancel on behalf of the owner
    GET    /api/leaves/{id}/audit             Approval audit trail

  Approvers:
    GET    /api/approvers/{id}/pending?role=  Requests waiting on an approver

  Admin:
    GET    /api/admin/pending                 Requests awaiting a director
    POST   /api/admin/accrual/run             Run accrual catch-up now

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input (code names the failed check)
  - 403: Caller is not the assigned approver for the stage
  - 404: Request, employee or leave type not found
  - 409: Request or stage already decided, balance short at approval
  - 500: Internal errors

SECURITY NOTE:
  No authentication. Approver and employee IDs are taken from the request
  body as given.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *leave.Service
	Scheduler *AccrualScheduler
	Logger    *zap.Logger

	validate *validator.Validate
}

func NewHandler(svc *leave.Service, scheduler *AccrualScheduler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:   svc,
		Scheduler: scheduler,
		Logger:    logger.Named("api"),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.Store.ListEmployees(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = EmployeeDTO{
			ID:         e.ID,
			Name:       e.Name,
			Email:      e.Email,
			Role:       string(e.Role),
			ManagerID:  e.ManagerID,
			HRID:       e.HRID,
			DirectorID: e.DirectorID,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLeave submits a new request for the employee in the path.
// POST /api/employees/{id}/leaves
func (h *Handler) CreateLeave(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	start, err := generic.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid start_date", err)
		return
	}
	end, err := generic.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid end_date", err)
		return
	}

	created, err := h.Service.Create(r.Context(), leave.CreateInput{
		EmployeeID:  chi.URLParam(r, "id"),
		LeaveTypeID: req.LeaveTypeID,
		StartDate:   start,
		EndDate:     end,
		StartHalf:   halfOrDefault(req.StartHalf),
		EndHalf:     halfOrDefault(req.EndHalf),
		Reason:      req.Reason,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(created))
}

func halfOrDefault(s string) leave.HalfDayType {
	if s == "" {
		return leave.FullDay
	}
	return leave.HalfDayType(s)
}

// ListLeaves returns an employee's requests, newest first.
// GET /api/employees/{id}/leaves?status=Pending
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	var (
		views []leave.RequestView
		err   error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, perr := leave.ParseRequestStatus(raw)
		if perr != nil {
			h.writeServiceError(w, r, perr)
			return
		}
		views, err = h.Service.RequestsByStatus(r.Context(), employeeID, status)
	} else {
		views, err = h.Service.RequestsForEmployee(r.Context(), employeeID)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewDTOs(views))
}

// GetBalances returns every provisioned balance of an employee.
// GET /api/employees/{id}/balances
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Service.Balances(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = BalanceDTO{
			LeaveTypeID:    b.LeaveTypeID,
			LeaveTypeName:  b.LeaveTypeName,
			Balance:        b.Balance,
			CarryForward:   b.CarryForward,
			MonthlyAccrual: b.MonthlyAccrual,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTeamCalendar returns a month of approved leave for the employee's team.
// GET /api/employees/{id}/team-calendar?year=2025&month=6
func (h *Handler) GetTeamCalendar(w http.ResponseWriter, r *http.Request) {
	year, yerr := strconv.Atoi(r.URL.Query().Get("year"))
	month, merr := strconv.Atoi(r.URL.Query().Get("month"))
	if yerr != nil || merr != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Month and year are required", errors.Join(yerr, merr))
		return
	}

	cal, err := h.Service.TeamCalendar(r.Context(), chi.URLParam(r, "id"), year, time.Month(month))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTeamCalendarDTO(cal))
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// RecordDecision applies one approver's verdict.
// POST /api/leaves/{id}/decisions
func (h *Handler) RecordDecision(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	role, err := leave.ParseRole(req.Role)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	requestID := chi.URLParam(r, "id")
	status, err := h.Service.Decide(r.Context(), requestID, role, parseVerdict(req.Decision), req.Reason, req.ApproverID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DecisionResponse{RequestID: requestID, Status: string(status)})
}

// parseVerdict accepts "Approved"/"approve" and "Rejected"/"reject" in any
// case. Anything else is passed through for the service to reject.
func parseVerdict(s string) leave.ApprovalStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "approve":
		return leave.ApprovalApproved
	case "rejected", "reject":
		return leave.ApprovalRejected
	}
	return leave.ApprovalStatus(s)
}

// CancelLeave withdraws a request on behalf of its owner.
// POST /api/leaves/{id}/cancel
func (h *Handler) CancelLeave(w http.ResponseWriter, r *http.Request) {
	var req CancelLeaveRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	requestID := chi.URLParam(r, "id")
	reimbursed, err := h.Service.Cancel(r.Context(), requestID, req.EmployeeID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CancelResponse{
		RequestID:      requestID,
		Status:         string(leave.StatusCancelled),
		ReimbursedDays: reimbursed,
	})
}

// GetAuditTrail returns a request's approval records in decision order.
// GET /api/leaves/{id}/audit
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.AuditTrail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTOs(records))
}

// =============================================================================
// APPROVER AND ADMIN HANDLERS
// =============================================================================

// ListPendingForApprover returns the requests waiting on an approver.
// GET /api/approvers/{id}/pending?role=Manager
func (h *Handler) ListPendingForApprover(w http.ResponseWriter, r *http.Request) {
	role, err := leave.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	views, err := h.Service.PendingForApprover(r.Context(), chi.URLParam(r, "id"), role)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewDTOs(views))
}

// ListAdminPending returns every request awaiting a director decision.
// GET /api/admin/pending
func (h *Handler) ListAdminPending(w http.ResponseWriter, r *http.Request) {
	views, err := h.Service.AdminPending(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewDTOs(views))
}

// RunAccrual runs the accrual catch-up immediately.
// POST /api/admin/accrual/run
func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "accrual_unavailable", "Accrual is not configured", nil)
		return
	}
	runs, err := h.Scheduler.RunNow(r.Context())
	if errors.Is(err, ErrAccrualLocked) {
		writeError(w, http.StatusConflict, "accrual_in_progress", "Accrual is already running elsewhere", nil)
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]AccrualRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = AccrualRunDTO{Job: run.Job, Period: run.Period, Applied: run.Applied}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// decodeAndValidate decodes the JSON body into dst and runs its validate
// tags. It writes the 400 response itself and reports whether to continue.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			writeError(w, http.StatusBadRequest, "invalid_request",
				"Invalid field "+fields[0].Field()+" ("+fields[0].Tag()+")", err)
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request", err)
		return false
	}
	return true
}

// writeServiceError maps service errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve    *leave.ValidationError
		short *generic.InsufficientBalanceError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Code, ve.Message, nil)
	case errors.Is(err, leave.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Not found", err)
	case errors.Is(err, leave.ErrUnauthorizedRole):
		writeError(w, http.StatusForbidden, "unauthorized_role", "Not allowed to act for this stage", err)
	case errors.Is(err, leave.ErrInvalidDecision):
		writeError(w, http.StatusBadRequest, "invalid_decision", "Decision must be Approved or Rejected", err)
	case errors.Is(err, leave.ErrAlreadyTerminal):
		writeError(w, http.StatusConflict, "already_terminal", "Request can no longer change", err)
	case errors.Is(err, leave.ErrStageNotRequired):
		writeError(w, http.StatusConflict, "stage_not_required", "Stage is not required for this request", err)
	case errors.Is(err, leave.ErrStageAlreadyDecided):
		writeError(w, http.StatusConflict, "stage_already_decided", "Stage already decided", err)
	case errors.As(err, &short):
		writeError(w, http.StatusConflict, "insufficient_balance",
			"Balance is short by "+short.Shortfall().Value.String()+" days", err)
	case errors.Is(err, generic.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "insufficient_balance", "Balance no longer covers this request", err)
	default:
		h.Logger.Error("unhandled error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal", "Internal error", nil)
	}
}
