/*
approval.go - The approval state machine

PURPOSE:
  A pure reducer over the three stage columns. Given the current state and
  one decision it returns the next state, the overall status and the audit
  records the decision produces. It performs no I/O; Service persists the
  outcome and moves the balance.

RULES:
  - Any rejection rejects every stage. Stages that were still open or already
    approved get a synthetic "cascaded rejection" record, and so does a
    skipped stage that has an approver assigned.
  - Short leaves (at most AutoApproveMaxDays) by Employees and Managers do not
    need a director. When such a request has a director assigned, the director
    stage is approved automatically on the first approval.
  - A request is Approved once every stage is Approved or NotRequired. Any
    assigned stage still skipped at that point has its record cancelled.

SEE ALSO:
  - service.go: Runs Reduce inside a store transaction
*/
package leave

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AutoApproveMaxDays is the longest leave that skips director review.
var AutoApproveMaxDays = decimal.NewFromInt(3)

const (
	autoApproveReason = "Auto-approved due to short leave duration"
	notRequiredReason = "Not required for this leave"
)

// InitialState resolves which stages a new request must pass.
func InitialState(applicant Employee, duration decimal.Decimal) ApprovalState {
	state := ApprovalState{
		Manager:  assigned(applicant.ManagerID),
		HR:       assigned(applicant.HRID),
		Director: assigned(applicant.DirectorID),
	}
	if state.Director == ApprovalPending && !directorRequired(applicant, duration) {
		state.Director = ApprovalNotRequired
	}
	return state
}

func assigned(approverID string) ApprovalStatus {
	if approverID == "" {
		return ApprovalNotRequired
	}
	return ApprovalPending
}

func directorRequired(applicant Employee, duration decimal.Decimal) bool {
	return duration.GreaterThan(AutoApproveMaxDays) || applicant.Role == EmployeeRoleHR
}

// OverallStatus derives the request status from the stage columns.
func OverallStatus(s ApprovalState) RequestStatus {
	if s.Manager == ApprovalRejected || s.HR == ApprovalRejected || s.Director == ApprovalRejected {
		return StatusRejected
	}
	if s.Manager.cleared() && s.HR.cleared() && s.Director.cleared() {
		return StatusApproved
	}
	return StatusPending
}

// =============================================================================
// REDUCER
// =============================================================================

type Decision struct {
	Role       Role
	Verdict    ApprovalStatus
	Reason     string
	ApproverID string
}

// DecisionContext is what the reducer needs to know about the request.
type DecisionContext struct {
	Applicant Employee
	Duration  decimal.Decimal
}

// RecordChange is an audit record write produced by a decision.
type RecordChange struct {
	Role       Role
	ApproverID string
	Status     RecordStatus
	Reason     string
	Synthetic  bool
}

type Outcome struct {
	State   ApprovalState
	Status  RequestStatus
	Records []RecordChange

	AutoApproved bool
	// Approved is true only when this decision moved the request to Approved.
	Approved bool
}

// Reduce applies one decision to a Pending request's stage columns.
func Reduce(state ApprovalState, d Decision, c DecisionContext) (Outcome, error) {
	switch d.Role {
	case RoleManager, RoleHR, RoleDirector:
	default:
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnauthorizedRole, d.Role)
	}
	if d.Verdict != ApprovalApproved && d.Verdict != ApprovalRejected {
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidDecision, d.Verdict)
	}

	switch state.Get(d.Role) {
	case ApprovalPending:
	case ApprovalNotRequired:
		return Outcome{}, fmt.Errorf("%w: %s", ErrStageNotRequired, d.Role)
	default:
		return Outcome{}, fmt.Errorf("%w: %s is %s", ErrStageAlreadyDecided, d.Role, state.Get(d.Role))
	}

	prev := OverallStatus(state)
	next := state
	out := Outcome{}

	if d.Verdict == ApprovalRejected {
		for _, role := range Roles {
			next.set(role, ApprovalRejected)
		}
		out.Records = append(out.Records, RecordChange{
			Role: d.Role, ApproverID: d.ApproverID, Status: RecordRejected, Reason: d.Reason,
		})
		for _, role := range Roles {
			if role == d.Role {
				continue
			}
			if !hasOpenRecord(state, role, c.Applicant) {
				continue
			}
			out.Records = append(out.Records, RecordChange{
				Role:       role,
				ApproverID: d.ApproverID,
				Status:     RecordRejected,
				Reason:     fmt.Sprintf("Cascaded rejection from %s (%s)", d.Role, d.Reason),
				Synthetic:  true,
			})
		}
	} else {
		next.set(d.Role, ApprovalApproved)
		out.Records = append(out.Records, RecordChange{
			Role: d.Role, ApproverID: d.ApproverID, Status: RecordApproved, Reason: d.Reason,
		})
		if autoApprovable(next, c) {
			next.Director = ApprovalApproved
			out.AutoApproved = true
			out.Records = append(out.Records, RecordChange{
				Role:       RoleDirector,
				ApproverID: c.Applicant.DirectorID,
				Status:     RecordApproved,
				Reason:     autoApproveReason,
				Synthetic:  true,
			})
		}
	}

	out.State = next
	out.Status = OverallStatus(next)
	out.Approved = prev != StatusApproved && out.Status == StatusApproved
	if out.Approved {
		for _, role := range Roles {
			if next.Get(role) == ApprovalNotRequired && c.Applicant.ApproverFor(role) != "" {
				out.Records = append(out.Records, RecordChange{
					Role:       role,
					ApproverID: c.Applicant.ApproverFor(role),
					Status:     RecordCancelled,
					Reason:     notRequiredReason,
					Synthetic:  true,
				})
			}
		}
	}
	return out, nil
}

// hasOpenRecord reports whether a stage's audit record is still Pending or
// Approved. A skipped stage keeps a Pending record when an approver is assigned.
func hasOpenRecord(s ApprovalState, role Role, applicant Employee) bool {
	switch s.Get(role) {
	case ApprovalRejected:
		return false
	case ApprovalNotRequired:
		return applicant.ApproverFor(role) != ""
	}
	return true
}

// autoApprovable: the director stage is still open (Pending, or skipped by
// the short-leave gate while a director is assigned) and the leave is short
// and taken by an Employee or Manager.
func autoApprovable(s ApprovalState, c DecisionContext) bool {
	if c.Applicant.DirectorID == "" {
		return false
	}
	if s.Director != ApprovalPending && s.Director != ApprovalNotRequired {
		return false
	}
	if c.Duration.GreaterThan(AutoApproveMaxDays) {
		return false
	}
	return c.Applicant.Role == EmployeeRoleEmployee || c.Applicant.Role == EmployeeRoleManager
}
