// Package events carries leave status changes to other systems.
package events

import (
	"context"
	"sync"
	"time"
)

const LeaveStatusTopic = "hr.leave.status.v1"

const (
	EventLeaveCreated   = "leave.created"
	EventLeaveApproved  = "leave.approved"
	EventLeaveRejected  = "leave.rejected"
	EventLeaveCancelled = "leave.cancelled"
)

// LeaveStatusChanged is emitted after a request's status change has been
// committed. Days is a decimal string so half days survive JSON.
type LeaveStatusChanged struct {
	EventType   string    `json:"event_type"`
	RequestID   string    `json:"request_id"`
	EmployeeID  string    `json:"employee_id"`
	LeaveTypeID string    `json:"leave_type_id"`
	Status      string    `json:"status"`
	ActorID     string    `json:"actor_id,omitempty"`
	Role        string    `json:"role,omitempty"`
	Days        string    `json:"days"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishLeaveStatusChanged(ctx context.Context, event LeaveStatusChanged) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) PublishLeaveStatusChanged(context.Context, LeaveStatusChanged) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []LeaveStatusChanged
}

func (r *Recorder) PublishLeaveStatusChanged(_ context.Context, event LeaveStatusChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
	return nil
}
