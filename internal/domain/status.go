package domain

import "fmt"

// Status is the lifecycle position of a booking.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusAwaiting   Status = "awaiting"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusAccepted, StatusInProgress, StatusAwaiting, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Action is a named edge of the booking state graph.
type Action string

const (
	ActionAccept       Action = "accept"
	ActionStart        Action = "start"
	ActionWorkerCancel Action = "worker_cancel"
	ActionCancel       Action = "cancel"
	ActionProposeItems Action = "propose_items"
	ActionApproveItems Action = "approve_items"
	ActionComplete     Action = "complete"
)

// Transition is one row of the table: the statuses an action may fire from,
// the status it lands on, and the roles allowed to fire it.
type Transition struct {
	From  []Status
	To    Status
	Roles []string
}

// Transitions is the single source of truth for booking lifecycle rules.
var Transitions = map[Action]Transition{
	ActionAccept: {
		From:  []Status{StatusPending},
		To:    StatusAccepted,
		Roles: []string{RoleWorker},
	},
	ActionStart: {
		From:  []Status{StatusAccepted},
		To:    StatusInProgress,
		Roles: []string{RoleWorker},
	},
	ActionWorkerCancel: {
		From:  []Status{StatusPending, StatusAccepted, StatusInProgress},
		To:    StatusCancelled,
		Roles: []string{RoleWorker},
	},
	ActionCancel: {
		From:  []Status{StatusPending, StatusAccepted},
		To:    StatusCancelled,
		Roles: []string{RoleClient, RoleAdmin},
	},
	ActionProposeItems: {
		From:  []Status{StatusAccepted, StatusInProgress},
		To:    StatusAwaiting,
		Roles: []string{RoleWorker},
	},
	ActionApproveItems: {
		From:  []Status{StatusAwaiting},
		To:    StatusCompleted,
		Roles: []string{RoleClient, RoleAdmin},
	},
	ActionComplete: {
		From:  []Status{StatusInProgress},
		To:    StatusCompleted,
		Roles: []string{RoleWorker, RoleClient, RoleAdmin},
	},
}

// Allows reports whether the action may fire while the booking is in from.
func (t Transition) Allows(from Status) bool {
	for _, s := range t.From {
		if s == from {
			return true
		}
	}
	return false
}

func (t Transition) Permits(role string) bool {
	for _, r := range t.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// FromStrings is the From set as plain strings, for SQL IN clauses.
func (t Transition) FromStrings() []string {
	out := make([]string, len(t.From))
	for i, s := range t.From {
		out[i] = string(s)
	}
	return out
}

// ActionForStatus maps a requested target status onto the action that
// reaches it for the given role. Workers cancel through their own edge.
func ActionForStatus(to Status, role string) (Action, error) {
	switch to {
	case StatusAccepted:
		return ActionAccept, nil
	case StatusInProgress:
		return ActionStart, nil
	case StatusCompleted:
		return ActionComplete, nil
	case StatusCancelled:
		if role == RoleWorker {
			return ActionWorkerCancel, nil
		}
		return ActionCancel, nil
	}
	return "", fmt.Errorf("status %q cannot be set directly", to)
}
