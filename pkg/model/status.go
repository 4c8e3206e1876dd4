package model

// Status is the lifecycle state of a session. Transitions are only legal
// along the edges in the transition table; completed and cancelled are
// terminal and no longer occupy a time slot.
type Status string

const (
	StatusRequested Status = "requested"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var statusTransitions = map[Status][]Status{
	StatusRequested: {StatusScheduled, StatusCancelled},
	StatusScheduled: {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// Terminal reports whether the session no longer blocks new bookings.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether the edge s -> next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InitialStatus returns the status a freshly created session carries.
// A coach-initiated booking is presumed confirmed; a client-initiated
// one awaits coach approval.
func InitialStatus(createdBy Role) Status {
	if createdBy == RoleClient {
		return StatusRequested
	}
	return StatusScheduled
}

// NonTerminalStatuses lists the statuses that still occupy a time slot.
func NonTerminalStatuses() []Status {
	return []Status{StatusRequested, StatusScheduled}
}
