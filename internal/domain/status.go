package domain

// Status is the lifecycle state of a pickup request.
// The set is closed: waiting, pooled, assigned, completed.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPooled    Status = "pooled"
	StatusAssigned  Status = "assigned"
	StatusCompleted Status = "completed"
)

// nextStatus holds the single forward edge out of each non-terminal state.
var nextStatus = map[Status]Status{
	StatusWaiting:  StatusPooled,
	StatusPooled:   StatusAssigned,
	StatusAssigned: StatusCompleted,
}

// Valid reports whether s is one of the defined lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusPooled, StatusAssigned, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// CanTransitionTo reports whether moving from s to next is a legal forward step.
// Backward moves, skips and self-transitions are all rejected.
func (s Status) CanTransitionTo(next Status) bool {
	want, ok := nextStatus[s]
	return ok && want == next
}

// ParseStatus converts a raw string into a Status.
// The second return value is false when raw is not a defined state.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.Valid()
}
