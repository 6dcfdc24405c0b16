package listing

// Status is the lifecycle state of a ProductRecord
type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusActive        Status = "active"
	StatusArchived      Status = "archived"
)

// transitions lists every permitted edge of the lifecycle state machine.
// Deletion is not a status; it is guarded by CanDelete.
var transitions = map[Status][]Status{
	StatusPendingReview: {StatusApproved, StatusRejected},
	StatusApproved:      {StatusActive},
	StatusRejected:      {StatusPendingReview},
	StatusActive:        {StatusArchived},
	StatusArchived:      {},
}

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

// CanTransitionTo reports whether the edge s -> next exists
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanDelete reports whether a record in this status may be permanently removed
func (s Status) CanDelete() bool {
	return s == StatusRejected
}

// HoldsSourceURL reports whether a record in this status answers a repeat
// ingestion of its (supplier, source URL) instead of a new record being created.
func (s Status) HoldsSourceURL() bool {
	switch s {
	case StatusPendingReview, StatusApproved, StatusActive, StatusRejected:
		return true
	}
	return false
}

// AllStatuses returns every status in lifecycle order
func AllStatuses() []Status {
	return []Status{StatusPendingReview, StatusApproved, StatusRejected, StatusActive, StatusArchived}
}
