package core

type JobStatus string

const (
	StatusPendingReview JobStatus = "pending_review"
	StatusQueued        JobStatus = "queued"
	StatusPrinting      JobStatus = "printing"
	StatusCompleted     JobStatus = "completed"
	StatusRejected      JobStatus = "rejected"
	StatusFailed        JobStatus = "failed"
)

// transitions is the closed transition table. Anything not listed here is
// rejected at the boundary rather than checked ad hoc in calling code.
var transitions = map[JobStatus][]JobStatus{
	StatusPendingReview: {StatusQueued, StatusRejected},
	StatusQueued:        {StatusPrinting},
	StatusPrinting:      {StatusCompleted, StatusFailed},
	StatusCompleted:     {},
	StatusRejected:      {},
	StatusFailed:        {},
}

func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is defined from s.
func (s JobStatus) Terminal() bool {
	return len(transitions[s]) == 0 && s.Valid()
}

// Active reports whether s counts against the one-active-job rule.
func (s JobStatus) Active() bool {
	switch s {
	case StatusPendingReview, StatusQueued, StatusPrinting:
		return true
	}
	return false
}

func (s JobStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}
