package reservation

import "strings"

type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusPreparing Status = "Preparing"
	StatusReady     Status = "Ready"
	StatusClaimed   Status = "Claimed"
	StatusRejected  Status = "Rejected"
)

// validNext is the complete transition table; ordering is kept for error messages.
var validNext = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected},
	StatusApproved:  {StatusPreparing, StatusRejected},
	StatusPreparing: {StatusReady},
	StatusReady:     {StatusClaimed},
	StatusClaimed:   {},
	StatusRejected:  {},
}

// ParseStatus normalizes client input. "Cancelled" is an alias of Rejected.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, true
	case "approved":
		return StatusApproved, true
	case "preparing":
		return StatusPreparing, true
	case "ready":
		return StatusReady, true
	case "claimed":
		return StatusClaimed, true
	case "rejected", "cancelled", "canceled":
		return StatusRejected, true
	}
	return "", false
}

func CanTransition(from, to Status) bool {
	for _, s := range validNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

func AllowedNext(from Status) []Status {
	out := make([]Status, len(validNext[from]))
	copy(out, validNext[from])
	return out
}

func (s Status) Terminal() bool { return len(validNext[s]) == 0 }
