package ticket

import (
	"fmt"

	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

// statusFlow is the allowed-next-status table. Closed is terminal. A status
// is never its own successor, so repeating the current status is rejected
// like any other invalid edge.
var statusFlow = map[models.Status][]models.Status{
	models.StatusRegistered:      {models.StatusReceived},
	models.StatusReceived:        {models.StatusDiagnosed},
	models.StatusDiagnosed:       {models.StatusWaitingForParts, models.StatusRepairing},
	models.StatusWaitingForParts: {models.StatusRepairing},
	models.StatusRepairing:       {models.StatusReady},
	models.StatusReady:           {models.StatusClosed},
	models.StatusClosed:          {},
}

// NextStatuses returns the statuses reachable from current. The returned
// slice is a copy; callers may modify it.
func NextStatuses(current models.Status) []models.Status {
	next := statusFlow[current]
	out := make([]models.Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether moving from one status to the other is an
// allowed edge.
func CanTransition(from, to models.Status) bool {
	for _, allowed := range statusFlow[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// checkTransition returns a typed error describing the rejected edge.
func checkTransition(from, to models.Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}
