package ticket

import "github.com/servicedesk-pro/servicedesk/pkg/models"

// LeastLoaded picks the technician with the fewest open tickets.
//
// openTickets must already be filtered to non-Closed tickets; unassigned
// tickets contribute to no one's count. Technicians with no assigned
// tickets count as zero. Ties go to the lowest technician id so repeated
// runs over the same snapshot pick the same technician. Returns false if
// technicians is empty.
func LeastLoaded(openTickets []models.Ticket, technicians []models.User) (string, bool) {
	load := make(map[string]int, len(technicians))
	for i := range openTickets {
		if id := openTickets[i].TechnicianID; id != "" {
			load[id]++
		}
	}

	var best string
	found := false
	for i := range technicians {
		id := technicians[i].UID
		n := load[id]
		switch {
		case !found:
			best, found = id, true
		case n < load[best]:
			best = id
		case n == load[best] && id < best:
			best = id
		}
	}
	return best, found
}
