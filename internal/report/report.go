// Package report computes the dashboard statistics and the printable ticket
// snapshot. Everything here is pure aggregation over tickets already
// fetched; nothing talks to the store.
package report

import (
	"math"
	"time"

	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

// Stats summarizes the ticket population.
type Stats struct {
	Total     int                   `json:"total"`
	Open      int                   `json:"open"`
	Closed    int                   `json:"closed"`
	PerStatus map[models.Status]int `json:"perStatus"`
}

// ComputeStats aggregates counts over tickets.
func ComputeStats(tickets []models.Ticket) Stats {
	s := Stats{PerStatus: make(map[models.Status]int)}
	for i := range tickets {
		t := &tickets[i]
		s.Total++
		if t.Open() {
			s.Open++
		} else {
			s.Closed++
		}
		s.PerStatus[t.Status]++
	}
	return s
}

const dayMillis = 24 * 60 * 60 * 1000

// AverageRepairTime returns the mean time from ticket creation to the
// Closed history entry, in days rounded to two decimals. Closed tickets
// with no Closed history entry are excluded entirely; counting them in the
// denominator only would silently understate the mean. Returns 0 when no
// closed ticket qualifies.
func AverageRepairTime(tickets []models.Ticket) float64 {
	var sumMillis int64
	var n int
	for i := range tickets {
		t := &tickets[i]
		if t.Status != models.StatusClosed {
			continue
		}
		closedAt, ok := closedTimestamp(t)
		if !ok {
			continue
		}
		sumMillis += closedAt.Sub(t.CreatedAt).Milliseconds()
		n++
	}
	if n == 0 {
		return 0
	}
	days := float64(sumMillis) / float64(n) / dayMillis
	return math.Round(days*100) / 100
}

// closedTimestamp finds the last Closed entry in the status history.
func closedTimestamp(t *models.Ticket) (time.Time, bool) {
	for i := len(t.StatusHistory) - 1; i >= 0; i-- {
		if t.StatusHistory[i].Status == models.StatusClosed {
			return t.StatusHistory[i].Timestamp, true
		}
	}
	return time.Time{}, false
}

// PartsStats aggregates spare parts across all tickets.
type PartsStats struct {
	TotalParts int                       `json:"totalParts"`
	TotalCost  float64                   `json:"totalCost"`
	PerStatus  map[models.PartStatus]int `json:"perStatus"`
	PerType    map[models.PartType]int   `json:"perType"`
}

// ComputePartsStats walks every ticket's parts list.
func ComputePartsStats(tickets []models.Ticket) PartsStats {
	s := PartsStats{
		PerStatus: make(map[models.PartStatus]int),
		PerType:   make(map[models.PartType]int),
	}
	for i := range tickets {
		for _, p := range tickets[i].Parts {
			s.TotalParts += p.Quantity
			s.TotalCost += p.UnitPrice * float64(p.Quantity)
			s.PerStatus[p.Status] += p.Quantity
			s.PerType[p.Type] += p.Quantity
		}
	}
	return s
}

// TechnicianPerformance counts assigned and closed tickets per technician.
type TechnicianPerformance struct {
	Total  int `json:"total"`
	Closed int `json:"closed"`
}

// ClosureRate returns the percentage of the technician's tickets that
// reached Closed, rounded to one decimal.
func (p TechnicianPerformance) ClosureRate() float64 {
	if p.Total == 0 {
		return 0
	}
	return math.Round(float64(p.Closed)/float64(p.Total)*1000) / 10
}

// ComputeTechnicianPerformance buckets tickets by assigned technician.
// Unassigned tickets contribute to no one.
func ComputeTechnicianPerformance(tickets []models.Ticket) map[string]TechnicianPerformance {
	out := make(map[string]TechnicianPerformance)
	for i := range tickets {
		t := &tickets[i]
		if t.TechnicianID == "" {
			continue
		}
		p := out[t.TechnicianID]
		p.Total++
		if t.Status == models.StatusClosed {
			p.Closed++
		}
		out[t.TechnicianID] = p
	}
	return out
}
