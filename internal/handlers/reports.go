package handlers

import (
	"net/http"

	"github.com/servicedesk-pro/servicedesk/internal/report"
	"github.com/servicedesk-pro/servicedesk/internal/store"
	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

// ReportStats aggregates workshop statistics over all tickets: counts per
// status, average repair time in days, parts usage and per-technician
// closure rates.
// GET /api/reports/stats
func (h *Handler) ReportStats(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.store.ListTickets(r.Context(), store.TicketFilter{})
	if err != nil {
		h.writeError(w, err)
		return
	}

	technicians, err := h.store.ListUsers(r.Context(), store.UserFilter{Role: models.RoleTechnician})
	if err != nil {
		h.writeError(w, err)
		return
	}

	perf := report.ComputeTechnicianPerformance(tickets)
	type techPerf struct {
		TechnicianID string  `json:"technicianId"`
		FullName     string  `json:"fullName"`
		Total        int     `json:"total"`
		Closed       int     `json:"closed"`
		ClosureRate  float64 `json:"closureRate"`
	}
	performance := make([]techPerf, 0, len(technicians))
	for _, tech := range technicians {
		p := perf[tech.UID]
		performance = append(performance, techPerf{
			TechnicianID: tech.UID,
			FullName:     tech.FullName,
			Total:        p.Total,
			Closed:       p.Closed,
			ClosureRate:  p.ClosureRate(),
		})
	}

	jsonOK(w, http.StatusOK, map[string]interface{}{
		"stats":                 report.ComputeStats(tickets),
		"averageRepairTimeDays": report.AverageRepairTime(tickets),
		"parts":                 report.ComputePartsStats(tickets),
		"technicianPerformance": performance,
	})
}
