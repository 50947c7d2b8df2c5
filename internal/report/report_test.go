package report

import (
	"testing"
	"time"

	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

func closedTicket(created time.Time, repairDays int, withHistory bool) models.Ticket {
	t := models.Ticket{
		Status:    models.StatusClosed,
		CreatedAt: created,
	}
	if withHistory {
		t.StatusHistory = []models.StatusChange{
			{Status: models.StatusRegistered, Timestamp: created},
			{Status: models.StatusClosed, Timestamp: created.AddDate(0, 0, repairDays)},
		}
	}
	return t
}

func TestComputeStats(t *testing.T) {
	tickets := []models.Ticket{
		{Status: models.StatusRegistered},
		{Status: models.StatusRepairing},
		{Status: models.StatusRepairing},
		{Status: models.StatusClosed},
	}

	s := ComputeStats(tickets)
	if s.Total != 4 || s.Open != 3 || s.Closed != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.PerStatus[models.StatusRepairing] != 2 {
		t.Errorf("expected 2 Repairing, got %d", s.PerStatus[models.StatusRepairing])
	}
}

func TestAverageRepairTime(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tickets := []models.Ticket{
		closedTicket(base, 2, true),
		closedTicket(base, 4, true),
		{Status: models.StatusRepairing, CreatedAt: base}, // open, ignored
	}
	if got := AverageRepairTime(tickets); got != 3.00 {
		t.Errorf("expected 3.00 days, got %v", got)
	}
}

func TestAverageRepairTimeExcludesMissingHistory(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// A closed ticket without a Closed history entry must not drag the
	// average toward zero or inflate the denominator.
	tickets := []models.Ticket{
		closedTicket(base, 3, true),
		closedTicket(base, 0, false),
	}
	if got := AverageRepairTime(tickets); got != 3.00 {
		t.Errorf("expected 3.00 days, got %v", got)
	}
}

func TestAverageRepairTimeEmpty(t *testing.T) {
	if got := AverageRepairTime(nil); got != 0 {
		t.Errorf("expected 0 with no tickets, got %v", got)
	}
	tickets := []models.Ticket{closedTicket(time.Now(), 0, false)}
	if got := AverageRepairTime(tickets); got != 0 {
		t.Errorf("expected 0 when no ticket qualifies, got %v", got)
	}
}

func TestComputePartsStats(t *testing.T) {
	tickets := []models.Ticket{
		{Parts: []models.Part{
			{Type: models.PartOrdered, Status: models.PartStatusOrdered, Quantity: 2, UnitPrice: 50},
			{Type: models.PartInstalled, Status: models.PartStatusInstalled, Quantity: 1, UnitPrice: 120},
		}},
		{Parts: []models.Part{
			{Type: models.PartOrdered, Status: models.PartStatusDelivered, Quantity: 1, UnitPrice: 30},
		}},
	}

	s := ComputePartsStats(tickets)
	if s.TotalParts != 4 {
		t.Errorf("expected 4 parts, got %d", s.TotalParts)
	}
	if s.TotalCost != 250 {
		t.Errorf("expected total cost 250, got %v", s.TotalCost)
	}
	if s.PerStatus[models.PartStatusOrdered] != 2 {
		t.Errorf("expected 2 ordered, got %d", s.PerStatus[models.PartStatusOrdered])
	}
	if s.PerType[models.PartOrdered] != 3 {
		t.Errorf("expected 3 of type ordered, got %d", s.PerType[models.PartOrdered])
	}
}

func TestTechnicianPerformance(t *testing.T) {
	tickets := []models.Ticket{
		{TechnicianID: "tech-a", Status: models.StatusClosed},
		{TechnicianID: "tech-a", Status: models.StatusClosed},
		{TechnicianID: "tech-a", Status: models.StatusRepairing},
		{TechnicianID: "tech-b", Status: models.StatusRegistered},
		{Status: models.StatusRegistered}, // unassigned, ignored
	}

	perf := ComputeTechnicianPerformance(tickets)
	a := perf["tech-a"]
	if a.Total != 3 || a.Closed != 2 {
		t.Errorf("unexpected tech-a performance %+v", a)
	}
	if got := a.ClosureRate(); got != 66.7 {
		t.Errorf("expected closure rate 66.7, got %v", got)
	}
	if got := perf["tech-b"].ClosureRate(); got != 0 {
		t.Errorf("expected closure rate 0, got %v", got)
	}
	if got := (TechnicianPerformance{}).ClosureRate(); got != 0 {
		t.Errorf("expected 0 rate with no tickets, got %v", got)
	}
}

func TestFoldASCII(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Zażółć gęślą jaźń", "Zazolc gesla jazn"},
		{"Müller-Lüdenscheidt", "Muller-Ludenscheidt"},
		{"Łukasz Gałązka", "Lukasz Galazka"},
		{"Ærø", "?ro"},
		{"straße", "strasse"},
		{"plain ascii 123", "plain ascii 123"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := FoldASCII(tc.in); got != tc.want {
			t.Errorf("FoldASCII(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildSnapshot(t *testing.T) {
	created := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	ticket := &models.Ticket{
		TicketNumber: "TKT-2026-3",
		Status:       models.StatusRepairing,
		CreatedAt:    created,
		Description:  "Wyświetlacz pęknięty",
		Device: models.DeviceSnapshot{
			Brand:        "Lenovo",
			Model:        "T480",
			SerialNumber: "SN-3",
			Year:         2019,
		},
		Parts: []models.Part{
			{Description: "Ekran dotykowy", Quantity: 2, UnitPrice: 150, Status: models.PartStatusOrdered},
		},
	}
	client := &models.User{FullName: "Grażyna Żółkiewska", Email: "g@example.com", Phone: "+48 600 000 000"}
	technician := &models.User{FullName: "Paweł Łapiński"}

	snap := BuildSnapshot(ticket, client, technician)
	if snap.Description != "Wyswietlacz pekniety" {
		t.Errorf("unexpected description %q", snap.Description)
	}
	if snap.Client.FullName != "Grazyna Zolkiewska" {
		t.Errorf("unexpected client name %q", snap.Client.FullName)
	}
	if snap.Technician != "Pawel Lapinski" {
		t.Errorf("unexpected technician %q", snap.Technician)
	}
	if len(snap.Parts) != 1 || snap.Parts[0].Description != "Ekran dotykowy" {
		t.Errorf("unexpected parts %+v", snap.Parts)
	}
	if snap.TotalCost != 300 {
		t.Errorf("expected total cost 300, got %v", snap.TotalCost)
	}

	// Missing users leave their sections zeroed.
	bare := BuildSnapshot(ticket, nil, nil)
	if bare.Client.FullName != "" || bare.Technician != "" {
		t.Errorf("expected empty client and technician, got %+v", bare)
	}
}
