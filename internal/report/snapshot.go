package report

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/servicedesk-pro/servicedesk/pkg/models"
)

// Snapshot is the flattened, ASCII-folded view of a ticket that the PDF
// renderer consumes. The renderer's font cannot draw non-ASCII characters,
// so every string field is folded before it leaves this package.
type Snapshot struct {
	TicketNumber string         `json:"ticketNumber"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
	Description  string         `json:"description"`
	Client       SnapshotClient `json:"client"`
	Technician   string         `json:"technician,omitempty"`
	Device       SnapshotDevice `json:"device"`
	Parts        []SnapshotPart `json:"parts"`
	TotalCost    float64        `json:"totalPartsCost"`
}

type SnapshotClient struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

type SnapshotDevice struct {
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	SerialNumber string `json:"serialNumber"`
	Year         int    `json:"year"`
}

type SnapshotPart struct {
	Description string  `json:"description"`
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Status      string  `json:"status"`
}

// BuildSnapshot assembles the printable view of a ticket. client and
// technician may be nil when the referenced user no longer resolves.
func BuildSnapshot(t *models.Ticket, client, technician *models.User) Snapshot {
	snap := Snapshot{
		TicketNumber: t.TicketNumber,
		Status:       string(t.Status),
		CreatedAt:    t.CreatedAt,
		Description:  FoldASCII(t.Description),
		Device: SnapshotDevice{
			Brand:        FoldASCII(t.Device.Brand),
			Model:        FoldASCII(t.Device.Model),
			SerialNumber: t.Device.SerialNumber,
			Year:         t.Device.Year,
		},
		Parts: []SnapshotPart{},
	}
	if client != nil {
		snap.Client = SnapshotClient{
			FullName: FoldASCII(client.FullName),
			Email:    client.Email,
			Phone:    client.Phone,
		}
	}
	if technician != nil {
		snap.Technician = FoldASCII(technician.FullName)
	}
	for _, p := range t.Parts {
		snap.Parts = append(snap.Parts, SnapshotPart{
			Description: FoldASCII(p.Description),
			SKU:         p.SKU,
			Quantity:    p.Quantity,
			UnitPrice:   p.UnitPrice,
			Status:      string(p.Status),
		})
		snap.TotalCost += p.UnitPrice * float64(p.Quantity)
	}
	return snap
}

// asciiReplacer covers letters that NFD decomposition leaves untouched.
// Stroked letters carry no combining mark, so stripping marks alone would
// drop them to '?'.
var asciiReplacer = strings.NewReplacer(
	"ł", "l", "Ł", "L",
	"ø", "o", "Ø", "O",
	"đ", "d", "Đ", "D",
	"ß", "ss",
)

// FoldASCII folds a string to its closest ASCII form: combining marks are
// stripped after NFD decomposition and anything still outside ASCII becomes
// '?'.
func FoldASCII(s string) string {
	s = asciiReplacer.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}
