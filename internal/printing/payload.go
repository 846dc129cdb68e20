package printing

import (
	"time"

	"github.com/google/uuid"
)

// TicketLine is one line on a kitchen ticket.
type TicketLine struct {
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
	Note     string `json:"note,omitempty"`
}

// TicketPayload is the stored payload of a kitchen_ticket job. ItemIDs are
// the order item rows to stamp printed_at on once the relay confirms.
type TicketPayload struct {
	OrderCode string       `json:"order_code"`
	TableName string       `json:"table_name"`
	Lines     []TicketLine `json:"lines"`
	ItemIDs   []uuid.UUID  `json:"item_ids"`
	QueuedAt  time.Time    `json:"queued_at"`
}

// BillLine is one priced line on a printed bill. Amounts are whole VND
// rendered as strings so the payload round-trips through JSONB unchanged.
type BillLine struct {
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	Note      string `json:"note,omitempty"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

// BillPayload is the stored payload of a bill job.
type BillPayload struct {
	OrderCode string     `json:"order_code"`
	TableName string     `json:"table_name"`
	Lines     []BillLine `json:"lines"`
	Subtotal  string     `json:"subtotal"`
	Discount  string     `json:"discount,omitempty"`
	ExtraFee  string     `json:"extra_fee,omitempty"`
	Total     string     `json:"total"`
	Note      string     `json:"note,omitempty"`
	QRCodeURL string     `json:"qr_code_url,omitempty"`
	PrintedAt time.Time  `json:"printed_at"`
}

// PrintRequest is the wire format the relay accepts on POST /print.
// Exactly one of Ticket or Bill is set, matching Kind.
type PrintRequest struct {
	Printer string         `json:"printer"`
	Kind    string         `json:"kind"`
	Ticket  *TicketPayload `json:"ticket,omitempty"`
	Bill    *BillPayload   `json:"bill,omitempty"`
}
