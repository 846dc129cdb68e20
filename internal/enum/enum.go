package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending  = "pending"
	OrderStatusComplete = "complete"
	OrderStatusCancel   = "cancel"
)

// Stored item statuses. The kitchen screen additionally derives the
// display-only "new" and "late" states from the item timestamp.
const (
	ItemStatusPending = "pending"
	ItemStatusServed  = "served"
	ItemStatusCancel  = "cancel"
)

// Derived (display-only) item statuses, never written to the DB.
const (
	ItemStatusNew  = "new"
	ItemStatusLate = "late"
)

const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
)

const (
	PrintJobStatusQueued   = "queued"
	PrintJobStatusPrinting = "printing"
	PrintJobStatusPrinted  = "printed"
	PrintJobStatusFailed   = "failed"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleManager = "MANAGER"
	UserRoleStaff   = "STAFF"
	UserRoleKitchen = "KITCHEN"
)

// ── Group B: Configurable labels (no DB constraint) ──

// Logical printer names. "bar" serves drinks, "bep" (kitchen) serves food.
const (
	PrinterBar     = "bar"
	PrinterKitchen = "bep"
)

const (
	PrintJobKindKitchenTicket = "kitchen_ticket"
	PrintJobKindBill          = "bill"
)

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodTransfer = "TRANSFER"
)

// Order history actions, one per mutation.
const (
	HistoryOrderCreated    = "order_created"
	HistoryItemsAdded      = "items_added"
	HistoryCustomItemAdded = "custom_item_added"
	HistoryQuantityChanged = "quantity_changed"
	HistoryNoteChanged     = "note_changed"
	HistoryItemCancelled   = "item_cancelled"
	HistoryItemRestored    = "item_restored"
	HistoryItemServed      = "item_served"
	HistoryOrdersMerged    = "orders_merged"
	HistoryOrderMoved      = "order_moved"
	HistoryOrderCompleted  = "order_completed"
	HistoryTicketQueued    = "ticket_queued"
	HistoryBillPrinted     = "bill_printed"
)
