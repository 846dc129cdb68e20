package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phovang-pos/api/internal/database"
	"github.com/phovang-pos/api/internal/enum"
	"github.com/phovang-pos/api/internal/middleware"
	"github.com/phovang-pos/api/internal/printing"
	"github.com/phovang-pos/api/internal/service"
	"github.com/phovang-pos/api/internal/ws"
	"github.com/shopspring/decimal"
)

const defaultListLimit = 100

// OrderReadStore defines the read-side database methods order handlers use
// directly, bypassing the service for queries that need no locking.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderReadStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrderHistory(ctx context.Context, orderID uuid.UUID) ([]database.OrderHistory, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	GetMenuPricesByNames(ctx context.Context, names []string) ([]database.GetMenuPricesByNamesRow, error)
	CreatePrintJob(ctx context.Context, arg database.CreatePrintJobParams) (database.PrintJob, error)
	CreateOrderHistory(ctx context.Context, arg database.CreateOrderHistoryParams) (database.OrderHistory, error)
}

// OrderMutator is the transactional order workflow.
// Satisfied by *service.OrderService.
type OrderMutator interface {
	OpenOrder(ctx context.Context, req service.OpenOrderRequest) (*service.OpenOrderResult, error)
	AddItems(ctx context.Context, orderID, actorID uuid.UUID, items []service.NewItem) (*database.Order, []database.OrderItem, error)
	AddCustomItem(ctx context.Context, orderID, actorID uuid.UUID, name string, quantity int32, note string, price decimal.Decimal) (*database.OrderItem, error)
	EditQuantity(ctx context.Context, itemID, actorID uuid.UUID, quantity int32) (*database.OrderItem, error)
	EditNote(ctx context.Context, itemID, actorID uuid.UUID, note string) (*database.OrderItem, error)
	ServeItem(ctx context.Context, itemID, actorID uuid.UUID) (*database.OrderItem, error)
	CancelItem(ctx context.Context, itemID, actorID uuid.UUID) (*database.OrderItem, error)
	RestoreItem(ctx context.Context, itemID, actorID uuid.UUID) (*database.OrderItem, error)
	MergeOrders(ctx context.Context, sourceID, targetID, actorID uuid.UUID) (*database.Order, error)
	MoveOrder(ctx context.Context, orderID, toTableID, actorID uuid.UUID) (*database.Order, error)
	CompleteOrder(ctx context.Context, req service.CompleteOrderRequest) (*service.CompleteOrderResult, error)
	UpdateBillNote(ctx context.Context, orderID, actorID uuid.UUID, note string) (*database.Order, error)
}

// JobPublisher hands committed print job IDs to the broker.
// Satisfied by *printing.Queue.
type JobPublisher interface {
	PublishJobID(ctx context.Context, id uuid.UUID) error
}

// OrderHandler handles the order lifecycle endpoints.
type OrderHandler struct {
	store       OrderReadStore
	svc         OrderMutator
	hub         Broadcaster
	autoPrint   AutoPrintNotifier
	queue       JobPublisher
	bankBin     string
	bankAccount string
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(store OrderReadStore, svc OrderMutator, hub Broadcaster, autoPrint AutoPrintNotifier, queue JobPublisher, bankBin, bankAccount string) *OrderHandler {
	return &OrderHandler{
		store:       store,
		svc:         svc,
		hub:         hub,
		autoPrint:   autoPrint,
		queue:       queue,
		bankBin:     bankBin,
		bankAccount: bankAccount,
	}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)

	r.Post("/{id}/items", h.AddItems)
	r.Post("/{id}/items/custom", h.AddCustomItem)
	r.Patch("/{id}/items/{itemID}", h.EditItem)
	r.Post("/{id}/items/{itemID}/serve", h.ServeItem)
	r.Post("/{id}/items/{itemID}/cancel", h.CancelItem)
	r.Post("/{id}/items/{itemID}/restore", h.RestoreItem)

	r.Post("/{id}/merge", h.Merge)
	r.Post("/{id}/move", h.Move)
	r.Post("/{id}/complete", h.Complete)

	r.Get("/{id}/bill", h.Bill)
	r.Patch("/{id}/bill-note", h.UpdateBillNote)
	r.Post("/{id}/print", h.PrintBill)
}

// --- Request / Response types ---

type newItemRequest struct {
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
	Note     string `json:"note"`
}

type openOrderRequest struct {
	TableID uuid.UUID        `json:"table_id"`
	Items   []newItemRequest `json:"items"`
}

type customItemRequest struct {
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
	Note     string `json:"note"`
	Price    string `json:"price"`
}

type editItemRequest struct {
	Quantity *int32  `json:"quantity"`
	Note     *string `json:"note"`
}

type mergeRequest struct {
	SourceOrderID uuid.UUID `json:"source_order_id"`
}

type moveRequest struct {
	TableID uuid.UUID `json:"table_id"`
}

type completeRequest struct {
	PaymentMethod  string `json:"payment_method"`
	Discount       string `json:"discount"`
	ExtraFee       string `json:"extra_fee"`
	AmountReceived string `json:"amount_received"`
}

type billNoteRequest struct {
	Note string `json:"note"`
}

type orderResponse struct {
	ID             uuid.UUID  `json:"id"`
	TableID        uuid.UUID  `json:"table_id"`
	OrderCode      string     `json:"order_code"`
	Status         string     `json:"status"`
	BillNote       *string    `json:"bill_note"`
	Discount       string     `json:"discount"`
	ExtraFee       string     `json:"extra_fee"`
	Total          string     `json:"total"`
	PaymentMethod  *string    `json:"payment_method"`
	AmountReceived string     `json:"amount_received"`
	CreatedAt      time.Time  `json:"created_at"`
	PaidAt         *time.Time `json:"paid_at"`
}

type orderItemResponse struct {
	ID        uuid.UUID  `json:"id"`
	OrderID   uuid.UUID  `json:"order_id"`
	Name      string     `json:"name"`
	Quantity  int32      `json:"quantity"`
	Note      *string    `json:"note"`
	Status    string     `json:"status"`
	IsCustom  bool       `json:"is_custom"`
	Price     *string    `json:"price"`
	CreatedAt time.Time  `json:"created_at"`
	PrintedAt *time.Time `json:"printed_at"`
}

type orderHistoryResponse struct {
	Action    string    `json:"action"`
	Detail    *string   `json:"detail"`
	ActorID   *string   `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

type orderDetailResponse struct {
	orderResponse
	Items   []orderItemResponse    `json:"items"`
	History []orderHistoryResponse `json:"history"`
}

type openOrderResponse struct {
	orderResponse
	Items   []orderItemResponse `json:"items"`
	Created bool                `json:"created"`
}

type billLineResponse struct {
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	Note      string `json:"note,omitempty"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type billResponse struct {
	OrderCode string             `json:"order_code"`
	TableName string             `json:"table_name"`
	Lines     []billLineResponse `json:"lines"`
	Subtotal  string             `json:"subtotal"`
	Discount  string             `json:"discount"`
	ExtraFee  string             `json:"extra_fee"`
	Total     string             `json:"total"`
	Note      string             `json:"note,omitempty"`
	QRCodeURL string             `json:"qr_code_url"`
}

type completeResponse struct {
	orderResponse
	Change string `json:"change"`
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		TableID:        o.TableID,
		OrderCode:      o.OrderCode,
		Status:         o.Status,
		Discount:       numericToString(o.Discount),
		ExtraFee:       numericToString(o.ExtraFee),
		Total:          numericToString(o.Total),
		AmountReceived: numericToString(o.AmountReceived),
		CreatedAt:      o.CreatedAt.Time,
	}
	if o.BillNote.Valid {
		resp.BillNote = &o.BillNote.String
	}
	if o.PaymentMethod.Valid {
		resp.PaymentMethod = &o.PaymentMethod.String
	}
	if o.PaidAt.Valid {
		resp.PaidAt = &o.PaidAt.Time
	}
	return resp
}

func toOrderItemResponse(it database.OrderItem) orderItemResponse {
	resp := orderItemResponse{
		ID:        it.ID,
		OrderID:   it.OrderID,
		Name:      it.Name,
		Quantity:  it.Quantity,
		Status:    it.Status,
		IsCustom:  it.IsCustom,
		CreatedAt: it.CreatedAt.Time,
	}
	if it.Note.Valid {
		resp.Note = &it.Note.String
	}
	if it.Price.Valid {
		s := numericToString(it.Price)
		resp.Price = &s
	}
	if it.PrintedAt.Valid {
		resp.PrintedAt = &it.PrintedAt.Time
	}
	return resp
}

func toOrderItemResponses(items []database.OrderItem) []orderItemResponse {
	out := make([]orderItemResponse, len(items))
	for i, it := range items {
		out[i] = toOrderItemResponse(it)
	}
	return out
}

func toOrderHistoryResponse(h database.OrderHistory) orderHistoryResponse {
	resp := orderHistoryResponse{
		Action:    h.Action,
		CreatedAt: h.CreatedAt.Time,
	}
	if h.Detail.Valid {
		resp.Detail = &h.Detail.String
	}
	if h.ActorID.Valid {
		s := uuid.UUID(h.ActorID.Bytes).String()
		resp.ActorID = &s
	}
	return resp
}

// --- Handlers ---

// Open adds items to the table's current order, creating it if needed.
func (h *OrderHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TableID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_id is required"})
		return
	}

	result, err := h.svc.OpenOrder(r.Context(), service.OpenOrderRequest{
		TableID:   req.TableID,
		CreatedBy: actorID(r),
		Items:     toNewItems(req.Items),
	})
	if err != nil {
		h.writeOrderError(w, err, "open order")
		return
	}

	event := "order.updated"
	status := http.StatusOK
	if result.Created {
		event = "order.created"
		status = http.StatusCreated
	}
	h.afterItemsChanged(result.Order, event)

	writeJSON(w, status, openOrderResponse{
		orderResponse: toOrderResponse(result.Order),
		Items:         toOrderItemResponses(result.Items),
		Created:       result.Created,
	})
}

// List returns orders filtered by status and creation time range.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListOrdersParams{Limit: defaultListLimit}

	if s := r.URL.Query().Get("status"); s != "" {
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	var ok bool
	if params.From, ok = parseTimeParam(r, "from"); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from"})
		return
	}
	if params.To, ok = parseTimeParam(r, "to"); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to"})
		return
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		params.Limit = int32(n)
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns an order with its items and history.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItems(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	history, err := h.store.ListOrderHistory(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: list order history: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := orderDetailResponse{
		orderResponse: toOrderResponse(order),
		Items:         toOrderItemResponses(items),
		History:       make([]orderHistoryResponse, len(history)),
	}
	for i, hh := range history {
		resp.History[i] = toOrderHistoryResponse(hh)
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddItems appends menu items to an open order.
func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req struct {
		Items []newItemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, items, err := h.svc.AddItems(r.Context(), id, actorID(r), toNewItems(req.Items))
	if err != nil {
		h.writeOrderError(w, err, "add items")
		return
	}

	h.afterItemsChanged(*order, "order.updated")
	writeJSON(w, http.StatusOK, openOrderResponse{
		orderResponse: toOrderResponse(*order),
		Items:         toOrderItemResponses(items),
	})
}

// AddCustomItem appends an off-menu line with a caller-supplied price.
func (h *OrderHandler) AddCustomItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req customItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	item, err := h.svc.AddCustomItem(r.Context(), id, actorID(r), req.Name, req.Quantity, req.Note, price)
	if err != nil {
		h.writeOrderError(w, err, "add custom item")
		return
	}

	h.afterItemChanged(*item, "order.updated")
	if h.autoPrint != nil {
		h.autoPrint.Notify(item.OrderID)
	}
	writeJSON(w, http.StatusCreated, toOrderItemResponse(*item))
}

// EditItem changes the quantity and/or note of a pending item.
func (h *OrderHandler) EditItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req editItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Quantity == nil && req.Note == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity or note is required"})
		return
	}

	var item *database.OrderItem
	if req.Quantity != nil {
		if item, err = h.svc.EditQuantity(r.Context(), itemID, actorID(r), *req.Quantity); err != nil {
			h.writeOrderError(w, err, "edit quantity")
			return
		}
	}
	if req.Note != nil {
		if item, err = h.svc.EditNote(r.Context(), itemID, actorID(r), *req.Note); err != nil {
			h.writeOrderError(w, err, "edit note")
			return
		}
	}

	h.afterItemChanged(*item, "order.updated")
	writeJSON(w, http.StatusOK, toOrderItemResponse(*item))
}

// ServeItem marks a pending item served.
func (h *OrderHandler) ServeItem(w http.ResponseWriter, r *http.Request) {
	h.transitionItem(w, r, h.svc.ServeItem, "item.served")
}

// CancelItem strikes a pending item from the order.
func (h *OrderHandler) CancelItem(w http.ResponseWriter, r *http.Request) {
	h.transitionItem(w, r, h.svc.CancelItem, "item.cancelled")
}

// RestoreItem returns a cancelled item to pending.
func (h *OrderHandler) RestoreItem(w http.ResponseWriter, r *http.Request) {
	h.transitionItem(w, r, h.svc.RestoreItem, "item.restored")
}

func (h *OrderHandler) transitionItem(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID, uuid.UUID) (*database.OrderItem, error), event string) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	item, err := fn(r.Context(), itemID, actorID(r))
	if err != nil {
		h.writeOrderError(w, err, event)
		return
	}

	h.afterItemChanged(*item, event)
	writeJSON(w, http.StatusOK, toOrderItemResponse(*item))
}

// Merge folds the source order into this one.
func (h *OrderHandler) Merge(w http.ResponseWriter, r *http.Request) {
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.SourceOrderID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source_order_id is required"})
		return
	}

	order, err := h.svc.MergeOrders(r.Context(), req.SourceOrderID, targetID, actorID(r))
	if err != nil {
		h.writeOrderError(w, err, "merge orders")
		return
	}

	h.afterItemsChanged(*order, "order.updated")
	broadcast(h.hub, ws.TopicTables, "table.updated", map[string]uuid.UUID{"order_id": order.ID})
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// Move relocates the order to a free table.
func (h *OrderHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TableID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_id is required"})
		return
	}

	order, err := h.svc.MoveOrder(r.Context(), id, req.TableID, actorID(r))
	if err != nil {
		h.writeOrderError(w, err, "move order")
		return
	}

	broadcast(h.hub, ws.TopicOrders, "order.updated", toOrderResponse(*order))
	broadcast(h.hub, ws.TopicTables, "table.updated", map[string]uuid.UUID{"order_id": order.ID})
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// Complete settles the order and frees its table.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	discount, ok := parseAmount(req.Discount)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discount"})
		return
	}
	extraFee, ok := parseAmount(req.ExtraFee)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid extra_fee"})
		return
	}
	received, ok := parseAmount(req.AmountReceived)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount_received"})
		return
	}

	result, err := h.svc.CompleteOrder(r.Context(), service.CompleteOrderRequest{
		OrderID:        id,
		ActorID:        actorID(r),
		PaymentMethod:  req.PaymentMethod,
		Discount:       discount,
		ExtraFee:       extraFee,
		AmountReceived: received,
	})
	if err != nil {
		h.writeOrderError(w, err, "complete order")
		return
	}

	broadcast(h.hub, ws.TopicOrders, "order.completed", toOrderResponse(result.Order))
	broadcast(h.hub, ws.TopicTables, "table.updated", map[string]uuid.UUID{"order_id": result.Order.ID})
	broadcast(h.hub, ws.TopicKitchen, "order.completed", map[string]uuid.UUID{"order_id": result.Order.ID})

	writeJSON(w, http.StatusOK, completeResponse{
		orderResponse: toOrderResponse(result.Order),
		Change:        result.Change.StringFixed(0),
	})
}

// Bill composes the current bill for preview without touching the order.
func (h *OrderHandler) Bill(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	resp, _, err := h.composeBill(r.Context(), id)
	if err != nil {
		h.writeOrderError(w, err, "compose bill")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateBillNote sets the free-text note printed at the bottom of the bill.
func (h *OrderHandler) UpdateBillNote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req billNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.UpdateBillNote(r.Context(), id, actorID(r), req.Note)
	if err != nil {
		h.writeOrderError(w, err, "update bill note")
		return
	}

	broadcast(h.hub, ws.TopicOrders, "order.updated", toOrderResponse(*order))
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// PrintBill queues a bill for the counter printer and returns the job.
func (h *OrderHandler) PrintBill(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	bill, order, err := h.composeBill(r.Context(), id)
	if err != nil {
		h.writeOrderError(w, err, "compose bill")
		return
	}

	payload := printing.BillPayload{
		OrderCode: bill.OrderCode,
		TableName: bill.TableName,
		Subtotal:  bill.Subtotal,
		Discount:  bill.Discount,
		ExtraFee:  bill.ExtraFee,
		Total:     bill.Total,
		Note:      bill.Note,
		QRCodeURL: bill.QRCodeURL,
		PrintedAt: time.Now(),
	}
	for _, l := range bill.Lines {
		payload.Lines = append(payload.Lines, printing.BillLine{
			Name:      l.Name,
			Quantity:  l.Quantity,
			Note:      l.Note,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal bill payload: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Bills always cut at the counter printer next to the cashier.
	job, err := h.store.CreatePrintJob(r.Context(), database.CreatePrintJobParams{
		OrderID: order.ID,
		Printer: enum.PrinterBar,
		Kind:    enum.PrintJobKindBill,
		Payload: body,
	})
	if err != nil {
		log.Printf("ERROR: create bill print job: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if _, err := h.store.CreateOrderHistory(r.Context(), database.CreateOrderHistoryParams{
		OrderID: order.ID,
		Action:  enum.HistoryBillPrinted,
		Detail:  pgtype.Text{String: "total=" + bill.Total, Valid: true},
		ActorID: uuidToPg(actorID(r)),
	}); err != nil {
		log.Printf("ERROR: log bill print: %v", err)
	}

	// Publish best effort; the sweeper republishes anything that gets lost.
	if h.queue != nil {
		if err := h.queue.PublishJobID(r.Context(), job.ID); err != nil {
			log.Printf("ERROR: publish bill job %s: %v", job.ID, err)
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID.String(),
		"status": job.Status,
	})
}

// --- Helpers ---

func (h *OrderHandler) composeBill(ctx context.Context, orderID uuid.UUID) (billResponse, database.Order, error) {
	order, err := h.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return billResponse{}, database.Order{}, service.ErrOrderNotFound
		}
		return billResponse{}, database.Order{}, err
	}

	table, err := h.store.GetTable(ctx, order.TableID)
	if err != nil {
		return billResponse{}, database.Order{}, err
	}

	items, err := h.store.ListOrderItems(ctx, order.ID)
	if err != nil {
		return billResponse{}, database.Order{}, err
	}

	seen := make(map[string]bool)
	var names []string
	for _, it := range items {
		if it.Price.Valid || seen[it.Name] {
			continue
		}
		seen[it.Name] = true
		names = append(names, it.Name)
	}
	prices := make(map[string]decimal.Decimal, len(names))
	if len(names) > 0 {
		rows, err := h.store.GetMenuPricesByNames(ctx, names)
		if err != nil {
			return billResponse{}, database.Order{}, err
		}
		for _, row := range rows {
			p, err := decimal.NewFromString(numericToString(row.Price))
			if err != nil {
				p = decimal.Zero
			}
			prices[row.Name] = p
		}
	}

	discount, _ := decimal.NewFromString(numericToString(order.Discount))
	extraFee, _ := decimal.NewFromString(numericToString(order.ExtraFee))
	bill := service.ComposeBill(items, prices, discount, extraFee)

	resp := billResponse{
		OrderCode: order.OrderCode,
		TableName: table.Name,
		Subtotal:  bill.Subtotal.StringFixed(0),
		Discount:  bill.Discount.StringFixed(0),
		ExtraFee:  bill.ExtraFee.StringFixed(0),
		Total:     bill.Total.StringFixed(0),
		Note:      order.BillNote.String,
		QRCodeURL: service.VietQRURL(h.bankBin, h.bankAccount, bill.Total, order.OrderCode),
	}
	for _, l := range bill.Lines {
		resp.Lines = append(resp.Lines, billLineResponse{
			Name:      l.Name,
			Quantity:  l.Quantity,
			Note:      l.Note,
			UnitPrice: l.UnitPrice.StringFixed(0),
			LineTotal: l.LineTotal.StringFixed(0),
		})
	}
	return resp, order, nil
}

// afterItemsChanged broadcasts order-level changes and pokes the kitchen
// auto printer.
func (h *OrderHandler) afterItemsChanged(order database.Order, event string) {
	broadcast(h.hub, ws.TopicOrders, event, toOrderResponse(order))
	broadcast(h.hub, ws.TopicKitchen, "kitchen.updated", map[string]uuid.UUID{"order_id": order.ID})
	if event == "order.created" {
		broadcast(h.hub, ws.TopicTables, "table.updated", map[string]uuid.UUID{"order_id": order.ID})
	}
	if h.autoPrint != nil {
		h.autoPrint.Notify(order.ID)
	}
}

func (h *OrderHandler) afterItemChanged(item database.OrderItem, event string) {
	broadcast(h.hub, ws.TopicOrders, event, toOrderItemResponse(item))
	broadcast(h.hub, ws.TopicKitchen, event, toOrderItemResponse(item))
}

// writeOrderError maps service errors onto HTTP statuses.
func (h *OrderHandler) writeOrderError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidPayment),
		errors.Is(err, service.ErrSameTable),
		errors.Is(err, service.ErrSameOrder):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrTableNotFound),
		errors.Is(err, service.ErrItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotPending),
		errors.Is(err, service.ErrItemNotPending),
		errors.Is(err, service.ErrItemNotCancelled),
		errors.Is(err, service.ErrItemServed),
		errors.Is(err, service.ErrUnservedItems),
		errors.Is(err, service.ErrTableOccupied),
		errors.Is(err, service.ErrInsufficientCash):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// actorID pulls the authenticated user ID from the request context.
func actorID(r *http.Request) uuid.UUID {
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		return claims.UserID
	}
	return uuid.Nil
}

func uuidToPg(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

func toNewItems(reqs []newItemRequest) []service.NewItem {
	items := make([]service.NewItem, len(reqs))
	for i, it := range reqs {
		items[i] = service.NewItem{Name: it.Name, Quantity: it.Quantity, Note: it.Note}
	}
	return items
}

// parseAmount parses an optional whole-VND amount; empty means zero.
func parseAmount(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// parseTimeParam parses an RFC 3339 query parameter into a nullable column.
func parseTimeParam(r *http.Request, key string) (pgtype.Timestamptz, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return pgtype.Timestamptz{}, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return pgtype.Timestamptz{}, false
	}
	return pgtype.Timestamptz{Time: t, Valid: true}, true
}
