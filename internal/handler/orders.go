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
	"github.com/shopspring/decimal"
	"github.com/tabletab/api/internal/database"
	"github.com/tabletab/api/internal/enum"
	"github.com/tabletab/api/internal/middleware"
	"github.com/tabletab/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.BillingService; narrow interface for testability.
type OrderServicer interface {
	PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*service.OrderDetail, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, lines []service.OrderLine, staffID uuid.UUID) (*service.OrderDetail, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) (*service.OrderDetail, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrdersByBillStatus(ctx context.Context, billStatus string) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetUser(ctx context.Context, id uuid.UUID) (database.User, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore) *OrderHandler {
	return &OrderHandler{svc: svc, store: store}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}", h.Update)
}

// RegisterManagerRoutes registers the order endpoints that require the
// MANAGER role. Mounted under the same /orders route with the role guard.
func (h *OrderHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/{id}/cancel", h.Cancel)
}

// --- Request / Response types ---

type placeOrderRequest struct {
	TableNumber int32                  `json:"table_number"`
	Items       []orderItemLineRequest `json:"items"`
}

type orderItemLineRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Notes      string `json:"notes"`
}

type updateOrderRequest struct {
	Items []orderItemLineRequest `json:"items"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	BillID        uuid.UUID           `json:"bill_id"`
	StaffID       uuid.UUID           `json:"staff_id"`
	StaffName     string              `json:"staff_name,omitempty"`
	TotalPrice    string              `json:"total_price"`
	HasBeenServed bool                `json:"has_been_served"`
	IsCanceled    bool                `json:"is_canceled"`
	CancelReason  *string             `json:"cancel_reason"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Items         []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID               uuid.UUID `json:"id"`
	OrderID          uuid.UUID `json:"order_id"`
	MenuItemID       uuid.UUID `json:"menu_item_id"`
	KitchenSectionID *string   `json:"kitchen_section_id"`
	Quantity         int32     `json:"quantity"`
	LinePrice        string    `json:"line_price"`
	Notes            *string   `json:"notes"`
	Status           string    `json:"status"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.TableNumber <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_number is required"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}
	for i, item := range req.Items {
		if item.MenuItemID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "menu_item_id is required"),
			})
			return
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return
		}
	}

	result, err := h.svc.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		TableNumber: req.TableNumber,
		PlacedBy:    claims.UserID,
		Lines:       toServiceLines(req.Items),
	})
	if err != nil {
		respondServiceError(w, err, "place order")
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result))
}

// List handles GET /orders. An optional bill_status query filters orders by
// the status of their owning bill (waiters watch OPEN, reports watch PAID).
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	billStatus := r.URL.Query().Get("bill_status")
	if billStatus == "" {
		billStatus = enum.BillStatusOpen
	}
	if billStatus != enum.BillStatusOpen && billStatus != enum.BillStatusPaid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill_status"})
		return
	}

	orders, err := h.store.ListOrdersByBillStatus(r.Context(), billStatus)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbOrderToResponse(order)
	resp.Items = make([]orderItemResponse, len(items))
	for i, item := range items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}
	if staff, err := h.store.GetUser(r.Context(), order.StaffID); err == nil {
		resp.StaffName = staff.FullName
	}

	writeJSON(w, http.StatusOK, resp)
}

// Update handles POST /orders/{id}. Replaces the order's items wholesale; the
// service rejects the edit once any item has reached the kitchen.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	result, err := h.svc.UpdateOrder(r.Context(), orderID, toServiceLines(req.Items), claims.UserID)
	if err != nil {
		respondServiceError(w, err, "update order")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.CancelOrder(r.Context(), orderID, req.Reason)
	if err != nil {
		respondServiceError(w, err, "cancel order")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// --- Helpers ---

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

func toServiceLines(items []orderItemLineRequest) []service.OrderLine {
	lines := make([]service.OrderLine, len(items))
	for i, item := range items {
		lines[i] = service.OrderLine{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Notes:      item.Notes,
		}
	}
	return lines
}

// respondServiceError maps service errors to HTTP status codes: validation
// sentinels to 400, not-found sentinels to 404, state conflicts to 409 and
// everything else to 500.
func respondServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case isNotFoundError(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrBillNotPaid):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		var conflict *service.StateConflictError
		if errors.As(err, &conflict) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": conflict.Error()})
			return
		}
		log.Printf("ERROR: %s: %v", action, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidMenuItemID) ||
		errors.Is(err, service.ErrInvalidStatus) ||
		errors.Is(err, service.ErrInvalidDiscountType) ||
		errors.Is(err, service.ErrInvalidDiscountValue)
}

func isNotFoundError(err error) bool {
	return errors.Is(err, service.ErrTableNotFound) ||
		errors.Is(err, service.ErrMenuItemNotFound) ||
		errors.Is(err, service.ErrBillNotFound) ||
		errors.Is(err, service.ErrOrderNotFound) ||
		errors.Is(err, service.ErrOrderItemNotFound)
}

func toOrderResponse(result *service.OrderDetail) orderResponse {
	resp := dbOrderToResponse(result.Order)
	resp.StaffName = result.Staff.FullName
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, item := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}
	return resp
}

// dbOrderToResponse converts a database.Order to an orderResponse.
func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		BillID:        o.BillID,
		StaffID:       o.StaffID,
		TotalPrice:    numericToString(o.TotalPrice),
		HasBeenServed: o.HasBeenServed,
		IsCanceled:    o.IsCanceled,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.CancelReason.Valid {
		resp.CancelReason = &o.CancelReason.String
	}
	return resp
}

// dbOrderItemToResponse converts a database.OrderItem to an orderItemResponse.
func dbOrderItemToResponse(item database.OrderItem) orderItemResponse {
	resp := orderItemResponse{
		ID:         item.ID,
		OrderID:    item.OrderID,
		MenuItemID: item.MenuItemID,
		Quantity:   item.Quantity,
		LinePrice:  numericToString(item.LinePrice),
		Status:     item.Status,
	}
	if item.KitchenSectionID.Valid {
		s := uuid.UUID(item.KitchenSectionID.Bytes).String()
		resp.KitchenSectionID = &s
	}
	if item.Notes.Valid {
		resp.Notes = &item.Notes.String
	}
	return resp
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
