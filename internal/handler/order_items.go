package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tabletab/api/internal/database"
	"github.com/tabletab/api/internal/enum"
	"github.com/tabletab/api/internal/service"
)

// OrderItemServicer defines the service methods needed by item handlers.
// Satisfied by *service.BillingService; narrow interface for testability.
type OrderItemServicer interface {
	UpdateOrderItem(ctx context.Context, itemID uuid.UUID, menuItemID string, quantity int32, notes string, force bool) (*service.OrderDetail, error)
	CancelOrderItem(ctx context.Context, itemID uuid.UUID, force bool) (*database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, itemID uuid.UUID) error
}

// KitchenServicer defines the kitchen workflow methods needed by item handlers.
// Satisfied by *service.KitchenService.
type KitchenServicer interface {
	AdvanceItemStatus(ctx context.Context, itemID uuid.UUID, target string) (*database.OrderItem, error)
}

// OrderItemStore defines the database methods needed by item read endpoints.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderItemStore interface {
	GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	ListOrderItemsByStatus(ctx context.Context, status string) ([]database.OrderItem, error)
}

// OrderItemHandler handles order item endpoints.
type OrderItemHandler struct {
	svc     OrderItemServicer
	kitchen KitchenServicer
	store   OrderItemStore
}

// NewOrderItemHandler creates a new OrderItemHandler.
func NewOrderItemHandler(svc OrderItemServicer, kitchen KitchenServicer, store OrderItemStore) *OrderItemHandler {
	return &OrderItemHandler{svc: svc, kitchen: kitchen, store: store}
}

// RegisterRoutes registers item endpoints on the given Chi router.
// Expected to be mounted at /order-items.
func (h *OrderItemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}/cancel", h.Cancel)
}

// RegisterKitchenRoutes registers the status advance endpoint, guarded by the
// KITCHEN or MANAGER role.
func (h *OrderItemHandler) RegisterKitchenRoutes(r chi.Router) {
	r.Patch("/{id}/status", h.UpdateStatus)
}

// RegisterManagerRoutes registers the hard-delete endpoint for settled bills.
func (h *OrderItemHandler) RegisterManagerRoutes(r chi.Router) {
	r.Delete("/{id}", h.Delete)
}

// --- Request types ---

type updateOrderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Notes      string `json:"notes"`
	Force      bool   `json:"force"`
}

type cancelOrderItemRequest struct {
	Force bool `json:"force"`
}

type itemStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// List handles GET /order-items. The optional status query selects which
// items to show across all sections; defaults to PENDING.
func (h *OrderItemHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = enum.OrderItemStatusPending
	}
	switch status {
	case enum.OrderItemStatusPending, enum.OrderItemStatusPreparing,
		enum.OrderItemStatusFinished, enum.OrderItemStatusCanceled:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	items, err := h.store.ListOrderItemsByStatus(r.Context(), status)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderItemResponse, len(items))
	for i, item := range items {
		resp[i] = dbOrderItemToResponse(item)
	}

	writeJSON(w, http.StatusOK, map[string][]orderItemResponse{"order_items": resp})
}

// Get handles GET /order-items/{id}.
func (h *OrderItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order item ID"})
		return
	}

	item, err := h.store.GetOrderItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order item not found"})
			return
		}
		log.Printf("ERROR: get order item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbOrderItemToResponse(item))
}

// Update handles PUT /order-items/{id}. Editing an item already on the
// kitchen line requires the force flag.
func (h *OrderItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order item ID"})
		return
	}

	var req updateOrderItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.MenuItemID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "menu_item_id is required"})
		return
	}
	if req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be > 0"})
		return
	}

	result, err := h.svc.UpdateOrderItem(r.Context(), itemID, req.MenuItemID, req.Quantity, req.Notes, req.Force)
	if err != nil {
		respondServiceError(w, err, "update order item")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// Cancel handles PATCH /order-items/{id}/cancel.
func (h *OrderItemHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order item ID"})
		return
	}

	// Body is optional; absence means no force override.
	var req cancelOrderItemRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	item, err := h.svc.CancelOrderItem(r.Context(), itemID, req.Force)
	if err != nil {
		respondServiceError(w, err, "cancel order item")
		return
	}

	writeJSON(w, http.StatusOK, dbOrderItemToResponse(*item))
}

// UpdateStatus handles PATCH /order-items/{id}/status. Kitchen staff advance
// a ticket one step at a time: PENDING to PREPARING, PREPARING to FINISHED.
func (h *OrderItemHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order item ID"})
		return
	}

	var req itemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Status != enum.OrderItemStatusPreparing && req.Status != enum.OrderItemStatusFinished {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	item, err := h.kitchen.AdvanceItemStatus(r.Context(), itemID, req.Status)
	if err != nil {
		respondServiceError(w, err, "advance order item status")
		return
	}

	writeJSON(w, http.StatusOK, dbOrderItemToResponse(*item))
}

// Delete handles DELETE /order-items/{id}. Hard deletion is a bookkeeping
// cleanup and is only allowed once the owning bill is paid.
func (h *OrderItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order item ID"})
		return
	}

	if err := h.svc.DeleteOrderItem(r.Context(), itemID); err != nil {
		respondServiceError(w, err, "delete order item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
