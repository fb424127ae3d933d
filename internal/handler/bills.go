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
	"github.com/shopspring/decimal"
	"github.com/tabletab/api/internal/database"
	"github.com/tabletab/api/internal/enum"
	"github.com/tabletab/api/internal/service"
)

// BillServicer defines the service methods needed by bill handlers.
// Satisfied by *service.BillingService; narrow interface for testability.
type BillServicer interface {
	CloseBill(ctx context.Context, billID uuid.UUID, d service.Discount) (*service.CloseBillResult, error)
	ApplyDiscount(ctx context.Context, billID uuid.UUID, d service.Discount) (*database.Bill, error)
	RemoveBill(ctx context.Context, billID uuid.UUID) error
}

// BillStore defines the database methods needed by bill read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type BillStore interface {
	GetBill(ctx context.Context, id uuid.UUID) (database.Bill, error)
	GetTableByNumber(ctx context.Context, tableNumber int32) (database.Table, error)
	GetOpenBillByTable(ctx context.Context, tableID uuid.UUID) (database.Bill, error)
	ListOrdersByBill(ctx context.Context, billID uuid.UUID) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// BillHandler handles bill endpoints.
type BillHandler struct {
	svc   BillServicer
	store BillStore
}

// NewBillHandler creates a new BillHandler.
func NewBillHandler(svc BillServicer, store BillStore) *BillHandler {
	return &BillHandler{svc: svc, store: store}
}

// RegisterRoutes registers bill endpoints on the given Chi router.
// Expected to be mounted at /bills.
func (h *BillHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}", h.Get)
}

// RegisterManagerRoutes registers the bill endpoints that require the
// MANAGER role: settling, discounting and removing bills.
func (h *BillHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/{id}/close", h.Close)
	r.Post("/{id}/discount", h.Discount)
	r.Delete("/{id}", h.Remove)
}

// --- Request / Response types ---

type discountRequest struct {
	DiscountType  string `json:"discount_type"`
	DiscountValue string `json:"discount_value"`
}

type billResponse struct {
	ID             uuid.UUID       `json:"id"`
	TableID        uuid.UUID       `json:"table_id"`
	Subtotal       string          `json:"subtotal"`
	DiscountType   *string         `json:"discount_type"`
	DiscountValue  *string         `json:"discount_value"`
	DiscountAmount string          `json:"discount_amount"`
	FinalPrice     string          `json:"final_price"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Orders         []orderResponse `json:"orders,omitempty"`
}

// --- Handlers ---

// Get handles GET /bills/{id}. Returns the bill with its orders and their
// items so the floor can show the full running tab.
func (h *BillHandler) Get(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	bill, err := h.store.GetBill(r.Context(), billID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "bill not found"})
			return
		}
		log.Printf("ERROR: get bill: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.respondWithBillDetail(w, r, bill)
}

// GetByTable handles GET /tables/{id}/bill: the open bill for a table,
// looked up by its floor number. Registered by the table routes; the path
// segment is the printed table number, not the row UUID.
func (h *BillHandler) GetByTable(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || number <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table number"})
		return
	}

	table, err := h.store.GetTableByNumber(r.Context(), int32(number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: get table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	bill, err := h.store.GetOpenBillByTable(r.Context(), table.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no open bill for table"})
			return
		}
		log.Printf("ERROR: get open bill: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.respondWithBillDetail(w, r, bill)
}

// Close handles POST /bills/{id}/close. An optional discount in the body is
// applied at close time; otherwise any previously applied discount stands.
// Unserved orders block the close with a 409 so staff can resolve them first.
func (h *BillHandler) Close(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	var req discountRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	d, err := parseDiscount(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := h.svc.CloseBill(r.Context(), billID, d)
	if err != nil {
		respondServiceError(w, err, "close bill")
		return
	}

	if !result.Closed {
		writeJSON(w, http.StatusConflict, map[string]string{"error": result.Reason})
		return
	}

	writeJSON(w, http.StatusOK, dbBillToResponse(result.Bill))
}

// Discount handles POST /bills/{id}/discount. Reapplying recomputes from the
// subtotal, so calling it twice with the same discount changes nothing.
func (h *BillHandler) Discount(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	var req discountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	d, err := parseDiscount(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if d.None() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "discount_type is required"})
		return
	}

	bill, err := h.svc.ApplyDiscount(r.Context(), billID, d)
	if err != nil {
		respondServiceError(w, err, "apply discount")
		return
	}

	writeJSON(w, http.StatusOK, dbBillToResponse(*bill))
}

// Remove handles DELETE /bills/{id}. Only settled bills can be removed.
func (h *BillHandler) Remove(w http.ResponseWriter, r *http.Request) {
	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid bill ID"})
		return
	}

	if err := h.svc.RemoveBill(r.Context(), billID); err != nil {
		respondServiceError(w, err, "remove bill")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *BillHandler) respondWithBillDetail(w http.ResponseWriter, r *http.Request, bill database.Bill) {
	orders, err := h.store.ListOrdersByBill(r.Context(), bill.ID)
	if err != nil {
		log.Printf("ERROR: list bill orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbBillToResponse(bill)
	resp.Orders = make([]orderResponse, len(orders))
	for i, o := range orders {
		items, err := h.store.ListOrderItemsByOrder(r.Context(), o.ID)
		if err != nil {
			log.Printf("ERROR: list order items: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		or := dbOrderToResponse(o)
		or.Items = make([]orderItemResponse, len(items))
		for j, item := range items {
			or.Items[j] = dbOrderItemToResponse(item)
		}
		resp.Orders[i] = or
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseDiscount converts the wire discount into a service.Discount. An empty
// discount_type means no discount.
func parseDiscount(req discountRequest) (service.Discount, error) {
	if req.DiscountType == "" {
		return service.Discount{}, nil
	}
	if req.DiscountType != enum.DiscountTypePercentage && req.DiscountType != enum.DiscountTypeFixed {
		return service.Discount{}, service.ErrInvalidDiscountType
	}
	value, err := decimal.NewFromString(req.DiscountValue)
	if err != nil {
		return service.Discount{}, service.ErrInvalidDiscountValue
	}
	d := service.Discount{Type: req.DiscountType, Value: value}
	if err := d.Validate(); err != nil {
		return service.Discount{}, err
	}
	return d, nil
}

// dbBillToResponse converts a database.Bill to a billResponse.
func dbBillToResponse(b database.Bill) billResponse {
	resp := billResponse{
		ID:             b.ID,
		TableID:        b.TableID,
		Subtotal:       numericToString(b.Subtotal),
		DiscountAmount: numericToString(b.DiscountAmount),
		FinalPrice:     numericToString(b.FinalPrice),
		Status:         b.Status,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
	if b.DiscountType.Valid {
		resp.DiscountType = &b.DiscountType.String
	}
	if b.DiscountValue.Valid {
		s := numericToString(b.DiscountValue)
		resp.DiscountValue = &s
	}
	return resp
}
