package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tabletab/api/internal/database"
	"github.com/tabletab/api/internal/enum"
	"github.com/tabletab/api/internal/handler"
	"github.com/tabletab/api/internal/middleware"
	"github.com/tabletab/api/internal/service"
)

// --- Mocks ---

type mockOrderItemService struct {
	updateOrderItemFn func(ctx context.Context, itemID uuid.UUID, menuItemID string, quantity int32, notes string, force bool) (*service.OrderDetail, error)
	cancelOrderItemFn func(ctx context.Context, itemID uuid.UUID, force bool) (*database.OrderItem, error)
	deleteOrderItemFn func(ctx context.Context, itemID uuid.UUID) error
}

func (m *mockOrderItemService) UpdateOrderItem(ctx context.Context, itemID uuid.UUID, menuItemID string, quantity int32, notes string, force bool) (*service.OrderDetail, error) {
	return m.updateOrderItemFn(ctx, itemID, menuItemID, quantity, notes, force)
}

func (m *mockOrderItemService) CancelOrderItem(ctx context.Context, itemID uuid.UUID, force bool) (*database.OrderItem, error) {
	return m.cancelOrderItemFn(ctx, itemID, force)
}

func (m *mockOrderItemService) DeleteOrderItem(ctx context.Context, itemID uuid.UUID) error {
	return m.deleteOrderItemFn(ctx, itemID)
}

type mockKitchenService struct {
	advanceFn func(ctx context.Context, itemID uuid.UUID, target string) (*database.OrderItem, error)
}

func (m *mockKitchenService) AdvanceItemStatus(ctx context.Context, itemID uuid.UUID, target string) (*database.OrderItem, error) {
	return m.advanceFn(ctx, itemID, target)
}

type mockOrderItemStore struct {
	getOrderItemFn           func(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	listOrderItemsByStatusFn func(ctx context.Context, status string) ([]database.OrderItem, error)
}

func (m *mockOrderItemStore) GetOrderItem(ctx context.Context, id uuid.UUID) (database.OrderItem, error) {
	if m.getOrderItemFn != nil {
		return m.getOrderItemFn(ctx, id)
	}
	return database.OrderItem{}, pgx.ErrNoRows
}

func (m *mockOrderItemStore) ListOrderItemsByStatus(ctx context.Context, status string) ([]database.OrderItem, error) {
	if m.listOrderItemsByStatusFn != nil {
		return m.listOrderItemsByStatusFn(ctx, status)
	}
	return []database.OrderItem{}, nil
}

// setupOrderItemRouter mirrors the production layout: waiter edits, a
// KITCHEN/MANAGER group for status advances and a MANAGER group for deletes.
func setupOrderItemRouter(svc *mockOrderItemService, kitchen *mockKitchenService, store *mockOrderItemStore) *chi.Mux {
	h := handler.NewOrderItemHandler(svc, kitchen, store)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Route("/order-items", func(r chi.Router) {
			h.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enum.UserRoleKitchen, enum.UserRoleManager))
				h.RegisterKitchenRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enum.UserRoleManager))
				h.RegisterManagerRoutes(r)
			})
		})
	})
	return r
}

// --- Update ---

func TestOrderItemUpdate_HappyPath(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	detail := testOrderDetail()
	itemID := detail.Items[0].ID
	menuItemID := uuid.New().String()

	svc := &mockOrderItemService{
		updateOrderItemFn: func(ctx context.Context, id uuid.UUID, menuID string, quantity int32, notes string, force bool) (*service.OrderDetail, error) {
			if id != itemID {
				t.Errorf("item id: got %v, want %v", id, itemID)
			}
			if menuID != menuItemID {
				t.Errorf("menu_item_id: got %v, want %v", menuID, menuItemID)
			}
			if quantity != 3 {
				t.Errorf("quantity: got %d, want 3", quantity)
			}
			if notes != "extra sauce" {
				t.Errorf("notes: got %q, want 'extra sauce'", notes)
			}
			if force {
				t.Error("force should default to false")
			}
			return detail, nil
		},
	}

	router := setupOrderItemRouter(svc, &mockKitchenService{}, &mockOrderItemStore{})
	rr := doAuthRequest(t, router, "PUT", "/order-items/"+itemID.String(), map[string]interface{}{
		"menu_item_id": menuItemID,
		"quantity":     3,
		"notes":        "extra sauce",
	}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestOrderItemUpdate_MissingMenuItemID(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	router := setupOrderItemRouter(&mockOrderItemService{}, &mockKitchenService{}, &mockOrderItemStore{})

	rr := doAuthRequest(t, router, "PUT", "/order-items/"+uuid.New().String(), map[string]interface{}{
		"quantity": 1,
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "menu_item_id is required" {
		t.Errorf("error: got %v, want 'menu_item_id is required'", resp["error"])
	}
}

func TestOrderItemUpdate_ConflictWithoutForce(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	itemID := uuid.New()

	svc := &mockOrderItemService{
		updateOrderItemFn: func(ctx context.Context, id uuid.UUID, menuID string, quantity int32, notes string, force bool) (*service.OrderDetail, error) {
			return nil, &service.StateConflictError{
				Entity: "order_item",
				ID:     id,
				Status: enum.OrderItemStatusPreparing,
			}
		},
	}

	router := setupOrderItemRouter(svc, &mockKitchenService{}, &mockOrderItemStore{})
	rr := doAuthRequest(t, router, "PUT", "/order-items/"+itemID.String(), map[string]interface{}{
		"menu_item_id": uuid.New().String(),
		"quantity":     2,
	}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

// --- Cancel ---

func TestOrderItemCancel_ForceFlagForwarded(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	item := testDBOrderItem(uuid.New())
	item.Status = enum.OrderItemStatusCanceled

	svc := &mockOrderItemService{
		cancelOrderItemFn: func(ctx context.Context, id uuid.UUID, force bool) (*database.OrderItem, error) {
			if !force {
				t.Error("force flag not forwarded")
			}
			return &item, nil
		},
	}

	router := setupOrderItemRouter(svc, &mockKitchenService{}, &mockOrderItemStore{})
	rr := doAuthRequest(t, router, "PATCH", "/order-items/"+item.ID.String()+"/cancel", map[string]interface{}{
		"force": true,
	}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["status"] != "CANCELED" {
		t.Errorf("status: got %v, want CANCELED", resp["status"])
	}
}

func TestOrderItemCancel_NotFound(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)

	svc := &mockOrderItemService{
		cancelOrderItemFn: func(ctx context.Context, id uuid.UUID, force bool) (*database.OrderItem, error) {
			return nil, service.ErrOrderItemNotFound
		},
	}

	router := setupOrderItemRouter(svc, &mockKitchenService{}, &mockOrderItemStore{})
	rr := doAuthRequest(t, router, "PATCH", "/order-items/"+uuid.New().String()+"/cancel", nil, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

// --- Status advance (KITCHEN / MANAGER) ---

func TestOrderItemStatus_KitchenAdvances(t *testing.T) {
	claims := testClaims(enum.UserRoleKitchen)
	item := testDBOrderItem(uuid.New())
	item.Status = enum.OrderItemStatusPreparing

	kitchen := &mockKitchenService{
		advanceFn: func(ctx context.Context, id uuid.UUID, target string) (*database.OrderItem, error) {
			if target != enum.OrderItemStatusPreparing {
				t.Errorf("target: got %s, want PREPARING", target)
			}
			return &item, nil
		},
	}

	router := setupOrderItemRouter(&mockOrderItemService{}, kitchen, &mockOrderItemStore{})
	rr := doAuthRequest(t, router, "PATCH", "/order-items/"+item.ID.String()+"/status", map[string]interface{}{
		"status": "PREPARING",
	}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["status"] != "PREPARING" {
		t.Errorf("status: got %v, want PREPARING", resp["status"])
	}
}

func TestOrderItemStatus_WaiterForbidden(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	router := setupOrderItemRouter(&mockOrderItemService{}, &mockKitchenService{}, &mockOrderItemStore{})

	rr := doAuthRequest(t, router, "PATCH", "/order-items/"+uuid.New().String()+"/status", map[string]interface{}{
		"status": "PREPARING",
	}, claims)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
}

func TestOrderItemStatus_RejectsNonLifecycleTargets(t *testing.T) {
	claims := testClaims(enum.UserRoleKitchen)
	router := setupOrderItemRouter(&mockOrderItemService{}, &mockKitchenService{}, &mockOrderItemStore{})

	for _, status := range []string{"CANCELED", "PENDING", "DONE", ""} {
		rr := doAuthRequest(t, router, "PATCH", "/order-items/"+uuid.New().String()+"/status", map[string]interface{}{
			"status": status,
		}, claims)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status %q: got %d, want %d", status, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestOrderItemStatus_WrongStateConflict(t *testing.T) {
	claims := testClaims(enum.UserRoleKitchen)

	kitchen := &mockKitchenService{
		advanceFn: func(ctx context.Context, id uuid.UUID, target string) (*database.OrderItem, error) {
			return nil, &service.StateConflictError{
				Entity: "order_item",
				ID:     id,
				Status: enum.OrderItemStatusPending,
				Reason: "cannot move to FINISHED",
			}
		},
	}

	router := setupOrderItemRouter(&mockOrderItemService{}, kitchen, &mockOrderItemStore{})
	rr := doAuthRequest(t, router, "PATCH", "/order-items/"+uuid.New().String()+"/status", map[string]interface{}{
		"status": "FINISHED",
	}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

// --- Delete (MANAGER) ---

func TestOrderItemDelete_ManagerOnPaidBill(t *testing.T) {
	claims := testClaims(enum.UserRoleManager)

	svc := &mockOrderItemService{
		deleteOrderItemFn: func(ctx context.Context, id uuid.UUID) error {
			return nil
		},
	}

	router := setupOrderItemRouter(svc, &mockKitchenService{}, &mockOrderItemStore{})
	rr := doAuthRequest(t, router, "DELETE", "/order-items/"+uuid.New().String(), nil, claims)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNoContent, rr.Body.String())
	}
}

func TestOrderItemDelete_OpenBillForbidden(t *testing.T) {
	claims := testClaims(enum.UserRoleManager)

	svc := &mockOrderItemService{
		deleteOrderItemFn: func(ctx context.Context, id uuid.UUID) error {
			return service.ErrBillNotPaid
		},
	}

	router := setupOrderItemRouter(svc, &mockKitchenService{}, &mockOrderItemStore{})
	rr := doAuthRequest(t, router, "DELETE", "/order-items/"+uuid.New().String(), nil, claims)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
}

func TestOrderItemDelete_KitchenForbidden(t *testing.T) {
	claims := testClaims(enum.UserRoleKitchen)
	router := setupOrderItemRouter(&mockOrderItemService{}, &mockKitchenService{}, &mockOrderItemStore{})

	rr := doAuthRequest(t, router, "DELETE", "/order-items/"+uuid.New().String(), nil, claims)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
}

// --- List / Get ---

func TestOrderItemList_DefaultsToPending(t *testing.T) {
	claims := testClaims(enum.UserRoleKitchen)

	store := &mockOrderItemStore{
		listOrderItemsByStatusFn: func(ctx context.Context, status string) ([]database.OrderItem, error) {
			if status != enum.OrderItemStatusPending {
				t.Errorf("status: got %q, want PENDING", status)
			}
			return []database.OrderItem{testDBOrderItem(uuid.New()), testDBOrderItem(uuid.New())}, nil
		},
	}

	router := setupOrderItemRouter(&mockOrderItemService{}, &mockKitchenService{}, store)
	rr := doAuthRequest(t, router, "GET", "/order-items", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	items, ok := resp["order_items"].([]interface{})
	if !ok || len(items) != 2 {
		t.Fatalf("order_items: got %v, want 2 items", resp["order_items"])
	}
}

func TestOrderItemList_FilterByStatus(t *testing.T) {
	claims := testClaims(enum.UserRoleKitchen)

	store := &mockOrderItemStore{
		listOrderItemsByStatusFn: func(ctx context.Context, status string) ([]database.OrderItem, error) {
			if status != enum.OrderItemStatusFinished {
				t.Errorf("status: got %q, want FINISHED", status)
			}
			return []database.OrderItem{}, nil
		},
	}

	router := setupOrderItemRouter(&mockOrderItemService{}, &mockKitchenService{}, store)
	rr := doAuthRequest(t, router, "GET", "/order-items?status=FINISHED", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestOrderItemList_InvalidStatus(t *testing.T) {
	claims := testClaims(enum.UserRoleKitchen)
	router := setupOrderItemRouter(&mockOrderItemService{}, &mockKitchenService{}, &mockOrderItemStore{})

	rr := doAuthRequest(t, router, "GET", "/order-items?status=DONE", nil, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "invalid status" {
		t.Errorf("error: got %v, want 'invalid status'", resp["error"])
	}
}

func TestOrderItemGet_HappyPath(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	item := testDBOrderItem(uuid.New())

	store := &mockOrderItemStore{
		getOrderItemFn: func(ctx context.Context, id uuid.UUID) (database.OrderItem, error) {
			if id != item.ID {
				t.Errorf("item id: got %v, want %v", id, item.ID)
			}
			return item, nil
		},
	}

	router := setupOrderItemRouter(&mockOrderItemService{}, &mockKitchenService{}, store)
	rr := doAuthRequest(t, router, "GET", "/order-items/"+item.ID.String(), nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["id"] != item.ID.String() {
		t.Errorf("id: got %v, want %v", resp["id"], item.ID)
	}
	if resp["status"] != enum.OrderItemStatusPending {
		t.Errorf("status: got %v, want PENDING", resp["status"])
	}
}

func TestOrderItemGet_NotFound(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	router := setupOrderItemRouter(&mockOrderItemService{}, &mockKitchenService{}, &mockOrderItemStore{})

	rr := doAuthRequest(t, router, "GET", "/order-items/"+uuid.New().String(), nil, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "order item not found" {
		t.Errorf("error: got %v, want 'order item not found'", resp["error"])
	}
}
