package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tabletab/api/internal/auth"
	"github.com/tabletab/api/internal/database"
	"github.com/tabletab/api/internal/enum"
	"github.com/tabletab/api/internal/handler"
	"github.com/tabletab/api/internal/middleware"
	"github.com/tabletab/api/internal/service"
)

// --- Mock OrderServicer ---

type mockOrderService struct {
	placeOrderFn  func(ctx context.Context, req service.PlaceOrderRequest) (*service.OrderDetail, error)
	updateOrderFn func(ctx context.Context, orderID uuid.UUID, lines []service.OrderLine, staffID uuid.UUID) (*service.OrderDetail, error)
	cancelOrderFn func(ctx context.Context, orderID uuid.UUID, reason string) (*service.OrderDetail, error)
}

func (m *mockOrderService) PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*service.OrderDetail, error) {
	return m.placeOrderFn(ctx, req)
}

func (m *mockOrderService) UpdateOrder(ctx context.Context, orderID uuid.UUID, lines []service.OrderLine, staffID uuid.UUID) (*service.OrderDetail, error) {
	return m.updateOrderFn(ctx, orderID, lines, staffID)
}

func (m *mockOrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) (*service.OrderDetail, error) {
	return m.cancelOrderFn(ctx, orderID, reason)
}

// --- Mock OrderStore ---

type mockOrderStore struct {
	getOrderFn               func(ctx context.Context, id uuid.UUID) (database.Order, error)
	listOrdersByBillStatusFn func(ctx context.Context, billStatus string) ([]database.Order, error)
	listOrderItemsByOrderFn  func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	getUserFn                func(ctx context.Context, id uuid.UUID) (database.User, error)
}

func (m *mockOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) ListOrdersByBillStatus(ctx context.Context, billStatus string) ([]database.Order, error) {
	if m.listOrdersByBillStatusFn != nil {
		return m.listOrdersByBillStatusFn(ctx, billStatus)
	}
	return []database.Order{}, nil
}

func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	if m.listOrderItemsByOrderFn != nil {
		return m.listOrderItemsByOrderFn(ctx, orderID)
	}
	return []database.OrderItem{}, nil
}

func (m *mockOrderStore) GetUser(ctx context.Context, id uuid.UUID) (database.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, id)
	}
	return database.User{}, pgx.ErrNoRows
}

// --- Test helpers ---

const testJWTSecret = "test-secret"

func testNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func testClaims(role string) *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), Role: role}
}

// setupOrderRouter mirrors the production route layout: staff endpoints plus
// a MANAGER-guarded group for cancellation.
func setupOrderRouter(svc *mockOrderService, store *mockOrderStore) *chi.Mux {
	h := handler.NewOrderHandler(svc, store)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Route("/orders", func(r chi.Router) {
			h.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enum.UserRoleManager))
				h.RegisterManagerRoutes(r)
			})
		})
	})
	return r
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// --- Test data helpers ---

func testDBOrder() database.Order {
	return database.Order{
		ID:         uuid.New(),
		BillID:     uuid.New(),
		StaffID:    uuid.New(),
		TotalPrice: testNumeric("75.00"),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

func testDBOrderItem(orderID uuid.UUID) database.OrderItem {
	return database.OrderItem{
		ID:         uuid.New(),
		OrderID:    orderID,
		MenuItemID: uuid.New(),
		KitchenSectionID: pgtype.UUID{
			Bytes: uuid.New(),
			Valid: true,
		},
		Quantity:  2,
		LinePrice: testNumeric("75.00"),
		Status:    enum.OrderItemStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func testOrderDetail() *service.OrderDetail {
	order := testDBOrder()
	return &service.OrderDetail{
		Order: order,
		Staff: database.User{ID: order.StaffID, FullName: "Dana Waiter", Role: enum.UserRoleWaiter},
		Items: []database.OrderItem{testDBOrderItem(order.ID)},
	}
}

// --- Create ---

func TestOrderCreate_HappyPath(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	detail := testOrderDetail()

	svc := &mockOrderService{
		placeOrderFn: func(ctx context.Context, req service.PlaceOrderRequest) (*service.OrderDetail, error) {
			if req.TableNumber != 7 {
				t.Errorf("table_number: got %d, want 7", req.TableNumber)
			}
			if req.PlacedBy != claims.UserID {
				t.Errorf("placed_by: got %v, want %v", req.PlacedBy, claims.UserID)
			}
			if len(req.Lines) != 1 {
				t.Fatalf("lines count: got %d, want 1", len(req.Lines))
			}
			if req.Lines[0].Quantity != 2 {
				t.Errorf("quantity: got %d, want 2", req.Lines[0].Quantity)
			}
			return detail, nil
		},
	}

	router := setupOrderRouter(svc, &mockOrderStore{})
	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
		"table_number": 7,
		"items": []map[string]interface{}{
			{"menu_item_id": uuid.New().String(), "quantity": 2},
		},
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["total_price"] != "75.00" {
		t.Errorf("total_price: got %v, want 75.00", resp["total_price"])
	}
	if resp["staff_name"] != "Dana Waiter" {
		t.Errorf("staff_name: got %v, want 'Dana Waiter'", resp["staff_name"])
	}

	items, ok := resp["items"].([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("items: got %v, want 1 item", resp["items"])
	}
	item := items[0].(map[string]interface{})
	if item["status"] != "PENDING" {
		t.Errorf("item status: got %v, want PENDING", item["status"])
	}
	if item["line_price"] != "75.00" {
		t.Errorf("item line_price: got %v, want 75.00", item["line_price"])
	}
}

func TestOrderCreate_MissingTableNumber(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{})

	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
		"items": []map[string]interface{}{
			{"menu_item_id": uuid.New().String(), "quantity": 1},
		},
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "table_number is required" {
		t.Errorf("error: got %v, want 'table_number is required'", resp["error"])
	}
}

func TestOrderCreate_EmptyItems(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{})

	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
		"table_number": 7,
		"items":        []map[string]interface{}{},
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "items are required" {
		t.Errorf("error: got %v, want 'items are required'", resp["error"])
	}
}

func TestOrderCreate_ZeroQuantity(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{})

	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
		"table_number": 7,
		"items": []map[string]interface{}{
			{"menu_item_id": uuid.New().String(), "quantity": 0},
		},
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "items[0]: quantity must be > 0" {
		t.Errorf("error: got %v, want 'items[0]: quantity must be > 0'", resp["error"])
	}
}

func TestOrderCreate_TableNotFound(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	svc := &mockOrderService{
		placeOrderFn: func(ctx context.Context, req service.PlaceOrderRequest) (*service.OrderDetail, error) {
			return nil, service.ErrTableNotFound
		},
	}

	router := setupOrderRouter(svc, &mockOrderStore{})
	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
		"table_number": 99,
		"items": []map[string]interface{}{
			{"menu_item_id": uuid.New().String(), "quantity": 1},
		},
	}, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

func TestOrderCreate_ServiceInternalError(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	svc := &mockOrderService{
		placeOrderFn: func(ctx context.Context, req service.PlaceOrderRequest) (*service.OrderDetail, error) {
			return nil, context.DeadlineExceeded
		},
	}

	router := setupOrderRouter(svc, &mockOrderStore{})
	rr := doAuthRequest(t, router, "POST", "/orders", map[string]interface{}{
		"table_number": 7,
		"items": []map[string]interface{}{
			{"menu_item_id": uuid.New().String(), "quantity": 1},
		},
	}, claims)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusInternalServerError, rr.Body.String())
	}
}

func TestOrderCreate_NoAuth(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{})

	req := httptest.NewRequest("POST", "/orders", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
}

// --- List ---

func TestOrderList_DefaultsToOpenBills(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	store := &mockOrderStore{
		listOrdersByBillStatusFn: func(ctx context.Context, billStatus string) ([]database.Order, error) {
			if billStatus != enum.BillStatusOpen {
				t.Errorf("bill_status: got %s, want OPEN", billStatus)
			}
			return []database.Order{testDBOrder(), testDBOrder()}, nil
		},
	}

	router := setupOrderRouter(&mockOrderService{}, store)
	rr := doAuthRequest(t, router, "GET", "/orders", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	orders, ok := resp["orders"].([]interface{})
	if !ok {
		t.Fatal("orders not present in response")
	}
	if len(orders) != 2 {
		t.Errorf("orders count: got %d, want 2", len(orders))
	}
}

func TestOrderList_InvalidBillStatus(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{})

	rr := doAuthRequest(t, router, "GET", "/orders?bill_status=SETTLED", nil, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

// --- Get ---

func TestOrderGet_HappyPath(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	order := testDBOrder()
	item := testDBOrderItem(order.ID)

	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			if id != order.ID {
				t.Errorf("order id: got %v, want %v", id, order.ID)
			}
			return order, nil
		},
		listOrderItemsByOrderFn: func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
			return []database.OrderItem{item}, nil
		},
		getUserFn: func(ctx context.Context, id uuid.UUID) (database.User, error) {
			return database.User{ID: id, FullName: "Dana Waiter"}, nil
		},
	}

	router := setupOrderRouter(&mockOrderService{}, store)
	rr := doAuthRequest(t, router, "GET", "/orders/"+order.ID.String(), nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["id"] != order.ID.String() {
		t.Errorf("id: got %v, want %v", resp["id"], order.ID)
	}
	if resp["staff_name"] != "Dana Waiter" {
		t.Errorf("staff_name: got %v, want 'Dana Waiter'", resp["staff_name"])
	}
	items := resp["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items count: got %d, want 1", len(items))
	}
}

func TestOrderGet_NotFound(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{})

	rr := doAuthRequest(t, router, "GET", "/orders/"+uuid.New().String(), nil, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

func TestOrderGet_InvalidID(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{})

	rr := doAuthRequest(t, router, "GET", "/orders/not-a-uuid", nil, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

// --- Update ---

func TestOrderUpdate_HappyPath(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	detail := testOrderDetail()

	svc := &mockOrderService{
		updateOrderFn: func(ctx context.Context, orderID uuid.UUID, lines []service.OrderLine, staffID uuid.UUID) (*service.OrderDetail, error) {
			if orderID != detail.Order.ID {
				t.Errorf("order id: got %v, want %v", orderID, detail.Order.ID)
			}
			if staffID != claims.UserID {
				t.Errorf("staff id: got %v, want %v", staffID, claims.UserID)
			}
			return detail, nil
		},
	}

	router := setupOrderRouter(svc, &mockOrderStore{})
	rr := doAuthRequest(t, router, "POST", "/orders/"+detail.Order.ID.String(), map[string]interface{}{
		"items": []map[string]interface{}{
			{"menu_item_id": uuid.New().String(), "quantity": 3},
		},
	}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestOrderUpdate_ConflictOnceInKitchen(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	orderID := uuid.New()

	svc := &mockOrderService{
		updateOrderFn: func(ctx context.Context, id uuid.UUID, lines []service.OrderLine, staffID uuid.UUID) (*service.OrderDetail, error) {
			return nil, &service.StateConflictError{
				Entity: "order",
				ID:     id,
				Status: enum.OrderItemStatusPreparing,
				Reason: "order has items that are no longer pending",
			}
		},
	}

	router := setupOrderRouter(svc, &mockOrderStore{})
	rr := doAuthRequest(t, router, "POST", "/orders/"+orderID.String(), map[string]interface{}{
		"items": []map[string]interface{}{
			{"menu_item_id": uuid.New().String(), "quantity": 1},
		},
	}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

// --- Cancel (MANAGER only) ---

func TestOrderCancel_ManagerAllowed(t *testing.T) {
	claims := testClaims(enum.UserRoleManager)
	detail := testOrderDetail()
	detail.Order.IsCanceled = true

	svc := &mockOrderService{
		cancelOrderFn: func(ctx context.Context, orderID uuid.UUID, reason string) (*service.OrderDetail, error) {
			if reason != "guest left" {
				t.Errorf("reason: got %q, want 'guest left'", reason)
			}
			return detail, nil
		},
	}

	router := setupOrderRouter(svc, &mockOrderStore{})
	rr := doAuthRequest(t, router, "POST", "/orders/"+detail.Order.ID.String()+"/cancel", map[string]interface{}{
		"reason": "guest left",
	}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["is_canceled"] != true {
		t.Errorf("is_canceled: got %v, want true", resp["is_canceled"])
	}
}

func TestOrderCancel_WaiterForbidden(t *testing.T) {
	claims := testClaims(enum.UserRoleWaiter)
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{})

	rr := doAuthRequest(t, router, "POST", "/orders/"+uuid.New().String()+"/cancel", map[string]interface{}{
		"reason": "nope",
	}, claims)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
}

func TestOrderCancel_AlreadyCanceled(t *testing.T) {
	claims := testClaims(enum.UserRoleManager)
	orderID := uuid.New()

	svc := &mockOrderService{
		cancelOrderFn: func(ctx context.Context, id uuid.UUID, reason string) (*service.OrderDetail, error) {
			return nil, &service.StateConflictError{
				Entity: "order",
				ID:     id,
				Status: "CANCELED",
				Reason: "order already canceled",
			}
		},
	}

	router := setupOrderRouter(svc, &mockOrderStore{})
	rr := doAuthRequest(t, router, "POST", "/orders/"+orderID.String()+"/cancel", map[string]interface{}{
		"reason": "again",
	}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}
