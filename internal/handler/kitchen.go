package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tabletab/api/internal/database"
	"github.com/tabletab/api/internal/enum"
)

// KitchenStore defines the database methods needed by kitchen handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type KitchenStore interface {
	CreateKitchenSection(ctx context.Context, arg database.CreateKitchenSectionParams) (database.KitchenSection, error)
	GetKitchenSection(ctx context.Context, id uuid.UUID) (database.KitchenSection, error)
	ListKitchenSections(ctx context.Context) ([]database.KitchenSection, error)
	ListOrderItemsBySectionAndStatus(ctx context.Context, arg database.ListOrderItemsBySectionAndStatusParams) ([]database.OrderItem, error)
}

// KitchenHandler handles kitchen section endpoints.
type KitchenHandler struct {
	store KitchenStore
}

// NewKitchenHandler creates a new KitchenHandler.
func NewKitchenHandler(store KitchenStore) *KitchenHandler {
	return &KitchenHandler{store: store}
}

// RegisterRoutes registers kitchen read endpoints on the given Chi router.
// Expected to be mounted at /kitchen-sections.
func (h *KitchenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}/queue", h.Queue)
}

// RegisterManagerRoutes registers section setup, MANAGER only.
func (h *KitchenHandler) RegisterManagerRoutes(r chi.Router) {
	r.Post("/", h.Create)
}

// --- Request / Response types ---

type kitchenSectionRequest struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

type kitchenSectionResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Categories []string  `json:"categories"`
	CreatedAt  time.Time `json:"created_at"`
}

type sectionQueueResponse struct {
	SectionID uuid.UUID           `json:"section_id"`
	Status    string              `json:"status"`
	Items     []orderItemResponse `json:"items"`
}

// --- Handlers ---

// Create handles POST /kitchen-sections.
func (h *KitchenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req kitchenSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if len(req.Categories) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "categories are required"})
		return
	}

	section, err := h.store.CreateKitchenSection(r.Context(), database.CreateKitchenSectionParams{
		Name:       req.Name,
		Categories: req.Categories,
	})
	if err != nil {
		log.Printf("ERROR: create kitchen section: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbSectionToResponse(section))
}

// List handles GET /kitchen-sections.
func (h *KitchenHandler) List(w http.ResponseWriter, r *http.Request) {
	sections, err := h.store.ListKitchenSections(r.Context())
	if err != nil {
		log.Printf("ERROR: list kitchen sections: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]kitchenSectionResponse, len(sections))
	for i, s := range sections {
		resp[i] = dbSectionToResponse(s)
	}

	writeJSON(w, http.StatusOK, map[string][]kitchenSectionResponse{"kitchen_sections": resp})
}

// Queue handles GET /kitchen-sections/{id}/queue. The optional status query
// selects which tickets to show; the line defaults to PENDING.
func (h *KitchenHandler) Queue(w http.ResponseWriter, r *http.Request) {
	sectionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid section ID"})
		return
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		status = enum.OrderItemStatusPending
	}
	switch status {
	case enum.OrderItemStatusPending, enum.OrderItemStatusPreparing, enum.OrderItemStatusFinished:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	if _, err := h.store.GetKitchenSection(r.Context(), sectionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "kitchen section not found"})
			return
		}
		log.Printf("ERROR: get kitchen section: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsBySectionAndStatus(r.Context(), database.ListOrderItemsBySectionAndStatusParams{
		KitchenSectionID: sectionID,
		Status:           status,
	})
	if err != nil {
		log.Printf("ERROR: list section queue: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := sectionQueueResponse{
		SectionID: sectionID,
		Status:    status,
		Items:     make([]orderItemResponse, len(items)),
	}
	for i, item := range items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func dbSectionToResponse(s database.KitchenSection) kitchenSectionResponse {
	return kitchenSectionResponse{
		ID:         s.ID,
		Name:       s.Name,
		Categories: s.Categories,
		CreatedAt:  s.CreatedAt,
	}
}
