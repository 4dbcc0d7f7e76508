package conversation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-concierge/internal/customers"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// Handler exposes read-only customer views for operators.
type Handler struct {
	store  customers.Store
	logger *logging.Logger
}

// NewHandler creates an admin customer handler.
func NewHandler(store customers.Store, logger *logging.Logger) *Handler {
	if store == nil {
		panic("conversation: customer store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// CustomerView is the admin representation of a customer.
type CustomerView struct {
	Profile *customers.Profile `json:"profile"`
	History []customers.Turn   `json:"history"`
}

// GetCustomer handles GET /admin/customers/{id}.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		http.Error(w, "customer id required", http.StatusBadRequest)
		return
	}

	profile, err := h.store.Get(r.Context(), id)
	if errors.Is(err, customers.ErrProfileNotFound) {
		http.Error(w, "customer not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load customer", "error", err, "customer_id", id)
		http.Error(w, "Failed to load customer", http.StatusInternalServerError)
		return
	}

	history, err := h.store.History(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load customer history", "error", err, "customer_id", id)
		http.Error(w, "Failed to load customer", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []customers.Turn{}
	}

	h.writeJSON(w, http.StatusOK, CustomerView{Profile: profile, History: history})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
