package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-concierge/internal/customers"
)

func customerRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/admin/customers/{id}", h.GetCustomer)
	return r
}

func TestHandler_GetCustomer(t *testing.T) {
	ctx := context.Background()
	store := customers.NewInMemoryRepository(10)
	require.NoError(t, store.Upsert(ctx, completedProfile("9665", "en", "Omar")))
	require.NoError(t, store.Append(ctx, "9665", customers.NewTurn(customers.RoleUser, "hi")))

	rec := httptest.NewRecorder()
	customerRouter(NewHandler(store, nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/customers/9665", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var view CustomerView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, "Omar", view.Profile.Name)
	require.Len(t, view.History, 1)
	assert.Equal(t, "hi", view.History[0].Content)
}

func TestHandler_GetCustomerNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	customerRouter(NewHandler(customers.NewInMemoryRepository(10), nil)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/customers/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_GetCustomerStoreError(t *testing.T) {
	store := &failingStore{InMemoryRepository: customers.NewInMemoryRepository(10), getErr: errors.New("redis down")}
	rec := httptest.NewRecorder()
	customerRouter(NewHandler(store, nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/customers/1", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_GetCustomerMissingID(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(customers.NewInMemoryRepository(10), nil).GetCustomer(rec, httptest.NewRequest(http.MethodGet, "/admin/customers/", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
