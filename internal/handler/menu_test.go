package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phovang-pos/api/internal/database"
	"github.com/phovang-pos/api/internal/handler"
)

type mockMenuStore struct {
	items map[uuid.UUID]database.MenuItem
}

func newMockMenuStore() *mockMenuStore {
	return &mockMenuStore{items: make(map[uuid.UUID]database.MenuItem)}
}

func (m *mockMenuStore) ListMenuItems(ctx context.Context) ([]database.MenuItem, error) {
	out := make([]database.MenuItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	return out, nil
}

func (m *mockMenuStore) GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error) {
	it, ok := m.items[id]
	if !ok {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	return it, nil
}

func (m *mockMenuStore) CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error) {
	for _, it := range m.items {
		if it.Name == arg.Name {
			return database.MenuItem{}, &pgconn.PgError{Code: "23505", ConstraintName: "menu_items_name_key"}
		}
	}
	it := database.MenuItem{
		ID:        uuid.New(),
		Name:      arg.Name,
		Price:     arg.Price,
		Category:  arg.Category,
		GroupCode: arg.GroupCode,
		GroupName: arg.GroupName,
		Available: arg.Available,
	}
	m.items[it.ID] = it
	return it, nil
}

func (m *mockMenuStore) UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error) {
	it, ok := m.items[arg.ID]
	if !ok {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	it.Name = arg.Name
	it.Price = arg.Price
	it.Category = arg.Category
	it.GroupCode = arg.GroupCode
	it.GroupName = arg.GroupName
	it.Available = arg.Available
	m.items[arg.ID] = it
	return it, nil
}

func (m *mockMenuStore) DeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func setupMenuRouter(store *mockMenuStore) *chi.Mux {
	h := handler.NewMenuHandler(store)
	r := chi.NewRouter()
	r.Route("/menu", func(g chi.Router) {
		h.RegisterRoutes(g)
		h.RegisterManagerRoutes(g)
	})
	return r
}

type menuItemBody struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Category  string    `json:"category"`
	GroupCode *string   `json:"group_code"`
	Available bool      `json:"available"`
}

func TestMenuCreate(t *testing.T) {
	router := setupMenuRouter(newMockMenuStore())

	rec := doRequest(t, router, http.MethodPost, "/menu/", map[string]string{
		"name":       "Pho bo tai",
		"price":      "55000",
		"category":   "Pho",
		"group_code": "bep",
	})
	requireStatus(t, rec, http.StatusCreated)

	var got menuItemBody
	decodeBody(t, rec, &got)
	if got.Price != "55000" {
		t.Errorf("price: got %q, want 55000", got.Price)
	}
	if !got.Available {
		t.Error("available should default to true")
	}
	if got.GroupCode == nil || *got.GroupCode != "bep" {
		t.Errorf("group_code: got %v, want bep", got.GroupCode)
	}
}

func TestMenuCreateDuplicateName(t *testing.T) {
	store := newMockMenuStore()
	router := setupMenuRouter(store)

	body := map[string]string{"name": "Tra da", "price": "5000", "category": "Do uong"}
	requireStatus(t, doRequest(t, router, http.MethodPost, "/menu/", body), http.StatusCreated)
	requireStatus(t, doRequest(t, router, http.MethodPost, "/menu/", body), http.StatusConflict)
}

func TestMenuCreateInvalidPrice(t *testing.T) {
	router := setupMenuRouter(newMockMenuStore())

	for _, price := range []string{"", "abc", "-100"} {
		rec := doRequest(t, router, http.MethodPost, "/menu/", map[string]string{
			"name":     "Pho ga",
			"price":    price,
			"category": "Pho",
		})
		requireStatus(t, rec, http.StatusBadRequest)
	}
}

func TestMenuGetNotFound(t *testing.T) {
	router := setupMenuRouter(newMockMenuStore())
	rec := doRequest(t, router, http.MethodGet, "/menu/"+uuid.NewString(), nil)
	requireStatus(t, rec, http.StatusNotFound)
}

func TestMenuUpdateNotFound(t *testing.T) {
	router := setupMenuRouter(newMockMenuStore())
	rec := doRequest(t, router, http.MethodPut, "/menu/"+uuid.NewString(), map[string]string{
		"name":     "Pho ga",
		"price":    "50000",
		"category": "Pho",
	})
	requireStatus(t, rec, http.StatusNotFound)
}

func TestMenuDelete(t *testing.T) {
	store := newMockMenuStore()
	it, _ := store.CreateMenuItem(context.Background(), database.CreateMenuItemParams{
		Name: "Nuoc cam", Price: numeric("30000"), Category: "Do uong", Available: true,
	})
	router := setupMenuRouter(store)

	requireStatus(t, doRequest(t, router, http.MethodDelete, "/menu/"+it.ID.String(), nil), http.StatusNoContent)
	requireStatus(t, doRequest(t, router, http.MethodDelete, "/menu/"+it.ID.String(), nil), http.StatusNotFound)
}
