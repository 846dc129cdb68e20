package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phovang-pos/api/internal/database"
	"github.com/phovang-pos/api/internal/enum"
	"github.com/phovang-pos/api/internal/handler"
	"github.com/phovang-pos/api/internal/service"
)

type mockKitchenStore struct {
	rows []database.ListKitchenItemsRow
}

func (m *mockKitchenStore) ListKitchenItems(ctx context.Context) ([]database.ListKitchenItemsRow, error) {
	return m.rows, nil
}

func kitchenRow(name, status, category string, age time.Duration) database.ListKitchenItemsRow {
	return database.ListKitchenItemsRow{
		Item: database.OrderItem{
			ID:        uuid.New(),
			OrderID:   uuid.New(),
			Name:      name,
			Quantity:  1,
			Status:    status,
			CreatedAt: pgtype.Timestamptz{Time: time.Now().Add(-age), Valid: true},
		},
		OrderCode: "01062025/A3/001",
		TableName: "A3",
		Category:  category,
	}
}

func setupKitchenRouter(store *mockKitchenStore) *chi.Mux {
	h := handler.NewKitchenHandler(store, service.Thresholds{
		PendingAfter: 5 * time.Minute,
		LateAfter:    15 * time.Minute,
	})
	r := chi.NewRouter()
	r.Route("/kitchen", h.RegisterRoutes)
	return r
}

type kitchenItemBody struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func TestKitchenDerivedStatuses(t *testing.T) {
	store := &mockKitchenStore{rows: []database.ListKitchenItemsRow{
		kitchenRow("Pho ga", enum.ItemStatusPending, "Pho", time.Minute),
		kitchenRow("Bun cha", enum.ItemStatusPending, "Bun", 10*time.Minute),
		kitchenRow("Nem ran", enum.ItemStatusPending, "Mon them", 30*time.Minute),
		kitchenRow("Tra da", enum.ItemStatusServed, "Do uong", time.Hour),
	}}
	router := setupKitchenRouter(store)

	rec := doRequest(t, router, http.MethodGet, "/kitchen/items", nil)
	requireStatus(t, rec, http.StatusOK)

	var got []kitchenItemBody
	decodeBody(t, rec, &got)
	if len(got) != 4 {
		t.Fatalf("items: got %d, want 4", len(got))
	}

	want := map[string]string{
		"Pho ga":  enum.ItemStatusNew,
		"Bun cha": enum.ItemStatusPending,
		"Nem ran": enum.ItemStatusLate,
		"Tra da":  enum.ItemStatusServed,
	}
	for _, it := range got {
		if it.Status != want[it.Name] {
			t.Errorf("%s: got %q, want %q", it.Name, it.Status, want[it.Name])
		}
	}
}

func TestKitchenStatusFilter(t *testing.T) {
	store := &mockKitchenStore{rows: []database.ListKitchenItemsRow{
		kitchenRow("Pho ga", enum.ItemStatusPending, "Pho", time.Minute),
		kitchenRow("Nem ran", enum.ItemStatusPending, "Mon them", 30*time.Minute),
	}}
	router := setupKitchenRouter(store)

	rec := doRequest(t, router, http.MethodGet, "/kitchen/items?status=late", nil)
	requireStatus(t, rec, http.StatusOK)

	var got []kitchenItemBody
	decodeBody(t, rec, &got)
	if len(got) != 1 || got[0].Name != "Nem ran" {
		t.Errorf("items: %+v, want only the late one", got)
	}
}

func TestKitchenCategoryFilter(t *testing.T) {
	store := &mockKitchenStore{rows: []database.ListKitchenItemsRow{
		kitchenRow("Pho ga", enum.ItemStatusPending, "Pho", time.Minute),
		kitchenRow("Tra da", enum.ItemStatusPending, "Do uong", time.Minute),
	}}
	router := setupKitchenRouter(store)

	rec := doRequest(t, router, http.MethodGet, "/kitchen/items?category=Pho", nil)
	requireStatus(t, rec, http.StatusOK)

	var got []kitchenItemBody
	decodeBody(t, rec, &got)
	if len(got) != 1 || got[0].Name != "Pho ga" {
		t.Errorf("items: %+v, want only Pho", got)
	}
}

func TestKitchenThresholdOverride(t *testing.T) {
	store := &mockKitchenStore{rows: []database.ListKitchenItemsRow{
		kitchenRow("Pho ga", enum.ItemStatusPending, "Pho", time.Minute),
	}}
	router := setupKitchenRouter(store)

	// With a 1s/2s window a minute-old item is already late.
	rec := doRequest(t, router, http.MethodGet, "/kitchen/items?pending_after=1s&late_after=2s", nil)
	requireStatus(t, rec, http.StatusOK)

	var got []kitchenItemBody
	decodeBody(t, rec, &got)
	if len(got) != 1 || got[0].Status != enum.ItemStatusLate {
		t.Errorf("items: %+v, want late", got)
	}
}

func TestKitchenInvalidThreshold(t *testing.T) {
	router := setupKitchenRouter(&mockKitchenStore{})
	requireStatus(t, doRequest(t, router, http.MethodGet, "/kitchen/items?pending_after=soon", nil), http.StatusBadRequest)
	requireStatus(t, doRequest(t, router, http.MethodGet, "/kitchen/items?late_after=-5m", nil), http.StatusBadRequest)
}
