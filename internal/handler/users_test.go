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
	"github.com/phovang-pos/api/internal/enum"
	"github.com/phovang-pos/api/internal/handler"
	"golang.org/x/crypto/bcrypt"
)

type mockUserStore struct {
	users map[uuid.UUID]database.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[uuid.UUID]database.User)}
}

func (m *mockUserStore) ListUsers(ctx context.Context) ([]database.User, error) {
	out := make([]database.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockUserStore) CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
	for _, u := range m.users {
		if u.Email == arg.Email {
			return database.User{}, &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		}
	}
	u := database.User{
		ID:             uuid.New(),
		Email:          arg.Email,
		HashedPassword: arg.HashedPassword,
		FullName:       arg.FullName,
		Role:           arg.Role,
		IsActive:       true,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserStore) UpdateUser(ctx context.Context, arg database.UpdateUserParams) (database.User, error) {
	u, ok := m.users[arg.ID]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	u.FullName = arg.FullName
	u.Role = arg.Role
	u.IsActive = arg.IsActive
	m.users[arg.ID] = u
	return u, nil
}

func (m *mockUserStore) UpdateUserPassword(ctx context.Context, arg database.UpdateUserPasswordParams) (database.User, error) {
	u, ok := m.users[arg.ID]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	u.HashedPassword = arg.HashedPassword
	m.users[arg.ID] = u
	return u, nil
}

func setupUserRouter(store *mockUserStore) *chi.Mux {
	h := handler.NewUserHandler(store)
	r := chi.NewRouter()
	r.Route("/users", h.RegisterRoutes)
	return r
}

func TestUserCreate(t *testing.T) {
	store := newMockUserStore()
	router := setupUserRouter(store)

	rec := doRequest(t, router, http.MethodPost, "/users/", map[string]string{
		"email":     "staff@phovang.local",
		"password":  "sunny day pho",
		"full_name": "Nhan vien",
		"role":      enum.UserRoleStaff,
	})
	requireStatus(t, rec, http.StatusCreated)

	var created database.User
	for _, u := range store.users {
		created = u
	}
	if created.HashedPassword == "sunny day pho" {
		t.Error("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.HashedPassword), []byte("sunny day pho")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestUserCreateShortPassword(t *testing.T) {
	router := setupUserRouter(newMockUserStore())
	rec := doRequest(t, router, http.MethodPost, "/users/", map[string]string{
		"email":     "staff@phovang.local",
		"password":  "short",
		"full_name": "Nhan vien",
		"role":      enum.UserRoleStaff,
	})
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestUserCreateInvalidRole(t *testing.T) {
	router := setupUserRouter(newMockUserStore())
	rec := doRequest(t, router, http.MethodPost, "/users/", map[string]string{
		"email":     "staff@phovang.local",
		"password":  "sunny day pho",
		"full_name": "Nhan vien",
		"role":      "OWNER",
	})
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	router := setupUserRouter(newMockUserStore())
	body := map[string]string{
		"email":     "staff@phovang.local",
		"password":  "sunny day pho",
		"full_name": "Nhan vien",
		"role":      enum.UserRoleStaff,
	}
	requireStatus(t, doRequest(t, router, http.MethodPost, "/users/", body), http.StatusCreated)
	requireStatus(t, doRequest(t, router, http.MethodPost, "/users/", body), http.StatusConflict)
}

func TestUserSetPasswordNotFound(t *testing.T) {
	router := setupUserRouter(newMockUserStore())
	rec := doRequest(t, router, http.MethodPut, "/users/"+uuid.NewString()+"/password", map[string]string{
		"password": "sunny day pho",
	})
	requireStatus(t, rec, http.StatusNotFound)
}
