package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"tomatodo/internal/auth"
	"tomatodo/internal/entity"

	"github.com/gin-gonic/gin"
)

func seedAdmin(t *testing.T, env *testEnv) string {
	t.Helper()

	hash, err := auth.HashPassword("admin-pass")
	if err != nil {
		t.Fatalf("failed to hash admin password: %v", err)
	}
	admin := &entity.DbUser{
		Username:     "root",
		Email:        "root@example.com",
		PasswordHash: hash,
		Role:         entity.UserRoleAdmin,
	}
	if err := env.repo.CreateUser(context.Background(), admin); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}

	w, loginEnv := env.do(t, http.MethodPost, "/api/login", "", gin.H{
		"username": "root",
		"password": "admin-pass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("admin login failed with status %d: %s", w.Code, w.Body.String())
	}
	var resp entity.AuthResponse
	if err := json.Unmarshal(loginEnv.Data, &resp); err != nil {
		t.Fatalf("failed to decode admin login response: %v", err)
	}
	return resp.Token
}

func TestAdminListUsers(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	adminToken := seedAdmin(t, env)

	w, listEnv := env.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin listing failed with status %d: %s", w.Code, w.Body.String())
	}

	var resp entity.UserListResponse
	if err := json.Unmarshal(listEnv.Data, &resp); err != nil {
		t.Fatalf("failed to decode user list: %v", err)
	}
	if len(resp.Users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(resp.Users))
	}
	if resp.Meta == nil || resp.Meta.Total != 3 {
		t.Fatalf("unexpected pagination meta: %+v", resp.Meta)
	}
}

func TestAdminStats(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	env.register(t, "bob")
	adminToken := seedAdmin(t, env)

	w, statsEnv := env.do(t, http.MethodGet, "/api/admin/stats", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats failed with status %d: %s", w.Code, w.Body.String())
	}

	var stats struct {
		TotalUsers int64 `json:"total_users"`
	}
	if err := json.Unmarshal(statsEnv.Data, &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.TotalUsers != 3 {
		t.Fatalf("expected 3 users counted, got %d", stats.TotalUsers)
	}
}

func TestAdminStatsForbiddenForRegularUser(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "alice")

	w, _ := env.do(t, http.MethodGet, "/api/admin/stats", token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", w.Code)
	}
}
