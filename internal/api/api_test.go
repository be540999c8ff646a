package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tomatodo/internal/config"
	"tomatodo/internal/entity"
	"tomatodo/internal/model"
	modelsql "tomatodo/internal/model/sql"
	"tomatodo/internal/wechat"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeExchanger replaces the WeChat API in tests.
type fakeExchanger struct {
	session *wechat.Session
	err     error
	calls   int
}

func (f *fakeExchanger) ExchangeCode(ctx context.Context, code string) (*wechat.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type testEnv struct {
	handler *HTTPHandler
	router  *gin.Engine
	repo    model.Repository
	wx      *fakeExchanger
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&entity.DbUser{}, &entity.DbTodo{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	repo := modelsql.NewGormRepository(db)
	wx := &fakeExchanger{}

	cfg := config.Config{
		JWTSecret:            "test-secret",
		JWTIssuer:            "tomatodo-test",
		JWTExpirationMinutes: 60,
	}
	handler, err := NewHTTPHandler(cfg, repo, wx)
	if err != nil {
		t.Fatalf("failed to create http handler: %v", err)
	}

	router := gin.New()
	apiGroup := router.Group("/api")
	apiGroup.POST("/login", handler.Login)
	apiGroup.POST("/register", handler.Register)
	apiGroup.POST("/wechat/login", handler.WechatLogin)
	apiGroup.POST("/todos/wechat", handler.SyncWechatTodo)

	protected := apiGroup.Group("")
	protected.Use(handler.AuthMiddleware())
	protected.GET("/verify-token", handler.VerifyToken)
	protected.POST("/refresh-token", handler.RefreshToken)
	protected.POST("/logout", handler.Logout)
	protected.POST("/bind-wechat", handler.BindWechat)
	protected.GET("/todos", handler.ListTodos)
	protected.POST("/todos", handler.CreateTodo)
	protected.GET("/todos/categories", handler.ListCategories)
	protected.GET("/todos/export", handler.ExportTodos)
	protected.POST("/todos/batch", handler.BatchUpdateTodos)
	protected.POST("/todos/reset", handler.ResetTodos)
	protected.GET("/todos/:id", handler.GetTodo)
	protected.PUT("/todos/:id", handler.UpdateTodo)
	protected.DELETE("/todos/:id", handler.DeleteTodo)

	admin := protected.Group("/admin")
	admin.Use(handler.RequireAdmin())
	admin.GET("/users", handler.ListUsers)
	admin.GET("/stats", handler.GetStats)

	return &testEnv{handler: handler, router: router, repo: repo, wx: wx}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Disposition") == "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

// register creates an account through the public endpoint and returns the
// issued token plus user payload.
func (e *testEnv) register(t *testing.T, username string) (string, entity.UserSummary) {
	t.Helper()

	w, env := e.do(t, http.MethodPost, "/api/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret-pass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("registration of %s failed with status %d: %s", username, w.Code, w.Body.String())
	}

	var resp entity.AuthResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("failed to decode auth response: %v", err)
	}
	return resp.Token, resp.User
}
