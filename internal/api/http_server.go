package api

import (
	"time"

	"tomatodo/internal/auth"
	"tomatodo/internal/config"
	"tomatodo/internal/model"
	"tomatodo/internal/wechat"
)

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg          config.Config
	repo         model.Repository
	authManager  *auth.Manager
	wechatClient wechat.SessionExchanger
}

// NewHTTPHandler 创建 HTTP 处理器实例
func NewHTTPHandler(cfg config.Config, repo model.Repository, wx wechat.SessionExchanger) (*HTTPHandler, error) {
	expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
	if err != nil {
		return nil, err
	}

	return &HTTPHandler{
		cfg:          cfg,
		repo:         repo,
		authManager:  authManager,
		wechatClient: wx,
	}, nil
}
