package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"tomatodo/internal/api"
	"tomatodo/internal/config"
	"tomatodo/internal/model"
	"tomatodo/internal/scheduler"
	"tomatodo/internal/wechat"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return
	}

	// 初始化logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise repository")
		return
	}

	wechatClient := wechat.NewClient(cfg.WechatAppID, cfg.WechatSecret, cfg.WechatAPIBase,
		time.Duration(cfg.WechatTimeoutMS)*time.Millisecond)

	httpHandler, err := api.NewHTTPHandler(cfg, repo, wechatClient)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise http handler")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 每日重置任务独立于请求处理运行
	if cfg.ResetEnable {
		resetJob := scheduler.NewDailyReset(repo, cfg.ResetHour, cfg.ResetMinute)
		go resetJob.Run(ctx)
	}

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// 添加中间件
	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	apiGroup := r.Group("/api")

	// 无需认证的入口
	apiGroup.POST("/login", httpHandler.Login)
	apiGroup.POST("/register", httpHandler.Register)
	apiGroup.POST("/wechat/login", httpHandler.WechatLogin)
	apiGroup.POST("/todos/wechat", httpHandler.SyncWechatTodo)

	protected := apiGroup.Group("")
	protected.Use(httpHandler.AuthMiddleware())
	protected.GET("/verify-token", httpHandler.VerifyToken)
	protected.POST("/refresh-token", httpHandler.RefreshToken)
	protected.POST("/logout", httpHandler.Logout)
	protected.POST("/bind-wechat", httpHandler.BindWechat)

	protected.GET("/todos", httpHandler.ListTodos)
	protected.POST("/todos", httpHandler.CreateTodo)
	protected.GET("/todos/categories", httpHandler.ListCategories)
	protected.GET("/todos/export", httpHandler.ExportTodos)
	protected.POST("/todos/batch", httpHandler.BatchUpdateTodos)
	protected.POST("/todos/reset", httpHandler.ResetTodos)
	protected.GET("/todos/:id", httpHandler.GetTodo)
	protected.PUT("/todos/:id", httpHandler.UpdateTodo)
	protected.DELETE("/todos/:id", httpHandler.DeleteTodo)

	admin := protected.Group("/admin")
	admin.Use(httpHandler.RequireAdmin())
	admin.GET("/users", httpHandler.ListUsers)
	admin.GET("/stats", httpHandler.GetStats)

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	logrus.WithField("host", serverHost).Info("服务器启动")
	// 创建HTTP服务器
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  300 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("服务器关闭失败")
		}
	}()

	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logrus.WithError(err).Error("服务器启动失败")
	}
}

// CORSMiddleware CORS跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// 处理请求
		c.Next()
		// 记录请求结束
		duration := time.Since(start)
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
