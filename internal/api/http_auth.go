package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"tomatodo/internal/auth"
	"tomatodo/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Login 用户名密码登录
func (h *HTTPHandler) Login(c *gin.Context) {
	var req entity.AuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ValidationFailed(c, err)
		return
	}

	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		BadRequest(c, "用户名和密码不能为空")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithError(err).WithField("username", username).Error("failed to load user for login")
			InternalError(c, "登录失败")
			return
		}
		// 用户不存在与密码错误返回同一消息
		Unauthorized(c, "用户名或密码错误")
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		logrus.WithField("username", username).Warn("password verification failed")
		Unauthorized(c, "用户名或密码错误")
		return
	}

	if err := h.touchLastLogin(ctx, user); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to update last login")
		InternalError(c, "登录失败")
		return
	}

	token, expiresAt, err := h.authManager.GenerateToken(user)
	if err != nil {
		logrus.WithError(err).Error("failed to generate token")
		InternalError(c, "创建会话失败")
		return
	}

	Success(c, entity.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      makeUserSummary(user),
	}, "登录成功")
}

// Register 用户注册
func (h *HTTPHandler) Register(c *gin.Context) {
	var req entity.AuthRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ValidationFailed(c, err)
		return
	}

	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)
	openid := strings.TrimSpace(req.OpenID)

	// 长度约束按去除首尾空白后的值检查，空白字符不能凑长度
	if utf8.RuneCountInString(username) < 3 {
		BadRequest(c, "用户名长度不能小于 3 个字符")
		return
	}
	if utf8.RuneCountInString(password) < 6 {
		BadRequest(c, "密码长度不能小于 6 个字符")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	// 冲突检查先于任何写入
	if _, err := h.repo.GetUserByUsername(ctx, username); err == nil {
		Conflict(c, "用户名已存在")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithError(err).Error("failed to check username during registration")
		InternalError(c, "注册失败")
		return
	}

	if _, err := h.repo.GetUserByEmail(ctx, email); err == nil {
		Conflict(c, "邮箱已被使用")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithError(err).Error("failed to check email during registration")
		InternalError(c, "注册失败")
		return
	}

	if openid != "" {
		if _, err := h.repo.GetUserByOpenID(ctx, openid); err == nil {
			Conflict(c, "该微信账号已绑定其他用户")
			return
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithError(err).Error("failed to check openid during registration")
			InternalError(c, "注册失败")
			return
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		logrus.WithError(err).Error("failed to hash password")
		InternalError(c, "注册失败")
		return
	}

	now := time.Now().UTC()
	user := &entity.DbUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         entity.UserRoleUser,
		LastLogin:    &now,
	}
	if openid != "" {
		user.OpenID = &openid
	}

	if err := h.repo.CreateUser(ctx, user); err != nil {
		// 预检查与写入之间仍可能并发撞上唯一索引
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Conflict(c, "用户名、邮箱或微信账号已被使用")
			return
		}
		logrus.WithError(err).Error("failed to create user")
		InternalError(c, "注册失败")
		return
	}

	token, expiresAt, err := h.authManager.GenerateToken(user)
	if err != nil {
		logrus.WithError(err).Error("failed to generate token")
		InternalError(c, "创建会话失败")
		return
	}

	Success(c, entity.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      makeUserSummary(user),
	}, "注册成功")
}

// WechatLogin 微信小程序登录。
//
// 请求体提供 code 时先到微信 API 换取 openid；也接受已解析好的 openid。
// 同一 openid 重复调用不会产生第二个账户。
func (h *HTTPHandler) WechatLogin(c *gin.Context) {
	var req entity.AuthWechatLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ValidationFailed(c, err)
		return
	}

	openid := strings.TrimSpace(req.OpenID)
	code := strings.TrimSpace(req.Code)
	if openid == "" && code == "" {
		BadRequest(c, "缺少参数: code 或 openid")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if openid == "" {
		if h.wechatClient == nil {
			UpstreamError(c, "微信登录未配置")
			return
		}
		session, err := h.wechatClient.ExchangeCode(ctx, code)
		if err != nil {
			logrus.WithError(err).Warn("wechat code exchange failed")
			UpstreamError(c, "微信登录失败")
			return
		}
		openid = session.OpenID
	}

	user, err := h.repo.GetUserByOpenID(ctx, openid)
	switch {
	case err == nil:
		// 已注册：仅更新最后登录时间和资料字段
		updates := entity.UserUpdates{}
		now := time.Now().UTC()
		updates.LastLogin = &now
		if nickname := strings.TrimSpace(req.Nickname); nickname != "" {
			updates.Nickname = &nickname
		}
		if avatar := strings.TrimSpace(req.Avatar); avatar != "" {
			updates.Avatar = &avatar
		}
		if err := h.repo.UpdateUser(ctx, user.ID, updates); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Error("failed to update wechat user")
			InternalError(c, "登录失败")
			return
		}
		user.LastLogin = &now

	case errors.Is(err, gorm.ErrRecordNotFound):
		user, err = h.createWechatPlaceholder(ctx, openid, req.Nickname, req.Avatar)
		if err != nil {
			logrus.WithError(err).Error("failed to create wechat user")
			InternalError(c, "登录失败")
			return
		}

	default:
		logrus.WithError(err).Error("failed to load user by openid")
		InternalError(c, "登录失败")
		return
	}

	token, expiresAt, err := h.authManager.GenerateToken(user)
	if err != nil {
		logrus.WithError(err).Error("failed to generate token")
		InternalError(c, "创建会话失败")
		return
	}

	Success(c, entity.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      makeUserSummary(user),
	}, "微信登录成功")
}

// createWechatPlaceholder 为首次微信登录的 openid 创建占位账户。
// 用户名由 openid 前缀推导，撞名时追加时分秒后缀；密码为随机不可用值。
func (h *HTTPHandler) createWechatPlaceholder(ctx context.Context, openid, nickname, avatar string) (*entity.DbUser, error) {
	username := "wx_" + prefixOf(openid, 8)
	if _, err := h.repo.GetUserByUsername(ctx, username); err == nil {
		username = fmt.Sprintf("%s_%s", username, time.Now().Format("150405"))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := auth.PlaceholderPasswordHash()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &entity.DbUser{
		Username:     username,
		Email:        openid + "@wechat.local",
		OpenID:       &openid,
		PasswordHash: hash,
		Nickname:     strings.TrimSpace(nickname),
		Avatar:       strings.TrimSpace(avatar),
		Role:         entity.UserRoleUser,
		LastLogin:    &now,
	}

	if err := h.repo.CreateUser(ctx, user); err != nil {
		// 并发的首次登录可能已抢先建好同一 openid 的账户
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return h.repo.GetUserByOpenID(ctx, openid)
		}
		return nil, err
	}
	return user, nil
}

// BindWechat 将微信 openid 绑定到当前账户
func (h *HTTPHandler) BindWechat(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "需要登录")
		return
	}

	var req entity.AuthBindWechatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ValidationFailed(c, err)
		return
	}
	openid := strings.TrimSpace(req.OpenID)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	existing, err := h.repo.GetUserByOpenID(ctx, openid)
	if err == nil {
		if existing.ID != requestUser.ID {
			Conflict(c, "该微信账号已绑定其他用户")
			return
		}
		// 重复绑定自己的 openid 视为成功
		Success(c, makeUserSummary(existing), "微信账号绑定成功")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithError(err).Error("failed to check openid for binding")
		InternalError(c, "绑定失败")
		return
	}

	if err := h.repo.UpdateUser(ctx, requestUser.ID, entity.UserUpdates{OpenID: &openid}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			Conflict(c, "该微信账号已绑定其他用户")
			return
		}
		logrus.WithError(err).WithField("user_id", requestUser.ID).Error("failed to bind openid")
		InternalError(c, "绑定失败")
		return
	}

	user, err := h.repo.GetUserByID(ctx, requestUser.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", requestUser.ID).Error("failed to reload user after binding")
		InternalError(c, "绑定失败")
		return
	}

	Success(c, makeUserSummary(user), "微信账号绑定成功")
}

// VerifyToken 验证令牌有效性并返回当前用户
func (h *HTTPHandler) VerifyToken(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "需要登录")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.repo.GetUserByID(ctx, requestUser.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			Unauthorized(c, "用户不存在或已被删除")
			return
		}
		logrus.WithError(err).WithField("user_id", requestUser.ID).Error("failed to load user profile")
		InternalError(c, "获取用户信息失败")
		return
	}

	Success(c, gin.H{"user": makeUserSummary(user)}, "令牌有效")
}

// RefreshToken 重新签发同一 subject 的令牌。
// 仅凭有效令牌即可续期，不再校验凭据。
func (h *HTTPHandler) RefreshToken(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "需要登录")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.repo.GetUserByID(ctx, requestUser.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			Unauthorized(c, "用户不存在或已被删除")
			return
		}
		logrus.WithError(err).WithField("user_id", requestUser.ID).Error("failed to load user for refresh")
		InternalError(c, "刷新令牌失败")
		return
	}

	token, expiresAt, err := h.authManager.RefreshToken(user)
	if err != nil {
		logrus.WithError(err).Error("failed to refresh token")
		InternalError(c, "刷新令牌失败")
		return
	}

	Success(c, entity.TokenResponse{Token: token, ExpiresAt: expiresAt}, "令牌已刷新")
}

// Logout 登出。JWT 无状态，服务端无事可做，客户端丢弃令牌即可。
func (h *HTTPHandler) Logout(c *gin.Context) {
	Success(c, nil, "登出成功")
}

func (h *HTTPHandler) touchLastLogin(ctx context.Context, user *entity.DbUser) error {
	now := time.Now().UTC()
	if err := h.repo.UpdateUser(ctx, user.ID, entity.UserUpdates{LastLogin: &now}); err != nil {
		return err
	}
	user.LastLogin = &now
	return nil
}

func makeUserSummary(user *entity.DbUser) entity.UserSummary {
	if user == nil {
		return entity.UserSummary{}
	}
	summary := entity.UserSummary{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Nickname:  user.Nickname,
		Avatar:    user.Avatar,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		LastLogin: user.LastLogin,
	}
	if user.OpenID != nil {
		summary.OpenID = *user.OpenID
	}
	return summary
}

func prefixOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
