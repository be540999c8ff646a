package api

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"tomatodo/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ListTodos 获取当前用户的待办事项，支持按完成状态、分类、重要性过滤
func (h *HTTPHandler) ListTodos(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "需要登录")
		return
	}

	params, err := parseTodoQuery(c, requestUser.ID)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	todos, err := h.repo.ListTodos(ctx, params)
	if err != nil {
		logrus.WithError(err).Error("failed to list todos")
		InternalError(c, "获取待办事项失败")
		return
	}
	if todos == nil {
		todos = []entity.DbTodo{}
	}

	Success(c, todos, "获取待办事项成功")
}

// GetTodo 获取单个待办详情
func (h *HTTPHandler) GetTodo(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "需要登录")
		return
	}

	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的待办 ID")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	todo, err := h.repo.GetTodo(ctx, id, requestUser.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "待办事项不存在")
			return
		}
		logrus.WithError(err).WithField("todo_id", id).Error("failed to load todo")
		InternalError(c, "获取待办事项失败")
		return
	}

	Success(c, todo, "获取待办事项详情成功")
}

// CreateTodo 创建新的待办事项
func (h *HTTPHandler) CreateTodo(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "需要登录")
		return
	}

	var req entity.TodoCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ValidationFailed(c, err)
		return
	}

	importance := entity.TodoImportanceDefault
	if req.Importance != nil {
		importance = *req.Importance
	}

	todo := &entity.DbTodo{
		UserID:      requestUser.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Completed:   req.Completed,
		Importance:  importance,
		Category:    strings.TrimSpace(req.Category),
		Deadline:    req.Deadline,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repo.CreateTodo(ctx, todo); err != nil {
		logrus.WithError(err).Error("failed to create todo")
		InternalError(c, "添加待办事项失败")
		return
	}

	Success(c, todo, "创建待办事项成功")
}

// UpdateTodo 更新待办事项，仅覆盖请求体中出现的字段
func (h *HTTPHandler) UpdateTodo(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "需要登录")
		return
	}

	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的待办 ID")
		return
	}

	var req entity.TodoUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ValidationFailed(c, err)
		return
	}

	updates := entity.TodoUpdates{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		Importance:  req.Importance,
		Category:    req.Category,
		Deadline:    req.Deadline,
		TomatoCount: req.TomatoCount,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repo.UpdateTodo(ctx, id, requestUser.ID, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "待办事项不存在")
			return
		}
		logrus.WithError(err).WithField("todo_id", id).Error("failed to update todo")
		InternalError(c, "更新待办事项失败")
		return
	}

	todo, err := h.repo.GetTodo(ctx, id, requestUser.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "待办事项不存在")
			return
		}
		logrus.WithError(err).WithField("todo_id", id).Error("failed to reload todo")
		InternalError(c, "更新待办事项失败")
		return
	}

	Success(c, todo, "更新待办事项成功")
}

// DeleteTodo 删除待办事项
func (h *HTTPHandler) DeleteTodo(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "需要登录")
		return
	}

	id, err := parseIDParam(c)
	if err != nil {
		BadRequest(c, "无效的待办 ID")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repo.DeleteTodo(ctx, id, requestUser.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "待办事项不存在")
			return
		}
		logrus.WithError(err).WithField("todo_id", id).Error("failed to delete todo")
		InternalError(c, "删除待办事项失败")
		return
	}

	Success(c, nil, "删除待办事项成功")
}

// BatchUpdateTodos 批量设置完成状态。
// 不属于当前用户或不存在的 ID 会被静默忽略，不报部分失败。
func (h *HTTPHandler) BatchUpdateTodos(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "需要登录")
		return
	}

	var req entity.TodoBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ValidationFailed(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	updated, err := h.repo.BatchSetCompleted(ctx, requestUser.ID, req.TodoIDs, *req.Completed)
	if err != nil {
		logrus.WithError(err).Error("failed to batch update todos")
		InternalError(c, "批量更新失败")
		return
	}
	logrus.WithFields(logrus.Fields{
		"user_id": requestUser.ID,
		"updated": updated,
	}).Info("todos_batch_updated")

	Success(c, nil, "批量更新成功")
}

// ListCategories 获取当前用户的分类列表
func (h *HTTPHandler) ListCategories(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "需要登录")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	categories, err := h.repo.ListCategories(ctx, requestUser.ID)
	if err != nil {
		logrus.WithError(err).Error("failed to list categories")
		InternalError(c, "获取分类列表失败")
		return
	}
	if categories == nil {
		categories = []string{}
	}

	Success(c, categories, "获取分类列表成功")
}

// ResetTodos 手动重置当前用户的待办状态，与每日重置任务执行相同的两条语句
func (h *HTTPHandler) ResetTodos(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "需要登录")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	userID := requestUser.ID
	resetCompleted, resetCounters, err := h.repo.ResetTodos(ctx, &userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("failed to reset todos")
		InternalError(c, "重置待办事项状态失败")
		return
	}
	logrus.WithFields(logrus.Fields{
		"user_id":         userID,
		"reset_completed": resetCompleted,
		"reset_counters":  resetCounters,
	}).Info("todos_reset_manual")

	Success(c, nil, "待办事项状态已重置")
}

// SyncWechatTodo 按外部镜像 ID 同步小程序端的待办记录。
//
// wx_id 是幂等键：已存在则只覆盖请求体中出现的字段，不存在则创建，
// 必要时同时为该 openid 创建占位用户。
func (h *HTTPHandler) SyncWechatTodo(c *gin.Context) {
	var req entity.TodoSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ValidationFailed(c, err)
		return
	}

	wxID := strings.TrimSpace(req.WxID)
	openid := strings.TrimSpace(req.OpenID)
	if wxID == "" || openid == "" {
		BadRequest(c, "参数错误，需要_id和_openid")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	user, err := h.repo.GetUserByOpenID(ctx, openid)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user, err = h.createWechatPlaceholder(ctx, openid, "", "")
	}
	if err != nil {
		logrus.WithError(err).Error("failed to resolve sync user")
		InternalError(c, "同步待办事项失败")
		return
	}

	existing, err := h.repo.GetTodoByWxID(ctx, wxID)
	switch {
	case err == nil:
		updates := entity.TodoUpdates{
			Title:       req.Title,
			Description: req.Description,
			Completed:   req.Completed,
			Importance:  req.Importance,
			Category:    req.Category,
			Deadline:    req.Deadline,
		}
		if err := h.repo.UpdateTodo(ctx, existing.ID, existing.UserID, updates); err != nil {
			logrus.WithError(err).WithField("wx_id", wxID).Error("failed to update synced todo")
			InternalError(c, "同步待办事项失败")
			return
		}
		todo, err := h.repo.GetTodo(ctx, existing.ID, existing.UserID)
		if err != nil {
			logrus.WithError(err).WithField("wx_id", wxID).Error("failed to reload synced todo")
			InternalError(c, "同步待办事项失败")
			return
		}
		Success(c, todo, "同步待办事项成功")

	case errors.Is(err, gorm.ErrRecordNotFound):
		todo := &entity.DbTodo{
			WxID:       &wxID,
			UserID:     user.ID,
			Title:      "无标题",
			Importance: entity.TodoImportanceDefault,
		}
		if req.Title != nil {
			todo.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			todo.Description = *req.Description
		}
		if req.Completed != nil {
			todo.Completed = *req.Completed
		}
		if req.Importance != nil {
			todo.Importance = *req.Importance
		}
		if req.Category != nil {
			todo.Category = strings.TrimSpace(*req.Category)
		}
		todo.Deadline = req.Deadline

		if err := h.repo.CreateTodo(ctx, todo); err != nil {
			// 两个并发同步请求可能同时创建同一 wx_id
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				if todoAgain, errAgain := h.repo.GetTodoByWxID(ctx, wxID); errAgain == nil {
					Success(c, todoAgain, "同步待办事项成功")
					return
				}
			}
			logrus.WithError(err).WithField("wx_id", wxID).Error("failed to create synced todo")
			InternalError(c, "同步待办事项失败")
			return
		}
		Success(c, todo, "同步待办事项成功")

	default:
		logrus.WithError(err).WithField("wx_id", wxID).Error("failed to look up synced todo")
		InternalError(c, "同步待办事项失败")
	}
}

func parseIDParam(c *gin.Context) (uint, error) {
	raw := strings.TrimSpace(c.Param("id"))
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(parsed), nil
}

func parseTodoQuery(c *gin.Context, userID uint) (*entity.TodoQuery, error) {
	params := &entity.TodoQuery{UserID: userID}

	if raw := strings.TrimSpace(c.Query("completed")); raw != "" {
		completed, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return nil, errors.New("completed 参数必须是布尔值")
		}
		params.Completed = &completed
	}
	params.Category = strings.TrimSpace(c.Query("category"))
	if raw := strings.TrimSpace(c.Query("importance")); raw != "" {
		importance, err := strconv.Atoi(raw)
		if err != nil || importance < entity.TodoImportanceMin || importance > entity.TodoImportanceMax {
			return nil, errors.New("importance 参数必须是 1-5 的整数")
		}
		params.Importance = &importance
	}

	return params, nil
}
