package sql

import (
	"context"
	"fmt"
	"strings"

	"tomatodo/internal/entity"

	"gorm.io/gorm"
)

// CreateTodo persists a new todo record.
func (r *GormRepository) CreateTodo(ctx context.Context, todo *entity.DbTodo) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if todo == nil {
		return fmt.Errorf("todo is nil")
	}
	if todo.UserID == 0 {
		return fmt.Errorf("todo has no owner")
	}
	return r.db.WithContext(ctx).Create(todo).Error
}

// GetTodo loads a todo owned by the given user. Rows belonging to other
// users are indistinguishable from missing rows.
func (r *GormRepository) GetTodo(ctx context.Context, id uint, userID uint) (*entity.DbTodo, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 || userID == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var todo entity.DbTodo
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&todo).Error; err != nil {
		return nil, err
	}
	return &todo, nil
}

// GetTodoByWxID loads a todo by the external mirror id.
func (r *GormRepository) GetTodoByWxID(ctx context.Context, wxID string) (*entity.DbTodo, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	trimmed := strings.TrimSpace(wxID)
	if trimmed == "" {
		return nil, fmt.Errorf("wx_id is empty")
	}
	var todo entity.DbTodo
	if err := r.db.WithContext(ctx).Where("wx_id = ?", trimmed).First(&todo).Error; err != nil {
		return nil, err
	}
	return &todo, nil
}

// ListTodos returns the user's todos, newest first. Filters combine with AND.
func (r *GormRepository) ListTodos(ctx context.Context, params *entity.TodoQuery) ([]entity.DbTodo, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if params == nil || params.UserID == 0 {
		return nil, fmt.Errorf("todo query has no user scope")
	}

	query := r.db.WithContext(ctx).Model(&entity.DbTodo{}).Where("user_id = ?", params.UserID)
	if params.Completed != nil {
		query = query.Where("completed = ?", *params.Completed)
	}
	if trimmed := strings.TrimSpace(params.Category); trimmed != "" {
		query = query.Where("category = ?", trimmed)
	}
	if params.Importance != nil {
		query = query.Where("importance = ?", *params.Importance)
	}

	var todos []entity.DbTodo
	if err := query.Order("created_at DESC, id DESC").Find(&todos).Error; err != nil {
		return nil, err
	}
	return todos, nil
}

// UpdateTodo applies the present fields to a todo owned by the given user.
func (r *GormRepository) UpdateTodo(ctx context.Context, id uint, userID uint, updates entity.TodoUpdates) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if id == 0 || userID == 0 {
		return gorm.ErrRecordNotFound
	}
	if updates.IsEmpty() {
		// 空更新退化为存在性检查，错误语义与非空分支保持一致
		var count int64
		err := r.db.WithContext(ctx).Model(&entity.DbTodo{}).
			Where("id = ? AND user_id = ?", id, userID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}
	result := r.db.WithContext(ctx).Model(&entity.DbTodo{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates.ToMap())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteTodo removes a todo owned by the given user.
func (r *GormRepository) DeleteTodo(ctx context.Context, id uint, userID uint) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if id == 0 || userID == 0 {
		return gorm.ErrRecordNotFound
	}
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&entity.DbTodo{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// BatchSetCompleted flips the completion flag on the given ids in one
// statement. The ownership predicate silently drops ids that do not exist
// or belong to someone else.
func (r *GormRepository) BatchSetCompleted(ctx context.Context, userID uint, ids []uint, completed bool) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repository not initialised")
	}
	if userID == 0 || len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&entity.DbTodo{}).
		Where("id IN ? AND user_id = ?", ids, userID).
		Update("completed", completed)
	return result.RowsAffected, result.Error
}

// ListCategories returns the user's distinct non-empty categories.
func (r *GormRepository) ListCategories(ctx context.Context, userID uint) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if userID == 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	var categories []string
	err := r.db.WithContext(ctx).Model(&entity.DbTodo{}).
		Where("user_id = ? AND category IS NOT NULL AND category <> ''", userID).
		Distinct().
		Order("category").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// ResetTodos clears completion flags and tomato counters. With a nil userID
// it sweeps the whole table, otherwise only the given user's rows. Both
// statements run in one transaction so a partial reset is never visible.
func (r *GormRepository) ResetTodos(ctx context.Context, userID *uint) (int64, int64, error) {
	if r == nil || r.db == nil {
		return 0, 0, fmt.Errorf("repository not initialised")
	}

	var resetCompleted, resetCounters int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		completedQuery := tx.Model(&entity.DbTodo{}).Where("completed = ?", true)
		countersQuery := tx.Model(&entity.DbTodo{}).Where("tomato_count <> 0")
		if userID != nil {
			completedQuery = completedQuery.Where("user_id = ?", *userID)
			countersQuery = countersQuery.Where("user_id = ?", *userID)
		}

		result := completedQuery.Update("completed", false)
		if result.Error != nil {
			return result.Error
		}
		resetCompleted = result.RowsAffected

		result = countersQuery.Update("tomato_count", 0)
		if result.Error != nil {
			return result.Error
		}
		resetCounters = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return resetCompleted, resetCounters, nil
}
