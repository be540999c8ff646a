package model

import (
	"context"

	"tomatodo/internal/entity"
)

// Repository 定义数据库操作接口
type Repository interface {
	// 用户管理
	CreateUser(ctx context.Context, user *entity.DbUser) error
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	GetUserByUsername(ctx context.Context, username string) (*entity.DbUser, error)
	GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error)
	GetUserByOpenID(ctx context.Context, openid string) (*entity.DbUser, error)
	ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error)
	CountUsers(ctx context.Context) (int64, error)

	// 待办管理
	CreateTodo(ctx context.Context, todo *entity.DbTodo) error
	GetTodo(ctx context.Context, id uint, userID uint) (*entity.DbTodo, error)
	GetTodoByWxID(ctx context.Context, wxID string) (*entity.DbTodo, error)
	ListTodos(ctx context.Context, params *entity.TodoQuery) ([]entity.DbTodo, error)
	UpdateTodo(ctx context.Context, id uint, userID uint, updates entity.TodoUpdates) error
	DeleteTodo(ctx context.Context, id uint, userID uint) error
	BatchSetCompleted(ctx context.Context, userID uint, ids []uint, completed bool) (int64, error)
	ListCategories(ctx context.Context, userID uint) ([]string, error)

	// 每日重置：userID 为 nil 时对全表执行，否则仅限该用户
	ResetTodos(ctx context.Context, userID *uint) (resetCompleted int64, resetCounters int64, err error)
}
