package sql

import (
	"context"
	"errors"
	"testing"

	"tomatodo/internal/entity"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *GormRepository {
	repo, _ := newTestRepoDB(t)
	return repo
}

func newTestRepoDB(t *testing.T) (*GormRepository, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	// 内存库绑定在单个连接上
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&entity.DbUser{}, &entity.DbTodo{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return NewGormRepository(db), db
}

func seedUser(t *testing.T, repo *GormRepository, username string) *entity.DbUser {
	t.Helper()
	user := &entity.DbUser{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         entity.UserRoleUser,
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user %s: %v", username, err)
	}
	return user
}

func seedTodo(t *testing.T, repo *GormRepository, userID uint, title string, completed bool, tomatoCount int) *entity.DbTodo {
	t.Helper()
	todo := &entity.DbTodo{
		UserID:      userID,
		Title:       title,
		Completed:   completed,
		Importance:  entity.TodoImportanceDefault,
		TomatoCount: tomatoCount,
	}
	if err := repo.CreateTodo(context.Background(), todo); err != nil {
		t.Fatalf("failed to seed todo %s: %v", title, err)
	}
	return todo
}

func TestListTodosScopedToOwner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	seedTodo(t, repo, alice.ID, "alice-1", false, 0)
	seedTodo(t, repo, alice.ID, "alice-2", true, 2)
	seedTodo(t, repo, bob.ID, "bob-1", false, 0)

	todos, err := repo.ListTodos(ctx, &entity.TodoQuery{UserID: alice.ID})
	if err != nil {
		t.Fatalf("unexpected error listing todos: %v", err)
	}
	if len(todos) != 2 {
		t.Fatalf("expected 2 todos for alice, got %d", len(todos))
	}
	for _, todo := range todos {
		if todo.UserID != alice.ID {
			t.Fatalf("todo %d belongs to user %d, not alice", todo.ID, todo.UserID)
		}
	}
}

func TestListTodosFiltersCombineWithAnd(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice := seedUser(t, repo, "alice")
	work := seedTodo(t, repo, alice.ID, "done work", true, 0)
	work.Category = "work"
	if err := repo.UpdateTodo(ctx, work.ID, alice.ID, entity.TodoUpdates{Category: &work.Category}); err != nil {
		t.Fatalf("failed to set category: %v", err)
	}
	seedTodo(t, repo, alice.ID, "open work", false, 0)
	seedTodo(t, repo, alice.ID, "done other", true, 0)

	completed := true
	todos, err := repo.ListTodos(ctx, &entity.TodoQuery{
		UserID:    alice.ID,
		Completed: &completed,
		Category:  "work",
	})
	if err != nil {
		t.Fatalf("unexpected error listing todos: %v", err)
	}
	if len(todos) != 1 || todos[0].ID != work.ID {
		t.Fatalf("expected only the completed work todo, got %d rows", len(todos))
	}
}

func TestGetTodoInvisibleAcrossUsers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	todo := seedTodo(t, repo, alice.ID, "private", false, 0)

	if _, err := repo.GetTodo(ctx, todo.ID, bob.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found for foreign todo, got %v", err)
	}
}

func TestBatchSetCompletedIgnoresForeignIDs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	mine := seedTodo(t, repo, alice.ID, "mine", false, 0)
	theirs := seedTodo(t, repo, bob.ID, "theirs", false, 0)

	updated, err := repo.BatchSetCompleted(ctx, alice.ID, []uint{mine.ID, theirs.ID, 9999}, true)
	if err != nil {
		t.Fatalf("unexpected error batch updating: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected exactly 1 row updated, got %d", updated)
	}

	reloaded, err := repo.GetTodo(ctx, theirs.ID, bob.ID)
	if err != nil {
		t.Fatalf("failed to reload bob's todo: %v", err)
	}
	if reloaded.Completed {
		t.Fatal("bob's todo must not be touched by alice's batch update")
	}
}

func TestUpdateTodoPartialFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice := seedUser(t, repo, "alice")
	todo := seedTodo(t, repo, alice.ID, "original", false, 0)
	desc := "keep me"
	if err := repo.UpdateTodo(ctx, todo.ID, alice.ID, entity.TodoUpdates{Description: &desc}); err != nil {
		t.Fatalf("failed to set description: %v", err)
	}

	title := "renamed"
	if err := repo.UpdateTodo(ctx, todo.ID, alice.ID, entity.TodoUpdates{Title: &title}); err != nil {
		t.Fatalf("failed to rename todo: %v", err)
	}

	reloaded, err := repo.GetTodo(ctx, todo.ID, alice.ID)
	if err != nil {
		t.Fatalf("failed to reload todo: %v", err)
	}
	if reloaded.Title != "renamed" {
		t.Fatalf("expected renamed title, got %q", reloaded.Title)
	}
	if reloaded.Description != "keep me" {
		t.Fatalf("expected description untouched, got %q", reloaded.Description)
	}
}

func TestUpdateTodoEmptyUpdates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	todo := seedTodo(t, repo, alice.ID, "untouched", false, 0)

	// 空更新对存在的行是无操作
	if err := repo.UpdateTodo(ctx, todo.ID, alice.ID, entity.TodoUpdates{}); err != nil {
		t.Fatalf("empty update on an existing todo should succeed: %v", err)
	}

	// 对不存在或不属于自己的行仍要报 record-not-found
	if err := repo.UpdateTodo(ctx, 9999, alice.ID, entity.TodoUpdates{}); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found for a missing todo, got %v", err)
	}
	if err := repo.UpdateTodo(ctx, todo.ID, bob.ID, entity.TodoUpdates{}); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found for a foreign todo, got %v", err)
	}
}

func TestResetTodosGlobalAndIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	seedTodo(t, repo, alice.ID, "a-done", true, 3)
	seedTodo(t, repo, alice.ID, "a-open", false, 1)
	seedTodo(t, repo, bob.ID, "b-done", true, 0)

	resetCompleted, resetCounters, err := repo.ResetTodos(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error on first reset: %v", err)
	}
	if resetCompleted != 2 {
		t.Fatalf("expected 2 completed rows cleared, got %d", resetCompleted)
	}
	if resetCounters != 2 {
		t.Fatalf("expected 2 counters cleared, got %d", resetCounters)
	}

	// 再跑一遍必须是无操作
	resetCompleted, resetCounters, err = repo.ResetTodos(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error on second reset: %v", err)
	}
	if resetCompleted != 0 || resetCounters != 0 {
		t.Fatalf("expected second reset to be a no-op, got %d/%d", resetCompleted, resetCounters)
	}

	for _, user := range []*entity.DbUser{alice, bob} {
		todos, err := repo.ListTodos(ctx, &entity.TodoQuery{UserID: user.ID})
		if err != nil {
			t.Fatalf("failed to list todos: %v", err)
		}
		for _, todo := range todos {
			if todo.Completed {
				t.Fatalf("todo %d still completed after reset", todo.ID)
			}
			if todo.TomatoCount != 0 {
				t.Fatalf("todo %d still has tomato count %d", todo.ID, todo.TomatoCount)
			}
		}
	}
}

func TestResetTodosUserScoped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice := seedUser(t, repo, "alice")
	bob := seedUser(t, repo, "bob")
	seedTodo(t, repo, alice.ID, "a-done", true, 2)
	bobTodo := seedTodo(t, repo, bob.ID, "b-done", true, 2)

	resetCompleted, _, err := repo.ResetTodos(ctx, &alice.ID)
	if err != nil {
		t.Fatalf("unexpected error resetting alice: %v", err)
	}
	if resetCompleted != 1 {
		t.Fatalf("expected 1 row cleared for alice, got %d", resetCompleted)
	}

	reloaded, err := repo.GetTodo(ctx, bobTodo.ID, bob.ID)
	if err != nil {
		t.Fatalf("failed to reload bob's todo: %v", err)
	}
	if !reloaded.Completed || reloaded.TomatoCount != 2 {
		t.Fatal("bob's rows must not be touched by alice's reset")
	}
}

func TestResetTodosRollsBackOnFailure(t *testing.T) {
	repo, db := newTestRepoDB(t)
	ctx := context.Background()

	alice := seedUser(t, repo, "alice")
	seedTodo(t, repo, alice.ID, "done-1", true, 3)
	seedTodo(t, repo, alice.ID, "done-2", true, 0)

	// 让第二条语句失效：第一条清掉 completed 后事务必须整体回滚
	if err := db.Exec("ALTER TABLE todos RENAME COLUMN tomato_count TO tomato_count_bak").Error; err != nil {
		t.Fatalf("failed to break the counter column: %v", err)
	}

	if _, _, err := repo.ResetTodos(ctx, nil); err == nil {
		t.Fatal("expected the sweep to fail with a broken counter column")
	}

	var stillCompleted int64
	if err := db.Model(&entity.DbTodo{}).Where("completed = ?", true).Count(&stillCompleted).Error; err != nil {
		t.Fatalf("failed to count completed rows: %v", err)
	}
	if stillCompleted != 2 {
		t.Fatalf("completed flags must survive the rollback, got %d rows", stillCompleted)
	}
}

func TestListCategoriesDistinctNonEmpty(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice := seedUser(t, repo, "alice")
	for _, category := range []string{"work", "work", "home", ""} {
		todo := seedTodo(t, repo, alice.ID, "t-"+category, false, 0)
		if category != "" {
			if err := repo.UpdateTodo(ctx, todo.ID, alice.ID, entity.TodoUpdates{Category: &category}); err != nil {
				t.Fatalf("failed to set category: %v", err)
			}
		}
	}

	categories, err := repo.ListCategories(ctx, alice.ID)
	if err != nil {
		t.Fatalf("unexpected error listing categories: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("expected 2 distinct categories, got %v", categories)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedUser(t, repo, "alice")
	dup := &entity.DbUser{
		Username:     "alice",
		Email:        "other@example.com",
		PasswordHash: "x",
		Role:         entity.UserRoleUser,
	}
	err := repo.CreateUser(ctx, dup)
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated-key error, got %v", err)
	}
}
