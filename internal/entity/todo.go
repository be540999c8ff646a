package entity

import "time"

const (
	TodoImportanceMin     = 1
	TodoImportanceMax     = 5
	TodoImportanceDefault = 3
)

// DbTodo represents a persisted todo item.
type DbTodo struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time  `json:"create_time"`
	UpdatedAt   time.Time  `json:"update_time"`
	WxID        *string    `gorm:"column:wx_id;type:varchar(100);uniqueIndex" json:"_id,omitempty"`
	UserID      uint       `gorm:"column:user_id;index;not null" json:"user_id"`
	Title       string     `gorm:"column:title;type:varchar(100);not null" json:"title"`
	Description string     `gorm:"column:description;type:text" json:"description"`
	Completed   bool       `gorm:"column:completed;not null;default:false" json:"completed"`
	Importance  int        `gorm:"column:importance;not null;default:3" json:"importance"`
	Category    string     `gorm:"column:category;type:varchar(50)" json:"category"`
	Deadline    *time.Time `gorm:"column:deadline" json:"deadline,omitempty"`
	// 当日完成的番茄钟次数，每日重置任务清零
	TomatoCount int `gorm:"column:tomato_count;not null;default:0" json:"tomato_count"`
}

// TableName overrides default pluralised name.
func (DbTodo) TableName() string {
	return "todos"
}

type TodoCreateRequest struct {
	Title       string     `json:"title" binding:"required,min=1,max=100"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	Importance  *int       `json:"importance" binding:"omitempty,min=1,max=5"`
	Category    string     `json:"category"`
	Deadline    *time.Time `json:"deadline"`
}

// TodoUpdateRequest updates only the fields present in the payload.
type TodoUpdateRequest struct {
	Title       *string    `json:"title,omitempty" binding:"omitempty,min=1,max=100"`
	Description *string    `json:"description,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
	Importance  *int       `json:"importance,omitempty" binding:"omitempty,min=1,max=5"`
	Category    *string    `json:"category,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	TomatoCount *int       `json:"tomato_count,omitempty" binding:"omitempty,min=0"`
}

type TodoBatchRequest struct {
	TodoIDs   []uint `json:"todo_ids" binding:"required,min=1"`
	Completed *bool  `json:"completed" binding:"required"`
}

// TodoSyncRequest mirrors a record created by the mini-program client.
// WxID is the idempotency key for the upsert.
type TodoSyncRequest struct {
	WxID        string     `json:"_id" binding:"required"`
	OpenID      string     `json:"_openid" binding:"required"`
	Title       *string    `json:"title,omitempty" binding:"omitempty,min=1,max=100"`
	Description *string    `json:"description,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
	Importance  *int       `json:"importance,omitempty" binding:"omitempty,min=1,max=5"`
	Category    *string    `json:"category,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// TodoQuery filters the caller's todos; predicates combine with AND.
type TodoQuery struct {
	UserID     uint
	Completed  *bool
	Category   string
	Importance *int
}
