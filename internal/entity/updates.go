package entity

import "time"

// UserUpdates 用户更新字段
type UserUpdates struct {
	Nickname  *string
	Avatar    *string
	OpenID    *string
	LastLogin *time.Time
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u UserUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Nickname != nil {
		updates["nickname"] = *u.Nickname
	}
	if u.Avatar != nil {
		updates["avatar"] = *u.Avatar
	}
	if u.OpenID != nil {
		updates["openid"] = *u.OpenID
	}
	if u.LastLogin != nil {
		updates["last_login"] = *u.LastLogin
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u UserUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// TodoUpdates 待办更新字段
type TodoUpdates struct {
	Title       *string
	Description *string
	Completed   *bool
	Importance  *int
	Category    *string
	Deadline    *time.Time
	TomatoCount *int
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u TodoUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Title != nil {
		updates["title"] = *u.Title
	}
	if u.Description != nil {
		updates["description"] = *u.Description
	}
	if u.Completed != nil {
		updates["completed"] = *u.Completed
	}
	if u.Importance != nil {
		updates["importance"] = *u.Importance
	}
	if u.Category != nil {
		updates["category"] = *u.Category
	}
	if u.Deadline != nil {
		updates["deadline"] = *u.Deadline
	}
	if u.TomatoCount != nil {
		updates["tomato_count"] = *u.TomatoCount
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u TodoUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}
