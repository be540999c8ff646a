package entity

import "time"

const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"
)

// DbUser represents a persisted user account.
//
// 外部身份二选一：用户名+密码，或微信 openid；两者也可以同时绑定在一行上。
type DbUser struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Username     string     `gorm:"column:username;type:varchar(50);uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"column:email;type:varchar(100);uniqueIndex;not null" json:"email"`
	OpenID       *string    `gorm:"column:openid;type:varchar(100);uniqueIndex" json:"openid,omitempty"`
	PasswordHash string     `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	Nickname     string     `gorm:"column:nickname;type:varchar(64)" json:"nickname"`
	Avatar       string     `gorm:"column:avatar;type:varchar(256)" json:"avatar"`
	Role         string     `gorm:"column:role;type:varchar(20);index;not null;default:user" json:"role"`
	LastLogin    *time.Time `gorm:"column:last_login" json:"last_login,omitempty"`
}

// TableName overrides default pluralised name.
func (DbUser) TableName() string {
	return "users"
}

// IsAdmin reports whether the account carries the admin role.
func (u *DbUser) IsAdmin() bool {
	return u != nil && u.Role == UserRoleAdmin
}

// UserSummary is a lightweight user description returned to clients.
type UserSummary struct {
	ID        uint       `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	OpenID    string     `json:"openid,omitempty"`
	Nickname  string     `json:"nickname,omitempty"`
	Avatar    string     `json:"avatar,omitempty"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// UserQuery supports listing users with pagination.
type UserQuery struct {
	BaseParams
	Role    string `json:"role" form:"role"`
	Keyword string `json:"keyword" form:"keyword"`
}

type AuthLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthRegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=50"`
	OpenID   string `json:"openid"`
}

// AuthWechatLoginRequest carries either a login code to exchange at the
// WeChat API, or an already resolved openid.
type AuthWechatLoginRequest struct {
	Code     string `json:"code"`
	OpenID   string `json:"openid"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

type AuthBindWechatRequest struct {
	OpenID string `json:"openid" binding:"required"`
}

type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UserListResponse struct {
	Users []UserSummary `json:"users"`
	Meta  *Meta         `json:"meta"`
}
