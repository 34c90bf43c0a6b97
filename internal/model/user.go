package model

import "time"

// Roles. The identity resolver rejects inactive accounts; role gating happens
// per route.
const (
	RoleUser        = "user"
	RoleDeviceAdmin = "device_admin"
	RoleSysAdmin    = "sys_admin"
)

type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	WxUserID     *string   `gorm:"size:128;uniqueIndex" json:"wx_userid"` // WeCom member; empty for local admins
	Username     *string   `gorm:"size:64;uniqueIndex" json:"username"`   // local admin login name
	PasswordHash *string   `gorm:"size:255" json:"-"`
	RealName     string    `gorm:"size:64;not null" json:"real_name"`
	Role         string    `gorm:"size:32;default:user" json:"role"`
	Dept         *string   `gorm:"size:128" json:"dept"`
	IsActive     bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool {
	return u.Role == RoleDeviceAdmin || u.Role == RoleSysAdmin
}
