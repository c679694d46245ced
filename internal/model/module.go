package model

import "time"

// Module groups tasks by area (project, category, etc.). Owned by one
// user; deletion is blocked while it still has tasks.
type Module struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index;index:idx_user_module_name,unique"`
	Name      string `gorm:"index:idx_user_module_name,unique"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
