package models

import (
	"time"
)

// Setting is a string key/value configuration row. Lifecycle events are
// bound to flows through settings keys such as "device_delete_flow_id".
type Setting struct {
	SettingID uint64    `gorm:"primaryKey;autoIncrement" json:"setting_id"`
	Key       string    `gorm:"size:255;not null;uniqueIndex" json:"key"`
	Value     string    `gorm:"size:1024;not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name for Setting
func (Setting) TableName() string {
	return "settings"
}
