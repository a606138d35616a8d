package models

import (
	"time"
)

// Track sources. Auto tracks come out of the allocator's counter; manual
// tracks record externally supplied numbers for collision detection.
const (
	TrackSourceAuto   = "auto"
	TrackSourceManual = "manual"
)

// AssetNumberRule is a named template plus metadata for generating asset numbers
type AssetNumberRule struct {
	RuleID              uint64    `gorm:"primaryKey;autoIncrement" json:"rule_id"`
	Name                string    `gorm:"size:255;not null" json:"name"`
	Formula             string    `gorm:"size:255;not null" json:"formula"`
	AutoIncrementLength int       `gorm:"not null;default:5" json:"auto_increment_length"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// AssetNumberRuleBinding associates a target class (Device, Part, Software, ...)
// with at most one rule. IsAuto makes the rule apply to every new entity of the
// class without prompting.
type AssetNumberRuleBinding struct {
	BindingID   uint64    `gorm:"primaryKey;autoIncrement" json:"binding_id"`
	TargetClass string    `gorm:"size:255;not null;uniqueIndex" json:"target_class"`
	RuleID      uint64    `gorm:"not null" json:"rule_id"`
	IsAuto      bool      `gorm:"not null;default:false" json:"is_auto"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// references is explicit: both sides carry a RuleID field, and without
	// it GORM resolves this as a has-one with the foreign key on the rule.
	Rule *AssetNumberRule `gorm:"foreignKey:RuleID;references:RuleID" json:"rule,omitempty"`
}

// AssetNumberTrack is the immutable record of one allocated (or externally
// supplied) asset number. Rows are created exactly once per successful
// allocation and never deleted; the unique index on GeneratedNumber is the
// last line of defense against duplicate numbers.
type AssetNumberTrack struct {
	TrackID         string    `gorm:"type:char(36);primaryKey" json:"track_id"`
	GeneratedNumber string    `gorm:"size:255;not null;uniqueIndex" json:"generated_number"`
	RuleID          *uint64   `gorm:"index" json:"rule_id,omitempty"`
	ScopeKey        string    `gorm:"size:255;not null;index" json:"scope_key"`
	SequenceValue   uint64    `gorm:"not null;default:0" json:"sequence_value"`
	Source          string    `gorm:"size:16;not null;default:auto" json:"source"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName overrides the table name for AssetNumberRule
func (AssetNumberRule) TableName() string {
	return "asset_number_rules"
}

// TableName overrides the table name for AssetNumberRuleBinding
func (AssetNumberRuleBinding) TableName() string {
	return "asset_number_rule_bindings"
}

// TableName overrides the table name for AssetNumberTrack
func (AssetNumberTrack) TableName() string {
	return "asset_number_tracks"
}
