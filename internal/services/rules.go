package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/assetops/assetcore/internal/formula"
	"github.com/assetops/assetcore/internal/models"
	"github.com/assetops/assetcore/internal/types"
	"gorm.io/gorm"
)

// CreateRule validates and persists a numbering rule. The formula is
// checked here, at save time, so a bad template never reaches the
// allocator.
func CreateRule(db *gorm.DB, name, formulaStr string, autoIncrementLength int) (*models.AssetNumberRule, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("rule name is required")
	}
	if err := formula.Validate(formulaStr, autoIncrementLength); err != nil {
		return nil, err
	}

	rule := &models.AssetNumberRule{
		Name:                name,
		Formula:             formulaStr,
		AutoIncrementLength: autoIncrementLength,
	}
	if err := db.Create(rule).Error; err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	return rule, nil
}

// ListRules returns all numbering rules
func ListRules(db *gorm.DB) ([]models.AssetNumberRule, error) {
	var rules []models.AssetNumberRule
	if err := db.Order("rule_id ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// GetRule fetches one rule by id
func GetRule(db *gorm.DB, ruleID uint64) (*models.AssetNumberRule, error) {
	var rule models.AssetNumberRule
	err := db.Where("rule_id = ?", ruleID).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: rule %d", types.ErrRuleNotFound, ruleID)
		}
		return nil, err
	}
	return &rule, nil
}

// GetAutoRule returns the binding for targetClass with its rule preloaded,
// or nil when the class has no binding (manual numbering).
func GetAutoRule(db *gorm.DB, targetClass string) (*models.AssetNumberRuleBinding, error) {
	var binding models.AssetNumberRuleBinding
	err := db.Preload("Rule").Where("target_class = ?", targetClass).First(&binding).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &binding, nil
}

// SetAutoRule binds targetClass to ruleID, replacing any prior binding for
// the class. At most one binding per class exists at any time.
func SetAutoRule(db *gorm.DB, targetClass string, ruleID uint64, isAuto bool) (*models.AssetNumberRuleBinding, error) {
	if strings.TrimSpace(targetClass) == "" {
		return nil, fmt.Errorf("target class is required")
	}
	if _, err := GetRule(db, ruleID); err != nil {
		return nil, err
	}

	// Assign takes a map so zero values (is_auto false) overwrite the
	// prior binding; a struct Assign would skip them.
	binding := models.AssetNumberRuleBinding{TargetClass: targetClass}
	err := db.Where("target_class = ?", targetClass).
		Assign(map[string]interface{}{"rule_id": ruleID, "is_auto": isAuto}).
		FirstOrCreate(&binding).Error
	if err != nil {
		return nil, fmt.Errorf("failed to bind rule: %w", err)
	}

	return &binding, nil
}

// ResetAutoRule removes the binding for targetClass entirely. Subsequent
// allocations for the class are manual until a new rule is bound.
func ResetAutoRule(db *gorm.DB, targetClass string) error {
	return db.Where("target_class = ?", targetClass).
		Delete(&models.AssetNumberRuleBinding{}).Error
}
