package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/assetops/assetcore/internal/models"
	"github.com/assetops/assetcore/internal/types"
	"gorm.io/gorm"
)

// SetSetting upserts a configuration key. Lifecycle events are bound to
// flows through keys such as "device_delete_flow_id".
func SetSetting(db *gorm.DB, key, value string) (*models.Setting, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("setting key is required")
	}

	// Map Assign so an empty value still overwrites; clearing a key, e.g.
	// detaching an event from its flow, must stick.
	setting := models.Setting{Key: key}
	err := db.Where("key = ?", key).
		Assign(map[string]interface{}{"value": value}).
		FirstOrCreate(&setting).Error
	if err != nil {
		return nil, fmt.Errorf("failed to set %q: %w", key, err)
	}

	return &setting, nil
}

// GetSetting returns the value for key; found is false when unset.
func GetSetting(db *gorm.DB, key string) (string, bool, error) {
	var setting models.Setting
	err := db.Where("key = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return setting.Value, true, nil
}

// FlowIDForEvent resolves the flow bound to a lifecycle event key.
// Returns FlowNotBound when the event has no flow configured; callers are
// expected to fall back to force completion in that case.
func FlowIDForEvent(db *gorm.DB, eventKey string) (uint64, error) {
	value, found, err := GetSetting(db, eventKey)
	if err != nil {
		return 0, err
	}
	if !found || strings.TrimSpace(value) == "" {
		return 0, fmt.Errorf("%w: %s", types.ErrFlowNotBound, eventKey)
	}

	flowID, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s holds %q, not a flow id", types.ErrFlowNotBound, eventKey, value)
	}
	return flowID, nil
}
