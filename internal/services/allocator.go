package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/assetops/assetcore/internal/formula"
	"github.com/assetops/assetcore/internal/models"
	"github.com/assetops/assetcore/internal/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Per-scope-key mutexes serialize allocations inside this process. The
// unique index on generated_number still backstops races with other
// processes; a lost race there is retried below.
var (
	scopeLocksMu sync.Mutex
	scopeLocks   = make(map[string]*sync.Mutex)
)

func lockForScope(scopeKey string) *sync.Mutex {
	scopeLocksMu.Lock()
	defer scopeLocksMu.Unlock()
	mu, ok := scopeLocks[scopeKey]
	if !ok {
		mu = &sync.Mutex{}
		scopeLocks[scopeKey] = mu
	}
	return mu
}

// AllocateAssetNumber renders and persists the next asset number for the
// rule at asOf. The sequence advance and the track insert commit in one
// transaction; on a duplicate-number race the counter is re-read and the
// render retried up to retryLimit times before failing with
// AllocationConflict. Gaps from failed attempts are acceptable, duplicates
// are not.
func AllocateAssetNumber(db *gorm.DB, ruleID uint64, asOf time.Time, retryLimit int) (*models.AssetNumberTrack, error) {
	rule, err := GetRule(db, ruleID)
	if err != nil {
		return nil, err
	}

	scopeKey := fmt.Sprintf("rule%d:%s", rule.RuleID, formula.ScopeSuffix(rule.Formula, asOf))

	mu := lockForScope(scopeKey)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; attempt < retryLimit; attempt++ {
		track, err := tryAllocate(db, rule, scopeKey, asOf)
		if err == nil {
			return track, nil
		}
		if !isDuplicateKeyError(err) {
			return nil, err
		}
		// Lost the race to another writer; loop re-reads the counter.
	}

	return nil, fmt.Errorf("%w (scope %s, %d attempts)", types.ErrAllocationConflict, scopeKey, retryLimit)
}

// tryAllocate performs one atomic increment-and-persist attempt.
func tryAllocate(db *gorm.DB, rule *models.AssetNumberRule, scopeKey string, asOf time.Time) (*models.AssetNumberTrack, error) {
	var track *models.AssetNumberTrack

	err := db.Transaction(func(tx *gorm.DB) error {
		var current uint64
		if err := tx.Model(&models.AssetNumberTrack{}).
			Where("scope_key = ?", scopeKey).
			Select("COALESCE(MAX(sequence_value), 0)").
			Scan(&current).Error; err != nil {
			return err
		}

		next := current + 1
		generated, err := formula.Render(rule.Formula, asOf, next, rule.AutoIncrementLength)
		if err != nil {
			return err
		}

		track = &models.AssetNumberTrack{
			TrackID:         uuid.New().String(),
			GeneratedNumber: generated,
			RuleID:          &rule.RuleID,
			ScopeKey:        scopeKey,
			SequenceValue:   next,
			Source:          models.TrackSourceAuto,
		}
		return tx.Create(track).Error
	})
	if err != nil {
		return nil, err
	}

	return track, nil
}

// RecordManualNumber audits an externally supplied asset number so future
// auto-generated numbers can never collide with it. The uniqueness check
// applies to manual numbers too.
func RecordManualNumber(db *gorm.DB, number string) (*models.AssetNumberTrack, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, fmt.Errorf("asset number is required")
	}

	track := &models.AssetNumberTrack{
		TrackID:         uuid.New().String(),
		GeneratedNumber: number,
		ScopeKey:        "manual",
		Source:          models.TrackSourceManual,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.AssetNumberTrack{}).
			Where("generated_number = ?", number).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", types.ErrDuplicateNumber, number)
		}
		return tx.Create(track).Error
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s", types.ErrDuplicateNumber, number)
		}
		return nil, err
	}

	return track, nil
}

// ListTracks returns allocation records, newest first
func ListTracks(db *gorm.DB) ([]models.AssetNumberTrack, error) {
	var tracks []models.AssetNumberTrack
	if err := db.Order("created_at DESC").Find(&tracks).Error; err != nil {
		return nil, err
	}
	return tracks, nil
}

// isDuplicateKeyError detects unique-constraint violations across drivers.
// GORM translates them to ErrDuplicatedKey when the dialector supports it;
// the string checks cover drivers that do not.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "unique failed")
}
