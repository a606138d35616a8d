package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/assetops/assetcore/internal/models"
	"github.com/assetops/assetcore/internal/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateHasForm opens a form instance of the flow for one subject and
// lifecycle event. The form starts pending at node position 0.
func CreateHasForm(db *gorm.DB, flowID uint64, title, comment, subjectType, subjectID, actor string) (*models.FlowHasForm, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("form title is required")
	}
	if strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("actor is required")
	}

	flow, err := GetFlow(db, flowID)
	if err != nil {
		return nil, err
	}
	if len(flow.Nodes) == 0 {
		return nil, fmt.Errorf("flow %d has no nodes", flowID)
	}

	form := &models.FlowHasForm{
		FormID:              uuid.New().String(),
		FlowID:              flow.FlowID,
		SubjectType:         subjectType,
		SubjectID:           subjectID,
		Title:               title,
		Comment:             comment,
		CurrentNodePosition: 0,
		Status:              models.FormStatusPending,
		CreatedBy:           actor,
	}
	if err := db.Create(form).Error; err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}

	return form, nil
}

// CreateFormForEvent resolves the flow bound to eventKey (a settings key
// such as "device_delete_flow_id") and opens a form against it. Fails with
// FlowNotBound when the event has no flow configured.
func CreateFormForEvent(db *gorm.DB, eventKey, title, comment, subjectType, subjectID, actor string) (*models.FlowHasForm, error) {
	flowID, err := FlowIDForEvent(db, eventKey)
	if err != nil {
		return nil, err
	}
	return CreateHasForm(db, flowID, title, comment, subjectType, subjectID, actor)
}

// GetForm fetches one form by id
func GetForm(db *gorm.DB, formID string) (*models.FlowHasForm, error) {
	var form models.FlowHasForm
	err := db.Where("form_id = ?", formID).First(&form).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", types.ErrFormNotFound, formID)
		}
		return nil, err
	}
	return &form, nil
}

// Decide records actor's approve/reject for the form's current node. The
// log append and the form position/status update commit in one
// transaction, so a failure can never leave a half-advanced form. The
// optimistic guard on the update catches concurrent transitions of the
// same form; the unique log index rejects a duplicate (actor, node) pair.
func Decide(db *gorm.DB, formID, actor, decision, comment string) (*models.FlowHasForm, error) {
	if decision != models.DecisionApprove && decision != models.DecisionReject {
		return nil, fmt.Errorf("unknown decision %q", decision)
	}
	if strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("actor is required")
	}

	var updated *models.FlowHasForm

	err := db.Transaction(func(tx *gorm.DB) error {
		form, err := GetForm(tx, formID)
		if err != nil {
			return err
		}
		if form.Terminal() {
			return fmt.Errorf("%w: form %s is %s", types.ErrInvalidTransition, form.FormID, form.Status)
		}

		flow, err := GetFlow(tx, form.FlowID)
		if err != nil {
			return err
		}
		node, err := GetNode(flow, form.CurrentNodePosition)
		if err != nil {
			return err
		}
		if !node.EligibleApprover(actor) {
			return fmt.Errorf("%w: %s at node %q", types.ErrUnauthorized, actor, node.Name)
		}

		var priorDecisions int64
		if err := tx.Model(&models.FormNodeLog{}).
			Where("form_id = ? AND node_position = ? AND actor = ?", form.FormID, form.CurrentNodePosition, actor).
			Count(&priorDecisions).Error; err != nil {
			return err
		}
		if priorDecisions > 0 {
			return fmt.Errorf("%w: %s at position %d", types.ErrDuplicateDecision, actor, form.CurrentNodePosition)
		}

		entry := models.FormNodeLog{
			FormID:       form.FormID,
			NodePosition: form.CurrentNodePosition,
			Actor:        actor,
			Decision:     decision,
			Comment:      comment,
			DecidedAt:    time.Now().UTC(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s at position %d", types.ErrDuplicateDecision, actor, form.CurrentNodePosition)
			}
			return err
		}

		nextPosition, status, err := NextPosition(flow, form.CurrentNodePosition, decision)
		if err != nil {
			return err
		}

		result := tx.Model(&models.FlowHasForm{}).
			Where("form_id = ? AND status = ? AND current_node_position = ?",
				form.FormID, models.FormStatusPending, form.CurrentNodePosition).
			Updates(map[string]interface{}{
				"current_node_position": nextPosition,
				"status":                status,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: form %s changed concurrently", types.ErrInvalidTransition, form.FormID)
		}

		form.CurrentNodePosition = nextPosition
		form.Status = status
		updated = form
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// FlowProgress is the chart projection of a form's flow: two parallel
// sequences with matching index correspondence, nodes in position order.
type FlowProgress struct {
	ID   []uint64 `json:"id"`
	Name []string `json:"name"`
}

// SortNodes returns the form's flow nodes in position order. A pure
// projection: repeated calls while no decision is recorded return the
// same result, regardless of the form's current position.
func SortNodes(db *gorm.DB, formID string) (*FlowProgress, error) {
	form, err := GetForm(db, formID)
	if err != nil {
		return nil, err
	}
	flow, err := GetFlow(db, form.FlowID)
	if err != nil {
		return nil, err
	}

	progress := &FlowProgress{
		ID:   make([]uint64, 0, len(flow.Nodes)),
		Name: make([]string, 0, len(flow.Nodes)),
	}
	for _, node := range flow.Nodes {
		progress.ID = append(progress.ID, node.NodeID)
		progress.Name = append(progress.Name, node.Name)
	}

	return progress, nil
}

// FormLogs returns the append-only decision trail of a form, oldest first
func FormLogs(db *gorm.DB, formID string) ([]models.FormNodeLog, error) {
	if _, err := GetForm(db, formID); err != nil {
		return nil, err
	}

	var logs []models.FormNodeLog
	err := db.Where("form_id = ?", formID).
		Order("log_id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
