package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/assetops/assetcore/internal/models"
	"github.com/assetops/assetcore/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FlowNodeInput is one approval step of a new flow, in the order given.
type FlowNodeInput struct {
	Name      string   `json:"name"`
	Approvers []string `json:"approvers,omitempty"`
}

// CreateFlow persists a flow with nodes at positions 0..n-1 in the order
// given. Positions are contiguous starting at 0; the flow is append-only
// afterwards so in-progress forms never see their node order change.
func CreateFlow(db *gorm.DB, name string, nodes []FlowNodeInput) (*models.Flow, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("flow name is required")
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("flow requires at least one node")
	}
	for i, n := range nodes {
		if strings.TrimSpace(n.Name) == "" {
			return nil, fmt.Errorf("node %d: name is required", i)
		}
	}

	flow := &models.Flow{Name: name}
	for i, n := range nodes {
		approvers, err := json.Marshal(n.Approvers)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		flow.Nodes = append(flow.Nodes, models.FlowNode{
			Name:      n.Name,
			Position:  i,
			Approvers: models.JSON{JSON: datatypes.JSON(approvers)},
		})
	}

	if err := db.Create(flow).Error; err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	return flow, nil
}

// GetFlow fetches one flow with its nodes in position order
func GetFlow(db *gorm.DB, flowID uint64) (*models.Flow, error) {
	var flow models.Flow
	err := db.Preload("Nodes", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("flow_id = ?", flowID).First(&flow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: flow %d", types.ErrFlowNotFound, flowID)
		}
		return nil, err
	}
	return &flow, nil
}

// ListFlows returns all flows with ordered nodes
func ListFlows(db *gorm.DB) ([]models.Flow, error) {
	var flows []models.Flow
	err := db.Preload("Nodes", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Order("flow_id ASC").Find(&flows).Error
	if err != nil {
		return nil, err
	}
	return flows, nil
}

// GetNode resolves the node at position within the flow.
func GetNode(flow *models.Flow, position int) (*models.FlowNode, error) {
	if position < 0 || position >= len(flow.Nodes) {
		return nil, fmt.Errorf("flow %d has no node at position %d", flow.FlowID, position)
	}
	return &flow.Nodes[position], nil
}

// NextPosition resolves where a decision at position leads. The single
// routing policy: approve advances to position+1, approve on the last node
// completes the form, reject is terminal at any node with the position
// left where it was. There is no re-routing to earlier nodes.
func NextPosition(flow *models.Flow, position int, decision string) (int, string, error) {
	switch decision {
	case models.DecisionReject:
		return position, models.FormStatusRejected, nil
	case models.DecisionApprove:
		if position+1 >= len(flow.Nodes) {
			return position, models.FormStatusCompleted, nil
		}
		return position + 1, models.FormStatusPending, nil
	default:
		return 0, "", fmt.Errorf("unknown decision %q", decision)
	}
}
