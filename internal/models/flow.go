package models

import (
	"encoding/json"
	"time"
)

// Form statuses. Pending forms sit at some node position; rejected and
// completed are terminal.
const (
	FormStatusPending   = "pending"
	FormStatusRejected  = "rejected"
	FormStatusCompleted = "completed"
)

// Decisions an approver can record for a form's current node.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Flow is an ordered, reusable definition of approval steps
type Flow struct {
	FlowID    uint64    `gorm:"primaryKey;autoIncrement" json:"flow_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Nodes []FlowNode `gorm:"foreignKey:FlowID" json:"nodes,omitempty"`
}

// FlowNode is one approval step within a flow, identified by position.
// Approvers is a JSON array of actor ids; an empty array means any actor
// may decide the node.
type FlowNode struct {
	NodeID    uint64    `gorm:"primaryKey;autoIncrement" json:"node_id"`
	FlowID    uint64    `gorm:"not null;index:idx_flow_position,unique" json:"flow_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Position  int       `gorm:"not null;index:idx_flow_position,unique" json:"position"`
	Approvers JSON      `json:"approvers"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApproverIDs decodes the node's approver set. A nil or empty column
// decodes to an empty set, which means unrestricted.
func (n *FlowNode) ApproverIDs() []string {
	if len(n.Approvers.JSON) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(n.Approvers.JSON, &ids); err != nil {
		return nil
	}
	return ids
}

// EligibleApprover reports whether actor may decide this node.
func (n *FlowNode) EligibleApprover(actor string) bool {
	ids := n.ApproverIDs()
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if id == actor {
			return true
		}
	}
	return false
}

// FlowHasForm is one running instance of a flow bound to a specific subject
// and lifecycle event. Terminal once Status is rejected or completed.
type FlowHasForm struct {
	FormID              string    `gorm:"type:char(36);primaryKey" json:"form_id"`
	FlowID              uint64    `gorm:"not null;index" json:"flow_id"`
	SubjectType         string    `gorm:"size:255;not null" json:"subject_type"`
	SubjectID           string    `gorm:"size:255;not null" json:"subject_id"`
	Title               string    `gorm:"size:255;not null" json:"title"`
	Comment             string    `gorm:"size:1024" json:"comment"`
	CurrentNodePosition int       `gorm:"not null;default:0" json:"current_node_position"`
	Status              string    `gorm:"size:16;not null;default:pending" json:"status"`
	CreatedBy           string    `gorm:"size:255;not null" json:"created_by"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	// references is explicit: both sides carry a FlowID field, and without
	// it GORM resolves this as a has-one with the foreign key on Flow.
	Flow *Flow `gorm:"foreignKey:FlowID;references:FlowID" json:"flow,omitempty"`
}

// Terminal reports whether the form accepts no further decisions.
func (f *FlowHasForm) Terminal() bool {
	return f.Status == FormStatusRejected || f.Status == FormStatusCompleted
}

// FormNodeLog is the append-only audit record of one decision. Rows are
// never mutated or deleted; the unique index rejects a second decision from
// the same actor for the same node.
type FormNodeLog struct {
	LogID        uint64    `gorm:"primaryKey;autoIncrement" json:"log_id"`
	FormID       string    `gorm:"type:char(36);not null;index:idx_form_node_actor,unique" json:"form_id"`
	NodePosition int       `gorm:"not null;index:idx_form_node_actor,unique" json:"node_position"`
	Actor        string    `gorm:"size:255;not null;index:idx_form_node_actor,unique" json:"actor"`
	Decision     string    `gorm:"size:16;not null" json:"decision"`
	Comment      string    `gorm:"size:1024" json:"comment"`
	DecidedAt    time.Time `gorm:"not null" json:"decided_at"`
}

// TableName overrides the table name for Flow
func (Flow) TableName() string {
	return "flows"
}

// TableName overrides the table name for FlowNode
func (FlowNode) TableName() string {
	return "flow_nodes"
}

// TableName overrides the table name for FlowHasForm
func (FlowHasForm) TableName() string {
	return "flow_has_forms"
}

// TableName overrides the table name for FormNodeLog
func (FormNodeLog) TableName() string {
	return "form_node_logs"
}
