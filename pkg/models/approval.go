package models

import "time"

// ApprovalDecision is a stakeholder's verdict on a lease exit.
type ApprovalDecision string

const (
	DecisionPending  ApprovalDecision = "pending"
	DecisionApproved ApprovalDecision = "approved"
	DecisionRejected ApprovalDecision = "rejected"
)

// ApprovalRecord is one role's decision within a lease exit's approval
// chain. At most one record exists per role; a later decision for the same
// role replaces the earlier one.
type ApprovalRecord struct {
	Role      Role             `json:"role"`
	Decision  ApprovalDecision `json:"decision"`
	DecidedBy string           `json:"decided_by,omitempty"`
	DecidedAt *time.Time       `json:"decided_at,omitempty"`
	Comments  string           `json:"comments,omitempty"`
}

// ChainAggregate is the combined state of an approval chain.
type ChainAggregate string

const (
	ChainPending  ChainAggregate = "pending"
	ChainApproved ChainAggregate = "approved"
	ChainRejected ChainAggregate = "rejected"
)

// AggregateChain collapses a chain to its combined state: any rejection
// wins, otherwise all approvals are required for an approved aggregate.
func AggregateChain(chain []*ApprovalRecord) ChainAggregate {
	if len(chain) == 0 {
		return ChainPending
	}

	allApproved := true

	for _, record := range chain {
		if record.Decision == DecisionRejected {
			return ChainRejected
		}

		if record.Decision != DecisionApproved {
			allApproved = false
		}
	}

	if allApproved {
		return ChainApproved
	}

	return ChainPending
}
