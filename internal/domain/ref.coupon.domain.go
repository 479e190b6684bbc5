package domain

import "time"

// Coupon is a one-time activation voucher issued by an agent. It has exactly
// two states: unused and used. The transition is a single atomic check-and-set
// performed by the coupon repository so two concurrent activations cannot both
// consume the same code.
type Coupon struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	AgentID   int64      `json:"agent_id"`
	IsUsed    bool       `json:"is_used"`
	UsedBy    *int64     `json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
