package claim

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Attempt is one audited claim call against the cafe API.
type Attempt struct {
	AttemptID    snowflake.ID `gorm:"column:attempt_id;primaryKey;autoIncrement:false" json:"attempt_id"`
	CustomerID   string       `gorm:"column:customer_id;index:idx_claim_attempts_customer" json:"customer_id"`
	TargetKind   string       `gorm:"column:target_kind" json:"target_kind"`
	TargetID     string       `gorm:"column:target_id" json:"target_id"`
	Succeeded    bool         `gorm:"column:succeeded" json:"succeeded"`
	ErrorMessage string       `gorm:"column:error_message" json:"error_message,omitempty"`
	DurationMS   int64        `gorm:"column:duration_ms" json:"duration_ms"`
	CreatedAt    time.Time    `gorm:"column:created_at" json:"created_at"`
}

// TableName sets the table name for the Attempt model.
func (Attempt) TableName() string { return "claim_attempts" }
