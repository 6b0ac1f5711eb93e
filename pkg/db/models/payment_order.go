package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
)

// PaymentOrder funds one escrow milestone of a job.
type PaymentOrder struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	JobID         string              `gorm:"column:job_id;type:text;not null"`
	Milestone     string              `gorm:"column:milestone;type:text;not null"`
	AmountMinor   int64               `gorm:"column:amount_minor;not null"`
	Currency      string              `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status        enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'unpaid'"`
	PayerName     *string             `gorm:"column:payer_name;type:text"`
	PayerEmail    *string             `gorm:"column:payer_email;type:text"`
	PaymentID     *string             `gorm:"column:payment_id;type:text"`
	IsMock        bool                `gorm:"column:is_mock;not null;default:false"`
	FailureReason *string             `gorm:"column:failure_reason;type:text"`
	SideEffectStatus
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentOrder) TableName() string {
	return "payment_orders"
}
