package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
)

// Repository exposes persistence helpers for payment orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PaymentOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error)
	MarkResolved(ctx context.Context, id uuid.UUID, resolution orderResolution) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a payment order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type orderResolution struct {
	Status        enums.PaymentStatus
	PaymentID     *string
	IsMock        bool
	FailureReason *string
	At            time.Time
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, order *models.PaymentOrder) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkResolved moves an order out of unpaid/failed. A paid order is never
// overwritten.
func (r *repositoryImpl) MarkResolved(ctx context.Context, id uuid.UUID, resolution orderResolution) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentOrder{}).
		Where("id = ? AND status <> ?", id, enums.PaymentStatusPaid).
		Updates(map[string]any{
			"status":         resolution.Status,
			"payment_id":     resolution.PaymentID,
			"is_mock":        resolution.IsMock,
			"failure_reason": resolution.FailureReason,
			"updated_at":     resolution.At,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
