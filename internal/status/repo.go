package status

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
)

// Repository reads and conditionally updates the side-effect columns of the
// record each event kind is about.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, kind enums.EventKind, recordID uuid.UUID) (*models.SideEffectStatus, error)
	MarkSent(ctx context.Context, kind enums.EventKind, recordID uuid.UUID, reference *string, at time.Time) (markResult, error)
	MarkFailed(ctx context.Context, kind enums.EventKind, recordID uuid.UUID, detail string, at time.Time) (markResult, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a status repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type markResult struct {
	Updated bool
	Found   bool
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func modelFor(kind enums.EventKind) (any, error) {
	switch kind {
	case enums.EventKindRecordCreated:
		return &models.Application{}, nil
	case enums.EventKindPaymentResolved:
		return &models.PaymentOrder{}, nil
	default:
		return nil, fmt.Errorf("no status table for event kind %q", kind)
	}
}

func (r *repositoryImpl) Get(ctx context.Context, kind enums.EventKind, recordID uuid.UUID) (*models.SideEffectStatus, error) {
	model, err := modelFor(kind)
	if err != nil {
		return nil, err
	}
	var status models.SideEffectStatus
	err = r.db.WithContext(ctx).
		Model(model).
		Select("side_effect_sent", "side_effect_sent_at", "side_effect_reference", "side_effect_error", "side_effect_error_at").
		Where("id = ?", recordID).
		Take(&status).Error
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// MarkSent flips the record to sent only while it is still unsent, so two
// racing attempts cannot both record success.
func (r *repositoryImpl) MarkSent(ctx context.Context, kind enums.EventKind, recordID uuid.UUID, reference *string, at time.Time) (markResult, error) {
	return r.conditionalUpdate(ctx, kind, recordID, map[string]any{
		"side_effect_sent":      true,
		"side_effect_sent_at":   at,
		"side_effect_reference": reference,
		"side_effect_error":     nil,
		"side_effect_error_at":  nil,
	})
}

// MarkFailed stores the latest failure detail unless the record was already
// sent by another attempt.
func (r *repositoryImpl) MarkFailed(ctx context.Context, kind enums.EventKind, recordID uuid.UUID, detail string, at time.Time) (markResult, error) {
	return r.conditionalUpdate(ctx, kind, recordID, map[string]any{
		"side_effect_error":    detail,
		"side_effect_error_at": at,
	})
}

func (r *repositoryImpl) conditionalUpdate(ctx context.Context, kind enums.EventKind, recordID uuid.UUID, columns map[string]any) (markResult, error) {
	model, err := modelFor(kind)
	if err != nil {
		return markResult{}, err
	}
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND side_effect_sent = ?", recordID, false).
		Updates(columns)
	if result.Error != nil {
		return markResult{}, result.Error
	}
	if result.RowsAffected > 0 {
		return markResult{Updated: true, Found: true}, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(model).
		Where("id = ?", recordID).
		Count(&count).Error; err != nil {
		return markResult{}, err
	}
	return markResult{Found: count > 0}, nil
}
