package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
)

// Outcome is the part of a side-effect attempt that gets persisted.
type Outcome struct {
	Result    enums.AttemptOutcome
	Reference *string
	Detail    *string
}

// Writer is the only component allowed to mutate side-effect status columns.
type Writer struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewWriter constructs a status writer.
func NewWriter(repo Repository, logg *logger.Logger) (*Writer, error) {
	if repo == nil {
		return nil, fmt.Errorf("status repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Writer{
		repo: repo,
		logg: logg,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Get returns the persisted status of a record.
func (w *Writer) Get(ctx context.Context, kind enums.EventKind, recordID string) (*models.SideEffectStatus, error) {
	id, err := parseRecordID(recordID)
	if err != nil {
		return nil, err
	}
	status, err := w.repo.Get(ctx, kind, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s record %s not found", kind, recordID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load side-effect status")
	}
	return status, nil
}

// IsSent is the idempotency guard consulted before any channel call.
func (w *Writer) IsSent(ctx context.Context, kind enums.EventKind, recordID string) (bool, error) {
	status, err := w.Get(ctx, kind, recordID)
	if err != nil {
		return false, err
	}
	return status.SideEffectSent, nil
}

// Record persists a terminal outcome with a single conditional update. It
// returns false when the record had already been marked sent, which means a
// concurrent attempt won the race. Store failures surface as
// STATUS_WRITE_FAILURE.
func (w *Writer) Record(ctx context.Context, kind enums.EventKind, recordID string, outcome Outcome) (bool, error) {
	id, err := parseRecordID(recordID)
	if err != nil {
		return false, err
	}

	var mark markResult
	switch outcome.Result {
	case enums.AttemptOutcomeSent:
		mark, err = w.repo.MarkSent(ctx, kind, id, outcome.Reference, w.now())
	case enums.AttemptOutcomeFailed:
		detail := "side effect failed"
		if outcome.Detail != nil && *outcome.Detail != "" {
			detail = *outcome.Detail
		}
		mark, err = w.repo.MarkFailed(ctx, kind, id, detail, w.now())
	default:
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("outcome %q is not terminal", outcome.Result))
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeStatusWrite, err, fmt.Sprintf("record %s outcome", outcome.Result))
	}
	if !mark.Found {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s record %s not found", kind, recordID))
	}
	if !mark.Updated {
		ctx = w.logg.WithFields(ctx, map[string]any{"kind": kind.String(), "record_id": recordID, "outcome": outcome.Result.String()})
		w.logg.Warn(ctx, "record already marked sent; outcome not written")
	}
	return mark.Updated, nil
}

func parseRecordID(recordID string) (uuid.UUID, error) {
	id, err := uuid.Parse(recordID)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("record %q not found", recordID))
	}
	return id, nil
}
