package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/gigflow-dispatch/api/responses"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
)

// StatusReader loads the side-effect status of a source record.
type StatusReader interface {
	Get(ctx context.Context, kind enums.EventKind, recordID string) (*models.SideEffectStatus, error)
}

type statusResponse struct {
	Sent      bool       `json:"sent"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	Reference *string    `json:"reference,omitempty"`
	Error     *string    `json:"error,omitempty"`
	ErrorAt   *time.Time `json:"errorAt,omitempty"`
	InFlight  bool       `json:"inFlight"`
}

func newStatusResponse(s models.SideEffectStatus) statusResponse {
	return statusResponse{
		Sent:      s.SideEffectSent,
		SentAt:    s.SideEffectSentAt,
		Reference: s.SideEffectReference,
		Error:     s.SideEffectError,
		ErrorAt:   s.SideEffectErrorAt,
		InFlight:  s.InFlight(),
	}
}

type recordStatusResponse struct {
	Kind     enums.EventKind `json:"kind"`
	RecordID string          `json:"recordId"`
	statusResponse
}

// RecordStatus reports what the dispatcher recorded for {kind}/{id}.
func RecordStatus(reader StatusReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "status reader unavailable"))
			return
		}
		kind, err := enums.ParseEventKind(chi.URLParam(r, "kind"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown record kind"))
			return
		}
		recordID := chi.URLParam(r, "id")

		st, err := reader.Get(r.Context(), kind, recordID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, recordStatusResponse{
			Kind:           kind,
			RecordID:       recordID,
			statusResponse: newStatusResponse(*st),
		})
	}
}
