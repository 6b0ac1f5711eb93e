package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/gigflow-dispatch/api/middleware"
	"github.com/angelmondragon/gigflow-dispatch/api/responses"
	"github.com/angelmondragon/gigflow-dispatch/api/validators"
	"github.com/angelmondragon/gigflow-dispatch/internal/applications"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
)

// CreateApplication stores a job application and queues its notification.
func CreateApplication(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "applications service unavailable"))
			return
		}

		var payload applications.CreateApplicationInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload.RequestID = middleware.RequestIDFromContext(r.Context())

		app, err := svc.Create(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newApplicationResponse(app))
	}
}

// GetApplication returns an application with its notification status.
func GetApplication(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "applications service unavailable"))
			return
		}
		id, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		app, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newApplicationResponse(app))
	}
}

// RedispatchApplication runs the notification pipeline for a stored application.
func RedispatchApplication(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "applications service unavailable"))
			return
		}
		id, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		attempt, err := svc.Redispatch(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, attempt)
	}
}

type applicationResponse struct {
	ID              uuid.UUID      `json:"id"`
	JobID           string         `json:"jobId"`
	JobName         *string        `json:"jobName,omitempty"`
	ClientName      *string        `json:"clientName,omitempty"`
	FreelancerEmail string         `json:"freelancerEmail"`
	FreelancerName  *string        `json:"freelancerName,omitempty"`
	Salary          *string        `json:"salary,omitempty"`
	Duration        *string        `json:"duration,omitempty"`
	Notification    statusResponse `json:"notification"`
	CreatedAt       time.Time      `json:"createdAt"`
}

func newApplicationResponse(app *models.Application) applicationResponse {
	return applicationResponse{
		ID:              app.ID,
		JobID:           app.JobID,
		JobName:         app.JobName,
		ClientName:      app.ClientName,
		FreelancerEmail: app.FreelancerEmail,
		FreelancerName:  app.FreelancerName,
		Salary:          app.Salary,
		Duration:        app.Duration,
		Notification:    newStatusResponse(app.SideEffectStatus),
		CreatedAt:       app.CreatedAt,
	}
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).
			WithDetails(map[string]string{name: "must be a valid uuid"})
	}
	return id, nil
}
