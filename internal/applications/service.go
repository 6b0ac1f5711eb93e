package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigflow-dispatch/internal/dispatch"
	"github.com/angelmondragon/gigflow-dispatch/internal/events"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/payloads"
	"github.com/angelmondragon/gigflow-dispatch/pkg/validation"
)

const actorService = "gigflow-api"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// emitter queues the creation notice. A record gets at most one.
type emitter interface {
	EmitOnce(ctx context.Context, tx *gorm.DB, event outbox.Event) (string, bool, error)
}

// Service defines application intake operations.
type Service interface {
	Create(ctx context.Context, input CreateApplicationInput) (*models.Application, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Application, error)
	Redispatch(ctx context.Context, id uuid.UUID) (dispatch.Attempt, error)
}

// ServiceParams groups the intake dependencies.
type ServiceParams struct {
	Repo     Repository
	TxRunner txRunner
	Outbox   emitter
	// Pipeline is only needed for Redispatch.
	Pipeline dispatch.Processor
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   emitter
	pipeline dispatch.Processor
	validate *validator.Validate
	logg     *logger.Logger
}

// CreateApplicationInput is a freelancer's application to a job.
type CreateApplicationInput struct {
	JobID           string `json:"jobId" validate:"required,notblank"`
	JobName         string `json:"jobName" validate:"max=200"`
	ClientName      string `json:"clientName" validate:"max=200"`
	FreelancerEmail string `json:"freelancerEmail" validate:"required,email"`
	FreelancerName  string `json:"freelancerName" validate:"max=200"`
	Salary          string `json:"salary" validate:"max=64"`
	Duration        string `json:"duration" validate:"max=64"`
	CoverLetter     string `json:"coverLetter" validate:"max=10000"`
	RequestID       string `json:"-"`
}

// NewService wires the intake dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "applications repository required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	v := validation.Engine()
	return &service{
		repo:     params.Repo,
		tx:       params.TxRunner,
		outbox:   params.Outbox,
		pipeline: params.Pipeline,
		validate: v,
		logg:     params.Logger,
	}, nil
}

// Create stores the application and queues its application_created event in
// the same transaction.
func (s *service) Create(ctx context.Context, input CreateApplicationInput) (*models.Application, error) {
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid application").WithDetails(details)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid application")
	}

	app := &models.Application{
		ID:              uuid.New(),
		JobID:           strings.TrimSpace(input.JobID),
		JobName:         optional(input.JobName),
		ClientName:      optional(input.ClientName),
		FreelancerEmail: strings.TrimSpace(input.FreelancerEmail),
		FreelancerName:  optional(input.FreelancerName),
		Salary:          optional(input.Salary),
		Duration:        optional(input.Duration),
		CoverLetter:     optional(input.CoverLetter),
	}

	var eventID string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, app); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create application")
		}
		id, queued, err := s.outbox.EmitOnce(ctx, tx, outbox.Event{
			EventType:     enums.EventApplicationCreated,
			AggregateType: enums.AggregateApplication,
			AggregateID:   app.ID,
			Actor:         &outbox.Actor{Service: actorService, RequestID: input.RequestID},
			Data: payloads.ApplicationCreatedEvent{
				ApplicationID:   app.ID,
				JobID:           app.JobID,
				JobName:         app.JobName,
				ClientName:      app.ClientName,
				FreelancerEmail: app.FreelancerEmail,
				FreelancerName:  app.FreelancerName,
				Salary:          app.Salary,
				Duration:        app.Duration,
				CoverLetter:     app.CoverLetter,
				CreatedAt:       time.Now().UTC(),
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue application event")
		}
		if !queued {
			return pkgerrors.New(pkgerrors.CodeConflict, "application event already queued")
		}
		eventID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"record_id": app.ID.String(),
		"event_id":  eventID,
		"job_id":    app.JobID,
	}), "application created")
	return app, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "application not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load application")
	}
	return app, nil
}

// Redispatch runs the stored application through the pipeline again, for
// example after a recipient address was corrected. An already-sent record is
// left alone by the pipeline guard.
func (s *service) Redispatch(ctx context.Context, id uuid.UUID) (dispatch.Attempt, error) {
	if s.pipeline == nil {
		return dispatch.Attempt{}, pkgerrors.New(pkgerrors.CodeDependency, "dispatch pipeline not configured")
	}
	app, err := s.Get(ctx, id)
	if err != nil {
		return dispatch.Attempt{}, err
	}
	jobID := app.JobID
	evt := events.NewRecordCreated(uuid.NewString(), events.ApplicationFields{
		ApplicationID:   app.ID.String(),
		FreelancerEmail: app.FreelancerEmail,
		FreelancerName:  app.FreelancerName,
		JobID:           &jobID,
		JobName:         app.JobName,
		ClientName:      app.ClientName,
		Salary:          app.Salary,
		Duration:        app.Duration,
		CoverLetter:     app.CoverLetter,
	}, app.CreatedAt)
	attempt, err := s.pipeline.Process(ctx, evt)
	if err != nil {
		return attempt, fmt.Errorf("redispatch application %s: %w", id, err)
	}
	return attempt, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
