package dispatch

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigflow-dispatch/internal/status"
	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
	"github.com/angelmondragon/gigflow-dispatch/pkg/metrics"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/idempotency"
	"github.com/angelmondragon/gigflow-dispatch/pkg/redis"
)

// StackParams are the process-level resources shared by every binary that
// runs the pipeline.
type StackParams struct {
	DB         *gorm.DB
	Store      redis.Store
	Mailer     MailSender
	Mail       config.MailConfig
	Dispatch   config.DispatchConfig
	Registerer prometheus.Registerer
	Logger     *logger.Logger
}

// Stack is a fully wired pipeline plus the pieces callers reuse.
type Stack struct {
	Pipeline *Pipeline
	Writer   *status.Writer
	Lease    *idempotency.Lease
	Metrics  *metrics.DispatchMetrics
}

// NewStack wires status writer, lease, routes and metrics into a Pipeline.
func NewStack(params StackParams) (*Stack, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database handle required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mail sender required")
	}

	writer, err := status.NewWriter(status.NewRepository(params.DB), params.Logger)
	if err != nil {
		return nil, fmt.Errorf("status writer: %w", err)
	}
	lease, err := idempotency.NewLease(params.Store, params.Dispatch.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("dispatch lease: %w", err)
	}
	executor, err := NewMailExecutor(params.Mailer, params.Mail, params.Logger)
	if err != nil {
		return nil, fmt.Errorf("mail executor: %w", err)
	}
	notifications, err := NewNotificationRoute(executor)
	if err != nil {
		return nil, fmt.Errorf("notification route: %w", err)
	}

	dm := metrics.NewDispatchMetrics(params.Registerer)
	pipeline, err := NewPipeline(PipelineParams{
		Writer: writer,
		Lease:  lease,
		Routes: map[enums.EventKind]Route{
			enums.EventKindRecordCreated:   notifications,
			enums.EventKindPaymentResolved: PaymentRoute{},
		},
		Metrics: dm,
		Logger:  params.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Stack{
		Pipeline: pipeline,
		Writer:   writer,
		Lease:    lease,
		Metrics:  dm,
	}, nil
}
