package dispatch

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigflow-dispatch/internal/events"
	"github.com/angelmondragon/gigflow-dispatch/internal/status"
	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db/dbtest"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
	"github.com/angelmondragon/gigflow-dispatch/pkg/metrics"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/idempotency"
	pkgredis "github.com/angelmondragon/gigflow-dispatch/pkg/redis"
	"github.com/angelmondragon/gigflow-dispatch/pkg/sendgrid"
)

func strPtr(v string) *string { return &v }

// fakeTransport stands in for the SendGrid HTTP API.
type fakeTransport struct {
	mu     sync.Mutex
	calls  int
	resp   *rest.Response
	err    error
	block  bool
	sawTTL bool
	last   *mail.SGMailV3
}

func (f *fakeTransport) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.mu.Lock()
	f.calls++
	f.last = email
	_, f.sawTTL = ctx.Deadline()
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &rest.Response{
		StatusCode: http.StatusAccepted,
		Headers:    map[string][]string{"X-Message-Id": {"msg-" + uuid.NewString()}},
	}, nil
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// countingWriter records how many status writes reach the store.
type countingWriter struct {
	*status.Writer
	mu     sync.Mutex
	writes int
	fail   error
}

func (c *countingWriter) Record(ctx context.Context, kind enums.EventKind, recordID string, outcome status.Outcome) (bool, error) {
	c.mu.Lock()
	c.writes++
	fail := c.fail
	c.mu.Unlock()
	if fail != nil {
		return false, fail
	}
	return c.Writer.Record(ctx, kind, recordID, outcome)
}

func (c *countingWriter) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

type harness struct {
	db        *gorm.DB
	transport *fakeTransport
	writer    *countingWriter
	lease     *idempotency.Lease
	store     *pkgredis.Client
	redis     *miniredis.Miniredis
	pipeline  *Pipeline
	registry  *prometheus.Registry
}

func newHarness(t *testing.T, mailCfg config.MailConfig) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.Nop()

	statusWriter, err := status.NewWriter(status.NewRepository(conn), logg)
	require.NoError(t, err)
	writer := &countingWriter{Writer: statusWriter}

	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	store := pkgredis.NewFromClient(raw)
	lease, err := idempotency.NewLease(store, time.Minute)
	require.NoError(t, err)

	transport := &fakeTransport{}
	if mailCfg.FromAddress == "" {
		mailCfg.FromAddress = "no-reply@gigflow.app"
	}
	mailer, err := sendgrid.NewWithSender(transport, mailCfg, logg)
	require.NoError(t, err)
	executor, err := NewMailExecutor(mailer, mailCfg, logg)
	require.NoError(t, err)
	notifications, err := NewNotificationRoute(executor)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	pipeline, err := NewPipeline(PipelineParams{
		Writer: writer,
		Lease:  lease,
		Routes: map[enums.EventKind]Route{
			enums.EventKindRecordCreated:   notifications,
			enums.EventKindPaymentResolved: PaymentRoute{},
		},
		Metrics: metrics.NewDispatchMetrics(reg),
		Logger:  logg,
	})
	require.NoError(t, err)

	return &harness{
		db:        conn,
		transport: transport,
		writer:    writer,
		lease:     lease,
		store:     store,
		redis:     mr,
		pipeline:  pipeline,
		registry:  reg,
	}
}

func (h *harness) seedApplication(t *testing.T, email string) *models.Application {
	t.Helper()
	app := &models.Application{
		ID:              uuid.New(),
		JobID:           "J1",
		JobName:         strPtr("Widget"),
		FreelancerEmail: email,
		FreelancerName:  strPtr("A"),
		Salary:          strPtr("100"),
		Duration:        strPtr("1w"),
	}
	require.NoError(t, h.db.Create(app).Error)
	return app
}

func (h *harness) seedOrder(t *testing.T) *models.PaymentOrder {
	t.Helper()
	order := &models.PaymentOrder{
		ID:          uuid.New(),
		JobID:       "J1",
		Milestone:   "M1",
		AmountMinor: 50000,
		Currency:    "USD",
		Status:      enums.PaymentStatusUnpaid,
	}
	require.NoError(t, h.db.Create(order).Error)
	return order
}

func (h *harness) status(t *testing.T, kind enums.EventKind, id uuid.UUID) *models.SideEffectStatus {
	t.Helper()
	st, err := h.writer.Get(context.Background(), kind, id.String())
	require.NoError(t, err)
	return st
}

func recordCreated(app *models.Application) events.DomainEvent {
	return events.NewRecordCreated("evt-"+uuid.NewString(), events.ApplicationFields{
		ApplicationID:   app.ID.String(),
		FreelancerEmail: app.FreelancerEmail,
		FreelancerName:  app.FreelancerName,
		JobID:           &app.JobID,
		JobName:         app.JobName,
		Salary:          app.Salary,
		Duration:        app.Duration,
	}, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok {
			if want != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}
