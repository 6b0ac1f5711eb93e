package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/gigflow-dispatch/internal/events"
	"github.com/angelmondragon/gigflow-dispatch/internal/status"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
	"github.com/angelmondragon/gigflow-dispatch/pkg/metrics"
)

const releaseTimeout = 5 * time.Second

// StatusWriter is the guard and outcome store for source records.
type StatusWriter interface {
	IsSent(ctx context.Context, kind enums.EventKind, recordID string) (bool, error)
	Record(ctx context.Context, kind enums.EventKind, recordID string, outcome status.Outcome) (bool, error)
}

// LeaseGuard grants short exclusive claims on a record.
type LeaseGuard interface {
	Claim(ctx context.Context, scope, id, holder string) (bool, error)
	Release(ctx context.Context, scope, id, holder string) error
}

// PipelineParams groups the pipeline dependencies.
type PipelineParams struct {
	Writer  StatusWriter
	Lease   LeaseGuard
	Routes  map[enums.EventKind]Route
	Metrics *metrics.DispatchMetrics
	Logger  *logger.Logger
}

// Pipeline runs guard, lease, build, execute and record for one event.
type Pipeline struct {
	writer  StatusWriter
	lease   LeaseGuard
	routes  map[enums.EventKind]Route
	metrics *metrics.DispatchMetrics
	logg    *logger.Logger
}

// NewPipeline validates the dependencies and builds a pipeline.
func NewPipeline(params PipelineParams) (*Pipeline, error) {
	if params.Writer == nil {
		return nil, fmt.Errorf("status writer required")
	}
	if params.Lease == nil {
		return nil, fmt.Errorf("lease guard required")
	}
	if len(params.Routes) == 0 {
		return nil, fmt.Errorf("at least one route required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	routes := make(map[enums.EventKind]Route, len(params.Routes))
	for kind, route := range params.Routes {
		if !kind.IsValid() {
			return nil, fmt.Errorf("unknown event kind %q", kind)
		}
		if route == nil {
			return nil, fmt.Errorf("route for %s is nil", kind)
		}
		routes[kind] = route
	}
	return &Pipeline{
		writer:  params.Writer,
		lease:   params.Lease,
		routes:  routes,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Process handles one DomainEvent. Missing fields and permanent channel
// failures are recorded on the source record and return a nil error;
// transient channel failures and status write failures are returned so the
// delivering infrastructure retries.
func (p *Pipeline) Process(ctx context.Context, evt events.DomainEvent) (attempt Attempt, err error) {
	attempt = Attempt{
		EventID:  evt.EventID,
		Kind:     evt.Kind,
		RecordID: evt.SourceRecordID,
		Outcome:  enums.AttemptOutcomePending,
	}
	ctx = p.logg.WithFields(ctx, evt.LogFields())

	route, ok := p.routes[evt.Kind]
	if !ok {
		return attempt, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("no route for event kind %q", evt.Kind))
	}
	if strings.TrimSpace(evt.SourceRecordID) == "" {
		return attempt, pkgerrors.New(pkgerrors.CodeMissingField, "sourceRecordId is required")
	}

	sent, err := p.writer.IsSent(ctx, evt.Kind, evt.SourceRecordID)
	if err != nil {
		p.logg.Error(ctx, "side effect guard lookup failed", err)
		return attempt, err
	}
	if sent {
		attempt.Duplicate = true
		p.metrics.IncSkipped(evt.Kind.String(), metrics.SkipAlreadySent)
		p.logg.Info(ctx, "side effect already sent; skipping")
		return attempt, nil
	}

	if route.Leased() {
		holder := uuid.NewString()
		claimed, claimErr := p.lease.Claim(ctx, evt.Kind.String(), evt.SourceRecordID, holder)
		if claimErr != nil {
			return attempt, pkgerrors.Wrap(pkgerrors.CodeDependency, claimErr, "claim dispatch lease")
		}
		if !claimed {
			// The holder may still fail without recording anything, so this
			// delivery must come back; IsSent skips it once the holder succeeds.
			attempt.Duplicate = true
			p.metrics.IncSkipped(evt.Kind.String(), metrics.SkipLeaseHeld)
			p.logg.Info(ctx, "another attempt holds the record lease; retrying later")
			return attempt, pkgerrors.New(pkgerrors.CodeTransientChannel, "dispatch lease held by another attempt")
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			if relErr := p.lease.Release(releaseCtx, evt.Kind.String(), evt.SourceRecordID, holder); relErr != nil {
				p.logg.Error(ctx, "release dispatch lease", relErr)
				// an unreleased lease expires on its own; only fold it into an existing failure
				if err != nil {
					err = multierr.Append(err, relErr)
				}
			}
		}()
	}

	prepared, err := route.Prepare(evt)
	attempt.Target = prepared.Target
	if err != nil {
		if pkgerrors.CodeOf(err) != pkgerrors.CodeMissingField {
			p.logg.Error(ctx, "prepare side effect", err)
			return attempt, err
		}
		attempt = attempt.fail(err)
		p.metrics.IncSkipped(evt.Kind.String(), metrics.SkipInvalid)
		p.logg.Warn(p.logg.WithFields(ctx, attempt.logFields()), "event missing required field; channel not called")
		return p.record(ctx, attempt)
	}

	attempt.RenderedContent = prepared.Content
	started := time.Now()
	result := route.Execute(ctx, prepared)
	took := time.Since(started)

	attempt.Outcome = result.Outcome
	attempt.ProviderReference = result.ProviderReference
	attempt.ErrorDetail = result.ErrorDetail
	attempt.FailureClass = result.FailureClass
	attempt.Cancelled = result.Cancelled
	attempt.Err = result.Err
	if result.Target != "" {
		attempt.Target = result.Target
	}
	p.metrics.ObserveAttempt(evt.Kind.String(), attempt.outcomeLabel(), attempt.FailureClass.String(), took)

	logCtx := p.logg.WithFields(ctx, attempt.logFields())
	switch {
	case attempt.Terminal():
		return p.record(logCtx, attempt)
	case attempt.Outcome == enums.AttemptOutcomeFailed:
		p.logg.Warn(logCtx, "transient channel failure; leaving status untouched")
		if attempt.Err != nil {
			return attempt, attempt.Err
		}
		detail := "channel unavailable"
		if attempt.ErrorDetail != nil {
			detail = *attempt.ErrorDetail
		}
		return attempt, pkgerrors.New(pkgerrors.CodeTransientChannel, detail)
	default:
		p.logg.Info(logCtx, "attempt ended without a terminal outcome; nothing recorded")
		return attempt, nil
	}
}

func (p *Pipeline) record(ctx context.Context, attempt Attempt) (Attempt, error) {
	applied, err := p.writer.Record(ctx, attempt.Kind, attempt.RecordID, status.Outcome{
		Result:    attempt.Outcome,
		Reference: attempt.ProviderReference,
		Detail:    attempt.ErrorDetail,
	})
	if err != nil {
		p.logg.Error(ctx, "status write failed after side effect attempt", err)
		return attempt, err
	}
	if !applied {
		p.metrics.IncSkipped(attempt.Kind.String(), metrics.SkipLostRace)
		p.logg.Warn(ctx, "concurrent attempt already recorded success")
		return attempt, nil
	}
	attempt.Recorded = true
	p.logg.Info(ctx, "side effect outcome recorded")
	return attempt, nil
}
