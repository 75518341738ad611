package leadform

import (
	"context"
	"fmt"
	"time"

	"land_leads_app_go/metrics"
	"land_leads_app_go/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QueueStore is the slice of the submission queue the pipeline writes to.
// Append must absorb its own failures; the pipeline never sees them.
type QueueStore interface {
	Append(ctx context.Context, campaign string, rec models.SubmissionRecord)
}

// OutcomeKind says how a submit call ended
type OutcomeKind string

const (
	OutcomeSucceeded        OutcomeKind = metrics.OutcomeSucceeded
	OutcomeValidationFailed OutcomeKind = metrics.OutcomeValidationFailed
	OutcomeSubmissionFailed OutcomeKind = metrics.OutcomeSubmissionFailed
	OutcomeRejected         OutcomeKind = metrics.OutcomeRejected
	OutcomeCancelled        OutcomeKind = metrics.OutcomeCancelled
)

// SubmitErrorMessage is shown to the user when the backend rejects a lead
const SubmitErrorMessage = "We couldn't send your request. Please try again in a moment."

// Outcome is the result of one Submit call
type Outcome struct {
	Kind   OutcomeKind
	Record *models.SubmissionRecord // set on OutcomeSucceeded
	Ack    Ack                      // set on OutcomeSucceeded
	Errors FieldErrors              // set on OutcomeValidationFailed
	Err    error                    // set on rejected, failed and cancelled outcomes
}

// Succeeded reports whether the lead was delivered and queued
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSucceeded
}

// Pipeline runs validate -> submit -> persist -> transition for form instances
type Pipeline struct {
	submitter Submitter
	store     QueueStore
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithLogger sets the pipeline logger
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithClock overrides the time source used for SubmittedAt
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithIDGenerator overrides record id generation
func WithIDGenerator(fn func() string) PipelineOption {
	return func(p *Pipeline) {
		p.newID = fn
	}
}

// NewPipeline wires a submitter and a queue store together
func NewPipeline(submitter Submitter, store QueueStore, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		submitter: submitter,
		store:     store,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     newRecordID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// newRecordID returns a UUIDv7: unique across processes and sortable by creation time
func newRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Submit handles one user submit action for form under campaign.
// It blocks through the network step; the auto-reset after Success runs on its own timer.
func (p *Pipeline) Submit(ctx context.Context, form *Form, campaign string, raw map[string]string) Outcome {
	outcome := p.submit(ctx, form, campaign, raw)
	metrics.LeadSubmissions.WithLabelValues(campaign, string(outcome.Kind)).Inc()
	return outcome
}

func (p *Pipeline) submit(ctx context.Context, form *Form, campaign string, raw map[string]string) Outcome {
	log := p.logger.With(zap.String("campaign", campaign))

	values, errs := Validate(form.Schema(), raw)
	if err := form.begin(raw, errs); err != nil {
		log.Debug("submit rejected", zap.Error(err))
		return Outcome{Kind: OutcomeRejected, Err: err}
	}
	if errs != nil {
		return Outcome{Kind: OutcomeValidationFailed, Errors: errs}
	}

	// Cancellation is honoured up to the network step.
	if err := ctx.Err(); err != nil {
		form.cancel()
		return Outcome{Kind: OutcomeCancelled, Err: err}
	}

	rec := models.NewSubmissionRecord(p.newID(), campaign, values, p.now())

	start := time.Now()
	ack, err := p.submitter.Submit(ctx, rec.Clone())
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SubmitDuration.WithLabelValues(submitterName(p.submitter), status).Observe(time.Since(start).Seconds())

	if err != nil {
		// A submitter timing out on its own is a failed submission, not a cancellation.
		if ctxErr := ctx.Err(); ctxErr != nil {
			form.cancel()
			return Outcome{Kind: OutcomeCancelled, Err: ctxErr}
		}
		log.Warn("lead submission failed", zap.String("record_id", rec.ID), zap.Error(err))
		form.fail(SubmitErrorMessage)
		return Outcome{Kind: OutcomeSubmissionFailed, Err: fmt.Errorf("submit lead: %w", err)}
	}

	// Persist even if the caller has gone away.
	p.store.Append(context.WithoutCancel(ctx), campaign, rec.Clone())
	form.succeed(rec.ID)

	log.Info("lead captured", zap.String("record_id", rec.ID), zap.String("ack", ack.Reference))
	return Outcome{Kind: OutcomeSucceeded, Record: &rec, Ack: ack}
}

func submitterName(s Submitter) string {
	if named, ok := s.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", s)
}
