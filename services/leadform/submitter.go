package leadform

import (
	"context"
	"errors"
	"time"

	"land_leads_app_go/models"
)

// Ack is the backend's receipt for a delivered lead
type Ack struct {
	Reference string
}

// Submitter delivers a lead to whatever system owns it. It is the network
// boundary of the pipeline; implementations should honour ctx cancellation.
type Submitter interface {
	Submit(ctx context.Context, rec models.SubmissionRecord) (Ack, error)
}

// SubmitterFunc adapts a function to Submitter
type SubmitterFunc func(ctx context.Context, rec models.SubmissionRecord) (Ack, error)

func (fn SubmitterFunc) Submit(ctx context.Context, rec models.SubmissionRecord) (Ack, error) {
	return fn(ctx, rec)
}

// DefaultSimulatedDelay matches the delay the landing pages used to fake a request
const DefaultSimulatedDelay = 1500 * time.Millisecond

// SimulatedSubmitter waits a fixed delay and always succeeds.
// With a long Delay it doubles as a slow backend.
type SimulatedSubmitter struct {
	Delay time.Duration
}

func (s SimulatedSubmitter) Submit(ctx context.Context, rec models.SubmissionRecord) (Ack, error) {
	if s.Delay <= 0 {
		return Ack{Reference: rec.ID}, nil
	}

	timer := time.NewTimer(s.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	case <-timer.C:
		return Ack{Reference: rec.ID}, nil
	}
}

// ErrBackendUnavailable is the default error of FailingSubmitter
var ErrBackendUnavailable = errors.New("lead backend unavailable")

// FailingSubmitter rejects every lead
type FailingSubmitter struct {
	Err error
}

func (s FailingSubmitter) Submit(ctx context.Context, rec models.SubmissionRecord) (Ack, error) {
	if s.Err != nil {
		return Ack{}, s.Err
	}
	return Ack{}, ErrBackendUnavailable
}
