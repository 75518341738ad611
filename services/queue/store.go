package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"land_leads_app_go/metrics"
	"land_leads_app_go/models"

	"go.uber.org/zap"
)

// KeySuffix is appended to a campaign name to form its queue key
const KeySuffix = "_inquiries"

// ErrEmptyCampaign is returned by backends asked to write without a partition
var ErrEmptyCampaign = errors.New("campaign is required")

// Key names the queue of a campaign, e.g. "texas-land" -> "texas-land_inquiries"
func Key(campaign string) string {
	return campaign + KeySuffix
}

// Backend is the raw storage under a Store. Append must be atomic per process:
// either the record is visible at the head of the queue or nothing changed.
type Backend interface {
	Append(ctx context.Context, key string, rec models.SubmissionRecord) error
	ReadAll(ctx context.Context, key string) ([]models.SubmissionRecord, error)
}

// Store is the campaign-partitioned submission queue.
// It never surfaces storage failures: appends are logged, reads degrade to empty.
type Store struct {
	backend Backend
	logger  *zap.Logger
}

// NewStore wraps backend; a nil logger disables logging
func NewStore(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, logger: logger}
}

// Append puts rec at the front of campaign's queue
func (s *Store) Append(ctx context.Context, campaign string, rec models.SubmissionRecord) {
	if err := s.append(ctx, campaign, rec); err != nil {
		metrics.QueueAppendFailures.WithLabelValues(campaign).Inc()
		s.logger.Error("failed to append inquiry to queue",
			zap.String("campaign", campaign),
			zap.String("record_id", rec.ID),
			zap.Error(err))
	}
}

func (s *Store) append(ctx context.Context, campaign string, rec models.SubmissionRecord) (err error) {
	if strings.TrimSpace(campaign) == "" {
		return ErrEmptyCampaign
	}
	if rec.Campaign != campaign {
		return fmt.Errorf("record belongs to campaign %q, not %q", rec.Campaign, campaign)
	}

	// Backend panics are reported as append errors.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue backend panic: %v", r)
		}
	}()
	return s.backend.Append(ctx, Key(campaign), rec.Clone())
}

// ReadAll returns campaign's queue, most recent first.
// Unknown campaigns and unreadable storage both yield an empty slice.
func (s *Store) ReadAll(ctx context.Context, campaign string) []models.SubmissionRecord {
	records, err := s.readAll(ctx, campaign)
	if err != nil {
		metrics.QueueReadFailures.WithLabelValues(campaign).Inc()
		s.logger.Warn("failed to read inquiry queue, returning empty",
			zap.String("campaign", campaign),
			zap.Error(err))
		return []models.SubmissionRecord{}
	}
	if records == nil {
		return []models.SubmissionRecord{}
	}
	return records
}

func (s *Store) readAll(ctx context.Context, campaign string) (records []models.SubmissionRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue backend panic: %v", r)
		}
	}()
	return s.backend.ReadAll(ctx, Key(campaign))
}
