package delivery

import (
	"context"
	"errors"
	"fmt"

	"land_leads_app_go/config"
	"land_leads_app_go/models"
	"land_leads_app_go/services"
	"land_leads_app_go/services/campaigns"
	"land_leads_app_go/services/leadform"

	"go.uber.org/zap"
)

// CampaignLookup resolves the campaign a lead belongs to
type CampaignLookup interface {
	Get(slug string) (*campaigns.Campaign, error)
}

// EmailSubmitter delivers each lead as a notification email to the sales inbox
type EmailSubmitter struct {
	cfg       *config.Config
	campaigns CampaignLookup
	logger    *zap.Logger
}

// NewEmailSubmitter checks there is somewhere to send leads. In email test mode
// messages are only logged, so recipients are optional.
func NewEmailSubmitter(cfg *config.Config, lookup CampaignLookup, logger *zap.Logger) (*EmailSubmitter, error) {
	if !cfg.EmailTestMode {
		if len(cfg.LeadNotifyTo) == 0 {
			return nil, errors.New("LEAD_NOTIFY_TO is required for SUBMITTER=email")
		}
		if cfg.ResendAPIKey == "" {
			return nil, errors.New("RESEND_API_KEY is required for SUBMITTER=email")
		}
	}
	return &EmailSubmitter{cfg: cfg, campaigns: lookup, logger: logger}, nil
}

// Name labels this submitter in metrics
func (s *EmailSubmitter) Name() string { return "email" }

// Submit renders and sends the notification. The Resend message id is the reference.
func (s *EmailSubmitter) Submit(ctx context.Context, rec models.SubmissionRecord) (leadform.Ack, error) {
	if err := ctx.Err(); err != nil {
		return leadform.Ack{}, err
	}

	title := rec.Campaign
	var fields []services.LeadField
	if c, err := s.campaigns.Get(rec.Campaign); err == nil {
		title = c.Title
		fields = leadFields(c.Schema, rec)
	} else {
		s.logger.Warn("lead for unregistered campaign", zap.String("campaign", rec.Campaign))
		fields = leadFields(nil, rec)
	}

	email, err := services.BuildLeadNotificationEmail(s.cfg.LeadNotifyTo, title, rec, fields)
	if err != nil {
		return leadform.Ack{}, fmt.Errorf("build lead email: %w", err)
	}

	id, err := services.SendEmail(ctx, s.cfg, email)
	if err != nil {
		return leadform.Ack{}, err
	}
	if id == "" {
		id = "logged:" + rec.ID
	}
	return leadform.Ack{Reference: id}, nil
}

// leadFields lists the record values in schema order with their labels
func leadFields(schema *leadform.Schema, rec models.SubmissionRecord) []services.LeadField {
	if schema == nil {
		out := make([]services.LeadField, 0, len(rec.Fields))
		for _, name := range sortedKeys(rec.Fields) {
			out = append(out, services.LeadField{Label: leadform.HumanizeFieldName(name), Value: rec.Fields[name]})
		}
		return out
	}

	out := make([]services.LeadField, 0, len(schema.Fields()))
	for _, f := range schema.Fields() {
		out = append(out, services.LeadField{Label: f.Label, Value: rec.Fields[f.Name]})
	}
	return out
}
