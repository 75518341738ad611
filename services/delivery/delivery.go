// Package delivery holds the submitters that hand a validated lead to the system that owns it.
package delivery

import (
	"context"
	"fmt"
	"sort"

	"land_leads_app_go/config"
	"land_leads_app_go/services/leadform"

	"go.uber.org/zap"
)

// New builds the submitter named by SUBMITTER. The returned func releases its connections.
func New(ctx context.Context, cfg *config.Config, lookup CampaignLookup, logger *zap.Logger) (leadform.Submitter, func() error, error) {
	noop := func() error { return nil }
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("delivery")

	switch cfg.Submitter {
	case config.SubmitterSimulated, "":
		return leadform.SimulatedSubmitter{Delay: cfg.SimulatedSubmitDelay}, noop, nil

	case config.SubmitterEmail:
		s, err := NewEmailSubmitter(cfg, lookup, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case config.SubmitterAMQP:
		s, err := NewAMQPSubmitter(cfg.RabbitMQURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.SubmitterNATS:
		s, err := NewNATSSubmitter(ctx, cfg.NATSURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown SUBMITTER %q", cfg.Submitter)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
