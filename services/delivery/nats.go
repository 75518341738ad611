package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"land_leads_app_go/models"
	"land_leads_app_go/services/leadform"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// LeadsStream is the JetStream stream that captures every lead subject
const LeadsStream = "LEADS"

// Subject is the JetStream subject for campaign leads
func Subject(campaign string) string {
	return "leads." + campaign
}

// NATSSubmitter publishes leads to JetStream. The record id is the message id,
// so a retried publish inside the duplicate window is stored once.
type NATSSubmitter struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *zap.Logger
}

// NewNATSSubmitter connects to url and makes sure the LEADS stream exists
func NewNATSSubmitter(ctx context.Context, url string, logger *zap.Logger) (*NATSSubmitter, error) {
	conn, err := nats.Connect(url, nats.Name("land-leads"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       LeadsStream,
		Subjects:   []string{"leads.>"},
		Storage:    jetstream.FileStorage,
		Duplicates: 10 * time.Minute,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure %s stream: %w", LeadsStream, err)
	}

	logger.Info("connected to NATS JetStream", zap.String("stream", LeadsStream))
	return &NATSSubmitter{conn: conn, js: js, logger: logger}, nil
}

// Name labels this submitter in metrics
func (n *NATSSubmitter) Name() string { return "nats" }

// Submit publishes rec and returns the stream sequence as the reference
func (n *NATSSubmitter) Submit(ctx context.Context, rec models.SubmissionRecord) (leadform.Ack, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return leadform.Ack{}, fmt.Errorf("failed to serialize lead: %w", err)
	}

	ack, err := n.js.Publish(ctx, Subject(rec.Campaign), data, jetstream.WithMsgID(rec.ID))
	if err != nil {
		return leadform.Ack{}, fmt.Errorf("publish lead: %w", err)
	}
	if ack.Duplicate {
		n.logger.Debug("duplicate lead publish", zap.String("record_id", rec.ID))
	}

	return leadform.Ack{Reference: fmt.Sprintf("%s:%d", ack.Stream, ack.Sequence)}, nil
}

// Close drains the connection
func (n *NATSSubmitter) Close() error {
	return n.conn.Drain()
}
