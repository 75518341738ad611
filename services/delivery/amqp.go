package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"land_leads_app_go/models"
	"land_leads_app_go/services/leadform"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// LeadsExchange is the topic exchange every lead is published to
const LeadsExchange = "leads.topic"

const confirmTimeout = 10 * time.Second

// ErrBrokerClosed is returned once the broker connection or channel has gone away
var ErrBrokerClosed = errors.New("broker connection is closed")

// RoutingKey is the AMQP routing key for campaign leads
func RoutingKey(campaign string) string {
	return "lead." + campaign
}

// AMQPSubmitter publishes leads to RabbitMQ and waits for the publisher confirm
type AMQPSubmitter struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger

	healthy   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewAMQPSubmitter dials url, declares the leads exchange and enables publisher confirms
func NewAMQPSubmitter(url string, logger *zap.Logger) (*AMQPSubmitter, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	if err := ch.ExchangeDeclare(LeadsExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to declare topic exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to activate publisher confirms: %w", err)
	}

	a := &AMQPSubmitter{
		conn:    c,
		channel: ch,
		logger:  logger,
		done:    make(chan struct{}),
	}
	a.healthy.Store(true)

	connClosed := c.NotifyClose(make(chan *amqp.Error, 1))
	chanClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		select {
		case err := <-connClosed:
			a.healthy.Store(false)
			logger.Warn("RabbitMQ connection closed", zap.Any("error", err))
		case err := <-chanClosed:
			a.healthy.Store(false)
			logger.Warn("RabbitMQ channel closed", zap.Any("error", err))
		case <-a.done:
		}
	}()

	logger.Info("connected to RabbitMQ", zap.String("exchange", LeadsExchange))
	return a, nil
}

// Name labels this submitter in metrics
func (a *AMQPSubmitter) Name() string { return "amqp" }

// Submit publishes rec as a persistent JSON message and blocks until the broker confirms it
func (a *AMQPSubmitter) Submit(ctx context.Context, rec models.SubmissionRecord) (leadform.Ack, error) {
	if !a.healthy.Load() {
		return leadform.Ack{}, ErrBrokerClosed
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return leadform.Ack{}, fmt.Errorf("failed to serialize lead: %w", err)
	}

	deferred, err := a.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		LeadsExchange,
		RoutingKey(rec.Campaign),
		false,
		false,
		amqp.Publishing{
			MessageId:    rec.ID,
			Timestamp:    rec.SubmittedAt,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return leadform.Ack{}, fmt.Errorf("publish call failed: %w", err)
	}

	timer := time.NewTimer(confirmTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return leadform.Ack{}, ctx.Err()
	case <-deferred.Done():
		if !deferred.Acked() {
			return leadform.Ack{}, errors.New("RabbitMQ NACK received: lead not persisted")
		}
		return leadform.Ack{Reference: fmt.Sprintf("amqp:%d", deferred.DeliveryTag)}, nil
	case <-timer.C:
		return leadform.Ack{}, errors.New("publisher confirm timeout")
	}
}

// Close shuts the channel and connection down
func (a *AMQPSubmitter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.done)
		a.healthy.Store(false)
		if a.channel != nil {
			a.channel.Close()
		}
		if a.conn != nil {
			err = a.conn.Close()
		}
	})
	return err
}
