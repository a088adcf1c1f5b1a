package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

// Publisher delivers settlement events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
	Close() error
}

// AMQPPublisher publishes events to a topic exchange on an AMQP broker
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
	log      *logger.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// NewAMQPPublisher connects to the broker and declares the topic exchange
func NewAMQPPublisher(cfg config.AMQPConfig, log *logger.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	defer channel.Close()

	if err := channel.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	log.Info("Connected to AMQP broker", "exchange", cfg.Exchange)
	return &AMQPPublisher{
		conn:     conn,
		exchange: cfg.Exchange,
		log:      log,
	}, nil
}

// Publish marshals the payload to JSON and publishes it under the routing key
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	channel, err := p.channel()
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        body,
	}
	if err := channel.Publish(p.exchange, routingKey, false, false, msg); err != nil {
		// Drop the cached channel so the next publish redials it.
		p.mu.Lock()
		p.ch = nil
		p.mu.Unlock()
		return fmt.Errorf("failed to publish %s event: %w", routingKey, err)
	}
	return nil
}

// channel returns the cached channel, opening one when needed
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		return p.ch, nil
	}

	channel, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	p.ch = channel
	return channel, nil
}

// Close shuts down the channel and connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			p.log.Warn("Error closing AMQP channel", "error", err)
		}
		p.ch = nil
	}
	p.mu.Unlock()
	return p.conn.Close()
}

// LogPublisher writes events to the structured log instead of a broker.
// Used when no broker URL is configured or the broker is unreachable at
// startup, so event emission never blocks settlement.
type LogPublisher struct {
	log *logger.Logger
}

// NewLogPublisher creates a publisher that only logs
func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish logs the event at info level
func (p *LogPublisher) Publish(_ context.Context, routingKey string, payload interface{}) error {
	p.log.Info("Event published", "routing_key", routingKey, "payload", payload)
	return nil
}

// Close is a no-op
func (p *LogPublisher) Close() error {
	return nil
}

// NewPublisher returns an AMQP publisher when a broker is configured and
// reachable, degrading to the logging publisher otherwise
func NewPublisher(cfg config.AMQPConfig, log *logger.Logger) Publisher {
	if cfg.URL == "" {
		log.Info("No AMQP broker configured, events will be logged only")
		return NewLogPublisher(log)
	}

	publisher, err := NewAMQPPublisher(cfg, log)
	if err != nil {
		log.Warn("AMQP broker unreachable, events will be logged only", "error", err)
		return NewLogPublisher(log)
	}
	return publisher
}
