package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type EventPublisher struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	enabled      bool
	log          *zap.Logger
}

// NewEventPublisher connects to RabbitMQ and declares the topic exchange.
// An empty URI yields a disabled publisher.
func NewEventPublisher(rabbitURI, exchangeName string, log *zap.Logger) (*EventPublisher, error) {
	if rabbitURI == "" {
		log.Warn("RabbitMQ URI is empty, event publishing is disabled")
		return &EventPublisher{enabled: false, log: log}, nil
	}

	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &EventPublisher{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		enabled:      true,
		log:          log,
	}, nil
}

// NewEvent builds a ResourceEvent with a fresh id.
func NewEvent(entity, action string, ids []string, data any) *ResourceEvent {
	return &ResourceEvent{
		EventID:   uuid.NewString(),
		EventType: RoutingKey(entity, action),
		Entity:    entity,
		Action:    action,
		IDs:       ids,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// Publish sends a resource event. Failures are logged, never returned.
func (p *EventPublisher) Publish(ctx context.Context, ev *ResourceEvent) {
	if !p.enabled {
		p.log.Debug("event publishing is disabled, skipping event", zap.String("routingKey", ev.EventType))
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("failed to marshal event", zap.String("routingKey", ev.EventType), zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchangeName, // exchange
		ev.EventType,   // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    ev.EventID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		p.log.Error("failed to publish event", zap.String("routingKey", ev.EventType), zap.Error(err))
		return
	}
	p.log.Debug("published event", zap.String("routingKey", ev.EventType))
}

func (p *EventPublisher) Close() error {
	if !p.enabled {
		return nil
	}

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Warn("failed to close RabbitMQ channel", zap.Error(err))
		}
	}

	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}
	return nil
}
