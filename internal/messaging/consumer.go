package messaging

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"storyboard-server/internal/config"
)

// DeliveryHandler обрабатывает одно сообщение. Возвращает true, если сообщение
// должно быть подтверждено (ack), и false для отказа (nack без requeue, уходит в DLQ).
type DeliveryHandler interface {
	HandleDelivery(ctx context.Context, msg amqp.Delivery) bool
}

// Consumer читает очередь задач и передает сообщения обработчику.
type Consumer struct {
	conn    *amqp.Connection
	cfg     config.RabbitMQConfig
	handler DeliveryHandler
	logger  *zap.Logger
}

// NewConsumer создает новый Consumer.
func NewConsumer(conn *amqp.Connection, cfg config.RabbitMQConfig, handler DeliveryHandler, logger *zap.Logger) *Consumer {
	return &Consumer{
		conn:    conn,
		cfg:     cfg,
		handler: handler,
		logger:  logger.Named("Consumer"),
	}
}

// Run объявляет топологию и обрабатывает сообщения до отмены контекста либо
// закрытия канала доставки.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := c.declareTopology(ch); err != nil {
		return err
	}

	// Prefetch ограничивает число необработанных задач на воркере.
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.cfg.TaskQueue,
		c.cfg.ConsumerName,
		false, // auto-ack выключен, подтверждаем вручную
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer on queue '%s': %w", c.cfg.TaskQueue, err)
	}

	c.logger.Info("Consumer started, waiting for messages...", zap.String("queue", c.cfg.TaskQueue))

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("Consumer channel closed by RabbitMQ")
				return nil
			}
			if c.handler.HandleDelivery(ctx, msg) {
				if ackErr := msg.Ack(false); ackErr != nil {
					c.logger.Error("Failed to ack message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(ackErr))
				}
			} else {
				// requeue=false: сообщение уходит в DLQ через DLX очереди
				if nackErr := msg.Nack(false, false); nackErr != nil {
					c.logger.Error("Failed to nack message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(nackErr))
				}
			}
		case <-ctx.Done():
			c.logger.Info("Context cancelled, stopping consumer...")
			return nil
		}
	}
}

// declareTopology объявляет DLX, DLQ и основную очередь задач.
func (c *Consumer) declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		DeadLetterExchangeName,
		"direct",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare dead-letter exchange: %w", err)
	}

	dlq, err := ch.QueueDeclare(DeadLetterQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %w", err)
	}
	if err := ch.QueueBind(dlq.Name, DeadLetterRoutingKey, DeadLetterExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead-letter queue: %w", err)
	}

	q, err := ch.QueueDeclare(
		c.cfg.TaskQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		QueueArgs(),
	)
	if err != nil {
		return fmt.Errorf("failed to declare task queue '%s': %w", c.cfg.TaskQueue, err)
	}

	c.logger.Info("Task queue declared",
		zap.String("queue", q.Name),
		zap.Int("messages", q.Messages),
		zap.Int("consumers", q.Consumers))
	return nil
}
