package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// TaskPublisher defines the interface for publishing tasks to the generation queue.
type TaskPublisher interface {
	PublishTask(ctx context.Context, payload GenerationTaskPayload) error
}

// rabbitMQPublisher implements TaskPublisher for RabbitMQ.
type rabbitMQPublisher struct {
	ch        *amqp.Channel
	queueName string
	logger    *zap.Logger
	mu        sync.Mutex
}

// QueueArgs возвращает аргументы очереди задач. Выделено, чтобы publisher и
// consumer объявляли очередь с одинаковыми параметрами (иначе RabbitMQ отклонит
// повторное объявление).
func QueueArgs() amqp.Table {
	return amqp.Table{
		"x-queue-mode":              "lazy",
		"x-dead-letter-exchange":    DeadLetterExchangeName,
		"x-dead-letter-routing-key": DeadLetterRoutingKey,
	}
}

// NewRabbitMQTaskPublisher creates a new instance of TaskPublisher.
// Паблишер объявляет очередь сам: это делает систему устойчивой к порядку
// запуска сервисов.
func NewRabbitMQTaskPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (TaskPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("task publisher: failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		QueueArgs(),
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("task publisher: failed to declare queue '%s': %w", queueName, err)
	}

	logger.Info("Task publisher initialized", zap.String("queue", queueName))
	return &rabbitMQPublisher{
		ch:        ch,
		queueName: queueName,
		logger:    logger.Named("TaskPublisher"),
	}, nil
}

// PublishTask публикует задачу в очередь с persistent delivery mode.
func (p *rabbitMQPublisher) PublishTask(ctx context.Context, payload GenerationTaskPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return errors.New("publisher channel is closed")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		"",          // default exchange
		p.queueName, // routing key = queue name
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: payload.TaskID,
			Body:          body,
			DeliveryMode:  amqp.Persistent,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish task",
			zap.String("taskID", payload.TaskID),
			zap.String("type", string(payload.Type)),
			zap.Error(err))
		return fmt.Errorf("failed to publish task: %w", err)
	}

	p.logger.Debug("Task published",
		zap.String("taskID", payload.TaskID),
		zap.String("type", string(payload.Type)),
		zap.String("storyID", payload.StoryID.String()))
	return nil
}

// Close закрывает канал паблишера.
func (p *rabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		err := p.ch.Close()
		p.ch = nil
		return err
	}
	return nil
}
