package messaging

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	connectMaxRetries = 5
	connectRetryDelay = 5 * time.Second
)

// Connect подключается к RabbitMQ с повторными попытками. Брокер может
// стартовать дольше сервиса, поэтому первая неудача не фатальна.
func Connect(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < connectMaxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying...",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", connectMaxRetries),
			zap.Duration("delay", connectRetryDelay),
			zap.Error(err))
		time.Sleep(connectRetryDelay)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", connectMaxRetries, err)
}
