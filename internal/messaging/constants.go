package messaging

// Имена сущностей RabbitMQ.
const (
	DeadLetterExchangeName = "storyboard_generation_tasks_dlx"
	DeadLetterQueueName    = "storyboard_generation_tasks_dlq"
	DeadLetterRoutingKey   = "dlq"
)
