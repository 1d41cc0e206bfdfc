package worker

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	jobName = "storyboard_worker"
)

var (
	// Общий реестр для всех метрик этого воркера
	registry = prometheus.NewRegistry()

	tasksReceived = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyboard_worker_tasks_received_total",
			Help: "Total number of tasks received by the worker, partitioned by task type.",
		},
		[]string{"type"},
	)
	tasksFailed = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyboard_worker_tasks_failed_total",
			Help: "Total number of tasks failed, partitioned by task type and failure reason.",
		},
		[]string{"type", "reason"},
	)
	tasksSucceeded = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyboard_worker_tasks_succeeded_total",
			Help: "Total number of tasks successfully processed, partitioned by task type.",
		},
		[]string{"type"},
	)
	taskDuration = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyboard_worker_task_duration_seconds",
			Help:    "Histogram of task processing durations, partitioned by task type.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"type"},
	)
	roundsFinalized = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyboard_worker_generation_rounds_finalized_total",
			Help: "Total number of fan-out generation rounds finalized, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	// Pusher для отправки метрик в Pushgateway
	pusher *push.Pusher
)

// InitMetricsPusher инициализирует клиент Pushgateway.
func InitMetricsPusher(pushgatewayURL string) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
		log.Printf("[Metrics] Warning: could not get hostname: %v", err)
	}
	instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	log.Printf("[Metrics] Initializing Pushgateway pusher for job '%s' with instance '%s' to %s", jobName, instanceID, pushgatewayURL)

	pusher = push.New(pushgatewayURL, jobName).Gatherer(registry).Grouping("instance", instanceID)

	if err := pusher.Push(); err != nil {
		return fmt.Errorf("could not push initial metrics to Pushgateway: %w", err)
	}
	return nil
}

// StartMetricsPusher запускает горутину периодической отправки метрик.
func StartMetricsPusher(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			if pusher == nil {
				ticker.Stop()
				return
			}
			_ = pushMetrics()
		}
	}()
	log.Printf("[Metrics] Started periodic pusher with interval %v", interval)
}

// pushMetrics отправляет текущие метрики в Pushgateway.
func pushMetrics() error {
	if pusher == nil {
		return errors.New("pusher not initialized")
	}
	if err := pusher.Push(); err != nil {
		log.Printf("[Metrics] Error pushing metrics to Pushgateway: %v", err)
		return err
	}
	return nil
}

// CleanupMetrics удаляет метрики этого инстанса из Pushgateway.
// Должна вызываться через defer в main.
func CleanupMetrics() {
	if pusher == nil {
		return
	}
	if err := pusher.Delete(); err != nil {
		log.Printf("[Metrics] Error deleting metrics from Pushgateway: %v", err)
	}
}

func metricsTaskReceived(taskType string) {
	tasksReceived.WithLabelValues(taskType).Inc()
}

func metricsTaskSucceeded(taskType string, duration time.Duration) {
	tasksSucceeded.WithLabelValues(taskType).Inc()
	taskDuration.WithLabelValues(taskType).Observe(duration.Seconds())
}

func metricsTaskFailed(taskType, reason string, duration time.Duration) {
	tasksFailed.WithLabelValues(taskType, reason).Inc()
	taskDuration.WithLabelValues(taskType).Observe(duration.Seconds())
}

func metricsRoundFinalized(outcome string) {
	roundsFinalized.WithLabelValues(outcome).Inc()
}
