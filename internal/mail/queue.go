package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// StreamKey is the Redis stream for outgoing email jobs.
	StreamKey = "stream:mail"

	// DeadLetterStreamKey is the Redis stream for jobs that exhausted
	// their delivery attempts.
	DeadLetterStreamKey = "stream:mail:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 10000

	// PublishTimeout is the max time to wait for the Redis publish.
	PublishTimeout = 200 * time.Millisecond
)

// confirmationJob is the wire format of a queued confirmation email.
type confirmationJob struct {
	To         string `json:"to"`
	Username   string `json:"u"`
	ConfirmURL string `json:"url"`
	EnqueuedAt int64  `json:"t"`
}

// QueueSender implements Sender by enqueueing jobs to a Redis stream.
// A Worker consumes the stream and performs the SMTP delivery, so the
// signup request does not wait on the mail relay.
type QueueSender struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewQueueSender creates a queue-backed sender.
func NewQueueSender(client *redis.Client, logger *slog.Logger) *QueueSender {
	return &QueueSender{
		redis:  client,
		logger: logger.With("component", "mail.queue"),
	}
}

// SendConfirmation enqueues the confirmation email.
func (q *QueueSender) SendConfirmation(ctx context.Context, to, username, confirmURL string) error {
	job := confirmationJob{
		To:         to,
		Username:   username,
		ConfirmURL: confirmURL,
		EnqueuedAt: time.Now().UnixMilli(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal mail job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	id, err := q.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue mail job: %w", err)
	}

	q.logger.Debug("mail job enqueued", "stream_id", id)
	return nil
}
