package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// ConsumerGroup is the Redis consumer group for mail workers.
	ConsumerGroup = "mail_workers"

	// DefaultBlockTimeout is how long to block waiting for jobs.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxAttempts is the delivery attempts before a job moves
	// to the dead-letter stream.
	DefaultMaxAttempts = 3

	// DefaultClaimIdle is the idle time before pending jobs from a
	// dead consumer are reclaimed.
	DefaultClaimIdle = 30 * time.Second

	// DefaultClaimInterval is how often to scan for stale pending jobs.
	DefaultClaimInterval = 10 * time.Second
)

// retryBackoff is the base delay between delivery attempts.
var retryBackoff = time.Second

// Worker consumes queued email jobs and delivers them through the
// wrapped Sender.
type Worker struct {
	redis         *redis.Client
	sender        Sender
	logger        *slog.Logger
	consumerID    string
	blockTimeout  time.Duration
	maxAttempts   int
	claimIdle     time.Duration
	claimInterval time.Duration
	claimStartID  string
	lastClaim     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates a mail worker. The consumerID must be stable per
// process so pending jobs can be reclaimed after a crash.
func NewWorker(client *redis.Client, sender Sender, logger *slog.Logger, consumerID string) *Worker {
	return &Worker{
		redis:         client,
		sender:        sender,
		logger:        logger.With("component", "mail.worker", "consumer_id", consumerID),
		consumerID:    consumerID,
		blockTimeout:  DefaultBlockTimeout,
		maxAttempts:   DefaultMaxAttempts,
		claimIdle:     DefaultClaimIdle,
		claimInterval: DefaultClaimInterval,
		claimStartID:  "0-0",
	}
}

// Run starts the worker loop. Blocks until the context is cancelled
// or Shutdown is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("mail worker started")

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()

		if draining {
			w.logger.Info("mail worker draining, stopping")
			return nil
		}

		if time.Since(w.lastClaim) >= w.claimInterval {
			w.claimStale(ctx)
			w.lastClaim = time.Now()
		}

		streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    ConsumerGroup,
			Consumer: w.consumerID,
			Streams:  []string{StreamKey, ">"},
			Count:    10,
			Block:    w.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("read mail stream failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				w.process(ctx, msg)
			}
		}
	}
}

// Shutdown drains the worker and waits for the loop to exit.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	done := w.done
	w.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.mu.Lock()
		if w.cancel != nil {
			w.cancel()
		}
		w.mu.Unlock()
		return ctx.Err()
	}
}

func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// claimStale takes over pending jobs from consumers that stopped
// acknowledging.
func (w *Worker) claimStale(ctx context.Context) {
	msgs, nextStart, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStartID,
		Count:    10,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Error("claim pending mail jobs failed", "error", err)
		}
		return
	}
	w.claimStartID = nextStart

	for _, msg := range msgs {
		w.process(ctx, msg)
	}
}

// process delivers one job, retrying before giving it to the DLQ.
// The message is acknowledged either way so it is not redelivered.
func (w *Worker) process(ctx context.Context, msg redis.XMessage) {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		w.deadLetter(ctx, msg, "missing payload")
		return
	}

	var job confirmationJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		w.deadLetter(ctx, msg, "malformed payload: "+err.Error())
		return
	}

	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		lastErr = w.sender.SendConfirmation(ctx, job.To, job.Username, job.ConfirmURL)
		if lastErr == nil {
			w.ack(ctx, msg.ID)
			w.logger.Info("confirmation email sent", "stream_id", msg.ID)
			return
		}
		if ctx.Err() != nil {
			return
		}
		if attempt < w.maxAttempts {
			time.Sleep(time.Duration(attempt) * retryBackoff)
		}
	}

	w.logger.Error("mail delivery failed",
		"stream_id", msg.ID,
		"attempts", w.maxAttempts,
		"error", lastErr,
	)
	w.deadLetter(ctx, msg, lastErr.Error())
}

func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, id).Err(); err != nil {
		w.logger.Error("ack mail job failed", "stream_id", id, "error", err)
	}
}

func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason string) {
	values := map[string]interface{}{"reason": reason}
	if payload, ok := msg.Values["payload"]; ok {
		values["payload"] = payload
	}

	if err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		ID:     "*",
		Values: values,
	}).Err(); err != nil {
		w.logger.Error("dead-letter mail job failed", "stream_id", msg.ID, "error", err)
	}
	w.ack(ctx, msg.ID)
}
