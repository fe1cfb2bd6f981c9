// Package activity hands audit entries to the external activity service by
// enqueueing them onto a storage queue. Delivery is fire and forget: the
// board mutation has already committed by the time an entry is recorded,
// so enqueue failures are logged and dropped, never surfaced.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

var errRecorderSaturated = errors.New("activity recorder buffer is saturated")

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// Recorder buffers activity entries and enqueues them from a small worker
// pool so recording never blocks a mutation request.
type Recorder struct {
	queue   queueClient
	logger  *log.Logger
	timeout time.Duration
	jobs    chan domain.ActivityEntry
	wg      sync.WaitGroup
}

// NewQueueClient creates the activity queue client from a connection string.
func NewQueueClient(connStr, queueName string) (*azqueue.QueueClient, error) {
	return azqueue.NewQueueClientFromConnectionString(connStr, queueName, nil)
}

// NewRecorder starts a Recorder on the given queue. Worker count, buffer
// size and enqueue timeout come from the environment with sane defaults.
func NewRecorder(queue queueClient, logger *log.Logger) *Recorder {
	if queue == nil {
		panic("activity: queue client is required")
	}
	if logger == nil {
		panic("activity: logger is required")
	}

	r := &Recorder{
		queue:   queue,
		logger:  logger,
		timeout: envDur("ACTIVITY_ENQUEUE_TIMEOUT", 30*time.Second),
		jobs:    make(chan domain.ActivityEntry, envInt("ACTIVITY_BUFFER", 1024)),
	}
	workers := envInt("ACTIVITY_WORKERS", 4)
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	logger.Infof("activity recorder started, workers: %d, buffer: %d", workers, cap(r.jobs))
	return r
}

// Record hands the entry to the worker pool without blocking. A saturated
// buffer drops the entry; the caller logs the returned error and moves on.
func (r *Recorder) Record(_ context.Context, entry domain.ActivityEntry) error {
	if ok, closed := trySend(r.jobs, entry); closed {
		return errors.New("activity recorder is closed")
	} else if !ok {
		return errRecorderSaturated
	}
	return nil
}

// Close stops accepting entries and drains the buffer.
func (r *Recorder) Close() {
	close(r.jobs)
	r.wg.Wait()
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for entry := range r.jobs {
		payload, err := json.Marshal(entry)
		if err != nil {
			r.logger.Errorf("activity marshal failed: %v", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		_, err = r.queue.EnqueueMessage(ctx, string(payload), nil)
		cancel()
		if err != nil {
			r.logger.WithFields(log.Fields{"user": entry.UserID, "task": entry.TaskID}).
				Errorf("activity enqueue failed: %v", err)
		}
	}
}

func trySend(ch chan domain.ActivityEntry, entry domain.ActivityEntry) (ok bool, closed bool) {
	defer func() {
		if recover() != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- entry:
		return true, false
	default:
		return false, false
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
