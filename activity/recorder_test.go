package activity

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/sirupsen/logrus/hooks/test"

	"taskboard-api/domain"
)

type stubQueue struct {
	mu       sync.Mutex
	messages []string
	block    chan struct{}
	err      error
}

func (q *stubQueue) EnqueueMessage(_ context.Context, content string, _ *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error) {
	if q.block != nil {
		<-q.block
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return azqueue.EnqueueMessagesResponse{}, q.err
	}
	q.messages = append(q.messages, content)
	return azqueue.EnqueueMessagesResponse{}, nil
}

func (q *stubQueue) snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.messages...)
}

func TestRecorderEnqueuesEntries(t *testing.T) {
	queue := &stubQueue{}
	logger, _ := test.NewNullLogger()
	rec := NewRecorder(queue, logger)

	entry := domain.ActivityEntry{UserID: "u1", Action: `Created task "Ship it"`, TaskID: "t1", Time: 42}
	if err := rec.Record(context.Background(), entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	rec.Close()

	got := queue.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected 1 enqueued message, got %d", len(got))
	}
	var decoded domain.ActivityEntry
	if err := json.Unmarshal([]byte(got[0]), &decoded); err != nil {
		t.Fatalf("enqueued payload is not valid JSON: %v", err)
	}
	if decoded != entry {
		t.Fatalf("expected %+v, got %+v", entry, decoded)
	}
}

func TestRecorderDropsWhenSaturated(t *testing.T) {
	t.Setenv("ACTIVITY_WORKERS", "1")
	t.Setenv("ACTIVITY_BUFFER", "1")

	queue := &stubQueue{block: make(chan struct{})}
	logger, _ := test.NewNullLogger()
	rec := NewRecorder(queue, logger)

	// First entry occupies the worker, second fills the buffer.
	_ = rec.Record(context.Background(), domain.ActivityEntry{UserID: "u1", Action: "a"})
	deadline := time.Now().Add(time.Second)
	for {
		if err := rec.Record(context.Background(), domain.ActivityEntry{UserID: "u1", Action: "b"}); err == nil {
			if time.Now().After(deadline) {
				t.Fatal("buffer never saturated")
			}
			continue
		}
		break
	}

	if err := rec.Record(context.Background(), domain.ActivityEntry{UserID: "u1", Action: "c"}); err == nil {
		t.Fatal("expected saturation error")
	}
	close(queue.block)
	rec.Close()
}

func TestRecorderSurvivesEnqueueFailure(t *testing.T) {
	queue := &stubQueue{err: context.DeadlineExceeded}
	logger, hook := test.NewNullLogger()
	rec := NewRecorder(queue, logger)

	if err := rec.Record(context.Background(), domain.ActivityEntry{UserID: "u1", Action: "a"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	rec.Close()

	found := false
	for _, e := range hook.AllEntries() {
		if e.Message != "" && e.Level.String() == "error" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an error log entry for the failed enqueue")
	}
}

func TestRecorderRejectsAfterClose(t *testing.T) {
	queue := &stubQueue{}
	logger, _ := test.NewNullLogger()
	rec := NewRecorder(queue, logger)
	rec.Close()

	if err := rec.Record(context.Background(), domain.ActivityEntry{UserID: "u1", Action: "a"}); err == nil {
		t.Fatal("expected error after Close")
	}
}
