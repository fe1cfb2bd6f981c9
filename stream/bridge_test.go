package stream

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"

	"taskboard-api/domain"
)

func newBridgeFixture(t *testing.T) (*redis.Client, *Hub, context.CancelFunc) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	logger, _ := test.NewNullLogger()
	hub := NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go SubscribeEvents(ctx, logger, rc, "board-events", hub)
	t.Cleanup(cancel)

	// Give the subscriber a moment to attach before publishing.
	deadline := time.Now().Add(time.Second)
	for hubSubscribed(ctx, rc, "board-events") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("bridge never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return rc, hub, cancel
}

func hubSubscribed(ctx context.Context, rc *redis.Client, channel string) int64 {
	counts, err := rc.PubSubNumSub(ctx, channel).Result()
	if err != nil {
		return 0
	}
	return counts[channel]
}

func TestBridgeDeliversPublishedEvents(t *testing.T) {
	rc, hub, _ := newBridgeFixture(t)
	s := hub.Register("alice")
	defer hub.Unregister(s)

	pub := NewRedisPublisher(rc, "board-events")
	task := domain.Task{ID: "t1", Title: "Ship it", Status: domain.StatusTodo, Version: 7}
	if err := pub.Publish(context.Background(), domain.Event{Message: "New task created: Ship it", Task: &task}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-s.Events:
		if ev.Message != "New task created: Ship it" {
			t.Fatalf("unexpected message %q", ev.Message)
		}
		if ev.Task == nil || ev.Task.ID != "t1" || ev.Task.Version != 7 {
			t.Fatalf("task payload mangled: %+v", ev.Task)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered through the bridge")
	}
}

func TestBridgeSkipsMalformedPayloads(t *testing.T) {
	rc, hub, _ := newBridgeFixture(t)
	s := hub.Register("alice")
	defer hub.Unregister(s)

	ctx := context.Background()
	if err := rc.Publish(ctx, "board-events", "{not json").Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}
	pub := NewRedisPublisher(rc, "board-events")
	if err := pub.Publish(ctx, domain.Event{Message: "Task deleted: Old", TaskID: "t9"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-s.Events:
		if ev.Message != "Task deleted: Old" || ev.TaskID != "t9" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("valid event never delivered")
	}
}

func TestBridgeStopsOnCancel(t *testing.T) {
	rc, hub, cancel := newBridgeFixture(t)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for hubSubscribed(context.Background(), rc, "board-events") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("bridge did not unsubscribe after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
	_ = hub
}
