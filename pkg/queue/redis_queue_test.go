package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"filesmanager/pkg/domain"
)

func newTestQueue(t *testing.T, cfg RedisQueueConfig) (*RedisJobQueue, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	if cfg.Stream == "" {
		cfg.Stream = "test:thumbnails"
	}
	if cfg.Group == "" {
		cfg.Group = "test-group"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "consumer-1"
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	q, err := NewRedisJobQueue(client, cfg)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q, client
}

// readPending enqueues a job and reads it into the PEL of consumer-1.
func readPending(t *testing.T, q *RedisJobQueue) (domain.JobState, redis.XMessage) {
	t.Helper()
	ctx := context.Background()
	if err := q.ensureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	job, err := q.Enqueue(ctx, domain.ThumbnailJob{FileID: "file-1", UserID: "user-1"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-1",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("readgroup: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one pending message, got %+v", streams)
	}
	return job, streams[0].Messages[0]
}

func pendingCount(t *testing.T, q *RedisJobQueue) int64 {
	t.Helper()
	pending, err := q.client.XPending(context.Background(), q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	return pending.Count
}

func streamLen(t *testing.T, q *RedisJobQueue) int64 {
	t.Helper()
	n, err := q.client.XLen(context.Background(), q.stream).Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	return n
}

func TestRedisJobQueueEnqueueCarriesOnlyIdentifiers(t *testing.T) {
	q, _ := newTestQueue(t, RedisQueueConfig{})
	job, msg := readPending(t, q)

	if job.Status != domain.JobQueued {
		t.Fatalf("status = %q, want queued", job.Status)
	}
	if msg.Values["file_id"] != "file-1" || msg.Values["user_id"] != "user-1" || msg.Values["job_id"] != job.ID {
		t.Fatalf("unexpected stream payload: %+v", msg.Values)
	}
	if len(msg.Values) != 4 {
		t.Fatalf("stream entry should hold ids and timestamp only, got %+v", msg.Values)
	}
}

func TestRedisJobQueueEnqueueRequiresIDs(t *testing.T) {
	q, _ := newTestQueue(t, RedisQueueConfig{})
	if _, err := q.Enqueue(context.Background(), domain.ThumbnailJob{UserID: "u"}); err == nil {
		t.Fatalf("expected error without fileId")
	}
	if _, err := q.Enqueue(context.Background(), domain.ThumbnailJob{FileID: "f"}); err == nil {
		t.Fatalf("expected error without userId")
	}
}

func TestRedisJobQueueRequeueAndAckSuccess(t *testing.T) {
	q, _ := newTestQueue(t, RedisQueueConfig{})
	job, msg := readPending(t, q)
	ctx := context.Background()
	payload := domain.ThumbnailJob{FileID: job.FileID, UserID: job.UserID}

	if err := q.requeueAndAck(ctx, msg.ID, job.ID, payload); err != nil {
		t.Fatalf("requeue and ack: %v", err)
	}
	if n := pendingCount(t, q); n != 0 {
		t.Fatalf("expected no pending messages, got %d", n)
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-2",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("read requeued message: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one requeued message, got %+v", streams)
	}
	got := streams[0].Messages[0]
	if got.Values["job_id"] != job.ID || got.Values["file_id"] != job.FileID {
		t.Fatalf("unexpected requeued payload: %+v", got.Values)
	}
}

func TestRedisJobQueueRequeueAndAckFailureKeepsPendingMessage(t *testing.T) {
	q, _ := newTestQueue(t, RedisQueueConfig{})
	job, msg := readPending(t, q)

	canceledCtx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.requeueAndAck(canceledCtx, msg.ID, job.ID, domain.ThumbnailJob{FileID: job.FileID, UserID: job.UserID}); err == nil {
		t.Fatalf("expected requeueAndAck to fail on canceled context")
	}
	if n := pendingCount(t, q); n != 1 {
		t.Fatalf("expected original message to remain pending, got %d", n)
	}
	if n := streamLen(t, q); n != 1 {
		t.Fatalf("expected no new message in stream on failure, got len=%d", n)
	}
}

func TestRedisJobQueuePermanentFailureIsNotRetried(t *testing.T) {
	q, _ := newTestQueue(t, RedisQueueConfig{MaxRetries: 5})
	job, msg := readPending(t, q)
	ctx := context.Background()

	calls := 0
	q.handleMessage(ctx, msg, func(context.Context, Job) Result {
		calls++
		return Fail(KindFileNotFound, errors.New("File not found"))
	})

	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if n := streamLen(t, q); n != 0 {
		t.Fatalf("permanent failure must not requeue, stream len=%d", n)
	}
	if n := pendingCount(t, q); n != 0 {
		t.Fatalf("permanent failure must be acked, pending=%d", n)
	}
	state, ok, err := q.GetJob(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("get job: ok=%v err=%v", ok, err)
	}
	if state.Status != domain.JobFailed || state.ErrorKind != string(KindFileNotFound) || state.Error != "File not found" {
		t.Fatalf("unexpected job state: %+v", state)
	}
}

func TestRedisJobQueueInfrastructureFailureIsRequeued(t *testing.T) {
	q, _ := newTestQueue(t, RedisQueueConfig{MaxRetries: 2})
	job, msg := readPending(t, q)
	ctx := context.Background()

	q.handleMessage(ctx, msg, func(context.Context, Job) Result {
		return Fail(KindInfrastructure, errors.New("disk full"))
	})

	state, _, _ := q.GetJob(ctx, job.ID)
	if state.Status != domain.JobQueued || state.Attempts != 1 {
		t.Fatalf("expected queued after first failure, got %+v", state)
	}
	if n := streamLen(t, q); n != 1 {
		t.Fatalf("expected requeued entry, stream len=%d", n)
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-1",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("read requeued: %v", err)
	}
	q.handleMessage(ctx, streams[0].Messages[0], func(_ context.Context, j Job) Result {
		if j.Attempt != 2 {
			t.Fatalf("attempt = %d, want 2", j.Attempt)
		}
		return Fail(KindInfrastructure, errors.New("disk full"))
	})

	state, _, _ = q.GetJob(ctx, job.ID)
	if state.Status != domain.JobFailed || state.Attempts != 2 {
		t.Fatalf("expected failed after max retries, got %+v", state)
	}
	if n := streamLen(t, q); n != 0 {
		t.Fatalf("expected stream drained, len=%d", n)
	}
}

func TestRedisJobQueueDropsEntryWithoutJobID(t *testing.T) {
	q, _ := newTestQueue(t, RedisQueueConfig{})
	ctx := context.Background()
	if err := q.ensureGroup(ctx); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.stream, Values: map[string]any{"file_id": "f"}}).Err(); err != nil {
		t.Fatalf("xadd: %v", err)
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group: q.group, Consumer: "consumer-1", Streams: []string{q.stream, ">"}, Count: 1, Block: 0,
	}).Result()
	if err != nil {
		t.Fatalf("readgroup: %v", err)
	}
	q.handleMessage(ctx, streams[0].Messages[0], func(context.Context, Job) Result {
		t.Fatalf("handler must not run for malformed entry")
		return Done()
	})
	if n := streamLen(t, q); n != 0 {
		t.Fatalf("malformed entry should be removed, len=%d", n)
	}
}

func TestRedisJobQueueStartProcessesBacklog(t *testing.T) {
	q, _ := newTestQueue(t, RedisQueueConfig{Block: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Enqueued before any consumer group exists.
	job, err := q.Enqueue(ctx, domain.ThumbnailJob{FileID: "file-9", UserID: "user-9"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan Job, 1)
	if err := q.Start(ctx, 2, func(_ context.Context, j Job) Result {
		done <- j
		return Done()
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case got := <-done:
		if got.ID != job.ID || got.Payload.FileID != "file-9" || got.Payload.UserID != "user-9" {
			t.Fatalf("unexpected job delivered: %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("job was not consumed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		state, _, _ := q.GetJob(context.Background(), job.ID)
		if state.Status == domain.JobCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never marked completed: %+v", state)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	q.Wait()
}

func TestRedisJobQueueReclaimsAbandonedEntries(t *testing.T) {
	q, _ := newTestQueue(t, RedisQueueConfig{ClaimIdle: time.Millisecond, Consumer: "survivor"})
	job, _ := readPending(t, q) // consumer-1 "crashes" holding the entry
	time.Sleep(20 * time.Millisecond)

	ctx := context.Background()
	msgs, err := q.claimPending(ctx, "survivor-0")
	if err != nil {
		t.Fatalf("claim pending: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected one reclaimed entry, got %d", len(msgs))
	}

	var calls atomic.Int32
	q.handleMessage(ctx, msgs[0], func(context.Context, Job) Result {
		calls.Add(1)
		return Done()
	})
	if calls.Load() != 1 {
		t.Fatalf("reclaimed job not handled")
	}
	state, _, _ := q.GetJob(ctx, job.ID)
	if state.Status != domain.JobCompleted {
		t.Fatalf("status = %q, want completed", state.Status)
	}
	if n := pendingCount(t, q); n != 0 {
		t.Fatalf("pending = %d after reclaim", n)
	}
}

func TestRedisJobQueueStopsJobWhoseConsumersKeepDying(t *testing.T) {
	q, _ := newTestQueue(t, RedisQueueConfig{MaxRetries: 2, ClaimIdle: time.Millisecond})
	job, _ := readPending(t, q)
	ctx := context.Background()

	// Two deliveries that crashed before reporting a result.
	for i := 0; i < 2; i++ {
		if _, err := q.markProcessing(ctx, job.ID, domain.ThumbnailJob{FileID: job.FileID, UserID: job.UserID}); err != nil {
			t.Fatalf("mark processing: %v", err)
		}
	}
	time.Sleep(20 * time.Millisecond)
	msgs, err := q.claimPending(ctx, "survivor-0")
	if err != nil || len(msgs) != 1 {
		t.Fatalf("claim pending: n=%d err=%v", len(msgs), err)
	}

	q.handleMessage(ctx, msgs[0], func(context.Context, Job) Result {
		t.Fatalf("handler must not run once deliveries exceed max retries")
		return Done()
	})

	state, ok, err := q.GetJob(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("get job: ok=%v err=%v", ok, err)
	}
	if state.Status != domain.JobFailed || state.ErrorKind != string(KindInfrastructure) || state.Attempts != 3 {
		t.Fatalf("unexpected job state: %+v", state)
	}
	if n := pendingCount(t, q); n != 0 {
		t.Fatalf("pending = %d, want 0", n)
	}
	if n := streamLen(t, q); n != 0 {
		t.Fatalf("stream len = %d, want 0", n)
	}
}
