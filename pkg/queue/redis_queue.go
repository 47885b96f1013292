package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"filesmanager/internal/util"
	"filesmanager/pkg/domain"
)

// Stream entry fields. Only identifiers travel through the stream; the
// worker re-reads everything else from the metadata store.
const (
	fieldJobID       = "job_id"
	fieldFileID      = "file_id"
	fieldUserID      = "user_id"
	fieldRequestedAt = "requested_at"
)

// Job is one delivery handed to a Handler.
type Job struct {
	ID      string
	Payload domain.ThumbnailJob
	// Attempt counts deliveries of this job, starting at 1.
	Attempt int
}

// Handler processes a job. It must be safe to run the same job more than
// once: delivery is at-least-once.
type Handler func(ctx context.Context, job Job) Result

// RedisJobQueue is a Redis Streams work queue with a consumer group.
// Each job also has an expiring status hash for observability.
type RedisJobQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	jobTTL       time.Duration
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	errorBackoff time.Duration
	maxLen       int64
	readCount    int64
	claimCount   int64
	logger       *slog.Logger

	groupOnce sync.Once
	groupErr  error
	wg        sync.WaitGroup
}

type RedisQueueConfig struct {
	Stream     string
	Group      string
	Consumer   string
	JobTTL     time.Duration
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
	ClaimCount int64
	Logger     *slog.Logger
}

// NewRedisJobQueue wraps client. Zero config values select defaults.
func NewRedisJobQueue(client *redis.Client, cfg RedisQueueConfig) (*RedisJobQueue, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "default"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = util.NewID()
	}
	jobTTL := cfg.JobTTL
	if jobTTL <= 0 {
		jobTTL = 24 * time.Hour
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay < 0 {
		retryDelay = 0
	} else if retryDelay == 0 {
		retryDelay = 2 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 10
	}
	claimCount := cfg.ClaimCount
	if claimCount <= 0 {
		claimCount = 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RedisJobQueue{
		client:       client,
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		jobTTL:       jobTTL,
		maxRetries:   maxRetries,
		block:        block,
		claimIdle:    claimIdle,
		retryDelay:   retryDelay,
		errorBackoff: time.Second,
		maxLen:       maxLen,
		readCount:    readCount,
		claimCount:   claimCount,
		logger:       logger.With("stream", stream, "group", group),
	}, nil
}

// Enqueue appends a thumbnail job to the stream.
func (q *RedisJobQueue) Enqueue(ctx context.Context, payload domain.ThumbnailJob) (domain.JobState, error) {
	payload.FileID = strings.TrimSpace(payload.FileID)
	payload.UserID = strings.TrimSpace(payload.UserID)
	if payload.FileID == "" {
		return domain.JobState{}, errors.New("fileId required")
	}
	if payload.UserID == "" {
		return domain.JobState{}, errors.New("userId required")
	}
	if payload.RequestedAt.IsZero() {
		payload.RequestedAt = time.Now().UTC()
	}
	job := domain.JobState{
		ID:        util.NewID(),
		FileID:    payload.FileID,
		UserID:    payload.UserID,
		Status:    domain.JobQueued,
		UpdatedAt: time.Now().UTC(),
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return domain.JobState{}, err
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: streamValues(job.ID, payload),
	}).Err(); err != nil {
		return domain.JobState{}, err
	}
	return job, nil
}

// GetJob reads the status hash. Missing or expired jobs report false.
func (q *RedisJobQueue) GetJob(ctx context.Context, jobID string) (domain.JobState, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return domain.JobState{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return domain.JobState{}, false, err
	}
	if len(data) == 0 {
		return domain.JobState{}, false, nil
	}
	return decodeJobState(jobID, data), true, nil
}

// Start launches concurrency consumers in the group and returns. They stop
// when ctx is done; Wait blocks until they have.
func (q *RedisJobQueue) Start(ctx context.Context, concurrency int, handler Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.consumeLoop(ctx, consumer, handler)
		}()
	}
	return nil
}

// Wait blocks until every consumer started by Start has returned.
func (q *RedisJobQueue) Wait() {
	q.wg.Wait()
}

// ensureGroup creates the consumer group reading from the start of the
// stream, so jobs enqueued before the first worker boots are not skipped.
func (q *RedisJobQueue) ensureGroup(ctx context.Context) error {
	q.groupOnce.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			q.groupErr = fmt.Errorf("create consumer group: %w", err)
		}
	})
	return q.groupErr
}

func (q *RedisJobQueue) consumeLoop(ctx context.Context, consumer string, handler Handler) {
	for {
		if ctx.Err() != nil {
			return
		}

		msgs, err := q.claimPending(ctx, consumer)
		if err != nil && ctx.Err() == nil {
			q.logger.Warn("claim pending failed", "consumer", consumer, "err", err)
		}
		for _, msg := range msgs {
			q.handleMessage(ctx, msg, handler)
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			q.logger.Warn("read group failed", "consumer", consumer, "err", err)
			q.sleep(ctx, q.errorBackoff)
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

// claimPending takes over entries another consumer left unacknowledged for
// longer than claimIdle.
func (q *RedisJobQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *RedisJobQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler Handler) {
	jobID, payload := parseStreamValues(msg.Values)
	if jobID == "" {
		q.logger.Warn("dropping stream entry without job id", "message_id", msg.ID)
		q.ackAndDel(ctx, msg.ID)
		return
	}
	logger := q.logger.With("job_id", jobID, "file_id", payload.FileID)

	state, err := q.markProcessing(ctx, jobID, payload)
	if err != nil {
		// Left pending; another pass of claimPending will pick it up.
		logger.Warn("mark processing failed", "err", err)
		return
	}
	// Deliveries that never reported back (a consumer died mid-job) still
	// count as attempts. Stop here instead of handing the job to yet
	// another consumer.
	if state.Attempts > q.maxRetries {
		res := Fail(KindInfrastructure, fmt.Errorf("abandoned after %d deliveries", state.Attempts-1))
		_ = q.markFailed(ctx, jobID, res)
		q.ackAndDel(ctx, msg.ID)
		logger.Error("job failed", "kind", string(res.Kind), "attempt", state.Attempts, "err", res.Error())
		return
	}

	res := handler(ctx, Job{ID: jobID, Payload: payload, Attempt: state.Attempts})
	if res.OK() {
		_ = q.markDone(ctx, jobID)
		q.ackAndDel(ctx, msg.ID)
		logger.Info("job completed", "attempt", state.Attempts)
		return
	}

	if !res.Retryable() || state.Attempts >= q.maxRetries {
		_ = q.markFailed(ctx, jobID, res)
		q.ackAndDel(ctx, msg.ID)
		logger.Error("job failed", "kind", string(res.normalize().Kind), "attempt", state.Attempts, "err", res.Error())
		return
	}

	logger.Warn("job will be retried", "kind", string(res.normalize().Kind), "attempt", state.Attempts, "err", res.Error())
	_ = q.markQueued(ctx, jobID, res)
	if !q.sleep(ctx, q.retryDelay) {
		return
	}
	if err := q.requeueAndAck(ctx, msg.ID, jobID, payload); err != nil {
		logger.Warn("requeue failed; entry stays pending", "err", err)
	}
}

// sleep waits for d or ctx, reporting false when ctx ended first.
func (q *RedisJobQueue) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (q *RedisJobQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

// requeueAndAck appends a fresh copy of the job and retires the current
// entry in one transaction, so a crash in between cannot lose the job.
func (q *RedisJobQueue) requeueAndAck(ctx context.Context, msgID, jobID string, payload domain.ThumbnailJob) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: streamValues(jobID, payload),
	})
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisJobQueue) markProcessing(ctx context.Context, jobID string, payload domain.ThumbnailJob) (domain.JobState, error) {
	job, _, err := q.GetJob(ctx, jobID)
	if err != nil {
		return domain.JobState{}, err
	}
	job.ID = jobID
	job.FileID = payload.FileID
	job.UserID = payload.UserID
	job.Attempts++
	job.Status = domain.JobProcessing
	job.UpdatedAt = time.Now().UTC()
	if err := q.writeStatus(ctx, job); err != nil {
		return domain.JobState{}, err
	}
	return job, nil
}

func (q *RedisJobQueue) markQueued(ctx context.Context, jobID string, res Result) error {
	return q.updateStatus(ctx, jobID, domain.JobQueued, res)
}

func (q *RedisJobQueue) markDone(ctx context.Context, jobID string) error {
	return q.updateStatus(ctx, jobID, domain.JobCompleted, Done())
}

func (q *RedisJobQueue) markFailed(ctx context.Context, jobID string, res Result) error {
	return q.updateStatus(ctx, jobID, domain.JobFailed, res)
}

func (q *RedisJobQueue) updateStatus(ctx context.Context, jobID string, status domain.JobStatus, res Result) error {
	job, _, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	res = res.normalize()
	job.ID = jobID
	job.Status = status
	job.ErrorKind = string(res.Kind)
	job.Error = res.Error()
	job.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, job)
}

func (q *RedisJobQueue) writeStatus(ctx context.Context, job domain.JobState) error {
	key := q.jobKey(job.ID)
	payload := map[string]any{
		"fileId":    job.FileID,
		"userId":    job.UserID,
		"status":    string(job.Status),
		"attempts":  strconv.Itoa(job.Attempts),
		"errorKind": job.ErrorKind,
		"error":     job.Error,
		"updatedAt": job.UpdatedAt.Format(time.RFC3339Nano),
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, payload)
	pipe.Expire(ctx, key, q.jobTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisJobQueue) jobKey(jobID string) string {
	return fmt.Sprintf("job:%s:%s", q.stream, jobID)
}

func streamValues(jobID string, payload domain.ThumbnailJob) map[string]any {
	return map[string]any{
		fieldJobID:       jobID,
		fieldFileID:      payload.FileID,
		fieldUserID:      payload.UserID,
		fieldRequestedAt: payload.RequestedAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseStreamValues(values map[string]any) (string, domain.ThumbnailJob) {
	str := func(k string) string {
		s, _ := values[k].(string)
		return strings.TrimSpace(s)
	}
	payload := domain.ThumbnailJob{
		FileID: str(fieldFileID),
		UserID: str(fieldUserID),
	}
	if t, err := time.Parse(time.RFC3339Nano, str(fieldRequestedAt)); err == nil {
		payload.RequestedAt = t
	}
	return str(fieldJobID), payload
}

func decodeJobState(jobID string, data map[string]string) domain.JobState {
	job := domain.JobState{
		ID:        jobID,
		FileID:    data["fileId"],
		UserID:    data["userId"],
		Status:    domain.JobStatus(data["status"]),
		ErrorKind: data["errorKind"],
		Error:     data["error"],
	}
	if n, err := strconv.Atoi(data["attempts"]); err == nil {
		job.Attempts = n
	}
	if t, err := time.Parse(time.RFC3339Nano, data["updatedAt"]); err == nil {
		job.UpdatedAt = t
	}
	return job
}
