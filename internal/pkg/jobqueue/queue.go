package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/DenialAppealPro/appealpro/internal/pkg/cache"
	"github.com/DenialAppealPro/appealpro/internal/pkg/mail"
	"github.com/DenialAppealPro/appealpro/internal/pkg/metrics"
)

const (
	JobKeyPrefix  = "appealpro:job:"
	PendingKey    = "appealpro:jobs:pending"
	ProcessingKey = "appealpro:jobs:processing"
	// DelayedKey is a sorted set of job ids scored by the unix time they may
	// run again.
	DelayedKey = "appealpro:jobs:delayed"

	DefaultMaxRetries = 3
	JobTTL            = 24 * time.Hour

	defaultWorkers     = 3
	defaultRetryDelay  = time.Minute
	defaultStuckAfter  = 10 * time.Minute
	defaultSweepPeriod = time.Minute
	dequeueTimeout     = time.Second
)

type handlerFunc func(ctx context.Context, job *Job) error

// Queue is a Redis-backed at-least-once job queue. Jobs move from the pending
// list to the processing list while a worker runs them; failed jobs wait in
// the delayed set until their retry time.
type Queue struct {
	client   *redis.Client
	mailer   mail.Sender
	workers  int
	handlers map[JobType]handlerFunc

	retryDelay  time.Duration
	stuckAfter  time.Duration
	sweepPeriod time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewQueue returns a queue on the shared cache client.
func NewQueue(workers int) *Queue {
	return NewQueueWithClient(cache.GetClient(), workers)
}

func NewQueueWithClient(client *redis.Client, workers int) *Queue {
	if workers <= 0 {
		workers = defaultWorkers
	}
	q := &Queue{
		client:      client,
		workers:     workers,
		retryDelay:  defaultRetryDelay,
		stuckAfter:  defaultStuckAfter,
		sweepPeriod: defaultSweepPeriod,
	}
	q.handlers = map[JobType]handlerFunc{
		JobTypeAppealReady: q.processAppealReadyJob,
	}
	return q
}

// SetMailer sets the sender used by email jobs.
func (q *Queue) SetMailer(m mail.Sender) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.mailer = m
}

func (q *Queue) sender() mail.Sender {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mailer
}

// Start launches the workers and the sweeper. It is a no-op when running.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.running = true
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.wg.Add(1)
	go q.sweeper(ctx)
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	cancel := q.cancel
	q.mu.Unlock()

	log.Info("[JobQueue] Stopping workers...")
	cancel()
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for ctx.Err() == nil {
		job, err := q.dequeue(ctx)
		switch {
		case err == nil:
			// Jobs run to completion even while stopping.
			q.processJob(context.WithoutCancel(ctx), job)
		case errors.Is(err, redis.Nil), ctx.Err() != nil:
		default:
			log.Errorf("[JobQueue] Worker %d: dequeue failed: %v", id, err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// sweeper promotes due retries and recovers jobs orphaned in the processing
// list by a crashed worker.
func (q *Queue) sweeper(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.sweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := q.promoteDue(ctx, now); err != nil {
				log.Errorf("[JobQueue] Promote delayed jobs failed: %v", err)
			}
			if _, err := q.recoverStuck(ctx, now); err != nil {
				log.Errorf("[JobQueue] Recover stuck jobs failed: %v", err)
			}
		}
	}
}

// EnqueueJob stores a new pending job.
func (q *Queue) EnqueueJob(jobType JobType, payload map[string]interface{}) (*Job, error) {
	ctx := context.Background()
	now := time.Now()
	job := &Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: DefaultMaxRetries,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL)
		pipe.LPush(ctx, PendingKey, job.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	log.Infof("[JobQueue] Enqueued job %s (%s)", job.ID, job.Type)
	return job, nil
}

// dequeue moves the oldest pending job to the processing list and loads it.
// It returns redis.Nil when nothing arrived within dequeueTimeout.
func (q *Queue) dequeue(ctx context.Context) (*Job, error) {
	id, err := q.client.BLMove(ctx, PendingKey, ProcessingKey, "RIGHT", "LEFT", dequeueTimeout).Result()
	if err != nil {
		return nil, err
	}
	job, err := q.GetJob(ctx, id)
	if err != nil {
		// Expired or corrupt; nothing left to run.
		q.client.LRem(ctx, ProcessingKey, 1, id)
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return job, nil
}

func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.MarkAsProcessing()
	q.save(ctx, job)

	err := q.run(ctx, job)
	switch {
	case err == nil:
		metrics.JobsProcessed.WithLabelValues(string(job.Type), "completed").Inc()
		log.Infof("[JobQueue] Job %s completed", job.ID)
		q.client.Del(ctx, JobKeyPrefix+job.ID)
		q.client.LRem(ctx, ProcessingKey, 1, job.ID)
		return
	case errors.Is(err, ErrInvalidPayload):
		job.MarkAsFailed(err.Error())
		job.RetryCount = job.MaxRetries
	default:
		job.MarkAsFailed(err.Error())
	}
	metrics.JobsProcessed.WithLabelValues(string(job.Type), "failed").Inc()

	if !job.IsRetryable() {
		log.Errorf("[JobQueue] Job %s failed permanently after %d attempts: %v", job.ID, job.RetryCount, err)
		q.save(ctx, job)
		q.client.LRem(ctx, ProcessingKey, 1, job.ID)
		return
	}

	job.MarkAsRetrying()
	readyAt := time.Now().Add(time.Duration(job.RetryCount) * q.retryDelay)
	log.Warnf("[JobQueue] Job %s failed (attempt %d/%d), retrying at %s: %v",
		job.ID, job.RetryCount, job.MaxRetries, readyAt.Format(time.RFC3339), err)
	q.save(ctx, job)
	_, perr := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, DelayedKey, redis.Z{Score: float64(readyAt.Unix()), Member: job.ID})
		pipe.LRem(ctx, ProcessingKey, 1, job.ID)
		return nil
	})
	if perr != nil {
		log.Errorf("[JobQueue] Failed to schedule retry of job %s: %v", job.ID, perr)
	}
}

func (q *Queue) run(ctx context.Context, job *Job) error {
	h, ok := q.handlers[job.Type]
	if !ok {
		return fmt.Errorf("%w: unknown job type %q", ErrInvalidPayload, job.Type)
	}
	return h(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Failed to marshal job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to save job %s: %v", job.ID, err)
	}
}

// promoteDue moves delayed jobs whose retry time has passed back to pending.
func (q *Queue) promoteDue(ctx context.Context, now time.Time) (int, error) {
	ids, err := q.client.ZRangeByScore(ctx, DelayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	promoted := 0
	for _, id := range ids {
		// ZRem decides between concurrent sweepers.
		removed, err := q.client.ZRem(ctx, DelayedKey, id).Result()
		if err != nil {
			return promoted, err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, PendingKey, id).Err(); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// recoverStuck requeues processing jobs that started more than stuckAfter ago.
func (q *Queue) recoverStuck(ctx context.Context, now time.Time) (int, error) {
	ids, err := q.client.LRange(ctx, ProcessingKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, id := range ids {
		job, err := q.GetJob(ctx, id)
		if err != nil {
			q.client.LRem(ctx, ProcessingKey, 1, id)
			continue
		}
		started := job.UpdatedAt
		if now.Sub(started) <= q.stuckAfter {
			continue
		}

		log.Warnf("[JobQueue] Requeueing job %s left in processing since %s", job.ID, started.Format(time.RFC3339))
		job.Status = JobStatusPending
		job.ErrorMsg = "requeued after worker loss"
		job.UpdatedAt = now
		q.save(ctx, job)
		if n, err := q.client.LRem(ctx, ProcessingKey, 1, id).Result(); err != nil || n == 0 {
			continue
		}
		if err := q.client.LPush(ctx, PendingKey, id).Err(); err != nil {
			return recovered, err
		}
		recovered++
	}
	return recovered, nil
}

// GetJob loads a job by id. Completed jobs are deleted and return redis.Nil.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, JobKeyPrefix+id).Bytes()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

// Depth counts jobs per stage.
type Depth struct {
	Pending    int64
	Processing int64
	Delayed    int64
}

// Depth reads the size of every stage in one round trip.
func (q *Queue) Depth(ctx context.Context) (Depth, error) {
	var pending, processing, delayed *redis.IntCmd
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pending = pipe.LLen(ctx, PendingKey)
		processing = pipe.LLen(ctx, ProcessingKey)
		delayed = pipe.ZCard(ctx, DelayedKey)
		return nil
	})
	if err != nil {
		return Depth{}, err
	}
	return Depth{Pending: pending.Val(), Processing: processing.Val(), Delayed: delayed.Val()}, nil
}
