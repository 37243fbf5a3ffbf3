package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/voxtour/ticket-gateway/pkg/redis"
)

// Job is one unit of retry work pulled off the stream.
type Job struct {
	ID       string
	Payload  []byte
	Metadata map[string]string
	Enqueued time.Time
	Attempts int
	acked    bool
	queue    *JobQueue
}

// Ack removes the job from the pending entries list. Consume in auto mode
// calls this on handler success; it is exported for the claim path.
func (j *Job) Ack() error {
	if j.acked {
		return fmt.Errorf("job already acknowledged")
	}
	j.acked = true
	return j.queue.ack(j.ID)
}

// JobHandler processes one job. Returning nil acks the job; returning an
// error leaves it pending so the visibility timeout reclaims it later.
type JobHandler func(ctx context.Context, job *Job) error

type Config struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

// JobQueue is a redis-streams backed work queue with consumer groups,
// at-least-once delivery and a dead letter stream for poisoned jobs.
type JobQueue struct {
	adapter redis.RedisAdapter
	config  Config
	handler JobHandler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Stats struct {
	TotalJobs     int64
	PendingJobs   int64
	ConsumerCount int64
}

func NewJobQueue(adapter redis.RedisAdapter, config Config) (*JobQueue, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "default-group"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &JobQueue{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	// Group may already exist, which is fine.
	_ = q.adapter.XGroupCreateMkStream(q.config.Name, q.config.ConsumerGroup, "0")

	return q, nil
}

// Enqueue appends a job to the stream.
func (q *JobQueue) Enqueue(ctx context.Context, payload []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		"payload":  string(payload),
		"enqueued": time.Now().Unix(),
		"attempts": 0,
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	if q.config.MaxLen > 0 {
		_ = q.adapter.XTrimApprox(q.config.Name, q.config.MaxLen)
	}
	return id, nil
}

func (q *JobQueue) EnqueueJSON(ctx context.Context, payload interface{}, metadata map[string]string) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}
	return q.Enqueue(ctx, b, metadata)
}

// Consume starts the polling loop with the given handler.
func (q *JobQueue) Consume(handler JobHandler) error {
	if handler == nil {
		return fmt.Errorf("job handler is required")
	}
	q.handler = handler
	q.wg.Add(1)
	go q.consumeLoop()
	return nil
}

func (q *JobQueue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.readNewJobs()
			q.claimStuckJobs()
		}
	}
}

func (q *JobQueue) readNewJobs() {
	msgs, err := q.adapter.XReadGroup(
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.Name,
		">",
		q.config.BatchSize,
	)
	if err != nil {
		return
	}
	for _, m := range msgs {
		q.handleJob(q.toJob(m))
	}
}

// claimStuckJobs takes over jobs whose consumer died mid-flight. Each
// reclaim counts as an attempt.
func (q *JobQueue) claimStuckJobs() {
	pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup)
	if err != nil || pending == nil || pending.Count == 0 {
		return
	}

	pendingExt, err := q.adapter.XPendingExt(q.config.Name, q.config.ConsumerGroup, "-", "+", 100)
	if err != nil || len(pendingExt) == 0 {
		return
	}

	var ids []string
	for _, p := range pendingExt {
		if p.Idle >= q.config.VisibilityTimeout {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	msgs, err := q.adapter.XClaim(
		q.config.Name,
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.VisibilityTimeout,
		ids...,
	)
	if err != nil {
		return
	}
	for _, m := range msgs {
		job := q.toJob(m)
		job.Attempts++
		q.handleJob(job)
	}
}

func (q *JobQueue) handleJob(job *Job) {
	if job.Attempts >= q.config.MaxRetries {
		q.moveToDeadLetter(job)
		_ = q.ack(job.ID)
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := q.handler(ctx, job); err != nil {
		// Leave pending; the claim path retries after the visibility
		// timeout.
		return
	}
	_ = q.ack(job.ID)
}

func (q *JobQueue) ack(jobID string) error {
	return q.adapter.XAck(q.config.Name, q.config.ConsumerGroup, jobID)
}

func (q *JobQueue) moveToDeadLetter(job *Job) {
	if !q.config.EnableDLQ {
		return
	}

	values := map[string]interface{}{
		"payload":        string(job.Payload),
		"original_id":    job.ID,
		"attempts":       job.Attempts,
		"failed_at":      time.Now().Unix(),
		"original_queue": q.config.Name,
	}
	for k, v := range job.Metadata {
		values["meta_"+k] = v
	}
	_, _ = q.adapter.XAdd(q.config.Name+":dlq", values)
}

func (q *JobQueue) toJob(m redis.StreamMessage) *Job {
	job := &Job{
		ID:       m.ID,
		Metadata: make(map[string]string),
		queue:    q,
	}
	for k, v := range m.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch k {
		case "payload":
			job.Payload = []byte(s)
		case "enqueued":
			var unix int64
			if _, err := fmt.Sscanf(s, "%d", &unix); err == nil {
				job.Enqueued = time.Unix(unix, 0)
			}
		case "attempts":
			fmt.Sscanf(s, "%d", &job.Attempts)
		default:
			if len(k) > 5 && k[:5] == "meta_" {
				job.Metadata[k[5:]] = s
			}
		}
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now()
	}
	return job
}

func (q *JobQueue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}

func (q *JobQueue) GetStats() (*Stats, error) {
	total, err := q.adapter.XLen(q.config.Name)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalJobs: total}
	if pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup); err == nil && pending != nil {
		stats.PendingJobs = pending.Count
		stats.ConsumerCount = int64(len(pending.Consumers))
	}
	return stats, nil
}
