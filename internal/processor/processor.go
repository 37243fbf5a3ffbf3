package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voxtour/ticket-gateway/internal/config"
	"github.com/voxtour/ticket-gateway/internal/queue"
	"github.com/voxtour/ticket-gateway/pkg/logger"
	"github.com/voxtour/ticket-gateway/pkg/redis"
	"github.com/voxtour/ticket-gateway/pkg/worker"
)

const ProcessingTimeout = time.Second * 10
const HealthInterval = time.Second * 30
const ShutdownTimeout = time.Minute

const consumerInstances = 4
const workerPoolSize = 50

// RetrierService drives the retry queue: it consumes retry jobs through a
// worker pool and periodically sweeps the database for failed messages that
// still have retry budget.
type RetrierService struct {
	adapter   redis.RedisAdapter
	queues    []*queue.JobQueue
	processor Processor
	scheduler *RetryScheduler
	metrics   *ServiceMetrics
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	worker    *worker.WorkerManager
}

// Processor handles one job type.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
	GetType() string
}

func NewRetrierService(redisAdapter redis.RedisAdapter) (*RetrierService, error) {
	ctx, cancel := context.WithCancel(context.Background())
	return &RetrierService{
		adapter: redisAdapter,
		queues:  make([]*queue.JobQueue, 0),
		metrics: NewServiceMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		worker:  worker.NewWorkerManager(10_000, workerPoolSize, nil),
	}, nil
}

func (s *RetrierService) RegisterProcessor(p Processor) {
	s.processor = p
	logger.Info("Registered processor", "type", p.GetType())
}

func (s *RetrierService) RegisterScheduler(sched *RetryScheduler) {
	s.scheduler = sched
}

func (s *RetrierService) Start() error {
	logger.Info("Starting Retrier Service...")

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("Worker manager stopped", "error", err)
		}
	}()

	for i := 0; i < consumerInstances; i++ {
		queueConfig := queue.Config{
			Name:              config.Get().QueueName,
			ConsumerGroup:     config.Get().QueueConsumerGroup,
			ConsumerName:      fmt.Sprintf("%s-instance-%d", config.Get().QueueConsumerName, i),
			MaxRetries:        config.Get().QueueMaxRetries,
			VisibilityTimeout: config.Get().QueueVisibilityTimeout,
			PollInterval:      config.Get().QueuePollInterval,
			BatchSize:         config.Get().QueueBatchSize,
			MaxLen:            config.Get().QueueMaxLen,
			EnableDLQ:         config.Get().QueueEnableDLQ,
		}

		q, err := queue.NewJobQueue(s.adapter, queueConfig)
		if err != nil {
			return fmt.Errorf("failed to create queue %d: %w", i, err)
		}
		if err := q.Consume(s.jobHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}

		s.queues = append(s.queues, q)
		logger.Info("Started consumer instance", "instance", i)
	}

	if s.scheduler != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.scheduler.Run(s.ctx)
		}()
	}

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("Retrier Service started", "consumers", len(s.queues), "workers", workerPoolSize)
	return nil
}

func (s *RetrierService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *RetrierService) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("Retrier metrics",
		"total_processed", stats["total_processed"],
		"total_failed", stats["total_failed"],
		"rate_per_second", stats["rate_per_second"],
		"avg_duration_ms", stats["avg_duration_ms"],
		"uptime_seconds", stats["uptime_seconds"])

	for i, q := range s.queues {
		if qStats, err := q.GetStats(); err == nil {
			logger.Info("Queue stats", "queue", i, "total", qStats.TotalJobs, "pending", qStats.PendingJobs)
		}
	}
}

func (s *RetrierService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *RetrierService) performHealthCheck() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("HEALTH CHECK FAILED: Redis connection error", "error", err)
		return
	}

	for i, q := range s.queues {
		stats, err := q.GetStats()
		if err != nil {
			logger.Warn("HEALTH CHECK WARNING: Queue stats unavailable", "queue", i, "error", err)
			continue
		}
		if stats.PendingJobs > 10000 {
			logger.Warn("HEALTH CHECK WARNING: Queue has high lag", "queue", i, "pending_jobs", stats.PendingJobs)
		}
	}

	logger.Info("HEALTH CHECK: OK - Service healthy")
}

func (s *RetrierService) Stop() {
	logger.Info("Shutting down Retrier Service...")

	s.cancel()

	timeout := ShutdownTimeout
	stopChan := make(chan bool, len(s.queues))

	for i, q := range s.queues {
		go func(index int, jq *queue.JobQueue) {
			if err := jq.Stop(timeout); err != nil {
				logger.Error("Error stopping queue", "queue", index, "error", err)
			}
			stopChan <- true
		}(i, q)
	}

	for range s.queues {
		select {
		case <-stopChan:
		case <-time.After(timeout + 5*time.Second):
			logger.Warn("Timeout waiting for queues to stop")
		}
	}

	s.worker.Exit()
	s.wg.Wait()
	s.reportMetrics()

	logger.Info("Retrier Service stopped")
}

type jobResult struct {
	job        *queue.Job
	resultChan chan error
	ctx        context.Context
}

// jobHandler hands the job to the worker pool and blocks until a worker
// reports back or the per-job timeout hits.
func (s *RetrierService) jobHandler(ctx context.Context, job *queue.Job) error {
	resultChan := make(chan error, 1)

	jobCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	s.worker.Enqueue(&jobResult{
		job:        job,
		resultChan: resultChan,
		ctx:        jobCtx,
	})

	select {
	case err := <-resultChan:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout waiting for worker to process job: %w", jobCtx.Err())
	}
}

func (s *RetrierService) workerHandler(workerIndex int, job interface{}) {
	jobRes, ok := job.(*jobResult)
	if !ok {
		logger.Error("Invalid job type in worker", "worker", workerIndex)
		return
	}

	start := time.Now()
	var resultErr error

	select {
	case <-jobRes.ctx.Done():
		logger.Warn("Job context cancelled before processing started", "worker", workerIndex)
		return
	default:
	}

	if s.processor == nil {
		logger.Info("No processor registered", "worker", workerIndex)
		s.metrics.RecordFailure()
		resultErr = nil // ack, an unroutable job never succeeds on retry
	} else if err := s.processor.Process(jobRes.ctx, jobRes.job); err != nil {
		s.metrics.RecordFailure()
		logger.Error("Failed to process job", "worker", workerIndex, "error", err)
		resultErr = err
	} else {
		s.metrics.RecordSuccess(time.Since(start))
		resultErr = nil
	}

	// If jobHandler already timed out there is no receiver anymore.
	select {
	case jobRes.resultChan <- resultErr:
	case <-jobRes.ctx.Done():
		logger.Warn("Context cancelled while sending result", "worker", workerIndex)
	}
}
