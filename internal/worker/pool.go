// Package worker implements the buffered worker pool that writes prediction
// audit events to ClickHouse off the request path:
// - Load shedding when the queue is full
// - Batch inserts with size and interval triggers
// - Flush of queued events on shutdown
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/statstack/predictions-api/internal/models"
)

// Prometheus metrics
var (
	eventsQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictions_audit_events_queued_total",
		Help: "Audit events accepted into the queue",
	})

	eventsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictions_audit_events_written_total",
		Help: "Audit events written to ClickHouse",
	})

	eventsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictions_audit_events_failed_total",
		Help: "Audit events lost to failed batch inserts",
	})

	eventsLoadShed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictions_audit_events_load_shed_total",
		Help: "Audit events dropped because the queue was full",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predictions_audit_queue_depth",
		Help: "Current depth of the audit queue",
	})

	batchInsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "predictions_audit_batch_insert_duration_seconds",
		Help:    "Duration of audit batch inserts to ClickHouse",
		Buckets: prometheus.DefBuckets,
	})
)

const insertEvents = `
	INSERT INTO predictions.prediction_events (
		event_id, timestamp, received_at, match_id, season, week,
		home_team, away_team, model_version, diagnostic,
		home_win_probability, predicted_spread, predicted_total, confidence,
		actual_home_score, actual_away_score
	)`

// Job is one queued audit event
type Job struct {
	Event      models.PredictionEvent
	ReceivedAt time.Time
}

// PoolConfig configures the worker pool
type PoolConfig struct {
	WorkerCount   int
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	ClickHouse    driver.Conn
	Logger        *zap.Logger
}

// Pool batches audit events into ClickHouse
type Pool struct {
	config   PoolConfig
	jobQueue chan Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	logger   *zap.SugaredLogger
}

// NewPool creates a new worker pool
func NewPool(cfg PoolConfig) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		config:   cfg,
		jobQueue: make(chan Job, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		logger:   cfg.Logger.Sugar(),
	}
}

// Start launches the worker goroutines
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	go p.reportQueueDepth()

	p.logger.Infow("Audit worker pool started",
		"workers", p.config.WorkerCount,
		"queueSize", p.config.QueueSize,
		"batchSize", p.config.BatchSize,
	)
}

// Stop drains the queue and waits for the final flushes
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("Stopping audit worker pool...")
		close(p.jobQueue)
		p.wg.Wait()
		p.cancel()
		p.logger.Info("Audit worker pool stopped")
	})
}

// Record queues an event without blocking. It returns false when the event
// was shed because the queue is full or the pool has stopped.
func (p *Pool) Record(event models.PredictionEvent) (queued bool) {
	defer func() {
		if r := recover(); r != nil {
			eventsLoadShed.Inc()
			queued = false
		}
	}()

	select {
	case p.jobQueue <- Job{Event: event, ReceivedAt: time.Now().UTC()}:
		eventsQueued.Inc()
		return true
	default:
		eventsLoadShed.Inc()
		return false
	}
}

// QueueDepth returns current queue size
func (p *Pool) QueueDepth() int {
	return len(p.jobQueue)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	batch := make([]Job, 0, p.config.BatchSize)
	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := p.processBatch(batch); err != nil {
			p.logger.Errorw("Audit batch insert failed",
				"worker", id,
				"batchSize", len(batch),
				"error", err,
			)
			eventsFailed.Add(float64(len(batch)))
		} else {
			eventsWritten.Add(float64(len(batch)))
		}
		batchInsertDuration.Observe(time.Since(start).Seconds())
		batch = batch[:0]
	}

	for {
		select {
		case job, ok := <-p.jobQueue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, job)
			if len(batch) >= p.config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// processBatch writes one batch. It uses its own context so the final flush
// still runs after the pool context is canceled.
func (p *Pool) processBatch(batch []Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chBatch, err := p.config.ClickHouse.PrepareBatch(ctx, insertEvents)
	if err != nil {
		return err
	}

	for _, job := range batch {
		e := job.Event
		err := chBatch.Append(
			e.EventID,
			e.Timestamp,
			job.ReceivedAt,
			e.MatchID,
			uint16(e.Season),
			uint8(e.Week),
			e.HomeTeam,
			e.AwayTeam,
			e.ModelVersion,
			e.Diagnostic,
			e.HomeWinProbability,
			e.PredictedSpread,
			e.PredictedTotal,
			e.Confidence,
			nullableScore(e.ActualHomeScore),
			nullableScore(e.ActualAwayScore),
		)
		if err != nil {
			p.logger.Warnw("Failed to append audit event to batch", "error", err, "match_id", e.MatchID)
			continue
		}
	}

	return chBatch.Send()
}

func nullableScore(v *int) *int32 {
	if v == nil {
		return nil
	}
	s := int32(*v)
	return &s
}

func (p *Pool) reportQueueDepth() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			queueDepth.Set(float64(len(p.jobQueue)))
		case <-p.ctx.Done():
			return
		}
	}
}
