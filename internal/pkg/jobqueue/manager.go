package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/DenialAppealPro/appealpro/internal/pkg/env"
	"github.com/DenialAppealPro/appealpro/internal/pkg/mail"
	"github.com/DenialAppealPro/appealpro/internal/pkg/metrics"
)

// DefaultStatsInterval is how often queue depth is published to metrics.
const DefaultStatsInterval = 30 * time.Second

// Manager manages the global job queue and background tasks
type Manager struct {
	queue         *Queue
	statsInterval time.Duration
	statsTicker   *time.Ticker
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		queue := NewQueue(env.GetEnvInt("JOBQUEUE_WORKERS", 3))
		queue.SetMailer(mail.NewSMTPMailer(mail.LoadConfig()))

		globalManager = &Manager{
			queue:         queue,
			statsInterval: DefaultStatsInterval,
			stopCh:        make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	m.statsTicker = time.NewTicker(m.statsInterval)
	m.wg.Add(1)
	go m.statsWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.statsTicker != nil {
		m.statsTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// statsWorker periodically publishes queue depth gauges
func (m *Manager) statsWorker() {
	defer m.wg.Done()
	stopCh := m.stopCh
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Stats worker stopping")
			return
		case <-m.statsTicker.C:
			if err := m.publishStatsOnce(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Stats error: %v", err)
			}
		}
	}
}

func (m *Manager) publishStatsOnce(ctx context.Context) error {
	d, err := m.queue.Depth(ctx)
	if err != nil {
		return err
	}
	metrics.QueueDepth.WithLabelValues(string(JobStatusPending)).Set(float64(d.Pending))
	metrics.QueueDepth.WithLabelValues(string(JobStatusProcessing)).Set(float64(d.Processing))
	metrics.QueueDepth.WithLabelValues(string(JobStatusRetrying)).Set(float64(d.Delayed))
	return nil
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
