package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/sosdesk/intake/internal/pkg/cache"
	"github.com/sosdesk/intake/internal/pkg/env"
)

// Manager manages the global job queue and its background reporting
type Manager struct {
	queue         *Queue
	statsInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// OptionsFromEnv reads JOBQUEUE_WORKERS, JOBQUEUE_MAX_RETRIES,
// JOBQUEUE_JOB_TIMEOUT and JOBQUEUE_STUCK_AFTER.
func OptionsFromEnv() Options {
	return Options{
		Workers:    env.GetEnvInt("JOBQUEUE_WORKERS", DefaultWorkers),
		MaxRetries: env.GetEnvInt("JOBQUEUE_MAX_RETRIES", DefaultMaxRetries),
		JobTimeout: env.GetEnvDuration("JOBQUEUE_JOB_TIMEOUT", 2*time.Minute),
		StuckAfter: env.GetEnvDuration("JOBQUEUE_STUCK_AFTER", DefaultStuckAfter),
	}
}

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = NewManager(NewQueue(cache.GetClient(), OptionsFromEnv()))
	})
	return globalManager
}

func NewManager(queue *Queue) *Manager {
	interval := env.GetEnvDuration("JOBQUEUE_STATS_INTERVAL", 5*time.Minute)
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Manager{
		queue:         queue,
		statsInterval: interval,
		stopCh:        make(chan struct{}),
	}
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

	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	m.wg.Add(1)
	go m.statsWorker(m.stopCh)

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
	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.queue.Stop()
	log.Info("[JobQueue Manager] Stopped successfully")
}

// statsWorker periodically logs queue depth so stalled analysis shows up
// in the logs.
func (m *Manager) statsWorker(stopCh chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Stats worker stopping")
			return
		case <-ticker.C:
			m.logStats(context.Background())
		}
	}
}

func (m *Manager) logStats(ctx context.Context) {
	pending, err := m.queue.GetQueueSize(ctx)
	if err != nil {
		log.Errorf("[JobQueue Manager] Failed to read queue size: %v", err)
		return
	}
	processing, err := m.queue.GetProcessingSize(ctx)
	if err != nil {
		log.Errorf("[JobQueue Manager] Failed to read processing size: %v", err)
		return
	}
	log.Infof("[JobQueue Manager] pending=%d processing=%d", pending, processing)
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
