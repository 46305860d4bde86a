package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/ManuelReschke/AgroCoop/app/models"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/cache"
	"github.com/ManuelReschke/AgroCoop/internal/pkg/metrics/counter"
	"github.com/gofiber/fiber/v2/log"
)

const (
	// SweepLockKey serializes periodic sweeps across instances
	SweepLockKey = "lock:fee_sweep"
	sweepLockTTL = 30 * time.Minute
	sweepTimeout = 25 * time.Minute
)

// Manager manages the global job queue and the periodic fee tasks
type Manager struct {
	queue         *Queue
	fees          FeeRunner
	sweepTicker   *time.Ticker
	overdueTicker *time.Ticker
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
		workerCount := getAppSettings().GetJobQueueWorkerCount()

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// AttachFeeService registers the fee processors and enables the periodic fee tasks
func (m *Manager) AttachFeeService(runner FeeRunner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fees = runner
	RegisterFeeProcessors(m.queue, runner)
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

	if m.fees == nil {
		log.Warn("[JobQueue Manager] No fee service attached, periodic fee tasks disabled")
		log.Info("[JobQueue Manager] Started successfully")
		return
	}

	settings := getAppSettings()
	sweepInterval := settings.GetFeeSweepInterval()
	overdueInterval := settings.GetFeeOverdueCheckInterval()

	m.sweepTicker = time.NewTicker(sweepInterval)
	m.wg.Add(1)
	go m.sweepWorker(sweepInterval)

	m.overdueTicker = time.NewTicker(overdueInterval)
	m.wg.Add(1)
	go m.overdueWorker(overdueInterval)

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

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	if m.overdueTicker != nil {
		m.overdueTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// sweepWorker runs a catch-up sweep at start and then one per tick
func (m *Manager) sweepWorker(interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started fee sweep worker (interval: %s)", interval)

	m.runSweepOnce()

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Fee sweep worker stopping")
			return
		case <-m.sweepTicker.C:
			m.runSweepOnce()
		}
	}
}

// overdueWorker flags overdue applications between sweeps
func (m *Manager) overdueWorker(interval time.Duration) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started overdue worker (interval: %s)", interval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Overdue worker stopping")
			return
		case <-m.overdueTicker.C:
			ctx, cancel := m.workerContext(time.Minute)
			n, err := m.fees.MarkOverdue(ctx, time.Time{})
			cancel()
			if err != nil {
				log.Errorf("[JobQueue Manager] Overdue check error: %v", err)
			} else if n > 0 {
				log.Infof("[JobQueue Manager] Marked %d fee applications overdue", n)
			}
		}
	}
}

// runSweepOnce runs one sweep unless another instance holds the sweep lock.
// When Redis is unreachable the sweep still runs; the unique index keeps it correct.
func (m *Manager) runSweepOnce() {
	ctx, cancel := m.workerContext(sweepTimeout)
	defer cancel()

	lock, err := cache.TryLock(ctx, m.queue.client, SweepLockKey, sweepLockTTL)
	switch {
	case err != nil:
		log.Warnf("[JobQueue Manager] Sweep lock unavailable, sweeping without it: %v", err)
	case lock == nil:
		log.Info("[JobQueue Manager] Fee sweep already running elsewhere, skipping")
		return
	default:
		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				log.Warnf("[JobQueue Manager] Failed to release sweep lock: %v", err)
			}
		}()
	}

	report, err := m.fees.RunSweep(ctx, time.Time{})
	if err != nil {
		log.Errorf("[JobQueue Manager] Fee sweep error: %v", err)
		return
	}
	if err := counter.RecordSweep(ctx, m.queue.client, report); err != nil {
		log.Warnf("[JobQueue Manager] Failed to record sweep counters: %v", err)
	}
	log.Infof("[JobQueue Manager] Fee sweep %s: activated=%d created=%d skipped=%d failed=%d overdue=%d",
		report.AsOf.Format(time.DateOnly), len(report.Activated), report.Created, report.Skipped, report.Failed, report.Overdue)
}

// workerContext returns a context cancelled on timeout or manager stop
func (m *Manager) workerContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	stopCh := m.stopCh
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// getAppSettings returns the current app settings, never nil
func getAppSettings() *models.AppSettings {
	return models.GetAppSettings()
}
