package storage

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// BackupScheduler runs periodic backups for the daemon.
type BackupScheduler struct {
	manager *BackupManager
	config  SchedulerConfig

	mu           sync.RWMutex
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
	seq          int
	lastBackup   time.Time
	lastPath     string
	lastError    error
	backupCount  int
	failureCount int
}

// SchedulerConfig holds configuration for the backup scheduler.
type SchedulerConfig struct {
	// Interval is how often to run backups, e.g. 24*time.Hour.
	Interval time.Duration

	// Options is used for every backup. Name is ignored; each run gets a
	// timestamped name.
	Options BackupOptions

	// Keep prunes to the newest Keep backups after each success. 0 keeps all.
	Keep int

	// StartImmediately runs a backup as soon as the scheduler starts.
	StartImmediately bool

	// OnBackupComplete is called after each attempt, successful or not.
	OnBackupComplete func(path string, err error)
}

// DefaultSchedulerConfig returns a scheduler config with daily verified backups.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: 24 * time.Hour,
		Options:  BackupOptions{Verify: true},
	}
}

// SchedulerStatus contains information about the scheduler state.
type SchedulerStatus struct {
	Running      bool          `json:"running"`
	Interval     time.Duration `json:"interval"`
	LastBackup   time.Time     `json:"lastBackup"`
	LastPath     string        `json:"lastPath,omitempty"`
	NextBackup   time.Time     `json:"nextBackup"`
	BackupCount  int           `json:"backupCount"`
	FailureCount int           `json:"failureCount"`
	LastError    string        `json:"lastError,omitempty"`
}

// NewBackupScheduler creates a new backup scheduler.
func NewBackupScheduler(manager *BackupManager, config SchedulerConfig) *BackupScheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	return &BackupScheduler{manager: manager, config: config}
}

// Start starts the scheduler loop. It returns an error if the scheduler is
// already running.
func (s *BackupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(ctx, s.done)
	log.Printf("[Backup] Scheduler started, interval %s", s.config.Interval)
	return nil
}

// Stop stops the scheduler and waits for an in-flight backup to finish.
func (s *BackupScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
	log.Println("[Backup] Scheduler stopped")
	return nil
}

// IsRunning reports whether the scheduler loop is active.
func (s *BackupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// TriggerBackup runs a backup now without changing the schedule.
func (s *BackupScheduler) TriggerBackup(ctx context.Context) (string, error) {
	return s.runBackup(ctx)
}

func (s *BackupScheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.config.StartImmediately {
		_, _ = s.runBackup(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.runBackup(ctx)
		}
	}
}

func (s *BackupScheduler) runBackup(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.seq++
	opts := s.config.Options
	opts.Name = fmt.Sprintf("scheduled_%s_%03d", time.Now().UTC().Format("20060102_150405"), s.seq%1000)
	s.mu.Unlock()

	path, err := s.manager.Backup(ctx, opts)
	if err == nil && s.config.Keep > 0 {
		if removed, pruneErr := s.manager.Prune(s.config.Keep); pruneErr != nil {
			log.Printf("[Backup] Failed to prune old backups: %v", pruneErr)
		} else if removed > 0 {
			log.Printf("[Backup] Pruned %d old backup(s)", removed)
		}
	}

	s.mu.Lock()
	s.lastBackup = time.Now()
	s.lastPath = path
	s.lastError = err
	if err != nil {
		s.failureCount++
	} else {
		s.backupCount++
	}
	s.mu.Unlock()

	if err != nil {
		log.Printf("[Backup] Scheduled backup failed: %v", err)
	}
	if s.config.OnBackupComplete != nil {
		s.config.OnBackupComplete(path, err)
	}
	return path, err
}

// Status returns a snapshot of the scheduler state.
func (s *BackupScheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		Running:      s.running,
		Interval:     s.config.Interval,
		LastBackup:   s.lastBackup,
		LastPath:     s.lastPath,
		BackupCount:  s.backupCount,
		FailureCount: s.failureCount,
	}
	if s.running && !s.lastBackup.IsZero() {
		status.NextBackup = s.lastBackup.Add(s.config.Interval)
	}
	if s.lastError != nil {
		status.LastError = s.lastError.Error()
	}
	return status
}

// String returns a human-readable representation of the scheduler status.
func (s SchedulerStatus) String() string {
	if !s.Running {
		return "Scheduler: Stopped"
	}

	status := "Scheduler: Running\n"
	status += fmt.Sprintf("  Interval: %s\n", s.Interval)
	status += fmt.Sprintf("  Total Backups: %d\n", s.BackupCount)
	status += fmt.Sprintf("  Failures: %d\n", s.FailureCount)
	if !s.LastBackup.IsZero() {
		status += fmt.Sprintf("  Last Backup: %s\n", s.LastBackup.Format(time.RFC3339))
	}
	if !s.NextBackup.IsZero() {
		status += fmt.Sprintf("  Next Backup: %s\n", s.NextBackup.Format(time.RFC3339))
	}
	if s.LastError != "" {
		status += fmt.Sprintf("  Last Error: %s\n", s.LastError)
	}
	return status
}
