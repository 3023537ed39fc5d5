package storage

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewBackupScheduler(t *testing.T) {
	db := openFileDB(t)
	bm := NewBackupManager(db, "")

	scheduler := NewBackupScheduler(bm, SchedulerConfig{})
	if scheduler.manager != bm {
		t.Error("Scheduler manager not set correctly")
	}
	if scheduler.config.Interval != 24*time.Hour {
		t.Errorf("Expected default interval 24h, got %v", scheduler.config.Interval)
	}

	scheduler = NewBackupScheduler(bm, SchedulerConfig{Interval: time.Hour})
	if scheduler.config.Interval != time.Hour {
		t.Errorf("Expected interval 1h, got %v", scheduler.config.Interval)
	}
}

func TestBackupScheduler_StartStop(t *testing.T) {
	db := openFileDB(t)
	scheduler := NewBackupScheduler(NewBackupManager(db, t.TempDir()), SchedulerConfig{Interval: time.Hour})

	if scheduler.IsRunning() {
		t.Fatal("Scheduler should not be running before Start")
	}
	if err := scheduler.Stop(); err == nil {
		t.Error("Expected error stopping a scheduler that is not running")
	}

	for cycle := 0; cycle < 3; cycle++ {
		if err := scheduler.Start(context.Background()); err != nil {
			t.Fatalf("Cycle %d: failed to start: %v", cycle, err)
		}
		if err := scheduler.Start(context.Background()); err == nil {
			t.Errorf("Cycle %d: expected error starting twice", cycle)
		}
		if !scheduler.IsRunning() {
			t.Errorf("Cycle %d: scheduler should be running", cycle)
		}
		if err := scheduler.Stop(); err != nil {
			t.Fatalf("Cycle %d: failed to stop: %v", cycle, err)
		}
		if scheduler.IsRunning() {
			t.Errorf("Cycle %d: scheduler should be stopped", cycle)
		}
	}
}

func TestBackupScheduler_StartImmediately(t *testing.T) {
	db := openFileDB(t)
	dir := t.TempDir()

	var mu sync.Mutex
	var paths []string
	done := make(chan struct{}, 1)

	scheduler := NewBackupScheduler(NewBackupManager(db, dir), SchedulerConfig{
		Interval:         time.Hour,
		StartImmediately: true,
		OnBackupComplete: func(path string, err error) {
			if err != nil {
				t.Errorf("Backup failed: %v", err)
			}
			mu.Lock()
			paths = append(paths, path)
			mu.Unlock()
			done <- struct{}{}
		},
	})

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	defer func() { _ = scheduler.Stop() }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Immediate backup did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 || !strings.HasPrefix(paths[0], dir) {
		t.Fatalf("Unexpected backup paths: %v", paths)
	}
	if _, err := os.Stat(paths[0]); err != nil {
		t.Errorf("Backup file missing: %v", err)
	}
}

func TestBackupScheduler_ScheduledExecution(t *testing.T) {
	db := openFileDB(t)
	done := make(chan struct{}, 10)

	scheduler := NewBackupScheduler(NewBackupManager(db, t.TempDir()), SchedulerConfig{
		Interval:         50 * time.Millisecond,
		OnBackupComplete: func(string, error) { done <- struct{}{} },
	})
	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("Scheduled backup %d did not run", i+1)
		}
	}
	if err := scheduler.Stop(); err != nil {
		t.Fatalf("Failed to stop: %v", err)
	}

	status := scheduler.Status()
	if status.BackupCount < 2 {
		t.Errorf("Expected at least 2 backups, got %d", status.BackupCount)
	}
	if status.FailureCount != 0 {
		t.Errorf("Expected no failures, got %d (%s)", status.FailureCount, status.LastError)
	}
}

func TestBackupScheduler_TriggerBackupAndStatus(t *testing.T) {
	db := openFileDB(t)
	scheduler := NewBackupScheduler(NewBackupManager(db, t.TempDir()), SchedulerConfig{Interval: time.Hour})

	path, err := scheduler.TriggerBackup(context.Background())
	if err != nil {
		t.Fatalf("TriggerBackup failed: %v", err)
	}
	if err := VerifyBackup(path); err != nil {
		t.Errorf("Triggered backup is not valid: %v", err)
	}

	status := scheduler.Status()
	if status.BackupCount != 1 || status.LastPath != path {
		t.Errorf("Unexpected status after trigger: %+v", status)
	}
	if !status.NextBackup.IsZero() {
		t.Error("Stopped scheduler should not report a next backup")
	}
	if status.String() != "Scheduler: Stopped" {
		t.Errorf("Unexpected status string %q", status.String())
	}
}

func TestBackupScheduler_FailureCounted(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var gotErr error
	scheduler := NewBackupScheduler(NewBackupManager(db, t.TempDir()), SchedulerConfig{
		Interval:         time.Hour,
		OnBackupComplete: func(_ string, err error) { gotErr = err },
	})

	if _, err := scheduler.TriggerBackup(context.Background()); err == nil {
		t.Fatal("Expected in-memory backup to fail")
	}
	if gotErr == nil {
		t.Error("Callback should receive the error")
	}

	status := scheduler.Status()
	if status.FailureCount != 1 || status.LastError == "" {
		t.Errorf("Unexpected status after failure: %+v", status)
	}
}

func TestBackupScheduler_PrunesOldBackups(t *testing.T) {
	db := openFileDB(t)
	bm := NewBackupManager(db, t.TempDir())
	scheduler := NewBackupScheduler(bm, SchedulerConfig{Interval: time.Hour, Keep: 2})

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		path, err := scheduler.TriggerBackup(context.Background())
		if err != nil {
			t.Fatalf("Backup %d failed: %v", i, err)
		}
		// Distinct mtimes keep List ordering deterministic.
		mtime := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("Chtimes failed: %v", err)
		}
	}

	backups, err := bm.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("Expected 2 backups after pruning, got %d", len(backups))
	}
}

func TestBackupManager_Prune(t *testing.T) {
	db := openFileDB(t)
	bm := NewBackupManager(db, t.TempDir())
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"a", "b", "c"} {
		path, err := bm.Backup(ctx, BackupOptions{Name: name})
		if err != nil {
			t.Fatalf("Backup %s failed: %v", name, err)
		}
		mtime := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("Chtimes failed: %v", err)
		}
	}

	if n, err := bm.Prune(0); err != nil || n != 0 {
		t.Errorf("Prune(0) = %d, %v; want 0, nil", n, err)
	}

	n, err := bm.Prune(1)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 removed, got %d", n)
	}

	backups, _ := bm.List()
	if len(backups) != 1 || backups[0].Name != "c.db" {
		t.Errorf("Expected only the newest backup to remain, got %+v", backups)
	}
}

func TestSchedulerStatus_String(t *testing.T) {
	status := SchedulerStatus{
		Running:     true,
		Interval:    time.Hour,
		BackupCount: 3,
		LastBackup:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LastError:   "disk full",
	}
	s := status.String()
	for _, want := range []string{"Running", "Interval: 1h0m0s", "Total Backups: 3", "2024-01-01T00:00:00Z", "disk full"} {
		if !strings.Contains(s, want) {
			t.Errorf("Status string missing %q:\n%s", want, s)
		}
	}
}
