package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	backupExt          = ".db"
	encryptedBackupExt = ".db.enc"
)

// BackupManager creates and restores snapshots of the database file.
type BackupManager struct {
	db     *DB
	dbPath string
	dir    string
}

// BackupOptions controls a single backup.
type BackupOptions struct {
	// Name is the file name without extension. Defaults to a timestamp.
	Name string

	// Password encrypts the backup when set.
	Password string

	// KeyParams tunes key derivation. Zero value means DefaultKeyParams.
	KeyParams KeyParams

	// Verify opens the written backup and checks its integrity.
	Verify bool
}

// BackupInfo describes a backup on disk.
type BackupInfo struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"modTime"`
	Checksum  string    `json:"checksum"`
	Encrypted bool      `json:"encrypted"`
}

// NewBackupManager creates a backup manager writing into dir. An empty dir
// selects a "backups" directory beside the database file.
func NewBackupManager(db *DB, dir string) *BackupManager {
	bm := NewOfflineBackupManager(db.Path(), dir)
	bm.db = db
	return bm
}

// NewOfflineBackupManager creates a backup manager for the database file at
// dbPath without opening it. It can list, verify and restore backups but
// not create them.
func NewOfflineBackupManager(dbPath, dir string) *BackupManager {
	if dir == "" {
		dir = filepath.Join(filepath.Dir(dbPath), "backups")
	}
	return &BackupManager{dbPath: dbPath, dir: dir}
}

// Dir returns the backup directory.
func (bm *BackupManager) Dir() string {
	return bm.dir
}

// Backup writes a consistent snapshot with VACUUM INTO and returns its path.
func (bm *BackupManager) Backup(ctx context.Context, opts BackupOptions) (string, error) {
	if bm.db == nil {
		return "", fmt.Errorf("no open database to back up")
	}
	if bm.dbPath == memoryPath {
		return "", fmt.Errorf("cannot back up an in-memory database")
	}
	if err := os.MkdirAll(bm.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := opts.Name
	if name == "" {
		name = "rarity_" + time.Now().UTC().Format("20060102_150405")
	}
	plainPath := filepath.Join(bm.dir, name+backupExt)

	if _, err := bm.db.Conn().ExecContext(ctx, "VACUUM INTO ?", plainPath); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}

	if opts.Verify {
		if err := VerifyBackup(plainPath); err != nil {
			_ = os.Remove(plainPath)
			return "", fmt.Errorf("backup verification failed: %w", err)
		}
	}

	if opts.Password == "" {
		log.Printf("[Backup] Wrote %s", plainPath)
		return plainPath, nil
	}

	encPath := filepath.Join(bm.dir, name+encryptedBackupExt)
	err := EncryptFile(plainPath, encPath, opts.Password, keyParamsOrDefault(opts.KeyParams))
	if removeErr := os.Remove(plainPath); removeErr != nil {
		log.Printf("[Backup] Failed to remove plaintext snapshot %s: %v", plainPath, removeErr)
	}
	if err != nil {
		return "", fmt.Errorf("failed to encrypt backup: %w", err)
	}

	log.Printf("[Backup] Wrote encrypted %s", encPath)
	return encPath, nil
}

// Restore copies a backup over dst, decrypting it first when needed. The
// database at dst must be closed. The previous file is kept as dst.old.<ts>.
func (bm *BackupManager) Restore(backupPath, dst, password string, params KeyParams) error {
	encrypted, err := IsEncrypted(backupPath)
	if err != nil {
		return fmt.Errorf("failed to inspect backup: %w", err)
	}

	tmp := dst + ".restore.tmp"
	if encrypted {
		if err := DecryptFile(backupPath, tmp, password, keyParamsOrDefault(params)); err != nil {
			return err
		}
	} else if err := copyFile(backupPath, tmp); err != nil {
		return err
	}

	if err := VerifyBackup(tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("restored database verification failed: %w", err)
	}

	if _, err := os.Stat(dst); err == nil {
		old := dst + ".old." + time.Now().UTC().Format("20060102_150405")
		if err := os.Rename(dst, old); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("failed to move current database aside: %w", err)
		}
	}

	// A leftover WAL belongs to the old database.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dst + suffix); err != nil && !os.IsNotExist(err) {
			log.Printf("[Backup] Failed to remove %s%s: %v", dst, suffix, err)
		}
	}

	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("failed to replace database: %w", err)
	}
	return nil
}

// List returns the backups in the backup directory, newest first.
func (bm *BackupManager) List() ([]BackupInfo, error) {
	entries, err := os.ReadDir(bm.dir)
	if os.IsNotExist(err) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		name := entry.Name()
		encrypted := strings.HasSuffix(name, encryptedBackupExt)
		if entry.IsDir() || (!encrypted && filepath.Ext(name) != backupExt) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(bm.dir, name)
		checksum, err := fileChecksum(path)
		if err != nil {
			checksum = "unknown"
		}

		backups = append(backups, BackupInfo{
			Path:      path,
			Name:      name,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			Checksum:  checksum,
			Encrypted: encrypted,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].ModTime.After(backups[j].ModTime)
	})
	return backups, nil
}

// Prune deletes all but the newest keep backups and returns how many were
// removed. keep <= 0 keeps everything.
func (bm *BackupManager) Prune(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	backups, err := bm.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, b := range backups[min(keep, len(backups)):] {
		if err := os.Remove(b.Path); err != nil {
			return removed, fmt.Errorf("failed to remove backup %s: %w", b.Name, err)
		}
		removed++
	}
	return removed, nil
}

// VerifyBackup opens path as SQLite and runs an integrity check.
func VerifyBackup(path string) error {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var result string
	if err := conn.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to check backup: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check reported: %s", result)
	}

	var n int
	if err := conn.QueryRow("SELECT COUNT(*) FROM collections").Scan(&n); err != nil {
		return fmt.Errorf("backup is missing the collections table: %w", err)
	}
	return nil
}

func keyParamsOrDefault(p KeyParams) KeyParams {
	if p == (KeyParams{}) {
		return DefaultKeyParams()
	}
	return p
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
