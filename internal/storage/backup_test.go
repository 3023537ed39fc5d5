package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/nft-rarity/internal/storage/models"
)

func openFileDB(t *testing.T) *DB {
	t.Helper()

	config := DefaultConfig(filepath.Join(t.TempDir(), "rarity.db"))
	config.AutoMigrate = true
	db, err := Open(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBackupManager_PlainAndEncrypted(t *testing.T) {
	db := openFileDB(t)
	ctx := context.Background()

	svc := NewService(db)
	items := sampleItems()
	_, err := svc.SaveCollection(ctx, &models.Collection{Slug: "apes", Name: "Apes"}, items, rankItems(items))
	require.NoError(t, err)

	bm := NewBackupManager(db, "")
	assert.Equal(t, filepath.Join(filepath.Dir(db.Path()), "backups"), bm.Dir())

	plain, err := bm.Backup(ctx, BackupOptions{Name: "plain", Verify: true})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(plain, ".db"))
	require.NoError(t, VerifyBackup(plain))

	enc, err := bm.Backup(ctx, BackupOptions{Name: "secret", Password: "pw", KeyParams: fastParams})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(enc, ".db.enc"))

	encrypted, err := IsEncrypted(enc)
	require.NoError(t, err)
	assert.True(t, encrypted)

	backups, err := bm.List()
	require.NoError(t, err)
	require.Len(t, backups, 2)

	// Restore the encrypted backup into a fresh path and read it back.
	target := filepath.Join(t.TempDir(), "restored.db")
	require.Error(t, bm.Restore(enc, target, "wrong", fastParams))
	require.NoError(t, bm.Restore(enc, target, "pw", fastParams))

	restored, err := Open(DefaultConfig(target))
	require.NoError(t, err)
	defer restored.Close()

	list, err := NewService(restored).Collections(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "apes", list[0].Slug)
}

func TestBackupManager_InMemoryRejected(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewBackupManager(db, t.TempDir()).Backup(context.Background(), BackupOptions{})
	assert.Error(t, err)
}

func TestBackupManager_ListMissingDir(t *testing.T) {
	db := openFileDB(t)
	backups, err := NewBackupManager(db, filepath.Join(t.TempDir(), "none")).List()
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestOfflineBackupManager(t *testing.T) {
	db := openFileDB(t)
	ctx := context.Background()

	live := NewBackupManager(db, "")
	path, err := live.Backup(ctx, BackupOptions{Name: "snap"})
	require.NoError(t, err)

	offline := NewOfflineBackupManager(db.Path(), "")
	assert.Equal(t, live.Dir(), offline.Dir())

	backups, err := offline.List()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, path, backups[0].Path)

	_, err = offline.Backup(ctx, BackupOptions{})
	assert.Error(t, err, "offline manager cannot snapshot")

	target := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, offline.Restore(path, target, "", KeyParams{}))
	require.NoError(t, VerifyBackup(target))
}
