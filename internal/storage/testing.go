package storage

import "fmt"

// OpenMemory opens a migrated in-memory database. Other packages use it in
// tests that need a real store.
func OpenMemory() (*DB, error) {
	db, err := Open(DefaultConfig(memoryPath))
	if err != nil {
		return nil, err
	}
	if err := MigrateConn(db.Conn()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate in-memory database: %w", err)
	}
	return db, nil
}
