package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/ramonehamilton/nft-rarity/internal/config"
	"github.com/ramonehamilton/nft-rarity/internal/storage"
)

// dbFlags are shared by the commands that touch the database.
type dbFlags struct {
	configPath string
	dbPath     string
}

func (f *dbFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Config file path (default: ~/.nft-rarity/config.toml)")
	fs.StringVar(&f.dbPath, "db-path", "", "Database path (overrides the config file)")
}

// resolve returns the database path and backup directory.
func (f *dbFlags) resolve() (dbPath, backupDir string, err error) {
	path := f.configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return "", "", err
	}
	if f.dbPath != "" {
		cfg.Database.Path = f.dbPath
	}
	return cfg.Database.Path, cfg.Database.BackupDir, nil
}

// password reads the backup password from a flag or an environment variable.
func password(direct, envName string) (string, error) {
	if direct != "" {
		return direct, nil
	}
	if envName == "" {
		return "", nil
	}
	pw := os.Getenv(envName)
	if pw == "" {
		return "", fmt.Errorf("environment variable %s is empty", envName)
	}
	return pw, nil
}

func printBackupUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: rarity backup <create|restore|list|verify> [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  create   [-name N] [-dir D] [-password P | -password-env VAR]")
	fmt.Fprintln(out, "  restore  -file F [-password P | -password-env VAR]")
	fmt.Fprintln(out, "  list     [-dir D]")
	fmt.Fprintln(out, "  verify   -file F")
}

func runBackup(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		printBackupUsage(out)
		return errors.New("backup command required")
	}

	var df dbFlags
	fs := flag.NewFlagSet("backup "+args[0], flag.ContinueOnError)
	df.register(fs)
	dir := fs.String("dir", "", "Backup directory (default: backups beside the database)")
	name := fs.String("name", "", "Backup name (default: timestamp)")
	file := fs.String("file", "", "Backup file")
	pw := fs.String("password", "", "Encryption password")
	pwEnv := fs.String("password-env", "", "Environment variable holding the encryption password")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	dbPath, backupDir, err := df.resolve()
	if err != nil {
		return err
	}
	if *dir != "" {
		backupDir = *dir
	}

	switch args[0] {
	case "create":
		secret, err := password(*pw, *pwEnv)
		if err != nil {
			return err
		}
		return withBackupManager(dbPath, backupDir, func(bm *storage.BackupManager) error {
			path, err := bm.Backup(ctx, storage.BackupOptions{Name: *name, Password: secret, Verify: true})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Backup written to %s\n", path)
			return nil
		})

	case "restore":
		if *file == "" {
			return errors.New("-file is required")
		}
		secret, err := password(*pw, *pwEnv)
		if err != nil {
			return err
		}
		// Restore swaps the database file, so nothing may hold it open.
		bm := storage.NewOfflineBackupManager(dbPath, backupDir)
		if err := bm.Restore(*file, dbPath, secret, storage.KeyParams{}); err != nil {
			return err
		}
		fmt.Fprintf(out, "Restored %s to %s\n", *file, dbPath)
		return nil

	case "list":
		bm := storage.NewOfflineBackupManager(dbPath, backupDir)
		backups, err := bm.List()
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Fprintf(out, "No backups in %s\n", bm.Dir())
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSIZE\tCREATED\tENCRYPTED")
		for _, b := range backups {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%v\n", b.Name, b.Size, b.ModTime.Format("2006-01-02 15:04:05"), b.Encrypted)
		}
		return tw.Flush()

	case "verify":
		if *file == "" {
			return errors.New("-file is required")
		}
		if err := storage.VerifyBackup(*file); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is a valid database\n", *file)
		return nil

	default:
		printBackupUsage(out)
		return fmt.Errorf("unknown backup command %q", args[0])
	}
}

func withBackupManager(dbPath, backupDir string, fn func(*storage.BackupManager) error) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database %s: %w", dbPath, err)
	}
	db, err := storage.Open(storage.DefaultConfig(dbPath))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return fn(storage.NewBackupManager(db, backupDir))
}

func runMigrate(args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(out, "Usage: rarity migrate <up|down|version> [-db-path P]")
		return errors.New("migrate command required")
	}

	var df dbFlags
	fs := flag.NewFlagSet("migrate "+args[0], flag.ContinueOnError)
	df.register(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	dbPath, _, err := df.resolve()
	if err != nil {
		return err
	}

	mgr, err := storage.NewMigrationManager(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Close() }()

	switch args[0] {
	case "up":
		if err := mgr.Up(); err != nil {
			return err
		}
	case "down":
		if err := mgr.Down(); err != nil {
			return err
		}
	case "version", "status":
	default:
		return fmt.Errorf("unknown migrate command %q", args[0])
	}

	v, dirty, err := mgr.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Schema version: %d", v)
	if dirty {
		fmt.Fprint(out, " (dirty)")
	}
	fmt.Fprintln(out)
	return nil
}
