// Command rarityd serves the rarity engine over HTTP, imports collections
// dropped into a watched directory and pushes ranking events to websocket
// clients.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ramonehamilton/nft-rarity/internal/config"
	"github.com/ramonehamilton/nft-rarity/internal/version"
)

// flags holds command line overrides of the configuration file.
type flags struct {
	configPath string
	port       int
	dbPath     string
	watchDir   string
	debug      bool
}

func parseFlags(args []string) (*flags, error) {
	fs := flag.NewFlagSet("rarityd", flag.ContinueOnError)
	f := &flags{}
	fs.StringVar(&f.configPath, "config", "", "Config file path (default: ~/.nft-rarity/config.toml)")
	fs.IntVar(&f.port, "port", 0, "API server port")
	fs.StringVar(&f.dbPath, "db-path", "", "Database path")
	fs.StringVar(&f.watchDir, "watch-dir", "", "Import collection files dropped into this directory")
	fs.BoolVar(&f.debug, "debug", false, "Log event payloads")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *showVersion {
		fmt.Printf("rarityd %s\n", version.GetVersion())
		os.Exit(0)
	}
	return f, nil
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(f *flags) (*config.Config, error) {
	path := f.configPath
	if path == "" {
		path = config.Path()
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, f)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, f *flags) {
	if f.port != 0 {
		cfg.Server.Port = f.port
	}
	if f.dbPath != "" {
		cfg.Database.Path = f.dbPath
	}
	if f.watchDir != "" {
		cfg.Watcher.Enabled = true
		cfg.Watcher.Dir = f.watchDir
	}
	if f.debug {
		cfg.App.DebugMode = true
	}
}

func main() {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "service" {
		runServiceCommand(args[1:])
		return
	}

	f, err := parseFlags(args)
	if err != nil {
		os.Exit(2)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := runService(cfg); err != nil {
		log.Fatalf("rarityd: %v", err)
	}
}
