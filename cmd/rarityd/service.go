package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kardianos/service"

	"github.com/ramonehamilton/nft-rarity/internal/config"
)

// program adapts the daemon to service.Interface. The same code path runs
// interactively and under a service manager.
type program struct {
	cfg    *config.Config
	daemon *daemon
}

// Start must not block.
func (p *program) Start(s service.Service) error {
	d, err := newDaemon(p.cfg)
	if err != nil {
		return err
	}
	if err := d.start(); err != nil {
		d.stop()
		return err
	}
	p.daemon = d
	return nil
}

// Stop is called on SIGINT/SIGTERM when interactive, or by the service
// manager.
func (p *program) Stop(s service.Service) error {
	if p.daemon != nil {
		p.daemon.stop()
	}
	return nil
}

func serviceConfig(configPath string) *service.Config {
	cfg := &service.Config{
		Name:        "NFTRarityDaemon",
		DisplayName: "NFT Rarity Daemon",
		Description: "Scores and ranks NFT collections and serves the rarity API",
	}
	if configPath != "" {
		cfg.Arguments = []string{"-config", configPath}
	}
	return cfg
}

// runService runs the daemon until it is stopped.
func runService(cfg *config.Config) error {
	s, err := service.New(&program{cfg: cfg}, serviceConfig(""))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return s.Run()
}

func printServiceUsage() {
	fmt.Println("Usage: rarityd service [-config path] [install|uninstall|start|stop|restart|status]")
	fmt.Println("\nAvailable commands:")
	fmt.Println("  install    - Install rarityd as a system service")
	fmt.Println("  uninstall  - Uninstall the service")
	fmt.Println("  start      - Start the service")
	fmt.Println("  stop       - Stop the service")
	fmt.Println("  restart    - Restart the service")
	fmt.Println("  status     - Show service status")
}

// runServiceCommand handles service management commands.
func runServiceCommand(args []string) {
	fs := flag.NewFlagSet("service", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file the installed service should use")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		printServiceUsage()
		os.Exit(1)
	}
	action := fs.Arg(0)

	svcConfig := serviceConfig(*configPath)
	s, err := service.New(&program{}, svcConfig)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	switch action {
	case "install":
		if err := s.Install(); err != nil {
			log.Fatalf("Failed to install service: %v", err)
		}
		fmt.Println("Service installed")
		fmt.Println("\nNext steps:")
		fmt.Println("  rarityd service start")
		fmt.Println("  rarityd service status")
		if service.Platform() == "linux-systemd" {
			fmt.Printf("  journalctl -u %s -f\n", svcConfig.Name)
		}

	case "uninstall":
		if err := s.Uninstall(); err != nil {
			log.Fatalf("Failed to uninstall service: %v", err)
		}
		fmt.Println("Service uninstalled")

	case "start":
		if err := s.Start(); err != nil {
			log.Fatalf("Failed to start service: %v", err)
		}
		fmt.Println("Service started")

	case "stop":
		if err := s.Stop(); err != nil {
			log.Fatalf("Failed to stop service: %v", err)
		}
		fmt.Println("Service stopped")

	case "restart":
		if err := s.Restart(); err != nil {
			log.Fatalf("Failed to restart service: %v", err)
		}
		fmt.Println("Service restarted")

	case "status":
		status, err := s.Status()
		if err != nil {
			log.Fatalf("Failed to get service status: %v", err)
		}
		fmt.Printf("Service %s: %s\n", svcConfig.Name, statusText(status))

	default:
		fmt.Printf("Unknown service command: %s\n", action)
		printServiceUsage()
		os.Exit(1)
	}
}

func statusText(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
