// Command rarity scores collection files offline and manages the rarity
// database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ramonehamilton/nft-rarity/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "rarity: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches a subcommand.
func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return fmt.Errorf("no command given")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "score":
		return runScore(rest, out)
	case "inspect":
		return runInspect(rest, out)
	case "traits":
		return runTraits(rest, out)
	case "fetch":
		return runFetch(ctx, rest, out)
	case "backup":
		return runBackup(ctx, rest, out)
	case "migrate":
		return runMigrate(rest, out)
	case "version":
		v := version.Get()
		fmt.Fprintf(out, "rarity %s (commit %s, built %s, %s)\n", v.Version, v.Commit, v.BuildDate, v.GoVersion)
		return nil
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage: rarity <command> [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  score      - Rank a collection file")
	fmt.Fprintln(out, "  inspect    - Show the rarity of one trait")
	fmt.Fprintln(out, "  traits     - Print the trait rarity table")
	fmt.Fprintln(out, "  fetch      - Download token metadata into a collection file")
	fmt.Fprintln(out, "  backup     - Create, restore, list or verify database backups")
	fmt.Fprintln(out, "  migrate    - Run database migrations (up, down, version)")
	fmt.Fprintln(out, "  version    - Print version information")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  rarity score -file apes.json -top 20")
	fmt.Fprintln(out, "  rarity inspect -file apes.json -trait-type Background -value Gold")
	fmt.Fprintln(out, "  rarity fetch -base-url https://meta.example/apes -from 1 -to 10000 -out apes.json")
	fmt.Fprintln(out, "  rarity backup create -password-env RARITY_BACKUP_PASSWORD")
}
