package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/docforge/rag-pipeline/internal/auth"
	"github.com/docforge/rag-pipeline/pkg/config"
	"github.com/docforge/rag-pipeline/pkg/logger"
	"github.com/docforge/rag-pipeline/pkg/postgres"
)

// authadmin is a CLI tool for managing API keys.
//
// Usage:
//
//	authadmin create --owner <owner-id> --name "my-app"
//	authadmin revoke --key <raw-key>
//	authadmin list
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	keys := auth.NewAPIKeyStore(db)
	ctx := context.Background()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "create":
		cmdCreate(ctx, keys, args[1:])
	case "revoke":
		cmdRevoke(ctx, keys, args[1:])
	case "list":
		cmdList(ctx, keys)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func cmdCreate(ctx context.Context, keys *auth.APIKeyStore, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id the key belongs to")
	name := fs.String("name", "", "name for the api key")
	fs.Parse(args)

	if *owner == "" || *name == "" {
		fmt.Fprintln(os.Stderr, "error: --owner and --name are required")
		os.Exit(1)
	}

	key, err := keys.CreateKey(ctx, *owner, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("API key created successfully.")
	fmt.Println("Store this key securely — it cannot be retrieved again.")
	fmt.Println()
	fmt.Printf("  Key:   %s\n", key)
	fmt.Printf("  Owner: %s\n", *owner)
	fmt.Printf("  Name:  %s\n", *name)
}

func cmdRevoke(ctx context.Context, keys *auth.APIKeyStore, args []string) {
	fs := flag.NewFlagSet("revoke", flag.ExitOnError)
	key := fs.String("key", "", "raw api key to revoke")
	fs.Parse(args)

	if *key == "" {
		fmt.Fprintln(os.Stderr, "error: --key is required")
		os.Exit(1)
	}

	if err := keys.RevokeKey(ctx, *key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to revoke key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("API key revoked successfully.")
}

func cmdList(ctx context.Context, keys *auth.APIKeyStore) {
	all, err := keys.ListKeys(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list keys: %v\n", err)
		os.Exit(1)
	}

	if len(all) == 0 {
		fmt.Println("No API keys.")
		return
	}

	fmt.Printf("%-24s  %-20s  %-8s  %s\n", "Owner", "Name", "Revoked", "Created")
	fmt.Println("------------------------  --------------------  --------  -------------------------")
	for _, k := range all {
		fmt.Printf("%-24s  %-20s  %-8t  %s\n", k.OwnerID, k.Name, k.Revoked, k.CreatedAt.Format(time.RFC3339))
	}

	fmt.Printf("\nTotal: %d key(s)\n", len(all))
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: authadmin <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  create   Create a new API key for an owner")
	fmt.Fprintln(os.Stderr, "  revoke   Revoke an existing API key")
	fmt.Fprintln(os.Stderr, "  list     List all API keys")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Examples:")
	fmt.Fprintln(os.Stderr, `  authadmin create --owner "acme" --name "acme-backend"`)
	fmt.Fprintln(os.Stderr, `  authadmin revoke --key "rp_abc123..."`)
	fmt.Fprintln(os.Stderr, `  authadmin list`)
}
