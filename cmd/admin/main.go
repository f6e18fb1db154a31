package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"horizon/internal/infrastructure/postgres"
	"horizon/internal/shared/config"
	"horizon/internal/shared/handle"
)

const usage = `Horizon Admin CLI - Management commands for the Horizon API

Usage:
  admin <command> [options]

Commands:
  orphan-check    Find users whose payment-rail customer profile was never
                  provisioned (enrollment rows left behind by a failed
                  compensation)
  handle-verify   Verify every stored public handle decodes back to its
                  account id

Examples:
  # List orphaned enrollment rows
  admin orphan-check

  # Remove orphaned enrollment rows
  admin orphan-check --fix

  # Audit handles with a custom timeout
  admin handle-verify --timeout=5m
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	_ = godotenv.Load()

	switch os.Args[1] {
	case "orphan-check":
		runOrphanCheck(os.Args[2:])
	case "handle-verify":
		runHandleVerify(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage + "\n")
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		fmt.Print(usage + "\n")
		os.Exit(1)
	}
}

func runOrphanCheck(args []string) {
	fs := flag.NewFlagSet("orphan-check", flag.ExitOnError)
	fix := fs.Bool("fix", false, "Delete the orphaned user rows")
	timeoutStr := fs.String("timeout", "5m", "Timeout for the operation (e.g., 5m, 1h)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, cancel, _, db := setup(*timeoutStr)
	defer cancel()
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	orphans, err := userRepo.ListWithoutRailCustomer(ctx)
	if err != nil {
		log.Fatalf("Failed to list orphaned users: %v", err)
	}

	if len(orphans) == 0 {
		log.Println("No orphaned enrollment rows found")
		return
	}

	for _, u := range orphans {
		fmt.Printf("user %d  %s  created %s\n", u.ID, u.Email, u.CreatedAt.Format(time.RFC3339))
	}
	log.Printf("Found %d orphaned enrollment row(s)", len(orphans))

	if !*fix {
		log.Println("Run with --fix to delete them")
		return
	}

	removed := 0
	for _, u := range orphans {
		if err := userRepo.Delete(ctx, u.ID); err != nil {
			log.Printf("Failed to delete user %d: %v", u.ID, err)
			continue
		}
		removed++
	}
	log.Printf("Removed %d of %d orphaned row(s)", removed, len(orphans))
}

func runHandleVerify(args []string) {
	fs := flag.NewFlagSet("handle-verify", flag.ExitOnError)
	timeoutStr := fs.String("timeout", "5m", "Timeout for the operation (e.g., 5m, 1h)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, cancel, cfg, db := setup(*timeoutStr)
	defer cancel()
	defer db.Close()

	codec, err := handle.NewCodec(cfg.Encryption.HandleKey)
	if err != nil {
		log.Fatalf("Failed to create handle codec: %v", err)
	}

	linkRepo := postgres.NewBankLinkRepository(db)
	links, err := linkRepo.ListAll(ctx)
	if err != nil {
		log.Fatalf("Failed to list bank links: %v", err)
	}

	bad := 0
	for _, l := range links {
		decoded, err := codec.Decode(l.PublicHandle)
		if err != nil {
			fmt.Printf("link %d: handle does not decode: %v\n", l.ID, err)
			bad++
			continue
		}
		if decoded != l.AccountID {
			fmt.Printf("link %d: handle decodes to %q, stored account is %q\n", l.ID, decoded, l.AccountID)
			bad++
		}
	}

	if bad > 0 {
		log.Fatalf("%d of %d handle(s) failed verification", bad, len(links))
	}
	log.Printf("All %d handle(s) verified", len(links))
}

func setup(timeoutStr string) (context.Context, context.CancelFunc, *config.Config, *postgres.DB) {
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return ctx, cancel, cfg, db
}
