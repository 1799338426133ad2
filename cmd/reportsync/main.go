package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hive-corporation/reportsync/internal/adapter/catalog"
	"github.com/hive-corporation/reportsync/internal/adapter/disk"
	"github.com/hive-corporation/reportsync/internal/adapter/ledger"
	"github.com/hive-corporation/reportsync/internal/adapter/notifier"
	"github.com/hive-corporation/reportsync/internal/adapter/tree"
	"github.com/hive-corporation/reportsync/internal/config"
	"github.com/hive-corporation/reportsync/internal/core/syncer"
)

// Exit codes: 0 full success, 1 config/catalog failure, 2 fetch/write
// failures, 3 stopped early on low disk, 4 notify failures only.
func main() {
	// Load .env file if it exists (optional - credentials may live in the config)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found (this is fine if the API credentials are in the config)")
	}

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s /path/to/config.ini [days]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	days := 2
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil || parsed < 1 {
			log.Fatalf("❌ Invalid days argument %q: expected a positive integer", args[1])
		}
		days = parsed
	}

	cfg, err := config.Load(args[0])
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	syncer.InitMetrics()

	writer, err := tree.NewWriter(cfg.Reports.Directory, cfg.Reports.URLPrefix)
	if err != nil {
		log.Fatalf("❌ Failed to prepare reports directory: %v", err)
	}

	reportLedger, err := ledger.Open(ctx, cfg.Reports.LedgerDSN)
	if err != nil {
		log.Fatalf("❌ Failed to open ledger: %v", err)
	}
	defer reportLedger.Close()

	reportNotifier, err := notifier.New(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize '%s' notifier: %v", cfg.Reports.Notifier, err)
	}
	defer reportNotifier.Close()

	driver := syncer.New(
		catalog.NewClient(cfg.API),
		reportLedger,
		disk.NewGuard(cfg.Reports.Directory, cfg.Reports.MinDiskFree),
		writer,
		reportNotifier,
		syncer.Options{
			Types:        cfg.Reports.Types,
			MailingLists: cfg.Reports.MailingLists,
			Workers:      cfg.Reports.Workers,
		},
	)

	summary, err := driver.Run(ctx, days)
	if err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}

	os.Exit(summary.ExitCode())
}
