package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"leadsweep/budget"
	"leadsweep/config"
	"leadsweep/httputil"
	"leadsweep/logging"
	"leadsweep/proxy"
	"leadsweep/scraper"
	"leadsweep/storage"
)

var (
	listingsOnly  = flag.Bool("listings-only", false, "Ingest listings and exit without resolving contacts")
	contactsOnly  = flag.Bool("contacts-only", false, "Skip ingestion and only resolve contacts")
	skipContacts  = flag.Bool("skip-contacts", false, "Ingest listings but leave contact resolution to a later run")
	skipProxyTest = flag.Bool("skip-proxy-test", false, "Do not verify a proxy session before the run")
	ids           = flag.String("ids", "", "Comma-separated external ids to resolve contacts for, bypassing eligibility")
	maxRuntime    = flag.Duration("max-runtime", 0, "Override the configured run budget")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath, cfg.LogMaxSize)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting leadsweep...")
	log.Printf("Loaded %d regions", len(cfg.Regions))
	for _, region := range cfg.Regions {
		log.Printf("  - %s (%s)", region.Name, region.State)
	}

	ctx := context.Background()

	var store storage.Store
	if cfg.DatabaseURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
		store = pgStore
	} else {
		sqliteStore, err := storage.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open SQLite: %v", err)
		}
		log.Printf("SQLite database: %s", cfg.SQLitePath)
		store = sqliteStore
	}
	defer store.Close()

	pool := proxy.NewPool(cfg.Proxy, cfg.Source.Timeout)
	if pool.Size() == 0 {
		log.Println("Warning: no proxy sessions configured, requests go out directly")
	} else if !*skipProxyTest {
		testCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if err := pool.SelfTest(testCtx); err != nil {
			log.Printf("Warning: proxy self-test failed: %v", err)
		}
		cancel()
	}

	source := scraper.NewSourceClient(cfg, pool)
	gateway := scraper.NewGatewayClient(cfg.Gateway, httputil.NewDirectClient(cfg.Gateway.Timeout))

	pipeline := scraper.NewPipeline(cfg, store, source, gateway, pool)
	if cfg.Snapshot.Enabled() {
		archiver, err := storage.NewSnapshotArchiver(ctx, storage.SnapshotConfig{
			Bucket:          cfg.Snapshot.Bucket,
			Region:          cfg.Snapshot.Region,
			Endpoint:        cfg.Snapshot.Endpoint,
			AccessKeyID:     cfg.Snapshot.AccessKeyID,
			SecretAccessKey: cfg.Snapshot.SecretAccessKey,
			Prefix:          cfg.Snapshot.Prefix,
		})
		if err != nil {
			log.Printf("Warning: snapshot archival disabled: %v", err)
		} else {
			pipeline.SetArchiver(archiver)
			log.Printf("Snapshot archival enabled: s3://%s/%s", cfg.Snapshot.Bucket, cfg.Snapshot.Prefix)
		}
	}

	runBudget := cfg.Pipeline.MaxRuntime
	if *maxRuntime > 0 {
		runBudget = *maxRuntime
	}
	ctrl := budget.New(runBudget)
	log.Printf("Run budget: %s", runBudget)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received %s, winding down", sig)
		ctrl.RequestStop()
	}()

	opts := scraper.RunOptions{
		ListingsOnly: *listingsOnly,
		ContactsOnly: *contactsOnly,
		SkipContacts: *skipContacts,
		ExternalIDs:  splitIDs(*ids),
	}

	if _, err := pipeline.Run(ctx, ctrl, opts); err != nil {
		log.Fatalf("Run failed: %v", err)
	}
}

func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	// Find : after user
	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
