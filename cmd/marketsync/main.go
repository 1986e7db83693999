package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"MarketSync/internal/alert"
	"MarketSync/internal/collector"
	"MarketSync/internal/config"
	"MarketSync/internal/notifier"
	"MarketSync/internal/planner"
	"MarketSync/internal/recorder"
	"MarketSync/internal/scheduler"
	"MarketSync/internal/store"
	"MarketSync/internal/syncer"
)

func main() {
	once := flag.Bool("once", false, "run one sync pass over every granularity and exit")
	cfgFlag := flag.String("config", "", "config file (default $CONFIG_PATH or configs/config.yaml)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] MarketSync starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	if *cfgFlag != "" {
		cfgPath = *cfgFlag
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}
	loc, _ := cfg.Location()
	policy, _ := cfg.PlannerPolicy()
	granularities, _ := cfg.ParsedGranularities()

	// Init fetcher
	var fetcher collector.Fetcher
	switch cfg.DataSource.Provider {
	case "angelone":
		ao := cfg.DataSource.AngelOne
		fetcher = collector.NewAngelOneFetcher(ao.APIKey, ao.AccessToken, ao.Exchange, ao.SymbolTokens, cfg.Proxy, loc)
	case "mock":
		fetcher = &collector.MockFetcher{Price: cfg.DataSource.MockPrice}
	default:
		fetcher = collector.NewYahooFetcher(cfg.Proxy, loc)
	}
	log.Printf("[INFO] data source: %s", fetcher.Name())
	col := collector.NewCollector(fetcher, cfg.CollectorOptions())

	st := store.NewCSVStore(cfg.Storage.DataRoot, loc)

	// Init Telegram notifier
	var (
		tn    *notifier.TelegramNotifier
		notif notifier.Notifier
	)
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		notif = tn
	} else {
		log.Println("[WARN] telegram not configured, notifications disabled")
	}

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	sy, err := syncer.New(syncer.Config{
		Tickers:       cfg.Tickers,
		Granularities: granularities,
		Fetcher:       col,
		Store:         st,
		Planner:       planner.New(policy),
		Notifier:      notif,
		Recorder:      rec,
		Concurrency:   cfg.Sync.Concurrency,
	})
	if err != nil {
		log.Fatalf("[FATAL] init synchronizer: %v", err)
	}

	mon, err := alert.NewMonitor(alert.Config{
		Store:      st,
		Notifier:   notif,
		Recorder:   rec,
		Period:     cfg.Indicator.RSIPeriod,
		Thresholds: cfg.Thresholds(),
		StateFile:  cfg.Alert.StateFile,
	})
	if err != nil {
		log.Fatalf("[FATAL] init rsi monitor: %v", err)
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(ctx, sy, st, mon, notif, loc)
	sched.ParquetDir = cfg.Storage.ParquetDir
	sched.Alerts = cfg.Alert.Enabled

	if *once {
		res := sched.RunNow("once")
		if res.HasFailures() {
			log.Printf("[ERROR] sync pass %s had failures", res.RunID)
			rec.Close()
			os.Exit(1)
		}
		log.Println("[INFO] MarketSync stopped")
		return
	}

	if err := sched.RegisterAll(cfg.CronFor); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing sync pass now")
		go sched.RunNow("startup")
	}

	log.Println("[INFO] MarketSync is running. Press Ctrl+C to stop.")

	<-ctx.Done()
	log.Println("[INFO] shutdown signal received, stopping...")
	log.Println("[INFO] MarketSync stopped")
}
