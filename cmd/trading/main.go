package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/silverfox-lab/silverfox-trading/internal/broker"
	"github.com/silverfox-lab/silverfox-trading/internal/config"
	"github.com/silverfox-lab/silverfox-trading/internal/engine"
	"github.com/silverfox-lab/silverfox-trading/internal/logger"
	"github.com/silverfox-lab/silverfox-trading/internal/market"
	"github.com/silverfox-lab/silverfox-trading/internal/notify"
	"github.com/silverfox-lab/silverfox-trading/internal/scheduler"
	"github.com/silverfox-lab/silverfox-trading/internal/store"
)

func main() {
	// Define command-line flags
	configFlag := flag.String("config", "", "Path to strategy configuration YAML (defaults apply if omitted)")
	dataDirFlag := flag.String("data-dir", "", "Override the persisted state directory")
	cashFlag := flag.Float64("cash", 100000, "Initial paper account cash")
	codesFlag := flag.String("sim-codes", "", "Comma-separated instrument codes for the simulated feed (required)")
	seedFlag := flag.Int64("sim-seed", 0, "Seed for the simulated feed")

	flag.Parse()

	if *codesFlag == "" {
		fmt.Println("Error: --sim-codes flag is required")
		flag.Usage()
		os.Exit(1)
	}

	codes := strings.Split(*codesFlag, ",")
	for i := range codes {
		codes[i] = strings.TrimSpace(codes[i])
	}

	// Load configuration
	cfg := config.DefaultConfig()
	if *configFlag != "" {
		loaded, err := config.LoadConfig(*configFlag)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *dataDirFlag != "" {
		cfg.DataDir = *dataDirFlag
	}

	logr, err := logger.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logr.Sync()

	st, err := store.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}

	// Simulated collaborators; a deployment swaps these for real broker
	// and feed adapters behind the same interfaces.
	feed := market.NewSimFeed(market.SimFeedConfig{
		Codes: codes,
		Seed:  *seedFlag,
	})
	history := market.NewSimHistory(codes, 0)
	calendar := market.WeekdayCalendar{}
	paper := broker.NewPaperBroker(*cashFlag, logr)
	notifier := notify.NewLogNotifier(logr)

	eng := engine.New(cfg, st, feed, history, calendar, paper, notifier, logr)
	sched := scheduler.NewScheduler(logr)

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, stopping...")
		cancel()
	}()

	go feed.Run(ctx)

	fmt.Printf("Starting strategy %s (%s) with %d instruments...\n",
		cfg.StrategyName, cfg.RuleFamily, len(codes))

	if err := eng.Start(ctx, sched); err != nil && ctx.Err() == nil {
		log.Fatalf("Engine stopped with error: %v", err)
	}

	fmt.Println("Trading stopped")
}
