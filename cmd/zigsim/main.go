// Package main is the entry point for the zigsim simulator.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nugget/zigbeesim/internal/buildinfo"
	"github.com/nugget/zigbeesim/internal/config"
	"github.com/nugget/zigbeesim/internal/dashboard"
	"github.com/nugget/zigbeesim/internal/mqttbridge"
	"github.com/nugget/zigbeesim/internal/report"
	"github.com/nugget/zigbeesim/internal/runstore"
	"github.com/nugget/zigbeesim/internal/simtime"
	"github.com/nugget/zigbeesim/internal/topology"
	"github.com/nugget/zigbeesim/internal/trace"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	configPath := flag.String("config", "", "path to scenario YAML file")
	dbPath := flag.String("db", "./data/zigsim.db", "path to the run-results SQLite database")
	campaignID := flag.String("campaign", "", "campaign id to file this run under (default: the run's own id)")
	listenAddr := flag.String("listen", ":8089", "address the serve command's dashboard listens on")
	mqttBroker := flag.String("mqtt-broker", "", "mqtt://host:port of a broker to republish trace events to (serve only; empty disables it)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() == 0 {
		printUsage()
		return
	}

	switch flag.Arg(0) {
	case "run":
		runBatch(logger, *configPath, *dbPath, *campaignID)
	case "serve":
		runServe(logger, *configPath, *dbPath, *campaignID, *listenAddr, *mqttBroker)
	case "version":
		fmt.Println(buildinfo.String())
		for k, v := range buildinfo.BuildInfo() {
			fmt.Printf("  %-12s %s\n", k+":", v)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("zigsim - Zigbee NWK/APS discrete-event simulator")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run      Run a scenario to completion, record it, and print a report")
	fmt.Println("  serve    Run a scenario with a live WebSocket dashboard feed")
	fmt.Println("  version  Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

func loadScenario(logger *slog.Logger, configPath string) *config.Scenario {
	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		logger.Error("scenario", "error", err)
		os.Exit(1)
	}

	sc, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load scenario", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	logger.Info("scenario loaded", "path", cfgPath, "nodes", len(sc.Nodes), "stop_time_sec", sc.StopTimeSec)
	return sc
}

func reconfigureLogger(logger *slog.Logger, sc *config.Scenario) *slog.Logger {
	if sc.LogLevel == "" {
		return logger
	}
	level, err := config.ParseLogLevel(sc.LogLevel)
	if err != nil {
		logger.Error("invalid log_level in scenario", "error", err)
		os.Exit(1)
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

func openRunStore(logger *slog.Logger, dbPath string) *runstore.Store {
	store, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		logger.Error("failed to open run store", "path", dbPath, "error", err)
		os.Exit(1)
	}
	rs, err := runstore.NewStore(store)
	if err != nil {
		logger.Error("failed to migrate run store", "path", dbPath, "error", err)
		os.Exit(1)
	}
	return rs
}

// runBatch loads a scenario, runs it to completion, persists the
// result, and prints a Markdown report to stdout.
func runBatch(logger *slog.Logger, configPath, dbPath, campaignID string) {
	sc := loadScenario(logger, configPath)
	logger = reconfigureLogger(logger, sc)

	net, err := topology.Build(sc, logger)
	if err != nil {
		logger.Error("failed to build topology", "error", err)
		os.Exit(1)
	}

	// Subscribed before Run so every event published during the run is
	// tallied; the bus drops events past its buffer rather than block
	// the simulation, so a very chatty run may undercount.
	events := net.Tracer.Subscribe(4096)
	defer net.Tracer.Unsubscribe(events)

	started := time.Now()
	net.Sim.StopAt(simtime.Time(sc.StopTime()))
	net.Sim.Run()

	md := recordAndReport(logger, dbPath, campaignID, sc.Name, net, events, started)
	fmt.Println(md)
}

// recordAndReport tallies every event already buffered on events,
// snapshots every node's final routing table, persists both to the
// run store, and returns the run's Markdown report. Shared by the
// batch "run" command and, once its background simulation finishes,
// "serve".
func recordAndReport(logger *slog.Logger, dbPath, campaignID, scenarioName string, net *topology.Network, events <-chan trace.Event, started time.Time) string {
	finished := time.Now()
	tallies := drainTallies(events)

	var snapshot []runstore.RoutingSnapshotRow
	for _, node := range net.Nodes {
		for _, e := range node.Nwk.RoutingTable().Entries() {
			snapshot = append(snapshot, runstore.RoutingSnapshotRow{
				NodeID:      node.ID,
				Destination: e.Destination.String(),
				NextHop:     e.NextHop.String(),
				Status:      e.Status.String(),
				ManyToOne:   e.ManyToOne,
			})
		}
	}

	var total uint64
	for _, t := range tallies {
		total += uint64(t.Count)
	}

	rs := openRunStore(logger, dbPath)
	defer rs.Close()

	runID, err := rs.RecordRun(context.Background(), runstore.RunRecord{
		CampaignID:   campaignID,
		ScenarioName: scenarioName,
		StartedAt:    started,
		FinishedAt:   finished,
		NodeCount:    len(net.Nodes),
		EventCount:   total,
	}, tallies, snapshot)
	if err != nil {
		logger.Error("failed to record run", "error", err)
		os.Exit(1)
	}
	logger.Info("run recorded", "run_id", runID, "events", total, "nodes", len(net.Nodes))

	rec, err := rs.GetRun(context.Background(), runID)
	if err != nil {
		logger.Error("failed to read back run", "error", err)
		os.Exit(1)
	}

	return report.BuildMarkdown(*rec, tallies, snapshot)
}

// drainTallies reads every event already buffered on events (the
// channel is not closed, so it returns once no event is immediately
// ready) and counts them by kind.
func drainTallies(events <-chan trace.Event) []runstore.EventTally {
	counts := make(map[string]int)
	for {
		select {
		case e := <-events:
			counts[e.Kind]++
		default:
			tallies := make([]runstore.EventTally, 0, len(counts))
			for kind, count := range counts {
				tallies = append(tallies, runstore.EventTally{Kind: kind, Count: count})
			}
			return tallies
		}
	}
}

// runServe loads a scenario, starts its simulation running in the
// background, and serves a live dashboard over WebSocket until
// interrupted.
func runServe(logger *slog.Logger, configPath, dbPath, campaignID, listenAddr, mqttBroker string) {
	sc := loadScenario(logger, configPath)
	logger = reconfigureLogger(logger, sc)

	net, err := topology.Build(sc, logger)
	if err != nil {
		logger.Error("failed to build topology", "error", err)
		os.Exit(1)
	}

	// Subscribed before the simulation goroutine starts so every event
	// published during the run is tallied for the completion report;
	// the dashboard gets its own subscription independently.
	events := net.Tracer.Subscribe(4096)
	defer net.Tracer.Unsubscribe(events)

	dash := dashboard.NewServer(net.Tracer, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", dash.ServeHTTP)
	mux.HandleFunc("/status", dash.StatusHandler)
	srv := &http.Server{Addr: listenAddr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan struct{})
	go dash.Run(stop)

	var bridge *mqttbridge.Bridge
	if mqttBroker != "" {
		bridge = mqttbridge.New(mqttbridge.Config{Broker: mqttBroker}, net.Tracer, logger)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error("mqtt bridge stopped", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		close(stop)
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	go func() {
		started := time.Now()
		net.Sim.StopAt(simtime.Time(sc.StopTime()))
		net.Sim.Run()
		md := recordAndReport(logger, dbPath, campaignID, sc.Name, net, events, started)
		logger.Info("simulation run complete")
		fmt.Println(md)
	}()

	logger.Info("dashboard listening", "addr", listenAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("dashboard server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("zigsim stopped")
}
