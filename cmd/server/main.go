package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"netviz/internal/collector"
	"netviz/internal/config"
	"netviz/internal/handler"
	"netviz/internal/hub"
	"netviz/internal/metrics"
	"netviz/internal/reconciler"
	"netviz/internal/repository/sqlite"
	"netviz/internal/service"
	"netviz/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "config file path (overrides $NETVIZ_CONFIG and the default search)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting NetViz server...")

	var (
		cfg  *config.Config
		from string
		err  error
	)
	if *configPath != "" {
		cfg, from, err = config.LoadFromPath(*configPath)
	} else {
		cfg, from, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if from != "" {
		log.Printf("Config loaded from %s", from)
	} else {
		log.Println("No config file found, using defaults")
	}
	if *addr != "" {
		cfg.Server.Host, cfg.Server.Port = splitAddr(*addr, cfg.Server.Port)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()
	log.Printf("Database opened: %s", cfg.Database.Path)

	mreg := metrics.New()

	wsHub := hub.New()
	wsHub.SetMetrics(mreg)

	pingerStop := make(chan struct{})
	go wsHub.RunPinger(cfg.Sync.PingInterval.Duration(), pingerStop)

	graphSvc := service.NewGraphService(store, wsHub)
	graphSvc.SetMetrics(mreg)

	source, err := buildCollector(cfg.Collector)
	if err != nil {
		log.Fatalf("Failed to configure collector: %v", err)
	}
	log.Printf("Collector mode: %s", cfg.Collector.Mode)

	rec := reconciler.New(store, source, wsHub, graphSvc,
		cfg.Topology,
		cfg.Sync.StaleAfter.Duration(),
		cfg.Sync.MetricsCacheTTL.Duration(),
	)
	rec.SetMetrics(mreg)

	loop := reconciler.NewLoop(rec,
		cfg.Sync.Interval.Duration(),
		cfg.Sync.ErrorBackoff.Duration(),
	)
	loop.Start(context.Background())

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if from != "" {
		w := watcher.New(from, func() {
			reloaded, _, err := config.LoadFromPath(from)
			if err != nil {
				log.Printf("Config reload failed: %v", err)
				return
			}
			rec.SetRules(reloaded.Topology)
			log.Println("Topology rules reloaded")
		})
		go func() {
			if err := w.Watch(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Config watcher stopped: %v", err)
			}
		}()
	}

	graphHandler := handler.NewGraphHandler(graphSvc, wsHub)
	graphHandler.SetMetricsCache(rec.MetricsCache())

	mux := http.NewServeMux()
	graphHandler.Register(mux)
	mux.Handle("GET /metrics", mreg.Handler())

	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORS,
		handler.Logger,
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      finalHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	loop.Stop()
	close(pingerStop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// buildCollector selects the observation source from config
func buildCollector(cfg config.CollectorConfig) (collector.Collector, error) {
	switch cfg.Mode {
	case "http":
		return collector.NewHTTP(cfg.MetricsURL, cfg.Timeout.Duration()), nil
	case "nmap":
		return &collector.NmapSweep{CIDR: cfg.SweepCIDR}, nil
	case "ssh":
		return collector.NewSSH(collector.SSHOptions{
			Hosts:    cfg.SSH.Hosts,
			Port:     cfg.SSH.Port,
			User:     cfg.SSH.User,
			KeyPath:  cfg.SSH.KeyPath,
			Password: cfg.SSH.Password,
			Timeout:  cfg.Timeout.Duration(),
		}), nil
	case "static":
		return &collector.Static{}, nil
	default:
		return nil, fmt.Errorf("unknown collector mode %q", cfg.Mode)
	}
}

// splitAddr parses a -addr flag value, tolerating a bare ":port"
func splitAddr(addr string, defaultPort int) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, defaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, defaultPort
	}
	return host, port
}
