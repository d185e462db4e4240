package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pixelatedempathy/connpool/pkg/config"
	"github.com/pixelatedempathy/connpool/pkg/logging"
	"github.com/pixelatedempathy/connpool/pkg/metrics"
)

func runServe(configPath, listen string) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logger()
	logging.SetLogger(logger)

	if listen != "" {
		cfg.Server.Listen = listen
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = config.DefaultListen
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      connpool Server                                      ║")
	fmt.Println("║      Managed pools · Prometheus metrics · Health          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	collector := metrics.NewCollector(metrics.Labels{"service": "connpool"})
	metrics.SetGlobal(collector)

	manager, err := cfg.Build(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = manager.Close() }()

	pools := manager.Pools()
	if len(pools) == 0 {
		logger.Warn("no pools configured, serving health and metrics only",
			logging.Fields{"config": configPath})
	}
	for _, name := range pools {
		p, err := manager.GetPool(name)
		if err != nil {
			continue
		}
		pc := p.Config()
		fmt.Printf("  pool %-16s min=%d max=%d\n", name, pc.MinConnections, pc.MaxConnections)
	}
	fmt.Println()
	fmt.Printf("Listening on http://%s\n", cfg.Server.Listen)
	fmt.Println("  /metrics   Prometheus exposition")
	fmt.Println("  /stats     JSON statistics")
	fmt.Println("  /health    aggregate health report")
	fmt.Println("  /healthz   liveness probe")
	fmt.Println("  /readyz    readiness probe")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")

	server := metrics.NewServer(metrics.ServerConfig{
		Collector:        collector,
		Manager:          manager,
		Version:          getVersion(),
		Namespace:        cfg.Server.Namespace,
		EnablePrometheus: true,
		EnableHealth:     true,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		_ = manager.Close()
		os.Exit(0)
	}()

	if err := server.ListenAndServe(cfg.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
