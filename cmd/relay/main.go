package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/avgrelay/relay/internal/config"
	"github.com/avgrelay/relay/internal/metrics"
	"github.com/avgrelay/relay/internal/mock"
	"github.com/avgrelay/relay/internal/procstat"
	"github.com/avgrelay/relay/internal/registry"
	"github.com/avgrelay/relay/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	host := flag.String("host", "", "Override listen host")
	port := flag.Int("port", 0, "Override server port")
	verbose := flag.Bool("verbose", false, "Log every reported value")
	mockMode := flag.Bool("mock", false, "Feed synthetic senders into the relay")
	mockInterval := flag.Duration("mock-interval", 500*time.Millisecond, "Tick interval for synthetic senders")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *verbose {
		cfg.Log.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	promReg := metrics.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(promReg)
	reg := registry.New(relayMetrics)

	server := ws.NewServer(cfg, reg, relayMetrics)
	server.SetMetricsHandler(metrics.Handler(promReg))

	if sampler, err := procstat.NewSampler(); err != nil {
		log.Printf("Process stats unavailable: %v", err)
	} else {
		server.SetProcessSampler(sampler)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *mockMode {
		log.Println("Starting in mock mode")
		mock.NewGenerator(reg, *mockInterval).Start(ctx)
	}

	log.Printf("Routes: send=%s listen=%s", cfg.Routes.Send, cfg.Routes.Listen)
	if err := server.ListenAndServe(ctx, server.Handler()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Shut down")
}
