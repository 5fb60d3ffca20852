package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hostinger/ipnib/internal/api"
	"github.com/hostinger/ipnib/internal/config"
	"github.com/hostinger/ipnib/internal/iface"
	"github.com/hostinger/ipnib/internal/logger"
	"github.com/hostinger/ipnib/internal/metrics"
	"github.com/hostinger/ipnib/internal/ndp"
	"github.com/hostinger/ipnib/internal/nib"
	"github.com/hostinger/ipnib/internal/sixlowpan"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		logger.Fatal("Failed to parse configuration: %v", err)
	}
	logger.Init(cfg.Debug)

	n := nib.New(cfg.NIB)

	n.SetPacketReleaseHook(func(pkt nib.QueuedPacket, reason error) {
		logger.Debug("Releasing queued packet to %s: %v", pkt.Dst, reason)
	})

	ifmgr, err := iface.NewManager()
	if err != nil {
		logger.Fatal("Failed to initialize interface manager: %v", err)
	}

	reg := prometheus.NewRegistry()
	metricsRegistry := metrics.NewRegistry(reg)
	n.SetEvictionHook(metricsRegistry.Evictions.Inc)
	n.SetNoRouteHook(metricsRegistry.NoRoute.Inc)

	httpAPI := &api.API{
		NIB:     n,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for pool, occupied := range n.PoolStats() {
					metricsRegistry.SetPoolOccupancy(pool, occupied)
				}
			}
		}
	}()

	if cfg.SnifferMode {
		if cfg.Interface == "" {
			logger.Fatal("You must specify --interface when using --sniffer")
		}
		engine := ndp.NewEngine(n, ifmgr)
		if cfg.NIB.MultihopP6C {
			engine.SetSixLoWPANStore(sixlowpan.NewStore())
		}
		httpAPI.Engine = engine
		go func() {
			if err := engine.Run(ctx, []string{cfg.Interface}); err != nil {
				logger.Error("NDP engine stopped: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/neighbors", httpAPI.ListNeighborsHandler)
	mux.HandleFunc("/routes", httpAPI.ListRoutesHandler)
	mux.HandleFunc("/routers", httpAPI.ListDefaultRoutersHandler)
	mux.HandleFunc("/prefixes", httpAPI.ListPrefixesHandler)
	mux.HandleFunc("/abr", httpAPI.ListAbrHandler)
	mux.HandleFunc("/sniffed-interfaces", httpAPI.ListSniffedInterfacesHandler)
	mux.HandleFunc("/metrics", httpAPI.MetricsHandler)

	go func() {
		logger.Info("API server listening on %s", cfg.APIAddress)
		if err := http.ListenAndServe(cfg.APIAddress, mux); err != nil {
			logger.Error("HTTP server failed: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	logger.Info("Received signal: %s. Cleaning up and exiting...", sig)
	cancel()
}
