package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-topology/pkg/config"
	"github.com/dd0wney/cluso-topology/pkg/forks"
	"github.com/dd0wney/cluso-topology/pkg/gossip"
	"github.com/dd0wney/cluso-topology/pkg/health"
	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/metrics"
	"github.com/dd0wney/cluso-topology/pkg/relay"
	"github.com/dd0wney/cluso-topology/pkg/report"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// staticChain serves the producer schedule from configuration. It stands in
// for a chain-engine integration: the schedule is the configured local
// producer list, head is its first entry and pending its second.
type staticChain struct {
	schedule []string
}

func (c *staticChain) HeadProducer() (string, error) {
	if len(c.schedule) == 0 {
		return "", nil
	}
	return c.schedule[0], nil
}

func (c *staticChain) PendingProducer() (string, error) {
	if len(c.schedule) < 2 {
		return "", nil
	}
	return c.schedule[1], nil
}

func (c *staticChain) ActiveProducers() ([]string, error) {
	return c.schedule, nil
}

func parseRoles(names []string) topology.NodeRole {
	var role topology.NodeRole
	for _, n := range names {
		role |= topology.ParseNodeRole(n)
	}
	if role == 0 {
		role = topology.RoleFull
	}
	return role
}

func main() {
	configPath := flag.String("config", "topology.yaml", "Path to the YAML config file")
	flag.Parse()

	// Structured logging for startup and lifecycle events
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger.Info("topology service starting",
		"locality", cfg.Locality,
		"peers", len(cfg.Gossip.Peers),
		"sample_interval", cfg.SampleInterval().String(),
	)

	log := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	stats := metrics.DefaultRegistry()
	registry := topology.NewRegistry(log)
	chain := &staticChain{schedule: cfg.LocalProducers}
	detector := forks.NewDetector(chain, cfg.MaxProduced, log)

	localDesc := topology.NodeDescriptor{
		Location:  cfg.Locality,
		Role:      parseRoles(cfg.Roles),
		Status:    topology.StatusRunning,
		Version:   cfg.Version,
		Producers: cfg.LocalProducers,
	}
	localID := registry.AddNode(localDesc)
	logger.Info("local node registered", "node_id", uint64(localID), "role", localDesc.Role.String())

	factory := gossip.NewMangosSocketFactory()
	publisher, err := gossip.NewPublisher(factory, gossip.PublisherConfig{
		Address: cfg.Gossip.PublishAddr,
	})
	if err != nil {
		logger.Error("failed to create publisher", "error", err)
		os.Exit(1)
	}

	controller := relay.NewController(registry, detector, stats, publisher, localID, cfg.MaxHops, log)

	if err := publisher.Start(); err != nil {
		logger.Error("failed to start publisher", "addr", cfg.Gossip.PublishAddr, "error", err)
		os.Exit(1)
	}
	defer publisher.Stop()

	// Register configured peers and the links to them, then subscribe.
	var subscribers []*gossip.Subscriber
	for _, peer := range cfg.Gossip.Peers {
		peerDesc := topology.NodeDescriptor{
			Location: peer.Locality,
			Role:     parseRoles(peer.Roles),
			Version:  peer.Version,
		}
		peerID := registry.AddNode(peerDesc)
		linkID := registry.AddLink(topology.LinkDescriptor{
			Active:  localID,
			Passive: peerID,
			Role:    topology.LinkCombined,
		})

		sub, err := gossip.NewSubscriber(factory, gossip.SubscriberConfig{
			PeerAddr:    peer.Addr,
			InboundLink: linkID,
			RecvTimeout: cfg.Gossip.RecvTimeout(),
		}, controller)
		if err != nil {
			logger.Error("failed to create subscriber", "peer", peer.Addr, "error", err)
			os.Exit(1)
		}
		if err := sub.Start(); err != nil {
			logger.Error("failed to start subscriber", "peer", peer.Addr, "error", err)
			os.Exit(1)
		}
		subscribers = append(subscribers, sub)
		logger.Info("subscribed to peer", "addr", peer.Addr, "link_id", uint64(linkID))
	}
	defer func() {
		for _, sub := range subscribers {
			sub.Stop()
		}
	}()

	stats.UpdateTopologySize(registry.NodeCount(), registry.LinkCount())

	// Announce the local node and its links to the network.
	announce := &topology.MapUpdate{
		AddNodes: []topology.NodeDescriptor{localDesc},
		AddLinks: registry.SnapshotLinks(localID),
	}
	if err := controller.Send(relay.Event{Kind: relay.KindMapUpdate, MapUpdate: announce}); err != nil {
		logger.Warn("failed to announce local node", "error", err)
	}

	// Periodic link sampling from the publisher's traffic counters.
	stopSampling := make(chan struct{})
	go sampleLoop(cfg.SampleInterval(), stopSampling, registry, controller, publisher, localID, logger)
	defer close(stopSampling)

	checker := health.NewHealthChecker()
	checker.RegisterCheck("topology", health.TopologyCheck(func() (int, int) {
		return registry.NodeCount(), registry.LinkCount()
	}))
	checker.RegisterCheck("gossip", health.GossipCheck(func() (bool, int, int) {
		active := 0
		for _, sub := range subscribers {
			if sub.Running() {
				active++
			}
		}
		return publisher.Running(), active, len(cfg.Gossip.Peers)
	}))
	checker.RegisterCheck("schedule", health.ScheduleCheck(detector.Schedule))
	checker.RegisterCheck("memory", health.MemoryCheck(func() (uint64, uint64) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.Alloc, m.Sys
	}))

	reports := report.Source{
		Registry:       registry,
		Detector:       detector,
		LocalID:        localID,
		LocalProducers: cfg.LocalProducers,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(stats.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", checker.HTTPHandler())
	mux.HandleFunc("/readyz", checker.HTTPHandler())
	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(reports.Render(time.Now())))
	})
	mux.HandleFunc("/grid", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		w.Write([]byte(reports.Grid()))
	})
	// Block notifications from the block-relay process feed the fork detector.
	mux.HandleFunc("/block", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var note struct {
			LinkID   uint64 `json:"link_id"`
			BlockID  string `json:"block_id"`
			Producer string `json:"producer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&note); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		detector.OnBlock(topology.LinkID(note.LinkID), note.BlockID, note.Producer)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/sample", func(w http.ResponseWriter, r *http.Request) {
		dump, err := reports.SampleJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(dump))
	})

	server := &http.Server{
		Addr:    cfg.HTTP.ListenAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}
	logger.Info("topology service stopped")
}

// sampleLoop periodically folds the publisher's traffic counters into a link
// sample for every local link and gossips each sample to the peer across it.
func sampleLoop(
	interval time.Duration,
	stop <-chan struct{},
	registry *topology.Registry,
	controller *relay.Controller,
	publisher *gossip.Publisher,
	localID topology.NodeID,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		msgs, bytes := publisher.TakeCounters()
		secs := uint64(interval / time.Second)
		if secs == 0 {
			secs = 1
		}

		bundle := topology.SampleBundle{
			topology.BytesSent:         bytes,
			topology.MessagesSent:      msgs,
			topology.BytesPerSecond:    bytes / secs,
			topology.MessagesPerSecond: msgs / secs,
		}

		for _, lid := range registry.IncidentLinks(localID) {
			ev := relay.Event{
				Kind:       relay.KindLinkSample,
				LinkSample: &topology.LinkSample{Link: lid, Up: bundle},
			}
			if err := controller.Send(ev); err != nil {
				logger.Warn("failed to send link sample", "link_id", uint64(lid), "error", err)
			}
		}
	}
}
