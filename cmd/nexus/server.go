package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/nexus/internal/audit"
	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/mission"
	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/providers"
	"github.com/haasonsaas/nexus/internal/skills"
	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/internal/workspace"
	"github.com/haasonsaas/nexus/pkg/models"
)

// engineMetrics are the Prometheus gauges specific to the mission
// engine, layered on top of the shared observability.Metrics counters.
type engineMetrics struct {
	activeMissions      prometheus.Gauge
	oversightQueueDepth prometheus.Gauge
	rateLimitSuspended  prometheus.Gauge
}

func newEngineMetrics() *engineMetrics {
	return &engineMetrics{
		activeMissions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "nexus_missions_active",
			Help: "Missions currently in the active status.",
		}),
		oversightQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "nexus_oversight_pending",
			Help: "Oversight entries awaiting a human decision.",
		}),
		rateLimitSuspended: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "nexus_ratelimit_suspended_models",
			Help: "Models currently suspended by rate-limiter backoff.",
		}),
	}
}

// server binds the mission engine to its HTTP/WS transport.
type server struct {
	cfg     *config.Config
	engine  *mission.Engine
	logger  *observability.Logger
	metrics *observability.Metrics
	emetric *engineMetrics
	audit   *audit.Logger

	agentStore   *storage.SQLiteAgentStore
	missionStore *storage.SQLiteMissionStore

	addr     string
	http     *http.Server
	listener net.Listener

	bgCtx    context.Context
	bgCancel context.CancelFunc
}

func newServer(debug bool) (*server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if _, err := workspace.EnsureDataDir(cfg.DataDir, workspace.DefaultBootstrapFiles()); err != nil {
		return nil, fmt.Errorf("bootstrap data dir: %w", err)
	}

	agentDB := strings.TrimPrefix(cfg.DatabaseURL, "sqlite:")
	agents, err := storage.OpenSQLiteAgentStore(agentDB)
	if err != nil {
		return nil, fmt.Errorf("open agent store: %w", err)
	}
	missions, err := storage.OpenSQLiteMissionStore(agentDB)
	if err != nil {
		return nil, fmt.Errorf("open mission store: %w", err)
	}

	skillRegistry, err := skills.NewRegistry(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load skill registry: %w", err)
	}

	provs := buildProviders(cfg)

	logLevel := "info"
	if debug {
		logLevel = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{Level: logLevel, Format: "json"})

	auditCfg := audit.DefaultConfig()
	auditCfg.Enabled = true
	auditLogger, err := audit.NewLogger(auditCfg)
	if err != nil {
		return nil, fmt.Errorf("build audit logger: %w", err)
	}

	events := mission.NewBroadcaster()
	gate := mission.NewGate()
	hooks := mission.NewHooks(cfg.DataDir)

	engine := mission.NewEngine(mission.EngineConfig{
		Agents:          agents,
		Missions:        missions,
		Skills:          skillRegistry,
		Gate:            gate,
		Events:          events,
		Hooks:           hooks,
		Providers:       provs,
		ProviderConfigs: cfg.Providers,
		Models:          cfg.Models,
		DataDir:         cfg.DataDir,
		DiscordWebhook:  cfg.DiscordWebhook,
	})

	bgCtx, bgCancel := context.WithCancel(context.Background())

	s := &server{
		cfg:          cfg,
		engine:       engine,
		logger:       logger,
		metrics:      observability.NewMetrics(),
		emetric:      newEngineMetrics(),
		audit:        auditLogger,
		agentStore:   agents,
		missionStore: missions,
		addr:         fmt.Sprintf(":%d", cfg.Port),
		bgCtx:        bgCtx,
		bgCancel:     bgCancel,
	}
	return s, nil
}

// buildProviders wires the providers the configuration has credentials
// for. A provider absent an API key is simply not registered — routing a
// mission to it later fails with a clear "no provider" error rather than
// a confusing upstream auth failure.
func buildProviders(cfg *config.Config) map[string]providers.Provider {
	out := make(map[string]providers.Provider)

	if cfg.GoogleAPIKey != "" {
		if p, err := providers.NewGoogleProvider(context.Background(), providers.GoogleConfig{
			APIKey: cfg.GoogleAPIKey,
		}); err == nil {
			out[p.Name()] = p
		}
	}
	if cfg.GroqAPIKey != "" {
		if p, err := providers.NewGroqProvider(providers.GroqConfig{
			APIKey: cfg.GroqAPIKey,
		}); err == nil {
			out[p.Name()] = p
		}
	}
	for _, pc := range cfg.Providers {
		if pc.APIKey == "" {
			continue
		}
		switch strings.ToLower(pc.Protocol) {
		case "anthropic":
			if p, err := providers.NewAnthropicProvider(providers.AnthropicConfig{APIKey: pc.APIKey}); err == nil {
				out[p.Name()] = p
			}
		case "groq":
			if p, err := providers.NewGroqProvider(providers.GroqConfig{APIKey: pc.APIKey, BaseURL: pc.BaseURL}); err == nil {
				out[p.Name()] = p
			}
		}
	}
	return out
}

// Run starts the HTTP/WS listener and blocks until ctx is canceled.
func (s *server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)

	mux.Handle("/agents/", s.withAuth(http.HandlerFunc(s.handleAgentSend)))
	mux.Handle("/oversight/pending", s.withAuth(http.HandlerFunc(s.handleOversightPending)))
	mux.Handle("/oversight/ledger", s.withAuth(http.HandlerFunc(s.handleOversightLedger)))
	mux.Handle("/oversight/", s.withAuth(http.HandlerFunc(s.handleOversightDecide)))
	mux.Handle("/engine/kill", s.withAuth(http.HandlerFunc(s.handleEngineKill)))
	mux.Handle("/engine/shutdown", s.withAuth(http.HandlerFunc(s.handleEngineShutdown)))
	mux.Handle("/ws", s.newWSHub())

	handler := s.withCORS(s.withMetrics(mux))

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = listener
	s.http = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.runHealthTicker()

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.engine.Shutdown()
		_ = s.http.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// runHealthTicker broadcasts engine:health every 5 seconds and refreshes
// the engine-specific gauges from the current oversight queue depth.
func (s *server) runHealthTicker() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.bgCtx.Done():
			return
		case <-ticker.C:
			pending := s.engine.Gate.Pending()
			s.emetric.oversightQueueDepth.Set(float64(len(pending)))
			s.emetric.rateLimitSuspended.Set(float64(s.engine.SuspendedLimiters()))
			s.engine.Events.EngineHealth(s.countActiveMissions())
		}
	}
}

// countActiveMissions samples the most recent missions and counts those
// still active, for the engine:health heartbeat and the active-missions
// gauge. A sampled count is sufficient here: the heartbeat is a liveness
// signal, not an authoritative accounting source.
func (s *server) countActiveMissions() int {
	recent, err := s.missionStore.RecentMissions(s.bgCtx, 200)
	if err != nil {
		return 0
	}
	active := 0
	for _, m := range recent {
		if m.Status == models.MissionActive {
			active++
		}
	}
	s.emetric.activeMissions.Set(float64(active))
	return active
}

func (s *server) Close() {
	s.bgCancel()
	if s.agentStore != nil {
		_ = s.agentStore.Close()
	}
	if s.missionStore != nil {
		_ = s.missionStore.Close()
	}
}
