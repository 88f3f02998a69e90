package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/polymarket-data/internal/api"
	"github.com/rickgao/polymarket-data/internal/auth"
	"github.com/rickgao/polymarket-data/internal/config"
	"github.com/rickgao/polymarket-data/internal/database"
	"github.com/rickgao/polymarket-data/internal/market"
	"github.com/rickgao/polymarket-data/internal/metrics"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/poller"
	"github.com/rickgao/polymarket-data/internal/router"
	"github.com/rickgao/polymarket-data/internal/version"
	"github.com/rickgao/polymarket-data/internal/writer"
	"github.com/rickgao/polymarket-data/internal/ws"
)

func main() {
	configPath := flag.String("config", "configs/gatherer.local.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting gatherer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.RestURL,
		"ws_url", cfg.Streams.WSURL,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gatherer failed", "error", err)
		os.Exit(1)
	}

	logger.Info("gatherer stopped")
}

func run(ctx context.Context, cfg *config.GathererConfig, logger *slog.Logger) error {
	// Database
	logger.Info("connecting to database",
		"host", cfg.Database.Timescale.Host,
		"port", cfg.Database.Timescale.Port,
		"database", cfg.Database.Timescale.Name,
	)
	pools, err := database.NewPools(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pools.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// REST client
	apiClient := api.NewClient(
		cfg.API.RestURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
	)

	if err := apiClient.GetOK(ctx); err != nil {
		return fmt.Errorf("clob api unreachable: %w", err)
	}

	// Market catalog
	registry := market.NewRegistry(market.Config{
		ReconcileInterval: cfg.Poller.Interval,
	}, apiClient, logger)

	// Router
	rt := router.New(router.Config{
		BookBufferSize:   cfg.Writers.BufferSize,
		ChangeBufferSize: cfg.Writers.BufferSize,
		TradeBufferSize:  cfg.Writers.BufferSize,
	}, m, logger)

	// Serve health early so startup progress is observable.
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: newHTTPHandler(cfg.Metrics.Path, reg, pools, registry, rt),
	}
	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		healthServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting market registry (initial sync)")
	if err := registry.Start(ctx); err != nil {
		return fmt.Errorf("start market registry: %w", err)
	}
	defer stopComponent("market registry", registry.Stop, logger)

	logger.Info("market registry started",
		"active_markets", len(registry.ActiveMarkets()),
		"tokens", len(registry.TokenIDs()),
	)

	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}

	// Writers
	writerCfg := writer.WriterConfig{
		BatchSize:     cfg.Writers.BatchSize,
		FlushInterval: cfg.Writers.FlushInterval,
	}
	buffers := rt.Buffers()
	bookWriter := writer.NewBookWriter(writerCfg, buffers.Books, pools.Timescale, m, logger)
	changeWriter := writer.NewChangeWriter(writerCfg, buffers.Changes, pools.Timescale, m, logger)
	tradeWriter := writer.NewTradeWriter(writerCfg, buffers.Trades, pools.Timescale, m, logger)

	for name, w := range map[string]interface {
		Start(context.Context) error
	}{
		"book writer":   bookWriter,
		"change writer": changeWriter,
		"trade writer":  tradeWriter,
	} {
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", name, err)
		}
	}

	// Market streams: one reconnecting stream per token chunk. A live
	// subscription never changes, so catalog growth starts new streams.
	marketClient := ws.NewMarketClient(
		ws.WithURL(cfg.Streams.WSURL),
		ws.WithLogger(logger),
		ws.WithPingInterval(cfg.Streams.PingInterval),
		ws.WithPingTimeout(cfg.Streams.PingTimeout),
	)
	streams := newStreamSet(marketClient, rt, cfg.Streams, m, logger)
	streams.subscribe(registry.TokenChunks(cfg.Streams.TokensPerStream))
	defer streams.closeAll()

	// React to catalog changes by subscribing any new tokens.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-registry.Changes():
				if !ok {
					return
				}
				if change.Type != market.ChangeListed {
					continue
				}
				streams.subscribeNew(registry.TokenIDs(), cfg.Streams.TokensPerStream)
			}
		}
	}()

	// User feed
	if cfg.User.Enabled {
		creds, err := auth.FromEnv()
		if err != nil {
			return fmt.Errorf("user feed enabled: %w", err)
		}
		userClient := ws.NewUserClient(
			ws.WithURL(cfg.User.WSURL),
			ws.WithLogger(logger),
			ws.WithPingInterval(cfg.Streams.PingInterval),
			ws.WithPingTimeout(cfg.Streams.PingTimeout),
		)
		userStream := userClient.Stream(cfg.Streams.ReconnectConfig(), creds, cfg.User.Markets)
		defer userStream.Close()
		rt.AddUserStream("user", userStream)
		logger.Info("user feed attached", "markets", len(cfg.User.Markets))
	}

	// REST poller back-fills books straight into the router's buffer.
	bookPoller := poller.New(poller.Config{
		Interval:    cfg.Poller.Interval,
		Concurrency: cfg.Poller.Concurrency,
		BatchSize:   cfg.Poller.BatchSize,
		Timeout:     cfg.API.Timeout,
	}, apiClient, registry, poller.SnapshotHandlerFunc(func(s model.BookSnapshot) error {
		buffers.Books.Send(s)
		return nil
	}), logger)
	if err := bookPoller.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}
	defer stopComponent("poller", bookPoller.Stop, logger)

	logger.Info("gatherer running",
		"instance_id", cfg.Instance.ID,
		"streams", streams.count(),
		"health_url", fmt.Sprintf("http://localhost:%d/healthz", cfg.Metrics.Port),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	// Streams first so the router's consumers see ErrStreamEnded, then
	// the router closes its buffers and the writers drain.
	streams.closeAll()
	stopComponent("router", rt.Stop, logger)
	stopComponent("book writer", bookWriter.Stop, logger)
	stopComponent("change writer", changeWriter.Stop, logger)
	stopComponent("trade writer", tradeWriter.Stop, logger)

	return nil
}

// stopComponent runs a Stop func with its own timeout, logging instead
// of propagating failures so shutdown always completes.
func stopComponent(name string, stop func(context.Context) error, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("component stop failed", "component", name, "error", err)
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// streamSet tracks live market streams and which tokens they carry.
type streamSet struct {
	client *ws.MarketClient
	router *router.Router
	cfg    config.StreamsConfig
	m      *metrics.Metrics
	logger *slog.Logger

	mu         sync.Mutex
	streams    map[string]*ws.Stream[ws.Event]
	subscribed map[string]struct{}
	nextID     int
}

func newStreamSet(client *ws.MarketClient, rt *router.Router, cfg config.StreamsConfig, m *metrics.Metrics, logger *slog.Logger) *streamSet {
	return &streamSet{
		client:     client,
		router:     rt,
		cfg:        cfg,
		m:          m,
		logger:     logger,
		streams:    make(map[string]*ws.Stream[ws.Event]),
		subscribed: make(map[string]struct{}),
	}
}

// subscribe starts one stream per chunk and attaches it to the router.
func (ss *streamSet) subscribe(chunks [][]string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for _, chunk := range chunks {
		ss.startLocked(chunk)
	}
}

// subscribeNew diffs all against the subscribed set and starts streams
// for tokens not yet carried by any stream.
func (ss *streamSet) subscribeNew(all []string, chunkSize int) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	var fresh []string
	for _, id := range all {
		if _, ok := ss.subscribed[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return
	}
	if chunkSize <= 0 {
		chunkSize = len(fresh)
	}

	for start := 0; start < len(fresh); start += chunkSize {
		end := start + chunkSize
		if end > len(fresh) {
			end = len(fresh)
		}
		ss.startLocked(fresh[start:end])
	}
}

func (ss *streamSet) startLocked(tokens []string) {
	name := fmt.Sprintf("market-%d", ss.nextID)
	ss.nextID++

	stream := ss.client.Stream(ss.cfg.ReconnectConfig(), tokens)
	ss.streams[name] = stream
	for _, id := range tokens {
		ss.subscribed[id] = struct{}{}
	}
	ss.router.AddMarketStream(name, stream)
	ss.m.SetStreamState(name, int(stream.State()))

	ss.logger.Info("market stream started", "stream", name, "tokens", len(tokens))
}

func (ss *streamSet) count() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.streams)
}

func (ss *streamSet) closeAll() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for name, stream := range ss.streams {
		stream.Close()
		ss.m.SetStreamState(name, int(stream.State()))
	}
}

// newHTTPHandler serves metrics, health, and a small debug surface.
func newHTTPHandler(metricsPath string, reg *prometheus.Registry, pools *database.Pools, registry market.Registry, rt *router.Router) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if err := pools.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["timescaledb"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["timescaledb"] = "connected"
		}

		active := registry.ActiveMarkets()
		health.Components["market_catalog"] = map[string]any{
			"markets": len(active),
		}
		if len(active) == 0 {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if len(registry.ActiveMarkets()) == 0 {
			http.Error(w, "catalog not loaded", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/debug/markets", func(w http.ResponseWriter, r *http.Request) {
		markets := registry.ActiveMarkets()
		total := len(markets)
		if total > 100 {
			markets = markets[:100]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":   total,
			"showing": len(markets),
			"markets": markets,
		})
	})

	mux.HandleFunc("/debug/books", func(w http.ResponseWriter, r *http.Request) {
		keeper := rt.LiveBooks()
		stats := rt.Stats()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"tracked_books": keeper.Len(),
			"events_routed": stats.EventsRouted,
			"decode_errors": stats.DecodeErrors,
			"session_drops": stats.SessionDrops,
			"book_buffer":   stats.Books,
			"change_buffer": stats.Changes,
			"trade_buffer":  stats.Trades,
		})
	})

	return mux
}
