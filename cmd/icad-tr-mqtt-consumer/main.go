package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/consumer"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/dedup"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/index"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/metrics"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/mqttclient"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/pipeline"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/workerpool"
)

// version, commit, and buildTime are injected at build time via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var overrides config.Overrides
	var showVersion bool
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.ConfigFile, "config-file", "", "Path to systems configuration JSON (overrides CONFIG_FILE)")
	flag.StringVar(&overrides.MQTTBrokerURL, "mqtt-url", "", "MQTT broker URL (overrides MQTT_BROKER_URL)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s (commit=%s, built=%s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	startTime := time.Now()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", buildTime).
		Str("log_level", level.String()).
		Msg("icad-tr-mqtt-consumer starting")

	root, err := config.LoadSystems(cfg.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Str("config_file", cfg.ConfigFile).Msg("failed to load systems configuration")
	}
	log.Info().Int("systems", len(root.Systems)).Msg("systems configuration loaded")

	if err := os.MkdirAll(cfg.ScratchDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("scratch_dir", cfg.ScratchDir).Msg("failed to create scratch directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Index client (optional — only wired when elasticsearch URLs are configured)
	var idx *index.Client
	if len(root.Elasticsearch.URLs) > 0 {
		idxLog := log.With().Str("component", "index").Logger()
		idx, err = index.New(root.Elasticsearch.URLs, root.Elasticsearch.Username, root.Elasticsearch.Password, root.Elasticsearch.IndexPrefix, idxLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create elasticsearch client")
		}
		if err := idx.EnsureIndices(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to ensure elasticsearch indices")
		}
		log.Info().Strs("urls", root.Elasticsearch.URLs).Msg("elasticsearch index client ready")
	} else {
		log.Info().Msg("elasticsearch not configured, indexing disabled")
	}

	history := dedup.NewMessageHistory()

	p := pipeline.New(pipeline.Options{
		ScratchDir: cfg.ScratchDir,
		Root:       root,
		History:    history,
		Index:      idx,
		Log:        log,
	})

	pool := workerpool.New(workerpool.Options{
		Workers:   cfg.WorkerPoolSize,
		QueueSize: cfg.WorkerQueueSize,
		Log:       log.With().Str("component", "worker-pool").Logger(),
	})
	pool.Start()
	defer pool.Stop()

	cons := consumer.New(pool, p, idx, log)

	mqttLog := log.With().Str("component", "mqtt").Logger()
	mqttConn, err := mqttclient.Connect(mqttclient.Options{
		BrokerURL: cfg.MQTTBrokerURL,
		ClientID:  cfg.MQTTClientID,
		Topics:    cfg.MQTTTopicPrefix,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
		TLS: mqttclient.TLSOptions{
			CACert:     cfg.MQTTTLSCACert,
			ClientCert: cfg.MQTTTLSCert,
			ClientKey:  cfg.MQTTTLSKey,
		},
		Log: mqttLog,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
	}
	defer mqttConn.Close()
	mqttConn.SetMessageHandler(func(topic string, payload []byte) {
		cons.HandleMessage(cfg.MQTTTopicPrefix, topic, payload)
	})
	log.Info().Str("broker", cfg.MQTTBrokerURL).Str("client_id", cfg.MQTTClientID).Msg("mqtt connected")

	// Metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	go reportWorkerPoolStats(ctx, pool)

	log.Info().
		Str("metrics_addr", cfg.MetricsAddr).
		Dur("startup_ms", time.Since(startTime)).
		Msg("icad-tr-mqtt-consumer ready")

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown signal received")
			shutdown(log, metricsSrv)
			return
		case <-ticker.C:
			if mqttConn.Fatal() {
				log.Error().Msg("mqtt connection entered fatal state, shutting down")
				shutdown(log, metricsSrv)
				pool.Stop()
				os.Exit(1)
			}
		}
	}
}

func reportWorkerPoolStats(ctx context.Context, pool *workerpool.Pool) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := pool.Stats()
			metrics.WorkerPoolPending.Set(float64(stats.Pending))
			metrics.WorkerPoolRunning.Set(float64(stats.Running))
			metrics.WorkerPoolWaiting.Set(float64(stats.Waiting))
		}
	}
}

func shutdown(log zerolog.Logger, metricsSrv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server shutdown error")
	}
	log.Info().Msg("icad-tr-mqtt-consumer stopped")
}
