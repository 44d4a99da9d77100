// Package main is the entry point for the rf-sentinel edge sensor daemon.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jondmarien/automotive-security-capstone-sub001/internal/alerting"
	"github.com/jondmarien/automotive-security-capstone-sub001/internal/analyzer"
	"github.com/jondmarien/automotive-security-capstone-sub001/internal/capture"
	"github.com/jondmarien/automotive-security-capstone-sub001/internal/config"
	"github.com/jondmarien/automotive-security-capstone-sub001/internal/correlation"
	"github.com/jondmarien/automotive-security-capstone-sub001/internal/device"
	"github.com/jondmarien/automotive-security-capstone-sub001/internal/evidence"
	"github.com/jondmarien/automotive-security-capstone-sub001/internal/filter"
	"github.com/jondmarien/automotive-security-capstone-sub001/internal/metrics"
)

var version = "dev"

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.BoolVar(&showVersion, "v", false, "Show version and exit (shorthand)")
	flag.Parse()

	if showVersion {
		fmt.Printf("rf-sentinel %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)

	slog.Info("configuration loaded",
		"device_id", cfg.Device.ID,
		"capture_kind", cfg.Capture.Kind,
		"http_port", cfg.Server.HTTPPort,
		"bands", len(cfg.Filter.Bands),
	)

	orch, correlator, err := buildPipeline(cfg)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	dispatcher, err := buildAlerting(cfg)
	if err != nil {
		slog.Error("failed to build alert delivery", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Correlation events reach delivery independently of the packet loop.
	correlator.AddHandler(func(ev correlation.Event) {
		switch ev.Type {
		case correlation.EventActivated:
			m.CorrelationArms.Inc()
		case correlation.EventCorrelated:
			m.CorrelationFires.Inc()
			dispatcher.Dispatch(ctx, alerting.FromCorrelationEvent(cfg.Device.ID, ev))
		}
	})

	source, err := capture.NewSource(captureConfig(cfg.Capture))
	if err != nil {
		slog.Error("failed to create capture source", "error", err)
		os.Exit(1)
	}
	if err := source.Initialize(ctx); err != nil {
		slog.Error("failed to initialize capture source", "error", err)
		os.Exit(1)
	}

	server := statusServer(cfg, orch, reg)
	go func() {
		slog.Info("status server listening", "port", cfg.Server.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status server failed", "error", err)
		}
	}()

	orch.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		consumeLoop(ctx, source, orch, dispatcher, m, cfg.Device.ID)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	cancel()
	orch.Stop()
	if err := source.Shutdown(); err != nil {
		slog.Warn("capture shutdown failed", "error", err)
	}
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("status server shutdown failed", "error", err)
	}

	dispatcher.Wait()
	slog.Info("shutdown complete")
}

func setupLogging(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func buildPipeline(cfg *config.Config) (*device.Orchestrator, *correlation.Controller, error) {
	bands := make([]filter.Band, 0, len(cfg.Filter.Bands))
	for _, b := range cfg.Filter.Bands {
		bands = append(bands, filter.Band{Low: b.Low, High: b.High})
	}

	f, err := filter.New(filter.Config{
		Bands:           bands,
		MinStrength:     cfg.Filter.MinStrength,
		DuplicateWindow: cfg.Filter.DuplicateWindow,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("admission filter: %w", err)
	}

	a, err := analyzer.New(analyzer.Config{
		ReplayWindow:        cfg.Analyzer.ReplayWindow,
		ReplayTolerance:     cfg.Analyzer.ReplayTolerance,
		JamWindow:           cfg.Analyzer.JamWindow,
		JamThreshold:        cfg.Analyzer.JamThreshold,
		BruteForceWindow:    cfg.Analyzer.BruteForceWindow,
		BruteForceThreshold: cfg.Analyzer.BruteForceThreshold,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("threat analyzer: %w", err)
	}

	store, err := evidence.New(cfg.Evidence.ObservationCapacity, cfg.Evidence.AlertCapacity)
	if err != nil {
		return nil, nil, fmt.Errorf("evidence store: %w", err)
	}

	correlator := correlation.New(correlation.Config{
		ActivationThreshold: cfg.Correlation.ActivationThreshold,
		Timeout:             cfg.Correlation.Timeout,
	})

	return device.New(cfg.Device.ID, f, a, store, correlator), correlator, nil
}

func buildAlerting(cfg *config.Config) (*alerting.Dispatcher, error) {
	encryptor, err := alerting.NewEncryptor(alerting.EncryptorConfig{
		Enabled:    cfg.Alerting.Encryption.Enabled,
		MasterKey:  []byte(cfg.Alerting.Encryption.MasterKey),
		KeyVersion: cfg.Alerting.Encryption.KeyVersion,
	})
	if err != nil {
		return nil, err
	}

	var channels []alerting.NotificationChannel

	if cfg.Alerting.Webhook.Enabled {
		channels = append(channels, alerting.NewWebhookChannel(
			"webhook", cfg.Alerting.Webhook.URL, cfg.Alerting.Webhook.Headers, encryptor))
	}

	if cfg.Alerting.Kafka.Enabled {
		ch, err := alerting.NewKafkaChannel(alerting.KafkaChannelConfig{
			Brokers:      cfg.Alerting.Kafka.Brokers,
			Topic:        cfg.Alerting.Kafka.Topic,
			BatchTimeout: cfg.Alerting.Kafka.BatchTimeout,
			WriteTimeout: cfg.Alerting.Kafka.WriteTimeout,
		}, encryptor)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}

	if cfg.Alerting.DTLS.Enabled {
		ch, err := alerting.NewDTLSChannel(alerting.DTLSChannelConfig{
			Address:     cfg.Alerting.DTLS.Address,
			PSK:         []byte(cfg.Alerting.DTLS.PSK),
			PSKIdentity: cfg.Alerting.DTLS.PSKIdentity,
			DialTimeout: cfg.Alerting.DTLS.DialTimeout,
		}, encryptor)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}

	if len(channels) == 0 {
		slog.Warn("no alert channels enabled, alerts are logged only")
	}

	return alerting.NewDispatcher(alerting.DispatcherConfig{
		MaxRetries:     cfg.Alerting.Delivery.MaxRetries,
		InitialBackoff: cfg.Alerting.Delivery.InitialBackoff,
		MaxBackoff:     cfg.Alerting.Delivery.MaxBackoff,
		BackoffFactor:  cfg.Alerting.Delivery.BackoffFactor,
		AttemptTimeout: cfg.Alerting.Delivery.AttemptTimeout,
	}, channels...), nil
}

func captureConfig(cfg config.CaptureConfig) capture.Config {
	return capture.Config{
		Kind:          capture.Kind(cfg.Kind),
		Seed:          cfg.Seed,
		Interval:      cfg.Interval,
		NFCRatio:      cfg.NFCRatio,
		Address:       cfg.Address,
		DialTimeout:   cfg.DialTimeout,
		IdleTimeout:   cfg.IdleTimeout,
		MaxLineLength: cfg.MaxLineLength,
	}
}

// consumeLoop is the single logical consumer driving the pipeline: the
// per-observation sequence completes before the next Poll begins.
func consumeLoop(ctx context.Context, source capture.Source, orch *device.Orchestrator, dispatcher *alerting.Dispatcher, m *metrics.Metrics, deviceID string) {
	for {
		obs, err := source.Poll(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, capture.ErrSourceClosed) {
				return
			}
			m.CaptureErrors.Inc()
			slog.Warn("capture poll failed", "error", err)
			continue
		}

		m.PacketsTotal.Inc()
		result := orch.ProcessPacket(obs)

		switch result.Status {
		case device.StatusRejected:
			m.RejectedTotal.Inc()
		case device.StatusProcessed:
			m.AdmittedTotal.Inc()
			if result.ThreatDetected && result.Report != nil {
				m.AlertsTotal.WithLabelValues(result.Report.ThreatLevel.String()).Inc()
				dispatcher.Dispatch(ctx, alerting.FromReport(deviceID, *result.Report))
			}
		}

		st := orch.Status()
		m.EvidenceDepth.WithLabelValues("observations").Set(float64(st.Evidence.Observations.Count))
		m.EvidenceDepth.WithLabelValues("alerts").Set(float64(st.Evidence.Alerts.Count))
	}
}

func statusServer(cfg *config.Config, orch *device.Orchestrator, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"running": orch.Running(),
			"version": version,
		})
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(orch.Status())
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
