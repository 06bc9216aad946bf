package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/srediag/framedsock/adapter"
	"github.com/srediag/framedsock/internal/hub"
	"github.com/srediag/framedsock/internal/logging"
	"github.com/srediag/framedsock/pkg/framed"
	"github.com/srediag/framedsock/pkg/metrics"
)

const (
	metricsNamespace = "framedsock"
	instrumentation  = "github.com/srediag/framedsock"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		mode       string
		network    string
		address    string
		admin      string
		maxConns   int
		delimiter  string
		logLevel   int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept connections and echo or broadcast their frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("mode") {
				if cfg.Hub.Mode, err = hub.ParseMode(mode); err != nil {
					return err
				}
			}
			if flags.Changed("network") {
				cfg.Network = network
			}
			if flags.Changed("addr") {
				cfg.Address = address
			}
			if flags.Changed("admin") {
				cfg.AdminAddress = admin
			}
			if flags.Changed("max-conns") {
				cfg.Hub.MaxConns = maxConns
			}
			if flags.Changed("delimiter") {
				if cfg.Hub.Framed.Delimiter, err = parseDelimiter(delimiter); err != nil {
					return err
				}
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.verify(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "TOML config file")
	f.StringVar(&mode, "mode", "echo", "Delivery mode: echo or broadcast")
	f.StringVar(&network, "network", defaultNetwork, "Listen network: tcp or unix")
	f.StringVar(&address, "addr", defaultAddress, "Listen address or unix socket path")
	f.StringVar(&admin, "admin", "", "Admin HTTP address serving /metrics, /live and /ready (disabled when empty)")
	f.IntVar(&maxConns, "max-conns", hub.DefaultConfig().MaxConns, "Maximum number of concurrent connections")
	f.StringVar(&delimiter, "delimiter", `\n`, "Frame delimiter, one byte; Go escapes allowed")
	f.IntVar(&logLevel, "log-level", logging.LevelWarn, "Log level, 0 (trace) to 5 (silent)")
	return cmd
}

func runServer(ctx context.Context, cfg serverConfig) error {
	log := logging.New("serve", os.Stderr)
	if cfg.LogLevel >= 0 {
		framed.SetLogLevel(cfg.LogLevel)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.New(metricsNamespace, reg)
	if err != nil {
		return err
	}
	tracing, err := adapter.NewOTel(
		otel.GetMeterProvider().Meter(instrumentation),
		otel.GetTracerProvider().Tracer(instrumentation),
	)
	if err != nil {
		return err
	}
	cfg.Hub.Framed.Observer = framed.MultiObserver(collector, tracing)

	h, err := hub.New(cfg.Hub)
	if err != nil {
		return err
	}
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "hub_connections",
		Help:      "Number of connections currently served.",
	}, func() float64 { return float64(h.Len()) }))

	ln, err := adapter.Listen(cfg.Network, cfg.Address)
	if err != nil {
		_ = h.Close()
		return err
	}
	log.Infof("serving %s on %s %s", cfg.Hub.Mode, cfg.Network, ln.Addr())

	if cfg.AdminAddress != "" {
		health, err := adapter.NewHealthHandler(adapter.HealthOptions{
			MaxOpenFDs:    cfg.MaxOpenFDs,
			MaxGoroutines: cfg.MaxGoroutines,
			Ready: func() error {
				if ctx.Err() != nil {
					return errors.New("shutting down")
				}
				return nil
			},
		})
		if err != nil {
			_ = ln.Close()
			_ = h.Close()
			return err
		}
		srv := newAdminServer(cfg.AdminAddress, reg, health)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("admin server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Infof("admin endpoints on %s", cfg.AdminAddress)
	}

	err = h.Serve(ctx, ln)
	if cerr := h.Close(); cerr != nil && !errors.Is(cerr, hub.ErrHubClosed) {
		log.Warnf("close hub: %v", cerr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, hub.ErrHubClosed) {
		return nil
	}
	return err
}

func newAdminServer(addr string, gatherer prometheus.Gatherer, health http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/live", health)
	mux.Handle("/ready", health)
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
