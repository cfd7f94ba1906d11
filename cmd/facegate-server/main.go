package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/facegate/server/internal/config"
	"github.com/facegate/server/internal/db"
	"github.com/facegate/server/internal/facegate/alert"
	"github.com/facegate/server/internal/facegate/lock"
	"github.com/facegate/server/internal/facegate/policy"
	"github.com/facegate/server/internal/facegate/risk"
	"github.com/facegate/server/internal/facegate/service"
	"github.com/facegate/server/internal/facegate/store/sqlite"
	"github.com/facegate/server/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: search ./ and /etc/facegate)")
	flag.Parse()

	// .env first, so FACEGATE_* overrides from it are visible to viper.
	_ = godotenv.Load()

	logger := log.New(os.Stdout, "facegate-server ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, db.Config{Path: cfg.Database.Path, Env: cfg.Database.Env})
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer conn.Close()

	if cfg.Database.Env == "dev" {
		if err := db.SeedDev(ctx, conn); err != nil {
			logger.Fatalf("db seed: %v", err)
		}
	}

	writer := db.NewWorker(conn)
	defer writer.Close()

	users := sqlite.NewUserStore(conn, writer)
	logs := sqlite.NewAccessLogStore(conn, writer)
	alerts := sqlite.NewAlertStore(conn, writer)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var channels []alert.Channel
	if cfg.Alerts.Email.Enabled {
		channels = append(channels, alert.NewEmailChannel(alert.EmailConfig{
			Enabled:    true,
			SMTPAddr:   cfg.Alerts.Email.SMTPAddr,
			From:       cfg.Alerts.Email.From,
			Recipients: cfg.Alerts.Email.Recipients,
		}))
	}
	if cfg.Alerts.AMQP.Enabled {
		amqpCh, err := alert.NewAMQPChannel(alert.AMQPConfig{
			Enabled:  true,
			URL:      cfg.Alerts.AMQP.URL,
			Exchange: cfg.Alerts.AMQP.Exchange,
		})
		if err != nil {
			logger.Fatalf("amqp: %v", err)
		}
		defer amqpCh.Close()
		channels = append(channels, amqpCh)
	}
	dispatcher := alert.NewDispatcher(alerts, logger, m, channels...)

	engine := policy.NewEngine(policy.Config{
		Threshold:         cfg.Security.Threshold,
		EnforceTimeRules:  cfg.Security.EnforceTimeRules,
		TwoFactorRequired: cfg.Security.TwoFactorRequired,
	})
	assessor := risk.NewAssessor()
	door := lock.NewController(lock.NewSimulatedActuator(logger), logger)
	defer door.Close()

	// Dev stand-in until a real recognition pipeline is attached: an unknown
	// face at moderate confidence every ~5s at the default poll interval.
	source := &service.SimulatedSource{Confidence: 0.55, Every: 50}

	orch := service.NewOrchestrator(service.Dependencies{
		Logger:  logger,
		Source:  source,
		Users:   users,
		Logs:    logs,
		Policy:  engine,
		Risk:    assessor,
		Lock:    door,
		Alerts:  dispatcher,
		Metrics: m,
		Config: service.Config{
			UnlockDuration:   cfg.Security.UnlockDuration(),
			AnomalyThreshold: cfg.Risk.AnomalyThreshold,
			FailureThreshold: cfg.Source.FailureThreshold,
			PollInterval:     cfg.Source.PollInterval(),
		},
	})

	pruner := service.NewLogPruner(logs, service.PrunerConfig{
		RetentionDays: cfg.Retention.Days,
		IntervalHours: cfg.Retention.IntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

		go func() {
			logger.Printf("metrics listening on %s", cfg.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("metrics server error: %v", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	orch.Run(ctx)
}
