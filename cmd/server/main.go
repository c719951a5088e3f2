package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"lifeline/internal/lifecycle/handler"
	lifecyclemetrics "lifeline/internal/lifecycle/metrics"
	"lifeline/internal/lifecycle/service"
	"lifeline/internal/notify"
	"lifeline/internal/notify/hub"
	"lifeline/internal/notify/kafkabus"
	"lifeline/internal/notify/redisbus"
	"lifeline/internal/platform/config"
	"lifeline/internal/platform/httpserver"
	"lifeline/internal/platform/kafka"
	"lifeline/internal/platform/logger"
	"lifeline/internal/platform/metrics"
	"lifeline/internal/platform/redis"
	httptransport "lifeline/internal/transport/http"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// run wires dependencies and blocks until a shutdown signal arrives or a
// background component fails.
func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			log.Warn("close store", "error", err)
		}
	}()

	reg := prometheus.DefaultRegisterer
	lifecycleMetrics := lifecyclemetrics.New(reg)
	httpMetrics := metrics.New(reg)

	sockets := hub.New(log)
	defer sockets.Close()
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "lifeline_websocket_clients",
		Help: "Websocket clients connected to this instance",
	}, func() float64 { return float64(sockets.Len()) })

	health := map[string]httptransport.HealthCheck{"store": st.health}
	fanout := notify.NewFanout()

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var bus *redisbus.Bus
	if rdb != nil {
		defer rdb.Close()
		bus = redisbus.New(rdb.Client, cfg.Redis.Channel, log)
		// Local clients receive events through the relay, including this
		// instance's own.
		fanout.Add("redis", notify.Guarded(bus, notify.NewCircuitBreaker(breakerThreshold, breakerCooldown)))
		health["redis"] = rdb.Health
	} else {
		fanout.Add("hub", sockets)
	}

	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return err
	}
	if kc != nil {
		defer kc.Close()
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			return err
		}
		fanout.Add("kafka", notify.Guarded(kafkabus.New(kc, cfg.Kafka.Topic), notify.NewCircuitBreaker(breakerThreshold, breakerCooldown)))
		health["kafka"] = kc.Ping
	}

	worker := service.NewMirrorWorker(st.users, cfg.MirrorRepairQueue,
		service.WithWorkerLogger(log),
		service.WithWorkerMetrics(lifecycleMetrics),
	)
	svc := service.New(st.users, st.requests,
		service.WithLogger(log),
		service.WithPublisher(fanout),
		service.WithMetrics(lifecycleMetrics),
		service.WithMirrorRepairer(worker),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:      log,
		Lifecycle:   handler.New(svc, log),
		AdminSecret: cfg.AdminSecret,
		Hub:         sockets,
		Metrics:     httpMetrics,
		Gatherer:    prometheus.DefaultGatherer,
		Health:      health,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting lifeline", "addr", cfg.Addr, "store", cfg.Store.Driver, "publishers", fanout.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return ignoreCanceled(worker.Run(gctx))
	})
	if bus != nil {
		g.Go(func() error {
			return ignoreCanceled(bus.Relay(gctx, sockets))
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
