package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"ebus_manager/internal/booking"
	"ebus_manager/internal/config"
	"ebus_manager/internal/controllers"
	"ebus_manager/internal/metrics"
	"ebus_manager/internal/middleware"
	"ebus_manager/internal/notify"
	"ebus_manager/internal/realtime"
	"ebus_manager/internal/routes"
	"ebus_manager/internal/scheduling"
	"ebus_manager/internal/simulation"
	"ebus_manager/internal/store"
	"ebus_manager/internal/tracking"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API and background workers",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Usage: "migrate the schema before serving", Value: true},
		},
		Action: func(c *cli.Context) error {
			cfg, accessLog, db, err := bootstrap()
			if err != nil {
				return err
			}
			if c.Bool("migrate") {
				if err := config.Migrate(db); err != nil {
					return err
				}
			}
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, accessLog, store.New(db))
		},
	}
}

// sinks assembles the realtime fan-out. The websocket hub is always present;
// Firebase, Redis and NATS join when configured.
func sinks(ctx context.Context, cfg *config.Config, hub *realtime.Hub) (realtime.Fanout, notify.Pusher, func()) {
	out := realtime.Fanout{hub}
	var pusher notify.Pusher = notify.LogPusher{}
	var closers []func()

	if cfg.FirebaseEnabled() {
		app, err := realtime.NewFirebaseApp(ctx, cfg.FirebaseDatabaseURL, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
		if err != nil {
			logrus.WithError(err).Error("Firebase disabled")
		} else {
			if cfg.FirebaseDatabaseURL != "" {
				if fb, err := realtime.NewFirebaseSink(ctx, app); err != nil {
					logrus.WithError(err).Error("Firebase realtime database disabled")
				} else {
					out = append(out, fb)
				}
			}
			if fcm, err := notify.NewFCMPusher(ctx, app); err != nil {
				logrus.WithError(err).Error("Firebase messaging disabled")
			} else {
				pusher = fcm
			}
		}
	}
	if cfg.RedisAddr != "" {
		rs, err := realtime.NewRedisSink(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RealtimeTTL)
		if err != nil {
			logrus.WithError(err).Error("Redis realtime sink disabled")
		} else {
			out = append(out, rs)
			closers = append(closers, func() { _ = rs.Close() })
		}
	}
	if cfg.NATSURL != "" {
		ns, err := realtime.NewNATSSink(cfg.NATSURL)
		if err != nil {
			logrus.WithError(err).Error("NATS realtime sink disabled")
		} else {
			out = append(out, ns)
			closers = append(closers, ns.Close)
		}
	}
	logrus.WithField("sinks", len(out)).Info("Realtime broadcaster ready")
	return out, pusher, func() {
		for _, fn := range closers {
			fn()
		}
	}
}

func serve(ctx context.Context, cfg *config.Config, accessLog io.Writer, st *store.Store) error {
	var m *metrics.Collector
	if cfg.MetricsEnabled {
		m = metrics.NewCollector()
	}

	hub := realtime.NewHub()
	defer hub.Close()
	fanout, pusher, closeSinks := sinks(ctx, cfg, hub)
	defer closeSinks()
	pub := realtime.NewPublisher(fanout, m)

	scheduler := scheduling.NewScheduler(st, pub, m, cfg.Location)
	allocator := booking.NewAllocator(st, pub, m, cfg.Location)
	tracker := tracking.NewTracker(st, pub, m, cfg.AverageSpeedKmh)
	simulator := simulation.NewSimulator(st, scheduler, tracker, simulation.NewRegistry(), cfg.SimulationStepInterval, m)
	defer simulator.Close()
	notifier := notify.NewService(st, pusher, m)

	go scheduling.NewSweeper(scheduler, cfg.SweepInterval).Run(ctx)
	go tracking.NewRetention(st, cfg.GPSRetention, cfg.RetentionInterval, m).Run(ctx)

	if cfg.MQTTBroker != "" {
		listener := tracking.NewDeviceListener(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, tracker)
		if err := listener.Start(ctx); err != nil {
			logrus.WithError(err).Error("MQTT device feed disabled")
		} else {
			defer listener.Stop()
		}
	}

	h := &controllers.Handler{
		Store:     st,
		Accounts:  st,
		Scheduler: scheduler,
		Allocator: allocator,
		Tracker:   tracker,
		Simulator: simulator,
		Notifier:  notifier,
		Publisher: pub,
		Hub:       hub,
		JWT:       middleware.NewJWT(cfg.JWTSecret, cfg.JWTExpiry),
		Location:  cfg.Location,
	}
	router := routes.SetupRouter(h, routes.Options{
		AccessLog:    accessLog,
		GPSIngestKey: cfg.GPSIngestKey,
		Metrics:      m,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.EnableCORS(cfg.FrontendURL, router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", srv.Addr).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
