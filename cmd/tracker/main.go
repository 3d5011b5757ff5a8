package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"deliverytrack/internal/buildinfo"
	"deliverytrack/internal/config"
	"deliverytrack/internal/logger"
	"deliverytrack/internal/metrics"
	"deliverytrack/internal/model"
	"deliverytrack/internal/pricing"
	"deliverytrack/internal/tracker"
	"deliverytrack/internal/transport"
	"deliverytrack/internal/views"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "path to YAML config")
		orderID = flag.Int("order", 0, "follow the tracking page of this order")
		create  = flag.Bool("create", false, "create an order and exit")
		pickup  = flag.String("pickup", "", "pickup address for -create")
		dropoff = flag.String("dropoff", "", "delivery address for -create")
		km      = flag.Float64("km", 0, "distance in km for -create")
		notes   = flag.String("notes", "", "special instructions for -create")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Dev)
	defer func() { _ = log.Sync() }()
	log.Info("starting", append(buildinfo.Fields(), zap.String("api", cfg.API.BaseURL))...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	httpClient := transport.NewHTTPClient(cfg.API.BaseURL, cfg.API.Timeout, cfg.API.RateRPS, cfg.API.RateBurst)
	if cfg.API.Token != "" {
		httpClient.SetAuthToken(cfg.API.Token)
	}

	if *create {
		if err := createOrder(ctx, log, httpClient, cfg.Pricing, model.CreateOrderRequest{
			PickupAddress:       *pickup,
			DeliveryAddress:     *dropoff,
			DistanceKm:          *km,
			SpecialInstructions: *notes,
		}); err != nil {
			log.Error("create order failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	cache, closeCache := snapshotCache(ctx, log, cfg.Cache)
	defer closeCache()
	client := transport.NewCachedClient(httpClient, cache, cfg.Cache.TTL, log)

	d := tracker.New(client, tracker.Options{
		Interval:     cfg.Tracker.PollInterval,
		FetchTimeout: cfg.Tracker.FetchTimeout,
		MaxBackoff:   cfg.Tracker.MaxBackoff,
		Logger:       log,
	})
	defer d.Close()

	mounted := []tracker.Subscriber{views.NewOrderList(log)}
	var page *views.TrackingPage
	if *orderID > 0 {
		page = views.NewTrackingPage(client, *orderID, views.PageOptions{
			Timeout: cfg.API.Timeout,
			Logger:  log,
			OnLoad:  func(snap model.TrackingSnapshot) { logSnapshot(log, snap) },
		})
		mounted = append(mounted, page)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Addr != "" {
		srv := metricsServer(cfg.Metrics.Addr, log, d)
		g.Go(func() error {
			log.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		release, err := views.Open(gctx, d, mounted...)
		defer release()
		if err != nil {
			log.Warn("initial load failed", zap.Error(err))
		}
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("stopped")
}

func createOrder(ctx context.Context, log *zap.Logger, c transport.Client, pc pricing.Config, req model.CreateOrderRequest) error {
	price, err := pricing.Quote(req, pc)
	if err != nil {
		return err
	}
	log.Info("price quote", zap.Float64("distance_km", req.DistanceKm), zap.Float64("price", price))
	o, err := c.CreateOrder(ctx, req)
	if err != nil {
		return err
	}
	log.Info("order created", zap.Int("order_id", o.ID), zap.String("status", string(o.Status)), zap.Float64("price", o.Price))
	return nil
}

// snapshotCache picks Redis when configured and reachable, memory otherwise.
func snapshotCache(ctx context.Context, log *zap.Logger, cfg config.Cache) (transport.SnapshotCache, func()) {
	if cfg.RedisURL == "" {
		return transport.NewMemoryCache(), func() {}
	}
	rc, err := transport.NewRedisCache(cfg.RedisURL)
	if err != nil {
		log.Warn("redis cache disabled", zap.Error(err))
		return transport.NewMemoryCache(), func() {}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		log.Warn("redis unreachable, using memory cache", zap.Error(err))
		_ = rc.Close()
		return transport.NewMemoryCache(), func() {}
	}
	return rc, func() { _ = rc.Close() }
}

func metricsServer(addr string, log *zap.Logger, d *tracker.Dispatcher) *http.Server {
	metrics.RegisterDefault()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(d.State().String() + "\n"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(log, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func logMiddleware(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("http", zap.String("remote", r.RemoteAddr), zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Duration("took", time.Since(start)))
	})
}

func logSnapshot(log *zap.Logger, snap model.TrackingSnapshot) {
	done := 0
	for _, s := range snap.TrackingSteps {
		if s.Completed {
			done++
		}
	}
	log.Info("tracking",
		zap.Int("order_id", snap.Order.ID),
		zap.String("status", string(snap.Order.Status)),
		zap.Int("progress", snap.ProgressPercentage),
		zap.Int("steps_done", done),
		zap.Int("notifications", len(snap.RecentNotifications)),
	)
}
