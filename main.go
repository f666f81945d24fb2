package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Zack-y11/e-commerce/config"
	"github.com/Zack-y11/e-commerce/handlers"
	"github.com/Zack-y11/e-commerce/internal/addresses"
	"github.com/Zack-y11/e-commerce/internal/auth"
	"github.com/Zack-y11/e-commerce/internal/carts"
	"github.com/Zack-y11/e-commerce/internal/categories"
	"github.com/Zack-y11/e-commerce/internal/consul"
	"github.com/Zack-y11/e-commerce/internal/gateway"
	"github.com/Zack-y11/e-commerce/internal/health"
	"github.com/Zack-y11/e-commerce/internal/orders"
	"github.com/Zack-y11/e-commerce/internal/payments"
	"github.com/Zack-y11/e-commerce/internal/products"
	"github.com/Zack-y11/e-commerce/internal/stores/kafka"
	"github.com/Zack-y11/e-commerce/internal/stores/postgres"
	cache "github.com/Zack-y11/e-commerce/internal/stores/redis"
	"github.com/Zack-y11/e-commerce/internal/users"
	"github.com/Zack-y11/e-commerce/middleware"
	"github.com/Zack-y11/e-commerce/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName = "ecommerce"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
	setupSlog(cfg.LogLevel)

	if err := startApp(cfg); err != nil {
		slog.Error("service stopped", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
}

func startApp(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	/*
		------------------------------------------------
		Storage
		------------------------------------------------
	*/
	db, err := postgres.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	slog.Info("database migrated")

	var productCache products.Cache
	if cfg.RedisAddr != "" {
		client, err := cache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		productCache = cache.NewProductCache(client)
	} else {
		slog.Warn("REDIS_ADDR not set, product cache disabled")
	}

	var publisher payments.Publisher = kafka.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		k, err := kafka.NewConf(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		defer k.Close()
		publisher = k
	} else {
		slog.Warn("KAFKA_BROKERS not set, order paid events are dropped")
	}

	/*
		------------------------------------------------
		Domain
		------------------------------------------------
	*/
	userConf, err := users.NewConf(db)
	if err != nil {
		return err
	}
	categoryConf, err := categories.NewConf(db)
	if err != nil {
		return err
	}
	productConf, err := products.NewConf(db, productCache)
	if err != nil {
		return err
	}
	cartConf, err := carts.NewConf(db)
	if err != nil {
		return err
	}
	addressConf, err := addresses.NewConf(db)
	if err != nil {
		return err
	}
	orderConf, err := orders.NewConf(db, orders.WithKeepEmptyOrders(cfg.KeepEmptyOrders))
	if err != nil {
		return err
	}
	paymentConf, err := payments.NewConf(db)
	if err != nil {
		return err
	}

	stripeGateway, err := gateway.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	if err != nil {
		return err
	}
	checkout, err := payments.NewService(paymentConf, stripeGateway, publisher, cfg.StripeTestMode)
	if err != nil {
		return err
	}

	keys, err := auth.NewKeys(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	/*
		------------------------------------------------
		HTTP
		------------------------------------------------
	*/
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router, err := handlers.API(cfg.EndpointPrefix, cfg.RequestTimeout, handlers.Deps{
		Keys:       keys,
		DB:         db,
		Users:      userConf,
		Categories: categoryConf,
		Products:   productConf,
		Carts:      cartConf,
		Addresses:  addressConf,
		Orders:     orderConf,
		Payments:   paymentConf,
		Checkout:   checkout,
		Webhooks:   stripeGateway,
		Metrics:    middleware.NewMetrics(reg, "api"),
		Gatherer:   reg,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	/*
		------------------------------------------------
		gRPC health
		------------------------------------------------
	*/
	hs := health.NewServer(db)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}
	go hs.Watch(ctx, 15*time.Second)

	serverErrors := make(chan error, 2)
	go func() {
		slog.Info("grpc health server starting", slog.String("port", cfg.GRPCPort))
		serverErrors <- hs.GRPC().Serve(lis)
	}()
	go func() {
		slog.Info("http server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	/*
		------------------------------------------------
		Service discovery
		------------------------------------------------
	*/
	if cfg.ConsulAddr != "" {
		client, err := consul.NewClient(cfg.ConsulAddr)
		if err != nil {
			return err
		}
		port, err := strconv.Atoi(cfg.Port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", cfg.Port, err)
		}
		id := serviceName + "-" + uuid.NewString()
		err = consul.Register(client, consul.Registration{
			ID:         id,
			Name:       serviceName,
			Host:       cfg.ServiceHost,
			Port:       port,
			HealthPath: "/healthz",
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := consul.Deregister(client, id); err != nil {
				slog.Error("consul deregistration failed", slog.String(logkey.ERROR, err.Error()))
			}
		}()
	}

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown started")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hs.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		return fmt.Errorf("could not stop http server gracefully: %w", err)
	}
	slog.Info("shutdown complete")
	return nil
}

func setupSlog(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     lvl,
	})
	slog.SetDefault(slog.New(logHandler))
}
