package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloud-wave-best-zizon/checkout-service/internal/events"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/handler"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/repository"
	"github.com/cloud-wave-best-zizon/checkout-service/internal/service"
	"github.com/cloud-wave-best-zizon/checkout-service/pkg/config"
	"github.com/cloud-wave-best-zizon/checkout-service/pkg/middleware"
	pkgtls "github.com/cloud-wave-best-zizon/checkout-service/pkg/tls"
)

type producer interface {
	service.EventPublisher
	HealthCheck(ctx context.Context) error
	Close() error
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	tlsConfig := &pkgtls.TLSConfig{}
	if err := envconfig.Process("", tlsConfig); err != nil {
		logger.Fatal("Failed to load TLS config", zap.Error(err))
	}

	logger.Info("Service configuration",
		zap.String("port", cfg.Port),
		zap.String("db_driver", cfg.DBDriver),
		zap.Bool("kafka_enabled", cfg.KafkaEnabled),
		zap.Bool("archive_enabled", cfg.ArchiveEnabled),
		zap.Duration("reservation_ttl", cfg.ReservationTTL),
		zap.Bool("tls_enabled", tlsConfig.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize components
	db, err := repository.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := repository.Migrate(ctx, db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	store := repository.NewSQLStore(db)

	var publisher producer = events.NopProducer{}
	if cfg.KafkaEnabled {
		kafkaProducer, err := events.NewKafkaProducer(cfg.KafkaBrokers, events.Topics{
			Orders:         cfg.OrderTopic,
			Inventory:      cfg.InventoryTopic,
			Reconciliation: cfg.ReconciliationTopic,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create Kafka producer", zap.Error(err))
		}
		publisher = kafkaProducer
	}
	defer publisher.Close()

	var archive repository.OrderArchive = repository.NopOrderArchive{}
	if cfg.ArchiveEnabled {
		dynamoClient, err := repository.NewDynamoDBClient(ctx, cfg)
		if err != nil {
			logger.Fatal("Failed to create DynamoDB client", zap.Error(err))
		}
		archive = repository.NewDynamoOrderArchive(dynamoClient, cfg.OrderTableName)
	}

	inventory := service.NewInventoryService(store, publisher, cfg.ReservationTTL, logger)
	pricing := service.Pricing{
		Pricer:   service.NewCatalogPricer(store),
		Coupons:  service.NewCouponService(store),
		Shipping: service.FlatShipping{Fee: cfg.ShippingFlatFee, FreeThreshold: cfg.FreeShippingThreshold},
		Tax:      service.FlatTax{Rate: cfg.TaxRate},
		Currency: cfg.Currency,
	}
	checkout := service.NewCheckoutService(store, inventory, pricing, publisher, archive, logger)
	janitor := service.NewJanitor(inventory, cfg.JanitorInterval, logger)

	// Setup Gin Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	v1 := router.Group("/api/v1")
	v1.GET("/health", func(c *gin.Context) {
		status := gin.H{
			"status":  "healthy",
			"service": "checkout-service",
			"port":    cfg.Port,
			"tls":     tlsConfig.Enabled,
		}
		code := http.StatusOK
		if err := db.PingContext(c.Request.Context()); err != nil {
			status["database"] = "unhealthy"
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "healthy"
		}
		if err := publisher.HealthCheck(c.Request.Context()); err != nil {
			status["kafka"] = "unhealthy"
			code = http.StatusServiceUnavailable
		} else {
			status["kafka"] = "healthy"
		}
		if code != http.StatusOK {
			status["status"] = "unhealthy"
		}
		c.JSON(code, status)
	})
	handler.Register(v1, handler.Handlers{
		Cart:      handler.NewCartHandler(service.NewCartService(store, logger), logger),
		Orders:    handler.NewOrderHandler(checkout, service.NewOrderService(store, inventory, logger), logger),
		Payments:  handler.NewPaymentHandler(service.NewPaymentService(store, logger), logger),
		Inventory: handler.NewInventoryHandler(inventory, logger),
		Wishlist:  handler.NewWishlistHandler(service.NewWishlistService(store), logger),
	}, middleware.Auth([]byte(cfg.JWTSecret)))

	g, ctx := errgroup.WithContext(ctx)
	servers := []*http.Server{}

	// Public HTTP server
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	servers = append(servers, httpServer)
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// mTLS server for service-to-service calls
	if tlsConfig.Enabled {
		tlsCfg, certs, err := pkgtls.LoadTLSConfig(tlsConfig, logger)
		if err != nil {
			logger.Error("Failed to load TLS config, mTLS server disabled", zap.Error(err))
		} else {
			httpsServer := &http.Server{
				Addr:              ":" + tlsConfig.Port,
				Handler:           router,
				TLSConfig:         tlsCfg,
				ReadHeaderTimeout: 10 * time.Second,
			}
			servers = append(servers, httpsServer)
			g.Go(func() error {
				logger.Info("Starting mTLS server", zap.String("port", tlsConfig.Port))
				if err := httpsServer.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				return pkgtls.WatchCertificates(ctx, tlsConfig, certs, nil, logger)
			})
		}
	}

	g.Go(func() error {
		return janitor.Run(ctx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server shutdown failed", zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Service stopped with error", zap.Error(err))
		return
	}
	logger.Info("All servers stopped")
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	return logger
}
