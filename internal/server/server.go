package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"helmet-shop/internal/cache"
	"helmet-shop/internal/config"
	"helmet-shop/internal/database"
	applog "helmet-shop/internal/logger"
	custommiddleware "helmet-shop/internal/middleware"
	"helmet-shop/internal/payment"
	"helmet-shop/internal/repository"
	"helmet-shop/internal/service"
	"helmet-shop/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewServer wires repositories, services and handlers onto one router.
// redisClient may be nil; carts are then uncached and limits are off.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) *Server {
	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      otelhttp.NewHandler(NewRouter(cfg, logger, db, redisClient), "helmet-shop"),
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server
}

// NewRouter builds the full HTTP surface.
func NewRouter(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) http.Handler {
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins))

	// Initialize repositories
	sqlDB := db.DB()
	productRepo := repository.NewProductRepository(sqlDB)
	cartRepo := repository.NewCartRepository(sqlDB)
	orderRepo := repository.NewOrderRepository(sqlDB)
	profileRepo := repository.NewProfileRepository(sqlDB)
	adminRepo := repository.NewAdminRepository(sqlDB)

	var cartCache cache.CartCache = cache.NoopCartCache{}
	var limiterClient redis.Cmdable
	if redisClient != nil {
		cartCache = cache.NewRedisCartCache(redisClient)
		limiterClient = redisClient
	}

	gateway := newGateway(cfg.Payment, logger)

	// Initialize services
	cartService := service.NewCartService(cartRepo, cartCache, applog.ForComponent(logger, "cart"))
	checkoutService := service.NewCheckoutService(orderRepo, cartService, gateway, applog.ForComponent(logger, "checkout"))
	orderService := service.NewOrderService(orderRepo, applog.ForComponent(logger, "orders"))
	productService := service.NewProductService(productRepo, cartCache, applog.ForComponent(logger, "products"))
	adminService := service.NewAdminService(adminRepo, cfg.Auth.AdminEmail, applog.ForComponent(logger, "admin"))
	profileService := service.NewProfileService(profileRepo, adminService, applog.ForComponent(logger, "profiles"))

	// Initialize handlers
	paymentHandler := transport.NewPaymentHandler(gateway, applog.ForComponent(logger, "payment"))
	clientConfigHandler := transport.NewClientConfigHandler(transport.ClientConfig{
		StripePublishableKey: cfg.Payment.PublishableKey,
		SupabaseURL:          cfg.Auth.SupabaseURL,
		SupabaseAnonKey:      cfg.Auth.SupabaseAnonKey,
		BackendURL:           cfg.Server.BackendURL,
	})
	productHandler := transport.NewProductHandler(productService, logger)
	cartHandler := transport.NewCartHandler(cartService, logger)
	orderHandler := transport.NewOrderHandler(checkoutService, orderService, logger)
	profileHandler := transport.NewProfileHandler(profileService, logger)
	adminHandler := transport.NewAdminHandler(adminService, logger)

	window := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
	paymentLimiter := custommiddleware.RateLimitMiddleware(limiterClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            window,
		KeyPrefix:         "ratelimit:payment",
		Respond:           transport.RespondPlainError,
	}, logger)
	checkoutLimiter := custommiddleware.RateLimitMiddleware(limiterClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            window,
		KeyPrefix:         "ratelimit:checkout",
	}, logger)

	authMiddleware := custommiddleware.AuthMiddleware(cfg.Auth.JWTSecret, logger)

	// Register routes
	paymentHandler.RegisterRoutes(router, paymentLimiter)

	router.Route("/api", func(r chi.Router) {
		clientConfigHandler.RegisterRoutes(r)
		productHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			cartHandler.RegisterRoutes(r)
			orderHandler.RegisterRoutes(r, checkoutLimiter)
			profileHandler.RegisterRoutes(r)

			r.Route("/admin", func(r chi.Router) {
				r.Use(custommiddleware.RequireAdmin(adminService, logger))
				productHandler.RegisterAdminRoutes(r)
				orderHandler.RegisterAdminRoutes(r)
				profileHandler.RegisterAdminRoutes(r)
				adminHandler.RegisterRoutes(r)
			})
		})
	})

	return router
}

// newGateway leaves the provider unset when no secret is configured, so the
// payment endpoints answer 501 instead of failing upstream.
func newGateway(cfg config.PaymentConfig, logger *zap.Logger) *payment.Gateway {
	paymentLogger := applog.ForComponent(logger, "payment")

	var provider payment.Provider
	if cfg.Configured() {
		provider = payment.NewStripeProvider(payment.StripeConfig{
			SecretKey: cfg.SecretKey,
			APIURL:    cfg.APIURL,
			ReturnURL: cfg.ReturnURL,
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		}, paymentLogger)
	} else {
		paymentLogger.Warn("STRIPE_SECRET_KEY not set; payment endpoints are disabled")
	}

	return payment.NewGateway(provider, cfg.ExchangeRate, cfg.Currency, paymentLogger)
}

// ConnectRedis returns nil when Redis cannot be reached; the service runs
// without the cart cache and rate limits in that case.
func ConnectRedis(cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, continuing without cache and rate limits",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		client.Close()
		return nil
	}

	return client
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
