package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/curryleaf/orders/internal/app"
	"github.com/curryleaf/orders/internal/app/handlers"
	"github.com/curryleaf/orders/internal/auth"
	"github.com/curryleaf/orders/internal/config"
	"github.com/curryleaf/orders/internal/gateway"
	"github.com/curryleaf/orders/internal/lib/logger"
	"github.com/curryleaf/orders/internal/lib/logger/handlers/urllog"
	"github.com/curryleaf/orders/internal/notify"
	"github.com/curryleaf/orders/internal/service"
	"github.com/curryleaf/orders/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.DB.Close()

	deliveryCharge, err := decimal.NewFromString(cfg.Orders.DeliveryCharge)
	if err != nil {
		log.Error("invalid delivery charge", slog.String("value", cfg.Orders.DeliveryCharge))
		panic(errors.Wrap(err, "invalid delivery charge in config"))
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	orderRepo := storage.NewOrderRepository(application.DB)
	txRepo := storage.NewTransactionRepository(application.DB)
	offerRepo := storage.NewOfferRepository(application.DB)
	catalogRepo := storage.NewCatalogRepository(application.DB)
	addressRepo := storage.NewAddressRepository(application.DB)
	userRepo := storage.NewUserRepository(application.DB)

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Kafka.Enabled {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	gw := gateway.NewHTTPClient(cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.KeySecret, cfg.Gateway.Name, cfg.Gateway.Timeout)

	offerService := service.NewOfferService(application.Logger, offerRepo, orderRepo)
	orderService := service.NewOrderService(application.Logger, application.DB, orderRepo, catalogRepo, addressRepo, offerService, notifier, deliveryCharge)
	paymentService := service.NewPaymentService(application.Logger, application.DB, orderRepo, txRepo, gw, notifier,
		cfg.Gateway.Name, cfg.Gateway.KeyID, cfg.Gateway.WebhookSecret, cfg.Orders.Currency)
	refundService := service.NewRefundService(application.Logger, application.DB, orderRepo, txRepo, gw, notifier)
	cancelService := service.NewCancellationService(application.Logger, application.DB, orderRepo, refundService, notifier)
	statusService := service.NewStatusService(application.Logger, application.DB, orderRepo, notifier)
	authService := service.NewAuthService(application.Logger, userRepo, time.Duration(application.Config.JWT.TokenTTL)*time.Minute)

	// Public routes: the verify callback authenticates with its HMAC
	// signature, not a bearer token.
	router.Post("/api/auth/staff/login", handlers.StaffLoginHandler(application.Logger, authService))
	router.Post("/api/payments/verify", handlers.VerifyPaymentHandler(application.Logger, paymentService))

	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware())

		r.Post("/api/orders", handlers.CreateOrderHandler(application.Logger, orderService))
		r.Get("/api/orders/{id}", handlers.GetOrderHandler(application.Logger, orderService))
		r.Post("/api/orders/{id}/cancel", handlers.CancelOrderHandler(application.Logger, cancelService))
		r.Post("/api/payments/initiate", handlers.InitiatePaymentHandler(application.Logger, paymentService))
		r.Post("/api/payments/check-status", handlers.PaymentStatusHandler(application.Logger, paymentService))

		r.Group(func(staff chi.Router) {
			staff.Use(auth.RequireStaff)
			staff.Patch("/api/orders/{id}/status", handlers.UpdateStatusHandler(application.Logger, statusService))
			staff.Post("/api/payments/refund", handlers.RefundHandler(application.Logger, refundService))
		})
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
