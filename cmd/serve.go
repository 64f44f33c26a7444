package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vibast-solutions/ms-go-bunq-gateway/app/controller"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/provider"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/repository"
	"github.com/vibast-solutions/ms-go-bunq-gateway/app/service"
	"github.com/vibast-solutions/ms-go-bunq-gateway/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server for the bunq gateway service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, gatewayService, cleanup := mustCreateGatewayService()
	defer cleanup()

	gatewayController := controller.NewGatewayController(gatewayService)
	e := setupHTTPServer(gatewayController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(gatewayController *controller.GatewayController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"request_id": v.RequestID,
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", gatewayController.Health)

	orders := e.Group("/orders")
	orders.POST("", gatewayController.CreateOrder)
	orders.GET("/:id", gatewayController.GetOrder)

	e.POST("/checkout", gatewayController.Checkout)

	// bunq delivers pushes unauthenticated; the handler acknowledges every
	// payload and correlates by payment request id only.
	e.POST("/webhooks/bunq", gatewayController.HandleBunqNotification)

	settings := e.Group("/settings")
	settings.GET("", gatewayController.GetSettings)
	settings.PUT("", gatewayController.UpdateSettings)
	settings.GET("/accounts", gatewayController.ListBankAccounts)

	return e
}

func mustCreateGatewayService() (*config.Config, *service.GatewayService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	orderRepo := repository.NewOrderRepository(db)
	noteRepo := repository.NewOrderNoteRepository(db)
	cartRepo := repository.NewCartRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	bunqClient := provider.NewBunqClient(provider.BunqConfig{
		APIBaseURL:        cfg.Bunq.APIBaseURL,
		SandboxAPIBaseURL: cfg.Bunq.SandboxAPIBaseURL,
		HTTPTimeout:       cfg.Bunq.HTTPTimeout,
		DeviceDescription: cfg.Bunq.DeviceDescription,
	})

	gatewayService := service.NewGatewayService(
		orderRepo,
		noteRepo,
		cartRepo,
		settingsRepo,
		bunqClient,
		cfg.Gateway,
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, gatewayService, cleanup
}

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	return nil
}
