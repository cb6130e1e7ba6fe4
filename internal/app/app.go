package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/peakform/biometrics-service/internal/config"
	"github.com/peakform/biometrics-service/internal/domain"
	"github.com/peakform/biometrics-service/internal/handler"
	"github.com/peakform/biometrics-service/internal/provider"
	"github.com/peakform/biometrics-service/internal/repository"
	"github.com/peakform/biometrics-service/internal/service"
	"github.com/peakform/biometrics-service/internal/utils"
	"github.com/peakform/biometrics-service/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
}

func NewApp(infra Infrastructure, cfg *config.Config) *App {
	repos := repository.NewRepositories(infra.Postgres())

	sessionManager := utils.NewSessionManager(
		cfg.Session.Secret,
		cfg.Session.AccessTokenExpiry.Duration,
	)
	stateCodec := utils.NewStateCodec(cfg.Security.StateSecret, infra.Logger())

	garmin := provider.NewGarmin(cfg.Garmin)
	whoop := provider.NewWhoop(cfg.Whoop)
	oura := provider.NewOura(cfg.Oura)

	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	integrationService := service.NewIntegrationService(
		repos.Token,
		repos.Snapshot,
		garmin,
		[]provider.OAuth2Provider{whoop, oura},
		stateCodec,
		infra.Logger(),
	)
	webhookService := service.NewWebhookService(repos.Token, repos.Snapshot, infra.Logger())

	integrationHandler := handler.NewIntegrationHandler(integrationService, cfg.App.BaseURL, infra.Logger())
	webhookHandler := handler.NewWebhookHandler(webhookService, cfg.Webhook.SigningSecret, infra.Logger())

	router := gin.Default()
	router.Use(otelgin.Middleware("biometrics-service"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, integrationHandler, webhookHandler, sessionManager, rateLimiter, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
	}
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	integrationHandler *handler.IntegrationHandler,
	webhookHandler *handler.WebhookHandler,
	sessionManager *utils.SessionManager,
	rateLimiter *service.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	authRate := handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.IPBasedKey)
	authRequired := handler.AuthMiddleware(sessionManager)

	api := router.Group("/api/v1")
	{
		integrations := api.Group("/integrations")
		for _, name := range []string{domain.ProviderGarmin, domain.ProviderWhoop, domain.ProviderOura} {
			group := integrations.Group("/" + name)

			// Garmin initiation takes a caller-supplied userId; the OAuth2
			// providers require a verified session first.
			if name == domain.ProviderGarmin {
				group.GET("/auth", authRate, integrationHandler.Authorize(name))
			} else {
				group.GET("/auth", authRate, authRequired, integrationHandler.Authorize(name))
			}

			group.GET("/callback", integrationHandler.Callback(name))
			group.GET("/data", authRequired, integrationHandler.Data(name))
			group.POST("/disconnect", authRequired, integrationHandler.Disconnect(name))
		}

		api.POST("/webhooks/garmin", webhookHandler.GarminPush)
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
