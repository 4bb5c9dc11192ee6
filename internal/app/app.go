package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"newsletter-go/internal/config"
	"newsletter-go/internal/handlers"
	"newsletter-go/internal/logging"
	"newsletter-go/internal/middleware"
	"newsletter-go/internal/ratelimit"
	"newsletter-go/internal/repository"
	"newsletter-go/internal/service"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	GitSHA         string
	Port           string
	Logger         *logging.ContextLogger
	TracerProvider trace.TracerProvider
	GinMode        string
	AllowedOrigins []string
	TrustedProxies []string // nil: ClientIP is the socket peer, forwarding headers ignored
	BodyLimit      int64
	RateLimit      config.RateLimitConfig
	Repository     repository.SubscriberRepository // Allow injecting any repository implementation
}

type Application struct {
	server  *http.Server
	config  *Config
	router  *gin.Engine
	repo    repository.SubscriberRepository
	limiter *ratelimit.FixedWindow
	service *service.SubscriberService
}

func Build(config *Config) *Application {
	if config.GinMode != "" {
		gin.SetMode(config.GinMode)
	}

	// Use injected repository or fall back to in-memory
	var repo repository.SubscriberRepository
	if config.Repository != nil {
		repo = config.Repository
	} else {
		repo = repository.NewInMemorySubscriberRepository()
	}

	subscriberService := service.NewSubscriberService(repo, config.Logger)
	subscriberHandler := handlers.NewSubscriberHandler(subscriberService, config.Logger)
	systemHandler := handlers.NewSystemHandler(subscriberService, handlers.BuildInfo{
		ServiceName: config.ServiceName,
		Version:     config.ServiceVersion,
		SHA:         config.GitSHA,
	}, config.Logger)

	router := gin.New()
	if err := router.SetTrustedProxies(config.TrustedProxies); err != nil {
		config.Logger.WithError(err).Warn("Invalid trusted proxies, forwarding headers ignored")
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(middleware.Recovery(config.Logger))
	var otelOpts []otelgin.Option
	if config.TracerProvider != nil {
		otelOpts = append(otelOpts, otelgin.WithTracerProvider(config.TracerProvider))
	}
	router.Use(otelgin.Middleware(config.ServiceName, otelOpts...))
	router.Use(middleware.RequestLogger(config.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(config.AllowedOrigins))
	if config.BodyLimit > 0 {
		router.Use(middleware.BodyLimit(config.BodyLimit))
	}

	var limiter *ratelimit.FixedWindow
	if config.RateLimit.Enabled {
		limiter = ratelimit.NewFixedWindow(config.RateLimit.Max, config.RateLimit.Window)
		limiter.StartSweeper(config.RateLimit.Window)
		router.Use(middleware.RateLimit(limiter, config.Logger))
	}

	router.GET("/", systemHandler.Root)
	router.GET("/health", systemHandler.Health)
	router.GET("/db-ping", systemHandler.DBPing)

	api := router.Group("/api/v1")
	{
		api.GET("/db-ping", systemHandler.DBPing)
		api.POST("/subscribe", subscriberHandler.Subscribe)

		subscribers := api.Group("/subscribers")
		{
			subscribers.GET("", subscriberHandler.ListSubscribers)
			subscribers.GET("/count", subscriberHandler.CountSubscribers)
		}
	}

	router.NoRoute(handlers.NotFound)

	server := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		server:  server,
		config:  config,
		router:  router,
		repo:    repo,
		limiter: limiter,
		service: subscriberService,
	}
}

func (app *Application) Run() error {
	app.config.Logger.Info("Starting server on :" + app.config.Port)
	if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// for as long as ctx allows.
func (app *Application) Shutdown(ctx context.Context) error {
	app.config.Logger.Info("Shutting down server...")
	err := app.server.Shutdown(ctx)
	if app.limiter != nil {
		app.limiter.Close()
	}
	return err
}

func (app *Application) GetRepo() repository.SubscriberRepository {
	return app.repo
}

func (app *Application) GetService() *service.SubscriberService {
	return app.service
}

func (app *Application) GetRouter() *gin.Engine {
	return app.router
}
