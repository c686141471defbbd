package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/aggregate"
	"github.com/ivaspavlo/staff-management-system/internal/config"
	miniodb "github.com/ivaspavlo/staff-management-system/internal/database/minio"
	mongodb "github.com/ivaspavlo/staff-management-system/internal/database/mongo"
	redisdb "github.com/ivaspavlo/staff-management-system/internal/database/redis"
	"github.com/ivaspavlo/staff-management-system/internal/docs"
	"github.com/ivaspavlo/staff-management-system/internal/event"
	"github.com/ivaspavlo/staff-management-system/internal/handlers"
	"github.com/ivaspavlo/staff-management-system/internal/logger"
	"github.com/ivaspavlo/staff-management-system/internal/middleware"
	"github.com/ivaspavlo/staff-management-system/internal/repository"
	"github.com/ivaspavlo/staff-management-system/internal/schema"
	"github.com/ivaspavlo/staff-management-system/internal/services"
	"github.com/ivaspavlo/staff-management-system/internal/skilltree"
	"github.com/ivaspavlo/staff-management-system/internal/socket"
	"github.com/ivaspavlo/staff-management-system/internal/validation"
	"github.com/ivaspavlo/staff-management-system/pkg/discovery"
)

const apiVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, closeLog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()

	if err := run(cfg, logg); err != nil {
		logg.Error("Service stopped with error", zap.Error(err))
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *zap.Logger) error {
	ctx := context.Background()

	mongoClient, err := mongodb.Connect(ctx, cfg.MongoDB, logg)
	if err != nil {
		return err
	}
	defer mongodb.Disconnect(mongoClient, logg)
	database := mongoClient.Database(cfg.MongoDB.Database)

	redisClient := redisdb.Connect(ctx, cfg.Redis, logg)
	defer func() {
		if err := redisdb.Close(redisClient); err != nil {
			logg.Error("Error closing Redis", zap.Error(err))
		}
	}()

	minioClient, err := miniodb.Connect(ctx, cfg.MinIO, logg)
	if err != nil {
		return err
	}

	eventPublisher, err := event.NewEventPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := eventPublisher.Close(); err != nil {
			logg.Error("Error closing event publisher", zap.Error(err))
		}
	}()

	var hub *socket.Hub
	var events event.Sink = eventPublisher
	if cfg.Socket.Enabled {
		hub = socket.NewHub(func(origin string) bool {
			if origin == "" {
				return true
			}
			_, ok := cfg.Auth.ServiceForOrigin(origin)
			return ok
		}, logg)
		events = event.Fanout{eventPublisher, hub}
	}

	registry := schema.Default()
	store := repository.NewMongoStore(database, registry, logg).WithObserver(middleware.StoreObserver{})
	if err := store.InitializeIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	deps := services.Deps{
		Registry:  registry,
		Store:     store,
		Composer:  aggregate.NewComposer(),
		Validator: validation.New(cfg.Company.EmailDomain),
		Events:    events,
		Log:       logg,
	}

	processLog := repository.NewDbProcessRepository(database, "dbprocesses")
	if err := processLog.InitializeIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create db process indexes: %w", err)
	}
	if cfg.DbProcess.RunOnStart {
		done, err := services.NewDbProcessRunner(store, processLog, logg, services.DefaultSteps()...).Run(ctx)
		if err != nil {
			return err
		}
		logg.Info("Db processes finished", zap.Strings("done", done))
	}

	entityServices, err := buildEntityServices(cfg, deps)
	if err != nil {
		return err
	}

	sessions := repository.NewSessionRepository(redisClient)
	tokens := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Redis.SessionTTL)
	authService := services.NewAuthService(deps, services.NewGoogleOAuth(cfg.Google), sessions, tokens,
		cfg.Company.EmailDomain, cfg.Redis.SessionTTL)
	profileService := services.NewProfileService(deps, entityServices.EmployeeSkills)
	constantsService := services.NewConstantsService(deps, repository.NewCacheRepository(redisClient), cfg.Redis.ConstantsCacheTTL)
	fileService := services.NewFileService(minioClient, cfg.MinIO.Bucket, cfg.MinIO.PublicURL, logg)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: middleware.ErrorHandler(logg),
	})
	app.Use(middleware.Metrics())
	app.Use(func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logg.Debug("Request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Duration("took", time.Since(start)),
		)
		return err
	})
	app.Use(middleware.Session(authService, cfg.Auth.CookieName, logg))

	policies := middleware.NewPolicies(cfg.Auth)

	handlers.NewSystemHandler(map[string]handlers.HealthCheck{
		"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}, docs.Build(registry, handlers.DocMounts(), "Staff Management API", apiVersion)).RegisterRoutes(app)

	handlers.NewAuthHandler(authService, policies, handlers.CookieSettings{
		Name:   cfg.Auth.CookieName,
		TTL:    cfg.Redis.SessionTTL,
		Secure: cfg.Log.Env == "production",
	}, logg).RegisterRoutes(app)
	handlers.NewProfileHandler(profileService, policies).RegisterRoutes(app)
	handlers.NewConstantsHandler(constantsService, policies).RegisterRoutes(app)
	handlers.NewFileHandler(fileService, policies, logg).RegisterRoutes(app)

	entityHandlers, err := handlers.NewEntityHandlers(entityServices, policies)
	if err != nil {
		return err
	}
	for _, h := range entityHandlers {
		h.RegisterRoutes(app)
	}

	var registryClient *discovery.ServiceRegistry
	if cfg.Consul.Enabled {
		registryClient, err = discovery.NewServiceRegistry(cfg.Consul, cfg.Server, logg)
		if err != nil {
			return err
		}
		if err := registryClient.Register(); err != nil {
			logg.Warn("Service discovery registration failed", zap.Error(err))
		}
	}

	shutdownChan := make(chan os.Signal, 1)
	errChan := make(chan error, 2)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	var socketServer *http.Server
	if hub != nil {
		if cfg.Socket.REST {
			hub.EnableREST(func(r *http.Request) (*http.Response, error) {
				return app.Test(r, fiber.TestConfig{Timeout: cfg.Server.WriteTimeout, FailOnTimeout: true})
			})
		}
		mux := http.NewServeMux()
		mux.Handle(cfg.Socket.Path, hub)
		socketServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Socket.Port),
			Handler:           mux,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
		}
		go func() {
			logg.Info("Starting socket server", zap.String("addr", socketServer.Addr), zap.Bool("rest", cfg.Socket.REST))
			if err := socketServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("socket server: %w", err)
			}
		}()
	}

	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		logg.Info("Starting server", zap.String("addr", addr))
		errChan <- app.Listen(addr)
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("error starting server: %w", err)
	case <-shutdownChan:
	}
	logg.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if socketServer != nil {
		hub.Close()
		if err := socketServer.Shutdown(shutdownCtx); err != nil {
			logg.Error("Error shutting down socket server", zap.Error(err))
		}
	}

	if registryClient != nil {
		if err := registryClient.Deregister(); err != nil {
			logg.Error("Error deregistering from service discovery", zap.Error(err))
		}
	}
	logg.Info("Server shutdown complete")
	return nil
}

func buildEntityServices(cfg *config.Config, deps services.Deps) (handlers.EntityServices, error) {
	employeeSkills, err := services.NewEmployeeSkillService(deps, skilltree.Options{
		DedupeRootsByName:  cfg.SkillTree.DedupeRootsByName,
		MergeParentsByName: cfg.SkillTree.MergeParentsByName,
		RateRoots:          cfg.SkillTree.RateRoots,
	})
	if err != nil {
		return handlers.EntityServices{}, err
	}
	employeeProjects, err := services.NewEmployeeProjectService(deps, employeeSkills)
	if err != nil {
		return handlers.EntityServices{}, err
	}

	resources := make(map[string]*services.ResourceService)
	for _, ep := range handlers.EntityPaths {
		switch ep.Entity {
		case schema.EntityEmployeeSkill, schema.EntityEmployeeProject:
			continue
		}
		s, err := services.NewResourceService(ep.Entity, deps)
		if err != nil {
			return handlers.EntityServices{}, err
		}
		resources[ep.Entity] = s
	}

	return handlers.EntityServices{
		Resources:        resources,
		EmployeeSkills:   employeeSkills,
		EmployeeProjects: employeeProjects,
		Jira:             services.NewJiraService(cfg.Jira, deps.Log),
	}, nil
}
