package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/notekeeper/notekeeper/handlers"
	"github.com/notekeeper/notekeeper/internal/config"
	"github.com/notekeeper/notekeeper/internal/database"
	"github.com/notekeeper/notekeeper/internal/events"
	"github.com/notekeeper/notekeeper/internal/export"
	"github.com/notekeeper/notekeeper/internal/oidc"
	"github.com/notekeeper/notekeeper/internal/notes/handler"
	"github.com/notekeeper/notekeeper/internal/notes/repository"
	"github.com/notekeeper/notekeeper/internal/notes/service"
	"github.com/notekeeper/notekeeper/internal/sessions"
	"github.com/notekeeper/notekeeper/internal/storage"
	"github.com/notekeeper/notekeeper/internal/tokens"
	"github.com/notekeeper/notekeeper/internal/users"
	"github.com/notekeeper/notekeeper/pkg/logger"
	"github.com/notekeeper/notekeeper/pkg/metrics"
	"github.com/notekeeper/notekeeper/pkg/middleware"
)

var startTime = time.Now()

// backends holds the optional connections; nil means not configured or unreachable.
type backends struct {
	redis    *redis.Client
	mongo    *mongo.Client
	postgres *pgxpool.Pool
	blobs    *storage.MinIOStorage
}

func (b *backends) close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.mongo != nil {
		_ = b.mongo.Disconnect(context.Background())
	}
	if b.postgres != nil {
		b.postgres.Close()
	}
}

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: store=%s keycloak=%v mongo=%v postgres=%v redis=%v kafka=%v minio=%v",
		cfg.Notes.Store, cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Postgres.DSN != "",
		cfg.Redis.Addr() != "", len(cfg.Kafka.Brokers) > 0, cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := connect(ctx, cfg)
	defer b.close()

	noteRepo, err := noteRepository(ctx, cfg, b)
	if err != nil {
		logger.Fatalf("note store: %v", err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = kp.Close() }()
		publisher = kp
		logger.Infof("publishing note events to kafka topic %s", cfg.Kafka.Topic)
	}
	notesSvc := service.New(noteRepo, service.WithPublisher(publisher))

	userSvc, sessionsSvc := accountServices(ctx, cfg, b)
	verifiers, idTokens := tokenVerifiers(ctx, cfg)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(cors(), gin.Logger(), gin.Recovery())
	r.Use(middleware.Authenticate(middleware.AuthConfig{
		Sessions:   sessionsSvc,
		CookieName: cfg.Session.CookieName,
		Verifiers:  verifiers,
	}))
	// after Authenticate so authenticated callers are limited per subject
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && b.redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(b.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", readiness(cfg, b))

	var opts []handler.Option
	if b.blobs != nil {
		opts = append(opts, handler.WithExporter(export.NewService(notesSvc, b.blobs, cfg.MinIO.ExportTTL)))
	}
	handler.New(notesSvc, cfg.Notes.LoginPath, opts...).Register(r)
	handlers.NewAuthHandler(cfg, userSvc, sessionsSvc, idTokens).Register(r)
	handlers.RegisterSwagger(r, cfg.Notes.LoginPath)

	api := r.Group("/api/v1")
	api.GET("/me", middleware.RequireAuth(), func(c *gin.Context) {
		actor := middleware.ActorFrom(c)
		if claims, ok := c.Get(middleware.ClaimsKey); ok {
			if cm, ok := claims.(map[string]interface{}); ok {
				if u, err := userSvc.UpsertFromClaims(c.Request.Context(), cm); err == nil && u != nil {
					c.JSON(http.StatusOK, gin.H{"user": u})
					return
				}
			}
		}
		if u, err := userSvc.GetBySub(c.Request.Context(), actor.ID); err == nil && u != nil {
			c.JSON(http.StatusOK, gin.H{"user": u})
			return
		}
		c.JSON(http.StatusOK, gin.H{"actor": actor})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("notekeeper listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown: %v", err)
	}
}

// cors is a permissive dev policy: common headers plus a short-circuit for OPTIONS.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// connect opens whatever backends are configured. Only the note store is
// mandatory and noteRepository fails on it; the rest degrade with a warning.
func connect(ctx context.Context, cfg *config.Config) *backends {
	b := &backends{}
	if addr := cfg.Redis.Addr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
			_ = client.Close()
		} else {
			b.redis = client
			sessions.SetBlacklistClient(client)
			logger.Infof("connected to Redis: %s", addr)
		}
	}
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Warnf("could not connect to MongoDB: %v", err)
		} else {
			b.mongo = client
		}
	}
	if cfg.Postgres.DSN != "" {
		pool, err := database.ConnectPostgres(ctx, cfg.Postgres.DSN, 10*time.Second)
		if err != nil {
			logger.Warnf("could not connect to Postgres: %v", err)
		} else {
			b.postgres = pool
		}
	}
	if cfg.MinIO.Endpoint != "" {
		s, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("object storage unavailable, export disabled: %v", err)
		} else {
			b.blobs = s
		}
	}
	return b
}

func noteRepository(ctx context.Context, cfg *config.Config, b *backends) (repository.Repository, error) {
	switch cfg.Notes.Store {
	case config.StoreMongo:
		if b.mongo == nil {
			return nil, errors.New("mongo store selected but MongoDB is unreachable")
		}
		repo := repository.NewMongoRepo(b.mongo.Database(cfg.MongoDB.Database))
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure note indexes: %w", err)
		}
		logger.Info("notes stored in MongoDB")
		return repo, nil
	case config.StorePostgres:
		if b.postgres == nil {
			return nil, errors.New("postgres store selected but Postgres is unreachable")
		}
		repo := repository.NewPostgresRepo(b.postgres)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure note schema: %w", err)
		}
		logger.Info("notes stored in Postgres")
		return repo, nil
	}
	logger.Warn("notes stored in memory; data is lost on restart")
	return repository.NewMemoryRepo(), nil
}

// accountServices prefers Redis for sessions and Mongo for users, falling
// back to in-memory stores.
func accountServices(ctx context.Context, cfg *config.Config, b *backends) (*users.Service, *sessions.Service) {
	var (
		userRepo    users.UserRepository = users.NewMemoryUserRepository()
		sessionRepo sessions.Repository
	)
	if b.mongo != nil {
		db := b.mongo.Database(cfg.MongoDB.Database)
		mu := users.NewMongoUserRepository(db.Collection("users"))
		if err := mu.EnsureIndexes(ctx); err != nil {
			logger.Warnf("ensure user indexes: %v", err)
		}
		userRepo = mu
		if b.redis == nil {
			ms := sessions.NewMongoRepository(db.Collection("sessions"))
			if err := ms.EnsureIndexes(ctx); err != nil {
				logger.Warnf("ensure session indexes: %v", err)
			}
			sessionRepo = ms
		}
	}
	if b.redis != nil {
		sessionRepo = sessions.NewRedisRepository(b.redis, "")
	}
	if sessionRepo == nil {
		sessionRepo = sessions.NewMemoryRepository()
	}
	return users.NewService(userRepo), sessions.NewService(sessionRepo)
}

// tokenVerifiers returns the bearer verifiers in trial order, and the
// verifier used for Keycloak ID tokens at login.
func tokenVerifiers(ctx context.Context, cfg *config.Config) ([]middleware.Verifier, middleware.Verifier) {
	var (
		verifiers []middleware.Verifier
		idTokens  middleware.Verifier
	)
	if cfg.JWT.Secret != "" {
		verifiers = append(verifiers, tokens.NewVerifier(cfg.JWT.Secret))
	}
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.Keycloak)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			idTokens = ver
		}
	}
	// integration mode only: claims are read without checking signatures
	if idTokens == nil && strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
		if cfg.Server.Environment == "production" {
			logger.Warn("ALLOW_INSECURE_TOKEN ignored in production")
		} else {
			logger.Warn("enabling insecure OIDC verifier (integration mode)")
			idTokens = oidc.NewInsecureVerifier()
		}
	}
	if idTokens != nil {
		verifiers = append(verifiers, idTokens)
	}
	return verifiers, idTokens
}

// readiness reports 200 only when the configured dependencies respond.
func readiness(cfg *config.Config, b *backends) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps := map[string]bool{}
		if b.mongo != nil {
			deps["mongo"] = b.mongo.Ping(ctx, nil) == nil
		} else if cfg.MongoDB.URI != "" {
			deps["mongo"] = false
		}
		if b.postgres != nil {
			deps["postgres"] = b.postgres.Ping(ctx) == nil
		} else if cfg.Postgres.DSN != "" {
			deps["postgres"] = false
		}
		if b.redis != nil {
			deps["redis"] = b.redis.Ping(ctx).Err() == nil
		} else if cfg.Redis.Addr() != "" {
			deps["redis"] = false
		}
		if b.blobs != nil {
			deps["minio"] = b.blobs.Ping(ctx) == nil
		}
		ready := true
		for _, ok := range deps {
			ready = ready && ok
		}
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	}
}
