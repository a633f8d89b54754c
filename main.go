package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/princinho/postboard/auth"
	"github.com/princinho/postboard/config"
	"github.com/princinho/postboard/database"
	"github.com/princinho/postboard/logging"
	"github.com/princinho/postboard/metrics"
	"github.com/princinho/postboard/middleware"
	"github.com/princinho/postboard/models"
	"github.com/princinho/postboard/repository"
	"github.com/princinho/postboard/routes"
	"github.com/princinho/postboard/storage"
	"github.com/princinho/postboard/utils"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		// logger config depends on cfg, so this is the one plain write to stderr
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logging.New(cfg.IsDevelopment())
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	key, fallback, err := cfg.SigningKey()
	if err != nil {
		return err
	}
	if fallback {
		log.Warn("JWT_SECRET is not set, using the development signing key")
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     key,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}
	hasher := utils.NewBcryptHasher(cfg.BcryptCost)

	deps := routes.Deps{Hasher: hasher}
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using the in-memory store, data is lost on restart")
		deps.Users = repository.NewMemoryUserRepository()
		deps.Posts = repository.NewMemoryRepository[models.Post]()
		deps.Comments = repository.NewMemoryRepository[models.Comment]()
	case "mongo":
		client, err := database.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		log.Info("connected to MongoDB", zap.String("database", cfg.DatabaseName))

		db := client.Database(cfg.DatabaseName)
		if err := database.EnsureIndexes(ctx, db); err != nil {
			return err
		}
		deps.Users = repository.NewMongoUserRepository(database.OpenCollection(client, cfg.DatabaseName, database.UsersCollection))
		deps.Posts = repository.NewMongoRepository[models.Post](database.OpenCollection(client, cfg.DatabaseName, database.PostsCollection))
		deps.Comments = repository.NewMongoRepository[models.Comment](database.OpenCollection(client, cfg.DatabaseName, database.CommentsCollection))
		deps.Ping = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
	default:
		return errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
	}

	deps.Sessions, err = auth.NewSessionService(deps.Users, tokens, hasher, log)
	if err != nil {
		return err
	}

	deps.Store, err = storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if deps.Store == nil {
		log.Info("object storage disabled, image uploads answer 503")
	}
	defer closeStore(deps.Store, log)
	deps.Validator = utils.NewFileValidator(cfg.Storage.AllowedExtensions, cfg.Storage.AllowedMimeTypes, cfg.Storage.MaxUploadSizeMB)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(corsMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recovery(log))
	r.Use(metrics.Middleware())
	r.MaxMultipartMemory = int64(cfg.Storage.MaxUploadSizeMB) << 20
	routes.Register(r, deps)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// closeStore releases the object store client when the backend holds one.
func closeStore(store storage.ObjectStore, log *zap.Logger) {
	closer, ok := store.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		log.Warn("closing object storage", zap.Error(err))
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowedOrigins := map[string]bool{}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return allowedOrigins[origin]
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
