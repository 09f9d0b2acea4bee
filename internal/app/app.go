package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"microboard/internal/config"
	"microboard/internal/database"
	"microboard/internal/handler"
	"microboard/internal/middleware"
	"microboard/internal/remote"
	"microboard/internal/repository"
	"microboard/internal/router"
	"microboard/internal/service"
	"microboard/internal/token"
)

type App struct {
	cfg          *config.Config
	server       *http.Server
	cleanupFuncs []func()
}

// New wires the service named by cfg.Service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	switch cfg.Service {
	case config.ServiceAuth:
		return newAuth(ctx, cfg)
	case config.ServicePost:
		return newPost(ctx, cfg)
	case config.ServiceComment:
		return newComment(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown service %q", cfg.Service)
	}
}

func newAuth(ctx context.Context, cfg *config.Config) (*App, error) {
	issuer, err := token.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	a := &App{cfg: cfg}
	var users service.UserStore = repository.NewMemoryUserStore()
	var health *handler.HealthHandler

	if cfg.StoreDriver == config.StorePostgres {
		db, err := a.openDatabase(ctx, database.AuthSchema)
		if err != nil {
			return nil, err
		}
		users = repository.NewUserRepository(db.Pool)
		health = handler.NewHealthHandler(string(cfg.Service), db)
	} else {
		health = handler.NewHealthHandler(string(cfg.Service), nil)
	}

	authService := service.NewAuthService(users, issuer, cfg.BcryptCost)
	a.server = a.newServer(router.NewAuth(
		cfg,
		middleware.NewAuthMiddleware(authService),
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(authService),
		health,
	))
	return a, nil
}

func newPost(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}
	var posts service.PostStore = repository.NewMemoryPostStore()
	var health *handler.HealthHandler

	if cfg.StoreDriver == config.StorePostgres {
		db, err := a.openDatabase(ctx, database.PostSchema)
		if err != nil {
			return nil, err
		}
		posts = repository.NewPostRepository(db.Pool)
		health = handler.NewHealthHandler(string(cfg.Service), db)
	} else {
		health = handler.NewHealthHandler(string(cfg.Service), nil)
	}

	authClient := remote.NewAuthClient(cfg.AuthServiceURL, cfg.RemoteTimeout)
	postService := service.NewPostService(posts, authClient, cfg.MaxPageSize)
	a.server = a.newServer(router.NewPost(
		cfg,
		middleware.NewRemoteAuth(authClient),
		handler.NewPostHandler(postService),
		health,
	))
	return a, nil
}

func newComment(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}
	var comments service.CommentStore = repository.NewMemoryCommentStore()
	var health *handler.HealthHandler

	if cfg.StoreDriver == config.StorePostgres {
		db, err := a.openDatabase(ctx, database.CommentSchema)
		if err != nil {
			return nil, err
		}
		comments = repository.NewCommentRepository(db.Pool)
		health = handler.NewHealthHandler(string(cfg.Service), db)
	} else {
		health = handler.NewHealthHandler(string(cfg.Service), nil)
	}

	authClient := remote.NewAuthClient(cfg.AuthServiceURL, cfg.RemoteTimeout)
	commentService := service.NewCommentService(
		comments,
		authClient,
		remote.NewPostClient(cfg.PostServiceURL, cfg.RemoteTimeout),
	)
	a.server = a.newServer(router.NewComment(
		cfg,
		middleware.NewRemoteAuth(authClient),
		handler.NewCommentHandler(commentService),
		health,
	))
	return a, nil
}

func (a *App) openDatabase(ctx context.Context, schema database.Schema) (*database.DB, error) {
	slog.Info("connecting to PostgreSQL", "service", a.cfg.Service)
	db, err := database.New(ctx, a.cfg.DatabaseURL, a.cfg.DBMaxConns, a.cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	a.cleanupFuncs = append(a.cleanupFuncs, db.Close)
	slog.Info("database ready", "schema", schema.Name)
	return db, nil
}

func (a *App) newServer(h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + a.cfg.ServerPort,
		Handler:           h,
		ReadHeaderTimeout: a.cfg.ServerReadHeaderTimeout,
		WriteTimeout:      a.cfg.ServerWriteTimeout,
		IdleTimeout:       a.cfg.ServerIdleTimeout,
	}
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "service", a.cfg.Service, "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		a.cleanup()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	a.cleanup()
	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped", "service", a.cfg.Service)
	return nil
}

func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
}
