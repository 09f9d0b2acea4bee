package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"microboard/internal/config"
	"microboard/internal/handler"
	"microboard/internal/middleware"
)

// base mounts the middleware and health route shared by every service.
func base(cfg *config.Config, health *handler.HealthHandler) chi.Router {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, cfg.TrustedProxies...)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", health.Check)
	return r
}

func NewAuth(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	health *handler.HealthHandler,
) http.Handler {
	r := base(cfg, health)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/signup", authHandler.Signup)
			auth.Post("/signin", authHandler.Signin)
			auth.Post("/verify", authHandler.Verify)
			auth.With(authMiddleware.RequireAuth).Get("/profile", authHandler.Profile)
		})

		api.Route("/users", func(users chi.Router) {
			users.Post("/bulk", userHandler.Bulk)
			users.Get("/{id}", userHandler.Get)
		})
	})

	return r
}

func NewPost(
	cfg *config.Config,
	remoteAuth *middleware.RemoteAuth,
	postHandler *handler.PostHandler,
	health *handler.HealthHandler,
) http.Handler {
	r := base(cfg, health)

	r.Route("/api/v1/posts", func(posts chi.Router) {
		posts.Use(middleware.Timeout(cfg.RequestTimeout))

		posts.Get("/", postHandler.List)
		posts.With(remoteAuth.OptionalAuth).Get("/{id}", postHandler.Get)
		posts.With(remoteAuth.RequireAuth).Post("/", postHandler.Create)
		posts.With(remoteAuth.RequireAuth).Put("/{id}", postHandler.Update)
		posts.With(remoteAuth.RequireAuth).Delete("/{id}", postHandler.Delete)
	})

	return r
}

func NewComment(
	cfg *config.Config,
	remoteAuth *middleware.RemoteAuth,
	commentHandler *handler.CommentHandler,
	health *handler.HealthHandler,
) http.Handler {
	r := base(cfg, health)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Get("/posts/{postId}/comments", commentHandler.ListByPost)
		api.With(remoteAuth.RequireAuth).Post("/posts/{postId}/comments", commentHandler.Create)
		api.With(remoteAuth.RequireAuth).Put("/comments/{id}", commentHandler.Update)
		api.With(remoteAuth.RequireAuth).Delete("/comments/{id}", commentHandler.Delete)
	})

	return r
}
