package server

import (
	"net/http"
	"time"

	"backend/internal/config"
	"backend/internal/handler"
	"backend/internal/mailer"
	"backend/internal/middleware"
	"backend/internal/repository"
	"backend/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	logger *zap.Logger
}

func NewServer(db *sqlx.DB, cfg *config.Config, logger *zap.Logger, repoLog *logrus.Logger, mail mailer.Mailer) *Server {
	repo := repository.NewUserRepository(db, repoLog)
	return &Server{
		router: SetupRouter(repo, mail, cfg, logger),
		logger: logger,
	}
}

// SetupRouter wires the full HTTP surface around the given collaborators.
// Tests drive it directly with in-memory implementations.
func SetupRouter(repo repository.UserRepository, mail mailer.Mailer, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	router := gin.Default()

	// CORS runs before any auth middleware so preflight OPTIONS probes never
	// reach the authorization gate.
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	switch {
	case len(cfg.CORS.AllowedOrigins) > 0:
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
		corsConfig.AllowCredentials = true
	case cfg.Frontend.BaseURL != "":
		corsConfig.AllowOrigins = []string{cfg.Frontend.BaseURL}
		corsConfig.AllowCredentials = true
	default:
		// No origin configured at all, e.g. a hand-built config. Credentials
		// cannot be combined with a wildcard origin.
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	tokens := service.NewTokenService(cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.AccessTokenTTLSeconds)*time.Second,
		time.Duration(cfg.Auth.RefreshTokenTTLSeconds)*time.Second)
	authService := service.NewAuthService(repo, tokens, mail, logger,
		cfg.Frontend.BaseURL, cfg.Auth.MinPasswordLength, cfg.Auth.BcryptCost)
	userService := service.NewUserService(repo, mail, logger,
		cfg.Auth.MinPasswordLength, cfg.Auth.BcryptCost)

	authHandler := handler.NewAuthHandler(authService, logger)
	userHandler := handler.NewUserHandler(userService, authService, logger)

	// Ping route for health check
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/forgot-password", authHandler.ForgotPassword)
	authGroup.POST("/reset-password/:token", authHandler.ResetPassword)

	users := api.Group("/users")
	users.Use(middleware.RequireAuth(tokens, logger))
	users.PUT("/change-password", userHandler.ChangePassword)

	admin := users.Group("")
	admin.Use(middleware.RequireAdmin(repo, logger))
	{
		admin.GET("", userHandler.List)
		admin.POST("", userHandler.Create)
		admin.GET("/:id", userHandler.Get)
		admin.PUT("/:id", userHandler.Update)
		admin.DELETE("/:id", userHandler.Delete)
	}

	return router
}

func (s *Server) Run(addr string) {
	s.logger.Info("Server starting", zap.String("addr", addr))
	if err := s.router.Run(addr); err != nil {
		s.logger.Fatal("Server failed to start", zap.Error(err))
	}
}
