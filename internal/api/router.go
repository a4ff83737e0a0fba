// Package api はHTTPルーターとミドルウェアの配線を行います。
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourusername/blog-api/internal/auth"
	"github.com/yourusername/blog-api/internal/blog"
	"github.com/yourusername/blog-api/internal/config"
	"github.com/yourusername/blog-api/internal/logging"
)

const (
	serviceName    = "blog-api"
	serviceVersion = "0.1.0"
	welcomeMessage = "Welcome to the Blogging Platform API!!!!"
)

// Deps はルーターが必要とする依存関係です。
type Deps struct {
	Config   *config.Config
	Logger   *slog.Logger
	Auth     *auth.Manager
	Blog     *blog.Handler
	Gatherer prometheus.Gatherer
}

// NewRouter はミドルウェアとルートを登録した gin.Engine を返します。
func NewRouter(deps Deps) *gin.Engine {
	cfg := deps.Config

	router := gin.New()
	router.Use(logging.RequestLogger(deps.Logger), gin.Recovery())

	// セッションCookieにはトークンだけを載せる
	store := cookie.NewStore(cfg.CookieSecret())
	store.Options(auth.CookieOptions(cfg.SessionTTL(), isRelease(cfg)))
	router.Use(sessions.Sessions(cfg.SessionCookieName, store))

	router.Use(cors.New(corsConfig(cfg)))

	router.GET("/", handleWelcome)
	router.GET("/health", handleHealth)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	router.POST("/signup", deps.Auth.Signup)
	router.POST("/login", deps.Auth.Login)
	router.DELETE("/logout", deps.Auth.Logout)

	protected := router.Group("")
	protected.Use(deps.Auth.RequireLogin())
	deps.Blog.Register(protected)

	return router
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	origins := make([]string, 0)
	for _, origin := range strings.Split(cfg.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		// 許可オリジンが無い場合はクロスオリジンを一切許可しない
		corsCfg.AllowOriginFunc = func(string) bool { return false }
	} else {
		corsCfg.AllowOrigins = origins
	}
	corsCfg.AllowCredentials = true
	corsCfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", logging.RequestIDHeader}
	corsCfg.ExposeHeaders = []string{logging.RequestIDHeader}
	return corsCfg
}

func isRelease(cfg *config.Config) bool {
	return cfg.GinMode == gin.ReleaseMode
}

func handleWelcome(c *gin.Context) {
	c.String(http.StatusOK, welcomeMessage)
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
		"version": serviceVersion,
	})
}
