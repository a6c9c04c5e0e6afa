package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lealcafe/ventas_backend/config"
	"github.com/lealcafe/ventas_backend/middlewares"
	"github.com/lealcafe/ventas_backend/models"
	"github.com/lealcafe/ventas_backend/utils"
	"github.com/lealcafe/ventas_backend/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// newSalesIngestion wires the orchestrator to the shared connections and feature flags.
func newSalesIngestion(logger *logrus.Logger) *workflow.SalesIngestion {
	w := &workflow.SalesIngestion{
		Periods:   config.LoadPeriodConfig(),
		Parser:    models.NewSalesParser(),
		Persister: models.GormPersister{DB: config.GetDB()},
		Logger:    logger,
	}
	if config.UploadLockEnabled() {
		w.Locker = workflow.RedisPeriodLocker{Client: config.GetRedisLock()}
	}
	if config.ArchiveUploadsEnabled() {
		w.Archive = utils.ArchiveWorkbook
	}
	if config.PublishSalesEventsEnabled() {
		w.Publish = config.PublishSalesIngested
	}
	return w
}

// correlationMiddleware generates one id per request and attaches it to the context.
func correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// registerRoutes mounts the API on r. ingestion is built lazily so that the DB handle
// is read after the dependencies are connected.
func registerRoutes(r *gin.Engine, ingestion func() *workflow.SalesIngestion) {
	r.POST("/login", loginHandler())
	r.POST("/logout", middlewares.RequireSession(), logoutHandler())

	api := r.Group("/api", middlewares.RequireSession())
	{
		api.GET("/ventas/dimensions", dimensionsHandler())
		api.POST("/ventas/upload", salesUploadHandler(ingestion))
		api.POST("/ventas/preview", salesPreviewHandler(ingestion))

		api.PUT("/metas", upsertMonthlyGoalHandler())
		api.GET("/metas", listMonthlyGoalsHandler())
		api.DELETE("/metas/:id", deleteMonthlyGoalHandler())
	}
	r.NoRoute(customNotFoundHandler)
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP; until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	r.MaxMultipartMemory = config.MaxUploadBytes()
	r.Use(correlationMiddleware())
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production require an explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length", "x-correlation-id")
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins

	r.Use(cors.New(corsConfig))

	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		r.Use(rateLimitMiddleware(limit, time.Duration(windowSec)*time.Second))
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(middlewares.LoaderMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())
	registerRoutes(r, func() *workflow.SalesIngestion { return newSalesIngestion(logger) })

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// DDL on startup can block the tables; allow running it as a separate job instead.
	if !config.SkipMigrations() {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping migrations on startup")
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"correlation_id": cid,
				"path":           c.FullPath(),
				"status":         c.Writer.Status(),
			}).Error(c.Errors.String())
		}
	}
}

// rateLimitMiddleware counts requests per client IP in the shared redis.
func rateLimitMiddleware(limit int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := config.GetRedisDB()
		if client == nil {
			c.Next()
			return
		}
		rl := &RateLimiter{client: client, limit: limit, window: window}
		rl.RateLimitMiddleware(c)
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := "ratelimit:" + c.ClientIP()

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count == 1 {
		if err := rl.client.Expire(c.Request.Context(), key, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
