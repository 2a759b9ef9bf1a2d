package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"vantage/internal/config"
	"vantage/internal/middleware"
	"vantage/internal/server"
	"vantage/internal/store"
	"vantage/internal/utils"
	"vantage/internal/version"
)

const (
	envPort   = "VANTAGE_PORT"
	envDBPath = "VANTAGE_DB"
	envLog    = "VANTAGE_LOG"
)

func main() {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	cfgPath := config.Path()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	dbPath := os.Getenv(envDBPath)
	if dbPath == "" {
		dbPath = config.DefaultDBFile
	}
	db, err := store.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("database open failed: %v", err)
	}
	defer db.Close()

	logger := utils.NewLogger(os.Getenv(envLog))
	defer logger.Close()

	state := server.NewAppState(cfg, cfgPath, store.NewTimeSeriesStore(db), logger)
	rateLimiter := middleware.NewRateLimiter(rate.Every(time.Minute/300), 30)

	stopJobs := make(chan struct{})
	go runRetentionJobs(state, logger, stopJobs)

	r := setupRouter(state, rateLimiter)

	port := 8080
	if v := os.Getenv(envPort); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			port = parsed
		}
	}

	srv := &http.Server{
		Addr:           ":" + strconv.Itoa(port),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Starting vantage %s on port %d", version.String(), port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	close(stopJobs)
	rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

// runRetentionJobs drives the rollup and eviction operations on their own
// schedule, fully decoupled from ingestion.
func runRetentionJobs(state *server.AppState, logger *utils.Logger, stop <-chan struct{}) {
	hourly := time.NewTicker(time.Hour)
	daily := time.NewTicker(24 * time.Hour)
	evict := time.NewTicker(time.Hour)
	defer hourly.Stop()
	defer daily.Stop()
	defer evict.Stop()

	for {
		select {
		case now := <-hourly.C:
			if err := state.Store.RollupHourly(now); err != nil {
				logger.Writef("hourly rollup: %v", err)
			}
		case now := <-daily.C:
			if err := state.Store.RollupDaily(now); err != nil {
				logger.Writef("daily rollup: %v", err)
			}
		case <-evict.C:
			if err := state.Store.Evict(); err != nil {
				logger.Writef("evict: %v", err)
			}
		case <-stop:
			return
		}
	}
}

func setupRouter(state *server.AppState, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))

	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(rateLimiter.Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.String()})
	})

	r.POST("/api/login", state.APILogin)

	api := r.Group("/api")
	api.Use(state.Auth.RequireAPIAuth())
	{
		api.GET("/stats", state.APIStats)
		api.GET("/servers", state.APIServers)
		api.POST("/servers", state.APIServerCreate)
		api.DELETE("/servers/:server_id", state.APIServerDelete)
		api.GET("/servers/:server_id/latest", state.APIServerLatest)
		api.GET("/servers/:server_id/history", state.APIServerHistory)
		api.POST("/servers/:server_id/ping-targets", state.APISetPingTargets)
	}

	// WebSocket endpoints: agents push snapshots, viewers receive the feed.
	r.GET("/ws/agent", state.HandleAgentWS)
	r.GET("/ws", state.HandleViewerWS)

	return r
}
