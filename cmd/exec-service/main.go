package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	commonmw "codeexec/internal/common/http/middleware"
	"codeexec/internal/executor"
	"codeexec/internal/executor/controller"
	"codeexec/internal/executor/observer"
	"codeexec/internal/executor/pool"
	"codeexec/internal/executor/process"
	"codeexec/internal/executor/sqlrun"
	"codeexec/internal/executor/sweeper"
	"codeexec/internal/executor/workspace"
	"codeexec/pkg/utils/logger"
	"codeexec/pkg/utils/response"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConfigPath = "configs/exec_service.yaml"
	defaultEnvPath    = ".env"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envPath := flag.String("env", defaultEnvPath, "Path to optional .env file")
	flag.Parse()

	if err := loadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}
	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	var metrics observer.MetricsRecorder = observer.NoopMetricsRecorder{}
	var registry *prometheus.Registry
	if appCfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder, err := observer.NewPrometheusRecorder(registry)
		if err != nil {
			logger.Error(context.Background(), "init metrics failed", zap.Error(err))
			return
		}
		metrics = recorder
	}

	table, err := appCfg.Language.languageTable()
	if err != nil {
		logger.Error(context.Background(), "init language table failed", zap.Error(err))
		return
	}
	ws, err := workspace.NewManager(appCfg.Workspace.Root)
	if err != nil {
		logger.Error(context.Background(), "init workspace failed", zap.Error(err))
		return
	}

	eng, err := executor.New(executor.Config{
		MaxCodeBytes:  appCfg.Limits.MaxCodeBytes,
		MaxInputBytes: appCfg.Limits.MaxInputBytes,
	}, executor.Deps{
		Languages: table,
		Workspace: ws,
		Runner: process.NewRunner(process.Config{
			OutputMaxBytes: appCfg.Limits.OutputMaxBytes,
			KillGrace:      appCfg.Limits.KillGrace,
		}),
		SQL:     sqlrun.New(sqlrun.Config{OutputMaxBytes: appCfg.Limits.OutputMaxBytes}),
		Pool:    pool.New(appCfg.Worker.PoolSize, appCfg.Worker.QueueSize, appCfg.Worker.QueueWait),
		Metrics: metrics,
	})
	if err != nil {
		logger.Error(context.Background(), "init execution engine failed", zap.Error(err))
		return
	}

	var sweep *sweeper.Sweeper
	if appCfg.Sweeper.IsEnabled() {
		sweep, err = sweeper.New(sweeper.Config{
			Root:      ws.Root(),
			Interval:  appCfg.Sweeper.Interval,
			Retention: appCfg.Sweeper.Retention,
		}, metrics)
		if err != nil {
			logger.Error(context.Background(), "init workspace sweeper failed", zap.Error(err))
			return
		}
	}

	httpServer := buildHTTPServer(appCfg, eng, registry)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	eg, ctx := errgroup.WithContext(rootCtx)

	eg.Go(func() error {
		logger.Info(ctx, "exec http server started", zap.String("addr", appCfg.Server.Addr))
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server stopped: %w", err)
		}
		return nil
	})
	if sweep != nil {
		eg.Go(func() error {
			sweep.Start(ctx)
			<-ctx.Done()
			sweep.Stop()
			return nil
		})
	}
	eg.Go(func() error {
		<-ctx.Done()
		logger.Info(context.Background(), "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		logger.Error(context.Background(), "exec service stopped", zap.Error(err))
		return
	}
	logger.Info(context.Background(), "exec service stopped")
}

func buildHTTPServer(cfg *AppConfig, eng *executor.Engine, registry *prometheus.Registry) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())
	if cfg.CORS.Enabled {
		router.Use(cors.New(buildCORSConfig(cfg.CORS)))
	}
	router.Use(commonmw.BodyLimitMiddleware(cfg.Server.MaxBodyBytes))
	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "Route not found")
	})

	controller.NewExecuteController(eng).Register(router)
	if registry != nil {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	}

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

// buildCORSConfig maps the service config onto gin-contrib/cors. An empty or
// "*" origin list allows every origin.
func buildCORSConfig(cfg CORSConfig) cors.Config {
	out := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*") {
		out.AllowAllOrigins = true
		out.AllowOrigins = nil
	} else {
		out.AllowOrigins = cfg.AllowedOrigins
	}
	if len(cfg.AllowedMethods) > 0 {
		out.AllowMethods = cfg.AllowedMethods
	}
	out.AddAllowHeaders("X-Trace-Id", "X-Request-Id")
	if len(cfg.AllowedHeaders) > 0 {
		out.AddAllowHeaders(cfg.AllowedHeaders...)
	}
	out.ExposeHeaders = append([]string{"X-Trace-Id", "X-Request-Id"}, cfg.ExposedHeaders...)
	out.AllowCredentials = cfg.AllowCredentials && !out.AllowAllOrigins
	if cfg.MaxAge > 0 {
		out.MaxAge = cfg.MaxAge
	}
	return out
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
