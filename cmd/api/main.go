package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/goalnews/internal/api"
	"github.com/LJTian/goalnews/internal/config"
	"github.com/LJTian/goalnews/internal/logger"
	"github.com/LJTian/goalnews/internal/pipeline"
	"github.com/LJTian/goalnews/internal/scheduler"
	"github.com/LJTian/goalnews/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("load config failed")
	}
	if err := logger.Init(cfg.LogConfig()); err != nil {
		logger.Get().Warn().Err(err).Msg("init logger")
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, cleanup, err := pipeline.NewFromConfig(ctx, cfg, pipeline.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("init pipeline failed")
	}
	defer cleanup()

	s, err := scheduler.New(cfg.CronSpec, p, cfg.RunTimeout)
	if err != nil {
		log.Fatal().Err(err).Str("cron", cfg.CronSpec).Msg("init scheduler failed")
	}
	s.Start()
	defer s.Stop()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(cfg.OutputPath, s, cfg.CronSecret)
	apiServer.RegisterRoutes(r)
	r.StaticFile("/"+snapshot.PublishFileName, cfg.OutputPath)

	// 若配置了前端目录，则托管静态页面并做 fallback
	if cfg.WebRoot != "" {
		indexFile := filepath.Join(cfg.WebRoot, "index.html")
		r.Static("/assets", filepath.Join(cfg.WebRoot, "assets"))
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet {
				c.Status(http.StatusNotFound)
				return
			}
			c.File(indexFile)
		})
	}

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Str("addr", srv.Addr).Str("cron", cfg.CronSpec).Msg("starting api server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exit")
	}
	log.Info().Msg("server stopped")
}
