package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/krau/medlens/config"
	"github.com/krau/medlens/onnx"
	"github.com/krau/medlens/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	ort "github.com/yalue/onnxruntime_go"
)

func main() {
	if err := run(); err != nil {
		slog.Error("medlens stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	configPath := config.DefaultPath
	if p := os.Getenv("MEDLENS_CONFIG"); p != "" {
		configPath = p
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", configPath, err)
	}
	setupLogger(cfg)
	slog.Info("Starting medlens", slog.String("mode", cfg.Mode))

	// set once a timed-out shutdown leaves forward passes running
	var sessionsBusy bool

	var loader server.ModelLoader
	if cfg.Mode == config.ModeONNX {
		if err := onnx.Init(onnx.LibPath(cfg.Libonnx)); err != nil {
			return err
		}
		defer func() {
			if !sessionsBusy {
				ort.DestroyEnvironment()
			}
		}()
		loader = server.ONNXLoader(cfg)
	}

	predictor, cleanup, err := server.NewPredictor(cfg, loader)
	if err != nil {
		return fmt.Errorf("failed to initialize predictor: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(predictor, server.NewMetrics(reg), server.Options{
		AllowOrigin:    cfg.AllowOrigin,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})
	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: srv.Router(),
	}

	serveErr := make(chan error, 1)
	slog.Info("Listening on", slog.String("address", cfg.Addr()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		cleanup()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	err = server.Shutdown(shutdownCtx, httpServer, cleanup)
	sessionsBusy = errors.Is(err, context.DeadlineExceeded)
	return err
}

func setupLogger(cfg config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
