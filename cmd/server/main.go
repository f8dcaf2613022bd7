package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"certflow/internal/app"
	"certflow/internal/auth"
	"certflow/internal/config"
	"certflow/internal/handler"
	"certflow/internal/router"
)

// @title Certflow API
// @version 1.0
// @description Compliance certificate extraction, review, pattern analysis and risk scoring.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failed to load config")
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return err
	}
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	// Background processing
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	go c.Worker.Start(workerCtx)
	go c.Sweeper.Start(workerCtx)

	r := router.Setup(
		auth.NewVerifier(cfg.JWT),
		router.Limiters{Analysis: c.AnalysisLimiter, Training: c.TrainingLimiter},
		cfg.Server.AllowedOrigins,
		router.Handlers{
			Health:     handler.NewHealthHandler(c.HealthChecks()),
			Extraction: handler.NewExtractionHandler(c.Orchestrator, c.Repos.Runs),
			Correction: handler.NewCorrectionHandler(c.Corrections),
			Review:     handler.NewReviewHandler(c.Reviews),
			Suggestion: handler.NewSuggestionHandler(c.Patterns),
			Risk:       handler.NewRiskHandler(c.Risk),
		},
	)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server starting", zap.String("addr", cfg.Server.Port), zap.String("env", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		cancelWorkers()
		c.Worker.Wait()
		if err != nil {
			return eris.Wrap(err, "server failed")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("http shutdown", zap.Error(err))
	}

	// In-flight runs finish; anything left is reclaimed by the sweeper.
	cancelWorkers()
	c.Worker.Wait()
	zap.L().Info("shutdown complete")
	return nil
}
