package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/docvisit/backend/internal/config"
	"github.com/docvisit/backend/internal/handler"
	consultservice "github.com/docvisit/backend/internal/service/consult"
	"github.com/docvisit/backend/internal/service/doctor"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		log.Fatalf("failed to initialize chat model: %v", err)
	}

	consultSvc := consultservice.NewService()

	doctorSvc, err := doctor.NewService(ctx, consultSvc, chatModel, cfg.AI, cfg.Consult)
	if err != nil {
		log.Fatalf("failed to initialize doctor service: %v", err)
	}
	log.Printf("doctor service initialized with provider=%s model=%s", cfg.AI.Provider, cfg.AI.Model)

	router := handler.NewRouter(consultSvc, doctorSvc)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("docvisit backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
