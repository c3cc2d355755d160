package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"pedidoflow/auth"
	"pedidoflow/chat"
	"pedidoflow/config"
	"pedidoflow/db"
	"pedidoflow/dispute"
	"pedidoflow/httpapi"
	"pedidoflow/order"
	"pedidoflow/venture"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret)
	orderRepo := order.NewRepository(pool)
	orders := order.NewService(orderRepo).WithTimeout(cfg.StorageTimeout)
	disputes := dispute.NewService(dispute.NewRepository(pool), orderRepo)
	ventures := venture.NewService(venture.NewRepository(pool))

	hub := chat.NewHub()
	chatHandler := chat.NewHandler(hub, orders, users)

	server := httpapi.NewServer(users, orders, disputes, ventures)
	router := httpapi.NewRouter(server, users, chatHandler.Serve())

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down", "grace", cfg.ShutdownGrace)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
