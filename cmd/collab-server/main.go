package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/consultly/collab/internal/auth"
	"github.com/consultly/collab/internal/config"
	"github.com/consultly/collab/internal/db"
	"github.com/consultly/collab/internal/logging"
	"github.com/consultly/collab/internal/relay"
	"github.com/consultly/collab/server"
)

func main() {
	logger := logging.New(slog.LevelInfo)

	cfg, err := config.Load(logger, "collab")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = logging.New(logging.ParseLevel(cfg.Server.LogLevel))
	slog.SetDefault(logger)

	store, err := db.NewStore(cfg.DB.Path)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	authenticator := auth.NewAuthenticator(cfg.Server.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var bridge *relay.Bridge
	if cfg.Relay.RedisURL != "" {
		bridge, err = relay.New(cfg.Relay.RedisURL, logger)
		if err != nil {
			logger.Error("Failed to connect relay", slog.Any("error", err))
			os.Exit(1)
		}
		defer bridge.Close()
	}

	var hub *server.Hub
	if bridge != nil {
		hub = server.NewHub(logger, bridge)
	} else {
		hub = server.NewHub(logger, nil)
	}
	go hub.Run()

	if bridge != nil {
		go bridge.Subscribe(ctx, hub.DeliverLocal)
	}

	srv := server.NewServer(hub, store, authenticator, logger)
	rest := server.NewRestHandler(store, authenticator)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWebSocket)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/rooms/{roomId}/presence", rest.HandlePresence)
	apiMux.HandleFunc("/api/rooms/{roomId}/whiteboard", rest.HandleWhiteboard)
	apiMux.HandleFunc("/api/rooms/{roomId}/messages", rest.HandleMessages)
	apiMux.HandleFunc("/api/documents", rest.HandleDocuments)
	apiMux.HandleFunc("/api/documents/{id}", rest.HandleDocument)
	mux.Handle("/api/", authenticator.Middleware(apiMux))

	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down...")
		httpServer.Shutdown(context.Background())
	}()

	logger.Info("collab server listening", slog.String("address", cfg.Server.Address))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("Server error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Server shut down")
}
