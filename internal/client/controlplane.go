package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openmined/themesync/internal/client/config"
	"github.com/openmined/themesync/internal/client/handlers"
	"github.com/openmined/themesync/internal/client/middleware"
	"github.com/openmined/themesync/internal/theme"
	"github.com/openmined/themesync/internal/utils"
)

type ControlPlaneServer struct {
	config *config.ControlPlaneConfig
	server *http.Server
}

func NewControlPlaneServer(cfg *config.ControlPlaneConfig, session handlers.SyncSession, t theme.Theme, root string) (*ControlPlaneServer, error) {
	if _, err := utils.AddrToURL(cfg.Addr); err != nil {
		return nil, fmt.Errorf("invalid control plane addr: %w", err)
	}

	routes := SetupRoutes(&RouteConfig{
		Auth: middleware.TokenAuthConfig{
			Token: cfg.Token,
		},
		Session: session,
		Theme:   t,
		Root:    root,
	})

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: routes,
		// Timeouts to prevent slow client attacks
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return &ControlPlaneServer{
		config: cfg,
		server: httpServer,
	}, nil
}

func (s *ControlPlaneServer) Start(ctx context.Context) error {
	url, _ := utils.AddrToURL(s.config.Addr)
	slog.Info("control plane start", "addr", url, "auth", s.config.Token != "")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (s *ControlPlaneServer) Stop(ctx context.Context) error {
	slog.Info("control plane stop")
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
