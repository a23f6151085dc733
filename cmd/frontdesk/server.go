package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/frontdesk/internal/api"
	"github.com/kalambet/frontdesk/internal/config"
	"github.com/kalambet/frontdesk/internal/gemini"
	"github.com/kalambet/frontdesk/internal/mentor"
	"github.com/kalambet/frontdesk/internal/retry"
	"github.com/kalambet/frontdesk/internal/session"
	"github.com/kalambet/frontdesk/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the front desk server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the mentor tools over MCP (stdio transport)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

// backend is the set of long-lived components shared by the HTTP and MCP servers.
type backend struct {
	store    *storage.Store
	sessions *session.Manager
	mentor   *mentor.Service
	close    func()
}

func setupLogging(cfg config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	store, err := storage.OpenDriver(cfg.Storage.Driver, cfg.Storage.DataDir, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	var gen mentor.Generator = gemini.Offline{}
	closeGen := func() {}
	if cfg.Gemini.APIKey == "" {
		printWarning("no Gemini API key configured; mentor replies will use offline fallbacks")
	} else {
		client, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		gen = client
		closeGen = func() {
			if err := client.Close(); err != nil {
				slog.Warn("closing gemini client", "error", err)
			}
		}
		slog.Info("gemini client ready", "model", client.Model())
	}

	return &backend{
		store:    store,
		sessions: session.NewManager(store),
		mentor:   mentor.NewService(gen, retry.New()),
		close: func() {
			closeGen()
			if err := store.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
			}
		},
	}, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "frontdesk version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()
	slog.Info("storage ready", "driver", b.store.Driver())

	if cfg.Server.AdminToken == "" {
		slog.Warn("admin routes disabled: FRONTDESK_ADMIN_TOKEN is not set")
	}

	handler := api.NewHandler(api.Deps{
		Sessions:   b.sessions,
		Mentor:     b.mentor,
		Inflight:   mentor.NewInflight(),
		AdminToken: cfg.Server.AdminToken,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("frontdesk listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{Mentor: b.mentor, Sessions: b.sessions}, version)
	slog.Info("MCP server started (stdio transport)")
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}
