// ABOUTME: Builds the ordering components from config: backend, persister, sessions, tools, widgets, MCP.
// ABOUTME: Shared by the HTTP gateway, the stdio transport and the session CLI commands.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/2389/menu-gateway/internal/auth"
	"github.com/2389/menu-gateway/internal/backend"
	"github.com/2389/menu-gateway/internal/config"
	"github.com/2389/menu-gateway/internal/mcp"
	"github.com/2389/menu-gateway/internal/ordering"
	"github.com/2389/menu-gateway/internal/session"
	"github.com/2389/menu-gateway/internal/tools"
	"github.com/2389/menu-gateway/internal/widgets"
)

// Version is reported in MCP serverInfo. Overridden at build time.
var Version = "dev"

// Components are the wired pieces of a running gateway.
type Components struct {
	Backend   *backend.Client
	Persister session.Persister
	Sessions  *session.Manager
	Registry  *tools.Registry
	Executor  *ordering.Executor
	Widgets   *widgets.Resolver
	Verifier  *auth.JWTVerifier
	MCP       *mcp.Server
}

// OpenPersister opens the session persister selected by cfg.Backend.
func OpenPersister(ctx context.Context, cfg config.SessionConfig) (session.Persister, error) {
	switch cfg.Backend {
	case config.SessionBackendFile, "":
		return session.NewFilePersister(cfg.Path), nil
	case config.SessionBackendSQLite:
		p, err := session.NewSQLitePersister(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite session store: %w", err)
		}
		return p, nil
	case config.SessionBackendRedis:
		p, err := session.NewRedisPersister(ctx, session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			TTL:      cfg.RedisTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to redis session store: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// NewBackendClient builds the ordering backend client from cfg.
func NewBackendClient(cfg config.BackendConfig, logger *slog.Logger) (*backend.Client, error) {
	return backend.NewClient(backend.Config{
		BaseURL:         cfg.BaseURL,
		ActionPath:      cfg.ActionPath,
		BasketItemsPath: cfg.BasketItemsPath,
		UserAgent:       cfg.UserAgent,
		HTTPClient:      &http.Client{Timeout: cfg.Timeout},
		Logger:          logger,
	})
}

// Build wires every component described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	mode, err := session.ParseMode(cfg.Session.Mode)
	if err != nil {
		return nil, err
	}

	client, err := NewBackendClient(cfg.Backend, logger.With("component", "backend"))
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}

	persister, err := OpenPersister(ctx, cfg.Session)
	if err != nil {
		return nil, err
	}
	c := &Components{Backend: client, Persister: persister}

	c.Sessions = session.NewManager(mode, persister, logger.With("component", "session"))

	c.Registry = tools.NewRegistry(logger.With("component", "tools"))
	if err := c.Registry.Register(ordering.Catalog()...); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("registering ordering tools: %w", err)
	}

	c.Widgets, err = widgets.Load(cfg.Widgets.Dir, logger.With("component", "widgets"))
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("loading widgets: %w", err)
	}

	c.Executor = ordering.NewExecutor(client, logger.With("component", "ordering"))

	mcpCfg := mcp.Config{
		Registry:  c.Registry,
		Executor:  c.Executor,
		Sessions:  c.Sessions,
		Widgets:   c.Widgets,
		Logger:    logger.With("component", "mcp"),
		ReplayTTL: cfg.Server.ReplayTTL,
		Version:   Version,

		SessionIdleTTL: cfg.Server.SessionIdleTTL,
	}
	if cfg.Auth.JWTSecret != "" {
		c.Verifier, err = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		mcpCfg.TokenVerifier = c.Verifier
		mcpCfg.RequireAuth = true
	}

	c.MCP, err = mcp.NewServer(mcpCfg)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	logger.Info("=== COMPONENTS READY ===",
		"session_backend", cfg.Session.Backend,
		"session_mode", mode,
		"tools", c.Registry.Len(),
		"auth_required", c.Verifier != nil,
	)
	return c, nil
}

// Close releases the persister's connections, if it holds any.
func (c *Components) Close() error {
	if closer, ok := c.Persister.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// errNotDeleter is returned by ResetSession when the persister cannot delete.
var errNotDeleter = errors.New("session backend does not support deletion")

// ResetSession deletes the stored snapshot under key.
func ResetSession(ctx context.Context, p session.Persister, key string) error {
	d, ok := p.(session.Deleter)
	if !ok {
		return errNotDeleter
	}
	return d.Delete(ctx, key)
}
