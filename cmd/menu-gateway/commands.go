// ABOUTME: Operational subcommands: token issuance, health probes and session inspection
// ABOUTME: Each loads the same config as serve so they act on the running gateway's state

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/menu-gateway/internal/auth"
	"github.com/2389/menu-gateway/internal/config"
	"github.com/2389/menu-gateway/internal/gateway"
	"github.com/2389/menu-gateway/internal/session"
)

// defaultTokenTTL matches the lifetime of tokens handed to assistant connectors.
const defaultTokenTTL = 30 * 24 * time.Hour

const redacted = "<redacted>"

// runToken issues a bearer token signed with auth.jwt_secret.
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	name := fs.String("name", "", "Principal name to embed as the token subject (default: random UUID)")
	ttl := fs.Duration("ttl", defaultTokenTTL, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if *ttl <= 0 {
		return errors.New("--ttl must be positive")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured; the MCP endpoint accepts unauthenticated clients")
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	subject := strings.TrimSpace(*name)
	if subject == "" {
		subject = uuid.New().String()
	}

	token, err := verifier.Generate(subject, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(os.Stderr, "subject %s, expires %s\n", subject, time.Now().Add(*ttl).UTC().Format(time.RFC3339))
	fmt.Println(token)
	return nil
}

// localBaseURL returns the URL the gateway's HTTP listener answers on.
func localBaseURL(cfg *config.Config) string {
	if cfg.Tailscale.Enabled {
		scheme := "http"
		if cfg.Tailscale.HTTPS || cfg.Tailscale.Funnel {
			scheme = "https"
		}
		return scheme + "://" + cfg.Tailscale.Hostname
	}
	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func fetch(ctx context.Context, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, strings.TrimSpace(string(body)), nil
}

// runHealth checks liveness, then asks the gateway whether the restaurant is open.
func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	base := localBaseURL(cfg)

	code, _, err := fetch(ctx, base+"/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if code != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", code)
	}
	fmt.Println("healthy")

	code, body, err := fetch(ctx, base+"/health/ready")
	if err != nil {
		return fmt.Errorf("readiness check failed: %w", err)
	}
	if code != http.StatusOK {
		return fmt.Errorf("not ready: %s", body)
	}
	fmt.Printf("restaurant: %s\n", body)
	return nil
}

// runSession implements "session show" and "session reset".
func runSession(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: menu-gateway session <show|reset> [--key KEY]")
	}
	action := args[0]

	fs := flag.NewFlagSet("session "+action, flag.ContinueOnError)
	key := fs.String("key", session.DefaultKey, "Session key (MCP session id in per_connection mode)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := gateway.OpenPersister(ctx, cfg.Session)
	if err != nil {
		return err
	}
	if closer, ok := p.(io.Closer); ok {
		defer closer.Close()
	}

	switch action {
	case "show":
		return showSession(ctx, p, *key, os.Stdout)
	case "reset":
		if err := gateway.ResetSession(ctx, p, *key); err != nil {
			return fmt.Errorf("resetting session %q: %w", *key, err)
		}
		color.New(color.FgGreen).Printf("  ✓ Session %q reset\n", *key)
		return nil
	default:
		return fmt.Errorf("unknown session action: %s", action)
	}
}

// showSession prints the snapshot stored under key with the auth token redacted.
func showSession(ctx context.Context, p session.Persister, key string, out io.Writer) error {
	snap, err := p.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("loading session %q: %w", key, err)
	}
	if snap == nil {
		_, err := fmt.Fprintf(out, "no session stored under %q\n", key)
		return err
	}
	if snap.AuthToken != "" {
		snap.AuthToken = redacted
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
