package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/cratedig/internal/repositories"
	"github.com/desertthunder/cratedig/internal/server"
	"github.com/desertthunder/cratedig/internal/services"
	"github.com/desertthunder/cratedig/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// AuthYouTube connects a YouTube account with the OAuth2 authorization code flow.
//
// Starts a local HTTP server for the callback, opens the consent page, and stores the token in the database.
func (r *Runner) AuthYouTube(ctx context.Context, cmd *cli.Command) error {
	oauthConfig, err := services.GoogleOAuthConfig(r.config.Credentials.YouTube)
	if err != nil {
		return err
	}
	if _, err := r.database(); err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, oauthConfig)
	if err != nil {
		return err
	}
	if err := r.tokens.Save(token); err != nil {
		return err
	}

	account := ""
	if yt, err := services.NewYouTubeService(ctx, oauthConfig.TokenSource(ctx, token)); err == nil {
		if account, err = yt.AccountName(ctx); err != nil {
			r.logger.Warn("failed to look up channel name", "error", err)
		} else if account != "" {
			if err := r.tokens.SetEmail(account); err != nil {
				r.logger.Warn("failed to store account name", "error", err)
			}
		}
	}

	r.writePlainln("✓ YouTube connected")
	if account != "" {
		r.writePlain("  Account: %s\n", account)
	}
	if token.RefreshToken == "" {
		r.writePlain("⚠ No refresh token was issued; reconnect when the token expires\n")
	}
	r.writePlain("\nYou can now use: cratedig roll --create\n")
	return nil
}

// AuthStatus reports the stored YouTube connection and whether the recommendation proxy is reachable.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.database(); err != nil {
		return err
	}

	conn, connErr := r.tokens.Status()
	if connErr != nil && !errors.Is(connErr, shared.ErrNotAuthenticated) {
		return connErr
	}
	health, healthErr := r.proxyService(ctx).Health(ctx)

	if cmd.Bool("json") {
		out := struct {
			Connected  bool                     `json:"connected"`
			Connection *repositories.Connection `json:"connection,omitempty"`
			Proxy      *services.HealthStatus   `json:"proxy,omitempty"`
			ProxyError string                   `json:"proxyError,omitempty"`
		}{Connected: conn != nil, Connection: conn, Proxy: health}
		if healthErr != nil {
			out.ProxyError = healthErr.Error()
		}
		return r.writeJSON(out, true)
	}

	r.writePlainHeader("Connection status")
	if conn == nil {
		r.writePlain("YouTube: ✗ Not connected (run 'cratedig auth youtube')\n")
	} else {
		r.writePlain("YouTube: ✓ Connected\n")
		if conn.Email != "" {
			r.writePlain("  Account: %s\n", conn.Email)
		}
		r.writePlain("  Connected: %s\n", conn.ConnectedAt.Local().Format(time.RFC1123))
		if !conn.Expiry.IsZero() {
			r.writePlain("  Token expires: %s\n", conn.Expiry.Local().Format(time.RFC1123))
		}
		if !conn.HasRefresh {
			r.writePlain("  ⚠ No refresh token stored\n")
		}
	}

	if healthErr != nil {
		r.logger.Debug("proxy health check failed", "error", healthErr)
		r.writePlain("Proxy: ✗ Unreachable (%s)\n", shared.UserMessage(healthErr))
	} else {
		r.writePlain("Proxy: ✓ %s\n", health.Status)
	}
	return nil
}

// AuthLogout deletes the stored YouTube token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.database(); err != nil {
		return err
	}
	if err := r.tokens.Delete(); err != nil {
		return err
	}
	r.logger.Info("youtube connection removed")
	return r.writePlain("✓ YouTube disconnected\n")
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := services.AuthCodeURL(config, state)
	callback := server.NewOAuthCallback(config, state)
	router := server.NewRouter()
	router.Use(server.Recover(r.logger))
	router.Mount(callback)

	serverAddr := r.config.Server.Addr()
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for YouTube authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-callback.Done():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Err != nil {
		return nil, result.Err
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
