package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/cratedig/internal/server"
	"github.com/desertthunder/cratedig/internal/services"
	"github.com/desertthunder/cratedig/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the JSON API until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	handler, err := r.apiHandler(ctx)
	if err != nil {
		return err
	}

	addr := r.config.Server.Addr()
	if a := cmd.String("addr"); a != "" {
		addr = a
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("serving API", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()
	r.writePlain("→ Listening on http://%s\n", addr)

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	r.logger.Info("server stopped")
	return nil
}

// apiHandler wires the API to the database and remote services. Services that cannot be built,
// such as the Data API without a YouTube connection, leave their endpoints answering 503.
func (r *Runner) apiHandler(ctx context.Context) (http.Handler, error) {
	if _, err := r.database(); err != nil {
		return nil, err
	}

	assembler, err := r.playlistAssembler(ctx)
	if err != nil {
		r.logger.Warn("playlist creation disabled", "reason", shared.UserMessage(err))
	}

	var checker services.ExistenceChecker
	if yt, err := r.youtubeService(ctx); err == nil {
		checker = yt
	} else {
		r.logger.Warn("playlist checks disabled", "reason", shared.UserMessage(err))
	}

	logger := shared.WithLogger(r.logger, "component", "http")
	api := server.NewAPI(server.APIOpts{
		Library:    r.library,
		History:    r.rolls,
		Engine:     r.rollEngine(ctx),
		Assembler:  assembler,
		Checker:    checker,
		Connection: r.tokens,
		Proxy:      r.proxyService(ctx),
		CheckRate:  r.config.Roll.CheckRate,
		Logger:     r.logger,
	})

	router := server.NewRouter()
	router.Use(server.Logging(logger), server.Recover(logger))
	api.Register(router)
	return router, nil
}
