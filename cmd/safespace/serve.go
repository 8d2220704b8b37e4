package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/safespace/safespace/internal/accounts"
	"github.com/safespace/safespace/internal/api"
	"github.com/safespace/safespace/internal/chat"
	"github.com/safespace/safespace/internal/config"
	"github.com/safespace/safespace/internal/consent"
	"github.com/safespace/safespace/internal/escalation"
	"github.com/safespace/safespace/internal/history"
	"github.com/safespace/safespace/internal/journal"
	"github.com/safespace/safespace/internal/scoring"
	"github.com/safespace/safespace/internal/secrets"
	"github.com/safespace/safespace/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the safespace server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a content encryption key for SAFESPACE_CONTENT_KEY",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := secrets.NewRandomKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, key)
		return nil
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "safespace version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	box, err := secrets.NewBox(cfg.Auth.ContentKey)
	if err != nil {
		return fmt.Errorf("loading content key: %w", err)
	}

	// Build services.
	tokens := accounts.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	accountsSvc := accounts.NewService(store, tokens)
	scorer := scoring.NewRuleScorer()
	router := escalation.NewRouter(store)
	registry := consent.NewRegistry(store)
	journalSvc := journal.NewService(store, scorer, box, router, journal.TrendThresholds{
		AvgSentiment:  cfg.Journal.TrendSentiment,
		RiskFlagCount: cfg.Journal.TrendRiskFlags,
	})
	chatSvc := chat.NewCoordinator(store, scorer, box, router)
	builder := history.NewBuilder(store, registry)

	handler := api.NewAppHandler(api.AppDeps{
		Accounts: accountsSvc,
		Tokens:   tokens,
		Journal:  journalSvc,
		Chat:     chatSvc,
		Router:   router,
		Consent:  registry,
		History:  builder,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	sweep := escalation.NewSweep(store, cfg.Escalation.SweepInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "safespace listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sweep.Run(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
