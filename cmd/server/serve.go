package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"account-portal/internal/auth"
	apphttp "account-portal/internal/http"
	"account-portal/internal/metrics"
	"account-portal/internal/service"
	"account-portal/internal/session"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	if cfg.Database.AutoMigrate {
		if err := st.migrate(ctx); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
		}
	}

	hasher, err := auth.NewPasswordHasher(cfg.Auth.Hasher, cfg.Auth.BcryptCost)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	m := metrics.New()
	accounts := service.NewAccountService(st.users, hasher, logger, m)
	sessions := session.NewManager(st.sessions, cfg.Session.TTL)

	janitor := session.NewJanitor(session.JanitorConfig{
		Interval: cfg.Session.CleanupInterval,
		Logger:   logger,
		Metrics:  m,
	}, sessions)
	janitor.Start(ctx)
	defer janitor.Shutdown()

	gin.SetMode(gin.ReleaseMode)
	handler := apphttp.NewHandler(accounts, sessions, apphttp.Config{
		CookieName:   cfg.Session.CookieName,
		SecureCookie: cfg.Session.SecureCookie,
		Secret:       cfg.Auth.Secret,
	}, logger, m)

	servers := []*http.Server{{
		Addr:              cfg.Server.Addr,
		Handler:           apphttp.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.Metrics.Addr != "" {
		servers = append(servers, metrics.NewOpsServer(cfg.Metrics.Addr, m, st.health, logger))
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Infof("listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- oops.Code("SERVER_FAILED").With("addr", srv.Addr).Wrap(err)
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case err = <-errCh:
		logger.Errorf("server stopped: %v", err)
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, srv := range servers {
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Warnf("http shutdown %s: %v", srv.Addr, serr)
		}
	}

	logger.Info("bye")
	return err
}
