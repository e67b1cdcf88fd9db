// Command api serves the Kybernus license and device authorization API.
//
// @title Kybernus License API
// @version 1.0
// @description License validation, device pairing and billing reconciliation for the Kybernus CLI.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/kybernus/license-api/docs"
	"github.com/kybernus/license-api/internal/api/handlers"
	"github.com/kybernus/license-api/internal/api/router"
	"github.com/kybernus/license-api/internal/config"
	"github.com/kybernus/license-api/internal/domain/job"
	"github.com/kybernus/license-api/internal/domain/notification"
	"github.com/kybernus/license-api/internal/integrations"
	"github.com/kybernus/license-api/internal/kv"
	"github.com/kybernus/license-api/internal/licensekey"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/pkg/ratelimit"
	"github.com/kybernus/license-api/internal/pkg/validator"
	"github.com/kybernus/license-api/internal/repository/postgres"
	"github.com/kybernus/license-api/internal/repository/transient"
	"github.com/kybernus/license-api/internal/services"
	"github.com/kybernus/license-api/migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
		Service:    "kybernus-api",
	})

	codec, err := licensekey.NewCodec(cfg.License.Secret, cfg.License.Product)
	if err != nil {
		return err
	}

	db, dialect, err := postgres.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	applied, err := postgres.RunMigrations(db, dialect, migrations.GetFS())
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	for _, name := range applied {
		log.With("migration", name).Info("Migration applied")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	bg := services.NewBackground(log, cfg.Email.Timeout)
	limiter := ratelimit.New(store, log)

	var sender notification.Sender
	if cfg.Email.ResendAPIKey != "" {
		sender = integrations.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.From)
	} else {
		log.Warn("RESEND_API_KEY not set, emails will only be logged")
		sender = integrations.NewLogSender(log)
	}
	if cfg.OAuth.Google.ClientID == "" {
		log.Warn("GOOGLE_CLIENT_ID not set, device completion will fail")
	}
	if cfg.Stripe.SecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY not set, checkout is unavailable")
	}

	accountsRepo := postgres.NewAccountRepository(db, dialect)
	notifier := services.NewNotificationService(sender, bg, log, cfg.Email.AppURL)

	accountSvc := services.NewAccountService(accountsRepo, codec, notifier, log, services.AccountOptions{
		TrialQuota: cfg.License.TrialQuota,
		BCryptCost: cfg.Auth.BCryptCost,
	})
	licenseSvc := services.NewLicenseService(accountsRepo, codec, store, cfg.License.CacheTTL, bg, log)
	deviceSvc := services.NewDeviceService(
		transient.NewDeviceRepository(store),
		transient.NewStateRepository(store),
		accountSvc,
		integrations.NewGoogleProvider(cfg.OAuth.Google, cfg.OAuth.ExchangeTimeout),
		limiter,
		cfg.Device,
		cfg.OAuth.ExchangeTimeout,
		log,
	)
	billingRepo := postgres.NewBillingRepository(db, dialect)
	billingSvc := services.NewBillingService(
		billingRepo,
		accountsRepo,
		licenseSvc,
		codec,
		integrations.NewStripeProvider(cfg.Stripe),
		notifier,
		services.Prices{Free: cfg.Stripe.PriceIDFree, Pro: cfg.Stripe.PriceIDPro},
		log,
	)

	jobs := services.NewJobService(billingRepo, store, services.JobOptions{
		Schedules: map[job.JobType]string{
			job.JobTypePruneBillingEvents: cfg.Jobs.PruneSchedule,
			job.JobTypeSweepTransient:     cfg.Jobs.SweepSchedule,
		},
		EventRetention: cfg.Jobs.EventRetention,
	}, log)
	if cfg.Jobs.Enabled {
		if err := jobs.Start(ctx); err != nil {
			return fmt.Errorf("start job scheduler: %w", err)
		}
		defer jobs.Stop()
	}

	val := validator.New()
	handler := router.New(ctx, cfg, log, limiter, &router.Handlers{
		Health:  handlers.NewHealthHandler(db, store, log),
		Auth:    handlers.NewAuthHandler(accountSvc, deviceSvc, cfg, log, val),
		Device:  handlers.NewDeviceHandler(deviceSvc, cfg.Auth, log, val),
		License: handlers.NewLicenseHandler(licenseSvc, log, val),
		Billing: handlers.NewBillingHandler(billingSvc, log, val),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr":        srv.Addr,
			"environment": cfg.Server.Environment,
			"database":    cfg.Database.Driver,
		}).Info("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithErr(err, "HTTP server shutdown")
	}
	if err := bg.Wait(shutdownCtx); err != nil {
		log.ErrorWithErr(err, "Background tasks did not finish")
	}
	return nil
}

// openStore picks Redis when enabled and falls back to the in-process store,
// which only works with a single API replica.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (kv.Store, error) {
	if !cfg.Redis.Enabled {
		if cfg.IsProduction() {
			log.Warn("REDIS_ENABLED is false; pairing sessions and rate limits are per process")
		}
		return kv.NewMemoryStore(), nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := kv.DialRedis(dialCtx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("connect redis at %s: %w", cfg.Redis.Addr(), err)
	}
	log.With("addr", cfg.Redis.Addr()).Info("Connected to Redis")
	return store, nil
}

