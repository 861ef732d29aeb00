package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avstrong/slotbooking/internal/booking"
	"github.com/avstrong/slotbooking/internal/config"
	"github.com/avstrong/slotbooking/internal/events"
	"github.com/avstrong/slotbooking/internal/identity"
	"github.com/avstrong/slotbooking/internal/idgen/simple"
	"github.com/avstrong/slotbooking/internal/logger"
	"github.com/avstrong/slotbooking/internal/migration"
	"github.com/avstrong/slotbooking/internal/storage/memory"
	"github.com/avstrong/slotbooking/internal/storage/postgres"
	"github.com/avstrong/slotbooking/internal/transport/web"
)

func Run(l *logger.Logger, conf config.Config) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)
	defer cancel()

	var opts []booking.Option

	if conf.RabbitURL != "" {
		publisher, err := events.NewPublisher(conf.RabbitURL, conf.PaymentExchange)
		if err != nil {
			return fmt.Errorf("init payment events publisher: %w", err)
		}

		defer func() {
			if err := publisher.Close(); err != nil {
				l.LogErrorf("Failed to close payment events publisher: %v", err.Error())
			}
		}()

		opts = append(opts, booking.WithPublisher(publisher))

		l.LogInfo("Payment events are published to exchange %s", conf.PaymentExchange)
	}

	auth := identity.NewAuthenticator(identity.Config{
		SigningKey: []byte(conf.JWTSecret),
		TokenTTL:   conf.TokenTTL(),
		BcryptCost: conf.BcryptCost,
	})

	var (
		bookManager *booking.Manager
		users       *identity.Service
	)

	switch conf.Storage {
	case config.StoragePostgres:
		if err := postgres.Migrate(l, conf.PostgresDSN); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}

		pool, err := pgxpool.New(ctx, conf.PostgresDSN)
		if err != nil {
			return fmt.Errorf("create postgres pool: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}

		db := postgres.New(postgres.Config{L: l, Pool: pool})
		bookManager = booking.New(l, db, db, opts...)
		users = identity.NewService(l, db, auth)
	default:
		db := memory.New(memory.Config{L: l})
		idGen := simple.New()

		err := migration.Up(ctx, l, db, idGen, migration.Options{
			Today:        time.Now().UTC(),
			DemoBookings: conf.SeedDemo,
		})
		if err != nil {
			return fmt.Errorf("up memory migration: %w", err)
		}

		l.LogInfo("Memory migration has been applied")

		bookManager = booking.New(l, db, idGen, opts...)
		users = identity.NewService(l, db, auth)
	}

	webConf := web.Conf{
		L:                 l,
		ServerLogger:      l.StdLogger(),
		Host:              conf.HTTPHost,
		Port:              conf.HTTPPort,
		ReadHeaderTimeout: time.Duration(conf.ReadHeaderTimeout),
		LivenessEndpoint:  conf.LivenessEndpoint,
		CookieTTL:         conf.TokenTTL(),
	}

	srv, err := web.New(ctx, webConf, bookManager, users)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	//nolint:contextcheck
	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*4) //nolint:gomnd
		defer cancel()

		if err := srv.Srv().Shutdown(ctx); err != nil {
			l.LogErrorf("Failed to stop http server: %v", err.Error())
		}
	}()

	l.LogInfo("Application is running on %v:%v with %s storage...", webConf.Host, webConf.Port, conf.Storage)

	if err := srv.Srv().ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		l.LogErrorf("Failed to run http server: %v", err.Error())

		cancel()
	}

	l.LogInfo("Application stopped gracefully")

	return nil
}
