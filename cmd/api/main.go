package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pharmacart/internal/broker"
	"pharmacart/internal/config"
	"pharmacart/internal/db"
	"pharmacart/internal/httpserver"
	cartlinerepo "pharmacart/internal/repository/cartline"
	"pharmacart/internal/repository/guestcart"
	productrepo "pharmacart/internal/repository/product"
	cartsvc "pharmacart/internal/service/cart"
	guestsvc "pharmacart/internal/service/guest"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	cartLineRepo := cartlinerepo.NewPostgres(dbpool, cfg.CartLineTTL)
	productRepo := productrepo.NewPostgres(dbpool, logger)
	guestStore, err := guestcart.NewFileStore(cfg.GuestCartDir)
	if err != nil {
		logger.Fatalf("init guest cart store: %v", err)
	}
	guestService := guestsvc.New()

	var notifier cartsvc.Notifier = cartsvc.LogNotifier{Logger: logger}
	var publisher *broker.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = broker.NewPublisher(cfg.AMQPURL, logger)
		if err != nil {
			logger.Fatalf("connect to broker: %v", err)
		}
		defer publisher.Close()
		notifier = publisher
	}

	opts := cartsvc.Options{
		Pricing: cartsvc.Pricing{
			TaxRate:          cfg.TaxRate,
			DeliveryFeeCents: cfg.DeliveryFeeCents,
		},
		RemoteTimeout: cfg.RemoteTimeout,
	}
	registry := httpserver.NewCartRegistry(func(userID *string, guestKey string) *cartsvc.Service {
		return cartsvc.New(userID, guestKey, cartLineRepo, guestStore, notifier, logger, opts)
	}, logger)

	if cfg.AMQPURL != "" {
		consumer, err := broker.NewConsumer(cfg.AMQPURL, logger)
		if err != nil {
			logger.Fatalf("connect order consumer: %v", err)
		}
		defer consumer.Close()
		err = consumer.StartOrderPlacedConsumer(func(event broker.OrderPlacedEvent) {
			registry.ClearUserCart(event.UserID)
		})
		if err != nil {
			logger.Fatalf("start order consumer: %v", err)
		}
	}

	sweepDone := make(chan struct{})
	go sweepExpiredLines(ctx, cartLineRepo, logger, sweepDone)

	srv := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Registry:       registry,
		Guests:         guestService,
		Products:       productRepo,
		AllowedOrigins: strings.Split(cfg.AllowedOrigins, ","),
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}
	close(sweepDone)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}

// sweepExpiredLines purges expired cart lines once an hour. ListForUser
// already hides expired rows, so the sweep is purely housekeeping.
func sweepExpiredLines(ctx context.Context, repo cartlinerepo.Repository, logger *log.Logger, done <-chan struct{}) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx)
			if err != nil {
				logger.Printf("sweep expired cart lines: %v", err)
				continue
			}
			if n > 0 {
				logger.Printf("swept %d expired cart lines", n)
			}
		}
	}
}
