package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/citiesregional/regiond/internal/server"
	"github.com/citiesregional/regiond/internal/store"
	"github.com/citiesregional/regiond/pkg/messaging"
)

func main() {
	port := getEnv("PORT", "8080")
	redisURL := os.Getenv("REDIS_URL")
	natsURL := os.Getenv("NATS_URL")

	var st store.Store
	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		client := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			cancel()
			log.Fatalf("failed to connect to redis: %v", err)
		}
		cancel()
		st = store.NewRedis(client)
		log.Printf("using redis region store at %s", opts.Addr)
	} else {
		st = store.NewMemory()
		log.Printf("using in-memory region store")
	}

	var msgClient *messaging.Client
	if natsURL != "" {
		var err error
		msgClient, err = messaging.NewClient(messaging.Config{
			URL:  natsURL,
			Name: "regiond",
		})
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		defer msgClient.Close()
		log.Printf("connected to NATS at %s", natsURL)
	} else {
		log.Printf("NATS_URL not set, event fan-out disabled")
	}

	srv := server.New(server.Config{}, st, msgClient)
	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("regiond listening on :%s", port)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
