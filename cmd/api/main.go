package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zhouzirui/profile-service/backend/internal/config"
	"github.com/zhouzirui/profile-service/backend/internal/handler"
	"github.com/zhouzirui/profile-service/backend/internal/metrics"
	"github.com/zhouzirui/profile-service/backend/internal/model/profile"
	"github.com/zhouzirui/profile-service/backend/internal/service/toggler"
	"github.com/zhouzirui/profile-service/backend/internal/service/watch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Change feed and metrics observe every committed store mutation
	hub := watch.NewHub(cfg.Watch.Buffer)
	collector := metrics.New()
	store := profile.NewMemoryStore(profile.Seed(),
		profile.WithObserver(hub),
		profile.WithObserver(collector),
	)
	collector.SetProfiles(len(store.List()))

	var wg sync.WaitGroup
	if cfg.Toggler.Enabled {
		target := toggler.Target{Profile: cfg.Toggler.Profile, Permission: cfg.Toggler.Permission}
		svc, err := toggler.New(store, target, cfg.Toggler.Interval)
		if err != nil {
			log.Fatalf("failed to create toggler: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Run(ctx); err != nil {
				log.Printf("[toggler] exited with error: %v", err)
			}
		}()
	} else {
		log.Println("toggler disabled by configuration")
	}

	router := handler.NewRouter(store, hub, collector, cfg.Server.CORSOrigin)

	startServer(ctx, cfg.Server, router)

	stop()
	wg.Wait()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("profile service listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
