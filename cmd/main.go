// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seatsync/seatsync/internal/config"
	"github.com/seatsync/seatsync/internal/database"
	"github.com/seatsync/seatsync/internal/handler"
	"github.com/seatsync/seatsync/internal/logger"
	"github.com/seatsync/seatsync/internal/repository"
	"github.com/seatsync/seatsync/internal/service"
)

// stores is the storage backend selected by STORAGE_DRIVER.
type stores struct {
	ledger    service.BookingLedger
	directory service.Directory
	venues    repository.VenueSource
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ref := repository.DefaultReference()

	// ── 1. Storage ───────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, ref, log)
	if err != nil {
		return err
	}
	defer st.close()

	// ── 2. Optional venue cache ──────────────────────────────────────────
	venues := service.VenueCatalog(st.venues)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, venue cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			cache := repository.NewCachedVenues(st.venues, rdb, cfg.Redis.CacheTTL, log)
			if err := invalidateSeeded(ctx, cache, ref); err != nil {
				log.Warn("venue cache invalidation failed", zap.Error(err))
			}
			venues = cache
			log.Info("venue cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.CacheTTL))
		}
	}

	// ── 3. Wire up layers ────────────────────────────────────────────────
	svc := service.NewBookingService(st.ledger, st.directory, venues, log)
	bookingHandler := handler.NewBookingHandler(svc, log)

	// ── 4. Build the router ──────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.Logger(log))
	r.Use(handler.CORS)
	bookingHandler.Routes(r)

	// ── 5. Start server with graceful shutdown ───────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, ref repository.Reference, log *zap.Logger) (*stores, error) {
	if cfg.StorageDriver == config.StorageMemory {
		dir := repository.NewMemoryDirectory(ref)
		log.Info("using in-memory storage")
		return &stores{
			ledger:    repository.NewMemoryLedger(),
			directory: dir,
			venues:    dir,
			close:     func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	if err := database.Seed(ctx, pool, ref); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("connected to postgres", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.Name))

	dir := repository.NewDirectoryRepository(pool)
	return &stores{
		ledger:    repository.NewBookingRepository(pool),
		directory: dir,
		venues:    dir,
		close:     pool.Close,
	}, nil
}

// invalidateSeeded drops cache entries for the reference venues so a restart
// with changed seed data isn't masked by stale entries.
func invalidateSeeded(ctx context.Context, cache *repository.CachedVenues, ref repository.Reference) error {
	byInstitution := map[string][]string{}
	for _, v := range ref.Venues {
		byInstitution[v.InstitutionID] = append(byInstitution[v.InstitutionID], v.ID)
	}
	for _, inst := range ref.Institutions {
		if err := cache.Invalidate(ctx, inst.ID, byInstitution[inst.ID]...); err != nil {
			return err
		}
	}
	return nil
}
