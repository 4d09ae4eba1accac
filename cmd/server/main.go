package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/cart-recovery/internal/api"
	"github.com/ignite/cart-recovery/internal/config"
	"github.com/ignite/cart-recovery/internal/delivery"
	"github.com/ignite/cart-recovery/internal/pkg/distlock"
	"github.com/ignite/cart-recovery/internal/pkg/logger"
	"github.com/ignite/cart-recovery/internal/platform"
	"github.com/ignite/cart-recovery/internal/recovery"
	"github.com/ignite/cart-recovery/internal/repository/postgres"
	"github.com/ignite/cart-recovery/internal/service/browse"
	"github.com/ignite/cart-recovery/internal/service/cart"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Cart Recovery Service starting")

	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancelPing()
		log.Fatalf("Database unreachable: %v", err)
	}
	cancelPing()
	log.Println("[db] Connected")

	// Redis is optional; without it the sweep locks fall back to
	// PostgreSQL advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("[redis] Unreachable (%v), using advisory locks", err)
			redisClient = nil
		} else {
			log.Println("[redis] Connected")
		}
	}

	carts := cart.NewService(postgres.NewCartRepo(db))
	views := browse.NewService(postgres.NewBrowseRepo(db))
	emailLog := postgres.NewEmailLogRepo(db)

	platformClient := platform.NewClient(cfg.Platform)
	deliveryClient := delivery.NewClient(cfg.Delivery)

	gate := recovery.NewGate(cfg.Restricted)
	if cfg.Restricted.Enabled {
		log.Printf("[gate] Restricted mode: delivery limited to one recipient")
	}

	lockTTL := 2 * cfg.Sweep.BrowseInterval()
	cartSweep := recovery.NewCartSweep(carts, deliveryClient, gate,
		distlock.NewLock(redisClient, db, "cart-recovery:sweep:carts", lockTTL), cfg.Sweep)
	browseSweep := recovery.NewBrowseSweep(views, deliveryClient, gate,
		distlock.NewLock(redisClient, db, "cart-recovery:sweep:browse", lockTTL), cfg.Sweep)

	ctx, cancel := context.WithCancel(context.Background())
	go cartSweep.Start(ctx)
	go browseSweep.Start(ctx)

	handlers := api.NewHandlers(carts, views, emailLog,
		platformClient, deliveryClient, cartSweep, browseSweep, cfg.Sweep, db)
	server := api.NewServer(handlers)

	addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
	go func() {
		log.Printf("[http] Listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Stopped")
}
