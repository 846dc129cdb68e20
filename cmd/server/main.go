package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phovang-pos/api/internal/config"
	"github.com/phovang-pos/api/internal/database"
	"github.com/phovang-pos/api/internal/handler"
	"github.com/phovang-pos/api/internal/kitchen"
	"github.com/phovang-pos/api/internal/printing"
	"github.com/phovang-pos/api/internal/router"
	"github.com/phovang-pos/api/internal/service"
	"github.com/phovang-pos/api/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	queue, err := printing.DialQueue(cfg.AMQPURL, cfg.PrintQueue)
	if err != nil {
		log.Fatalf("connect to rabbitmq: %v", err)
	}
	defer queue.Close()

	queries := database.New(pool)

	hub := ws.NewHub()
	go hub.Run()

	orderSvc := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})

	autoPrint := kitchen.NewAutoPrinter(pool, func(db database.DBTX) kitchen.Store {
		return database.New(db)
	}, queue)
	go autoPrint.Run(ctx)

	relay := printing.NewRelayClient(cfg.PrintRelayURL)
	worker := printing.NewWorker(queries, queue, relay, cfg.PrintMaxTries, cfg.PrintRetryBase)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ERROR: print worker stopped: %v", err)
		}
	}()
	go worker.RunSweeper(ctx, time.Minute, 5*time.Minute)

	thresholds := service.Thresholds{
		PendingAfter: cfg.PendingAfter,
		LateAfter:    cfg.LateAfter,
	}

	r := router.New(router.Deps{
		JWTSecret: cfg.JWTSecret,
		Hub:       hub,
		Auth:      handler.NewAuthHandler(queries, cfg.JWTSecret),
		Menu:      handler.NewMenuHandler(queries),
		Tables:    handler.NewTableHandler(queries, hub),
		Orders:    handler.NewOrderHandler(queries, orderSvc, hub, autoPrint, queue, cfg.BankBin, cfg.BankAccount),
		Kitchen:   handler.NewKitchenHandler(queries, thresholds),
		Users:     handler.NewUserHandler(queries),
		PrintJobs: handler.NewPrintJobHandler(queries, queue),
		Reports:   handler.NewReportHandler(queries),
		Logs:      handler.NewActivityLogHandler(queries),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: shutdown: %v", err)
		}
	}()

	log.Printf("server listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server: %v", err)
	}
}
