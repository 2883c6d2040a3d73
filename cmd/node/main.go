// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	logpkg "github.com/echa/log"

	"blockwatch.cc/near-stake/pkg/chain"
	"blockwatch.cc/near-stake/pkg/ft"
	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/pool"
	"blockwatch.cc/near-stake/pkg/service"
	"blockwatch.cc/near-stake/pkg/store"
)

var (
	log        logpkg.Logger = logpkg.Log
	configFile string
	listen     string
	database   string
	owner      string
	logLevel   string
	flags      = flag.NewFlagSet("node", flag.ContinueOnError)
)

func init() {
	flags.Usage = func() {}
	flags.StringVar(&configFile, "config", os.Getenv("STAKE_CONFIG"), "yaml config file")
	flags.StringVar(&listen, "listen", os.Getenv("STAKE_LISTEN"), "HTTP listen address")
	flags.StringVar(&database, "db", os.Getenv("STAKE_DB"), "level db path, in-memory when empty")
	flags.StringVar(&owner, "owner", os.Getenv("STAKE_OWNER"), "pool owner account")
	flags.StringVar(&logLevel, "log", envOr("STAKE_LOG", ""), "log level")
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	err := flags.Parse(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			fmt.Printf("Usage: %s [flags]\n", os.Args[0])
			fmt.Println("\nFlags")
			flags.PrintDefaults()
			return nil
		}
		return err
	}

	cfg, err := LoadConfig(configFile)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if database != "" {
		cfg.Database = database
	}
	if owner != "" {
		cfg.Service.Owner = near.AccountID(owner)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	initLogging(cfg.LogLevel)

	var backend store.Backend
	if cfg.Database == "" {
		log.Warn("Using in-memory database, state is lost on exit")
		backend, err = store.NewMem()
	} else {
		backend, err = store.Open(cfg.Database, store.Options{})
	}
	if err != nil {
		return err
	}

	svc, err := service.New(backend, cfg.Service)
	if err != nil {
		backend.Close()
		return err
	}
	defer svc.Close()
	if err := svc.Deploy(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go drainLoop(ctx, svc, cfg.DrainInterval)
	if cfg.EpochInterval > 0 {
		go epochLoop(ctx, svc, cfg.EpochInterval)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(svc).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	log.Infof("Pool %s listening on %s", svc.Chain.ContractID(), cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	log.Info("Stopped")
	return nil
}

func initLogging(level string) {
	lvl := logpkg.ParseLevel(level)
	logpkg.SetLevel(lvl)
	for tag, use := range map[string]func(logpkg.Logger){
		"POOL": pool.UseLogger,
		"CHAN": chain.UseLogger,
		"FTKN": ft.UseLogger,
		"SRVC": service.UseLogger,
	} {
		l := logpkg.NewLogger(tag)
		l.SetLevel(lvl)
		use(l)
	}
}

// drainLoop executes queued receipts like block production would.
func drainLoop(ctx context.Context, svc *service.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			outs, err := svc.Chain.Drain()
			if err != nil {
				log.Errorf("drain receipts: %v", err)
				continue
			}
			for _, out := range outs {
				if !out.Success {
					log.Warnf("receipt %s failed: %s", out.ReceiptID, out.Error)
				}
			}
		}
	}
}

func epochLoop(ctx context.Context, svc *service.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.Chain.AdvanceEpoch(); err != nil {
				log.Errorf("advance epoch: %v", err)
			}
		}
	}
}
