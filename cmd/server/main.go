// Command server runs the registry transaction core: the EPP listener, the
// WHOIS/RDAP read view, the lifecycle sweeps, and the audit forwarder.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"zonecore/internal/audit"
	"zonecore/internal/contact"
	"zonecore/internal/dispatch"
	"zonecore/internal/epp"
	"zonecore/internal/host"
	"zonecore/internal/lifecycle"
	"zonecore/internal/platform/config"
	"zonecore/internal/platform/logger"
	"zonecore/internal/platform/metrics"
	"zonecore/internal/platform/postgres"
	"zonecore/internal/platform/redis"
	"zonecore/internal/ratelimit"
	"zonecore/internal/readview"
	"zonecore/internal/session"
	"zonecore/internal/store"
	"zonecore/internal/transfer"
)

const serverID = "zonecore"

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New()
	m := metrics.New()

	var st store.Store
	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if db != nil {
		defer db.Close()
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		st = pg
		log.Info("using postgres store")
	} else {
		st = store.NewMemory()
		log.Warn("no POSTGRES_DSN configured, using in-memory store")
	}

	var winStore ratelimit.WindowStore = ratelimit.NewMemoryStore()
	rdb, err := redis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
		winStore = ratelimit.NewRedisStore(rdb.Client)
		log.Info("using redis rate-limit store")
	}
	limiter := ratelimit.New(winStore, cfg.RateLimitThreshold, cfg.RateLimitWindow, cfg.RateLimitBlock,
		ratelimit.WithLogger(log), ratelimit.WithMetrics(m))

	sessions := session.NewManager(st.Registrars(), cfg.SessionIdleTimeout, cfg.MaxSessionsPerRegistrar,
		session.WithLogger(log), session.WithMetrics(m))
	domains := lifecycle.New(cfg.PendingDeleteWindow, cfg.RedemptionWindow,
		lifecycle.WithLogger(log), lifecycle.WithMetrics(m))
	transfers := transfer.New(cfg.TransferWindow,
		transfer.WithLogger(log), transfer.WithMetrics(m))
	contacts := contact.New(contact.WithLogger(log))
	hosts := host.New(host.WithLogger(log))

	publisher := audit.NewPublisher(0, audit.WithLogger(log), audit.WithMetrics(m))
	dispatcher := dispatch.New(st, sessions, domains, transfers, contacts, hosts, epp.Codec{},
		dispatch.WithLogger(log), dispatch.WithMetrics(m), dispatch.WithAudit(publisher))

	eppOpts := []epp.ServerOption{
		epp.WithLogger(log),
		epp.WithIdleTimeout(cfg.SessionIdleTimeout),
	}
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("load tls keypair: %w", err)
		}
		eppOpts = append(eppOpts, epp.WithTLS(&tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}))
	}
	if cfg.RateLimitPreLogin {
		eppOpts = append(eppOpts, epp.WithPreLoginLimiter(limiter))
	}
	eppServer := epp.NewServer(serverID, dispatcher, sessions, eppOpts...)

	readHandler := readview.NewHandler(readview.New(st),
		readview.WithLimiter(limiter), readview.WithLogger(log))
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           readHandler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var worker *audit.Worker
	if cfg.KafkaBrokers != "" {
		sink, err := audit.NewKafkaSink(strings.Split(cfg.KafkaBrokers, ","), cfg.AuditTopic)
		if err != nil {
			return fmt.Errorf("audit sink: %w", err)
		}
		defer sink.Close()
		worker = audit.NewWorker(sink, publisher, audit.WorkerLogger(log), audit.WorkerMetrics(m))
		log.Info("audit forwarding enabled", "topic", cfg.AuditTopic)
	}

	lis, err := net.Listen("tcp", cfg.EPPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.EPPAddr, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eppServer.Serve(ctx, lis) })
	g.Go(func() error {
		log.Info("read view started", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return sessions.Run(ctx, cfg.SessionSweepInterval()) })
	g.Go(func() error { return domains.Run(ctx, st, cfg.SweepInterval) })
	g.Go(func() error { return transfers.Run(ctx, st, cfg.SweepInterval) })
	if worker != nil {
		g.Go(func() error { return worker.Run(ctx) })
	}

	log.Info("registry core started", "epp_addr", cfg.EPPAddr, "http_addr", cfg.HTTPAddr)
	err = g.Wait()
	sessions.CloseAll()
	return err
}
