package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	contactMetrics "healthtrack/internal/contact/metrics"
	contactService "healthtrack/internal/contact/service"
	contactStore "healthtrack/internal/contact/store"
	enrollmentMetrics "healthtrack/internal/enrollment/metrics"
	enrollmentService "healthtrack/internal/enrollment/service"
	invitationMetrics "healthtrack/internal/invitation/metrics"
	invitationService "healthtrack/internal/invitation/service"
	invitationStore "healthtrack/internal/invitation/store"
	"healthtrack/internal/invitation/sweeper"
	participationMetrics "healthtrack/internal/participation/metrics"
	participationService "healthtrack/internal/participation/service"
	participationStore "healthtrack/internal/participation/store"
	"healthtrack/internal/platform/config"
	"healthtrack/internal/platform/httpserver"
	"healthtrack/internal/platform/postgres"
	redisClient "healthtrack/internal/platform/redis"
	audit "healthtrack/pkg/platform/audit"
	"healthtrack/pkg/platform/audit/publishers/kafka"
	auditmemory "healthtrack/pkg/platform/audit/store/memory"
)

type app struct {
	registry  *prometheus.Registry
	readiness map[string]httpserver.Check

	contacts      *contactService.Registry
	participation *participationService.Ledger
	invitations   *invitationService.Lifecycle
	enrollment    *enrollmentService.Coordinator
	sweeper       *sweeper.Runner

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *app, err error) {
	a := &app{
		registry:  prometheus.NewRegistry(),
		readiness: map[string]httpserver.Check{},
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var db *sql.DB
	if cfg.UsesPostgres() {
		db, err = postgres.Open(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if cfg.Storage.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return nil, err
			}
		}
		a.readiness["postgres"] = db.PingContext
	}

	publisher, err := buildAuditPublisher(ctx, a, cfg, log)
	if err != nil {
		return nil, err
	}

	var cStore contactService.Store = contactStore.NewInMemory()
	var iStore invitationService.Store = invitationStore.NewInMemory()
	if cfg.Storage.Driver == config.DriverPostgres {
		cStore = contactStore.NewPostgres(db, contactStore.WithTxTimeout(cfg.Storage.TxTimeout))
		iStore = invitationStore.NewPostgres(db, invitationStore.WithTxTimeout(cfg.Storage.TxTimeout))
	}

	var pStore participationService.Store
	switch cfg.Storage.ParticipationDriver {
	case config.DriverPostgres:
		pStore = participationStore.NewPostgres(db)
	case config.DriverRedis:
		rc, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		a.readiness["redis"] = rc.Health
		pStore = participationStore.NewRedis(rc.Client)
	default:
		pStore = participationStore.NewInMemory()
	}

	a.contacts, err = contactService.New(cStore,
		contactService.WithLogger(log),
		contactService.WithAuditPublisher(publisher),
		contactService.WithMetrics(contactMetrics.New(a.registry)))
	if err != nil {
		return nil, err
	}
	a.participation, err = participationService.New(pStore,
		participationService.WithLogger(log),
		participationService.WithAuditPublisher(publisher),
		participationService.WithMetrics(participationMetrics.New(a.registry)))
	if err != nil {
		return nil, err
	}
	a.invitations, err = invitationService.New(iStore,
		invitationService.WithLogger(log),
		invitationService.WithAuditPublisher(publisher),
		invitationService.WithMetrics(invitationMetrics.New(a.registry)),
		invitationService.WithDefaultTTL(cfg.Invitations.DefaultTTL))
	if err != nil {
		return nil, err
	}
	a.enrollment, err = enrollmentService.New(a.invitations, a.contacts, a.participation,
		enrollmentService.WithLogger(log),
		enrollmentService.WithMetrics(enrollmentMetrics.New(a.registry)))
	if err != nil {
		return nil, err
	}
	a.sweeper, err = sweeper.New(a.invitations, cfg.Invitations.SweepInterval, sweeper.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return a, nil
}

func buildAuditPublisher(ctx context.Context, a *app, cfg *config.Config, log *slog.Logger) (*audit.Publisher, error) {
	if len(cfg.Audit.KafkaBrokers) == 0 {
		log.Info("audit events kept in memory; set AUDIT_KAFKA_BROKERS to stream them")
		return audit.NewPublisher(auditmemory.NewInMemoryStore()), nil
	}
	producer, err := kafka.New(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic, kafka.WithLogger(log))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, producer.Close)
	if err := producer.EnsureTopic(ctx, 1, 1); err != nil {
		return nil, fmt.Errorf("prepare audit topic: %w", err)
	}
	return audit.NewPublisher(producer), nil
}
