// Command ledgerctl runs ledger maintenance against the configured
// database: consistency checks, balance rebuilds and expiry scans.
package main

import (
	"fmt"
	"os"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/infrastructure/config"
	"github.com/erp/retailops/internal/infrastructure/event"
	"github.com/erp/retailops/internal/infrastructure/lock"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/erp/retailops/internal/infrastructure/persistence"
	"github.com/erp/retailops/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "ledgerctl",
		Usage: "Inspect and repair the stock ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "verify",
				Usage: "Replay every balance and report cached balances that disagree with the ledger",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "Only verify this tenant (default: every tenant with balances)"},
					&cli.IntFlag{Name: "parallelism", Usage: "Keys verified concurrently (default from config)"},
					&cli.BoolFlag{Name: "repair", Usage: "Rebuild every discrepant balance"},
					&cli.StringFlag{Name: "user", Usage: "Operator user id recorded for repairs"},
				},
				Action: withLedger(verify),
			},
			{
				Name:  "rebuild",
				Usage: "Replace one cached balance with its replay",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tenant", Required: true},
					&cli.StringFlag{Name: "location", Required: true},
					&cli.StringFlag{Name: "product", Required: true},
					&cli.StringFlag{Name: "batch"},
					&cli.StringFlag{Name: "user", Usage: "Operator user id"},
				},
				Action: withLedger(rebuild),
			},
			{
				Name:  "expiry-scan",
				Usage: "Raise expiry alerts for batches expiring within the window",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "Only scan this tenant (default: every tenant with balances)"},
					&cli.IntFlag{Name: "days", Usage: "Alert window in days (default: tenant setting)"},
				},
				Action: withLedger(expiryScan),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type env struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *persistence.Database
	ledger  *ledger.Service
	tenants telemetry.TenantProvider
}

func withLedger(run func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		log, err := logger.New(&logger.Config{
			Level:      c.String("log-level"),
			Format:     "console",
			Output:     "stdout",
			TimeFormat: "2006-01-02 15:04:05",
		})
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		defer func() { _ = logger.Sync(log) }()

		db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
			Logger:   log,
			LogLevel: logger.MapGormLogLevel(cfg.Database.LogLevel),
		})
		if err != nil {
			return err
		}
		defer db.Close()

		lockOpts := lock.Options{
			Retries:    cfg.Lock.Retries,
			MinBackoff: cfg.Lock.MinBackoff,
			MaxBackoff: cfg.Lock.MaxBackoff,
			TTL:        cfg.Lock.TTL,
		}
		var locker ledger.Locker = lock.NewMemoryLocker(lockOpts)
		if cfg.Lock.Backend == "redis" {
			redisLocker, err := lock.NewRedisLocker(lock.RedisConfig{
				Host:     cfg.Redis.Host,
				Port:     cfg.Redis.Port,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			}, lockOpts, log)
			if err != nil {
				return err
			}
			defer redisLocker.Close()
			locker = redisLocker
		}

		// Events go to the outbox; a running server relays them.
		uow := persistence.NewGormUnitOfWork(db.DB, event.NewOutboxPublisher(event.NewRegisteredSerializer()))
		coord := ledger.NewCoordinator(uow, locker, ledger.CoordinatorConfig{
			MaxAttempts:  cfg.Ledger.MaxAttempts,
			RetryBackoff: cfg.Ledger.RetryBackoff,
		})

		e := &env{
			cfg:     cfg,
			log:     log,
			db:      db,
			ledger:  ledger.NewService(coord, persistence.NewPolicyRepository(db.DB)),
			tenants: telemetry.NewGormTenantProvider(db.DB),
		}
		c.Context = logger.WithContext(c.Context, log)
		return run(c, e)
	}
}

func (e *env) tenantIDs(c *cli.Context) ([]uuid.UUID, error) {
	if raw := c.String("tenant"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid tenant id %q", raw)
		}
		return []uuid.UUID{id}, nil
	}
	return e.tenants.ActiveTenantIDs(c.Context)
}

func operator(c *cli.Context) (shared.Actor, error) {
	id := uuid.Nil
	if raw := c.String("user"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return shared.Actor{}, fmt.Errorf("invalid user id %q", raw)
		}
		id = parsed
	}
	return shared.NewActor(id, shared.CapStockAdjust), nil
}

func verify(c *cli.Context, e *env) error {
	tenants, err := e.tenantIDs(c)
	if err != nil {
		return err
	}
	parallelism := c.Int("parallelism")
	if parallelism <= 0 {
		parallelism = e.cfg.Ledger.VerifyParallelism
	}
	actor, err := operator(c)
	if err != nil {
		return err
	}

	var total int
	for _, tenantID := range tenants {
		found, err := e.ledger.VerifyTenant(c.Context, tenantID, parallelism)
		if err != nil {
			return fmt.Errorf("verify tenant %s: %w", tenantID, err)
		}
		total += len(found)
		for _, d := range found {
			e.log.Warn("Balance disagrees with ledger",
				zap.String("key", d.Key.String()),
				zap.String("cached_on_hand", d.Cached.OnHand.String()),
				zap.String("replayed_on_hand", d.Replayed.OnHand.String()),
				zap.Int64("cached_sequence", d.CachedSequence),
				zap.Int64("replayed_sequence", d.ReplayedSequence),
			)
			if !c.Bool("repair") {
				continue
			}
			if _, err := e.ledger.Rebuild(c.Context, actor, d.Key); err != nil {
				return fmt.Errorf("rebuild %s: %w", d.Key, err)
			}
		}
		e.log.Info("Tenant verified", zap.String("tenant_id", tenantID.String()), zap.Int("discrepancies", len(found)))
	}

	if total > 0 && !c.Bool("repair") {
		return cli.Exit(fmt.Sprintf("%d discrepancies found", total), 2)
	}
	return nil
}

func rebuild(c *cli.Context, e *env) error {
	ids := map[string]uuid.UUID{}
	for _, name := range []string{"tenant", "location", "product", "batch"} {
		raw := c.String(name)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s id %q", name, raw)
		}
		ids[name] = id
	}
	var batch *uuid.UUID
	if id, ok := ids["batch"]; ok {
		batch = &id
	}
	key := inventory.NewBalanceKey(ids["tenant"], ids["location"], ids["product"], batch)

	actor, err := operator(c)
	if err != nil {
		return err
	}
	b, err := e.ledger.Rebuild(c.Context, actor, key)
	if err != nil {
		return err
	}
	e.log.Info("Balance rebuilt",
		zap.String("key", key.String()),
		zap.String("on_hand", b.OnHand.String()),
		zap.String("reserved", b.Reserved.String()),
	)
	return nil
}

func expiryScan(c *cli.Context, e *env) error {
	tenants, err := e.tenantIDs(c)
	if err != nil {
		return err
	}
	for _, tenantID := range tenants {
		alerts, err := e.ledger.ScanExpiring(c.Context, tenantID, c.Int("days"))
		if err != nil {
			return fmt.Errorf("scan tenant %s: %w", tenantID, err)
		}
		for _, a := range alerts {
			e.log.Info("Batch expiring",
				zap.String("tenant_id", tenantID.String()),
				zap.String("batch", a.BatchNumber),
				zap.String("location_id", a.LocationID.String()),
				zap.Int("days_remaining", a.DaysRemaining),
				zap.String("on_hand", a.OnHand.String()),
			)
		}
		e.log.Info("Tenant scanned", zap.String("tenant_id", tenantID.String()), zap.Int("alerts", len(alerts)))
	}
	return nil
}
