package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/erp/retailops/internal/infrastructure/config"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/erp/retailops/internal/infrastructure/migration"
	"github.com/erp/retailops/migrations"
	_ "github.com/lib/pq"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

func main() {
	app := &cli.App{
		Name:  "migrate",
		Usage: "Manage the retailops database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Read migrations from this directory instead of the embedded set",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "postgres:// URL; overrides the configured database",
				EnvVars: []string{"RETAIL_DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply all pending migrations",
				Action: withMigrator(func(_ *cli.Context, m *migration.Migrator, _ *zap.Logger) error { return m.Up() }),
			},
			{
				Name:   "down",
				Usage:  "Roll back all migrations",
				Action: withMigrator(func(_ *cli.Context, m *migration.Migrator, _ *zap.Logger) error { return m.Down() }),
			},
			{
				Name:      "step",
				Usage:     "Apply n migrations; negative n rolls back",
				ArgsUsage: "<n>",
				Action: withMigrator(func(c *cli.Context, m *migration.Migrator, _ *zap.Logger) error {
					n, err := strconv.Atoi(c.Args().First())
					if err != nil {
						return fmt.Errorf("invalid step count %q", c.Args().First())
					}
					return m.Steps(n)
				}),
			},
			{
				Name:      "goto",
				Usage:     "Migrate up or down to a version",
				ArgsUsage: "<version>",
				Action: withMigrator(func(c *cli.Context, m *migration.Migrator, _ *zap.Logger) error {
					v, err := strconv.ParseUint(c.Args().First(), 10, 32)
					if err != nil {
						return fmt.Errorf("invalid version %q", c.Args().First())
					}
					return m.GoTo(uint(v))
				}),
			},
			{
				Name:  "version",
				Usage: "Print the applied version",
				Action: withMigrator(func(_ *cli.Context, m *migration.Migrator, log *zap.Logger) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					if version == 0 {
						log.Info("No migrations applied")
						return nil
					}
					log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
					return nil
				}),
			},
			{
				Name:      "force",
				Usage:     "Set the version without running migrations (clears dirty state)",
				ArgsUsage: "<version>",
				Action: withMigrator(func(c *cli.Context, m *migration.Migrator, log *zap.Logger) error {
					v, err := strconv.Atoi(c.Args().First())
					if err != nil {
						return fmt.Errorf("invalid version %q", c.Args().First())
					}
					log.Warn("Forcing migration version", zap.Int("version", v))
					return m.Force(v)
				}),
			},
			{
				Name:      "create",
				Usage:     "Create a new up/down migration pair",
				ArgsUsage: "<name> [description]",
				Action:    create,
			},
			{
				Name:   "list",
				Usage:  "List available migrations",
				Action: list,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:      c.String("log-level"),
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
}

func source(c *cli.Context) fs.FS {
	if dir := c.String("path"); dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func withMigrator(run func(c *cli.Context, m *migration.Migrator, log *zap.Logger) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		log, err := newLogger(c)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		defer func() { _ = logger.Sync(log) }()

		var m *migration.Migrator
		if url := c.String("database-url"); url != "" && c.String("path") != "" {
			m, err = migration.NewFromURL(url, c.String("path"), log)
			if err != nil {
				return err
			}
		} else {
			db, err := openDB(c)
			if err != nil {
				return err
			}
			defer db.Close()
			if m, err = migration.New(db, source(c), log); err != nil {
				return err
			}
		}
		defer m.Close()

		log.Info("Running migration command", zap.String("command", c.Command.Name))
		return run(c, m, log)
	}
}

func openDB(c *cli.Context) (*sql.DB, error) {
	dsn := c.String("database-url")
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		dsn = cfg.Database.DSN()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(c.Context); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func create(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("migration name required: migrate create <name> [description]", 1)
	}
	dir := c.String("path")
	if dir == "" {
		dir = defaultMigrationsDir
	}
	mf, err := migration.CreateMigration(dir, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	fmt.Printf("created %06d_%s\n  %s\n  %s\n", mf.Version, mf.Name, mf.UpPath, mf.DownPath)
	return nil
}

func list(c *cli.Context) error {
	files, err := migration.ListMigrations(source(c))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("no migrations found")
		return nil
	}
	for _, f := range files {
		fmt.Printf("%06d  %s\n", f.Version, f.Name)
	}
	return nil
}
