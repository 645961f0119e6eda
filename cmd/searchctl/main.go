package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vdestor_backend/internal/search"
	"vdestor_backend/internal/search/domain"
	"vdestor_backend/platform/config"
	"vdestor_backend/platform/db"
	"vdestor_backend/platform/logger"
	"vdestor_backend/platform/redisx"
	"vdestor_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "searchctl",
		Usage: "Operate the catalog search backend",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log search pipeline events to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "search",
				Usage:  "Run one search through the full pipeline and print the JSON result",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "q", Usage: "Query text"},
					&cli.StringFlag{Name: "city", Usage: "City id", Required: true},
					&cli.StringFlag{Name: "warehouse", Usage: "Warehouse id"},
					&cli.IntFlag{Name: "page", Usage: "Page number", Value: 1},
					&cli.IntFlag{Name: "limit", Usage: "Page size", Value: domain.DefaultLimit},
				},
			},
			{
				Name:   "probe",
				Usage:  "Check connectivity to OpenSearch, PostgreSQL and Redis",
				Action: probeCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "timeout", Usage: "Timeout per check", Value: 3 * time.Second},
				},
			},
			{
				Name:   "migrate",
				Usage:  "Apply pending database migrations",
				Action: migrateCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "status", Usage: "Only print the current schema version"},
				},
			},
			{
				Name:   "seed",
				Usage:  "Fill an empty database with a generated catalog",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "products", Usage: "Number of products", Value: 500},
					&cli.IntFlag{Name: "cities", Usage: "Number of cities", Value: 5},
					&cli.IntFlag{Name: "warehouses", Usage: "Number of warehouses", Value: 8},
					&cli.Int64Flag{Name: "seed", Usage: "Random seed (0 picks one)", Value: 1},
					&cli.BoolFlag{Name: "reset", Usage: "Truncate catalog tables first"},
				},
			},
			{
				Name:   "bench",
				Usage:  "Fire concurrent searches and report latency and backend usage",
				Action: benchCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "q", Usage: "Query text (repeatable)", Value: cli.NewStringSlice("кабель", "hjptnrf", "schneider", "")},
					&cli.StringFlag{Name: "city", Usage: "City id", Required: true},
					&cli.IntFlag{Name: "requests", Usage: "Total number of searches", Value: 200},
					&cli.IntFlag{Name: "concurrency", Usage: "Searches in flight", Value: 16},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// env holds what every command needs.
type env struct {
	cfg  *config.Config
	log  *logger.Logger
	pool *pgxpool.Pool
}

func setup(c *cli.Context) (context.Context, *env, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.Discard()
	if c.Bool("verbose") {
		log = logger.NewWithWriter(cfg.Env, os.Stderr)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		stop()
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	cleanup := func() {
		pool.Close()
		stop()
	}
	return ctx, &env{cfg: cfg, log: log, pool: pool}, cleanup, nil
}

func (e *env) searchModule() (*search.Module, error) {
	return search.NewModule(search.Deps{
		Pool:      e.pool,
		Config:    e.cfg,
		Validator: validator.New(),
		Log:       e.log,
	})
}

func searchCommand(c *cli.Context) error {
	ctx, e, cleanup, err := setup(c)
	if err != nil {
		return err
	}
	defer cleanup()

	module, err := e.searchModule()
	if err != nil {
		return err
	}

	result, err := module.Service().Search(ctx, domain.RawSearchParams{
		Query:       c.String("q"),
		Page:        fmt.Sprint(c.Int("page")),
		Limit:       fmt.Sprint(c.Int("limit")),
		CityID:      c.String("city"),
		WarehouseID: c.String("warehouse"),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func probeCommand(c *cli.Context) error {
	ctx, e, cleanup, err := setup(c)
	if err != nil {
		return err
	}
	defer cleanup()

	timeout := c.Duration("timeout")
	failed := 0
	check := func(name string, fn func(ctx context.Context) error) {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		started := time.Now()
		if err := fn(checkCtx); err != nil {
			failed++
			fmt.Printf("%-11s FAIL  %v\n", name, err)
			return
		}
		fmt.Printf("%-11s OK    %s\n", name, time.Since(started).Round(time.Millisecond))
	}

	check("postgres", e.pool.Ping)
	check("opensearch", search.NewOpenSearchClient(e.cfg, timeout).Ping)
	if e.cfg.IsRedisEnabled() {
		check("redis", func(ctx context.Context) error {
			client, err := redisx.NewClient(ctx, e.cfg)
			if err != nil {
				return err
			}
			return client.Close()
		})
	} else {
		fmt.Printf("%-11s SKIP  REDIS_URL not set\n", "redis")
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func migrateCommand(c *cli.Context) error {
	ctx, e, cleanup, err := setup(c)
	if err != nil {
		return err
	}
	defer cleanup()

	if !c.Bool("status") {
		if err := db.RunMigrations(ctx, e.pool); err != nil {
			return err
		}
	}

	version, err := db.MigrationVersion(ctx, e.pool)
	if err != nil {
		return err
	}
	fmt.Printf("schema version %d\n", version)
	return nil
}

func seedCommand(c *cli.Context) error {
	ctx, e, cleanup, err := setup(c)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := seedOptions{
		Products:   c.Int("products"),
		Cities:     c.Int("cities"),
		Warehouses: c.Int("warehouses"),
		Seed:       c.Int64("seed"),
	}
	if err := opts.validate(); err != nil {
		return err
	}

	cat := generateCatalog(opts)
	if err := writeCatalog(ctx, e.pool, cat, c.Bool("reset")); err != nil {
		return err
	}

	fmt.Printf("seeded %d brands, %d products, %d cities, %d warehouses, %d stock rows, %d prices\n",
		len(cat.brands), len(cat.products), len(cat.cities), len(cat.warehouses), len(cat.stock), len(cat.prices))
	return nil
}

func benchCommand(c *cli.Context) error {
	ctx, e, cleanup, err := setup(c)
	if err != nil {
		return err
	}
	defer cleanup()

	module, err := e.searchModule()
	if err != nil {
		return err
	}

	report, err := runBench(ctx, module.Service(), benchOptions{
		Queries:     c.StringSlice("q"),
		CityID:      c.String("city"),
		Requests:    c.Int("requests"),
		Concurrency: c.Int("concurrency"),
	})
	if err != nil {
		return err
	}

	fmt.Print(report.String())
	if gate := module.Gate().Snapshot(); gate.Status != "" {
		fmt.Printf("gate: %s (failures %d)\n", gate.Status, gate.ConsecutiveFailures)
	}
	if strings.TrimSpace(report.FirstError) != "" {
		fmt.Printf("first error: %s\n", report.FirstError)
	}
	return nil
}
