package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/internal/database"
	"github.com/customeros/violationstack/internal/repository"
	"github.com/customeros/violationstack/internal/utils"
	"github.com/customeros/violationstack/server"
	"github.com/customeros/violationstack/services/pipeline"
)

func main() {
	app := &cli.App{
		Name:  "violationstack",
		Usage: "vendor safety violation email pipeline",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: runMigrate,
			},
			{
				Name:   "server",
				Usage:  "Start the HTTP server and mailbox polling",
				Action: runServer,
			},
			{
				Name:  "poll",
				Usage: "Run one polling cycle over every tenant mailbox and exit",
				Action: func(c *cli.Context) error {
					return withServer(func(ctx context.Context, srv *server.Server) error {
						return srv.PollOnce(ctx)
					})
				},
			},
			{
				Name:  "reprocess",
				Usage: "Run pending inbound messages through the pipeline again",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tenant", Usage: "limit to one tenant id"},
					&cli.IntFlag{Name: "limit", Value: pipeline.DefaultReprocessLimit, Usage: "maximum messages to process"},
				},
				Action: runReprocess,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfigAndDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config initialization failed: %w", err)
	}
	db, err := database.NewConnection(cfg.DatabaseConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("database initialization failed: %w", err)
	}
	return cfg, db, nil
}

func runMigrate(_ *cli.Context) error {
	cfg, db, err := loadConfigAndDB()
	if err != nil {
		return err
	}
	if err := repository.MigrateDB(cfg.DatabaseConfig, db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("Database migration completed successfully")
	return nil
}

func runServer(_ *cli.Context) error {
	cfg, db, err := loadConfigAndDB()
	if err != nil {
		return err
	}
	srv, err := server.NewServer(cfg, db)
	if err != nil {
		return fmt.Errorf("server setup failed: %w", err)
	}
	srv.Logger().Info("violationstack starting up...")
	if err := srv.Run(); err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	srv.Logger().Info("Shutdown complete")
	return nil
}

func runReprocess(c *cli.Context) error {
	tenant, limit := c.String("tenant"), c.Int("limit")
	return withServer(func(ctx context.Context, srv *server.Server) error {
		report, err := srv.Services().Pipeline.Reprocess(ctx, tenant, limit)
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return err
	})
}

// withServer runs a one-shot command with the full service graph, cancelled on SIGINT or SIGTERM.
func withServer(fn func(ctx context.Context, srv *server.Server) error) error {
	cfg, db, err := loadConfigAndDB()
	if err != nil {
		return err
	}
	srv, err := server.NewServer(cfg, db)
	if err != nil {
		return fmt.Errorf("server setup failed: %w", err)
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(utils.SetAppSourceInContext(ctx, cfg.AppConfig.AppSource), srv)
}
