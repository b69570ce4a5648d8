package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/mailfold/mailfold/config"
	"github.com/mailfold/mailfold/internal/database"
	"github.com/mailfold/mailfold/internal/repository"
	"github.com/mailfold/mailfold/server"
)

func main() {
	app := &cli.App{
		Name:  "mailfold",
		Usage: "incremental multi-account IMAP ingestion engine",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the ingestion engine and HTTP API",
				Action: func(c *cli.Context) error {
					cfg, db, err := initialize()
					if err != nil {
						return err
					}

					log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
					log.Println("Mailfold starting up...")

					srv, err := server.NewServer(cfg, db)
					if err != nil {
						return err
					}
					if err := srv.Run(); err != nil {
						return err
					}

					log.Println("Shutdown complete")
					return nil
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(c *cli.Context) error {
					_, db, err := initialize()
					if err != nil {
						return err
					}
					if db == nil {
						log.Println("No database configured, nothing to migrate")
						return nil
					}
					if err := repository.MigrateDB(db); err != nil {
						return err
					}
					log.Println("Database migration completed successfully")
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func initialize() (*config.Config, *gorm.DB, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := database.InitDatabase(cfg.DatabaseConfig)
	if err != nil {
		return nil, nil, err
	}

	return cfg, db, nil
}
