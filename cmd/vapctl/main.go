package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/Simplici0/vapformula/internal/config"
	"github.com/Simplici0/vapformula/internal/db"
	"github.com/Simplici0/vapformula/internal/logger"
	"github.com/Simplici0/vapformula/internal/migrations"
	"github.com/Simplici0/vapformula/internal/seed"
)

func newDBPathFlag(defaultPath string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db",
		Usage:   "Path to the SQLite database",
		Value:   defaultPath,
		EnvVars: []string{"DB_PATH"},
	}
}

func newApp(cfg config.Config) *cli.App {
	return &cli.App{
		Name:  "vapctl",
		Usage: "Administer the VAP formula pricing database and run offline calculations",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply pending schema migrations",
				Flags:  []cli.Flag{newDBPathFlag(cfg.DBPath)},
				Action: runMigrate,
			},
			{
				Name:  "seed",
				Usage: "Insert the admin user, default customer and default pricing model",
				Flags: []cli.Flag{
					newDBPathFlag(cfg.DBPath),
					&cli.StringFlag{
						Name:    "admin-email",
						Usage:   "Email of the admin user to create",
						Value:   cfg.AdminEmail,
						EnvVars: []string{"ADMIN_EMAIL"},
					},
					&cli.StringFlag{
						Name:    "admin-password",
						Usage:   "Password of the admin user to create",
						Value:   cfg.AdminPassword,
						EnvVars: []string{"ADMIN_PASSWORD"},
					},
				},
				Action: runSeed,
			},
			{
				Name:      "calculate",
				Usage:     "Price a formula read from a JSON file",
				ArgsUsage: " ",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "JSON file with the calculation input (- for stdin)",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full result as JSON instead of a table",
					},
				},
				Action: runCalculate,
			},
		},
	}
}

func main() {
	cfg := config.Load()
	log.Logger = logger.New(os.Stderr, cfg.LogLevel, "console")

	if err := newApp(cfg).Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("vapctl failed")
	}
}

func openMigrated(path string) (*sql.DB, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrations.Up(database); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

func runMigrate(c *cli.Context) error {
	database, err := openMigrated(c.String("db"))
	if err != nil {
		return err
	}
	defer database.Close()

	version, err := migrations.Version(database)
	if err != nil {
		return err
	}
	log.Info().Str("db", c.String("db")).Int64("version", version).Msg("schema up to date")
	return nil
}

func runSeed(c *cli.Context) error {
	database, err := openMigrated(c.String("db"))
	if err != nil {
		return err
	}
	defer database.Close()

	stats, err := seed.Run(database, seed.Config{
		AdminEmail:    c.String("admin-email"),
		AdminPassword: c.String("admin-password"),
	})
	if err != nil {
		return err
	}
	log.Info().Int("inserts", stats.Inserts).Msg("seed complete")
	return nil
}
