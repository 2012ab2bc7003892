// Command migrate applies or rolls back the storefront database schema.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/tendant/storefront-api/internal/config"
	"github.com/tendant/storefront-api/pkg/database/migrate"
	"github.com/tendant/storefront-api/pkg/repository"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up, down, steps or version")
	steps := flag.Int("n", 1, "number of migrations for -cmd=steps (negative rolls back)")
	flag.Parse()

	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintln(os.Stderr, "loading .env:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	dbCfg := config.LoadDB()
	db, err := repository.NewDB(repository.Config{
		Host:     dbCfg.Host,
		Port:     dbCfg.Port,
		User:     dbCfg.User,
		Password: dbCfg.Password,
		DBName:   dbCfg.Name,
		SSLMode:  dbCfg.SSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	switch *cmd {
	case "up":
		err = migrate.Run(db, logger)
	case "down":
		err = migrate.Down(db)
	case "steps":
		err = migrate.Steps(db, *steps)
	case "version":
		var version uint
		var dirty bool
		version, dirty, err = migrate.CurrentVersion(db)
		if err == nil {
			logger.Info("migration version", "version", version, "dirty", dirty)
		}
	default:
		err = fmt.Errorf("unknown command %q", *cmd)
	}
	if err != nil {
		logger.Error("migration failed", "cmd", *cmd, "error", err)
		os.Exit(1)
	}
}
