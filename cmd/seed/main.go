package main

import (
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/oggyb/campusknot/internal/config"
	"github.com/oggyb/campusknot/internal/db"
	"github.com/oggyb/campusknot/internal/logger"
)

func main() {
	var opts db.SeedOptions
	flag.IntVarP(&opts.Users, "users", "n", 20, "number of demo users to create")
	flag.IntVar(&opts.SwipesPerUser, "swipes", 8, "swipes recorded per user")
	flag.StringVar(&opts.Password, "password", "password", "password shared by every demo user")
	flag.BoolVar(&opts.Reset, "reset", false, "delete existing users, swipes, matches, messages and reports first")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: seed [flags]\n\nSeeds the configured database with demo campus users.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(opts); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

func run(opts db.SeedOptions) error {
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	if cfg.IsProduction() {
		return errors.New("refusing to seed a production database")
	}
	opts.EmailDomain = cfg.App.EmailDomain

	database, err := db.NewDB(cfg)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	if err := db.SeedTestData(database, opts); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	log.Info("seeding completed", "users", opts.Users, "driver", cfg.DB.Driver)
	return nil
}
