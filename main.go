package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pelletier/go-toml/v2"

	"github.com/parasocial/parasocial/controller"
	"github.com/parasocial/parasocial/model"
)

func runMigrations(cfg *model.Config) error {
	m, err := migrate.New("file://"+migrationsDir(), migrateDSN(cfg))
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

func dothings() error {
	configPath := flag.String("config", "config.toml", "path to the configuration file")
	doMigrate := flag.Bool("migrate", false, "run schema migrations and exit")
	doMaintenance := flag.Bool("maintenance", false, "run the cleanup pass and exit")
	flag.Parse()

	data, err := os.ReadFile(*configPath)
	if err != nil {
		return err
	}
	cfg := &model.Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return err
	}

	if *doMigrate {
		return runMigrations(cfg)
	}

	db, err := model.InitDatabase(cfg)
	if err != nil {
		return err
	}

	if *doMaintenance {
		return model.RunMaintenance(context.Background(), db)
	}

	return controller.NewController(db)
}

func main() {
	if err := dothings(); err != nil {
		log.Fatal(err)
	}
}
