package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"certflow/internal/config"
)

const usage = "Usage: migrate [up|down|steps N|force V|version]"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zap.L().Sync() }()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	source := os.Getenv("CERTFLOW_MIGRATIONS")
	if source == "" {
		source = "file://db/migrations"
	}
	m, err := migrate.New(source, cfg.DB.DSN())
	if err != nil {
		zap.L().Fatal("failed to create migrate instance", zap.String("source", source), zap.Error(err))
	}
	defer m.Close()

	switch cmd := os.Args[1]; cmd {
	case "up":
		if err := m.Up(); ignoreNoChange(err) != nil {
			zap.L().Fatal("migration up failed", zap.Error(err))
		}
		zap.L().Info("migrations applied")

	case "down":
		if err := m.Down(); ignoreNoChange(err) != nil {
			zap.L().Fatal("migration down failed", zap.Error(err))
		}
		zap.L().Info("migrations reverted")

	case "steps":
		n := intArg("steps")
		if err := m.Steps(n); ignoreNoChange(err) != nil {
			zap.L().Fatal("migration steps failed", zap.Int("steps", n), zap.Error(err))
		}
		zap.L().Info("migration steps applied", zap.Int("steps", n))

	case "force":
		v := intArg("force")
		if err := m.Force(v); err != nil {
			zap.L().Fatal("forcing version failed", zap.Int("version", v), zap.Error(err))
		}
		zap.L().Info("version forced", zap.Int("version", v))

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("version: none")
			return
		}
		if err != nil {
			zap.L().Fatal("failed to get version", zap.Error(err))
		}
		fmt.Printf("version: %d, dirty: %v\n", version, dirty)

	default:
		fmt.Printf("unknown command: %s\n", cmd)
		fmt.Println(usage)
		os.Exit(1)
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func intArg(cmd string) int {
	if len(os.Args) < 3 {
		zap.L().Fatal(cmd + " requires a number argument")
	}
	n, err := strconv.Atoi(os.Args[2])
	if err != nil {
		zap.L().Fatal("invalid "+cmd+" argument", zap.String("arg", os.Args[2]), zap.Error(err))
	}
	return n
}
