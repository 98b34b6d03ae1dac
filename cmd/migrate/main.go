package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/ledgersync/pkg/config"
	"github.com/angelmondragon/ledgersync/pkg/db"
	"github.com/angelmondragon/ledgersync/pkg/logger"
	"github.com/angelmondragon/ledgersync/pkg/migrate"
)

// gooseCommands pass straight through to goose.RunContext.
var gooseCommands = map[string]bool{"up": true, "down": true, "status": true, "redo": true, "reset": true}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cmd := fs.String("cmd", "up", "up|down|status|redo|reset|version|create|validate")
	dir := fs.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := fs.String("name", "", "migration name, for -cmd=create")
	version := fs.String("version", "", "target version (YYYYMMDDHHMMSS), for -cmd=version")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// create and validate only touch the filesystem and need no config.
	switch *cmd {
	case "create":
		if *name == "" {
			fmt.Fprintln(stderr, "missing -name for create")
			return 1
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fmt.Fprintf(stderr, "create migration: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "created migration:", path)
		return 0
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fmt.Fprintf(stderr, "migration validation failed:\n%v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "migration validation passed")
		return 0
	case "version":
		if *version == "" {
			fmt.Fprintln(stderr, "missing -version for version command")
			return 1
		}
	default:
		if !gooseCommands[*cmd] {
			fmt.Fprintln(stderr, "unknown -cmd value:", *cmd)
			return 1
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Output:      stderr,
	})
	dialect := migrate.Dialect(db.Driver(cfg.DB))
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"cmd":     *cmd,
		"dir":     *dir,
		"dialect": dialect,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		return 1
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "extract sql.DB", err)
		return 1
	}

	if *cmd == "version" {
		err = migrate.MigrateToVersion(ctx, sqlDB, dialect, *dir, *version)
	} else {
		err = migrate.Run(ctx, sqlDB, dialect, *dir, *cmd)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		return 1
	}
	logg.Info(ctx, "migration finished")
	return 0
}
